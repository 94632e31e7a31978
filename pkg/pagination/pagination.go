package pagination

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize is used when the caller does not supply one.
	DefaultPageSize = 10
	// All is the pageSize value that disables pagination.
	All = "all"
)

// Params describes a 1-based page request. Unbounded returns every match on page 1.
type Params struct {
	Page      int
	PageSize  int
	Unbounded bool
}

// Everything is the request for all matches in one page.
func Everything() Params {
	return Params{Page: 1, Unbounded: true}
}

// Parse reads page/pageSize query values. pageSize may be "all".
func Parse(page, pageSize string, defaultSize int) (Params, error) {
	if defaultSize <= 0 {
		defaultSize = DefaultPageSize
	}
	p := Params{Page: 1, PageSize: defaultSize}

	if v := strings.TrimSpace(page); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Params{}, fmt.Errorf("page must be a positive integer")
		}
		p.Page = n
	}

	switch v := strings.ToLower(strings.TrimSpace(pageSize)); v {
	case "":
	case All, "infinity":
		p.Unbounded = true
	default:
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Params{}, fmt.Errorf("pageSize must be a positive integer or %q", All)
		}
		p.PageSize = n
	}
	return p, nil
}

// Normalize fills defaults for zero values.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if !p.Unbounded && p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	return p
}

// Bounds returns the [start, end) slice window for total items.
func (p Params) Bounds(total int) (int, int) {
	p = p.Normalize()
	size := p.PageSize
	if p.Unbounded {
		size = total
	}
	if size == 0 || p.Page-1 > total/size {
		return total, total
	}
	start := (p.Page - 1) * size
	if start > total {
		start = total
	}
	end := total
	if size <= total-start {
		end = start + size
	}
	return start, end
}

// Slice returns the page of items described by p.
func Slice[T any](items []T, p Params) []T {
	start, end := p.Bounds(len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}
