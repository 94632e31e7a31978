package products

import (
	"fmt"
	"sort"
	"strings"

	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/pagination"
	"github.com/angelmondragon/shelfpos/pkg/types"
)

// ListQuery filters, sorts and pages the catalog.
type ListQuery struct {
	Page       pagination.Params
	Keyword    string
	CategoryID string
	SortBy     string
	SortOrder  string
}

// ListResult is one page plus the filtered total.
type ListResult = types.ListResult[Product]

func (q ListQuery) normalize() (ListQuery, error) {
	q.Page = q.Page.Normalize()
	q.Keyword = strings.TrimSpace(q.Keyword)
	q.CategoryID = strings.TrimSpace(q.CategoryID)
	if q.SortBy == "" {
		q.SortBy = SortByUpdatedAt
	}
	switch q.SortBy {
	case SortByUpdatedAt, SortByCreatedAt, SortByName, SortByPrice, SortByBarcode:
	default:
		return q, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported sortBy %q", q.SortBy))
	}
	q.SortOrder = strings.ToLower(q.SortOrder)
	if q.SortOrder == "" {
		q.SortOrder = SortDesc
	}
	if q.SortOrder != SortAsc && q.SortOrder != SortDesc {
		return q, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported sortOrder %q", q.SortOrder))
	}
	return q, nil
}

// matches applies the keyword then category filters.
func (q ListQuery) matches(p *Product) bool {
	if q.Keyword != "" {
		lower := strings.ToLower(q.Keyword)
		if !strings.Contains(strings.ToLower(p.Name), lower) && !strings.Contains(p.Barcode, q.Keyword) {
			return false
		}
	}
	switch q.CategoryID {
	case "":
	case Uncategorized:
		if p.CategoryID != "" {
			return false
		}
	default:
		if p.CategoryID != q.CategoryID {
			return false
		}
	}
	return true
}

func sortProducts(items []Product, by, order string) {
	less := func(a, b *Product) int {
		switch by {
		case SortByCreatedAt:
			return a.CreatedAt.Compare(b.CreatedAt)
		case SortByName:
			return strings.Compare(a.Name, b.Name)
		case SortByPrice:
			return a.Price.Cmp(b.Price)
		case SortByBarcode:
			return strings.Compare(a.Barcode, b.Barcode)
		default:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		c := less(&items[i], &items[j])
		if c == 0 {
			c = strings.Compare(items[i].ID, items[j].ID)
		}
		if order == SortAsc {
			return c < 0
		}
		return c > 0
	})
}
