// Package statistics turns sold order lines into dashboard figures. Every
// function here is pure; loading the lines is the caller's job.
package statistics

import (
	"fmt"
	"sort"
	"time"

	"github.com/angelmondragon/shelfpos/internal/categories"
	"github.com/angelmondragon/shelfpos/internal/products"
	"github.com/angelmondragon/shelfpos/pkg/types"
)

// Labels used when a line can no longer be resolved against the catalog.
const (
	UnknownProduct = "unknown product"
	Uncategorized  = "uncategorized"
)

// DefaultRankLimit is the ranking size when the caller asks for none.
const DefaultRankLimit = 10

// AllProducts disables FilterByProduct.
const AllProducts = "all"

// Line is one sold order item. ProductName and Category are the values
// denormalised at sale time and only used when the catalog lookup fails.
type Line struct {
	OrderID     string
	ProductID   string
	ProductName string
	Category    string
	Quantity    int
	UnitPrice   types.Money
	CreatedAt   time.Time
}

func (l Line) Amount() types.Money {
	return l.UnitPrice.Times(l.Quantity)
}

// Catalog resolves product ids to names and category names.
type Catalog struct {
	products   map[string]products.Product
	categories map[string]string
}

func NewCatalog(ps []products.Product, cs []categories.Category) Catalog {
	c := Catalog{
		products:   make(map[string]products.Product, len(ps)),
		categories: make(map[string]string, len(cs)),
	}
	for _, p := range ps {
		c.products[p.ID] = p
	}
	for _, cat := range cs {
		c.categories[cat.ID] = cat.Name
	}
	return c
}

// ProductName prefers the live product, then the sale-time name.
func (c Catalog) ProductName(l Line) string {
	if p, ok := c.products[l.ProductID]; ok && p.Name != "" {
		return p.Name
	}
	if l.ProductName != "" {
		return l.ProductName
	}
	return UnknownProduct
}

// CategoryName resolves the live product's category, falling back to the
// sale-time category and then to Uncategorized.
func (c Catalog) CategoryName(l Line) string {
	if p, ok := c.products[l.ProductID]; ok && p.CategoryID != "" {
		if name, ok := c.categories[p.CategoryID]; ok && name != "" {
			return name
		}
		return p.CategoryID
	}
	if l.Category != "" {
		return l.Category
	}
	return Uncategorized
}

type Summary struct {
	TotalSales        types.Money `json:"totalSales"`
	TotalOrders       int         `json:"totalOrders"`
	AverageOrderValue types.Money `json:"averageOrderValue"`
}

// Summarize totals the lines. Orders are counted by distinct order id.
func Summarize(lines []Line) Summary {
	var s Summary
	orders := map[string]struct{}{}
	for _, l := range lines {
		s.TotalSales = s.TotalSales.Add(l.Amount())
		orders[l.OrderID] = struct{}{}
	}
	s.TotalOrders = len(orders)
	s.AverageOrderValue = s.TotalSales.Div(s.TotalOrders)
	return s
}

type TrendPoint struct {
	Date        string      `json:"date"`
	SalesAmount types.Money `json:"salesAmount"`
	OrderCount  int         `json:"orderCount"`
}

// SalesTrend buckets lines per day and zero-fills every day from start to
// end inclusive. Days are taken in start's location.
func SalesTrend(lines []Line, start, end time.Time) []TrendPoint {
	type acc struct {
		amount types.Money
		orders map[string]struct{}
	}
	loc := start.Location()
	byDay := map[string]*acc{}
	get := func(key string) *acc {
		a, ok := byDay[key]
		if !ok {
			a = &acc{orders: map[string]struct{}{}}
			byDay[key] = a
		}
		return a
	}
	for _, l := range lines {
		a := get(BucketKey(l.CreatedAt.In(loc), Day))
		a.amount = a.amount.Add(l.Amount())
		a.orders[l.OrderID] = struct{}{}
	}
	if !start.IsZero() && !end.IsZero() {
		last := StartOfDay(end.In(loc))
		for d := StartOfDay(start); !d.After(last); d = d.AddDate(0, 0, 1) {
			get(BucketKey(d, Day))
		}
	}

	out := make([]TrendPoint, 0, len(byDay))
	for date, a := range byDay {
		out = append(out, TrendPoint{Date: date, SalesAmount: a.amount, OrderCount: len(a.orders)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

type ProductRank struct {
	ProductID     string      `json:"productId"`
	ProductName   string      `json:"productName"`
	Category      string      `json:"category"`
	SalesQuantity int         `json:"salesQuantity"`
	SalesAmount   types.Money `json:"salesAmount"`
}

// RankProducts orders products by quantity sold, highest first.
func RankProducts(lines []Line, catalog Catalog, limit int) []ProductRank {
	if limit <= 0 {
		limit = DefaultRankLimit
	}
	byProduct := map[string]*ProductRank{}
	for _, l := range lines {
		r, ok := byProduct[l.ProductID]
		if !ok {
			r = &ProductRank{ProductID: l.ProductID}
			byProduct[l.ProductID] = r
		}
		r.ProductName = catalog.ProductName(l)
		r.Category = catalog.CategoryName(l)
		r.SalesQuantity += l.Quantity
		r.SalesAmount = r.SalesAmount.Add(l.Amount())
	}

	out := make([]ProductRank, 0, len(byProduct))
	for _, r := range byProduct {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SalesQuantity != out[j].SalesQuantity {
			return out[i].SalesQuantity > out[j].SalesQuantity
		}
		if c := out[i].SalesAmount.Cmp(out[j].SalesAmount); c != 0 {
			return c > 0
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

type CategoryShare struct {
	Category    string      `json:"category"`
	SalesAmount types.Money `json:"salesAmount"`
	Value       types.Money `json:"value"`
}

// CategorySales totals sales per category name, largest first.
func CategorySales(lines []Line, catalog Catalog) []CategoryShare {
	totals := map[string]types.Money{}
	for _, l := range lines {
		name := catalog.CategoryName(l)
		totals[name] = totals[name].Add(l.Amount())
	}
	out := make([]CategoryShare, 0, len(totals))
	for name, amount := range totals {
		out = append(out, CategoryShare{Category: name, SalesAmount: amount, Value: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].SalesAmount.Cmp(out[j].SalesAmount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

type HourlyPoint struct {
	Hour        string      `json:"hour"`
	SalesAmount types.Money `json:"salesAmount"`
}

// HourlySales totals sales per hour of day. All 24 hours are present.
func HourlySales(lines []Line, loc *time.Location) []HourlyPoint {
	if loc == nil {
		loc = time.Local
	}
	out := make([]HourlyPoint, 24)
	for h := range out {
		out[h].Hour = fmt.Sprintf("%02d:00", h)
	}
	for _, l := range lines {
		h := l.CreatedAt.In(loc).Hour()
		out[h].SalesAmount = out[h].SalesAmount.Add(l.Amount())
	}
	return out
}

// FilterByProduct keeps lines for productID. Empty or AllProducts keeps all.
func FilterByProduct(lines []Line, productID string) []Line {
	if productID == "" || productID == AllProducts {
		return lines
	}
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.ProductID == productID {
			out = append(out, l)
		}
	}
	return out
}
