// Package dashboard assembles the statistics screen from stored orders.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/shelfpos/internal/categories"
	"github.com/angelmondragon/shelfpos/internal/orders"
	"github.com/angelmondragon/shelfpos/internal/products"
	"github.com/angelmondragon/shelfpos/internal/statistics"
)

// Query selects the orders a dashboard covers. Start and End are widened to
// whole days.
type Query struct {
	Start     time.Time
	End       time.Time
	ProductID string
	Limit     int
}

type Dashboard struct {
	Start      string                     `json:"start"`
	End        string                     `json:"end"`
	Summary    statistics.Summary         `json:"summary"`
	Trend      []statistics.TrendPoint    `json:"salesTrend"`
	Ranking    []statistics.ProductRank   `json:"productRanking"`
	Categories []statistics.CategoryShare `json:"categorySales"`
	Hourly     []statistics.HourlyPoint   `json:"hourlySales"`
}

type orderReader interface {
	GetByDateRange(ctx context.Context, r orders.DateRange) ([]orders.Order, error)
	GetAllOrderItems(ctx context.Context) ([]orders.OrderItem, error)
}

type productReader interface {
	GetAll(ctx context.Context) ([]products.Product, error)
}

type categoryReader interface {
	GetAll(ctx context.Context) ([]categories.Category, error)
}

type Service struct {
	orders     orderReader
	products   productReader
	categories categoryReader
	now        func() time.Time
}

func NewService(o orderReader, p productReader, c categoryReader, now func() time.Time) (*Service, error) {
	if o == nil || p == nil || c == nil {
		return nil, fmt.Errorf("dashboard: order, product and category services required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{orders: o, products: p, categories: c, now: now}, nil
}

// DefaultRange is the last seven days including today.
func (s *Service) DefaultRange() (time.Time, time.Time) {
	today := s.now()
	return statistics.StartOfDay(today.AddDate(0, 0, -6)), statistics.EndOfDay(today)
}

// Lines loads the sold lines of orders created in [start, end]. An item
// without a timestamp takes its order's.
func (s *Service) Lines(ctx context.Context, start, end time.Time) ([]statistics.Line, error) {
	inRange, err := s.orders.GetByDateRange(ctx, orders.DateRange{Start: start, End: end})
	if err != nil {
		return nil, err
	}
	placed := make(map[string]time.Time, len(inRange))
	for _, o := range inRange {
		placed[o.ID] = o.CreatedAt
	}
	items, err := s.orders.GetAllOrderItems(ctx)
	if err != nil {
		return nil, err
	}
	lines := make([]statistics.Line, 0, len(items))
	for _, it := range items {
		at, ok := placed[it.OrderID]
		if !ok {
			continue
		}
		line := it.Line()
		if line.CreatedAt.IsZero() {
			line.CreatedAt = at
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Build computes every dashboard figure for q.
func (s *Service) Build(ctx context.Context, q Query) (*Dashboard, error) {
	start, end := q.Start, q.End
	if start.IsZero() || end.IsZero() {
		defStart, defEnd := s.DefaultRange()
		if start.IsZero() {
			start = defStart
		}
		if end.IsZero() {
			end = defEnd
		}
	}
	start, end = statistics.StartOfDay(start), statistics.EndOfDay(end)
	if end.Before(start) {
		start, end = statistics.StartOfDay(end), statistics.EndOfDay(start)
	}

	lines, err := s.Lines(ctx, start, end)
	if err != nil {
		return nil, err
	}
	ps, err := s.products.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	cs, err := s.categories.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	catalog := statistics.NewCatalog(ps, cs)
	lines = statistics.FilterByProduct(lines, q.ProductID)

	return &Dashboard{
		Start:      start.Format(time.DateOnly),
		End:        end.Format(time.DateOnly),
		Summary:    statistics.Summarize(lines),
		Trend:      statistics.SalesTrend(lines, start, end),
		Ranking:    statistics.RankProducts(lines, catalog, q.Limit),
		Categories: statistics.CategorySales(lines, catalog),
		Hourly:     statistics.HourlySales(lines, start.Location()),
	}, nil
}
