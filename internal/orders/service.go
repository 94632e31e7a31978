package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/shelfpos/internal/kv"
	"github.com/angelmondragon/shelfpos/internal/statistics"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/logger"
	"github.com/angelmondragon/shelfpos/pkg/types"
	"github.com/angelmondragon/shelfpos/pkg/validate"
	"github.com/google/uuid"
)

// RetentionYears is how long DeleteOldOrders keeps orders.
const RetentionYears = 1

// Service records sales and answers the order-level reports.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Details, error)
	GetSalesStatistics(ctx context.Context, r DateRange, interval statistics.Interval) ([]SalesPoint, error)
	GetTopProducts(ctx context.Context, limit int, r DateRange) ([]TopProduct, error)
	GetAllOrders(ctx context.Context) ([]Order, error)
	GetByDateRange(ctx context.Context, r DateRange) ([]Order, error)
	GetAllOrderItems(ctx context.Context) ([]OrderItem, error)
	GetOrderItems(ctx context.Context, orderID string) ([]OrderItem, error)
	GetOrderDetails(ctx context.Context, orderID string) (*Details, error)
	Update(ctx context.Context, order Order, items []OrderItem) (*Details, error)
	Delete(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
	DeleteOldOrders(ctx context.Context) (PurgeResult, error)
	RecoverOrder(ctx context.Context, order Order) error
	RecoverOrderItem(ctx context.Context, item OrderItem) error
}

// Options tune an order service. Zero values pick defaults.
type Options struct {
	Now    func() time.Time
	NewID  func() string
	Logger *logger.Logger
}

type service struct {
	mu    sync.Mutex
	ords  *kv.Typed[Order]
	items *kv.Typed[OrderItem]
	now   func() time.Time
	newID func() string
	logg  *logger.Logger
}

func NewService(store *kv.Store, opts Options) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &service{
		ords:  kv.NewTyped[Order](store.Orders()),
		items: kv.NewTyped[OrderItem](store.OrderItems()),
		now:   opts.Now,
		newID: opts.NewID,
		logg:  opts.Logger,
	}, nil
}

// Create writes the order as pending, then each item, then flips the order
// to completed. If an item write fails the order stays pending and the
// returned error lists the item ids that were written.
func (s *service) Create(ctx context.Context, input CreateInput) (*Details, error) {
	if err := validate.Struct(&input); err != nil {
		return nil, err
	}

	now := s.now()
	orderID := s.newID()
	items := make([]OrderItem, 0, len(input.Items))
	var total types.Money
	for i, line := range input.Items {
		subtotal := line.UnitPrice.Times(line.Quantity)
		if line.Subtotal != nil && !line.Subtotal.Equal(subtotal) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal does not match quantity x unit price").
				WithDetails(map[string]any{"index": i, "expected": subtotal, "got": *line.Subtotal})
		}
		total = total.Add(subtotal)
		items = append(items, OrderItem{
			ID:          s.newID(),
			OrderID:     orderID,
			ProductID:   strings.TrimSpace(line.ProductID),
			ProductName: line.ProductName,
			Category:    line.Category,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Subtotal:    subtotal,
			CreatedAt:   now,
		})
	}
	if input.TotalAmount != nil && !input.TotalAmount.Equal(total) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total amount does not match the sum of subtotals").
			WithDetails(map[string]any{"expected": total, "got": *input.TotalAmount})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = s.logg.WithEntityID(ctx, orderID)
	order := &Order{ID: orderID, TotalAmount: total, CreatedAt: now, Status: StatusPending}
	if err := s.ords.Put(ctx, orderID, order); err != nil {
		return nil, err
	}

	written := make([]string, 0, len(items))
	for i := range items {
		if err := s.items.Put(ctx, items[i].ID, &items[i]); err != nil {
			s.logg.Error(ctx, "order left pending after item write failure", err)
			code := pkgerrors.CodeStorageIO
			if typed := pkgerrors.As(err); typed != nil {
				code = typed.Code()
			}
			return nil, pkgerrors.Wrap(code, err, "order items incomplete").WithDetails(map[string]any{
				"orderId":        orderID,
				"status":         StatusPending,
				"writtenItemIds": written,
			})
		}
		written = append(written, items[i].ID)
	}

	order.Status = StatusCompleted
	if err := s.ords.Put(ctx, orderID, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageIO, err, "complete order").WithDetails(map[string]any{
			"orderId":        orderID,
			"status":         StatusPending,
			"writtenItemIds": written,
		})
	}
	s.logg.Info(s.logg.WithField(ctx, "items", len(items)), "order created")
	return &Details{Order: order, Items: items}, nil
}

// GetSalesStatistics buckets orders created in r by interval. Buckets are
// keyed by their first day and returned oldest first.
func (s *service) GetSalesStatistics(ctx context.Context, r DateRange, interval statistics.Interval) ([]SalesPoint, error) {
	found, err := s.ords.FindAll(ctx, func(o *Order) bool { return r.Contains(o.CreatedAt) })
	if err != nil {
		return nil, err
	}
	loc := time.Local
	if !r.Start.IsZero() {
		loc = r.Start.Location()
	}
	buckets := map[string]*SalesPoint{}
	for _, o := range found {
		key := statistics.BucketKey(o.CreatedAt.In(loc), interval)
		p, ok := buckets[key]
		if !ok {
			p = &SalesPoint{Date: key}
			buckets[key] = p
		}
		p.Amount = p.Amount.Add(o.TotalAmount)
		p.Count++
	}
	out := make([]SalesPoint, 0, len(buckets))
	for _, p := range buckets {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// GetTopProducts ranks products by quantity sold. With a non-zero range only
// items of orders created in it count.
func (s *service) GetTopProducts(ctx context.Context, limit int, r DateRange) ([]TopProduct, error) {
	if limit <= 0 {
		limit = statistics.DefaultRankLimit
	}
	var inRange map[string]struct{}
	if !r.IsZero() {
		found, err := s.ords.FindAll(ctx, func(o *Order) bool { return r.Contains(o.CreatedAt) })
		if err != nil {
			return nil, err
		}
		inRange = make(map[string]struct{}, len(found))
		for _, o := range found {
			inRange[o.ID] = struct{}{}
		}
	}
	items, err := s.items.FindAll(ctx, func(i *OrderItem) bool {
		if inRange == nil {
			return true
		}
		_, ok := inRange[i.OrderID]
		return ok
	})
	if err != nil {
		return nil, err
	}

	byProduct := map[string]*TopProduct{}
	for _, it := range items {
		tp, ok := byProduct[it.ProductID]
		if !ok {
			tp = &TopProduct{ProductID: it.ProductID}
			byProduct[it.ProductID] = tp
		}
		tp.Quantity += it.Quantity
		tp.Amount = tp.Amount.Add(it.Subtotal)
	}
	out := make([]TopProduct, 0, len(byProduct))
	for _, tp := range byProduct {
		out = append(out, *tp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetAllOrders returns every order, newest first.
func (s *service) GetAllOrders(ctx context.Context) ([]Order, error) {
	return s.GetByDateRange(ctx, DateRange{})
}

// GetByDateRange returns orders created in r, newest first.
func (s *service) GetByDateRange(ctx context.Context, r DateRange) ([]Order, error) {
	found, err := s.ords.FindAll(ctx, func(o *Order) bool { return r.Contains(o.CreatedAt) })
	if err != nil {
		return nil, err
	}
	out := make([]Order, len(found))
	for i, o := range found {
		out[i] = *o
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *service) GetAllOrderItems(ctx context.Context) ([]OrderItem, error) {
	return s.findItems(ctx, nil)
}

func (s *service) GetOrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	return s.findItems(ctx, func(i *OrderItem) bool { return i.OrderID == orderID })
}

// GetOrderDetails returns the order and its items, or NOT_FOUND.
func (s *service) GetOrderDetails(ctx context.Context, orderID string) (*Details, error) {
	order, err := s.ords.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, notFound(orderID)
	}
	items, err := s.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &Details{Order: order, Items: items}, nil
}

// Update replaces the order and all of its items. Subtotals and the total are
// recomputed from the new lines. The status may stay or become cancelled.
func (s *service) Update(ctx context.Context, order Order, items []OrderItem) (*Details, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.ords.Get(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, notFound(order.ID)
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = existing.CreatedAt
	}
	if order.Status == "" {
		order.Status = existing.Status
	}
	if err := validate.Struct(&order); err != nil {
		return nil, err
	}
	if order.Status != existing.Status && order.Status != StatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orders can only move to cancelled").
			WithDetails(map[string]any{"id": order.ID, "from": existing.Status, "to": order.Status})
	}

	var total types.Money
	next := make([]OrderItem, len(items))
	for i, it := range items {
		if err := validate.Struct(&it); err != nil {
			return nil, err
		}
		if it.ID == "" {
			it.ID = s.newID()
		}
		if it.CreatedAt.IsZero() {
			it.CreatedAt = order.CreatedAt
		}
		it.OrderID = order.ID
		it.Subtotal = it.UnitPrice.Times(it.Quantity)
		total = total.Add(it.Subtotal)
		next[i] = it
	}
	order.TotalAmount = total

	if err := s.ords.Put(ctx, order.ID, &order); err != nil {
		return nil, err
	}
	if err := s.removeItems(ctx, map[string]struct{}{order.ID: {}}); err != nil {
		return nil, err
	}
	for i := range next {
		if err := s.items.Put(ctx, next[i].ID, &next[i]); err != nil {
			return nil, err
		}
	}
	s.logg.Info(s.logg.WithEntityID(ctx, order.ID), "order updated")
	return &Details{Order: &order, Items: next}, nil
}

// Delete removes the order and its items.
func (s *service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.ords.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return notFound(id)
	}
	if err := s.ords.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.removeItems(ctx, map[string]struct{}{id: {}}); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithEntityID(ctx, id), "order deleted")
	return nil
}

// SoftDelete marks the order cancelled and keeps its items.
func (s *service) SoftDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.ords.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return notFound(id)
	}
	existing.Status = StatusCancelled
	if err := s.ords.Put(ctx, id, existing); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithEntityID(ctx, id), "order cancelled")
	return nil
}

// DeleteOldOrders removes orders created strictly before now minus one year,
// together with their items.
func (s *service) DeleteOldOrders(ctx context.Context) (PurgeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().AddDate(-RetentionYears, 0, 0)
	old, err := s.ords.FindAll(ctx, func(o *Order) bool { return o.CreatedAt.Before(cutoff) })
	if err != nil {
		return PurgeResult{}, err
	}
	if len(old) == 0 {
		return PurgeResult{Success: true}, nil
	}

	ids := make(map[string]struct{}, len(old))
	for _, o := range old {
		ids[o.ID] = struct{}{}
	}
	if err := s.removeItems(ctx, ids); err != nil {
		return PurgeResult{}, err
	}
	for id := range ids {
		if err := s.ords.Delete(ctx, id); err != nil {
			return PurgeResult{}, err
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"count": len(ids), "cutoff": cutoff}), "old orders purged")
	return PurgeResult{Count: len(ids), Success: true}, nil
}

// RecoverOrder writes an order from a backup verbatim.
func (s *service) RecoverOrder(ctx context.Context, order Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ords.Put(ctx, order.ID, &order)
}

// RecoverOrderItem writes an order item from a backup verbatim.
func (s *service) RecoverOrderItem(ctx context.Context, item OrderItem) error {
	if strings.TrimSpace(item.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order item id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Put(ctx, item.ID, &item)
}

func (s *service) findItems(ctx context.Context, match func(*OrderItem) bool) ([]OrderItem, error) {
	found, err := s.items.FindAll(ctx, match)
	if err != nil {
		return nil, err
	}
	out := make([]OrderItem, len(found))
	for i, it := range found {
		out[i] = *it
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// removeItems deletes every item whose order id is in orderIDs.
func (s *service) removeItems(ctx context.Context, orderIDs map[string]struct{}) error {
	doomed, err := s.items.FindAll(ctx, func(i *OrderItem) bool {
		_, ok := orderIDs[i.OrderID]
		return ok
	})
	if err != nil {
		return err
	}
	for _, it := range doomed {
		if err := s.items.Delete(ctx, it.ID); err != nil {
			return err
		}
	}
	return nil
}

func notFound(id string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").WithDetails(map[string]any{"id": id})
}
