package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/shelfpos/internal/categories"
	"github.com/angelmondragon/shelfpos/internal/kv"
	"github.com/angelmondragon/shelfpos/internal/kv/kvtest"
	"github.com/angelmondragon/shelfpos/internal/products"
	"github.com/angelmondragon/shelfpos/internal/statistics"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, store *kv.Store, clock *testClock) Service {
	t.Helper()
	seq := 0
	svc, err := NewService(store, Options{
		Now: clock.Now,
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		},
	})
	require.NoError(t, err)
	return svc
}

func money(t *testing.T, s string) types.Money {
	t.Helper()
	m, err := types.ParseMoney(s)
	require.NoError(t, err)
	return m
}

func moneyPtr(t *testing.T, s string) *types.Money {
	m := money(t, s)
	return &m
}

func TestCreateComputesSubtotalsAndTotal(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	store := kvtest.NewStore(t)
	svc := newTestService(t, store, clock)

	got, err := svc.Create(ctx, CreateInput{Items: []LineInput{
		{ProductID: "p1", Quantity: 3, UnitPrice: money(t, "0.10")},
		{ProductID: "p2", Quantity: 2, UnitPrice: money(t, "1.25"), Subtotal: moneyPtr(t, "2.50")},
	}})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Order.Status)
	require.Len(t, got.Items, 2)
	assert.True(t, money(t, "0.30").Equal(got.Items[0].Subtotal), got.Items[0].Subtotal.String())
	assert.True(t, money(t, "2.80").Equal(got.Order.TotalAmount), got.Order.TotalAmount.String())
	for _, it := range got.Items {
		assert.Equal(t, got.Order.ID, it.OrderID)
		assert.Equal(t, clock.now, it.CreatedAt)
	}

	details, err := svc.GetOrderDetails(ctx, got.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, details.Order.Status)
	assert.Len(t, details.Items, 2)
}

func TestCreateRejectsInconsistentInput(t *testing.T) {
	ctx := context.Background()
	store := kvtest.NewStore(t)
	svc := newTestService(t, store, &testClock{now: time.Now()})

	tests := []struct {
		name  string
		input CreateInput
	}{
		{name: "no items", input: CreateInput{}},
		{name: "zero quantity", input: CreateInput{Items: []LineInput{{ProductID: "p", Quantity: 0, UnitPrice: money(t, "1")}}}},
		{name: "negative price", input: CreateInput{Items: []LineInput{{ProductID: "p", Quantity: 1, UnitPrice: money(t, "-1")}}}},
		{name: "missing product", input: CreateInput{Items: []LineInput{{Quantity: 1, UnitPrice: money(t, "1")}}}},
		{name: "wrong subtotal", input: CreateInput{Items: []LineInput{{ProductID: "p", Quantity: 2, UnitPrice: money(t, "1"), Subtotal: moneyPtr(t, "3")}}}},
		{name: "wrong total", input: CreateInput{Items: []LineInput{{ProductID: "p", Quantity: 2, UnitPrice: money(t, "1")}}, TotalAmount: moneyPtr(t, "5")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.input)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts[kv.Orders])
	assert.Zero(t, counts[kv.OrderItems])
}

func TestCreateLeavesOrderPendingWhenItemWriteFails(t *testing.T) {
	ctx := context.Background()
	store, backend := kvtest.NewFaultyStore(t)
	svc := newTestService(t, store, &testClock{now: time.Now()})

	backend.FailSetsAfter(kv.OrderItems, 1)
	_, err := svc.Create(ctx, CreateInput{Items: []LineInput{
		{ProductID: "a", Quantity: 1, UnitPrice: money(t, "1")},
		{ProductID: "b", Quantity: 1, UnitPrice: money(t, "1")},
	}})
	require.Error(t, err)
	require.True(t, errors.Is(err, kvtest.ErrInjected))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStorageIO, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, StatusPending, details["status"])
	assert.Equal(t, []string{"id-002"}, details["writtenItemIds"])

	backend.Reset()
	stored, err := svc.GetOrderDetails(ctx, details["orderId"].(string))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Order.Status)
	assert.Len(t, stored.Items, 1)
}

func TestDateRangeQueries(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{}
	svc := newTestService(t, kvtest.NewStore(t), clock)

	place := func(at time.Time, qty int, price string) *Details {
		clock.now = at
		d, err := svc.Create(ctx, CreateInput{Items: []LineInput{{ProductID: "p" + price, Quantity: qty, UnitPrice: money(t, price)}}})
		require.NoError(t, err)
		return d
	}
	day := func(d, h int) time.Time { return time.Date(2024, 3, d, h, 0, 0, 0, time.UTC) }
	first := place(day(4, 9), 1, "2")   // Monday
	second := place(day(6, 18), 2, "3") // Wednesday
	third := place(day(11, 8), 1, "5")  // next Monday
	place(day(20, 8), 1, "7")

	r := DateRange{Start: statistics.StartOfDay(day(4, 0)), End: statistics.EndOfDay(day(11, 0))}
	got, err := svc.GetByDateRange(ctx, r)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{third.Order.ID, second.Order.ID, first.Order.ID}, []string{got[0].ID, got[1].ID, got[2].ID})

	all, err := svc.GetAllOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	daily, err := svc.GetSalesStatistics(ctx, r, statistics.Day)
	require.NoError(t, err)
	require.Len(t, daily, 3)
	assert.Equal(t, "2024-03-04", daily[0].Date)
	assert.True(t, money(t, "6").Equal(daily[1].Amount))

	weekly, err := svc.GetSalesStatistics(ctx, r, statistics.Week)
	require.NoError(t, err)
	require.Len(t, weekly, 2)
	assert.Equal(t, SalesPoint{Date: "2024-03-04", Amount: weekly[0].Amount, Count: 2}, weekly[0])
	assert.True(t, money(t, "8").Equal(weekly[0].Amount))
	assert.Equal(t, "2024-03-11", weekly[1].Date)

	monthly, err := svc.GetSalesStatistics(ctx, DateRange{}, statistics.Month)
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, "2024-03-01", monthly[0].Date)
	assert.Equal(t, 4, monthly[0].Count)

	top, err := svc.GetTopProducts(ctx, 10, r)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "p3", top[0].ProductID)

	empty, err := svc.GetTopProducts(ctx, 10, DateRange{Start: day(25, 0), End: day(26, 0)})
	require.NoError(t, err)
	assert.Empty(t, empty, "a range without orders ranks nothing")
}

func TestUpdateReplacesItemsAndRecomputesTotal(t *testing.T) {
	ctx := context.Background()
	store := kvtest.NewStore(t)
	svc := newTestService(t, store, &testClock{now: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)})

	created, err := svc.Create(ctx, CreateInput{Items: []LineInput{
		{ProductID: "a", Quantity: 1, UnitPrice: money(t, "1")},
		{ProductID: "b", Quantity: 1, UnitPrice: money(t, "1")},
	}})
	require.NoError(t, err)

	order := *created.Order
	order.TotalAmount = money(t, "999")
	updated, err := svc.Update(ctx, order, []OrderItem{
		{ProductID: "c", Quantity: 4, UnitPrice: money(t, "2.5"), Subtotal: money(t, "1")},
	})
	require.NoError(t, err)
	assert.True(t, money(t, "10").Equal(updated.Order.TotalAmount))
	require.Len(t, updated.Items, 1)
	assert.True(t, money(t, "10").Equal(updated.Items[0].Subtotal))
	assert.Equal(t, order.ID, updated.Items[0].OrderID)
	assert.Equal(t, created.Order.CreatedAt, updated.Items[0].CreatedAt)

	items, err := svc.GetOrderItems(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "c", items[0].ProductID)

	_, err = svc.Update(ctx, Order{ID: "missing"}, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Update(ctx, order, []OrderItem{{ProductID: "c", Quantity: 0}})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateOnlyMovesStatusToCancelled(t *testing.T) {
	ctx := context.Background()
	store := kvtest.NewStore(t)
	svc := newTestService(t, store, &testClock{now: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)})

	created, err := svc.Create(ctx, CreateInput{Items: []LineInput{
		{ProductID: "a", Quantity: 1, UnitPrice: money(t, "1")},
	}})
	require.NoError(t, err)
	lines := []OrderItem{{ProductID: "a", Quantity: 1, UnitPrice: money(t, "1")}}

	order := *created.Order
	order.Status = StatusPending
	_, err = svc.Update(ctx, order, lines)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	order.Status = StatusCancelled
	cancelled, err := svc.Update(ctx, order, lines)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Order.Status)

	order.Status = StatusCompleted
	_, err = svc.Update(ctx, order, lines)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, err := svc.GetOrderDetails(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, details.Order.Status)

	order.Status = ""
	_, err = svc.Update(ctx, order, lines)
	require.NoError(t, err, "an empty status keeps the stored one")
}

func TestDeleteAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	store := kvtest.NewStore(t)
	svc := newTestService(t, store, &testClock{now: time.Now()})

	line := []LineInput{{ProductID: "a", Quantity: 1, UnitPrice: money(t, "1")}}
	keep, err := svc.Create(ctx, CreateInput{Items: line})
	require.NoError(t, err)
	drop, err := svc.Create(ctx, CreateInput{Items: line})
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(ctx, keep.Order.ID))
	details, err := svc.GetOrderDetails(ctx, keep.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, details.Order.Status)
	assert.Len(t, details.Items, 1, "soft delete keeps items")

	require.NoError(t, svc.Delete(ctx, drop.Order.ID))
	_, err = svc.GetOrderDetails(ctx, drop.Order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	items, err := svc.GetAllOrderItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, keep.Order.ID, items[0].OrderID)

	require.True(t, pkgerrors.IsCode(svc.Delete(ctx, "nope"), pkgerrors.CodeNotFound))
	require.True(t, pkgerrors.IsCode(svc.SoftDelete(ctx, "nope"), pkgerrors.CodeNotFound))
}

func TestDeleteOldOrdersBoundary(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	cutoff := now.AddDate(-1, 0, 0)
	store := kvtest.NewStore(t)
	svc := newTestService(t, store, &testClock{now: now})

	seed := map[string]time.Time{
		"before": cutoff.Add(-time.Second),
		"exact":  cutoff,
		"after":  cutoff.Add(time.Second),
	}
	for id, at := range seed {
		require.NoError(t, svc.RecoverOrder(ctx, Order{ID: id, CreatedAt: at, Status: StatusCompleted, TotalAmount: money(t, "1")}))
		require.NoError(t, svc.RecoverOrderItem(ctx, OrderItem{ID: id + "-item", OrderID: id, ProductID: "p", Quantity: 1, UnitPrice: money(t, "1"), Subtotal: money(t, "1"), CreatedAt: at}))
	}

	res, err := svc.DeleteOldOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, PurgeResult{Count: 1, Success: true}, res)

	orders, err := svc.GetAllOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.NotEqual(t, "before", o.ID)
	}
	items, err := svc.GetAllOrderItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	res, err = svc.DeleteOldOrders(ctx)
	require.NoError(t, err)
	assert.Equal(t, PurgeResult{Count: 0, Success: true}, res)
}

func TestRecoverWritesVerbatim(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, kvtest.NewStore(t), &testClock{now: time.Now()})

	at := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	order := Order{ID: "legacy-1", TotalAmount: money(t, "12.34"), CreatedAt: at, Status: StatusCancelled}
	item := OrderItem{ID: "legacy-1-a", OrderID: "legacy-1", ProductID: "gone", ProductName: "Old Soap", Quantity: 2, UnitPrice: money(t, "6.17"), Subtotal: money(t, "12.34"), CreatedAt: at}
	require.NoError(t, svc.RecoverOrder(ctx, order))
	require.NoError(t, svc.RecoverOrderItem(ctx, item))

	details, err := svc.GetOrderDetails(ctx, "legacy-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, details.Order.ID)
	assert.Equal(t, order.Status, details.Order.Status)
	assert.True(t, order.CreatedAt.Equal(details.Order.CreatedAt))
	require.Len(t, details.Items, 1)
	assert.Equal(t, "Old Soap", details.Items[0].ProductName)

	require.True(t, pkgerrors.IsCode(svc.RecoverOrder(ctx, Order{}), pkgerrors.CodeValidation))
}

func TestCheckoutScenarioRanksTopProduct(t *testing.T) {
	ctx := context.Background()
	store := kvtest.NewStore(t)
	catSvc, err := categories.NewService(store, categories.Options{})
	require.NoError(t, err)
	prodSvc, err := products.NewService(store, catSvc, products.Options{})
	require.NoError(t, err)
	svc := newTestService(t, store, &testClock{now: time.Now()})

	bev, err := catSvc.Add(ctx, "Beverages")
	require.NoError(t, err)
	water, err := prodSvc.Add(ctx, products.Input{Name: "Water", Barcode: "123", Price: money(t, "2.00"), CategoryID: bev.ID})
	require.NoError(t, err)

	created, err := svc.Create(ctx, CreateInput{Items: []LineInput{
		{ProductID: water.ID, Quantity: 3, UnitPrice: money(t, "2.00"), Subtotal: moneyPtr(t, "6.00")},
	}})
	require.NoError(t, err)
	assert.True(t, money(t, "6.00").Equal(created.Order.TotalAmount))

	top, err := svc.GetTopProducts(ctx, 1, DateRange{})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, water.ID, top[0].ProductID)
	assert.Equal(t, 3, top[0].Quantity)
	assert.True(t, money(t, "6.00").Equal(top[0].Amount))
}
