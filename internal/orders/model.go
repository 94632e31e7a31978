package orders

import (
	"time"

	"github.com/angelmondragon/shelfpos/internal/statistics"
	"github.com/angelmondragon/shelfpos/pkg/types"
)

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending marks an order whose items are not all written yet.
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Order is a completed sale. Its lines live in the order_items collection.
type Order struct {
	ID          string      `json:"id" validate:"required"`
	TotalAmount types.Money `json:"totalAmount"`
	CreatedAt   time.Time   `json:"createdAt"`
	Status      Status      `json:"status" validate:"oneof=pending completed cancelled"`
}

// OrderItem is one sold line. ProductName and Category are copied from the
// catalog at sale time so reports survive product deletion.
type OrderItem struct {
	ID          string      `json:"id"`
	OrderID     string      `json:"orderId"`
	ProductID   string      `json:"productId" validate:"required"`
	ProductName string      `json:"productName,omitempty"`
	Category    string      `json:"category,omitempty"`
	Quantity    int         `json:"quantity" validate:"gt=0"`
	UnitPrice   types.Money `json:"unitPrice" validate:"gte=0"`
	Subtotal    types.Money `json:"subtotal"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Line converts the item for the statistics helpers.
func (i OrderItem) Line() statistics.Line {
	return statistics.Line{
		OrderID:     i.OrderID,
		ProductID:   i.ProductID,
		ProductName: i.ProductName,
		Category:    i.Category,
		Quantity:    i.Quantity,
		UnitPrice:   i.UnitPrice,
		CreatedAt:   i.CreatedAt,
	}
}

// LineInput is one cart line handed to Create. A supplied Subtotal must equal
// Quantity x UnitPrice.
type LineInput struct {
	ProductID   string       `json:"productId" validate:"required"`
	ProductName string       `json:"productName,omitempty"`
	Category    string       `json:"category,omitempty"`
	Quantity    int          `json:"quantity" validate:"gt=0"`
	UnitPrice   types.Money  `json:"unitPrice" validate:"gte=0"`
	Subtotal    *types.Money `json:"subtotal,omitempty"`
}

// CreateInput is the checkout payload. TotalAmount is optional; when present
// it must match the computed total.
type CreateInput struct {
	Items       []LineInput  `json:"items" validate:"min=1,dive"`
	TotalAmount *types.Money `json:"totalAmount,omitempty"`
}

type Details struct {
	Order *Order      `json:"order"`
	Items []OrderItem `json:"items"`
}

// SalesPoint is one bucket of GetSalesStatistics.
type SalesPoint struct {
	Date   string      `json:"date"`
	Amount types.Money `json:"amount"`
	Count  int         `json:"count"`
}

type TopProduct struct {
	ProductID string      `json:"productId"`
	Quantity  int         `json:"quantity"`
	Amount    types.Money `json:"amount"`
}

// PurgeResult reports DeleteOldOrders.
type PurgeResult struct {
	Count   int  `json:"count"`
	Success bool `json:"success"`
}

// DateRange bounds a query inclusively. A zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	return statistics.InRange(t, r.Start, r.End)
}

func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}
