// Package checkout runs the till: scan barcodes into a cart and turn the
// cart into an order.
package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/shelfpos/internal/categories"
	"github.com/angelmondragon/shelfpos/internal/orders"
	"github.com/angelmondragon/shelfpos/internal/products"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/logger"
)

type productLookup interface {
	GetByID(ctx context.Context, id string) (*products.Product, error)
	GetByBarcode(ctx context.Context, barcode string) (*products.Product, error)
}

type categoryLookup interface {
	GetByID(ctx context.Context, id string) (*categories.Category, error)
}

type orderCreator interface {
	Create(ctx context.Context, input orders.CreateInput) (*orders.Details, error)
}

// Service is the till. It owns a single cart.
type Service struct {
	cart       *Cart
	products   productLookup
	categories categoryLookup
	orders     orderCreator
	logg       *logger.Logger
}

func NewService(p productLookup, c categoryLookup, o orderCreator, logg *logger.Logger) (*Service, error) {
	if p == nil || c == nil || o == nil {
		return nil, fmt.Errorf("checkout: product, category and order services required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{cart: NewCart(), products: p, categories: c, orders: o, logg: logg}, nil
}

func (s *Service) Cart() *Cart { return s.cart }

// Scan adds qty of the product carrying barcode.
func (s *Service) Scan(ctx context.Context, barcode string, qty int) (*products.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "barcode is required")
	}
	p, err := s.products.GetByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no product with this barcode").
			WithDetails(map[string]any{"barcode": barcode})
	}
	s.cart.Add(*p, qty)
	return p, nil
}

// AddProduct adds qty of a product picked by id instead of scanned.
func (s *Service) AddProduct(ctx context.Context, productID string, qty int) (*products.Product, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	s.cart.Add(*p, qty)
	return p, nil
}

// Submit turns a snapshot of the cart into an order and, on success, takes
// the submitted lines out of the cart. The product name and category name
// are copied onto each line.
func (s *Service) Submit(ctx context.Context) (*orders.Details, error) {
	view := s.cart.View()
	items := view.Items
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	names := map[string]string{}
	lines := make([]orders.LineInput, 0, len(items))
	for _, it := range items {
		subtotal := it.Subtotal
		line := orders.LineInput{
			ProductID:   it.Product.ID,
			ProductName: it.Product.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.Product.Price,
			Subtotal:    &subtotal,
		}
		if id := it.Product.CategoryID; id != "" {
			name, ok := names[id]
			if !ok {
				name = s.categoryName(ctx, id)
				names[id] = name
			}
			line.Category = name
		}
		lines = append(lines, line)
	}
	total := view.TotalAmount

	details, err := s.orders.Create(ctx, orders.CreateInput{Items: lines, TotalAmount: &total})
	if err != nil {
		return nil, err
	}
	s.cart.Settle(items)
	return details, nil
}

// categoryName falls back to the id when the category cannot be read.
func (s *Service) categoryName(ctx context.Context, id string) string {
	c, err := s.categories.GetByID(ctx, id)
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(s.logg.WithField(ctx, "category_id", id), "category lookup failed at checkout")
		}
		return id
	}
	return c.Name
}
