package products

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/shelfpos/internal/categories"
	"github.com/angelmondragon/shelfpos/internal/kv"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/logger"
	"github.com/angelmondragon/shelfpos/pkg/pagination"
	"github.com/angelmondragon/shelfpos/pkg/validate"
	"github.com/google/uuid"
)

// Service manages the product catalog.
type Service interface {
	GetAll(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByBarcode(ctx context.Context, barcode string) (*Product, error)
	GetProductList(ctx context.Context, query ListQuery) (*ListResult, error)
	Add(ctx context.Context, input Input) (*Product, error)
	Update(ctx context.Context, id string, patch Patch) (*Product, error)
	Delete(ctx context.Context, id string) error
	Recover(ctx context.Context, product Product) error
}

type categoryLookup interface {
	GetByID(ctx context.Context, id string) (*categories.Category, error)
}

// Options tune a product service. Zero values pick defaults.
type Options struct {
	Now    func() time.Time
	NewID  func() string
	Logger *logger.Logger
}

type service struct {
	mu         sync.Mutex
	products   *kv.Typed[Product]
	categories categoryLookup
	now        func() time.Time
	newID      func() string
	logg       *logger.Logger
}

// NewService constructs a product service.
func NewService(store *kv.Store, categorySvc categoryLookup, opts Options) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if categorySvc == nil {
		return nil, fmt.Errorf("category service required")
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
		products:   kv.NewTyped[Product](store.Products()),
		categories: categorySvc,
		now:        opts.Now,
		newID:      opts.NewID,
		logg:       opts.Logger,
	}, nil
}

// GetAll returns every product ordered by creation time.
func (s *service) GetAll(ctx context.Context) ([]Product, error) {
	found, err := s.products.FindAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := flatten(found)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Product, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound(id)
	}
	return p, nil
}

// GetByBarcode is an exact match; nil when nothing carries the barcode.
func (s *service) GetByBarcode(ctx context.Context, barcode string) (*Product, error) {
	return s.products.FindOne(ctx, func(p *Product) bool { return p.Barcode == barcode })
}

func (s *service) GetProductList(ctx context.Context, query ListQuery) (*ListResult, error) {
	q, err := query.normalize()
	if err != nil {
		return nil, err
	}
	found, err := s.products.FindAll(ctx, q.matches)
	if err != nil {
		return nil, err
	}
	items := flatten(found)
	sortProducts(items, q.SortBy, q.SortOrder)
	return &ListResult{List: pagination.Slice(items, q.Page), Total: len(items)}, nil
}

func (s *service) Add(ctx context.Context, input Input) (*Product, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Barcode = strings.TrimSpace(input.Barcode)
	input.CategoryID = normalizeCategory(input.CategoryID)
	if err := validate.Struct(&input); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}
	if err := s.ensureBarcodeFree(ctx, input.Barcode, ""); err != nil {
		return nil, err
	}

	now := s.now()
	p := &Product{
		ID:         s.newID(),
		Name:       input.Name,
		Barcode:    input.Barcode,
		Price:      input.Price,
		CategoryID: input.CategoryID,
		Unit:       strings.TrimSpace(input.Unit),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.products.Put(ctx, p.ID, p); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithEntityID(ctx, p.ID), "product added")
	return p, nil
}

func (s *service) Update(ctx context.Context, id string, patch Patch) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, notFound(id)
	}

	next := *existing
	if patch.Name != nil {
		next.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Barcode != nil {
		next.Barcode = strings.TrimSpace(*patch.Barcode)
	}
	if patch.Price != nil {
		next.Price = *patch.Price
	}
	if patch.Unit != nil {
		next.Unit = strings.TrimSpace(*patch.Unit)
	}
	if patch.CategoryID != nil {
		next.CategoryID = normalizeCategory(*patch.CategoryID)
	}
	if err := validate.Struct(&next); err != nil {
		return nil, err
	}

	if next.CategoryID != existing.CategoryID {
		if err := s.ensureCategory(ctx, next.CategoryID); err != nil {
			return nil, err
		}
	}
	if next.Barcode != existing.Barcode {
		if err := s.ensureBarcodeFree(ctx, next.Barcode, id); err != nil {
			return nil, err
		}
	}

	next.UpdatedAt = s.now()
	if err := s.products.Put(ctx, id, &next); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithEntityID(ctx, id), "product updated")
	return &next, nil
}

// Delete removes the product. Order items keep their reference.
func (s *service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.products.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return notFound(id)
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithEntityID(ctx, id), "product deleted")
	return nil
}

// Recover writes a product from a backup, keeping its id and timestamps.
func (s *service) Recover(ctx context.Context, product Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product.CategoryID = normalizeCategory(product.CategoryID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureCategory(ctx, product.CategoryID); err != nil {
		return err
	}
	if err := s.ensureBarcodeFree(ctx, product.Barcode, product.ID); err != nil {
		return err
	}
	return s.products.Put(ctx, product.ID, &product)
}

func (s *service) ensureCategory(ctx context.Context, categoryID string) error {
	if categoryID == "" {
		return nil
	}
	if _, err := s.categories.GetByID(ctx, categoryID); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist").
				WithDetails(map[string]any{"category_id": categoryID})
		}
		return err
	}
	return nil
}

func (s *service) ensureBarcodeFree(ctx context.Context, barcode, exceptID string) error {
	if barcode == "" {
		return nil
	}
	clash, err := s.products.FindOne(ctx, func(p *Product) bool {
		return p.Barcode == barcode && p.ID != exceptID
	})
	if err != nil {
		return err
	}
	if clash != nil {
		return pkgerrors.New(pkgerrors.CodeDuplicateKey, fmt.Sprintf("barcode %q already exists", barcode)).
			WithDetails(map[string]any{"field": "barcode", "existingId": clash.ID})
	}
	return nil
}

// normalizeCategory maps the list-filter sentinel to "no category".
func normalizeCategory(id string) string {
	id = strings.TrimSpace(id)
	if id == Uncategorized {
		return ""
	}
	return id
}

func notFound(id string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithDetails(map[string]any{"id": id})
}

func flatten(in []*Product) []Product {
	out := make([]Product, len(in))
	for i, p := range in {
		out[i] = *p
	}
	return out
}
