package categories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/shelfpos/internal/kv"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/logger"
	"github.com/angelmondragon/shelfpos/pkg/validate"
	"github.com/google/uuid"
)

const DefaultCacheTTL = 5 * time.Minute

// Service manages categories.
type Service interface {
	GetAll(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id string) (*Category, error)
	GetByName(ctx context.Context, name string) (*Category, error)
	Add(ctx context.Context, name string) (*Category, error)
	Update(ctx context.Context, id string, patch Patch) (*Category, error)
	Delete(ctx context.Context, id string) error
	Recover(ctx context.Context, category Category) error
	InvalidateCache()
}

// Options tune a category service. Zero values pick defaults.
type Options struct {
	CacheTTL time.Duration
	Now      func() time.Time
	NewID    func() string
	Logger   *logger.Logger
}

type service struct {
	mu         sync.Mutex
	categories *kv.Typed[Category]
	products   *kv.Typed[productRef]
	cache      *listCache
	now        func() time.Time
	newID      func() string
	logg       *logger.Logger
}

// NewService constructs a category service over store.
func NewService(store *kv.Store, opts Options) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
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
		categories: kv.NewTyped[Category](store.Categories()),
		products:   kv.NewTyped[productRef](store.Products()),
		cache:      newListCache(opts.CacheTTL, opts.Now),
		now:        opts.Now,
		newID:      opts.NewID,
		logg:       opts.Logger,
	}, nil
}

// GetAll returns every category, oldest first.
func (s *service) GetAll(ctx context.Context) ([]Category, error) {
	if items, ok := s.cache.get(); ok {
		return items, nil
	}
	gen := s.cache.generation()
	found, err := s.categories.FindAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	items := make([]Category, 0, len(found))
	for _, c := range found {
		items = append(items, *c)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	s.cache.set(items, gen)
	return cloneCategories(items), nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Category, error) {
	c, err := s.categories.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found").WithDetails(map[string]any{"id": id})
	}
	return c, nil
}

// GetByName is a case-sensitive exact match; nil when absent.
func (s *service) GetByName(ctx context.Context, name string) (*Category, error) {
	return s.categories.FindOne(ctx, func(c *Category) bool { return c.Name == name })
}

func (s *service) Add(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureNameFree(ctx, name, ""); err != nil {
		return nil, err
	}

	now := s.now()
	c := &Category{ID: s.newID(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.categories.Put(ctx, c.ID, c); err != nil {
		return nil, err
	}
	s.cache.invalidate()
	s.logg.Info(s.logg.WithEntityID(ctx, c.ID), "category added")
	return c, nil
}

func (s *service) Update(ctx context.Context, id string, patch Patch) (*Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.categories.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found").WithDetails(map[string]any{"id": id})
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		if name != existing.Name {
			if err := s.ensureNameFree(ctx, name, id); err != nil {
				return nil, err
			}
		}
		existing.Name = name
	}
	existing.UpdatedAt = s.now()

	if err := s.categories.Put(ctx, id, existing); err != nil {
		return nil, err
	}
	s.cache.invalidate()
	s.logg.Info(s.logg.WithEntityID(ctx, id), "category updated")
	return existing, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.categories.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "category not found").WithDetails(map[string]any{"id": id})
	}

	dependent, err := s.products.FindOne(ctx, func(p *productRef) bool { return p.CategoryID == id })
	if err != nil {
		return err
	}
	if dependent != nil {
		return pkgerrors.New(pkgerrors.CodeHasDependents, "category still has products").
			WithDetails(map[string]any{"id": id, "productId": dependent.ID})
	}

	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.invalidate()
	s.logg.Info(s.logg.WithEntityID(ctx, id), "category deleted")
	return nil
}

// Recover writes a category from a backup, keeping its id and timestamps.
func (s *service) Recover(ctx context.Context, category Category) error {
	if err := validate.Struct(&category); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureNameFree(ctx, category.Name, ""); err != nil {
		return err
	}
	if err := s.categories.Put(ctx, category.ID, &category); err != nil {
		return err
	}
	s.cache.invalidate()
	return nil
}

func (s *service) InvalidateCache() {
	s.cache.invalidate()
}

// ensureNameFree reads the collection directly, never the cache.
func (s *service) ensureNameFree(ctx context.Context, name, exceptID string) error {
	clash, err := s.categories.FindOne(ctx, func(c *Category) bool {
		return c.Name == name && c.ID != exceptID
	})
	if err != nil {
		return err
	}
	if clash != nil {
		return pkgerrors.New(pkgerrors.CodeDuplicateKey, fmt.Sprintf("category %q already exists", name)).
			WithDetails(map[string]any{"field": "name", "existingId": clash.ID})
	}
	return nil
}

func validateName(name string) error {
	return validate.Var("name", name, fmt.Sprintf("required,max=%d", maxNameLength))
}
