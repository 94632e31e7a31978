package seed

import (
	"context"
	"testing"

	"github.com/angelmondragon/shelfpos/internal/categories"
	"github.com/angelmondragon/shelfpos/internal/kv/kvtest"
	"github.com/angelmondragon/shelfpos/internal/products"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSeedsEmptyCatalogOnce(t *testing.T) {
	ctx := context.Background()
	store := kvtest.NewStore(t)
	cats, err := categories.NewService(store, categories.Options{})
	require.NoError(t, err)
	prods, err := products.NewService(store, cats, products.Options{})
	require.NoError(t, err)

	res, err := Run(ctx, store, cats, prods, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Categories: len(demoCategories), Products: len(demoProducts)}, res)

	water, err := prods.GetByBarcode(ctx, "6901234567001")
	require.NoError(t, err)
	require.NotNil(t, water)
	bev, err := cats.GetByID(ctx, water.CategoryID)
	require.NoError(t, err)
	assert.Equal(t, "Beverages", bev.Name)

	bag, err := prods.GetByBarcode(ctx, "6901234567099")
	require.NoError(t, err)
	require.NotNil(t, bag)
	assert.Empty(t, bag.CategoryID)

	res, err = Run(ctx, store, cats, prods, nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	all, err := prods.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(demoProducts))
}

func TestRunSkipsWhenCategoriesExist(t *testing.T) {
	ctx := context.Background()
	store := kvtest.NewStore(t)
	cats, err := categories.NewService(store, categories.Options{})
	require.NoError(t, err)
	prods, err := products.NewService(store, cats, products.Options{})
	require.NoError(t, err)
	_, err = cats.Add(ctx, "Bakery")
	require.NoError(t, err)

	res, err := Run(ctx, store, cats, prods, nil)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	all, err := prods.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
