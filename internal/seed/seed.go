// Package seed fills an empty catalog with demo data on first run.
package seed

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shelfpos/internal/categories"
	"github.com/angelmondragon/shelfpos/internal/kv"
	"github.com/angelmondragon/shelfpos/internal/products"
	"github.com/angelmondragon/shelfpos/pkg/logger"
	"github.com/angelmondragon/shelfpos/pkg/types"
)

type demoProduct struct {
	name     string
	barcode  string
	price    string
	unit     string
	category string
}

var demoCategories = []string{"Beverages", "Snacks", "Dairy", "Household"}

var demoProducts = []demoProduct{
	{"Mineral Water 500ml", "6901234567001", "2.00", "bottle", "Beverages"},
	{"Orange Juice 1L", "6901234567002", "8.50", "bottle", "Beverages"},
	{"Green Tea 500ml", "6901234567003", "3.50", "bottle", "Beverages"},
	{"Potato Chips", "6901234567011", "6.80", "bag", "Snacks"},
	{"Chocolate Bar", "6901234567012", "5.20", "piece", "Snacks"},
	{"Whole Milk 1L", "6901234567021", "12.90", "carton", "Dairy"},
	{"Plain Yogurt", "6901234567022", "4.50", "cup", "Dairy"},
	{"Dish Soap", "6901234567031", "9.90", "bottle", "Household"},
	{"Paper Towels", "6901234567032", "15.00", "pack", "Household"},
	{"Shopping Bag", "6901234567099", "0.20", "piece", ""},
}

// Result counts what Run added.
type Result struct {
	Categories int  `json:"categories"`
	Products   int  `json:"products"`
	Skipped    bool `json:"skipped"`
}

// Run adds the demo catalog through the services when both the categories
// and the products collections are empty. Otherwise it does nothing.
func Run(ctx context.Context, store *kv.Store, cats categories.Service, prods products.Service, logg *logger.Logger) (Result, error) {
	if logg == nil {
		logg = logger.Nop()
	}
	counts, err := store.Counts(ctx)
	if err != nil {
		return Result{}, err
	}
	if counts[kv.Categories] > 0 || counts[kv.Products] > 0 {
		return Result{Skipped: true}, nil
	}

	var res Result
	ids := make(map[string]string, len(demoCategories))
	for _, name := range demoCategories {
		c, err := cats.Add(ctx, name)
		if err != nil {
			return res, fmt.Errorf("seed category %q: %w", name, err)
		}
		ids[name] = c.ID
		res.Categories++
	}
	for _, p := range demoProducts {
		price, err := types.ParseMoney(p.price)
		if err != nil {
			return res, fmt.Errorf("seed product %q: %w", p.name, err)
		}
		_, err = prods.Add(ctx, products.Input{
			Name:       p.name,
			Barcode:    p.barcode,
			Price:      price,
			CategoryID: ids[p.category],
			Unit:       p.unit,
		})
		if err != nil {
			return res, fmt.Errorf("seed product %q: %w", p.name, err)
		}
		res.Products++
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"categories": res.Categories,
		"products":   res.Products,
	}), "demo catalog seeded")
	return res, nil
}
