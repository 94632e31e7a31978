package products

import (
	"time"

	"github.com/angelmondragon/shelfpos/pkg/types"
)

// Product is a sellable item identified at the till by its barcode.
type Product struct {
	ID         string      `json:"id" validate:"required"`
	Name       string      `json:"name" validate:"required"`
	Barcode    string      `json:"barcode" validate:"required"`
	Price      types.Money `json:"price" validate:"gte=0"`
	CategoryID string      `json:"category_id,omitempty"`
	Unit       string      `json:"unit,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Input is the payload for Add.
type Input struct {
	Name       string      `json:"name" validate:"required"`
	Barcode    string      `json:"barcode" validate:"required"`
	Price      types.Money `json:"price" validate:"gte=0"`
	CategoryID string      `json:"category_id"`
	Unit       string      `json:"unit"`
}

// Patch carries optional updates; nil fields are left unchanged. An empty
// CategoryID clears the category.
type Patch struct {
	Name       *string      `json:"name,omitempty" validate:"omitnil,required"`
	Barcode    *string      `json:"barcode,omitempty" validate:"omitnil,required"`
	Price      *types.Money `json:"price,omitempty"`
	CategoryID *string      `json:"category_id,omitempty"`
	Unit       *string      `json:"unit,omitempty"`
}

// Uncategorized is the list filter value selecting products without a category.
const Uncategorized = "uncategorized"

// Sort fields accepted by GetProductList.
const (
	SortByUpdatedAt = "updatedAt"
	SortByCreatedAt = "createdAt"
	SortByName      = "name"
	SortByPrice     = "price"
	SortByBarcode   = "barcode"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)
