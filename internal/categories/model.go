package categories

import "time"

const maxNameLength = 50

// Category groups products on the shelf and in reports.
type Category struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name" validate:"required,max=50"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Patch carries optional updates; nil fields are left unchanged.
type Patch struct {
	Name *string `json:"name,omitempty"`
}

// productRef is the part of a stored product the dependency check reads.
type productRef struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
}
