package models

import (
	"mime/multipart"
	"time"

	"github.com/shopspring/decimal"
)

// Product is the model for the 'products' table.
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description *string         `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	CategoryID  int64           `json:"category_id" db:"category_id"`
	ImagePath   *string         `json:"-" db:"image_path"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`

	// Joined from categories
	CategoryName string `json:"category" db:"-"`
}

// ProductResponse is the public JSON shape of a product.
type ProductResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	CategoryID  int64     `json:"category_id"`
	ImageURL    *string   `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProductFilters narrows a product listing. Zero values mean "no filter".
type ProductFilters struct {
	CategoryID int64
	// Category matches either the category slug or its exact name.
	Category string
}

// ProductInput carries a create request. Image is optional.
type ProductInput struct {
	Name        string
	Description *string
	Price       decimal.Decimal
	CategoryID  int64
	Image       *multipart.FileHeader
}

// ProductPatch carries a partial update: nil fields are left unchanged.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	CategoryID  *int64
	Image       *multipart.FileHeader
}

// ProductForm is the multipart body accepted by the JSON API and the admin
// forms. Every field is a pointer so that omission can be told apart from an
// empty value on update.
type ProductForm struct {
	Name        *string `form:"name" binding:"omitempty,min=1,max=200"`
	Description *string `form:"description"`
	Price       *string `form:"price"`
	CategoryID  *int64  `form:"category_id" binding:"omitempty,gt=0"`
}
