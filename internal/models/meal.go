package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	CategoryBreakfast = "breakfast"
	CategoryLunch     = "lunch"
	CategoryDinner    = "dinner"
	CategorySnack     = "snack"
	CategoryBeverage  = "beverage"
)

// Meal owns the stock ledger: stock never goes negative and is_available is
// recomputed by the store on every stock mutation (true iff stock > 0, unless
// an admin override flips it).
type Meal struct {
	bun.BaseModel `bun:"table:meals"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description" json:"description"`
	Price       float64   `bun:"price,notnull" json:"price"`
	Category    string    `bun:"category,notnull" json:"category"`
	Stock       int       `bun:"stock,notnull,default:0" json:"stock"`
	ImageURL    string    `bun:"image_url" json:"image_url"`
	IsAvailable bool      `bun:"is_available" json:"is_available"`
	CreatedAt   time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// MealRequest is the admin create/update payload. IsAvailable is a pointer so
// an omitted field is distinguishable from an explicit false: omitted means
// availability follows the stock rule, present means the admin override wins.
type MealRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Stock       int     `json:"stock"`
	ImageURL    string  `json:"image_url"`
	IsAvailable *bool   `json:"is_available"`
}

func (r *MealRequest) ToMeal() Meal {
	return Meal{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Category:    r.Category,
		Stock:       r.Stock,
		ImageURL:    r.ImageURL,
	}
}

func ValidCategory(category string) bool {
	switch category {
	case CategoryBreakfast, CategoryLunch, CategoryDinner, CategorySnack, CategoryBeverage:
		return true
	}
	return false
}
