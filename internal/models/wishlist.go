package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wishlist is the single saved-products list of a user.
type Wishlist struct {
	ID        string         `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"userId"`
	Items     []WishlistItem `db:"-" json:"items"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

// WishlistItem pairs a product with the time it was saved. Product fields are
// joined at read time for display.
type WishlistItem struct {
	ProductID   string          `db:"product_id" json:"productId"`
	AddedAt     time.Time       `db:"added_at" json:"addedAt"`
	Name        string          `db:"name" json:"name"`
	Slug        string          `db:"slug" json:"slug"`
	Image       *string         `db:"image" json:"image,omitempty"`
	BasePrice   decimal.Decimal `db:"base_price" json:"basePrice"`
	Status      ProductStatus   `db:"status" json:"status"`
	IsAvailable bool            `db:"is_available" json:"isAvailable"`
}
