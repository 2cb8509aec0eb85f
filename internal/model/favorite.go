package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Favorite a product bookmarked by a user with the price it had at that moment.
// PriceAtFavorite is written once on insert and never updated.
type Favorite struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uint64          `gorm:"not null;uniqueIndex:uk_favorites_user_product,priority:1" json:"user_id"`
	ProductID       uint64          `gorm:"not null;uniqueIndex:uk_favorites_user_product,priority:2;index" json:"product_id"`
	PriceAtFavorite decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price_at_favorite"`
	CreatedAt       time.Time       `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName set name
func (Favorite) TableName() string {
	return "favorites"
}

// FavoriteView favorite joined with the product's current data
type FavoriteView struct {
	FavoriteID      uint64          `json:"favoriteId"`
	PriceAtFavorite decimal.Decimal `json:"priceAtFavorite"`
	AddedAt         time.Time       `json:"addedAt"`
	Product         *Product        `json:"product"`
}
