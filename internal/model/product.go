package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product catalog item
type Product struct {
	ID            uint64              `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string              `gorm:"type:varchar(200);not null" json:"name"`
	Description   *string             `gorm:"type:text" json:"description,omitempty"`
	Category      *string             `gorm:"type:varchar(50);index" json:"category,omitempty"`
	ImageURL      *string             `gorm:"type:varchar(255)" json:"image_url,omitempty"`
	Price         decimal.Decimal     `gorm:"type:decimal(18,2);not null" json:"price"`
	PreviousPrice decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"previous_price"`
	Stock         int                 `gorm:"type:int;not null;default:0" json:"stock"`
	CreatedAt     time.Time           `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName set name
func (Product) TableName() string {
	return "products"
}

// IsDiscounted reports whether the last price change lowered the price
func (p *Product) IsDiscounted() bool {
	return p.PreviousPrice.Valid && p.PreviousPrice.Decimal.GreaterThan(p.Price)
}

// ApplyPrice sets a new price. A changed price moves the old one into
// PreviousPrice; an unchanged price leaves PreviousPrice alone. It reports
// whether the price went down.
func (p *Product) ApplyPrice(price decimal.Decimal) (dropped bool) {
	if price.Equal(p.Price) {
		return false
	}
	dropped = price.LessThan(p.Price)
	p.PreviousPrice = decimal.NullDecimal{Decimal: p.Price, Valid: true}
	p.Price = price
	return dropped
}

// BestSeller product with the number of order lines that reference it
type BestSeller struct {
	Product
	LineCount int64 `gorm:"column:line_count" json:"line_count"`
}
