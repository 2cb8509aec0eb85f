package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Notification user-facing message. NotifiedPrice is the post-drop price a
// price-drop notification was issued for; it is null for ad-hoc messages.
type Notification struct {
	ID            uint64              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint64              `gorm:"not null;index:idx_notifications_user_read,priority:1;uniqueIndex:uk_notifications_user_product_price,priority:1" json:"user_id"`
	ProductID     uint64              `gorm:"not null;uniqueIndex:uk_notifications_user_product_price,priority:2" json:"product_id"`
	Message       string              `gorm:"type:varchar(500);not null" json:"message"`
	NotifiedPrice decimal.NullDecimal `gorm:"type:decimal(18,2);uniqueIndex:uk_notifications_user_product_price,priority:3" json:"notified_price"`
	IsRead        bool                `gorm:"not null;default:false;index:idx_notifications_user_read,priority:2" json:"is_read"`
	CreatedAt     time.Time           `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName set name
func (Notification) TableName() string {
	return "notifications"
}
