package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order a submitted checkout. Total is computed once from the lines.
type Order struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo     string          `gorm:"type:varchar(40);uniqueIndex;not null" json:"order_no"`
	UserID      uint64          `gorm:"not null;index" json:"user_id"`
	Total       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total"`
	Status      string          `gorm:"type:varchar(20);not null;default:preparing;index" json:"status"`
	FullName    string          `gorm:"type:varchar(100);not null" json:"full_name"`
	Phone       string          `gorm:"type:varchar(30);not null" json:"phone"`
	Email       string          `gorm:"type:varchar(100);not null" json:"email"`
	Address     string          `gorm:"type:varchar(500);not null" json:"address"`
	City        string          `gorm:"type:varchar(100);not null" json:"city"`
	PostalCode  string          `gorm:"type:varchar(20);not null" json:"postal_code"`
	Note        *string         `gorm:"type:varchar(500)" json:"note,omitempty"`
	DeliveredAt *time.Time      `gorm:"type:timestamp" json:"delivered_at,omitempty"`
	CreatedAt   time.Time       `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`

	Lines []OrderLine `gorm:"foreignKey:OrderID" json:"lines,omitempty"`
}

// TableName set name
func (Order) TableName() string {
	return "orders"
}

// OrderLine one product of an order, priced at checkout time
type OrderLine struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     uint64          `gorm:"not null;index" json:"order_id"`
	ProductID   uint64          `gorm:"not null;index" json:"product_id"`
	ProductName string          `gorm:"type:varchar(200);not null" json:"product_name"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	Quantity    int             `gorm:"type:int;not null" json:"quantity"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
}

// TableName set name
func (OrderLine) TableName() string {
	return "order_lines"
}

// Order status values
const (
	OrderStatusPreparing = "preparing"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// ValidOrderStatus reports whether s is a known status
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPreparing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// SetStatus changes the status; DeliveredAt is stamped only the first time
// the order becomes delivered.
func (o *Order) SetStatus(status string, now time.Time) {
	o.Status = status
	if status == OrderStatusDelivered && o.DeliveredAt == nil {
		t := now
		o.DeliveredAt = &t
	}
}
