package model

import "github.com/shopspring/decimal"

// TopicPriceChanged carries PriceChangedMessage
const TopicPriceChanged = "product.price_changed"

// PriceChangedMessage published after a product price went down
type PriceChangedMessage struct {
	RequestID string          `json:"request_id"`
	ProductID uint64          `json:"product_id"`
	OldPrice  decimal.Decimal `json:"old_price"`
	NewPrice  decimal.Decimal `json:"new_price"`
	Timestamp int64           `json:"timestamp"`
}
