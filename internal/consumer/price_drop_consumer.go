package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/model"
	"storefront/internal/service/pricedrop"
	"storefront/pkg/log"
	"storefront/pkg/queue"
)

// PriceDropConsumer turns price-changed events into favoriter notifications
type PriceDropConsumer struct {
	detector pricedrop.Detector
	queue    queue.Queue
	timeout  time.Duration
}

// NewPriceDropConsumer creates a consumer; timeout bounds one message
func NewPriceDropConsumer(detector pricedrop.Detector, q queue.Queue, timeout time.Duration) *PriceDropConsumer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PriceDropConsumer{
		detector: detector,
		queue:    q,
		timeout:  timeout,
	}
}

// Start subscribes to price changes until ctx ends
func (c *PriceDropConsumer) Start(ctx context.Context) error {
	if err := c.queue.Subscribe(ctx, model.TopicPriceChanged, c.handle); err != nil {
		return fmt.Errorf("subscribe %s: %w", model.TopicPriceChanged, err)
	}
	log.WithField("topic", model.TopicPriceChanged).Info("Price-drop consumer started")
	return nil
}

func (c *PriceDropConsumer) handle(ctx context.Context, _ string, data []byte) error {
	var msg model.PriceChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode price change: %w", err)
	}
	if !msg.NewPrice.LessThan(msg.OldPrice) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.detector.NotifyFavoriters(ctx, msg.ProductID)
	if err != nil {
		return fmt.Errorf("notify favoriters of product %d: %w", msg.ProductID, err)
	}

	log.WithFields(map[string]interface{}{
		"request_id": msg.RequestID,
		"product_id": msg.ProductID,
		"evaluated":  result.Evaluated,
		"created":    result.Created,
	}).Debug("Price change processed")
	return nil
}
