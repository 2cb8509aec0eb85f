package catalog

import (
	"context"

	"storefront/pkg/breaker"
	"storefront/pkg/log"
)

type guardedPublisher struct {
	next Publisher
	cb   *breaker.CircuitBreaker
}

// GuardPublisher puts cb in front of next. While the breaker is open
// Publish fails at once and price drops are evaluated inline, so a stalled
// queue costs one publish timeout per breaker window rather than one per
// product update.
func GuardPublisher(next Publisher, cb *breaker.CircuitBreaker) Publisher {
	return &guardedPublisher{next: next, cb: cb}
}

func (p *guardedPublisher) Publish(ctx context.Context, topic string, message []byte) error {
	return p.cb.Execute(ctx, func(ctx context.Context) error {
		return p.next.Publish(ctx, topic, message)
	})
}

// NewPublishBreaker a breaker that logs its transitions
func NewPublishBreaker(config breaker.Config) *breaker.CircuitBreaker {
	config.OnStateChange = func(name string, from, to breaker.State) {
		entry := log.WithFields(map[string]interface{}{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		})
		if to == breaker.StateOpen {
			entry.Warn("Price-drop publishing suspended")
			return
		}
		entry.Info("Price-drop publishing breaker changed state")
	}
	return breaker.NewCircuitBreaker("price_drop_publish", config)
}
