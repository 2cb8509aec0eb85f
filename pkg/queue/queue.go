package queue

import (
	"context"
	"errors"
)

// Queue publish/subscribe transport for domain events
type Queue interface {
	// Publish enqueues message on topic
	Publish(ctx context.Context, topic string, message []byte) error

	// Subscribe starts delivering topic messages to handler until ctx ends
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error

	Close() error
	Health() error
}

// MessageHandler handles one delivered message
type MessageHandler func(ctx context.Context, topic string, message []byte) error

// ErrorHook observes handler failures; delivery continues afterwards
type ErrorHook func(topic string, message []byte, err error)

// Stats delivery counters of a queue
type Stats struct {
	Topics       int   `json:"topics"`
	Connected    bool  `json:"connected"`
	MessagesSent int64 `json:"messages_sent"`
	MessagesRecv int64 `json:"messages_received"`
	HandlerFails int64 `json:"handler_failures"`
}

var (
	ErrQueueClosed          = errors.New("queue is closed")
	ErrAlreadySubscribed    = errors.New("topic already has a subscriber")
	ErrPublishTimeout       = errors.New("publish timeout")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
