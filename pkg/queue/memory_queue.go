package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryQueue in-process queue with one buffered channel and at most one
// subscriber per topic
type MemoryQueue struct {
	config MemoryQueueConfig
	onErr  ErrorHook

	mu     sync.RWMutex
	topics map[string]*topic
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup

	sent     atomic.Int64
	received atomic.Int64
	failed   atomic.Int64
}

type topic struct {
	messages   chan []byte
	subscribed bool
}

// MemoryQueueConfig memory queue configuration
type MemoryQueueConfig struct {
	BufferSize int           `json:"buffer_size"`
	Timeout    time.Duration `json:"timeout"`
}

// DefaultMemoryQueueConfig returns the default buffer and publish timeout
func DefaultMemoryQueueConfig() MemoryQueueConfig {
	return MemoryQueueConfig{
		BufferSize: 1000,
		Timeout:    5 * time.Second,
	}
}

// NewMemoryQueue creates a new memory queue instance
func NewMemoryQueue(config MemoryQueueConfig, onErr ErrorHook) (*MemoryQueue, error) {
	if config.BufferSize < 0 {
		return nil, fmt.Errorf("%w: negative buffer size", ErrInvalidConfiguration)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultMemoryQueueConfig().Timeout
	}

	return &MemoryQueue{
		config: config,
		onErr:  onErr,
		topics: make(map[string]*topic),
		done:   make(chan struct{}),
	}, nil
}

func (mq *MemoryQueue) topic(name string) (*topic, error) {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.closed {
		return nil, ErrQueueClosed
	}

	t, ok := mq.topics[name]
	if !ok {
		t = &topic{messages: make(chan []byte, mq.config.BufferSize)}
		mq.topics[name] = t
	}
	return t, nil
}

// Publish blocks until the message is buffered, ctx ends or the timeout passes
func (mq *MemoryQueue) Publish(ctx context.Context, name string, message []byte) error {
	t, err := mq.topic(name)
	if err != nil {
		return err
	}

	timer := time.NewTimer(mq.config.Timeout)
	defer timer.Stop()

	select {
	case t.messages <- message:
		mq.sent.Add(1)
		return nil
	case <-mq.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPublishTimeout
	}
}

// Subscribe starts one consumer goroutine for the topic. Handler errors are
// reported to the error hook and do not stop delivery.
func (mq *MemoryQueue) Subscribe(ctx context.Context, name string, handler MessageHandler) error {
	t, err := mq.topic(name)
	if err != nil {
		return err
	}

	mq.mu.Lock()
	if t.subscribed {
		mq.mu.Unlock()
		return ErrAlreadySubscribed
	}
	t.subscribed = true
	mq.wg.Add(1)
	mq.mu.Unlock()

	go func() {
		defer mq.wg.Done()
		for {
			select {
			case message := <-t.messages:
				mq.received.Add(1)
				if err := handler(ctx, name, message); err != nil {
					mq.failed.Add(1)
					if mq.onErr != nil {
						mq.onErr(name, message, err)
					}
				}
			case <-ctx.Done():
				return
			case <-mq.done:
				return
			}
		}
	}()

	return nil
}

// Close stops every subscriber and waits for in-flight handlers
func (mq *MemoryQueue) Close() error {
	mq.mu.Lock()
	if mq.closed {
		mq.mu.Unlock()
		return nil
	}
	mq.closed = true
	close(mq.done)
	mq.mu.Unlock()

	mq.wg.Wait()
	return nil
}

// Health checks the health of the queue
func (mq *MemoryQueue) Health() error {
	mq.mu.RLock()
	defer mq.mu.RUnlock()

	if mq.closed {
		return ErrQueueClosed
	}
	return nil
}

// Stats returns queue statistics
func (mq *MemoryQueue) Stats() Stats {
	mq.mu.RLock()
	defer mq.mu.RUnlock()

	return Stats{
		Topics:       len(mq.topics),
		Connected:    !mq.closed,
		MessagesSent: mq.sent.Load(),
		MessagesRecv: mq.received.Load(),
		HandlerFails: mq.failed.Load(),
	}
}
