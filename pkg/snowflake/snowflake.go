package snowflake

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

const (
	// Epoch 2024-01-01T00:00:00Z in milliseconds
	Epoch int64 = 1704067200000

	NodeBits uint8 = 10
	StepBits uint8 = 12

	MaxNodeID int64 = -1 ^ (-1 << NodeBits)
	stepMask  int64 = -1 ^ (-1 << StepBits)
	timeShift       = NodeBits + StepBits
	nodeShift       = StepBits

	// OrderNoPrefix leads every human-facing order number
	OrderNoPrefix = "SO"
)

// Generator issues time-ordered 63-bit ids unique per node
type Generator struct {
	mu     sync.Mutex
	now    func() time.Time
	lastMs int64
	nodeID int64
	step   int64
}

// Option customizes a Generator
type Option func(*Generator)

// WithClock replaces the wall clock, used in tests
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a generator for nodeID in [0, MaxNodeID]
func NewGenerator(nodeID int64, opts ...Option) (*Generator, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, fmt.Errorf("snowflake: node id %d out of range [0, %d]", nodeID, MaxNodeID)
	}

	g := &Generator{
		now:    time.Now,
		nodeID: nodeID,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// NextID returns the next id. When the step overflows within one
// millisecond it spins until the clock moves; a clock that moves backwards
// is treated as standing still.
func (g *Generator) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms < g.lastMs {
		ms = g.lastMs
	}

	if ms == g.lastMs {
		g.step = (g.step + 1) & stepMask
		if g.step == 0 {
			for ms <= g.lastMs {
				ms = g.now().UnixMilli()
			}
		}
	} else {
		g.step = 0
	}
	g.lastMs = ms

	return ((ms - Epoch) << timeShift) | (g.nodeID << nodeShift) | g.step
}

// NextOrderNo formats a fresh id as an order number, e.g. "SO20250301-<id>"
func (g *Generator) NextOrderNo() string {
	id := g.NextID()
	day := time.UnixMilli(Timestamp(id)).UTC().Format("20060102")
	return OrderNoPrefix + day + "-" + strconv.FormatInt(id, 36)
}

// Parts splits an id into unix milliseconds, node and step
func Parts(id int64) (ms, nodeID, step int64) {
	return Timestamp(id), (id >> nodeShift) & MaxNodeID, id & stepMask
}

// Timestamp returns the unix milliseconds encoded in id
func Timestamp(id int64) int64 {
	return (id >> timeShift) + Epoch
}
