package eventsink

import (
	"context"
	"slices"
	"sync"

	"github.com/tochemey/goakt/v3/log"
)

// Transport delivers envelopes to whatever consumes them. Send is only called from the sink
// actor, Close once when it stops.
type Transport interface {
	Send(ctx context.Context, env Envelope) error
	Close() error
}

// NopTransport accepts and drops everything.
type NopTransport struct{}

func (NopTransport) Send(context.Context, Envelope) error { return nil }
func (NopTransport) Close() error                         { return nil }

// LogTransport writes every record to a logger at debug level.
type LogTransport struct {
	Logger log.Logger
}

func (t LogTransport) Send(_ context.Context, env Envelope) error {
	t.Logger.Debugf("[%s] %s %s", env.Topic, env.Key, env.Value)
	return nil
}

func (LogTransport) Close() error { return nil }

// MemoryTransport keeps every envelope it receives. It is safe for concurrent use.
type MemoryTransport struct {
	mu      sync.Mutex
	records []Envelope
	closed  bool
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

func (t *MemoryTransport) Send(_ context.Context, env Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, env)
	return nil
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

// Records returns a copy of what was received, optionally restricted to one topic.
func (t *MemoryTransport) Records(topic string) []Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	if topic == "" {
		return slices.Clone(t.records)
	}
	var out []Envelope
	for _, r := range t.records {
		if r.Topic == topic {
			out = append(out, r)
		}
	}
	return out
}

func (t *MemoryTransport) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

func (t *MemoryTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
