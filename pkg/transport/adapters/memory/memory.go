// Package memory implements transport.Transport entirely in-process, with
// no external service. It exists for tests and examples — every package
// in this repository that needs a deterministic, synchronous transport
// uses it, mirroring the teacher's pkg/*/adapters/memory convention.
package memory

import (
	"context"
	"sync"

	"github.com/chris-alexander-pop/gridswarm/pkg/transport"
)

// Config configures the in-memory transport. It exists for symmetry with
// the other adapters; there is currently nothing to configure.
type Config struct{}

type subscription struct {
	id      uint64
	pattern string
	on      transport.OnMessage
}

func (s *subscription) Channel() string { return s.pattern }

// Transport is an in-process pub/sub + KV backend. Publish dispatches
// synchronously to every matching subscriber on the calling goroutine,
// so tests can assert delivery without waiting.
type Transport struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
	kv     map[string][]byte
	closed bool
}

// New creates a new in-memory transport.
func New(_ Config) *Transport {
	return &Transport{
		subs: make(map[uint64]*subscription),
		kv:   make(map[string][]byte),
	}
}

func (t *Transport) Publish(ctx context.Context, channel string, data []byte) error {
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return transport.ErrClosed()
	}
	matches := make([]*subscription, 0, len(t.subs))
	for _, s := range t.subs {
		if transport.MatchPattern(s.pattern, channel) {
			matches = append(matches, s)
		}
	}
	t.mu.RUnlock()

	// Clone so a handler mutating data does not corrupt other subscribers.
	cp := make([]byte, len(data))
	copy(cp, data)

	for _, s := range matches {
		s.on(channel, cp)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, pattern string, on transport.OnMessage) (transport.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, transport.ErrClosed()
	}
	t.nextID++
	sub := &subscription{id: t.nextID, pattern: pattern, on: on}
	t.subs[sub.id] = sub
	return sub, nil
}

func (t *Transport) Unsubscribe(ctx context.Context, h transport.Handle) error {
	sub, ok := h.(*subscription)
	if !ok {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs, sub.id)
	return nil
}

func (t *Transport) KVGet(ctx context.Context, key string) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.kv[key]
	if !ok {
		return nil, transport.ErrKVMissing(key)
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (t *Transport) KVPut(ctx context.Context, key string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.kv[key] = cp
	return nil
}

func (t *Transport) KVDelete(ctx context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.kv, key)
	return nil
}

func (t *Transport) KVExists(ctx context.Context, key string) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.kv[key]
	return ok, nil
}

func (t *Transport) Healthy(ctx context.Context) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.closed
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.subs = make(map[uint64]*subscription)
	return nil
}
