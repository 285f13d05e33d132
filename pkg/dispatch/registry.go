// Package dispatch implements the single inbound pump (C3) and the
// handler registry (C4) it routes decoded envelopes through.
package dispatch

import (
	"encoding/json"
	"sync"

	"github.com/chris-alexander-pop/gridswarm/pkg/envelope"
)

// Handler processes a broadcast, cast or group message. It returns no
// value; only RequestHandler produces a response body.
type Handler func(meta envelope.Metadata, payload json.RawMessage)

// RequestHandler processes a request envelope and returns the response
// payload, or an error to be translated into the wire ErrorPayload shape.
type RequestHandler func(meta envelope.Metadata, payload json.RawMessage) (any, error)

// table is one of the four (kind, topic) -> callback tables.
type table[H any] struct {
	mu       sync.RWMutex
	handlers map[string]H
}

func newTable[H any]() *table[H] {
	return &table[H]{handlers: make(map[string]H)}
}

func (t *table[H]) register(topic string, h H) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[topic] = h
}

func (t *table[H]) lookup(topic string) (H, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[topic]
	return h, ok
}

func (t *table[H]) deregister(topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handlers, topic)
}

// Registry holds the four handler tables: broadcast, cast, request, group.
// Re-registration of the same topic silently replaces the prior handler;
// there are no wildcard topics.
type Registry struct {
	broadcast *table[Handler]
	cast      *table[Handler]
	request   *table[RequestHandler]
	group     *table[Handler]
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		broadcast: newTable[Handler](),
		cast:      newTable[Handler](),
		request:   newTable[RequestHandler](),
		group:     newTable[Handler](),
	}
}

func (r *Registry) OnBroadcast(topic string, h Handler) { r.broadcast.register(topic, h) }
func (r *Registry) OnCast(topic string, h Handler)      { r.cast.register(topic, h) }
func (r *Registry) OnRequest(topic string, h RequestHandler) { r.request.register(topic, h) }
func (r *Registry) OnGroup(topic string, h Handler)     { r.group.register(topic, h) }

func (r *Registry) OffBroadcast(topic string) { r.broadcast.deregister(topic) }
func (r *Registry) OffCast(topic string)      { r.cast.deregister(topic) }
func (r *Registry) OffRequest(topic string)   { r.request.deregister(topic) }
func (r *Registry) OffGroup(topic string)     { r.group.deregister(topic) }

func (r *Registry) LookupBroadcast(topic string) (Handler, bool) { return r.broadcast.lookup(topic) }
func (r *Registry) LookupCast(topic string) (Handler, bool)      { return r.cast.lookup(topic) }
func (r *Registry) LookupRequest(topic string) (RequestHandler, bool) {
	return r.request.lookup(topic)
}
func (r *Registry) LookupGroup(topic string) (Handler, bool) { return r.group.lookup(topic) }
