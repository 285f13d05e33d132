// Package transport provides a unified abstraction over a pub/sub + key/value
// backend.
//
// This package defines the core interface the rest of gridswarm dispatches
// through (dispatcher, request/response coordinator, contract auctioneer,
// group manager, registry façade). Concrete backends live in their own
// sub-packages (pkg/transport/adapters/{driver}); callers import only the
// adapter they need, pulling only that SDK.
//
// # Usage
//
//	import (
//	    "github.com/chris-alexander-pop/gridswarm/pkg/transport"
//	    "github.com/chris-alexander-pop/gridswarm/pkg/transport/adapters/nats"
//	)
//
//	t, err := nats.New(ctx, nats.Config{URL: "nats://localhost:4222"})
//	handle, err := t.Subscribe(ctx, "gs.pub.*", func(channel string, data []byte) { ... })
//	err = t.Publish(ctx, "gs.pub.status", payload)
package transport

import "context"

// OnMessage is invoked from the transport's reader context for every
// message matching a subscription. Implementations MUST NOT assume this
// runs on any particular goroutine, and callers MUST NOT block in it for
// long — the dispatcher only shards and enqueues the raw message here, and
// decodes and runs user code on a worker.
type OnMessage func(channel string, data []byte)

// Handle identifies a live subscription so it can be unsubscribed later.
type Handle interface {
	// Channel returns the pattern or exact channel this handle was
	// created for.
	Channel() string
}

// Transport is the façade every gridswarm component publishes and
// subscribes through.
type Transport interface {
	// Publish sends data on the exact channel name.
	Publish(ctx context.Context, channel string, data []byte) error

	// Subscribe matches the backend's pattern syntax (exact channels are
	// a degenerate pattern). on is invoked for every matching message
	// until Unsubscribe is called with the returned handle.
	Subscribe(ctx context.Context, pattern string, on OnMessage) (Handle, error)

	// Unsubscribe is idempotent.
	Unsubscribe(ctx context.Context, h Handle) error

	// KVGet returns the raw bytes stored at key, or ErrKVMissing if absent.
	KVGet(ctx context.Context, key string) ([]byte, error)

	// KVPut stores raw bytes at key, overwriting any previous value.
	KVPut(ctx context.Context, key string, data []byte) error

	// KVDelete removes key. It is not an error if key does not exist.
	KVDelete(ctx context.Context, key string) error

	// KVExists reports whether key is present.
	KVExists(ctx context.Context, key string) (bool, error)

	// Healthy reports whether the backend connection is usable.
	Healthy(ctx context.Context) bool

	// Close releases all resources and terminates active subscriptions.
	Close() error
}
