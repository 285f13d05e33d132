// Package nats implements transport.Transport over github.com/nats-io/nats.go.
//
// NATS subjects are dot-delimited tokens with "*" matching exactly one
// token — an exact match for the channel grammar in spec §6
// (gs.pub.*, gs.<identity>.*, gs.grp.<id>.*), which makes core NATS the
// reference production backend. Key/value operations use a JetStream
// KeyValue bucket so the registry façade gets a real namespaced store
// instead of an emulation on top of pub/sub.
package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/chris-alexander-pop/gridswarm/pkg/transport"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Config configures the NATS adapter.
type Config struct {
	// URL is the NATS server URL, e.g. "nats://localhost:4222".
	URL string `env:"NATS_URL" env-default:"nats://127.0.0.1:4222"`

	// Bucket names the JetStream KeyValue bucket backing the registry.
	Bucket string `env:"NATS_KV_BUCKET" env-default:"gridswarm"`

	// ConnectTimeout bounds the initial dial.
	ConnectTimeout time.Duration `env:"NATS_CONNECT_TIMEOUT" env-default:"5s"`
}

type subscription struct {
	pattern string
	sub     *nats.Subscription
}

func (s *subscription) Channel() string { return s.pattern }

// Transport adapts a live NATS connection and JetStream KV bucket to
// transport.Transport.
type Transport struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// New dials the NATS server and provisions (or attaches to) the
// configured KeyValue bucket.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	nc, err := nats.Connect(cfg.URL, nats.Timeout(cfg.ConnectTimeout))
	if err != nil {
		return nil, transport.ErrConnectionFailed(err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, transport.ErrConnectionFailed(err)
	}

	kv, err := js.KeyValue(ctx, cfg.Bucket)
	if err != nil {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: cfg.Bucket})
		if err != nil {
			nc.Close()
			return nil, transport.ErrConnectionFailed(fmt.Errorf("create kv bucket %s: %w", cfg.Bucket, err))
		}
	}

	return &Transport{nc: nc, kv: kv}, nil
}

func (t *Transport) Publish(ctx context.Context, channel string, data []byte) error {
	if err := t.nc.Publish(channel, data); err != nil {
		return transport.ErrPublishFailed(channel, err)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, pattern string, on transport.OnMessage) (transport.Handle, error) {
	sub, err := t.nc.Subscribe(pattern, func(msg *nats.Msg) {
		on(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, transport.ErrSubscribeFailed(pattern, err)
	}
	return &subscription{pattern: pattern, sub: sub}, nil
}

func (t *Transport) Unsubscribe(ctx context.Context, h transport.Handle) error {
	sub, ok := h.(*subscription)
	if !ok || sub.sub == nil || !sub.sub.IsValid() {
		return nil
	}
	return sub.sub.Unsubscribe()
}

func (t *Transport) KVGet(ctx context.Context, key string) ([]byte, error) {
	entry, err := t.kv.Get(ctx, key)
	if err != nil {
		if err == jetstream.ErrKeyNotFound {
			return nil, transport.ErrKVMissing(key)
		}
		return nil, transport.ErrKVFailed("get", key, err)
	}
	return entry.Value(), nil
}

func (t *Transport) KVPut(ctx context.Context, key string, data []byte) error {
	if _, err := t.kv.Put(ctx, key, data); err != nil {
		return transport.ErrKVFailed("put", key, err)
	}
	return nil
}

func (t *Transport) KVDelete(ctx context.Context, key string) error {
	if err := t.kv.Delete(ctx, key); err != nil && err != jetstream.ErrKeyNotFound {
		return transport.ErrKVFailed("delete", key, err)
	}
	return nil
}

func (t *Transport) KVExists(ctx context.Context, key string) (bool, error) {
	_, err := t.kv.Get(ctx, key)
	if err == nil {
		return true, nil
	}
	if err == jetstream.ErrKeyNotFound {
		return false, nil
	}
	return false, transport.ErrKVFailed("exists", key, err)
}

func (t *Transport) Healthy(ctx context.Context) bool {
	return t.nc.Status() == nats.CONNECTED
}

func (t *Transport) Close() error {
	t.nc.Drain()
	t.nc.Close()
	return nil
}
