// Package redis implements transport.Transport over github.com/redis/go-redis/v9.
//
// PSUBSCRIBE's glob patterns ("gs.pub.*", "gs.grp.*.status") cover the
// same channel grammar NATS subjects do, making Redis a second drop-in
// production backend; key/value operations map directly onto GET/SET/DEL/
// EXISTS the way the teacher's pkg/cache/adapters/redis does.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chris-alexander-pop/gridswarm/pkg/transport"
	"github.com/redis/go-redis/v9"
)

// Config configures the Redis adapter.
type Config struct {
	Host     string `env:"REDIS_HOST" env-default:"localhost"`
	Port     string `env:"REDIS_PORT" env-default:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`

	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" env-default:"5s"`
}

type subscription struct {
	pattern string
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
	done    chan struct{}
}

func (s *subscription) Channel() string { return s.pattern }

// Transport adapts a redis.Client to transport.Transport.
type Transport struct {
	client *redis.Client

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

// New dials Redis and verifies the connection with a PING.
func New(cfg Config) (*Transport, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, transport.ErrConnectionFailed(err)
	}

	return &Transport{client: client, subs: make(map[*subscription]struct{})}, nil
}

func (t *Transport) Publish(ctx context.Context, channel string, data []byte) error {
	if err := t.client.Publish(ctx, channel, data).Err(); err != nil {
		return transport.ErrPublishFailed(channel, err)
	}
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, pattern string, on transport.OnMessage) (transport.Handle, error) {
	pubsub := t.client.PSubscribe(ctx, pattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, transport.ErrSubscribeFailed(pattern, err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{pattern: pattern, pubsub: pubsub, cancel: cancel, done: make(chan struct{})}

	ch := pubsub.Channel()
	go func() {
		defer close(sub.done)
		for {
			select {
			case <-readCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				on(msg.Channel, []byte(msg.Payload))
			}
		}
	}()

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	return sub, nil
}

func (t *Transport) Unsubscribe(ctx context.Context, h transport.Handle) error {
	sub, ok := h.(*subscription)
	if !ok {
		return nil
	}
	t.mu.Lock()
	_, live := t.subs[sub]
	delete(t.subs, sub)
	t.mu.Unlock()
	if !live {
		return nil
	}

	sub.cancel()
	err := sub.pubsub.Close()
	<-sub.done
	return err
}

func (t *Transport) KVGet(ctx context.Context, key string) ([]byte, error) {
	val, err := t.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, transport.ErrKVMissing(key)
	}
	if err != nil {
		return nil, transport.ErrKVFailed("get", key, err)
	}
	return val, nil
}

func (t *Transport) KVPut(ctx context.Context, key string, data []byte) error {
	if err := t.client.Set(ctx, key, data, 0).Err(); err != nil {
		return transport.ErrKVFailed("put", key, err)
	}
	return nil
}

func (t *Transport) KVDelete(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, key).Err(); err != nil {
		return transport.ErrKVFailed("delete", key, err)
	}
	return nil
}

func (t *Transport) KVExists(ctx context.Context, key string) (bool, error) {
	n, err := t.client.Exists(ctx, key).Result()
	if err != nil {
		return false, transport.ErrKVFailed("exists", key, err)
	}
	return n > 0, nil
}

func (t *Transport) Healthy(ctx context.Context) bool {
	return t.client.Ping(ctx).Err() == nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	subs := make([]*subscription, 0, len(t.subs))
	for s := range t.subs {
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		s.cancel()
		s.pubsub.Close()
		<-s.done
	}
	return t.client.Close()
}
