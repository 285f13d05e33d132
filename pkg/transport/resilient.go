package transport

import (
	"context"
	"time"

	"github.com/chris-alexander-pop/gridswarm/pkg/resilience"
)

// ResilientConfig configures the resilient transport wrapper.
type ResilientConfig struct {
	CircuitBreakerEnabled   bool          `env:"TRANSPORT_CB_ENABLED" env-default:"true"`
	CircuitBreakerThreshold int64         `env:"TRANSPORT_CB_THRESHOLD" env-default:"5"`
	CircuitBreakerTimeout   time.Duration `env:"TRANSPORT_CB_TIMEOUT" env-default:"30s"`

	RetryEnabled     bool          `env:"TRANSPORT_RETRY_ENABLED" env-default:"true"`
	RetryMaxAttempts int           `env:"TRANSPORT_RETRY_MAX" env-default:"3"`
	RetryBackoff     time.Duration `env:"TRANSPORT_RETRY_BACKOFF" env-default:"100ms"`
}

// ResilientTransport wraps a Transport with circuit breaker and retry
// support around publish and KV calls. Subscribe is left unwrapped: a
// failed subscribe is a setup-time error the caller should see immediately,
// not something to retry behind the caller's back.
type ResilientTransport struct {
	next     Transport
	cb       *resilience.CircuitBreaker
	retryCfg resilience.RetryConfig
}

// NewResilientTransport wraps next with resilience features.
func NewResilientTransport(next Transport, cfg ResilientConfig) *ResilientTransport {
	rt := &ResilientTransport{next: next}

	if cfg.CircuitBreakerEnabled {
		rt.cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "transport",
			FailureThreshold: cfg.CircuitBreakerThreshold,
			SuccessThreshold: 2,
			Timeout:          cfg.CircuitBreakerTimeout,
		})
	}

	if cfg.RetryEnabled {
		rt.retryCfg = resilience.RetryConfig{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryBackoff,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2.0,
		}
	}

	return rt
}

func (rt *ResilientTransport) execute(ctx context.Context, fn resilience.Executor) error {
	operation := fn

	if rt.cb != nil {
		cbFn := operation
		operation = func(ctx context.Context) error {
			return rt.cb.Execute(ctx, cbFn)
		}
	}

	if rt.retryCfg.MaxAttempts > 0 {
		return resilience.Retry(ctx, rt.retryCfg, operation)
	}

	return operation(ctx)
}

func (rt *ResilientTransport) Publish(ctx context.Context, channel string, data []byte) error {
	return rt.execute(ctx, func(ctx context.Context) error {
		return rt.next.Publish(ctx, channel, data)
	})
}

func (rt *ResilientTransport) Subscribe(ctx context.Context, pattern string, on OnMessage) (Handle, error) {
	return rt.next.Subscribe(ctx, pattern, on)
}

func (rt *ResilientTransport) Unsubscribe(ctx context.Context, h Handle) error {
	return rt.next.Unsubscribe(ctx, h)
}

func (rt *ResilientTransport) KVGet(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := rt.execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = rt.next.KVGet(ctx, key)
		return err
	})
	return out, err
}

func (rt *ResilientTransport) KVPut(ctx context.Context, key string, data []byte) error {
	return rt.execute(ctx, func(ctx context.Context) error {
		return rt.next.KVPut(ctx, key, data)
	})
}

func (rt *ResilientTransport) KVDelete(ctx context.Context, key string) error {
	return rt.execute(ctx, func(ctx context.Context) error {
		return rt.next.KVDelete(ctx, key)
	})
}

func (rt *ResilientTransport) KVExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := rt.execute(ctx, func(ctx context.Context) error {
		var err error
		exists, err = rt.next.KVExists(ctx, key)
		return err
	})
	return exists, err
}

func (rt *ResilientTransport) Healthy(ctx context.Context) bool {
	return rt.next.Healthy(ctx)
}

func (rt *ResilientTransport) Close() error {
	return rt.next.Close()
}

// CircuitBreakerState returns the current circuit breaker state, if enabled.
func (rt *ResilientTransport) CircuitBreakerState() resilience.State {
	if rt.cb == nil {
		return ""
	}
	return rt.cb.State()
}
