package transport

import "time"

// Config holds backend-agnostic transport configuration. Each adapter also
// has its own detailed configuration struct (nats.Config, redis.Config).
// Nothing in this repository builds an adapter from Config; callers
// construct the adapter they want themselves.
type Config struct {
	// Driver names an adapter: memory, nats or redis.
	Driver string `env:"TRANSPORT_DRIVER" env-default:"memory"`

	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration `env:"TRANSPORT_CONNECT_TIMEOUT" env-default:"5s"`
}
