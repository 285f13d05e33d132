package gridswarm

import (
	"time"

	"github.com/chris-alexander-pop/gridswarm/pkg/dispatch"
	"github.com/chris-alexander-pop/gridswarm/pkg/registry"
	"github.com/chris-alexander-pop/gridswarm/pkg/transport"
)

// Config holds everything needed to construct a Client on top of an
// already-built transport.Transport. Load it with pkg/config.Load for
// environment-variable driven configuration.
type Config struct {
	// RequestTimeout is used when a caller passes a zero timeout to
	// Request/AsyncRequest/Map. Default 5s per spec §6.
	RequestTimeout time.Duration `env:"GRIDSWARM_REQUEST_TIMEOUT" env-default:"5s"`

	// ContractDeadline is used when CollectBids is called with a zero
	// deadline. Default 2s per spec §6.
	ContractDeadline time.Duration `env:"GRIDSWARM_CONTRACT_DEADLINE" env-default:"2s"`

	Dispatch dispatch.Config `env-prefix:""`
	Registry registry.Config `env-prefix:""`

	// Resilient enables circuit breaker + retry wrapping around the
	// supplied transport. Off by default so callers passing the memory
	// adapter in tests get deterministic, unwrapped behavior.
	Resilient        bool                      `env:"GRIDSWARM_TRANSPORT_RESILIENT" env-default:"false"`
	ResilientOptions transport.ResilientConfig `env-prefix:""`

	// Instrumented wraps the transport with logging/tracing spans.
	Instrumented bool `env:"GRIDSWARM_TRANSPORT_INSTRUMENTED" env-default:"false"`
}

// DefaultConfig returns the spec's recommended defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:   5 * time.Second,
		ContractDeadline: 2 * time.Second,
		Dispatch:         dispatch.DefaultConfig(),
	}
}
