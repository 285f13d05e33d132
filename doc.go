/*
Package gridswarm is a client-side messaging fabric for coordination
scripts that cooperate in real time over a shared pub/sub + key/value
transport.

It provides addressing abstractions (public, per-identity, secure group)
over the transport's channel namespace; a request/response protocol with
correlation, timeouts and fan-out aggregation; a sealed-bid contract
auction protocol for single-winner task assignment; and a namespaced
registry layered on the transport's key/value primitives.

# Architecture

The package follows the same adapter pattern as pkg/transport:
  - Core coordination logic (dispatch, reqres, auction, group, registry)
    is transport-agnostic.
  - Concrete backends live in pkg/transport/adapters/{nats,redis,memory}.
  - Client wires the two together behind the user-facing operations below.

# Usage

	import (
	    "github.com/chris-alexander-pop/gridswarm"
	    "github.com/chris-alexander-pop/gridswarm/pkg/transport/adapters/nats"
	)

	t, err := nats.New(ctx, nats.Config{URL: "nats://localhost:4222"})
	client, err := gridswarm.New("scout-7", t, gridswarm.DefaultConfig())
	defer client.Shutdown(context.Background())

	client.OnRequest("status", func(meta envelope.Metadata, payload json.RawMessage) (any, error) {
	    return map[string]bool{"ok": true}, nil
	})

	result := client.Request(ctx, "tank-1", "status", nil, 0)
*/
package gridswarm
