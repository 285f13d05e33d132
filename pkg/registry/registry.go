// Package registry implements the registry façade (C8): namespaced
// key/value operations layered on the transport's KV primitives, with
// JSON value encoding, mirroring the teacher's pkg/cache.Cache shape.
package registry

import (
	"context"
	"encoding/json"

	"github.com/chris-alexander-pop/gridswarm/pkg/channel"
	"github.com/chris-alexander-pop/gridswarm/pkg/errors"
	"github.com/chris-alexander-pop/gridswarm/pkg/transport"
)

// CodeMissing is the error code for Get of an absent key.
const CodeMissing = "REGISTRY_MISSING"

// ErrMissing is returned by Get when key is not present.
func ErrMissing(key string) *errors.AppError {
	return errors.New(CodeMissing, "registry key not found: "+key, nil)
}

// Registry is a namespaced key/value store. Values are JSON-encoded on
// write and decoded into dest on read. There is no locking: writes are
// last-writer-wins per the transport's KV semantics.
type Registry interface {
	// Put stores value (JSON-encoded) at key.
	Put(ctx context.Context, key string, value any) error

	// Get decodes the value stored at key into dest. Returns ErrMissing
	// if key is absent.
	Get(ctx context.Context, key string, dest any) error

	// Delete removes key. Not an error if key does not exist.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// Config configures a Registry.
type Config struct {
	// Prefix is prepended to every key regardless of namespace, e.g. to
	// scope an entire fleet's registry entries.
	Prefix string `env:"REGISTRY_PREFIX" env-default:""`
}

type registry struct {
	transport transport.Transport
	namespace string
	prefix    string
}

// New creates a Registry scoped to namespace (the empty string uses keys
// directly, per spec §4.8).
func New(t transport.Transport, namespace string, cfg Config) Registry {
	return &registry{transport: t, namespace: namespace, prefix: cfg.Prefix}
}

func (r *registry) key(key string) string {
	return channel.RegistryKey(r.prefix, r.namespace, key)
}

func (r *registry) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal registry value")
	}
	if err := r.transport.KVPut(ctx, r.key(key), data); err != nil {
		return err
	}
	return nil
}

func (r *registry) Get(ctx context.Context, key string, dest any) error {
	data, err := r.transport.KVGet(ctx, r.key(key))
	if err != nil {
		if errors.CodeOf(err) == transport.CodeKVMissing {
			return ErrMissing(key)
		}
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, "failed to unmarshal registry value")
	}
	return nil
}

func (r *registry) Delete(ctx context.Context, key string) error {
	return r.transport.KVDelete(ctx, r.key(key))
}

func (r *registry) Exists(ctx context.Context, key string) (bool, error) {
	return r.transport.KVExists(ctx, r.key(key))
}
