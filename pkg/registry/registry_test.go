package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/gridswarm/pkg/errors"
	"github.com/chris-alexander-pop/gridswarm/pkg/transport/adapters/memory"
)

type priceEntry struct {
	Item  string `json:"item"`
	Price int    `json:"price"`
}

func newTestRegistry(namespace string) Registry {
	return New(memory.New(memory.Config{}), namespace, Config{Prefix: "gs.reg."})
}

func TestPutGet_RoundTrips(t *testing.T) {
	r := newTestRegistry("prices")
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, "wood", priceEntry{Item: "wood", Price: 4}))

	var got priceEntry
	require.NoError(t, r.Get(ctx, "wood", &got))
	assert.Equal(t, priceEntry{Item: "wood", Price: 4}, got)
}

func TestGet_MissingKeyReturnsErrMissing(t *testing.T) {
	r := newTestRegistry("prices")
	var got priceEntry
	err := r.Get(context.Background(), "stone", &got)
	require.Error(t, err)
	assert.Equal(t, CodeMissing, errors.CodeOf(err))
}

func TestDelete_RemovesKey(t *testing.T) {
	r := newTestRegistry("prices")
	ctx := context.Background()
	require.NoError(t, r.Put(ctx, "wood", priceEntry{Item: "wood", Price: 4}))

	require.NoError(t, r.Delete(ctx, "wood"))

	var got priceEntry
	err := r.Get(ctx, "wood", &got)
	assert.Equal(t, CodeMissing, errors.CodeOf(err))
}

func TestDelete_NonexistentKeyIsNotAnError(t *testing.T) {
	r := newTestRegistry("prices")
	assert.NoError(t, r.Delete(context.Background(), "nope"))
}

func TestExists(t *testing.T) {
	r := newTestRegistry("prices")
	ctx := context.Background()

	ok, err := r.Exists(ctx, "wood")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Put(ctx, "wood", priceEntry{Item: "wood", Price: 4}))

	ok, err = r.Exists(ctx, "wood")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNamespaceIsolation(t *testing.T) {
	t1 := memory.New(memory.Config{})
	a := New(t1, "raid42", Config{Prefix: "gs.reg."})
	b := New(t1, "raid7", Config{Prefix: "gs.reg."})
	ctx := context.Background()

	require.NoError(t, a.Put(ctx, "loot", priceEntry{Item: "gold", Price: 100}))

	var got priceEntry
	err := b.Get(ctx, "loot", &got)
	assert.Equal(t, CodeMissing, errors.CodeOf(err))
}

func TestEmptyNamespace_UsesKeyDirectly(t *testing.T) {
	r := New(memory.New(memory.Config{}), "", Config{Prefix: "gs.reg."})
	ctx := context.Background()
	require.NoError(t, r.Put(ctx, "wood", priceEntry{Item: "wood", Price: 4}))

	var got priceEntry
	require.NoError(t, r.Get(ctx, "wood", &got))
	assert.Equal(t, priceEntry{Item: "wood", Price: 4}, got)
}
