package transport

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/gridswarm/pkg/transport/adapters/memory"
)

func TestInstrumentedTransport_DelegatesPublishAndSubscribe(t *testing.T) {
	inner := memory.New(memory.Config{})
	it := NewInstrumentedTransport(inner)

	got := make(chan []byte, 1)
	_, err := it.Subscribe(context.Background(), "gs.pub.*", func(ch string, data []byte) { got <- data })
	require.NoError(t, err)

	require.NoError(t, it.Publish(context.Background(), "gs.pub.status", []byte("payload")))

	select {
	case data := <-got:
		assert.Equal(t, "payload", string(data))
	default:
		t.Fatal("instrumented transport did not deliver the message via the wrapped memory transport")
	}
}

func TestInstrumentedTransport_DelegatesKVOperations(t *testing.T) {
	inner := memory.New(memory.Config{})
	it := NewInstrumentedTransport(inner)
	ctx := context.Background()

	require.NoError(t, it.KVPut(ctx, "k", []byte("v")))
	v, err := it.KVGet(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))

	ok, err := it.KVExists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, it.KVDelete(ctx, "k"))
	ok, err = it.KVExists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInstrumentedTransport_DelegatesHealthyAndClose(t *testing.T) {
	inner := memory.New(memory.Config{})
	it := NewInstrumentedTransport(inner)
	assert.True(t, it.Healthy(context.Background()))
	require.NoError(t, it.Close())
	assert.False(t, it.Healthy(context.Background()))
}

func TestInstrumentedTransport_PropagatesPublishError(t *testing.T) {
	inner := memory.New(memory.Config{})
	it := NewInstrumentedTransport(inner)
	require.NoError(t, it.Close())

	err := it.Publish(context.Background(), "gs.pub.status", []byte("x"))
	assert.Error(t, err)
}
