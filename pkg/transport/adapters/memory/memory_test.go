package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chris-alexander-pop/gridswarm/pkg/errors"
	"github.com/chris-alexander-pop/gridswarm/pkg/transport"
)

func TestPublishSubscribe_DeliversMatchingChannel(t *testing.T) {
	tr := New(Config{})
	var got []byte
	_, err := tr.Subscribe(context.Background(), "gs.pub.*", func(ch string, data []byte) {
		got = data
	})
	require.NoError(t, err)

	require.NoError(t, tr.Publish(context.Background(), "gs.pub.loot_drop", []byte("payload")))
	assert.Equal(t, "payload", string(got))
}

func TestPublish_DoesNotDeliverToNonMatchingPattern(t *testing.T) {
	tr := New(Config{})
	called := false
	_, err := tr.Subscribe(context.Background(), "gs.scout-1.*", func(ch string, data []byte) {
		called = true
	})
	require.NoError(t, err)

	require.NoError(t, tr.Publish(context.Background(), "gs.pub.loot_drop", []byte("payload")))
	assert.False(t, called)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	tr := New(Config{})
	calls := 0
	h, err := tr.Subscribe(context.Background(), "gs.pub.*", func(ch string, data []byte) {
		calls++
	})
	require.NoError(t, err)

	require.NoError(t, tr.Publish(context.Background(), "gs.pub.x", []byte("a")))
	require.NoError(t, tr.Unsubscribe(context.Background(), h))
	require.NoError(t, tr.Publish(context.Background(), "gs.pub.x", []byte("b")))

	assert.Equal(t, 1, calls)
}

func TestPublish_DeliversToAllMatchingSubscribers(t *testing.T) {
	tr := New(Config{})
	count := 0
	_, _ = tr.Subscribe(context.Background(), "gs.pub.*", func(string, []byte) { count++ })
	_, _ = tr.Subscribe(context.Background(), "gs.pub.*", func(string, []byte) { count++ })

	require.NoError(t, tr.Publish(context.Background(), "gs.pub.x", []byte("a")))
	assert.Equal(t, 2, count)
}

func TestKV_PutGetDeleteExists(t *testing.T) {
	tr := New(Config{})
	ctx := context.Background()

	ok, err := tr.KVExists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tr.KVPut(ctx, "k", []byte("v")))

	v, err := tr.KVGet(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))

	ok, err = tr.KVExists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, tr.KVDelete(ctx, "k"))
	_, err = tr.KVGet(ctx, "k")
	assert.Equal(t, transport.CodeKVMissing, errors.CodeOf(err))
}

func TestHealthy_FalseAfterClose(t *testing.T) {
	tr := New(Config{})
	assert.True(t, tr.Healthy(context.Background()))
	require.NoError(t, tr.Close())
	assert.False(t, tr.Healthy(context.Background()))
}

func TestPublish_AfterCloseReturnsErrClosed(t *testing.T) {
	tr := New(Config{})
	require.NoError(t, tr.Close())
	err := tr.Publish(context.Background(), "gs.pub.x", []byte("a"))
	require.Error(t, err)
}

func TestSubscribe_AfterCloseReturnsErrClosed(t *testing.T) {
	tr := New(Config{})
	require.NoError(t, tr.Close())
	_, err := tr.Subscribe(context.Background(), "gs.pub.*", func(string, []byte) {})
	require.Error(t, err)
}

func TestPublish_MutatingCallerBufferDoesNotAffectDelivered(t *testing.T) {
	tr := New(Config{})
	var got []byte
	_, err := tr.Subscribe(context.Background(), "gs.pub.*", func(ch string, data []byte) {
		got = data
	})
	require.NoError(t, err)

	buf := []byte("original")
	require.NoError(t, tr.Publish(context.Background(), "gs.pub.x", buf))
	buf[0] = 'X'
	assert.Equal(t, "original", string(got))
}
