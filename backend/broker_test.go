package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscription) ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return ChangeEvent{}
	}
}

func TestBroker_DeliversOnlyToCollection(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	workers, err := b.Subscribe(context.Background(), "workers")
	require.NoError(t, err)
	regions, err := b.Subscribe(context.Background(), "regions")
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), ChangeEvent{Kind: ChangeInsert, Collection: "workers", ID: "w1"}))

	ev := receive(t, workers)
	assert.Equal(t, ChangeInsert, ev.Kind)
	assert.Equal(t, "w1", ev.ID)

	select {
	case ev := <-regions.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestBroker_EachSubscriberGetsItsOwnCopy(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	first, err := b.Subscribe(context.Background(), "workers")
	require.NoError(t, err)
	second, err := b.Subscribe(context.Background(), "workers")
	require.NoError(t, err)
	assert.Equal(t, 2, b.SubscriberCount("workers"))

	require.NoError(t, b.Publish(context.Background(), ChangeEvent{Kind: ChangeDelete, Collection: "workers"}))

	assert.Equal(t, ChangeDelete, receive(t, first).Kind)
	assert.Equal(t, ChangeDelete, receive(t, second).Kind)
}

func TestBroker_CloseReleasesSubscription(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	sub, err := b.Subscribe(context.Background(), "workers")
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	assert.Equal(t, 0, b.SubscriberCount("workers"))
	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestBroker_ContextCancelReleasesSubscription(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := b.Subscribe(ctx, "workers")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed after cancel")
	}
	assert.Equal(t, 0, b.SubscriberCount("workers"))
}

func TestBroker_FullBufferDropsWithoutBlocking(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	sub, err := b.Subscribe(context.Background(), "workers")
	require.NoError(t, err)

	for i := 0; i < DefaultBufferSize*2; i++ {
		require.NoError(t, b.Publish(context.Background(), ChangeEvent{Kind: ChangeUpdate, Collection: "workers"}))
	}
	assert.Len(t, sub.Events(), DefaultBufferSize)
}

func TestBroker_ClosedBroker(t *testing.T) {
	b := NewBroker()
	sub, err := b.Subscribe(context.Background(), "workers")
	require.NoError(t, err)

	b.Close()

	_, ok := <-sub.Events()
	assert.False(t, ok)
	_, err = b.Subscribe(context.Background(), "workers")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Publish(context.Background(), ChangeEvent{Collection: "workers"}), ErrClosed)
}
