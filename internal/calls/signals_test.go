package calls

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySignalsFanOutPerRoom(t *testing.T) {
	signals := NewMemorySignals()
	ctx := context.Background()

	a1, err := signals.Subscribe(ctx, "room-a")
	require.NoError(t, err)
	a2, err := signals.Subscribe(ctx, "room-a")
	require.NoError(t, err)
	b, err := signals.Subscribe(ctx, "room-b")
	require.NoError(t, err)

	require.NoError(t, signals.Publish(ctx, Signal{Room: "room-a", Kind: SignalParticipantJoined, Identity: "caller-+1"}))
	require.NoError(t, signals.Publish(ctx, Signal{Room: "room-a", Kind: SignalSessionEnded}))

	for _, sub := range []Subscription{a1, a2} {
		first, err := sub.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, SignalParticipantJoined, first.Kind)
		second, err := sub.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, SignalSessionEnded, second.Kind)
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = b.Next(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemorySubscriptionClose(t *testing.T) {
	signals := NewMemorySignals()
	sub, err := signals.Subscribe(context.Background(), "room")
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrSubscriptionClosed)

	assert.NoError(t, signals.Publish(context.Background(), Signal{Room: "room", Kind: SignalRoomFinished}))
	assert.Empty(t, signals.subs)
}

func TestRedisSignalsReplayInOrder(t *testing.T) {
	mr, rdb := newRedis(t)
	signals := NewRedisSignals(rdb)
	ctx := context.Background()

	require.NoError(t, signals.Publish(ctx, Signal{Room: "coaching-1", Kind: SignalParticipantJoined, Identity: "web"}))
	require.NoError(t, signals.Publish(ctx, Signal{Room: "coaching-2", Kind: SignalRoomFinished}))
	require.NoError(t, signals.Publish(ctx, Signal{Room: "coaching-1", Kind: SignalParticipantLeft, Identity: "web"}))

	sub, err := signals.Subscribe(ctx, "coaching-1")
	require.NoError(t, err)
	defer sub.Close()

	first, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, SignalParticipantJoined, first.Kind)
	assert.Equal(t, "web", first.Identity)

	second, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, SignalParticipantLeft, second.Kind)

	assert.True(t, mr.Exists("calls:signals:coaching-1"))
	assert.Greater(t, mr.TTL("calls:signals:coaching-1"), time.Duration(0))
}

func TestRedisSubscriptionHonoursContextAndClose(t *testing.T) {
	_, rdb := newRedis(t)
	sub, err := NewRedisSignals(rdb).Subscribe(context.Background(), "coaching-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, sub.Close())
	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrSubscriptionClosed)
}
