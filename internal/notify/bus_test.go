package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "channel closed before update arrived")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

func TestBus_PerSessionSubscription(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "s1")
	require.NoError(t, err)

	bus.Publish(Update{SessionID: "s1", Kind: UpdateTextDelta, Text: "Hi"})

	u := recv(t, ch)
	assert.Equal(t, "s1", u.SessionID)
	assert.Equal(t, UpdateTextDelta, u.Kind)
	assert.Equal(t, "Hi", u.Text)
}

func TestBus_SessionIsolation(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch1, err := bus.Subscribe(ctx, "s1")
	require.NoError(t, err)

	bus.Publish(Update{SessionID: "s2", Kind: UpdateStatus, Status: "completed"})
	bus.Publish(Update{SessionID: "s1", Kind: UpdateStatus, Status: "in_progress"})

	// Only the s1 update reaches the s1 subscriber.
	u := recv(t, ch1)
	assert.Equal(t, "s1", u.SessionID)
}

func TestBus_Firehose(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all, err := bus.SubscribeAll(ctx)
	require.NoError(t, err)

	bus.Publish(Update{SessionID: "s1", Kind: UpdateStatus, Status: "queued"})
	bus.Publish(Update{SessionID: "s2", Kind: UpdateStatus, Status: "queued"})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		seen[recv(t, all).SessionID] = true
	}
	assert.True(t, seen["s1"] && seen["s2"])
}

func TestBus_SubscribeAfterCancel(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, "s1")
	require.NoError(t, err)
	cancel()

	// Channel drains and closes once the context ends.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel did not close after cancel")
		}
	}
}
