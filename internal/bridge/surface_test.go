package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthesishq/synthesis-agent/internal/logging"
)

func newTestHub() *SurfaceHub {
	return NewSurfaceHub(logging.NewLogger(logging.WithLevel(logging.LevelError)))
}

func pollWithTimeout(h *SurfaceHub, d time.Duration) (Event, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return h.Poll(ctx)
}

func TestBufferedTokenDeliveredOnce(t *testing.T) {
	h := newTestHub()
	h.TokenIssued("t1")

	ev, ok := pollWithTimeout(h, 100*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, EventToken, ev.Type)
	assert.Equal(t, "t1", ev.Token)

	_, ok = pollWithTimeout(h, 20*time.Millisecond)
	assert.False(t, ok)
}

func TestNewerTokenReplacesBufferedOne(t *testing.T) {
	h := newTestHub()
	h.TokenIssued("stale")
	h.TokenIssued("fresh")

	ev, ok := pollWithTimeout(h, 100*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "fresh", ev.Token)

	_, ok = pollWithTimeout(h, 20*time.Millisecond)
	assert.False(t, ok, "the stale token must not be delivered")
}

func TestTokenReplacementPreservesOtherEvents(t *testing.T) {
	h := newTestHub()
	h.TokenIssued("stale")
	h.SessionEnded()
	h.TokenIssued("fresh")

	ev, ok := pollWithTimeout(h, 100*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, EventSessionEnded, ev.Type)

	ev, ok = pollWithTimeout(h, 100*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "fresh", ev.Token)
}

func TestLiveDeliveryToWaitingPoller(t *testing.T) {
	h := newTestHub()

	got := make(chan Event, 1)
	go func() {
		ev, ok := pollWithTimeout(h, 2*time.Second)
		if ok {
			got <- ev
		}
	}()

	require.Eventually(t, h.Attached, time.Second, 5*time.Millisecond)
	h.TokenIssued("live")

	select {
	case ev := <-got:
		assert.Equal(t, "live", ev.Token)
	case <-time.After(2 * time.Second):
		t.Fatal("poller never received the event")
	}
}

func TestAttachedTracksPolling(t *testing.T) {
	h := newTestHub()
	assert.False(t, h.Attached())

	pollWithTimeout(h, 10*time.Millisecond)
	assert.True(t, h.Attached())
}

func TestRequestTokenRoundTrip(t *testing.T) {
	h := newTestHub()
	pollWithTimeout(h, 10*time.Millisecond) // attach

	go func() {
		ev, ok := pollWithTimeout(h, 2*time.Second)
		if ok && ev.Type == EventTokenRequest {
			h.ProvideToken(ev.RequestID, "surface-token")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	token, err := h.RequestToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "surface-token", token)
}

func TestRequestTokenWithoutSurface(t *testing.T) {
	h := newTestHub()

	_, err := h.RequestToken(context.Background())
	assert.Error(t, err)
}

func TestRequestTokenTimeout(t *testing.T) {
	h := newTestHub()
	pollWithTimeout(h, 10*time.Millisecond) // attach

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.RequestToken(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The request is gone once the waiter gives up.
	assert.False(t, h.ProvideToken("whatever", "late"))
}
