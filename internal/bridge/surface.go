package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synthesishq/synthesis-agent/internal/logging"
)

// Event types delivered to an attached UI surface.
const (
	EventToken        = "token"
	EventSessionEnded = "session_ended"
	EventTokenRequest = "token_request"
)

// attachWindow is how long after its last poll a surface still counts as
// attached. Pollers re-poll immediately, so a gap longer than this means
// the surface is gone.
const attachWindow = 30 * time.Second

// Event is one message on the UI surface channel.
type Event struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// SurfaceHub connects the agent to whatever UI surface is long-polling
// the bridge. Token events published while no surface is attached are
// buffered and handed to the next poller exactly once; only the newest
// buffered token is kept, since a stale access token is worthless.
//
// SurfaceHub implements auth.Notifier.
type SurfaceHub struct {
	mu       sync.Mutex
	waiter   chan Event
	queue    []Event
	requests map[string]chan string
	lastPoll time.Time
	logger   *logging.Logger
}

// NewSurfaceHub creates an empty hub with no surface attached.
func NewSurfaceHub(logger *logging.Logger) *SurfaceHub {
	return &SurfaceHub{
		requests: make(map[string]chan string),
		logger:   logger,
	}
}

// TokenIssued delivers a fresh access token to the surface, or buffers it
// for the next one to attach.
func (h *SurfaceHub) TokenIssued(token string) {
	h.publish(Event{Type: EventToken, Token: token})
}

// SessionEnded tells the surface the session is gone and it should render
// signed-out state.
func (h *SurfaceHub) SessionEnded() {
	h.publish(Event{Type: EventSessionEnded})
}

func (h *SurfaceHub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.waiter != nil {
		h.waiter <- ev
		h.waiter = nil
		return
	}

	if ev.Type == EventToken {
		kept := h.queue[:0]
		for _, queued := range h.queue {
			if queued.Type != EventToken {
				kept = append(kept, queued)
			}
		}
		h.queue = kept
	}
	h.queue = append(h.queue, ev)
}

// Poll blocks until an event is available or ctx expires. The second
// return value is false on timeout.
func (h *SurfaceHub) Poll(ctx context.Context) (Event, bool) {
	h.mu.Lock()
	h.lastPoll = time.Now()
	if len(h.queue) > 0 {
		ev := h.queue[0]
		h.queue = h.queue[1:]
		h.mu.Unlock()
		return ev, true
	}
	ch := make(chan Event, 1)
	h.waiter = ch
	h.mu.Unlock()

	select {
	case ev := <-ch:
		h.mu.Lock()
		h.lastPoll = time.Now()
		h.mu.Unlock()
		return ev, true
	case <-ctx.Done():
		h.mu.Lock()
		if h.waiter == ch {
			h.waiter = nil
		}
		// An event may have been handed to this poller just as it gave
		// up; put it back so the next poll sees it.
		select {
		case ev := <-ch:
			h.queue = append([]Event{ev}, h.queue...)
		default:
		}
		h.mu.Unlock()
		return Event{}, false
	}
}

// Attached reports whether a surface is currently polling or polled
// recently enough to still be considered live.
func (h *SurfaceHub) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waiter != nil || time.Since(h.lastPoll) < attachWindow
}

// RequestToken asks the attached surface for its current access token and
// waits for the answer until ctx expires. Callers bound ctx themselves.
func (h *SurfaceHub) RequestToken(ctx context.Context) (string, error) {
	if !h.Attached() {
		return "", fmt.Errorf("no ui surface attached")
	}

	id := uuid.NewString()
	answer := make(chan string, 1)

	h.mu.Lock()
	h.requests[id] = answer
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.requests, id)
		h.mu.Unlock()
	}()

	h.publish(Event{Type: EventTokenRequest, RequestID: id})

	select {
	case token := <-answer:
		return token, nil
	case <-ctx.Done():
		if h.logger != nil {
			h.logger.Debug("surface token request timed out", "request_id", id)
		}
		return "", ctx.Err()
	}
}

// ProvideToken resolves an outstanding token request. It reports whether
// the request was still pending.
func (h *SurfaceHub) ProvideToken(requestID, token string) bool {
	h.mu.Lock()
	answer, ok := h.requests[requestID]
	if ok {
		delete(h.requests, requestID)
	}
	h.mu.Unlock()

	if !ok {
		return false
	}
	answer <- token
	return true
}
