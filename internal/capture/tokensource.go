package capture

import (
	"context"
	"time"

	"github.com/synthesishq/synthesis-agent/internal/bridge"
)

// surfaceTokenTimeout bounds the round trip to an attached UI surface.
const surfaceTokenTimeout = 10 * time.Second

// TokenSource yields the current access token. An empty token with a nil
// error means signed out.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// SurfaceFirstTokenSource asks an attached UI surface for its token
// before falling back to the stored session. The surface may hold a
// fresher token than the store when a refresh landed moments ago.
type SurfaceFirstTokenSource struct {
	Hub      *bridge.SurfaceHub
	Fallback TokenSource
}

func (s *SurfaceFirstTokenSource) Token(ctx context.Context) (string, error) {
	if s.Hub != nil && s.Hub.Attached() {
		bounded, cancel := context.WithTimeout(ctx, surfaceTokenTimeout)
		token, err := s.Hub.RequestToken(bounded)
		cancel()
		if err == nil && token != "" {
			return token, nil
		}
	}
	if s.Fallback == nil {
		return "", nil
	}
	return s.Fallback.Token(ctx)
}
