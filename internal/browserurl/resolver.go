package browserurl

import (
	"context"

	"github.com/synthesishq/synthesis-agent/internal/logging"
	"github.com/synthesishq/synthesis-agent/internal/metrics"
)

// Query identifies the browser window whose URL is wanted.
type Query struct {
	AppName     string
	BundleID    string
	WindowTitle string
	PID         int
}

// Resolver determines the active tab URL for a matched browser window.
// Strategies are tried in a fixed order and the first non-empty result wins;
// every failure path inside a strategy collapses to an empty string.
type Resolver struct {
	strategies []strategy
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

type strategy struct {
	name    string
	applies func(Query) bool
	resolve func(context.Context, Query) string
}

// NewResolver builds the strategy chain: direct scripting for
// Chromium/WebKit, then accessibility read and session-file parse for Gecko.
func NewResolver(scripts ScriptRunner, ax AXReader, session *SessionFileResolver, logger *logging.Logger, m *metrics.Metrics) *Resolver {
	r := &Resolver{logger: logger, metrics: m}

	r.strategies = []strategy{
		{
			name: "direct_query",
			applies: func(q Query) bool {
				return IsChromiumOrWebKit(q.AppName)
			},
			resolve: func(ctx context.Context, q Query) string {
				raw, err := scripts.Run(ctx, ChromiumScripts[q.AppName])
				if err != nil {
					return ""
				}
				return ValidateURL(raw)
			},
		},
		{
			name: "ax_read",
			applies: func(q Query) bool {
				return IsGecko(q.AppName) && q.PID > 0 && IsKnownGeckoBundle(q.BundleID)
			},
			resolve: func(ctx context.Context, q Query) string {
				raw, err := ax.ReadBrowserURL(q.PID, q.WindowTitle)
				if err != nil {
					return ""
				}
				return ValidateURL(raw)
			},
		},
		{
			name: "session_file",
			applies: func(q Query) bool {
				return IsGecko(q.AppName)
			},
			resolve: func(ctx context.Context, q Query) string {
				return session.Resolve(q.WindowTitle)
			},
		},
	}

	return r
}

// Resolve returns the URL for the query, or empty when no strategy produced
// one. Strategies never propagate errors or panics past this boundary.
func (r *Resolver) Resolve(ctx context.Context, q Query) string {
	for _, s := range r.strategies {
		if !s.applies(q) {
			continue
		}
		url := r.runStrategy(ctx, s, q)
		if url != "" {
			r.count(s.name, "hit")
			return url
		}
		r.count(s.name, "miss")
	}
	return ""
}

func (r *Resolver) runStrategy(ctx context.Context, s strategy, q Query) (url string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("url strategy panicked", "strategy", s.name, "panic", rec)
			url = ""
		}
	}()
	return s.resolve(ctx, q)
}

func (r *Resolver) count(strategyName, outcome string) {
	if r.metrics != nil {
		r.metrics.URLResolutions.WithLabelValues(strategyName, outcome).Inc()
	}
}
