package windowctx

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/synthesishq/synthesis-agent/internal/browserurl"
	"github.com/synthesishq/synthesis-agent/internal/logging"
	"github.com/synthesishq/synthesis-agent/internal/metrics"
)

// DefaultTimeout bounds one whole context resolution.
const DefaultTimeout = 3 * time.Second

var titleSuffixPattern = buildTitleSuffixPattern()

func buildTitleSuffixPattern() *regexp.Regexp {
	escaped := make([]string, 0, len(browserurl.BrowserDisplayNames))
	for _, name := range browserurl.BrowserDisplayNames {
		escaped = append(escaped, regexp.QuoteMeta(name))
	}
	// Longer names precede their prefixes in the table, so "Zen Browser"
	// wins over "Zen" and "Google Chrome" over "Chrome".
	return regexp.MustCompile(`(?i)\s*[—–\-|]\s*(` + strings.Join(escaped, "|") + `)\s*$`)
}

// StripBrowserSuffix removes a trailing dash-separated browser name decoration
// from a window title. Returns the input unchanged when no known browser
// name trails it.
func StripBrowserSuffix(title string) string {
	return strings.TrimSpace(titleSuffixPattern.ReplaceAllString(title, ""))
}

// Resolver turns a selected region into the attribution context for the
// owning window.
type Resolver struct {
	enum    Enumerator
	urls    *browserurl.Resolver
	logger  *logging.Logger
	metrics *metrics.Metrics

	// Timeout bounds a whole Resolve call.
	Timeout time.Duration
}

// NewResolver creates a window context resolver.
func NewResolver(enum Enumerator, urls *browserurl.Resolver, logger *logging.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{
		enum:    enum,
		urls:    urls,
		logger:  logger,
		metrics: m,
		Timeout: DefaultTimeout,
	}
}

// Resolve races the resolution pipeline against the overall timeout.
// Whichever finishes first wins; a late result from the losing side is
// discarded, not cancelled, so resolution work must stay side-effect free.
// Every failure degrades to the null context; the capture flow never blocks
// on attribution.
func (r *Resolver) Resolve(ctx context.Context, region Region) Context {
	done := make(chan Context, 1)
	go func() {
		done <- r.resolve(ctx, region)
	}()

	select {
	case result := <-done:
		if result.SourceApp == nil && result.SourceURL == nil {
			r.count("null")
		} else {
			r.count("resolved")
		}
		return result
	case <-time.After(r.Timeout):
		r.logger.Warn("window context resolution timed out", "timeout_ms", r.Timeout.Milliseconds())
		r.count("timeout")
		return NullContext
	}
}

func (r *Resolver) resolve(ctx context.Context, region Region) Context {
	match, err := r.enum.FrontWindow(ctx, region)
	if err != nil {
		r.logger.Warn("window enumeration failed", "error", err.Error())
		return NullContext
	}
	if match == nil || match.AppName == "" {
		return NullContext
	}

	var sourceURL *string
	if browserurl.IsBrowser(match.AppName) {
		if url := r.urls.Resolve(ctx, browserurl.Query{
			AppName:     match.AppName,
			BundleID:    match.BundleID,
			WindowTitle: match.Title,
			PID:         match.PID,
		}); url != "" {
			sourceURL = &url
		}
	}

	// Users recognize content by page title, not by the hosting browser's
	// name, so for browsers the cleaned window title replaces the app name.
	sourceApp := match.AppName
	if browserurl.IsBrowser(match.AppName) && match.Title != "" {
		if cleaned := StripBrowserSuffix(match.Title); cleaned != "" {
			sourceApp = cleaned
		}
	}

	return Context{SourceApp: &sourceApp, SourceURL: sourceURL}
}

func (r *Resolver) count(outcome string) {
	if r.metrics != nil {
		r.metrics.ContextResolutions.WithLabelValues(outcome).Inc()
	}
}
