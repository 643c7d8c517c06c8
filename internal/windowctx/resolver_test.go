package windowctx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthesishq/synthesis-agent/internal/browserurl"
	"github.com/synthesishq/synthesis-agent/internal/logging"
)

type fakeEnumerator struct {
	match *Match
	err   error
	delay time.Duration
}

func (f *fakeEnumerator) FrontWindow(ctx context.Context, region Region) (*Match, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.match, f.err
}

type stubScriptRunner struct{ output string }

func (s *stubScriptRunner) Run(ctx context.Context, script string) (string, error) {
	return s.output, nil
}

func newResolverWith(t *testing.T, enum Enumerator, scriptOutput string) *Resolver {
	t.Helper()
	logger := logging.NewLogger()
	session := browserurl.NewSessionFileResolver(logger)
	session.Roots = []string{t.TempDir()}
	urls := browserurl.NewResolver(
		&stubScriptRunner{output: scriptOutput},
		browserurl.UnavailableAXReader{},
		session,
		logger,
		nil,
	)
	return NewResolver(enum, urls, logger, nil)
}

func TestResolveNonBrowserWindow(t *testing.T) {
	enum := &fakeEnumerator{match: &Match{AppName: "Xcode", Title: "main.go"}}
	r := newResolverWith(t, enum, "")

	out := r.Resolve(context.Background(), testRegion)
	require.NotNil(t, out.SourceApp)
	assert.Equal(t, "Xcode", *out.SourceApp)
	assert.Nil(t, out.SourceURL)
}

func TestResolveBrowserWindowWithURL(t *testing.T) {
	enum := &fakeEnumerator{match: &Match{
		AppName: "Google Chrome",
		Title:   "Release notes - Google Chrome",
	}}
	r := newResolverWith(t, enum, "https://chrome.example.com/notes")

	out := r.Resolve(context.Background(), testRegion)
	require.NotNil(t, out.SourceApp)
	// Page title replaces the browser name, with the suffix stripped.
	assert.Equal(t, "Release notes", *out.SourceApp)
	require.NotNil(t, out.SourceURL)
	assert.Equal(t, "https://chrome.example.com/notes", *out.SourceURL)
}

func TestResolveNoMatchYieldsNullContext(t *testing.T) {
	r := newResolverWith(t, &fakeEnumerator{match: nil}, "")

	out := r.Resolve(context.Background(), testRegion)
	assert.Equal(t, NullContext, out)
}

func TestResolveEnumeratorErrorYieldsNullContext(t *testing.T) {
	r := newResolverWith(t, &fakeEnumerator{err: context.DeadlineExceeded}, "")

	out := r.Resolve(context.Background(), testRegion)
	assert.Equal(t, NullContext, out)
}

func TestResolveTimeout(t *testing.T) {
	enum := &fakeEnumerator{
		match: &Match{AppName: "Xcode"},
		delay: 200 * time.Millisecond,
	}
	r := newResolverWith(t, enum, "")
	r.Timeout = 20 * time.Millisecond

	start := time.Now()
	out := r.Resolve(context.Background(), testRegion)

	assert.Equal(t, NullContext, out)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestStripBrowserSuffix(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"My Page - Google Chrome", "My Page"},
		{"My Page — Zen Browser", "My Page"},
		{"My Page – Firefox", "My Page"},
		{"My Page | Safari", "My Page"},
		{"My Page - chrome", "My Page"},
		{"Plain title", "Plain title"},
		{"Dash - but not a browser", "Dash - but not a browser"},
		// Only the trailing suffix comes off
		{"Chrome vs Firefox - Brave Browser", "Chrome vs Firefox"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, StripBrowserSuffix(tt.title))
		})
	}
}
