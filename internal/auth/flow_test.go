package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthesishq/synthesis-agent/internal/config"
	apperrors "github.com/synthesishq/synthesis-agent/internal/errors"
	"github.com/synthesishq/synthesis-agent/internal/logging"
	"github.com/synthesishq/synthesis-agent/internal/store"
)

type memStore struct {
	mu    sync.Mutex
	slots map[string]string
}

func newMemStore() *memStore {
	return &memStore{slots: make(map[string]string)}
}

func (m *memStore) Load(slot string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[slot], nil
}

func (m *memStore) Save(slot, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot] = value
	return nil
}

func (m *memStore) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = make(map[string]string)
	return nil
}

type recordingOpener struct {
	mu   sync.Mutex
	urls []string
}

func (o *recordingOpener) OpenURL(_ context.Context, rawURL string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, rawURL)
	return nil
}

func (o *recordingOpener) last(t *testing.T) *url.URL {
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.urls)
	u, err := url.Parse(o.urls[len(o.urls)-1])
	require.NoError(t, err)
	return u
}

type recordingNotifier struct {
	mu     sync.Mutex
	tokens []string
	ended  int
}

func (n *recordingNotifier) TokenIssued(token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = append(n.tokens, token)
}

func (n *recordingNotifier) SessionEnded() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ended++
}

func (n *recordingNotifier) endedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ended
}

func newTestFlow(t *testing.T, tokenURL, revokeURL string) (*Flow, *memStore, *recordingOpener, *recordingNotifier) {
	t.Helper()

	cfg := config.AuthConfig{
		AuthorizeURL: "https://idp.example/oauth/authorize",
		TokenURL:     tokenURL,
		RevokeURL:    revokeURL,
		ClientID:     "synthesis-desktop",
		Scheme:       "curate",
		Scopes:       []string{"openid", "offline_access"},
	}

	st := newMemStore()
	opener := &recordingOpener{}
	notifier := &recordingNotifier{}
	logger := logging.NewLogger(logging.WithLevel(logging.LevelError))

	f := NewFlow(cfg, st, opener, notifier, nil, logger)
	t.Cleanup(f.Scheduler().Cancel)
	return f, st, opener, notifier
}

func tokenJSON(access, refresh string, expiresIn int64) string {
	return fmt.Sprintf(`{"access_token":%q,"refresh_token":%q,"token_type":"Bearer","expires_in":%d}`,
		access, refresh, expiresIn)
}

func TestInitiateSignInBuildsAuthorizeURL(t *testing.T) {
	f, _, opener, _ := newTestFlow(t, "https://idp.example/oauth/token", "")

	require.NoError(t, f.InitiateSignIn(context.Background()))

	u := opener.last(t)
	q := u.Query()
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "synthesis-desktop", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "curate://auth", q.Get("redirect_uri"))
	assert.Equal(t, "openid offline_access", q.Get("scope"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Len(t, q.Get("state"), 43)
	assert.Len(t, q.Get("code_challenge"), 43)
}

func TestInitiateSignInReplacesPendingState(t *testing.T) {
	f, _, opener, _ := newTestFlow(t, "https://idp.example/oauth/token", "")
	ctx := context.Background()

	require.NoError(t, f.InitiateSignIn(ctx))
	first := opener.last(t).Query().Get("state")
	require.NoError(t, f.InitiateSignIn(ctx))
	second := opener.last(t).Query().Get("state")

	assert.NotEqual(t, first, second)
}

func TestFullSignInExchange(t *testing.T) {
	var challenge atomic.Value

	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "code-123", r.PostForm.Get("code"))
		assert.Equal(t, "curate://auth", r.PostForm.Get("redirect_uri"))
		assert.Equal(t, "synthesis-desktop", r.PostForm.Get("client_id"))

		// The verifier sent to the token endpoint must hash to the
		// challenge sent to the authorize endpoint.
		verifier := r.PostForm.Get("code_verifier")
		assert.Equal(t, challenge.Load().(string), ChallengeS256(verifier))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, tokenJSON("access-1", "refresh-1", 3600))
	}))
	defer idp.Close()

	f, st, opener, notifier := newTestFlow(t, idp.URL, "")
	ctx := context.Background()

	require.NoError(t, f.InitiateSignIn(ctx))
	q := opener.last(t).Query()
	challenge.Store(q.Get("code_challenge"))

	link := "curate://auth?code=code-123&state=" + url.QueryEscape(q.Get("state"))
	require.NoError(t, f.HandleDeepLink(ctx, link))

	access, _ := st.Load(store.SlotAccess)
	refresh, _ := st.Load(store.SlotRefresh)
	expiry, _ := st.Load(store.SlotExpiry)
	assert.Equal(t, "access-1", access)
	assert.Equal(t, "refresh-1", refresh)

	ms, err := strconv.ParseInt(expiry, 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, time.Now().Add(time.Hour).UnixMilli(), ms, 5000)

	assert.Equal(t, []string{"access-1"}, notifier.tokens)
	assert.True(t, f.Scheduler().Armed())
}

func TestStateMismatchNeverReachesTokenEndpoint(t *testing.T) {
	var calls atomic.Int32
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, tokenJSON("x", "y", 3600))
	}))
	defer idp.Close()

	f, st, _, _ := newTestFlow(t, idp.URL, "")
	ctx := context.Background()

	require.NoError(t, f.InitiateSignIn(ctx))
	err := f.HandleDeepLink(ctx, "curate://auth?code=stolen&state=forged")

	var mismatch *apperrors.ErrStateMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int32(0), calls.Load())

	access, _ := st.Load(store.SlotAccess)
	assert.Empty(t, access)
}

func TestProviderErrorAbortsFlow(t *testing.T) {
	var calls atomic.Int32
	idp := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer idp.Close()

	f, _, opener, _ := newTestFlow(t, idp.URL, "")
	ctx := context.Background()

	require.NoError(t, f.InitiateSignIn(ctx))
	state := opener.last(t).Query().Get("state")

	err := f.HandleDeepLink(ctx, "curate://auth?error=access_denied&error_description=user+cancelled")
	var denied *apperrors.ErrAuthorizationDenied
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "access_denied", denied.Code)

	// The pending record was discarded, so even the legitimate callback
	// can no longer trigger an exchange.
	require.NoError(t, f.HandleDeepLink(ctx, "curate://auth?code=late&state="+url.QueryEscape(state)))
	assert.Equal(t, int32(0), calls.Load())
}

func TestForeignDeepLinksIgnored(t *testing.T) {
	f, _, _, _ := newTestFlow(t, "https://idp.example/oauth/token", "")
	ctx := context.Background()

	require.NoError(t, f.HandleDeepLink(ctx, "curate://capture?region=full"))
	require.NoError(t, f.HandleDeepLink(ctx, "https://example.com/auth?code=x&state=y"))

	replayed, err := f.ReplayCachedDeepLink(ctx)
	require.NoError(t, err)
	assert.False(t, replayed)
}

func TestColdLaunchCallbackReplayedOnce(t *testing.T) {
	f, _, _, _ := newTestFlow(t, "https://idp.example/oauth/token", "")
	ctx := context.Background()

	require.NoError(t, f.HandleDeepLink(ctx, "curate://auth?code=early&state=s1"))

	replayed, err := f.ReplayCachedDeepLink(ctx)
	require.NoError(t, err)
	assert.True(t, replayed)

	replayed, err = f.ReplayCachedDeepLink(ctx)
	require.NoError(t, err)
	assert.False(t, replayed)
}

func TestInitiateSignInDiscardsCachedCallback(t *testing.T) {
	f, _, _, _ := newTestFlow(t, "https://idp.example/oauth/token", "")
	ctx := context.Background()

	require.NoError(t, f.HandleDeepLink(ctx, "curate://auth?code=stale&state=old"))
	require.NoError(t, f.InitiateSignIn(ctx))

	replayed, err := f.ReplayCachedDeepLink(ctx)
	require.NoError(t, err)
	assert.False(t, replayed)
}

func TestTokenFreshSessionSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	idp := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer idp.Close()

	f, st, _, _ := newTestFlow(t, idp.URL, "")
	require.NoError(t, st.Save(store.SlotAccess, "current"))
	require.NoError(t, st.Save(store.SlotRefresh, "r1"))
	require.NoError(t, st.Save(store.SlotExpiry, strconv.FormatInt(time.Now().Add(10*time.Minute).UnixMilli(), 10)))

	token, err := f.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "current", token)
	assert.Equal(t, int32(0), calls.Load())
}

func TestTokenSignedOutReturnsEmpty(t *testing.T) {
	f, _, _, _ := newTestFlow(t, "https://idp.example/oauth/token", "")

	token, err := f.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTokenNearExpiryRefreshesInline(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "r1", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, tokenJSON("renewed", "r2", 3600))
	}))
	defer idp.Close()

	f, st, _, _ := newTestFlow(t, idp.URL, "")
	require.NoError(t, st.Save(store.SlotAccess, "stale"))
	require.NoError(t, st.Save(store.SlotRefresh, "r1"))
	require.NoError(t, st.Save(store.SlotExpiry, strconv.FormatInt(time.Now().Add(30*time.Second).UnixMilli(), 10)))

	token, err := f.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "renewed", token)

	refresh, _ := st.Load(store.SlotRefresh)
	assert.Equal(t, "r2", refresh)
	assert.True(t, f.Scheduler().Armed())
}

func TestRefreshFailureClearsSession(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer idp.Close()

	f, st, _, notifier := newTestFlow(t, idp.URL, "")
	require.NoError(t, st.Save(store.SlotAccess, "stale"))
	require.NoError(t, st.Save(store.SlotRefresh, "revoked"))
	require.NoError(t, st.Save(store.SlotExpiry, strconv.FormatInt(time.Now().Add(10*time.Second).UnixMilli(), 10)))

	token, err := f.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)

	for _, slot := range []string{store.SlotAccess, store.SlotRefresh, store.SlotExpiry} {
		v, _ := st.Load(slot)
		assert.Empty(t, v, "slot %s should be cleared", slot)
	}
	assert.Equal(t, 1, notifier.endedCount())
	assert.False(t, f.Scheduler().Armed())
}

func TestSignOutRevokesAndClears(t *testing.T) {
	var revoked atomic.Value
	revocation := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("token_type_hint"))
		revoked.Store(r.PostForm.Get("token"))
		w.WriteHeader(http.StatusOK)
	}))
	defer revocation.Close()

	f, st, _, notifier := newTestFlow(t, "https://idp.example/oauth/token", revocation.URL)
	require.NoError(t, st.Save(store.SlotAccess, "a1"))
	require.NoError(t, st.Save(store.SlotRefresh, "r1"))
	require.NoError(t, st.Save(store.SlotExpiry, "123"))
	f.Scheduler().Arm(time.Hour)

	require.NoError(t, f.SignOut(context.Background()))

	assert.Equal(t, "r1", revoked.Load())
	for _, slot := range []string{store.SlotAccess, store.SlotRefresh, store.SlotExpiry} {
		v, _ := st.Load(slot)
		assert.Empty(t, v)
	}
	assert.Equal(t, 1, notifier.endedCount())
	assert.False(t, f.Scheduler().Armed())
}

func TestSignOutClearsEvenWhenRevocationFails(t *testing.T) {
	revocation := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer revocation.Close()

	f, st, _, _ := newTestFlow(t, "https://idp.example/oauth/token", revocation.URL)
	require.NoError(t, st.Save(store.SlotRefresh, "r1"))

	require.NoError(t, f.SignOut(context.Background()))
	v, _ := st.Load(store.SlotRefresh)
	assert.Empty(t, v)
}

func TestExchangeFallsBackToJWTExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer"}`, signed)
	}))
	defer idp.Close()

	f, st, opener, _ := newTestFlow(t, idp.URL, "")
	ctx := context.Background()

	require.NoError(t, f.InitiateSignIn(ctx))
	state := opener.last(t).Query().Get("state")
	require.NoError(t, f.HandleDeepLink(ctx, "curate://auth?code=c1&state="+url.QueryEscape(state)))

	raw, _ := st.Load(store.SlotExpiry)
	ms, err := strconv.ParseInt(raw, 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, exp.UnixMilli(), ms, 1500)
}
