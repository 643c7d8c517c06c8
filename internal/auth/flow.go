package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/synthesishq/synthesis-agent/internal/config"
	"github.com/synthesishq/synthesis-agent/internal/errors"
	"github.com/synthesishq/synthesis-agent/internal/logging"
	"github.com/synthesishq/synthesis-agent/internal/metrics"
	"github.com/synthesishq/synthesis-agent/internal/store"
)

const (
	// reactiveWindow is how close to expiry an on-demand token request
	// refreshes inline instead of handing out the stored token.
	reactiveWindow = 60 * time.Second

	// defaultTokenLifetime is assumed when the provider sends neither
	// expires_in nor a JWT exp claim.
	defaultTokenLifetime = time.Hour

	httpTimeout = 15 * time.Second
)

// Notifier receives session lifecycle events for delivery to whatever UI
// surface is attached. Implementations must not block.
type Notifier interface {
	TokenIssued(accessToken string)
	SessionEnded()
}

// BrowserOpener opens a URL in the user's default browser.
type BrowserOpener interface {
	OpenURL(ctx context.Context, rawURL string) error
}

// pendingAuthorization is the single in-flight sign-in record. At most
// one exists per process; a new sign-in replaces any prior one.
type pendingAuthorization struct {
	verifier string
	state    string
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Flow owns the native-app authorization code exchange: PKCE generation,
// authorize-URL construction, deep-link callback validation, code-for-token
// exchange, proactive and reactive refresh, revocation and sign-out.
// Session state lives exclusively in the TokenStore; Flow never caches
// tokens in memory.
type Flow struct {
	cfg      config.AuthConfig
	store    store.TokenStore
	opener   BrowserOpener
	notifier Notifier
	client   *http.Client
	sched    *Scheduler
	metrics  *metrics.Metrics
	logger   *logging.Logger

	mu      sync.Mutex
	pending *pendingAuthorization
	cached  string
}

// NewFlow creates a Flow bound to the given token store. notifier and m
// may be nil.
func NewFlow(cfg config.AuthConfig, st store.TokenStore, opener BrowserOpener, notifier Notifier, m *metrics.Metrics, logger *logging.Logger) *Flow {
	f := &Flow{
		cfg:      cfg,
		store:    st,
		opener:   opener,
		notifier: notifier,
		client:   &http.Client{Timeout: httpTimeout},
		metrics:  m,
		logger:   logger,
	}
	f.sched = NewScheduler(f.proactiveRefresh, logger)
	return f
}

// Scheduler exposes the refresh scheduler for lifecycle wiring.
func (f *Flow) Scheduler() *Scheduler {
	return f.sched
}

// InitiateSignIn generates a fresh PKCE verifier and state nonce, records
// them as the pending authorization and opens the provider's authorize
// endpoint in the system browser. Any prior pending authorization and any
// cached cold-launch callback are discarded: a stale callback cannot match
// the new state nonce anyway.
func (f *Flow) InitiateSignIn(ctx context.Context) error {
	verifier, err := GenerateVerifier()
	if err != nil {
		return err
	}
	state, err := GenerateState()
	if err != nil {
		return err
	}

	authorizeURL, err := url.Parse(f.cfg.AuthorizeURL)
	if err != nil {
		return fmt.Errorf("invalid authorize URL: %w", err)
	}
	q := authorizeURL.Query()
	q.Set("client_id", f.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", f.cfg.RedirectURI())
	q.Set("scope", strings.Join(f.cfg.Scopes, " "))
	q.Set("state", state)
	q.Set("code_challenge", ChallengeS256(verifier))
	q.Set("code_challenge_method", "S256")
	authorizeURL.RawQuery = q.Encode()

	f.mu.Lock()
	f.pending = &pendingAuthorization{verifier: verifier, state: state}
	f.cached = ""
	f.mu.Unlock()

	if err := f.opener.OpenURL(ctx, authorizeURL.String()); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	f.logger.InfoWithContext(ctx, "sign-in initiated, browser opened")
	return nil
}

// HandleDeepLink processes a <scheme>://auth callback. Callbacks arriving
// before any sign-in was initiated are cached for a single later replay.
func (f *Flow) HandleDeepLink(ctx context.Context, raw string) error {
	return f.handleDeepLink(ctx, raw, true)
}

// ReplayCachedDeepLink processes the cached cold-launch callback, if one
// exists, exactly once. It reports whether a callback was replayed.
func (f *Flow) ReplayCachedDeepLink(ctx context.Context) (bool, error) {
	f.mu.Lock()
	raw := f.cached
	f.cached = ""
	f.mu.Unlock()

	if raw == "" {
		return false, nil
	}
	f.logger.InfoWithContext(ctx, "replaying cached deep link")
	return true, f.handleDeepLink(ctx, raw, false)
}

func (f *Flow) handleDeepLink(ctx context.Context, raw string, allowCache bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		f.logger.WarnWithContext(ctx, "unparseable deep link", "error", err.Error())
		f.countDeepLink("malformed")
		return nil
	}
	if u.Scheme != f.cfg.Scheme || u.Host != "auth" {
		f.logger.DebugWithContext(ctx, "ignoring deep link for other host", "host", u.Host)
		f.countDeepLink("ignored")
		return nil
	}

	q := u.Query()
	if errCode := q.Get("error"); errCode != "" {
		f.mu.Lock()
		f.pending = nil
		f.mu.Unlock()
		denied := &errors.ErrAuthorizationDenied{Code: errCode, Description: q.Get("error_description")}
		f.logger.WarnWithContext(ctx, "provider denied authorization", "error", errCode)
		f.countDeepLink("denied")
		return denied
	}

	f.mu.Lock()
	pending := f.pending
	if pending == nil {
		if allowCache {
			f.cached = raw
			f.mu.Unlock()
			f.logger.InfoWithContext(ctx, "deep link arrived before sign-in state, cached for replay")
			f.countDeepLink("cached")
			return nil
		}
		f.mu.Unlock()
		f.logger.WarnWithContext(ctx, "dropping deep link with no pending authorization")
		f.countDeepLink("dropped")
		return nil
	}

	if q.Get("state") != pending.state {
		f.pending = nil
		f.mu.Unlock()
		f.logger.WarnWithContext(ctx, "deep link state mismatch, dropping callback")
		f.countDeepLink("state_mismatch")
		return &errors.ErrStateMismatch{}
	}

	// Clear before the network call so a replayed code can never reuse
	// the verifier.
	f.pending = nil
	f.mu.Unlock()

	code := q.Get("code")
	if code == "" {
		f.logger.WarnWithContext(ctx, "deep link carried no authorization code")
		f.countDeepLink("dropped")
		return nil
	}

	if err := f.exchangeCodeForTokens(ctx, code, pending.verifier); err != nil {
		f.countDeepLink("exchange_failed")
		return err
	}
	f.countDeepLink("exchanged")
	return nil
}

func (f *Flow) exchangeCodeForTokens(ctx context.Context, code, verifier string) error {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {f.cfg.RedirectURI()},
		"client_id":     {f.cfg.ClientID},
		"code_verifier": {verifier},
	}

	resp, err := f.postForm(ctx, f.cfg.TokenURL, form)
	if err != nil {
		f.logger.ErrorWithContext(ctx, "token exchange failed", "error", err.Error())
		return err
	}

	expiryMs, err := f.persistTokens(ctx, resp)
	if err != nil {
		return err
	}

	f.sched.Arm(RefreshDelay(expiryMs - nowMillis()))
	if f.notifier != nil {
		f.notifier.TokenIssued(resp.AccessToken)
	}
	f.logger.InfoWithContext(ctx, "token exchange succeeded", "expires_at_ms", expiryMs)
	return nil
}

// Token returns the current access token, refreshing inline when it is
// within a minute of expiry. It returns the empty string when no session
// exists; callers treat that as signed-out, not as an error.
func (f *Flow) Token(ctx context.Context) (string, error) {
	access, err := f.store.Load(store.SlotAccess)
	if err != nil {
		return "", err
	}
	if access == "" {
		return "", nil
	}

	expiryMs := f.storedExpiry()
	if expiryMs > 0 && nowMillis() < expiryMs-reactiveWindow.Milliseconds() {
		return access, nil
	}

	newExpiry, err := f.refresh(ctx, "reactive")
	if err != nil {
		// refresh already cleared the session
		return "", nil
	}
	f.sched.Arm(RefreshDelay(newExpiry - nowMillis()))

	return f.store.Load(store.SlotAccess)
}

// SessionExpiry returns the stored absolute expiry, or the zero time when
// no session exists.
func (f *Flow) SessionExpiry() time.Time {
	ms := f.storedExpiry()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// SignOut cancels the refresh timer, revokes the refresh token on a
// best-effort basis and unconditionally clears all session state.
func (f *Flow) SignOut(ctx context.Context) error {
	f.sched.Cancel()
	f.revokeTokens(ctx)

	f.mu.Lock()
	f.pending = nil
	f.cached = ""
	f.mu.Unlock()

	if err := f.store.ClearAll(); err != nil {
		return err
	}
	if f.notifier != nil {
		f.notifier.SessionEnded()
	}
	f.logger.InfoWithContext(ctx, "signed out, session cleared")
	return nil
}

// revokeTokens posts the stored refresh token to the revocation endpoint.
// Failures are logged and swallowed; revocation never blocks sign-out.
func (f *Flow) revokeTokens(ctx context.Context) {
	if f.cfg.RevokeURL == "" {
		return
	}
	refresh, err := f.store.Load(store.SlotRefresh)
	if err != nil || refresh == "" {
		return
	}

	form := url.Values{
		"token":           {refresh},
		"token_type_hint": {"refresh_token"},
		"client_id":       {f.cfg.ClientID},
	}
	if _, err := f.postForm(ctx, f.cfg.RevokeURL, form); err != nil {
		f.logger.WarnWithContext(ctx, "token revocation failed", "error", err.Error())
	}
}

// proactiveRefresh is the scheduler callback. A refresh failure here ends
// the session and leaves the scheduler idle.
func (f *Flow) proactiveRefresh() (time.Duration, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()

	expiryMs, err := f.refresh(ctx, "scheduled")
	if err != nil {
		return 0, false
	}
	return RefreshDelay(expiryMs - nowMillis()), true
}

// refresh exchanges the stored refresh token for fresh tokens. Any failure
// is fatal to the session: all slots are cleared and the UI is told the
// session ended.
func (f *Flow) refresh(ctx context.Context, trigger string) (int64, error) {
	refreshToken, err := f.store.Load(store.SlotRefresh)
	if err == nil && refreshToken == "" {
		err = fmt.Errorf("no refresh token stored")
	}
	if err != nil {
		f.endSession(ctx, trigger, err)
		return 0, err
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {f.cfg.ClientID},
	}
	resp, err := f.postForm(ctx, f.cfg.TokenURL, form)
	if err != nil {
		f.endSession(ctx, trigger, err)
		return 0, err
	}

	expiryMs, err := f.persistTokens(ctx, resp)
	if err != nil {
		f.endSession(ctx, trigger, err)
		return 0, err
	}

	if f.notifier != nil {
		f.notifier.TokenIssued(resp.AccessToken)
	}
	f.countRefresh(trigger, "success")
	f.logger.InfoWithContext(ctx, "token refreshed", "trigger", trigger, "expires_at_ms", expiryMs)
	return expiryMs, nil
}

func (f *Flow) endSession(ctx context.Context, trigger string, cause error) {
	f.countRefresh(trigger, "failure")
	f.logger.ErrorWithContext(ctx, "token refresh failed, clearing session",
		"trigger", trigger, "error", cause.Error())

	f.sched.Cancel()
	if err := f.store.ClearAll(); err != nil {
		f.logger.ErrorWithContext(ctx, "failed to clear token store", "error", err.Error())
	}
	if f.notifier != nil {
		f.notifier.SessionEnded()
	}
}

func (f *Flow) persistTokens(ctx context.Context, resp *tokenResponse) (int64, error) {
	if resp.AccessToken == "" {
		return 0, &errors.ErrTokenEndpoint{Status: http.StatusOK, Body: "response carried no access_token"}
	}

	expiryMs := nowMillis() + resp.ExpiresIn*1000
	if resp.ExpiresIn <= 0 {
		if ms, ok := expiryFromJWT(resp.AccessToken); ok {
			expiryMs = ms
		} else {
			expiryMs = nowMillis() + defaultTokenLifetime.Milliseconds()
			f.logger.WarnWithContext(ctx, "provider sent no expiry, assuming default lifetime")
		}
	}

	if err := f.store.Save(store.SlotAccess, resp.AccessToken); err != nil {
		return 0, err
	}
	if resp.RefreshToken != "" {
		if err := f.store.Save(store.SlotRefresh, resp.RefreshToken); err != nil {
			return 0, err
		}
	}
	if err := f.store.Save(store.SlotExpiry, strconv.FormatInt(expiryMs, 10)); err != nil {
		return 0, err
	}
	return expiryMs, nil
}

func (f *Flow) postForm(ctx context.Context, endpoint string, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &errors.ErrTokenEndpoint{Status: httpResp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed token response: %w", err)
	}
	return &resp, nil
}

func (f *Flow) storedExpiry() int64 {
	raw, err := f.store.Load(store.SlotExpiry)
	if err != nil || raw == "" {
		return 0
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return ms
}

// expiryFromJWT pulls the exp claim out of an unverified JWT access token.
func expiryFromJWT(token string) (int64, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	return exp.UnixMilli(), true
}

func (f *Flow) countDeepLink(outcome string) {
	if f.metrics != nil {
		f.metrics.DeepLinkCallbacks.WithLabelValues(outcome).Inc()
	}
}

func (f *Flow) countRefresh(trigger, outcome string) {
	if f.metrics != nil {
		f.metrics.TokenRefreshes.WithLabelValues(trigger, outcome).Inc()
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
