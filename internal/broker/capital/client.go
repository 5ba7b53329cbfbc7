// Package capital provides a client for the Capital.com REST API.
package capital

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"broker_mcp/internal/broker"
	"broker_mcp/internal/config"
	apperrors "broker_mcp/internal/errors"
)

const (
	// BrokerName scopes persisted sessions and log lines.
	BrokerName = "capital"

	defaultTimeout           = 30 * time.Second
	defaultRequestsPerMinute = 60
	defaultMaxDailyTrades    = 20

	headerAPIKey        = "X-CAP-API-KEY"
	headerCST           = "CST"
	headerSecurityToken = "X-SECURITY-TOKEN"
)

// Client provides methods for accessing the Capital.com API. It owns a single
// session; all reads and writes of the session go through mu.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	identifier string
	password   string

	limiter *rate.Limiter
	trades  *tradeCounter
	store   broker.SessionStore
	logger  zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	session broker.Session
	lastErr error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSessionStore persists sessions after login.
func WithSessionStore(s broker.SessionStore) Option {
	return func(c *Client) { c.store = s }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides time.Now, used by the daily trade counter.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
		c.trades.now = now
	}
}

// NewClient creates a new Capital.com client. No network call is made until
// Authenticate.
func NewClient(cfg config.CapitalConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = defaultRequestsPerMinute
	}
	maxTrades := cfg.MaxDailyTrades
	if maxTrades <= 0 {
		maxTrades = defaultMaxDailyTrades
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		identifier: cfg.Identifier,
		password:   cfg.Password,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		trades:     newTradeCounter(maxTrades, time.Now),
		logger:     log.With().Str("broker", BrokerName).Logger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAuthenticated reports whether an account id is cached.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.AccountID != ""
}

// AccountID returns the cached account id.
func (c *Client) AccountID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.AccountID
}

// LastError returns the cause of the most recent failed authentication.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) currentSession() broker.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) missingCredentials() []string {
	var missing []string
	if c.baseURL == "" {
		missing = append(missing, "base_url")
	}
	if c.apiKey == "" {
		missing = append(missing, "api_key")
	}
	if c.identifier == "" {
		missing = append(missing, "identifier")
	}
	if c.password == "" {
		missing = append(missing, "password")
	}
	return missing
}

// Authenticate logs in, caches the session tokens and resolves the first
// account. It reports success and never returns an error; see LastError.
func (c *Client) Authenticate(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

// EnsureAuthenticated logs in unless a session is already cached. Callers
// racing on a cold client share a single login.
func (c *Client) EnsureAuthenticated(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.AccountID != "" {
		return true
	}
	return c.authenticateLocked(ctx)
}

func (c *Client) authenticateLocked(ctx context.Context) bool {
	if missing := c.missingCredentials(); len(missing) > 0 {
		c.lastErr = apperrors.MissingCredentials(missing...)
		c.logger.Error().Strs("missing", missing).Msg("Cannot authenticate, credentials not configured")
		return false
	}

	c.logger.Info().Msg("Authenticating")

	payload := map[string]string{
		"identifier": c.identifier,
		"password":   c.password,
	}
	resp, err := c.send(ctx, broker.Request{Method: http.MethodPost, Path: "/api/v1/session", Body: payload}, nil)
	if err != nil {
		c.lastErr = err
		c.logger.Error().Err(err).Msg("Authentication request failed")
		return false
	}
	if resp.status != http.StatusOK {
		c.lastErr = apperrors.Wrap(apperrors.ErrAuthentication,
			fmt.Sprintf("Authentication failed: %d", resp.status), nil)
		c.logger.Error().Int("status", resp.status).Str("body", string(resp.body)).Msg("Authentication rejected")
		return false
	}

	sess := broker.Session{
		Token:         resp.header.Get(headerCST),
		SecurityToken: resp.header.Get(headerSecurityToken),
	}
	if sess.Token == "" || sess.SecurityToken == "" {
		c.lastErr = apperrors.New(apperrors.ErrAuthentication, "Authentication response did not include session tokens")
		c.logger.Error().Msg("Session tokens missing from authentication response")
		return false
	}

	accountID, err := c.fetchFirstAccount(ctx, &sess)
	if err != nil {
		c.lastErr = err
		c.logger.Error().Err(err).Msg("Could not resolve account")
		return false
	}
	sess.AccountID = accountID
	sess.IssuedAt = c.now()

	c.session = sess
	c.lastErr = nil
	c.logger.Info().Str("account_id", accountID).Msg("Authenticated")

	if c.store != nil {
		if err := c.store.SaveSession(ctx, BrokerName, &sess); err != nil {
			c.logger.Warn().Err(err).Msg("Could not persist session")
		}
	}
	return true
}

func (c *Client) fetchFirstAccount(ctx context.Context, sess *broker.Session) (string, error) {
	resp, err := c.send(ctx, broker.Request{Method: http.MethodGet, Path: "/api/v1/accounts"}, sess)
	if err != nil {
		return "", err
	}
	if resp.status != http.StatusOK {
		return "", apperrors.Upstream("Failed to get accounts", resp.status, string(resp.body))
	}

	var accounts AccountsResponse
	if err := json.Unmarshal(resp.body, &accounts); err != nil {
		return "", apperrors.Wrap(apperrors.ErrAuthentication, "decoding accounts", err)
	}
	if len(accounts.Accounts) == 0 || accounts.Accounts[0].AccountID == "" {
		return "", apperrors.New(apperrors.ErrAuthentication, "No accounts found")
	}
	return accounts.Accounts[0].AccountID, nil
}

// RestoreSession loads a persisted session. A stale session is replaced on
// the first 401.
func (c *Client) RestoreSession(ctx context.Context) bool {
	if c.store == nil {
		return false
	}
	sess, err := c.store.LoadSession(ctx, BrokerName)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Could not load persisted session")
		return false
	}
	if !sess.Valid() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = *sess
	c.logger.Info().Str("account_id", sess.AccountID).Time("issued_at", sess.IssuedAt).Msg("Restored session")
	return true
}

// refresh re-authenticates after a 401 on stale. If another caller already
// replaced the session, that session is reused without a second login.
func (c *Client) refresh(ctx context.Context, stale broker.Session) (broker.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Valid() && c.session.Token != stale.Token {
		return c.session, true
	}
	if !c.authenticateLocked(ctx) {
		return broker.Session{}, false
	}
	return c.session, true
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// execute sends req with the cached session, re-authenticating and retrying
// exactly once on 401.
func (c *Client) execute(ctx context.Context, req broker.Request) (*response, error) {
	sess := c.currentSession()
	if sess.AccountID == "" {
		return nil, apperrors.NotAuthenticated("Not authenticated. Call authenticate first.")
	}

	resp, err := c.send(ctx, req, &sess)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusUnauthorized {
		return resp, nil
	}

	c.logger.Warn().Str("method", req.Method).Str("resource", req.Path).Msg("Session expired, re-authenticating")
	fresh, ok := c.refresh(ctx, sess)
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrReauthenticationFailed,
			"Session expired and re-authentication failed", c.LastError())
	}
	return c.send(ctx, req, &fresh)
}

// Dispatch performs an authenticated request and normalises the response.
func (c *Client) Dispatch(ctx context.Context, req broker.Request) (broker.Result, error) {
	resp, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		c.logger.Error().
			Str("method", req.Method).
			Str("resource", req.Path).
			Int("status", resp.status).
			Str("body", string(resp.body)).
			Msg("Request failed")
		return nil, apperrors.Upstream("Request failed", resp.status, string(resp.body))
	}
	return broker.DecodeResult(resp.body), nil
}

// call dispatches req and labels upstream failures with op, giving messages
// such as "Failed to get positions: 500".
func (c *Client) call(ctx context.Context, op string, req broker.Request) (broker.Result, error) {
	result, err := c.Dispatch(ctx, req)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && errors.Is(err, apperrors.ErrUpstream) {
			appErr.Message = fmt.Sprintf("Failed to %s: %d", op, apperrors.StatusCode(err))
		}
		return nil, err
	}
	return result, nil
}

// send performs one HTTP exchange. sess may be nil for the login call.
func (c *Client) send(ctx context.Context, req broker.Request, sess *broker.Session) (*response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRateLimit, "Rate limit wait aborted", err)
	}

	url := c.baseURL + req.Path
	if len(req.Query) > 0 {
		url += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, apperrors.Internal("encoding request body", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, apperrors.Internal("building request", err)
	}
	httpReq.Header.Set(headerAPIKey, c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if sess != nil {
		httpReq.Header.Set(headerCST, sess.Token)
		httpReq.Header.Set(headerSecurityToken, sess.SecurityToken)
	}

	c.logger.Debug().Str("method", req.Method).Str("resource", req.Path).Msg("Sending request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Transport("Request error", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Transport("reading response", err)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}
