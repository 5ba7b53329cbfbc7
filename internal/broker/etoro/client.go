// Package etoro provides a client for the eToro public API.
package etoro

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"broker_mcp/internal/broker"
	"broker_mcp/internal/config"
	apperrors "broker_mcp/internal/errors"
)

const (
	// BrokerName scopes log lines and audit records.
	BrokerName = "etoro"

	// Account types select the API path prefix.
	AccountDemo = "demo"
	AccountReal = "real"

	defaultTimeout = 30 * time.Second

	headerAPIKey    = "x-api-key"
	headerUserKey   = "x-user-key"
	headerRequestID = "x-request-id"

	authFailedMessage = "Authentication failed. Check your eToro API keys."
)

// Client provides methods for accessing the eToro API. eToro authenticates
// every request with static keys, so there is no session to refresh.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	userKey     string
	accountType string

	logger    zerolog.Logger
	requestID func() string

	mu      sync.Mutex
	lastErr error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRequestID overrides the x-request-id generator.
func WithRequestID(fn func() string) Option {
	return func(c *Client) { c.requestID = fn }
}

// NewClient creates a new eToro client. An unknown account type falls back
// to demo.
func NewClient(cfg config.EtoroConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultEtoroBaseURL
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		userKey:     cfg.UserKey,
		accountType: strings.ToLower(cfg.AccountType),
		logger:      log.With().Str("broker", BrokerName).Logger(),
		requestID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.accountType != AccountDemo && c.accountType != AccountReal {
		if c.accountType != "" {
			c.logger.Warn().Str("account_type", c.accountType).Msg("Invalid account type, defaulting to demo")
		}
		c.accountType = AccountDemo
	}
	return c
}

// AccountType returns demo or real.
func (c *Client) AccountType() string {
	return c.accountType
}

// LastError returns the cause of the most recent failed credential check.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) setLastErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// endpointPath prefixes resource with the account type's API root.
func (c *Client) endpointPath(resource string) string {
	prefix := "/api/demo/v1"
	if c.accountType == AccountReal {
		prefix = "/api/v1"
	}
	return prefix + "/" + strings.TrimLeft(resource, "/")
}

// ValidateCredentials checks that both keys are set and accepted by the
// account info endpoint.
func (c *Client) ValidateCredentials(ctx context.Context) bool {
	var missing []string
	if c.apiKey == "" {
		missing = append(missing, "api_key")
	}
	if c.userKey == "" {
		missing = append(missing, "user_key")
	}
	if len(missing) > 0 {
		c.setLastErr(apperrors.MissingCredentials(missing...))
		c.logger.Error().Strs("missing", missing).Msg("Missing API credentials")
		return false
	}

	if _, err := c.GetAccountInfo(ctx); err != nil {
		c.setLastErr(err)
		c.logger.Error().Err(err).Msg("Credential validation failed")
		return false
	}

	c.setLastErr(nil)
	c.logger.Info().Str("account_type", c.accountType).Msg("API credentials validated successfully")
	return true
}

// Authenticate satisfies broker.Client; eToro has no login step beyond
// validating the keys.
func (c *Client) Authenticate(ctx context.Context) bool {
	return c.ValidateCredentials(ctx)
}

// Dispatch sends one request under the account type prefix.
func (c *Client) Dispatch(ctx context.Context, req broker.Request) (broker.Result, error) {
	endpoint := c.endpointPath(req.Path)
	url := c.baseURL + endpoint
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
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(headerRequestID, c.requestID())
	if c.apiKey != "" {
		httpReq.Header.Set(headerAPIKey, c.apiKey)
	}
	if c.userKey != "" {
		httpReq.Header.Set(headerUserKey, c.userKey)
	}

	c.logger.Debug().Str("method", req.Method).Str("resource", endpoint).Msg("Making request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error making request")
		return nil, apperrors.Transport("Request error", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Transport("reading response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.logger.Error().Msg("Authentication failed - invalid API keys")
		return nil, apperrors.New(apperrors.ErrAuthentication, authFailedMessage)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Error().
			Str("method", req.Method).
			Str("resource", endpoint).
			Int("status", resp.StatusCode).
			Str("body", string(data)).
			Msg("API request failed")
		return nil, apperrors.Upstream("API request failed", resp.StatusCode, string(data))
	}
	return broker.DecodeResult(data), nil
}
