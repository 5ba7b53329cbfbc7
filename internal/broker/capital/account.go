package capital

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"broker_mcp/internal/broker"
	apperrors "broker_mcp/internal/errors"
	"broker_mcp/internal/validation"
)

// GetSessionInfo returns the server view of the session, including the
// active account.
func (c *Client) GetSessionInfo(ctx context.Context) (broker.Result, error) {
	return c.call(ctx, "get session info", broker.Request{Method: http.MethodGet, Path: "/api/v1/session"})
}

// ChangeActiveAccount switches the session to accountID. The broker issues
// a new security token, which replaces the cached one.
func (c *Client) ChangeActiveAccount(ctx context.Context, accountID string) (broker.Result, error) {
	if err := validation.NotEmpty("account_id", accountID); err != nil {
		return nil, err
	}

	req := broker.Request{Method: http.MethodPut, Path: "/api/v1/session", Body: map[string]string{"accountId": accountID}}
	resp, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		c.logger.Error().Int("status", resp.status).Str("body", string(resp.body)).Msg("Failed to change account")
		return nil, apperrors.Upstream("Failed to change account", resp.status, string(resp.body))
	}

	c.mu.Lock()
	if token := resp.header.Get(headerSecurityToken); token != "" {
		c.session.SecurityToken = token
	}
	c.session.AccountID = accountID
	sess := c.session
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SaveSession(ctx, BrokerName, &sess); err != nil {
			c.logger.Warn().Err(err).Msg("Could not persist session")
		}
	}
	c.logger.Info().Str("account_id", accountID).Msg("Changed active account")

	return broker.Result{"success": true, "message": fmt.Sprintf("Changed to account %s", accountID)}, nil
}

// GetAccountPreferences returns leverage settings and hedging mode.
func (c *Client) GetAccountPreferences(ctx context.Context) (broker.Result, error) {
	return c.call(ctx, "get account preferences", broker.Request{Method: http.MethodGet, Path: "/api/v1/accounts/preferences"})
}

// UpdateAccountPreferences sets per-instrument-type leverage and, when
// hedgingMode is non-nil, the hedging mode.
func (c *Client) UpdateAccountPreferences(ctx context.Context, leverages map[string]int, hedgingMode *bool) (broker.Result, error) {
	if len(leverages) == 0 && hedgingMode == nil {
		return nil, apperrors.Validation("At least one of leverages or hedging_mode must be provided")
	}
	payload := map[string]any{}
	if len(leverages) > 0 {
		for kind, lev := range leverages {
			if err := validation.ValidateInput(validation.P("leverage", lev)); err != nil {
				return nil, apperrors.ValidationField("leverages", fmt.Sprintf("%s: %s", kind, err.Error()))
			}
		}
		payload["leverages"] = leverages
	}
	if hedgingMode != nil {
		payload["hedgingMode"] = *hedgingMode
	}

	if _, err := c.call(ctx, "update account preferences", broker.Request{
		Method: http.MethodPut,
		Path:   "/api/v1/accounts/preferences",
		Body:   payload,
	}); err != nil {
		return nil, err
	}
	return broker.Result{"success": true, "message": "Account preferences updated"}, nil
}

// TopUpDemoAccount adds funds to a demo account.
func (c *Client) TopUpDemoAccount(ctx context.Context, amount float64) (broker.Result, error) {
	if amount <= 0 {
		return nil, apperrors.ValidationField("amount", "amount must be greater than 0")
	}
	if _, err := c.call(ctx, "top up demo account", broker.Request{
		Method: http.MethodPost,
		Path:   "/api/v1/accounts/topUp",
		Body:   map[string]any{"amount": amount},
	}); err != nil {
		return nil, err
	}
	return broker.Result{"success": true, "message": fmt.Sprintf("Demo account topped up with %v", amount)}, nil
}

// GetWatchlists lists the user's watchlists.
func (c *Client) GetWatchlists(ctx context.Context) (broker.Result, error) {
	return c.call(ctx, "get watchlists", broker.Request{Method: http.MethodGet, Path: "/api/v1/watchlists"})
}

// GetWatchlist returns the markets of one watchlist.
func (c *Client) GetWatchlist(ctx context.Context, watchlistID string) (broker.Result, error) {
	if err := validation.NotEmpty("watchlist_id", watchlistID); err != nil {
		return nil, err
	}
	return c.call(ctx, "get watchlist", broker.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/watchlists/" + url.PathEscape(watchlistID),
	})
}
