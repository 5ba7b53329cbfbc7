package tools

import (
	"context"
	"fmt"
	"strings"

	"broker_mcp/internal/broker"
	"broker_mcp/internal/broker/capital"
	apperrors "broker_mcp/internal/errors"
	"broker_mcp/internal/validation"
)

const (
	authRequired       = "Authentication required"
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

// CapitalTools adapts a Capital.com client to tool calls.
type CapitalTools struct {
	client *capital.Client
	binder
}

// NewCapitalTools returns the tool set for client.
func NewCapitalTools(client *capital.Client, opts ...Option) *CapitalTools {
	return &CapitalTools{
		client: client,
		binder: binder{broker: capital.BrokerName, options: newOptions(opts)},
	}
}

// ensureAuthenticated logs in when no session is cached. It returns nil when
// the client is ready, or the envelope to hand back.
func (t *CapitalTools) ensureAuthenticated(ctx context.Context, tc Context) broker.Result {
	if t.client.IsAuthenticated() {
		return nil
	}
	tc.Info("Not authenticated yet, attempting authentication")
	if t.client.EnsureAuthenticated(ctx) {
		return nil
	}
	tc.Error("Authentication required. Please authenticate first.")
	env := broker.Result{"error": authRequired}
	if err := t.client.LastError(); err != nil {
		env["details"] = err.Error()
	}
	return env
}

// Authenticate logs in with the configured credentials.
func (t *CapitalTools) Authenticate(ctx context.Context, tc Context) broker.Result {
	if t.client.Authenticate(ctx) {
		tc.Info("Successfully authenticated with Capital.com API")
		return broker.Result{"success": true, "message": "Authentication successful", "account_id": t.client.AccountID()}
	}
	msg := "Authentication failed. Please check your credentials."
	tc.Error(msg)
	env := broker.Result{"success": false, "error": msg}
	if err := t.client.LastError(); err != nil {
		for k, v := range apperrors.Envelope(err) {
			if k != "error" {
				env[k] = v
			}
		}
	}
	return env
}

// authed runs fn once the client holds a session.
func (t *CapitalTools) authed(ctx context.Context, tc Context, op string, fn func() (broker.Result, error)) broker.Result {
	if env := t.ensureAuthenticated(ctx, tc); env != nil {
		return env
	}
	result, err := fn()
	return finish(tc, op, result, err)
}

// GetAccountInfo returns the accounts and balances.
func (t *CapitalTools) GetAccountInfo(ctx context.Context, tc Context) broker.Result {
	return t.authed(ctx, tc, "get account info", func() (broker.Result, error) {
		return t.client.GetAccountInfo(ctx)
	})
}

// SearchMarkets searches by text or epics and keeps at most limit markets.
func (t *CapitalTools) SearchMarkets(ctx context.Context, tc Context, query string, epics []string, limit int) broker.Result {
	if query == "" && len(epics) == 0 {
		return invalid(tc, apperrors.Validation("Search query cannot be empty"))
	}
	if limit == 0 {
		limit = defaultSearchLimit
	}
	if limit < 1 || limit > maxSearchLimit {
		return invalid(tc, apperrors.ValidationField("limit", fmt.Sprintf("Limit must be between 1 and %d", maxSearchLimit)))
	}
	return t.authed(ctx, tc, "search markets", func() (broker.Result, error) {
		result, err := t.client.SearchMarkets(ctx, query, epics)
		if err != nil {
			return nil, err
		}
		if markets, ok := result["markets"].([]any); ok && len(markets) > limit {
			result["markets"] = markets[:limit]
		}
		return result, nil
	})
}

// GetMarketDetails returns one market.
func (t *CapitalTools) GetMarketDetails(ctx context.Context, tc Context, epic string) broker.Result {
	if epic == "" {
		return invalid(tc, apperrors.ValidationField("epic", "Epic identifier cannot be empty"))
	}
	return t.authed(ctx, tc, "get market details", func() (broker.Result, error) {
		return t.client.GetMarketDetails(ctx, epic)
	})
}

// GetPrices returns recent price bars.
func (t *CapitalTools) GetPrices(ctx context.Context, tc Context, epic string, q capital.PriceQuery) broker.Result {
	if epic == "" {
		return invalid(tc, apperrors.ValidationField("epic", "Epic identifier cannot be empty"))
	}
	if q.Resolution != "" && !validation.IsResolution(q.Resolution) {
		return invalid(tc, apperrors.ValidationField("resolution",
			"Invalid resolution. Must be one of: "+strings.Join(validation.Resolutions, ", ")))
	}
	return t.authed(ctx, tc, "get prices", func() (broker.Result, error) {
		return t.client.GetPrices(ctx, epic, q)
	})
}

// GetHistoricalPrices returns bars between two dates.
func (t *CapitalTools) GetHistoricalPrices(ctx context.Context, tc Context, epic string, q capital.PriceQuery) broker.Result {
	if epic == "" {
		return invalid(tc, apperrors.ValidationField("epic", "Epic identifier cannot be empty"))
	}
	if q.From == "" || q.To == "" {
		return invalid(tc, apperrors.Validation("from_date and to_date are required"))
	}
	return t.authed(ctx, tc, "get historical prices", func() (broker.Result, error) {
		return t.client.GetHistoricalPrices(ctx, epic, q)
	})
}

// GetPositions lists open positions.
func (t *CapitalTools) GetPositions(ctx context.Context, tc Context) broker.Result {
	return t.authed(ctx, tc, "get positions", func() (broker.Result, error) {
		return t.client.GetPositions(ctx)
	})
}

// GetPosition returns one open position.
func (t *CapitalTools) GetPosition(ctx context.Context, tc Context, dealID string) broker.Result {
	if dealID == "" {
		return invalid(tc, apperrors.ValidationField("deal_id", "Deal ID cannot be empty"))
	}
	return t.authed(ctx, tc, "get position", func() (broker.Result, error) {
		return t.client.GetPosition(ctx, dealID)
	})
}

// CreatePosition opens a position and attaches a margin estimate. A margin
// that cannot be computed is logged and left out.
func (t *CapitalTools) CreatePosition(ctx context.Context, tc Context, req capital.PositionRequest) broker.Result {
	switch {
	case req.Epic == "":
		return invalid(tc, apperrors.ValidationField("epic", "Epic identifier cannot be empty"))
	case !validation.IsDirection(req.Direction):
		return invalid(tc, apperrors.ValidationField("direction", "Direction must be either 'BUY' or 'SELL'"))
	case req.Size <= 0:
		return invalid(tc, apperrors.ValidationField("size", "Size must be greater than 0"))
	}

	return t.authed(ctx, tc, "create position", func() (broker.Result, error) {
		result, err := t.client.CreatePosition(ctx, req)
		if err != nil {
			return nil, err
		}
		margin, err := t.client.CalculateMargin(ctx, req.Epic, req.Direction, req.Size, capital.DefaultLeverage)
		if err != nil {
			t.logger.Warn().Err(err).Str("epic", req.Epic).Msg("Could not calculate margin")
			return result, nil
		}
		result["margin_information"] = margin
		return result, nil
	})
}

// ClosePosition closes an open position by deal id.
func (t *CapitalTools) ClosePosition(ctx context.Context, tc Context, dealID string) broker.Result {
	if dealID == "" {
		return invalid(tc, apperrors.ValidationField("deal_id", "Deal ID cannot be empty"))
	}
	return t.authed(ctx, tc, "close position", func() (broker.Result, error) {
		return t.client.ClosePosition(ctx, dealID)
	})
}

// UpdatePosition changes stops and limits of an open position.
func (t *CapitalTools) UpdatePosition(ctx context.Context, tc Context, dealID string, update capital.PositionUpdate) broker.Result {
	if dealID == "" {
		return invalid(tc, apperrors.ValidationField("deal_id", "Deal ID cannot be empty"))
	}
	if !validation.Stops(update).HasChanges() {
		return invalid(tc, apperrors.Validation("At least one of stop_level or profit_level must be provided"))
	}
	return t.authed(ctx, tc, "update position", func() (broker.Result, error) {
		return t.client.UpdatePosition(ctx, dealID, update)
	})
}

// ConfirmDeal resolves a deal reference.
func (t *CapitalTools) ConfirmDeal(ctx context.Context, tc Context, dealReference string) broker.Result {
	if dealReference == "" {
		return invalid(tc, apperrors.ValidationField("deal_reference", "Deal reference cannot be empty"))
	}
	return t.authed(ctx, tc, "confirm deal", func() (broker.Result, error) {
		return t.client.ConfirmDeal(ctx, dealReference)
	})
}

// CalculateMargin estimates the margin of a prospective position.
func (t *CapitalTools) CalculateMargin(ctx context.Context, tc Context, epic, direction string, size, leverage float64) broker.Result {
	return t.authed(ctx, tc, "calculate margin", func() (broker.Result, error) {
		margin, err := t.client.CalculateMargin(ctx, epic, direction, size, leverage)
		if err != nil {
			return nil, err
		}
		return broker.Result{"margin_information": margin}, nil
	})
}

// GetWorkingOrders lists pending orders.
func (t *CapitalTools) GetWorkingOrders(ctx context.Context, tc Context) broker.Result {
	return t.authed(ctx, tc, "get working orders", func() (broker.Result, error) {
		return t.client.GetWorkingOrders(ctx)
	})
}

// CreateWorkingOrder places a stop or limit order.
func (t *CapitalTools) CreateWorkingOrder(ctx context.Context, tc Context, req capital.WorkingOrderRequest) broker.Result {
	if req.Epic == "" {
		return invalid(tc, apperrors.ValidationField("epic", "Epic identifier cannot be empty"))
	}
	return t.authed(ctx, tc, "create working order", func() (broker.Result, error) {
		return t.client.CreateWorkingOrder(ctx, req)
	})
}

// UpdateWorkingOrder changes a pending order.
func (t *CapitalTools) UpdateWorkingOrder(ctx context.Context, tc Context, orderID string, update capital.WorkingOrderUpdate) broker.Result {
	if orderID == "" {
		return invalid(tc, apperrors.ValidationField("order_id", "Order ID cannot be empty"))
	}
	return t.authed(ctx, tc, "update working order", func() (broker.Result, error) {
		return t.client.UpdateWorkingOrder(ctx, orderID, update)
	})
}

// DeleteWorkingOrder cancels a pending order.
func (t *CapitalTools) DeleteWorkingOrder(ctx context.Context, tc Context, orderID string) broker.Result {
	if orderID == "" {
		return invalid(tc, apperrors.ValidationField("order_id", "Order ID cannot be empty"))
	}
	return t.authed(ctx, tc, "delete working order", func() (broker.Result, error) {
		return t.client.DeleteWorkingOrder(ctx, orderID)
	})
}

// GetWatchlists lists saved watchlists.
func (t *CapitalTools) GetWatchlists(ctx context.Context, tc Context) broker.Result {
	return t.authed(ctx, tc, "get watchlists", func() (broker.Result, error) {
		return t.client.GetWatchlists(ctx)
	})
}

// GetWatchlist returns the markets of one watchlist.
func (t *CapitalTools) GetWatchlist(ctx context.Context, tc Context, watchlistID string) broker.Result {
	return t.authed(ctx, tc, "get watchlist", func() (broker.Result, error) {
		return t.client.GetWatchlist(ctx, watchlistID)
	})
}

// GetSessionInfo describes the current session.
func (t *CapitalTools) GetSessionInfo(ctx context.Context, tc Context) broker.Result {
	return t.authed(ctx, tc, "get session info", func() (broker.Result, error) {
		return t.client.GetSessionInfo(ctx)
	})
}

// ChangeActiveAccount switches the session to another account.
func (t *CapitalTools) ChangeActiveAccount(ctx context.Context, tc Context, accountID string) broker.Result {
	if accountID == "" {
		return invalid(tc, apperrors.ValidationField("account_id", "Account ID cannot be empty"))
	}
	return t.authed(ctx, tc, "change active account", func() (broker.Result, error) {
		return t.client.ChangeActiveAccount(ctx, accountID)
	})
}

// GetAccountPreferences returns leverage and hedging settings.
func (t *CapitalTools) GetAccountPreferences(ctx context.Context, tc Context) broker.Result {
	return t.authed(ctx, tc, "get account preferences", func() (broker.Result, error) {
		return t.client.GetAccountPreferences(ctx)
	})
}

// UpdateAccountPreferences changes leverages per instrument type and the
// hedging mode.
func (t *CapitalTools) UpdateAccountPreferences(ctx context.Context, tc Context, leverages map[string]int, hedgingMode *bool) broker.Result {
	return t.authed(ctx, tc, "update account preferences", func() (broker.Result, error) {
		return t.client.UpdateAccountPreferences(ctx, leverages, hedgingMode)
	})
}

// TopUpDemoAccount adds funds to a demo account.
func (t *CapitalTools) TopUpDemoAccount(ctx context.Context, tc Context, amount float64) broker.Result {
	return t.authed(ctx, tc, "top up demo account", func() (broker.Result, error) {
		return t.client.TopUpDemoAccount(ctx, amount)
	})
}

// GetMarketNavigation browses the market tree.
func (t *CapitalTools) GetMarketNavigation(ctx context.Context, tc Context, nodeID string) broker.Result {
	return t.authed(ctx, tc, "get market navigation", func() (broker.Result, error) {
		return t.client.GetMarketNavigation(ctx, nodeID)
	})
}

// GetActivityHistory lists trading activity.
func (t *CapitalTools) GetActivityHistory(ctx context.Context, tc Context, q capital.ActivityQuery) broker.Result {
	return t.authed(ctx, tc, "get activity history", func() (broker.Result, error) {
		return t.client.GetActivityHistory(ctx, q)
	})
}

// GetTransactionHistory lists deposits, withdrawals and trade settlements.
func (t *CapitalTools) GetTransactionHistory(ctx context.Context, tc Context, q capital.TransactionQuery) broker.Result {
	return t.authed(ctx, tc, "get transaction history", func() (broker.Result, error) {
		return t.client.GetTransactionHistory(ctx, q)
	})
}

// GetClientSentiment returns long/short ratios with interpretations.
func (t *CapitalTools) GetClientSentiment(ctx context.Context, tc Context, marketIDs []string) broker.Result {
	return t.authed(ctx, tc, "get client sentiment", func() (broker.Result, error) {
		return t.client.GetClientSentiment(ctx, marketIDs)
	})
}

// Ping keeps the session alive.
func (t *CapitalTools) Ping(ctx context.Context, tc Context) broker.Result {
	return t.authed(ctx, tc, "ping", func() (broker.Result, error) {
		return t.client.Ping(ctx)
	})
}

// GetServerTime returns the broker's clock.
func (t *CapitalTools) GetServerTime(ctx context.Context, tc Context) broker.Result {
	return t.authed(ctx, tc, "get server time", func() (broker.Result, error) {
		return t.client.GetServerTime(ctx)
	})
}
