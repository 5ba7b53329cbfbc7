package tools

import (
	"context"
	"math"
	"sync/atomic"

	"broker_mcp/internal/broker"
	"broker_mcp/internal/broker/etoro"
	apperrors "broker_mcp/internal/errors"
	"broker_mcp/internal/validation"
)

const credentialsNotValidated = "API credentials not validated. Please check your eToro API keys."

func directionError() error {
	return apperrors.ValidationField("direction", "direction must be 'BUY' or 'SELL'")
}

// EtoroTools adapts an eToro client to tool calls. There is no session:
// tools only run once the API keys have been validated.
type EtoroTools struct {
	client *etoro.Client
	valid  atomic.Bool
	binder
}

// NewEtoroTools returns the tool set for client.
func NewEtoroTools(client *etoro.Client, opts ...Option) *EtoroTools {
	return &EtoroTools{
		client: client,
		binder: binder{broker: etoro.BrokerName, options: newOptions(opts)},
	}
}

// ValidateCredentials checks the keys against the API and caches a success.
func (t *EtoroTools) ValidateCredentials(ctx context.Context) bool {
	ok := t.client.ValidateCredentials(ctx)
	t.valid.Store(ok)
	return ok
}

// CredentialsValid reports the cached validation outcome.
func (t *EtoroTools) CredentialsValid() bool {
	return t.valid.Load()
}

// gate validates the keys when no earlier validation succeeded and returns
// the envelope to hand back when they are still not usable.
func (t *EtoroTools) gate(ctx context.Context, tc Context) broker.Result {
	if t.valid.Load() || t.ValidateCredentials(ctx) {
		return nil
	}
	tc.Error(credentialsNotValidated)
	env := broker.Result{"error": credentialsNotValidated}
	if err := t.client.LastError(); err != nil {
		env["details"] = err.Error()
	}
	return env
}

func (t *EtoroTools) run(ctx context.Context, tc Context, op string, fn func() (broker.Result, error)) broker.Result {
	if env := t.gate(ctx, tc); env != nil {
		return env
	}
	result, err := fn()
	return finish(tc, op, result, err)
}

// SearchInstruments finds tradeable instruments and their integer IDs.
func (t *EtoroTools) SearchInstruments(ctx context.Context, tc Context, searchTerm, category string, limit int) broker.Result {
	return t.run(ctx, tc, "search instruments", func() (broker.Result, error) {
		return t.client.SearchInstruments(ctx, searchTerm, category, limit)
	})
}

// GetAccountInfo returns balance and equity.
func (t *EtoroTools) GetAccountInfo(ctx context.Context, tc Context) broker.Result {
	return t.run(ctx, tc, "get account info", func() (broker.Result, error) {
		return t.client.GetAccountInfo(ctx)
	})
}

// GetPortfolioSummary returns aggregate portfolio figures.
func (t *EtoroTools) GetPortfolioSummary(ctx context.Context, tc Context) broker.Result {
	return t.run(ctx, tc, "get portfolio summary", func() (broker.Result, error) {
		return t.client.GetPortfolioSummary(ctx)
	})
}

// GetPortfolio returns positions, orders and mirrors.
func (t *EtoroTools) GetPortfolio(ctx context.Context, tc Context) broker.Result {
	return t.run(ctx, tc, "get portfolio", func() (broker.Result, error) {
		return t.client.GetPortfolio(ctx)
	})
}

// GetPnL returns the portfolio with profit and loss.
func (t *EtoroTools) GetPnL(ctx context.Context, tc Context) broker.Result {
	return t.run(ctx, tc, "get pnl", func() (broker.Result, error) {
		return t.client.GetPnL(ctx)
	})
}

// GetPositions lists open positions.
func (t *EtoroTools) GetPositions(ctx context.Context, tc Context) broker.Result {
	return t.run(ctx, tc, "get positions", func() (broker.Result, error) {
		return t.client.GetPositions(ctx)
	})
}

// CreatePosition opens a position for a cash amount.
func (t *EtoroTools) CreatePosition(ctx context.Context, tc Context, req etoro.PositionRequest) broker.Result {
	switch {
	case req.InstrumentID <= 0:
		return invalid(tc, apperrors.ValidationField("instrument_id", "instrument_id must be a positive integer"))
	case req.Direction != "BUY" && req.Direction != "SELL":
		return invalid(tc, directionError())
	case math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0):
		return invalid(tc, apperrors.ValidationField("amount", "amount must be a number"))
	case req.Amount <= 0:
		return invalid(tc, apperrors.ValidationField("amount", "amount must be greater than 0"))
	case req.Leverage < 1:
		return invalid(tc, apperrors.ValidationField("leverage", "leverage must be at least 1"))
	}
	return t.run(ctx, tc, "create position", func() (broker.Result, error) {
		return t.client.CreatePosition(ctx, req)
	})
}

// ClosePosition closes an open position.
func (t *EtoroTools) ClosePosition(ctx context.Context, tc Context, positionID string) broker.Result {
	if err := validation.SafeString("position_id", positionID); err != nil {
		return invalid(tc, err)
	}
	return t.run(ctx, tc, "close position", func() (broker.Result, error) {
		return t.client.ClosePosition(ctx, positionID)
	})
}

// UpdatePosition changes stop loss and/or take profit.
func (t *EtoroTools) UpdatePosition(ctx context.Context, tc Context, positionID string, stopLoss, takeProfit *float64) broker.Result {
	if err := validation.SafeString("position_id", positionID); err != nil {
		return invalid(tc, err)
	}
	if stopLoss == nil && takeProfit == nil {
		return invalid(tc, apperrors.Validation("At least one parameter (stop_loss or take_profit) must be provided"))
	}
	return t.run(ctx, tc, "update position", func() (broker.Result, error) {
		return t.client.UpdatePosition(ctx, positionID, stopLoss, takeProfit)
	})
}

// CreatePositionByUnits opens a market position sized in units.
func (t *EtoroTools) CreatePositionByUnits(ctx context.Context, tc Context, req etoro.UnitsRequest) broker.Result {
	return t.run(ctx, tc, "create position by units", func() (broker.Result, error) {
		return t.client.CreatePositionByUnits(ctx, req)
	})
}

// PlaceLimitOrder places an order that opens at a rate.
func (t *EtoroTools) PlaceLimitOrder(ctx context.Context, tc Context, req etoro.LimitOrderRequest) broker.Result {
	return t.run(ctx, tc, "place limit order", func() (broker.Result, error) {
		return t.client.PlaceLimitOrder(ctx, req)
	})
}

// CancelLimitOrder cancels a pending limit order.
func (t *EtoroTools) CancelLimitOrder(ctx context.Context, tc Context, orderID string) broker.Result {
	return t.run(ctx, tc, "cancel limit order", func() (broker.Result, error) {
		return t.client.CancelLimitOrder(ctx, orderID)
	})
}

// GetOrderInfo returns an order and the positions it opened.
func (t *EtoroTools) GetOrderInfo(ctx context.Context, tc Context, orderID string) broker.Result {
	return t.run(ctx, tc, "get order info", func() (broker.Result, error) {
		return t.client.GetOrderInfo(ctx, orderID)
	})
}

// GetInstrumentMetadata returns details of one instrument.
func (t *EtoroTools) GetInstrumentMetadata(ctx context.Context, tc Context, instrumentID int) broker.Result {
	if instrumentID <= 0 {
		return invalid(tc, apperrors.ValidationField("instrument_id", "instrument_id must be a positive integer"))
	}
	return t.run(ctx, tc, "get instrument metadata", func() (broker.Result, error) {
		return t.client.GetInstrumentMetadata(ctx, instrumentID)
	})
}

// GetCurrentRates returns bid/ask prices for instruments.
func (t *EtoroTools) GetCurrentRates(ctx context.Context, tc Context, instrumentIDs []int) broker.Result {
	for _, id := range instrumentIDs {
		if id <= 0 {
			return invalid(tc, apperrors.ValidationField("instrument_ids", "All instrument IDs must be positive integers"))
		}
	}
	return t.run(ctx, tc, "get current rates", func() (broker.Result, error) {
		return t.client.GetCurrentRates(ctx, instrumentIDs)
	})
}

// GetWatchlists lists watchlists.
func (t *EtoroTools) GetWatchlists(ctx context.Context, tc Context) broker.Result {
	return t.run(ctx, tc, "get watchlists", func() (broker.Result, error) {
		return t.client.GetWatchlists(ctx)
	})
}

// CreateWatchlist creates an empty watchlist.
func (t *EtoroTools) CreateWatchlist(ctx context.Context, tc Context, name string) broker.Result {
	return t.run(ctx, tc, "create watchlist", func() (broker.Result, error) {
		return t.client.CreateWatchlist(ctx, name)
	})
}

// RenameWatchlist renames a watchlist.
func (t *EtoroTools) RenameWatchlist(ctx context.Context, tc Context, watchlistID, name string) broker.Result {
	return t.run(ctx, tc, "rename watchlist", func() (broker.Result, error) {
		return t.client.RenameWatchlist(ctx, watchlistID, name)
	})
}

// DeleteWatchlist removes a watchlist.
func (t *EtoroTools) DeleteWatchlist(ctx context.Context, tc Context, watchlistID string) broker.Result {
	return t.run(ctx, tc, "delete watchlist", func() (broker.Result, error) {
		return t.client.DeleteWatchlist(ctx, watchlistID)
	})
}

// AddWatchlistItems adds instruments to a watchlist.
func (t *EtoroTools) AddWatchlistItems(ctx context.Context, tc Context, watchlistID string, instrumentIDs []int) broker.Result {
	return t.run(ctx, tc, "add watchlist items", func() (broker.Result, error) {
		return t.client.AddWatchlistItems(ctx, watchlistID, instrumentIDs)
	})
}

// RemoveWatchlistItems removes instruments from a watchlist.
func (t *EtoroTools) RemoveWatchlistItems(ctx context.Context, tc Context, watchlistID string, instrumentIDs []int) broker.Result {
	return t.run(ctx, tc, "remove watchlist items", func() (broker.Result, error) {
		return t.client.RemoveWatchlistItems(ctx, watchlistID, instrumentIDs)
	})
}

// SearchUsers lists popular investors.
func (t *EtoroTools) SearchUsers(ctx context.Context, tc Context, s etoro.UserSearch) broker.Result {
	return t.run(ctx, tc, "search users", func() (broker.Result, error) {
		return t.client.SearchUsers(ctx, s)
	})
}

// GetUserProfile returns a public profile.
func (t *EtoroTools) GetUserProfile(ctx context.Context, tc Context, username string) broker.Result {
	return t.run(ctx, tc, "get user profile", func() (broker.Result, error) {
		return t.client.GetUserProfile(ctx, username)
	})
}

// GetUserPerformance returns a user's gains.
func (t *EtoroTools) GetUserPerformance(ctx context.Context, tc Context, username string) broker.Result {
	return t.run(ctx, tc, "get user performance", func() (broker.Result, error) {
		return t.client.GetUserPerformance(ctx, username)
	})
}

// GetUserTradeInfo returns a user's trading statistics.
func (t *EtoroTools) GetUserTradeInfo(ctx context.Context, tc Context, username, period string) broker.Result {
	return t.run(ctx, tc, "get user trade info", func() (broker.Result, error) {
		return t.client.GetUserTradeInfo(ctx, username, period)
	})
}

// GetInstrumentFeed returns posts about a market.
func (t *EtoroTools) GetInstrumentFeed(ctx context.Context, tc Context, marketID string, take int) broker.Result {
	return t.run(ctx, tc, "get instrument feed", func() (broker.Result, error) {
		return t.client.GetInstrumentFeed(ctx, marketID, take)
	})
}

// GetUserFeed returns posts by a user.
func (t *EtoroTools) GetUserFeed(ctx context.Context, tc Context, userID string, take int) broker.Result {
	return t.run(ctx, tc, "get user feed", func() (broker.Result, error) {
		return t.client.GetUserFeed(ctx, userID, take)
	})
}
