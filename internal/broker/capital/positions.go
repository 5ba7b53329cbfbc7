package capital

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"broker_mcp/internal/broker"
	apperrors "broker_mcp/internal/errors"
	"broker_mcp/internal/validation"
)

// DefaultLeverage is used by CalculateMargin when none is given.
const DefaultLeverage = 20.0

// GetPositions returns all open positions.
func (c *Client) GetPositions(ctx context.Context) (broker.Result, error) {
	return c.call(ctx, "get positions", broker.Request{Method: http.MethodGet, Path: "/api/v1/positions"})
}

// GetPosition returns a single open position.
func (c *Client) GetPosition(ctx context.Context, dealID string) (broker.Result, error) {
	if err := validation.ValidateInput(validation.P("deal_id", dealID)); err != nil {
		return nil, err
	}
	return c.call(ctx, "get position", broker.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/positions/" + url.PathEscape(dealID),
	})
}

func (r PositionRequest) stops() validation.Stops {
	return validation.Stops{
		GuaranteedStop: r.GuaranteedStop,
		TrailingStop:   r.TrailingStop,
		StopLevel:      r.StopLevel,
		StopDistance:   r.StopDistance,
		StopAmount:     r.StopAmount,
		ProfitLevel:    r.ProfitLevel,
		ProfitDistance: r.ProfitDistance,
		ProfitAmount:   r.ProfitAmount,
	}
}

// sizeNumber renders a deal size without float noise, e.g. 0.02 rather
// than 0.020000000000000004.
func sizeNumber(size float64) json.Number {
	return json.Number(decimal.NewFromFloat(size).String())
}

// CreatePosition opens a market position. The daily trade cap is checked
// before any request is sent.
func (c *Client) CreatePosition(ctx context.Context, req PositionRequest) (broker.Result, error) {
	if err := validation.ValidateInput(
		validation.P("epic", req.Epic),
		validation.P("direction", req.Direction),
		validation.P("size", req.Size),
		validation.P("stop_level", req.StopLevel),
		validation.P("profit_level", req.ProfitLevel),
	); err != nil {
		return nil, err
	}
	stops := req.stops()
	if err := validation.ValidateStops(stops); err != nil {
		return nil, err
	}

	if !c.trades.reserve() {
		c.logger.Warn().Int("max_daily_trades", c.trades.max).Msg("Daily trade limit reached")
		return nil, apperrors.New(apperrors.ErrTradeLimit,
			fmt.Sprintf("Daily trade limit reached (%d trades)", c.trades.max))
	}

	payload := positionPayload(stops)
	payload["epic"] = req.Epic
	payload["direction"] = req.Direction
	payload["size"] = sizeNumber(req.Size)

	result, err := c.call(ctx, "create position", broker.Request{
		Method: http.MethodPost,
		Path:   "/api/v1/positions",
		Body:   payload,
	})
	if err != nil {
		c.trades.release()
		return nil, err
	}

	if _, ok := result["dealReference"]; ok {
		result["_metadata"] = map[string]any{
			"note":                   "Position created with dealReference (order reference with 'o_' prefix)",
			"next_steps":             "Use get_positions() to find the actual dealId for position management",
			"trailing_stop_active":   req.TrailingStop,
			"guaranteed_stop_active": req.GuaranteedStop,
		}
	}
	c.logger.Info().
		Str("epic", req.Epic).
		Str("direction", req.Direction).
		Float64("size", req.Size).
		Int("trades_remaining", c.trades.remaining()).
		Msg("Position created")
	return result, nil
}

// UpdatePosition changes the stops and limits of an open position.
func (c *Client) UpdatePosition(ctx context.Context, dealID string, update PositionUpdate) (broker.Result, error) {
	if err := validation.ValidateInput(validation.P("deal_id", dealID)); err != nil {
		return nil, err
	}
	stops := validation.Stops(update)
	if !stops.HasChanges() {
		return nil, apperrors.Validation("At least one parameter must be provided")
	}
	if err := validation.ValidateStops(stops); err != nil {
		return nil, err
	}

	payload := positionPayload(stops)
	result, err := c.call(ctx, "update position", broker.Request{
		Method: http.MethodPut,
		Path:   "/api/v1/positions/" + url.PathEscape(dealID),
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}

	if _, ok := result["dealReference"]; ok {
		result["_metadata"] = map[string]any{
			"note":                   "Position updated successfully",
			"deal_id":                dealID,
			"trailing_stop_active":   update.TrailingStop,
			"guaranteed_stop_active": update.GuaranteedStop,
			"updated_parameters":     payloadKeys(payload),
		}
	}
	return result, nil
}

// ClosePosition closes dealID with an opposing market order. The open
// position is looked up first for its epic, direction and size.
func (c *Client) ClosePosition(ctx context.Context, dealID string) (broker.Result, error) {
	if err := validation.ValidateInput(validation.P("deal_id", dealID)); err != nil {
		return nil, err
	}

	listing, err := c.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	var positions PositionsResponse
	if err := decodeInto(listing, &positions); err != nil {
		return nil, apperrors.Internal("decoding positions", err)
	}

	var entry *PositionEntry
	for i := range positions.Positions {
		if positions.Positions[i].Position.DealID == dealID {
			entry = &positions.Positions[i]
			break
		}
	}
	if entry == nil {
		c.logger.Error().Str("deal_id", dealID).Msg("Position not found")
		return nil, apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("Position with deal ID %s not found", dealID))
	}

	payload := map[string]any{
		"dealId":    dealID,
		"epic":      entry.Market.Epic,
		"direction": OppositeDirection(entry.Position.Direction),
		"size":      sizeNumber(entry.Position.Size),
		"orderType": "MARKET",
	}
	return c.call(ctx, "close position", broker.Request{
		Method: http.MethodDelete,
		Path:   "/api/v1/positions/" + url.PathEscape(dealID),
		Body:   payload,
	})
}

// ConfirmDeal reports the outcome of an order by its deal reference.
func (c *Client) ConfirmDeal(ctx context.Context, dealReference string) (broker.Result, error) {
	if err := validation.NotEmpty("deal_reference", dealReference); err != nil {
		return nil, err
	}
	return c.call(ctx, "confirm deal", broker.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/confirms/" + url.PathEscape(dealReference),
	})
}

// CalculateMargin estimates the margin for a position from the latest
// minute bar: bid for SELL, ask for BUY, divided by leverage.
func (c *Client) CalculateMargin(ctx context.Context, epic, direction string, size, leverage float64) (*Margin, error) {
	if leverage == 0 {
		leverage = DefaultLeverage
	}
	if err := validation.ValidateInput(
		validation.P("epic", epic),
		validation.P("direction", direction),
		validation.P("size", size),
		validation.P("leverage", leverage),
	); err != nil {
		return nil, err
	}

	result, err := c.GetPrices(ctx, epic, PriceQuery{})
	if err != nil {
		return nil, err
	}
	var prices PricesResponse
	if err := decodeInto(result, &prices); err != nil || len(prices.Prices) == 0 {
		return nil, apperrors.New(apperrors.ErrUpstream, fmt.Sprintf("Could not retrieve price information for %s", epic))
	}

	price := quotePrice(prices.Prices[len(prices.Prices)-1], direction)
	margin := decimal.NewFromFloat(price).
		Mul(decimal.NewFromFloat(size)).
		Div(decimal.NewFromFloat(leverage))

	return &Margin{
		Instrument:     epic,
		Direction:      direction,
		Size:           size,
		Leverage:       leverage,
		Price:          price,
		MarginRequired: margin.InexactFloat64(),
	}, nil
}

// quotePrice picks the side of bar relevant to direction. Top-level bid/ask
// take precedence over the close price.
func quotePrice(bar PriceBar, direction string) float64 {
	bid, ask := bar.ClosePrice.Bid, bar.ClosePrice.Ask
	if bar.Bid != nil {
		bid = *bar.Bid
	}
	if bar.Ask != nil {
		ask = *bar.Ask
	}
	if direction == "SELL" {
		return bid
	}
	return ask
}
