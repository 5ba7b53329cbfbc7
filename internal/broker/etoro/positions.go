package etoro

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"broker_mcp/internal/broker"
	apperrors "broker_mcp/internal/errors"
	"broker_mcp/internal/validation"
)

// GetPositions returns all open positions.
func (c *Client) GetPositions(ctx context.Context) (broker.Result, error) {
	return c.get(ctx, "get positions", "positions", nil)
}

// CreatePosition opens a position for a cash amount.
func (c *Client) CreatePosition(ctx context.Context, req PositionRequest) (broker.Result, error) {
	if req.Leverage == 0 {
		req.Leverage = 1
	}
	if err := validation.PositiveInt("instrument_id", req.InstrumentID); err != nil {
		return nil, err
	}
	if !validation.IsDirection(req.Direction) {
		return nil, apperrors.ValidationField("direction", "direction must be 'BUY' or 'SELL'")
	}
	if err := positiveAmount("amount", req.Amount); err != nil {
		return nil, err
	}
	if err := minLeverage(req.Leverage); err != nil {
		return nil, err
	}
	if err := finiteRates([]string{"stop_loss", "take_profit"}, req.StopLoss, req.TakeProfit); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"instrumentId": req.InstrumentID,
		"direction":    req.Direction,
		"amount":       number(req.Amount),
		"leverage":     req.Leverage,
	}
	setIf(payload, "stopLoss", req.StopLoss)
	setIf(payload, "takeProfit", req.TakeProfit)

	result, err := c.do(ctx, "create position", broker.Request{Method: http.MethodPost, Path: "positions", Body: payload})
	if err != nil {
		return nil, err
	}
	c.logger.Info().Int("instrument_id", req.InstrumentID).Str("direction", req.Direction).Msg("Position created successfully")
	return result, nil
}

// ClosePosition closes an open position.
func (c *Client) ClosePosition(ctx context.Context, positionID string) (broker.Result, error) {
	if err := validation.SafeString("position_id", positionID); err != nil {
		return nil, err
	}
	result, err := c.do(ctx, "close position", broker.Request{
		Method: http.MethodDelete,
		Path:   "positions/" + url.PathEscape(positionID),
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("position_id", positionID).Msg("Position closed successfully")
	return result, nil
}

// UpdatePosition changes stop loss and/or take profit.
func (c *Client) UpdatePosition(ctx context.Context, positionID string, stopLoss, takeProfit *float64) (broker.Result, error) {
	if err := validation.SafeString("position_id", positionID); err != nil {
		return nil, err
	}
	if err := validation.RequireAny("At least one parameter (stop_loss or take_profit) must be provided", stopLoss, takeProfit); err != nil {
		return nil, err
	}
	if err := finiteRates([]string{"stop_loss", "take_profit"}, stopLoss, takeProfit); err != nil {
		return nil, err
	}

	payload := map[string]any{}
	setIf(payload, "stopLoss", stopLoss)
	setIf(payload, "takeProfit", takeProfit)

	return c.do(ctx, "update position", broker.Request{
		Method: http.MethodPut,
		Path:   "positions/" + url.PathEscape(positionID),
		Body:   payload,
	})
}

// CreatePositionByUnits opens a market position sized in units.
func (c *Client) CreatePositionByUnits(ctx context.Context, req UnitsRequest) (broker.Result, error) {
	if req.Leverage == 0 {
		req.Leverage = 1
	}
	if err := validation.PositiveInt("instrument_id", req.InstrumentID); err != nil {
		return nil, err
	}
	if err := positiveAmount("units", req.Units); err != nil {
		return nil, err
	}
	if err := minLeverage(req.Leverage); err != nil {
		return nil, err
	}
	if err := finiteRates([]string{"stop_loss_rate", "take_profit_rate"}, req.StopLossRate, req.TakeProfitRate); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"InstrumentID":  req.InstrumentID,
		"IsBuy":         req.IsBuy,
		"Leverage":      req.Leverage,
		"AmountInUnits": number(req.Units),
	}
	setIf(payload, "StopLossRate", req.StopLossRate)
	setIf(payload, "TakeProfitRate", req.TakeProfitRate)

	return c.do(ctx, "create position by units", broker.Request{
		Method: http.MethodPost,
		Path:   "trading/execution/market-open-orders/by-units",
		Body:   payload,
	})
}

// PlaceLimitOrder places an order that opens a position at rate.
func (c *Client) PlaceLimitOrder(ctx context.Context, req LimitOrderRequest) (broker.Result, error) {
	if req.Leverage == 0 {
		req.Leverage = 1
	}
	if err := validation.PositiveInt("instrument_id", req.InstrumentID); err != nil {
		return nil, err
	}
	if err := positiveAmount("rate", req.Rate); err != nil {
		return nil, err
	}
	if err := positiveAmount("amount", req.Amount); err != nil {
		return nil, err
	}
	if err := minLeverage(req.Leverage); err != nil {
		return nil, err
	}
	if err := finiteRates([]string{"stop_loss_rate", "take_profit_rate"}, req.StopLossRate, req.TakeProfitRate); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"InstrumentID": req.InstrumentID,
		"IsBuy":        req.IsBuy,
		"Leverage":     req.Leverage,
		"Rate":         number(req.Rate),
		"Amount":       number(req.Amount),
	}
	setIf(payload, "StopLossRate", req.StopLossRate)
	setIf(payload, "TakeProfitRate", req.TakeProfitRate)

	return c.do(ctx, "place limit order", broker.Request{
		Method: http.MethodPost,
		Path:   "trading/execution/limit-orders",
		Body:   payload,
	})
}

// CancelLimitOrder cancels a pending limit order.
func (c *Client) CancelLimitOrder(ctx context.Context, orderID string) (broker.Result, error) {
	if err := validation.SafeString("order_id", orderID); err != nil {
		return nil, err
	}
	return c.do(ctx, "cancel limit order", broker.Request{
		Method: http.MethodDelete,
		Path:   "trading/execution/limit-orders/" + url.PathEscape(orderID),
	})
}

// GetOrderInfo returns an order and the positions it opened.
func (c *Client) GetOrderInfo(ctx context.Context, orderID string) (broker.Result, error) {
	if err := validation.SafeString("order_id", orderID); err != nil {
		return nil, err
	}
	return c.get(ctx, "get order info", "trading/info/orders/"+url.PathEscape(orderID), nil)
}

func positiveAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return apperrors.ValidationField(field, field+" must be a number")
	}
	if v <= 0 {
		return apperrors.ValidationField(field, field+" must be greater than 0")
	}
	return nil
}

func finiteRates(names []string, values ...*float64) error {
	for i, v := range values {
		if err := validation.Finite(names[i], v); err != nil {
			return err
		}
	}
	return nil
}

func minLeverage(leverage int) error {
	if leverage < 1 {
		return apperrors.ValidationField("leverage", "leverage must be at least 1")
	}
	return nil
}

// number renders an amount without float noise.
func number(v float64) json.Number {
	return json.Number(decimal.NewFromFloat(v).String())
}

func setIf(m map[string]any, key string, v *float64) {
	if v != nil {
		m[key] = number(*v)
	}
}
