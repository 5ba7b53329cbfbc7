package capital

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"broker_mcp/internal/broker"
	apperrors "broker_mcp/internal/errors"
	"broker_mcp/internal/validation"
)

// Working order defaults.
const (
	DefaultOrderType   = "STOP"
	DefaultTimeInForce = "GOOD_TILL_CANCELLED"
)

var (
	orderTypes   = map[string]bool{"STOP": true, "LIMIT": true}
	timesInForce = map[string]bool{"GOOD_TILL_CANCELLED": true, "GOOD_TILL_DATE": true}
)

const orderIDNote = "Ensure working_order_id is correct. dealReference from creation may not be the same as working order ID."

// GetWorkingOrders lists pending orders.
func (c *Client) GetWorkingOrders(ctx context.Context) (broker.Result, error) {
	result, err := c.call(ctx, "get working orders", broker.Request{Method: http.MethodGet, Path: "/api/v1/workingorders"})
	if err != nil {
		return nil, err
	}
	orders, _ := result["workingOrders"].([]any)
	result["_metadata"] = map[string]any{
		"total_orders":  len(orders),
		"api_note":      "Working orders may not appear immediately after creation",
		"endpoint_used": "/api/v1/workingorders",
	}
	if len(orders) == 0 {
		result["_info"] = "No working orders found. Orders may take time to appear after creation, or this could be normal for accounts with no pending orders."
	}
	return result, nil
}

// CreateWorkingOrder places a stop or limit order at level.
func (c *Client) CreateWorkingOrder(ctx context.Context, req WorkingOrderRequest) (broker.Result, error) {
	if req.Type == "" {
		req.Type = DefaultOrderType
	}
	if req.TimeInForce == "" {
		req.TimeInForce = DefaultTimeInForce
	}
	if err := validation.ValidateInput(
		validation.P("epic", req.Epic),
		validation.P("direction", req.Direction),
		validation.P("size", req.Size),
		validation.P("stop_level", req.StopLevel),
		validation.P("profit_level", req.ProfitLevel),
	); err != nil {
		return nil, err
	}
	if req.Level <= 0 {
		return nil, apperrors.ValidationField("level", "level must be a positive price")
	}
	if !orderTypes[req.Type] {
		return nil, apperrors.ValidationField("order_type", fmt.Sprintf("order_type must be 'STOP' or 'LIMIT', got '%s'", req.Type))
	}
	if !timesInForce[req.TimeInForce] {
		return nil, apperrors.ValidationField("time_in_force",
			fmt.Sprintf("time_in_force must be 'GOOD_TILL_CANCELLED' or 'GOOD_TILL_DATE', got '%s'", req.TimeInForce))
	}
	if req.TimeInForce == "GOOD_TILL_DATE" && req.GoodTill == "" {
		return nil, apperrors.ValidationField("good_till_date", "good_till_date is required when time_in_force is GOOD_TILL_DATE")
	}

	payload := map[string]any{
		"epic":        req.Epic,
		"direction":   req.Direction,
		"size":        sizeNumber(req.Size),
		"level":       req.Level,
		"type":        req.Type,
		"timeInForce": req.TimeInForce,
	}
	if req.GoodTill != "" {
		payload["goodTillDate"] = stripZone(req.GoodTill)
	}
	setIf(payload, "stopLevel", req.StopLevel)
	setIf(payload, "profitLevel", req.ProfitLevel)

	result, err := c.call(ctx, "create working order", broker.Request{
		Method: http.MethodPost,
		Path:   "/api/v1/workingorders",
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}
	if _, ok := result["dealReference"]; ok {
		result["_metadata"] = map[string]any{
			"note":            "dealReference returned is for order tracking. To manage this order, use get_working_orders() to find the actual working order ID.",
			"next_steps":      "Orders may take time to appear in get_working_orders(). Use the dealReference to track order status.",
			"management_note": "For update/delete operations, you need the working order ID from get_working_orders(), not this dealReference.",
		}
	}
	return result, nil
}

// UpdateWorkingOrder changes the levels of a pending order.
func (c *Client) UpdateWorkingOrder(ctx context.Context, orderID string, update WorkingOrderUpdate) (broker.Result, error) {
	if err := validation.ValidateInput(validation.P("deal_id", orderID)); err != nil {
		return nil, err
	}
	if update.GoodTill == "" {
		if err := validation.RequireAny("At least one parameter (level, stop_level, profit_level) must be provided",
			update.Level, update.StopLevel, update.ProfitLevel); err != nil {
			return nil, err
		}
	}

	payload := map[string]any{}
	setIf(payload, "level", update.Level)
	setIf(payload, "stopLevel", update.StopLevel)
	setIf(payload, "profitLevel", update.ProfitLevel)
	if update.GoodTill != "" {
		payload["goodTillDate"] = stripZone(update.GoodTill)
	}

	result, err := c.call(ctx, "update working order", broker.Request{
		Method: http.MethodPut,
		Path:   "/api/v1/workingorders/" + url.PathEscape(orderID),
		Body:   payload,
	})
	if err != nil {
		return nil, withOrderID(err, orderID)
	}
	result["success"] = true
	result["message"] = fmt.Sprintf("Working order %s updated", orderID)
	result["updated_data"] = payload
	return result, nil
}

// DeleteWorkingOrder cancels a pending order.
func (c *Client) DeleteWorkingOrder(ctx context.Context, orderID string) (broker.Result, error) {
	if err := validation.ValidateInput(validation.P("deal_id", orderID)); err != nil {
		return nil, err
	}
	result, err := c.call(ctx, "delete working order", broker.Request{
		Method: http.MethodDelete,
		Path:   "/api/v1/workingorders/" + url.PathEscape(orderID),
	})
	if err != nil {
		return nil, withOrderID(err, orderID)
	}
	result["success"] = true
	result["message"] = fmt.Sprintf("Working order %s deleted", orderID)
	return result, nil
}

// withOrderID adds the attempted id to upstream failures, since the
// creation reference is easily mistaken for the order id.
func withOrderID(err error, orderID string) error {
	if !apperrors.IsUpstream(err) {
		return err
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Details == nil {
			appErr.Details = map[string]any{}
		}
		appErr.Details["attempted_id"] = orderID
		appErr.Details["note"] = orderIDNote
	}
	return err
}
