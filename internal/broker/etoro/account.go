package etoro

import (
	"context"
	"net/http"
	"net/url"

	"broker_mcp/internal/broker"
)

// GetAccountInfo returns balance, equity and margin.
func (c *Client) GetAccountInfo(ctx context.Context) (broker.Result, error) {
	return c.get(ctx, "get account info", "account/info", nil)
}

// GetPortfolioSummary returns allocation and performance.
func (c *Client) GetPortfolioSummary(ctx context.Context) (broker.Result, error) {
	return c.get(ctx, "get portfolio summary", "portfolio/summary", nil)
}

// GetPortfolio returns the full client portfolio with positions and pending
// orders.
func (c *Client) GetPortfolio(ctx context.Context) (broker.Result, error) {
	return c.get(ctx, "get portfolio", "trading/info/portfolio", nil)
}

// GetPnL returns realised and unrealised profit and loss.
func (c *Client) GetPnL(ctx context.Context) (broker.Result, error) {
	return c.get(ctx, "get pnl", "trading/info/pnl", nil)
}

func (c *Client) get(ctx context.Context, op, resource string, query url.Values) (broker.Result, error) {
	return c.do(ctx, op, broker.Request{Method: http.MethodGet, Path: resource, Query: query})
}

// do dispatches req and logs failures under op.
func (c *Client) do(ctx context.Context, op string, req broker.Request) (broker.Result, error) {
	result, err := c.Dispatch(ctx, req)
	if err != nil {
		c.logger.Error().Err(err).Str("operation", op).Msg("Request failed")
		return nil, err
	}
	return result, nil
}
