package capital

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"broker_mcp/internal/broker"
	apperrors "broker_mcp/internal/errors"
	"broker_mcp/internal/validation"
)

// PriceQuery selects historical bars.
type PriceQuery struct {
	Resolution string
	Max        int
	From       string
	To         string
}

// GetAccountInfo returns all accounts for the authenticated user.
func (c *Client) GetAccountInfo(ctx context.Context) (broker.Result, error) {
	return c.call(ctx, "get account info", broker.Request{Method: http.MethodGet, Path: "/api/v1/accounts"})
}

// SearchMarkets finds markets by free text or by explicit epics. The search
// term wins when both are given.
func (c *Client) SearchMarkets(ctx context.Context, searchTerm string, epics []string) (broker.Result, error) {
	query := url.Values{}
	switch {
	case searchTerm != "":
		query.Set("searchTerm", searchTerm)
	case len(epics) > 0:
		for _, e := range epics {
			if err := validation.ValidateInput(validation.P("epic", e)); err != nil {
				return nil, err
			}
		}
		query.Set("epics", strings.Join(epics, ","))
	}
	return c.call(ctx, "search markets", broker.Request{Method: http.MethodGet, Path: "/api/v1/markets", Query: query})
}

// GetMarketDetails returns one market flattened into a Market record.
func (c *Client) GetMarketDetails(ctx context.Context, epic string) (broker.Result, error) {
	if err := validation.ValidateInput(validation.P("epic", epic)); err != nil {
		return nil, err
	}
	result, err := c.call(ctx, "get market details", broker.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/markets/" + url.PathEscape(epic),
	})
	if err != nil {
		return nil, err
	}

	var details MarketDetails
	if err := decodeInto(result, &details); err != nil {
		return nil, apperrors.Internal("decoding market details", err)
	}
	return toResult(FlattenMarket(details))
}

// GetPrices returns price bars for epic. Resolution defaults to MINUTE and
// Max to 10.
func (c *Client) GetPrices(ctx context.Context, epic string, q PriceQuery) (broker.Result, error) {
	if q.Resolution == "" {
		q.Resolution = "MINUTE"
	}
	if q.Max == 0 {
		q.Max = 10
	}
	if err := validation.ValidateInput(
		validation.P("epic", epic),
		validation.P("resolution", q.Resolution),
		validation.P("max_bars", q.Max),
	); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("resolution", q.Resolution)
	query.Set("max", strconv.Itoa(q.Max))
	if q.From != "" {
		query.Set("from", stripZone(q.From))
	}
	if q.To != "" {
		query.Set("to", stripZone(q.To))
	}

	return c.call(ctx, "get prices", broker.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/prices/" + url.PathEscape(epic),
		Query:  query,
	})
}

// GetHistoricalPrices is GetPrices with an explicit date range check.
func (c *Client) GetHistoricalPrices(ctx context.Context, epic string, q PriceQuery) (broker.Result, error) {
	if q.From != "" && q.To != "" {
		from, err := parseHistoryTime(q.From)
		if err != nil {
			return nil, err
		}
		to, err := parseHistoryTime(q.To)
		if err != nil {
			return nil, err
		}
		if to.Before(from) {
			return nil, apperrors.Validation("to_date must not be before from_date")
		}
	}
	return c.GetPrices(ctx, epic, q)
}

// GetMarketNavigation lists the market tree root, or the children of nodeID.
func (c *Client) GetMarketNavigation(ctx context.Context, nodeID string) (broker.Result, error) {
	path := "/api/v1/marketnavigation"
	if nodeID != "" {
		path += "/" + url.PathEscape(nodeID)
	}
	return c.call(ctx, "get market navigation", broker.Request{Method: http.MethodGet, Path: path})
}

// GetClientSentiment returns long/short ratios for the given markets, each
// annotated with an interpretation.
func (c *Client) GetClientSentiment(ctx context.Context, marketIDs []string) (broker.Result, error) {
	if len(marketIDs) == 0 {
		return nil, apperrors.ValidationField("market_ids", "market_ids must contain at least one market")
	}
	joined := strings.Join(marketIDs, ",")

	result, err := c.call(ctx, "get client sentiment", broker.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/clientsentiment",
		Query:  url.Values{"marketIds": {joined}},
	})
	if err != nil {
		return nil, err
	}
	return annotateSentiment(result, joined), nil
}

// Ping keeps the session alive.
func (c *Client) Ping(ctx context.Context) (broker.Result, error) {
	return c.call(ctx, "ping", broker.Request{Method: http.MethodGet, Path: "/api/v1/ping"})
}

// GetServerTime returns the broker clock.
func (c *Client) GetServerTime(ctx context.Context) (broker.Result, error) {
	return c.call(ctx, "get server time", broker.Request{Method: http.MethodGet, Path: "/api/v1/time"})
}
