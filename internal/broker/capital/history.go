package capital

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"broker_mcp/internal/broker"
	apperrors "broker_mcp/internal/errors"
)

const (
	historyTimeLayout = "2006-01-02T15:04:05"
	maxHistoryWindow  = 24 * time.Hour
	// MaxLastPeriod is the largest lastPeriod, in seconds, the API accepts.
	MaxLastPeriod = 86400
)

func parseHistoryTime(s string) (time.Time, error) {
	t, err := time.Parse(historyTimeLayout, stripZone(s))
	if err != nil {
		return time.Time{}, apperrors.Validationf("Invalid date format: %q, expected YYYY-MM-DDTHH:MM:SS", s)
	}
	return t, nil
}

// historyWindow validates and applies the shared date/lastPeriod rules.
// lastPeriod is ignored when a date bound is present.
func historyWindow(query url.Values, from, to string, lastPeriod int) (int, error) {
	if from != "" {
		query.Set("from", stripZone(from))
	}
	if to != "" {
		query.Set("to", stripZone(to))
	}

	if from != "" && to != "" {
		fromT, err := parseHistoryTime(from)
		if err != nil {
			return 0, err
		}
		toT, err := parseHistoryTime(to)
		if err != nil {
			return 0, err
		}
		if toT.Sub(fromT) > maxHistoryWindow {
			return 0, apperrors.Validation("Date range cannot exceed 24 hours (86400 seconds)")
		}
	}

	if from != "" || to != "" {
		return 0, nil
	}
	if lastPeriod > MaxLastPeriod {
		return 0, apperrors.Validation("lastPeriod cannot exceed 86400 seconds (24 hours)")
	}
	if lastPeriod > 0 {
		query.Set("lastPeriod", strconv.Itoa(lastPeriod))
	}
	return lastPeriod, nil
}

// GetActivityHistory returns account activity for a window of at most 24h.
func (c *Client) GetActivityHistory(ctx context.Context, q ActivityQuery) (broker.Result, error) {
	query := url.Values{}
	lastPeriod, err := historyWindow(query, q.From, q.To, q.LastPeriod)
	if err != nil {
		return nil, err
	}
	if q.Detailed {
		query.Set("detailed", "true")
	}
	if q.DealID != "" {
		query.Set("dealId", q.DealID)
	}
	if q.Filter != "" {
		query.Set("filter", q.Filter)
	}

	result, err := c.call(ctx, "get activity history", broker.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/history/activity",
		Query:  query,
	})
	if err != nil {
		return nil, err
	}

	activities, _ := result["activities"].([]any)
	result["_metadata"] = map[string]any{
		"requested_from":      nullable(query.Get("from")),
		"requested_to":        nullable(query.Get("to")),
		"last_period_seconds": nullableInt(lastPeriod),
		"total_activities":    len(activities),
		"deal_id_filter":      nullable(q.DealID),
		"filter_applied":      nullable(q.Filter),
		"detailed_mode":       q.Detailed,
		"api_note":            "Supports both date ranges (max 24h) and lastPeriod (max 86400s)",
	}
	return result, nil
}

// GetTransactionHistory returns deposits, withdrawals and trade cash flows.
func (c *Client) GetTransactionHistory(ctx context.Context, q TransactionQuery) (broker.Result, error) {
	query := url.Values{}
	lastPeriod, err := historyWindow(query, q.From, q.To, q.LastPeriod)
	if err != nil {
		return nil, err
	}
	if q.Type != "" {
		query.Set("type", q.Type)
	}

	result, err := c.call(ctx, "get transaction history", broker.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/history/transactions",
		Query:  query,
	})
	if err != nil {
		return nil, err
	}

	transactions, _ := result["transactions"].([]any)
	result["_metadata"] = map[string]any{
		"requested_from":      nullable(query.Get("from")),
		"requested_to":        nullable(query.Get("to")),
		"last_period_seconds": nullableInt(lastPeriod),
		"total_transactions":  len(transactions),
		"transaction_type":    nullable(q.Type),
	}
	return result, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
