package etoro

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"broker_mcp/internal/broker"
	apperrors "broker_mcp/internal/errors"
	"broker_mcp/internal/validation"
)

// SearchInstruments finds tradeable instruments. Empty arguments are not
// sent.
func (c *Client) SearchInstruments(ctx context.Context, searchTerm, category string, limit int) (broker.Result, error) {
	query := url.Values{}
	if searchTerm != "" {
		query.Set("q", searchTerm)
	}
	if category != "" {
		query.Set("category", category)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return c.get(ctx, "search instruments", "instruments/search", query)
}

// GetInstrumentMetadata returns spread, trading hours and limits.
func (c *Client) GetInstrumentMetadata(ctx context.Context, instrumentID int) (broker.Result, error) {
	if err := validation.PositiveInt("instrument_id", instrumentID); err != nil {
		return nil, err
	}
	return c.get(ctx, "get instrument metadata", fmt.Sprintf("instruments/%d/metadata", instrumentID), nil)
}

// GetCurrentRates returns live bid/ask for one or more instruments.
func (c *Client) GetCurrentRates(ctx context.Context, instrumentIDs []int) (broker.Result, error) {
	if len(instrumentIDs) == 0 {
		return nil, apperrors.ValidationField("instrument_ids", "instrument_ids must be an integer or list of integers")
	}
	ids := make([]string, 0, len(instrumentIDs))
	for _, id := range instrumentIDs {
		if id <= 0 {
			return nil, apperrors.ValidationField("instrument_ids", "All instrument IDs must be positive integers")
		}
		ids = append(ids, strconv.Itoa(id))
	}
	return c.get(ctx, "get current rates", "rates/current",
		url.Values{"instrumentIds": {strings.Join(ids, ",")}})
}
