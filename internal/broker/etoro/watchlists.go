package etoro

import (
	"context"
	"net/http"
	"net/url"

	"broker_mcp/internal/broker"
	apperrors "broker_mcp/internal/errors"
	"broker_mcp/internal/validation"
)

// GetWatchlists lists the user's watchlists.
func (c *Client) GetWatchlists(ctx context.Context) (broker.Result, error) {
	return c.get(ctx, "get watchlists", "watchlists", nil)
}

// CreateWatchlist creates an empty watchlist.
func (c *Client) CreateWatchlist(ctx context.Context, name string) (broker.Result, error) {
	if err := validation.NotEmpty("name", name); err != nil {
		return nil, err
	}
	return c.do(ctx, "create watchlist", broker.Request{
		Method: http.MethodPost,
		Path:   "watchlists",
		Body:   map[string]string{"name": name},
	})
}

// RenameWatchlist changes a watchlist's name.
func (c *Client) RenameWatchlist(ctx context.Context, watchlistID, name string) (broker.Result, error) {
	if err := validation.SafeString("watchlist_id", watchlistID); err != nil {
		return nil, err
	}
	if err := validation.NotEmpty("name", name); err != nil {
		return nil, err
	}
	return c.do(ctx, "rename watchlist", broker.Request{
		Method: http.MethodPut,
		Path:   "watchlists/" + url.PathEscape(watchlistID),
		Body:   map[string]string{"name": name},
	})
}

// DeleteWatchlist removes a watchlist.
func (c *Client) DeleteWatchlist(ctx context.Context, watchlistID string) (broker.Result, error) {
	if err := validation.SafeString("watchlist_id", watchlistID); err != nil {
		return nil, err
	}
	return c.do(ctx, "delete watchlist", broker.Request{
		Method: http.MethodDelete,
		Path:   "watchlists/" + url.PathEscape(watchlistID),
	})
}

// AddWatchlistItems adds instruments to a watchlist.
func (c *Client) AddWatchlistItems(ctx context.Context, watchlistID string, instrumentIDs []int) (broker.Result, error) {
	items, err := watchlistItems(watchlistID, instrumentIDs)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, "add watchlist items", broker.Request{
		Method: http.MethodPost,
		Path:   "watchlists/" + url.PathEscape(watchlistID) + "/items",
		Body:   items,
	})
}

// RemoveWatchlistItems removes instruments from a watchlist.
func (c *Client) RemoveWatchlistItems(ctx context.Context, watchlistID string, instrumentIDs []int) (broker.Result, error) {
	items, err := watchlistItems(watchlistID, instrumentIDs)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, "remove watchlist items", broker.Request{
		Method: http.MethodDelete,
		Path:   "watchlists/" + url.PathEscape(watchlistID) + "/items",
		Body:   items,
	})
}

func watchlistItems(watchlistID string, instrumentIDs []int) ([]WatchlistItem, error) {
	if err := validation.SafeString("watchlist_id", watchlistID); err != nil {
		return nil, err
	}
	if len(instrumentIDs) == 0 {
		return nil, apperrors.ValidationField("instrument_ids", "instrument_ids cannot be empty")
	}
	items := make([]WatchlistItem, 0, len(instrumentIDs))
	for _, id := range instrumentIDs {
		if id <= 0 {
			return nil, apperrors.ValidationField("instrument_ids", "All instrument IDs must be positive integers")
		}
		items = append(items, WatchlistItem{ItemID: id, ItemType: ItemTypeInstrument})
	}
	return items, nil
}
