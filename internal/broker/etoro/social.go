package etoro

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"broker_mcp/internal/broker"
	apperrors "broker_mcp/internal/errors"
	"broker_mcp/internal/validation"
)

const (
	defaultPeriod   = "CurrMonth"
	defaultPageSize = 10
	defaultFeedTake = 10
	maxFeedTake     = 100
)

func validPeriod(period string) error {
	for _, p := range Periods {
		if p == period {
			return nil
		}
	}
	return apperrors.ValidationField("period", fmt.Sprintf("Invalid period: '%s'", period))
}

// SearchUsers lists popular investors ranked over a period.
func (c *Client) SearchUsers(ctx context.Context, s UserSearch) (broker.Result, error) {
	if s.Period == "" {
		s.Period = defaultPeriod
	}
	if s.PageSize <= 0 {
		s.PageSize = defaultPageSize
	}
	if s.Page <= 0 {
		s.Page = 1
	}
	if err := validPeriod(s.Period); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("period", s.Period)
	query.Set("page", strconv.Itoa(s.Page))
	query.Set("pageSize", strconv.Itoa(s.PageSize))
	return c.get(ctx, "search users", "user-info/people/search", query)
}

// GetUserProfile returns the public profile of username.
func (c *Client) GetUserProfile(ctx context.Context, username string) (broker.Result, error) {
	if err := validation.SafeString("username", username); err != nil {
		return nil, err
	}
	return c.get(ctx, "get user profile", "user-info/people", url.Values{"usernames": {username}})
}

// GetUserPerformance returns monthly and yearly gains of username.
func (c *Client) GetUserPerformance(ctx context.Context, username string) (broker.Result, error) {
	if err := validation.SafeString("username", username); err != nil {
		return nil, err
	}
	return c.get(ctx, "get user performance", "user-info/people/"+url.PathEscape(username)+"/gain", nil)
}

// GetUserTradeInfo returns trading statistics of username over period.
func (c *Client) GetUserTradeInfo(ctx context.Context, username, period string) (broker.Result, error) {
	if err := validation.SafeString("username", username); err != nil {
		return nil, err
	}
	if period == "" {
		period = defaultPeriod
	}
	if err := validPeriod(period); err != nil {
		return nil, err
	}
	return c.get(ctx, "get user trade info", "user-info/people/"+url.PathEscape(username)+"/tradeinfo",
		url.Values{"period": {period}})
}

// GetInstrumentFeed returns discussion posts about a market.
func (c *Client) GetInstrumentFeed(ctx context.Context, marketID string, take int) (broker.Result, error) {
	if err := validation.SafeString("market_id", marketID); err != nil {
		return nil, err
	}
	query, err := feedQuery(take)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, "get instrument feed", "feeds/instrument/"+url.PathEscape(marketID), query)
}

// GetUserFeed returns posts by a user id.
func (c *Client) GetUserFeed(ctx context.Context, userID string, take int) (broker.Result, error) {
	if err := validation.SafeString("user_id", userID); err != nil {
		return nil, err
	}
	query, err := feedQuery(take)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, "get user feed", "feeds/user/"+url.PathEscape(userID), query)
}

func feedQuery(take int) (url.Values, error) {
	if take == 0 {
		take = defaultFeedTake
	}
	if take < 0 || take > maxFeedTake {
		return nil, apperrors.ValidationField("take", fmt.Sprintf("take must be between 1 and %d", maxFeedTake))
	}
	return url.Values{"take": {strconv.Itoa(take)}}, nil
}
