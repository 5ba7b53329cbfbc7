package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"broker_mcp/internal/broker"
	"broker_mcp/internal/broker/capital"
	apperrors "broker_mcp/internal/errors"
	"broker_mcp/internal/validation"
)

// CapitalInstructions is the server description shown to the model.
const CapitalInstructions = `Capital.com MCP Server

Best practices:
- Authenticate before using other tools
- Use search_markets to find available markets
- Check account information before creating positions
- Always specify stop loss and take profit levels when creating positions
- Monitor open positions regularly`

func resolutionProp() mcp.PropertyOption {
	return mcp.Enum(validation.Resolutions...)
}

// Register declares every Capital.com tool on s.
func (t *CapitalTools) Register(s *server.MCPServer) {
	s.AddTools(t.ServerTools()...)
}

// ServerTools returns the tool declarations bound to their handlers.
func (t *CapitalTools) ServerTools() []server.ServerTool {
	noArgs := func(fn func(context.Context, Context) broker.Result) handlerFunc {
		return func(ctx context.Context, tc Context, _ Args) broker.Result { return fn(ctx, tc) }
	}

	return []server.ServerTool{
		{
			Tool: mcp.NewTool("authenticate",
				mcp.WithDescription("Authenticate with the Capital.com API using the configured credentials."),
			),
			Handler: t.bind("authenticate", noArgs(t.Authenticate)),
		},
		{
			Tool: mcp.NewTool("get_account_info",
				mcp.WithDescription("Get account information including balance, margin and profit/loss."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_account_info", noArgs(t.GetAccountInfo)),
		},
		{
			Tool: mcp.NewTool("search_markets",
				mcp.WithDescription("Search for markets by text, or look up explicit epics."),
				mcp.WithString("query", mcp.Description("Search query (e.g., 'EURUSD', 'Apple', 'Gold')")),
				mcp.WithString("epics", mcp.Description("Comma-separated epics, used when query is empty")),
				mcp.WithNumber("limit", mcp.Description("Maximum number of results to return"), mcp.DefaultNumber(defaultSearchLimit)),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("search_markets", t.searchMarkets),
		},
		{
			Tool: mcp.NewTool("get_market_details",
				mcp.WithDescription("Get dealing rules and the current snapshot of one market."),
				mcp.WithString("epic", mcp.Required(), mcp.Description("The epic identifier for the instrument")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_market_details", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.GetMarketDetails(ctx, tc, a.String("epic"))
			}),
		},
		{
			Tool: mcp.NewTool("get_prices",
				mcp.WithDescription("Get recent price bars for an instrument."),
				mcp.WithString("epic", mcp.Required(), mcp.Description("The epic identifier for the instrument")),
				mcp.WithString("resolution", mcp.Description("Time resolution"), mcp.DefaultString("MINUTE"), resolutionProp()),
				mcp.WithNumber("max_bars", mcp.Description("Number of price points to retrieve"), mcp.DefaultNumber(10)),
				mcp.WithString("from_date", mcp.Description("Start date (YYYY-MM-DDTHH:MM:SS)")),
				mcp.WithString("to_date", mcp.Description("End date (YYYY-MM-DDTHH:MM:SS)")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_prices", func(ctx context.Context, tc Context, a Args) broker.Result {
				q, err := priceQuery(a)
				if err != nil {
					return invalid(tc, err)
				}
				return t.GetPrices(ctx, tc, a.String("epic"), q)
			}),
		},
		{
			Tool: mcp.NewTool("get_historical_prices",
				mcp.WithDescription("Get price bars between two dates with a custom resolution."),
				mcp.WithString("epic", mcp.Required(), mcp.Description("The epic identifier for the instrument")),
				mcp.WithString("from_date", mcp.Required(), mcp.Description("Start date (YYYY-MM-DDTHH:MM:SS)")),
				mcp.WithString("to_date", mcp.Required(), mcp.Description("End date (YYYY-MM-DDTHH:MM:SS)")),
				mcp.WithString("resolution", mcp.Description("Time resolution"), mcp.DefaultString("HOUR"), resolutionProp()),
				mcp.WithNumber("max_bars", mcp.Description("Maximum number of bars"), mcp.DefaultNumber(100)),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_historical_prices", func(ctx context.Context, tc Context, a Args) broker.Result {
				q, err := priceQuery(a)
				if err != nil {
					return invalid(tc, err)
				}
				if q.Resolution == "" {
					q.Resolution = "HOUR"
				}
				if _, ok := a["max_bars"]; !ok {
					q.Max = 100
				}
				return t.GetHistoricalPrices(ctx, tc, a.String("epic"), q)
			}),
		},
		{
			Tool: mcp.NewTool("get_positions",
				mcp.WithDescription("List all open positions."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_positions", noArgs(t.GetPositions)),
		},
		{
			Tool: mcp.NewTool("get_position",
				mcp.WithDescription("Get one open position by deal ID."),
				mcp.WithString("deal_id", mcp.Required(), mcp.Description("The deal ID of the position")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_position", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.GetPosition(ctx, tc, a.String("deal_id"))
			}),
		},
		{
			Tool: mcp.NewTool("create_position",
				mcp.WithDescription("Open a new trading position. The result carries an estimated margin."),
				mcp.WithString("epic", mcp.Required(), mcp.Description("The epic identifier for the instrument")),
				mcp.WithString("direction", mcp.Required(), mcp.Description("Trade direction"), mcp.Enum("BUY", "SELL")),
				mcp.WithNumber("size", mcp.Required(), mcp.Description("Position size")),
				mcp.WithNumber("stop_level", mcp.Description("Stop loss level")),
				mcp.WithNumber("stop_distance", mcp.Description("Stop loss distance from the opening price")),
				mcp.WithNumber("stop_amount", mcp.Description("Stop loss as an amount of money")),
				mcp.WithNumber("profit_level", mcp.Description("Take profit level")),
				mcp.WithNumber("profit_distance", mcp.Description("Take profit distance from the opening price")),
				mcp.WithNumber("profit_amount", mcp.Description("Take profit as an amount of money")),
				mcp.WithBoolean("guaranteed_stop", mcp.Description("Use a guaranteed stop"), mcp.DefaultBool(false)),
				mcp.WithBoolean("trailing_stop", mcp.Description("Use a trailing stop (needs stop_distance)"), mcp.DefaultBool(false)),
				mcp.WithDestructiveHintAnnotation(false),
			),
			Handler: t.bind("create_position", t.createPosition),
		},
		{
			Tool: mcp.NewTool("close_position",
				mcp.WithDescription("Close an open trading position by its deal ID."),
				mcp.WithString("deal_id", mcp.Required(), mcp.Description("The deal ID of the position to close")),
				mcp.WithDestructiveHintAnnotation(true),
			),
			Handler: t.bind("close_position", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.ClosePosition(ctx, tc, a.String("deal_id"))
			}),
		},
		{
			Tool: mcp.NewTool("update_position",
				mcp.WithDescription("Update the stop loss and/or take profit of an open position."),
				mcp.WithString("deal_id", mcp.Required(), mcp.Description("The deal ID of the position to update")),
				mcp.WithNumber("stop_level", mcp.Description("New stop loss level")),
				mcp.WithNumber("stop_distance", mcp.Description("New stop loss distance")),
				mcp.WithNumber("stop_amount", mcp.Description("New stop loss amount")),
				mcp.WithNumber("profit_level", mcp.Description("New take profit level")),
				mcp.WithNumber("profit_distance", mcp.Description("New take profit distance")),
				mcp.WithNumber("profit_amount", mcp.Description("New take profit amount")),
				mcp.WithBoolean("guaranteed_stop", mcp.Description("Switch to a guaranteed stop")),
				mcp.WithBoolean("trailing_stop", mcp.Description("Switch to a trailing stop")),
			),
			Handler: t.bind("update_position", t.updatePosition),
		},
		{
			Tool: mcp.NewTool("confirm_deal",
				mcp.WithDescription("Resolve a deal reference returned by create_position into the deal status."),
				mcp.WithString("deal_reference", mcp.Required(), mcp.Description("The dealReference of an order")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("confirm_deal", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.ConfirmDeal(ctx, tc, a.String("deal_reference"))
			}),
		},
		{
			Tool: mcp.NewTool("calculate_margin",
				mcp.WithDescription("Estimate the margin a position would require at the current price."),
				mcp.WithString("epic", mcp.Required(), mcp.Description("The epic identifier for the instrument")),
				mcp.WithString("direction", mcp.Required(), mcp.Description("Trade direction"), mcp.Enum("BUY", "SELL")),
				mcp.WithNumber("size", mcp.Required(), mcp.Description("Position size")),
				mcp.WithNumber("leverage", mcp.Description("Leverage"), mcp.DefaultNumber(capital.DefaultLeverage)),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("calculate_margin", func(ctx context.Context, tc Context, a Args) broker.Result {
				p := parser{args: a}
				size := p.floatOr("size", 0)
				leverage := p.floatOr("leverage", capital.DefaultLeverage)
				if p.err != nil {
					return invalid(tc, p.err)
				}
				return t.CalculateMargin(ctx, tc, a.String("epic"), a.String("direction"), size, leverage)
			}),
		},
		{
			Tool: mcp.NewTool("get_working_orders",
				mcp.WithDescription("List pending stop and limit orders."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_working_orders", noArgs(t.GetWorkingOrders)),
		},
		{
			Tool: mcp.NewTool("create_working_order",
				mcp.WithDescription("Place a stop or limit order that opens a position at a level."),
				mcp.WithString("epic", mcp.Required(), mcp.Description("The epic identifier for the instrument")),
				mcp.WithString("direction", mcp.Required(), mcp.Description("Trade direction"), mcp.Enum("BUY", "SELL")),
				mcp.WithNumber("size", mcp.Required(), mcp.Description("Order size")),
				mcp.WithNumber("level", mcp.Required(), mcp.Description("Price level the order triggers at")),
				mcp.WithString("order_type", mcp.Description("Order type"), mcp.DefaultString(capital.DefaultOrderType), mcp.Enum("STOP", "LIMIT")),
				mcp.WithString("time_in_force", mcp.Description("Order lifetime"), mcp.DefaultString(capital.DefaultTimeInForce),
					mcp.Enum("GOOD_TILL_CANCELLED", "GOOD_TILL_DATE")),
				mcp.WithString("good_till_date", mcp.Description("Expiry (YYYY-MM-DDTHH:MM:SS), required with GOOD_TILL_DATE")),
				mcp.WithNumber("stop_level", mcp.Description("Stop loss level")),
				mcp.WithNumber("profit_level", mcp.Description("Take profit level")),
			),
			Handler: t.bind("create_working_order", t.createWorkingOrder),
		},
		{
			Tool: mcp.NewTool("update_working_order",
				mcp.WithDescription("Change the level, expiry or stops of a pending order."),
				mcp.WithString("order_id", mcp.Required(), mcp.Description("The working order ID")),
				mcp.WithNumber("level", mcp.Description("New trigger level")),
				mcp.WithString("good_till_date", mcp.Description("New expiry (YYYY-MM-DDTHH:MM:SS)")),
				mcp.WithNumber("stop_level", mcp.Description("New stop loss level")),
				mcp.WithNumber("profit_level", mcp.Description("New take profit level")),
			),
			Handler: t.bind("update_working_order", func(ctx context.Context, tc Context, a Args) broker.Result {
				p := parser{args: a}
				update := capital.WorkingOrderUpdate{
					Level:       p.float("level"),
					GoodTill:    a.String("good_till_date"),
					StopLevel:   p.float("stop_level"),
					ProfitLevel: p.float("profit_level"),
				}
				if p.err != nil {
					return invalid(tc, p.err)
				}
				return t.UpdateWorkingOrder(ctx, tc, a.String("order_id"), update)
			}),
		},
		{
			Tool: mcp.NewTool("delete_working_order",
				mcp.WithDescription("Cancel a pending order."),
				mcp.WithString("order_id", mcp.Required(), mcp.Description("The working order ID")),
				mcp.WithDestructiveHintAnnotation(true),
			),
			Handler: t.bind("delete_working_order", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.DeleteWorkingOrder(ctx, tc, a.String("order_id"))
			}),
		},
		{
			Tool: mcp.NewTool("get_watchlists",
				mcp.WithDescription("Get all saved watchlists."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_watchlists", noArgs(t.GetWatchlists)),
		},
		{
			Tool: mcp.NewTool("get_watchlist",
				mcp.WithDescription("Get the markets of one watchlist."),
				mcp.WithString("watchlist_id", mcp.Required(), mcp.Description("The watchlist ID")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_watchlist", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.GetWatchlist(ctx, tc, a.String("watchlist_id"))
			}),
		},
		{
			Tool: mcp.NewTool("get_session_info",
				mcp.WithDescription("Describe the current session and active account."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_session_info", noArgs(t.GetSessionInfo)),
		},
		{
			Tool: mcp.NewTool("change_active_account",
				mcp.WithDescription("Switch the session to another account."),
				mcp.WithString("account_id", mcp.Required(), mcp.Description("The account to activate")),
			),
			Handler: t.bind("change_active_account", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.ChangeActiveAccount(ctx, tc, a.String("account_id"))
			}),
		},
		{
			Tool: mcp.NewTool("get_account_preferences",
				mcp.WithDescription("Get leverage settings and hedging mode."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_account_preferences", noArgs(t.GetAccountPreferences)),
		},
		{
			Tool: mcp.NewTool("update_account_preferences",
				mcp.WithDescription("Set leverage per instrument type and/or the hedging mode."),
				mcp.WithObject("leverages", mcp.Description("Leverage per instrument type, e.g. {\"SHARES\": 5, \"CURRENCIES\": 30}")),
				mcp.WithBoolean("hedging_mode", mcp.Description("Enable or disable hedging mode")),
			),
			Handler: t.bind("update_account_preferences", func(ctx context.Context, tc Context, a Args) broker.Result {
				leverages, err := leverageMap(a["leverages"])
				if err != nil {
					return invalid(tc, err)
				}
				return t.UpdateAccountPreferences(ctx, tc, leverages, a.OptionalBool("hedging_mode"))
			}),
		},
		{
			Tool: mcp.NewTool("top_up_demo_account",
				mcp.WithDescription("Add funds to a demo account."),
				mcp.WithNumber("amount", mcp.Required(), mcp.Description("Amount to add")),
			),
			Handler: t.bind("top_up_demo_account", func(ctx context.Context, tc Context, a Args) broker.Result {
				amount, err := a.FloatOr("amount", 0)
				if err != nil {
					return invalid(tc, err)
				}
				return t.TopUpDemoAccount(ctx, tc, amount)
			}),
		},
		{
			Tool: mcp.NewTool("get_market_navigation",
				mcp.WithDescription("Browse the market category tree. Without node_id the top level is returned."),
				mcp.WithString("node_id", mcp.Description("Category node ID")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_market_navigation", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.GetMarketNavigation(ctx, tc, a.String("node_id"))
			}),
		},
		{
			Tool: mcp.NewTool("get_activity_history",
				mcp.WithDescription("List trading activity. Ranges are limited to 24 hours."),
				mcp.WithString("from_date", mcp.Description("Start date (YYYY-MM-DDTHH:MM:SS)")),
				mcp.WithString("to_date", mcp.Description("End date (YYYY-MM-DDTHH:MM:SS)")),
				mcp.WithNumber("last_period", mcp.Description("Seconds to look back, at most 86400")),
				mcp.WithBoolean("detailed", mcp.Description("Include order details"), mcp.DefaultBool(false)),
				mcp.WithString("deal_id", mcp.Description("Only activity for this deal")),
				mcp.WithString("filter", mcp.Description("FIQL filter, e.g. source!=DEALER;type!=POSITION")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_activity_history", func(ctx context.Context, tc Context, a Args) broker.Result {
				lastPeriod, err := a.IntOr("last_period", 0)
				if err != nil {
					return invalid(tc, err)
				}
				return t.GetActivityHistory(ctx, tc, capital.ActivityQuery{
					From:       a.String("from_date"),
					To:         a.String("to_date"),
					LastPeriod: lastPeriod,
					Detailed:   a.Bool("detailed"),
					DealID:     a.String("deal_id"),
					Filter:     a.String("filter"),
				})
			}),
		},
		{
			Tool: mcp.NewTool("get_transaction_history",
				mcp.WithDescription("List deposits, withdrawals and trade settlements. Ranges are limited to 24 hours."),
				mcp.WithString("from_date", mcp.Description("Start date (YYYY-MM-DDTHH:MM:SS)")),
				mcp.WithString("to_date", mcp.Description("End date (YYYY-MM-DDTHH:MM:SS)")),
				mcp.WithNumber("last_period", mcp.Description("Seconds to look back, at most 86400")),
				mcp.WithString("transaction_type", mcp.Description("Transaction type, e.g. DEPOSIT, WITHDRAWAL, TRADE")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_transaction_history", func(ctx context.Context, tc Context, a Args) broker.Result {
				lastPeriod, err := a.IntOr("last_period", 0)
				if err != nil {
					return invalid(tc, err)
				}
				return t.GetTransactionHistory(ctx, tc, capital.TransactionQuery{
					From:       a.String("from_date"),
					To:         a.String("to_date"),
					LastPeriod: lastPeriod,
					Type:       a.String("transaction_type"),
				})
			}),
		},
		{
			Tool: mcp.NewTool("get_client_sentiment",
				mcp.WithDescription("Get the share of clients long and short on markets, with an interpretation."),
				mcp.WithString("market_ids", mcp.Required(), mcp.Description("Comma-separated market IDs")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_client_sentiment", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.GetClientSentiment(ctx, tc, a.Strings("market_ids"))
			}),
		},
		{
			Tool: mcp.NewTool("ping",
				mcp.WithDescription("Keep the trading session alive."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("ping", noArgs(t.Ping)),
		},
		{
			Tool: mcp.NewTool("get_server_time",
				mcp.WithDescription("Get the broker's server time."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_server_time", noArgs(t.GetServerTime)),
		},
	}
}

func (t *CapitalTools) searchMarkets(ctx context.Context, tc Context, a Args) broker.Result {
	limit, err := a.IntOr("limit", defaultSearchLimit)
	if err != nil {
		return invalid(tc, err)
	}
	return t.SearchMarkets(ctx, tc, a.String("query"), a.Strings("epics"), limit)
}

func (t *CapitalTools) createPosition(ctx context.Context, tc Context, a Args) broker.Result {
	p := parser{args: a}
	req := capital.PositionRequest{
		Epic:           a.String("epic"),
		Direction:      a.String("direction"),
		Size:           p.floatOr("size", 0),
		GuaranteedStop: a.Bool("guaranteed_stop"),
		TrailingStop:   a.Bool("trailing_stop"),
		StopLevel:      p.float("stop_level"),
		StopDistance:   p.float("stop_distance"),
		StopAmount:     p.float("stop_amount"),
		ProfitLevel:    p.float("profit_level"),
		ProfitDistance: p.float("profit_distance"),
		ProfitAmount:   p.float("profit_amount"),
	}
	if p.err != nil {
		return invalid(tc, p.err)
	}
	return t.CreatePosition(ctx, tc, req)
}

func (t *CapitalTools) updatePosition(ctx context.Context, tc Context, a Args) broker.Result {
	p := parser{args: a}
	update := capital.PositionUpdate{
		GuaranteedStop: a.Bool("guaranteed_stop"),
		TrailingStop:   a.Bool("trailing_stop"),
		StopLevel:      p.float("stop_level"),
		StopDistance:   p.float("stop_distance"),
		StopAmount:     p.float("stop_amount"),
		ProfitLevel:    p.float("profit_level"),
		ProfitDistance: p.float("profit_distance"),
		ProfitAmount:   p.float("profit_amount"),
	}
	if p.err != nil {
		return invalid(tc, p.err)
	}
	return t.UpdatePosition(ctx, tc, a.String("deal_id"), update)
}

func (t *CapitalTools) createWorkingOrder(ctx context.Context, tc Context, a Args) broker.Result {
	p := parser{args: a}
	req := capital.WorkingOrderRequest{
		Epic:        a.String("epic"),
		Direction:   a.String("direction"),
		Size:        p.floatOr("size", 0),
		Level:       p.floatOr("level", 0),
		Type:        a.StringOr("order_type", capital.DefaultOrderType),
		TimeInForce: a.StringOr("time_in_force", capital.DefaultTimeInForce),
		GoodTill:    a.String("good_till_date"),
		StopLevel:   p.float("stop_level"),
		ProfitLevel: p.float("profit_level"),
	}
	if p.err != nil {
		return invalid(tc, p.err)
	}
	return t.CreateWorkingOrder(ctx, tc, req)
}

func priceQuery(a Args) (capital.PriceQuery, error) {
	maxBars, err := a.IntOr("max_bars", 0)
	if err != nil {
		return capital.PriceQuery{}, err
	}
	return capital.PriceQuery{
		Resolution: a.String("resolution"),
		Max:        maxBars,
		From:       a.String("from_date"),
		To:         a.String("to_date"),
	}, nil
}

// leverageMap converts {"SHARES": 5} into typed leverages.
func leverageMap(v any) (map[string]int, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, apperrors.ValidationField("leverages", "leverages must be an object of instrument type to leverage")
	}
	out := make(map[string]int, len(raw))
	for kind, lev := range raw {
		f, ok := validation.ToFloat(lev)
		if !ok || f != math.Trunc(f) {
			return nil, apperrors.ValidationField("leverages", fmt.Sprintf("%s: leverage must be an integer", kind))
		}
		out[kind] = int(f)
	}
	return out, nil
}
