package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"broker_mcp/internal/broker"
	"broker_mcp/internal/broker/etoro"
)

// EtoroInstructions is the server description shown to the model.
const EtoroInstructions = `eToro MCP Server

Instruments are addressed by integer IDs. Use search_instruments to find
them before trading or requesting rates.`

const (
	idsMessage        = "instrument_ids must be comma-separated integers (e.g., '1001,2045')"
	directionBuySell  = "Trade direction: 'BUY' or 'SELL'"
	instrumentIDHelp  = "Instrument ID (integer, e.g., 1001). Get from search_instruments."
	defaultInstrLimit = 10
)

// Register declares every eToro tool on s.
func (t *EtoroTools) Register(s *server.MCPServer) {
	s.AddTools(t.ServerTools()...)
}

// ServerTools returns the tool declarations bound to their handlers.
func (t *EtoroTools) ServerTools() []server.ServerTool {
	noArgs := func(fn func(context.Context, Context) broker.Result) handlerFunc {
		return func(ctx context.Context, tc Context, _ Args) broker.Result { return fn(ctx, tc) }
	}
	periods := mcp.Enum(etoro.Periods...)

	return []server.ServerTool{
		{
			Tool: mcp.NewTool("search_instruments",
				mcp.WithDescription("Search tradeable instruments. Results include the integer instrument ID needed for trading."),
				mcp.WithString("search_term", mcp.Description("Search query (e.g., 'Apple', 'Bitcoin', 'EUR/USD')")),
				mcp.WithString("category", mcp.Description("Filter by category"),
					mcp.Enum("stocks", "crypto", "currencies", "commodities", "indices")),
				mcp.WithNumber("limit", mcp.Description("Maximum number of results to return"), mcp.DefaultNumber(defaultInstrLimit)),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("search_instruments", func(ctx context.Context, tc Context, a Args) broker.Result {
				limit, err := a.IntOr("limit", defaultInstrLimit)
				if err != nil {
					return invalid(tc, err)
				}
				return t.SearchInstruments(ctx, tc, a.String("search_term"), a.String("category"), limit)
			}),
		},
		{
			Tool: mcp.NewTool("get_account_info",
				mcp.WithDescription("Get account balance, equity and available funds."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_account_info", noArgs(t.GetAccountInfo)),
		},
		{
			Tool: mcp.NewTool("get_portfolio_summary",
				mcp.WithDescription("Get aggregate portfolio figures."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_portfolio_summary", noArgs(t.GetPortfolioSummary)),
		},
		{
			Tool: mcp.NewTool("get_portfolio",
				mcp.WithDescription("Get open positions, pending orders and copied traders."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_portfolio", noArgs(t.GetPortfolio)),
		},
		{
			Tool: mcp.NewTool("get_pnl",
				mcp.WithDescription("Get the portfolio with unrealised profit and loss."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_pnl", noArgs(t.GetPnL)),
		},
		{
			Tool: mcp.NewTool("get_positions",
				mcp.WithDescription("List open positions."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_positions", noArgs(t.GetPositions)),
		},
		{
			Tool: mcp.NewTool("create_position",
				mcp.WithDescription("Open a position for a cash amount. instrument_id must be a positive integer."),
				mcp.WithNumber("instrument_id", mcp.Required(), mcp.Description(instrumentIDHelp)),
				mcp.WithString("direction", mcp.Required(), mcp.Description(directionBuySell), mcp.Enum("BUY", "SELL")),
				mcp.WithNumber("amount", mcp.Required(), mcp.Description("Investment amount in account currency")),
				mcp.WithNumber("leverage", mcp.Description("Leverage multiplier (1, 2, 5, 10, 20, etc.)"), mcp.DefaultNumber(1)),
				mcp.WithNumber("stop_loss", mcp.Description("Stop loss price level")),
				mcp.WithNumber("take_profit", mcp.Description("Take profit price level")),
			),
			Handler: t.bind("create_position", func(ctx context.Context, tc Context, a Args) broker.Result {
				p := parser{args: a}
				req := etoro.PositionRequest{
					InstrumentID: p.intOr("instrument_id", 0),
					Direction:    a.String("direction"),
					Amount:       p.floatOr("amount", 0),
					Leverage:     p.intOr("leverage", 1),
					StopLoss:     p.float("stop_loss"),
					TakeProfit:   p.float("take_profit"),
				}
				if p.err != nil {
					return invalid(tc, p.err)
				}
				return t.CreatePosition(ctx, tc, req)
			}),
		},
		{
			Tool: mcp.NewTool("close_position",
				mcp.WithDescription("Close an open position."),
				mcp.WithString("position_id", mcp.Required(), mcp.Description("Position ID to close (from get_positions)")),
				mcp.WithDestructiveHintAnnotation(true),
			),
			Handler: t.bind("close_position", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.ClosePosition(ctx, tc, a.String("position_id"))
			}),
		},
		{
			Tool: mcp.NewTool("update_position",
				mcp.WithDescription("Change the stop loss and/or take profit of an open position."),
				mcp.WithString("position_id", mcp.Required(), mcp.Description("Position ID to update")),
				mcp.WithNumber("stop_loss", mcp.Description("New stop loss price level")),
				mcp.WithNumber("take_profit", mcp.Description("New take profit price level")),
			),
			Handler: t.bind("update_position", func(ctx context.Context, tc Context, a Args) broker.Result {
				p := parser{args: a}
				stopLoss, takeProfit := p.float("stop_loss"), p.float("take_profit")
				if p.err != nil {
					return invalid(tc, p.err)
				}
				return t.UpdatePosition(ctx, tc, a.String("position_id"), stopLoss, takeProfit)
			}),
		},
		{
			Tool: mcp.NewTool("create_position_by_units",
				mcp.WithDescription("Open a market position sized in instrument units."),
				mcp.WithNumber("instrument_id", mcp.Required(), mcp.Description(instrumentIDHelp)),
				mcp.WithString("direction", mcp.Required(), mcp.Description(directionBuySell), mcp.Enum("BUY", "SELL")),
				mcp.WithNumber("units", mcp.Required(), mcp.Description("Number of units")),
				mcp.WithNumber("leverage", mcp.Description("Leverage multiplier"), mcp.DefaultNumber(1)),
				mcp.WithNumber("stop_loss", mcp.Description("Stop loss rate")),
				mcp.WithNumber("take_profit", mcp.Description("Take profit rate")),
			),
			Handler: t.bind("create_position_by_units", func(ctx context.Context, tc Context, a Args) broker.Result {
				isBuy, env := direction(tc, a)
				if env != nil {
					return env
				}
				p := parser{args: a}
				req := etoro.UnitsRequest{
					InstrumentID:   p.intOr("instrument_id", 0),
					IsBuy:          isBuy,
					Units:          p.floatOr("units", 0),
					Leverage:       p.intOr("leverage", 1),
					StopLossRate:   p.float("stop_loss"),
					TakeProfitRate: p.float("take_profit"),
				}
				if p.err != nil {
					return invalid(tc, p.err)
				}
				return t.CreatePositionByUnits(ctx, tc, req)
			}),
		},
		{
			Tool: mcp.NewTool("place_limit_order",
				mcp.WithDescription("Place an order that opens a position when the rate is reached."),
				mcp.WithNumber("instrument_id", mcp.Required(), mcp.Description(instrumentIDHelp)),
				mcp.WithString("direction", mcp.Required(), mcp.Description(directionBuySell), mcp.Enum("BUY", "SELL")),
				mcp.WithNumber("rate", mcp.Required(), mcp.Description("Trigger rate")),
				mcp.WithNumber("amount", mcp.Required(), mcp.Description("Investment amount")),
				mcp.WithNumber("leverage", mcp.Description("Leverage multiplier"), mcp.DefaultNumber(1)),
				mcp.WithNumber("stop_loss", mcp.Description("Stop loss rate")),
				mcp.WithNumber("take_profit", mcp.Description("Take profit rate")),
			),
			Handler: t.bind("place_limit_order", func(ctx context.Context, tc Context, a Args) broker.Result {
				isBuy, env := direction(tc, a)
				if env != nil {
					return env
				}
				p := parser{args: a}
				req := etoro.LimitOrderRequest{
					InstrumentID:   p.intOr("instrument_id", 0),
					IsBuy:          isBuy,
					Leverage:       p.intOr("leverage", 1),
					Rate:           p.floatOr("rate", 0),
					Amount:         p.floatOr("amount", 0),
					StopLossRate:   p.float("stop_loss"),
					TakeProfitRate: p.float("take_profit"),
				}
				if p.err != nil {
					return invalid(tc, p.err)
				}
				return t.PlaceLimitOrder(ctx, tc, req)
			}),
		},
		{
			Tool: mcp.NewTool("cancel_limit_order",
				mcp.WithDescription("Cancel a pending limit order."),
				mcp.WithString("order_id", mcp.Required(), mcp.Description("Order ID")),
				mcp.WithDestructiveHintAnnotation(true),
			),
			Handler: t.bind("cancel_limit_order", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.CancelLimitOrder(ctx, tc, a.String("order_id"))
			}),
		},
		{
			Tool: mcp.NewTool("get_order_info",
				mcp.WithDescription("Get an order and the positions it opened."),
				mcp.WithString("order_id", mcp.Required(), mcp.Description("Order ID")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_order_info", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.GetOrderInfo(ctx, tc, a.String("order_id"))
			}),
		},
		{
			Tool: mcp.NewTool("get_instrument_metadata",
				mcp.WithDescription("Get spread, trading hours and limits of an instrument."),
				mcp.WithNumber("instrument_id", mcp.Required(), mcp.Description(instrumentIDHelp)),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_instrument_metadata", func(ctx context.Context, tc Context, a Args) broker.Result {
				id, err := a.IntOr("instrument_id", 0)
				if err != nil {
					return invalid(tc, err)
				}
				return t.GetInstrumentMetadata(ctx, tc, id)
			}),
		},
		{
			Tool: mcp.NewTool("get_current_rates",
				mcp.WithDescription("Get current bid/ask prices for one or more instruments."),
				mcp.WithString("instrument_ids", mcp.Required(), mcp.Description("Comma-separated instrument IDs (e.g., '1001' or '1001,2045,3078')")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_current_rates", func(ctx context.Context, tc Context, a Args) broker.Result {
				ids, env := instrumentIDs(tc, a)
				if env != nil {
					return env
				}
				return t.GetCurrentRates(ctx, tc, ids)
			}),
		},
		{
			Tool: mcp.NewTool("get_watchlists",
				mcp.WithDescription("List watchlists."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_watchlists", noArgs(t.GetWatchlists)),
		},
		{
			Tool: mcp.NewTool("create_watchlist",
				mcp.WithDescription("Create an empty watchlist."),
				mcp.WithString("name", mcp.Required(), mcp.Description("Watchlist name")),
			),
			Handler: t.bind("create_watchlist", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.CreateWatchlist(ctx, tc, a.String("name"))
			}),
		},
		{
			Tool: mcp.NewTool("rename_watchlist",
				mcp.WithDescription("Rename a watchlist."),
				mcp.WithString("watchlist_id", mcp.Required(), mcp.Description("Watchlist ID")),
				mcp.WithString("name", mcp.Required(), mcp.Description("New name")),
			),
			Handler: t.bind("rename_watchlist", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.RenameWatchlist(ctx, tc, a.String("watchlist_id"), a.String("name"))
			}),
		},
		{
			Tool: mcp.NewTool("delete_watchlist",
				mcp.WithDescription("Delete a watchlist."),
				mcp.WithString("watchlist_id", mcp.Required(), mcp.Description("Watchlist ID")),
				mcp.WithDestructiveHintAnnotation(true),
			),
			Handler: t.bind("delete_watchlist", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.DeleteWatchlist(ctx, tc, a.String("watchlist_id"))
			}),
		},
		{
			Tool: mcp.NewTool("add_watchlist_items",
				mcp.WithDescription("Add instruments to a watchlist."),
				mcp.WithString("watchlist_id", mcp.Required(), mcp.Description("Watchlist ID")),
				mcp.WithString("instrument_ids", mcp.Required(), mcp.Description("Comma-separated instrument IDs")),
			),
			Handler: t.bind("add_watchlist_items", func(ctx context.Context, tc Context, a Args) broker.Result {
				ids, env := instrumentIDs(tc, a)
				if env != nil {
					return env
				}
				return t.AddWatchlistItems(ctx, tc, a.String("watchlist_id"), ids)
			}),
		},
		{
			Tool: mcp.NewTool("remove_watchlist_items",
				mcp.WithDescription("Remove instruments from a watchlist."),
				mcp.WithString("watchlist_id", mcp.Required(), mcp.Description("Watchlist ID")),
				mcp.WithString("instrument_ids", mcp.Required(), mcp.Description("Comma-separated instrument IDs")),
			),
			Handler: t.bind("remove_watchlist_items", func(ctx context.Context, tc Context, a Args) broker.Result {
				ids, env := instrumentIDs(tc, a)
				if env != nil {
					return env
				}
				return t.RemoveWatchlistItems(ctx, tc, a.String("watchlist_id"), ids)
			}),
		},
		{
			Tool: mcp.NewTool("search_users",
				mcp.WithDescription("List popular investors ranked over a period."),
				mcp.WithString("period", mcp.Description("Ranking period"), mcp.DefaultString("CurrMonth"), periods),
				mcp.WithNumber("page", mcp.Description("Page number"), mcp.DefaultNumber(1)),
				mcp.WithNumber("page_size", mcp.Description("Results per page"), mcp.DefaultNumber(10)),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("search_users", func(ctx context.Context, tc Context, a Args) broker.Result {
				p := parser{args: a}
				s := etoro.UserSearch{
					Period:   a.String("period"),
					Page:     p.intOr("page", 1),
					PageSize: p.intOr("page_size", 10),
				}
				if p.err != nil {
					return invalid(tc, p.err)
				}
				return t.SearchUsers(ctx, tc, s)
			}),
		},
		{
			Tool: mcp.NewTool("get_user_profile",
				mcp.WithDescription("Get the public profile of a user."),
				mcp.WithString("username", mcp.Required(), mcp.Description("eToro username")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_user_profile", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.GetUserProfile(ctx, tc, a.String("username"))
			}),
		},
		{
			Tool: mcp.NewTool("get_user_performance",
				mcp.WithDescription("Get monthly and yearly gains of a user."),
				mcp.WithString("username", mcp.Required(), mcp.Description("eToro username")),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_user_performance", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.GetUserPerformance(ctx, tc, a.String("username"))
			}),
		},
		{
			Tool: mcp.NewTool("get_user_trade_info",
				mcp.WithDescription("Get trading statistics of a user over a period."),
				mcp.WithString("username", mcp.Required(), mcp.Description("eToro username")),
				mcp.WithString("period", mcp.Description("Statistics period"), mcp.DefaultString("CurrMonth"), periods),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_user_trade_info", func(ctx context.Context, tc Context, a Args) broker.Result {
				return t.GetUserTradeInfo(ctx, tc, a.String("username"), a.String("period"))
			}),
		},
		{
			Tool: mcp.NewTool("get_instrument_feed",
				mcp.WithDescription("Get discussion posts about an instrument."),
				mcp.WithString("market_id", mcp.Required(), mcp.Description("Instrument ID")),
				mcp.WithNumber("take", mcp.Description("Number of posts (1-100)"), mcp.DefaultNumber(10)),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_instrument_feed", func(ctx context.Context, tc Context, a Args) broker.Result {
				take, err := a.IntOr("take", 0)
				if err != nil {
					return invalid(tc, err)
				}
				return t.GetInstrumentFeed(ctx, tc, a.String("market_id"), take)
			}),
		},
		{
			Tool: mcp.NewTool("get_user_feed",
				mcp.WithDescription("Get posts written by a user."),
				mcp.WithString("user_id", mcp.Required(), mcp.Description("User ID")),
				mcp.WithNumber("take", mcp.Description("Number of posts (1-100)"), mcp.DefaultNumber(10)),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: t.bind("get_user_feed", func(ctx context.Context, tc Context, a Args) broker.Result {
				take, err := a.IntOr("take", 0)
				if err != nil {
					return invalid(tc, err)
				}
				return t.GetUserFeed(ctx, tc, a.String("user_id"), take)
			}),
		},
	}
}

// direction maps BUY/SELL onto the IsBuy flag of the execution endpoints.
func direction(tc Context, a Args) (bool, broker.Result) {
	switch a.String("direction") {
	case "BUY":
		return true, nil
	case "SELL":
		return false, nil
	}
	return false, invalid(tc, directionError())
}

func instrumentIDs(tc Context, a Args) ([]int, broker.Result) {
	ids, err := a.Ints("instrument_ids", idsMessage)
	if err != nil {
		return nil, invalid(tc, err)
	}
	return ids, nil
}
