package etoro

// PositionRequest opens a position by cash amount.
type PositionRequest struct {
	InstrumentID int
	Direction    string
	Amount       float64
	Leverage     int
	StopLoss     *float64
	TakeProfit   *float64
}

// UnitsRequest opens a market position sized in instrument units.
type UnitsRequest struct {
	InstrumentID   int
	IsBuy          bool
	Units          float64
	Leverage       int
	StopLossRate   *float64
	TakeProfitRate *float64
}

// LimitOrderRequest places an order that opens when the rate is reached.
type LimitOrderRequest struct {
	InstrumentID   int
	IsBuy          bool
	Leverage       int
	Rate           float64
	Amount         float64
	StopLossRate   *float64
	TakeProfitRate *float64
}

// UserSearch filters the people directory.
type UserSearch struct {
	Period   string
	Page     int
	PageSize int
}

// Watchlist item types.
const (
	ItemTypeInstrument = "Instrument"
	ItemTypePerson     = "Person"
)

// WatchlistItem is one entry added to or removed from a watchlist.
type WatchlistItem struct {
	ItemID   int    `json:"ItemId"`
	ItemType string `json:"ItemType"`
}

// Periods accepted by the user statistics endpoints.
var Periods = []string{
	"CurrMonth", "CurrQuarter", "CurrYear", "LastYear", "LastTwoYears",
	"OneMonthAgo", "TwoMonthsAgo", "ThreeMonthsAgo", "SixMonthsAgo", "OneYearAgo",
}
