package capital

import "time"

// AccountsResponse is the body of GET /api/v1/accounts.
type AccountsResponse struct {
	Accounts []Account `json:"accounts"`
}

// Account represents a Capital.com financial account.
type Account struct {
	AccountID   string   `json:"accountId"`
	AccountName string   `json:"accountName"`
	Status      string   `json:"status"`
	AccountType string   `json:"accountType"`
	Preferred   bool     `json:"preferred"`
	Currency    string   `json:"currency"`
	Balance     *Balance `json:"balance,omitempty"`
}

// Balance holds the funds of an account.
type Balance struct {
	Balance    float64 `json:"balance"`
	Deposit    float64 `json:"deposit"`
	ProfitLoss float64 `json:"profitLoss"`
	Available  float64 `json:"available"`
}

// MarketDetails is the nested body of GET /api/v1/markets/{epic}.
type MarketDetails struct {
	Instrument   Instrument    `json:"instrument"`
	DealingRules *DealingRules `json:"dealingRules,omitempty"`
	Snapshot     Snapshot      `json:"snapshot"`
}

// Instrument is the static part of a market.
type Instrument struct {
	Epic                  string  `json:"epic"`
	Symbol                string  `json:"symbol"`
	Name                  string  `json:"name"`
	Type                  string  `json:"type"`
	Currency              string  `json:"currency"`
	LotSize               float64 `json:"lotSize"`
	Expiry                string  `json:"expiry"`
	GuaranteedStopAllowed bool    `json:"guaranteedStopAllowed"`
}

// DealingRules carries size limits.
type DealingRules struct {
	MinDealSize RuleValue `json:"minDealSize"`
	MaxDealSize RuleValue `json:"maxDealSize"`
}

// RuleValue is a unit/value pair from dealing rules.
type RuleValue struct {
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

// Snapshot is the live part of a market.
type Snapshot struct {
	MarketStatus     string  `json:"marketStatus"`
	Bid              float64 `json:"bid"`
	Offer            float64 `json:"offer"`
	High             float64 `json:"high"`
	Low              float64 `json:"low"`
	NetChange        float64 `json:"netChange"`
	PercentageChange float64 `json:"percentageChange"`
	UpdateTime       string  `json:"updateTime"`
}

// Market is the flat market record returned to callers.
type Market struct {
	Epic             string  `json:"epic"`
	InstrumentName   string  `json:"instrumentName"`
	InstrumentType   string  `json:"instrumentType"`
	Currency         string  `json:"currency,omitempty"`
	LotSize          float64 `json:"lotSize,omitempty"`
	Expiry           string  `json:"expiry,omitempty"`
	MarketStatus     string  `json:"marketStatus"`
	Bid              float64 `json:"bid"`
	Offer            float64 `json:"offer"`
	High             float64 `json:"high"`
	Low              float64 `json:"low"`
	NetChange        float64 `json:"netChange"`
	PercentageChange float64 `json:"percentageChange"`
	UpdateTime       string  `json:"updateTime,omitempty"`
	MinDealSize      float64 `json:"minDealSize,omitempty"`
	MaxDealSize      float64 `json:"maxDealSize,omitempty"`
}

// PositionsResponse is the body of GET /api/v1/positions.
type PositionsResponse struct {
	Positions []PositionEntry `json:"positions"`
}

// PositionEntry pairs a position with its market.
type PositionEntry struct {
	Position Position       `json:"position"`
	Market   PositionMarket `json:"market"`
}

// Position is an open position.
type Position struct {
	DealID         string   `json:"dealId"`
	DealReference  string   `json:"dealReference"`
	Direction      string   `json:"direction"`
	Size           float64  `json:"size"`
	Level          float64  `json:"level"`
	Currency       string   `json:"currency"`
	Leverage       float64  `json:"leverage"`
	UPL            float64  `json:"upl"`
	StopLevel      *float64 `json:"stopLevel,omitempty"`
	ProfitLevel    *float64 `json:"profitLevel,omitempty"`
	GuaranteedStop bool     `json:"guaranteedStop"`
	TrailingStop   bool     `json:"trailingStop"`
	CreatedDate    string   `json:"createdDate"`
}

// PositionMarket is the market summary attached to a position.
type PositionMarket struct {
	Epic           string  `json:"epic"`
	InstrumentName string  `json:"instrumentName"`
	Bid            float64 `json:"bid"`
	Offer          float64 `json:"offer"`
	MarketStatus   string  `json:"marketStatus"`
}

// PricesResponse is the body of GET /api/v1/prices/{epic}.
type PricesResponse struct {
	Prices []PriceBar `json:"prices"`
}

// PriceBar is one OHLC bar. Bid and Ask are filled by some API versions
// at the top level instead of inside ClosePrice.
type PriceBar struct {
	SnapshotTime string    `json:"snapshotTime"`
	OpenPrice    PricePair `json:"openPrice"`
	ClosePrice   PricePair `json:"closePrice"`
	HighPrice    PricePair `json:"highPrice"`
	LowPrice     PricePair `json:"lowPrice"`
	Bid          *float64  `json:"bid,omitempty"`
	Ask          *float64  `json:"ask,omitempty"`
}

// PricePair is a bid/ask quote.
type PricePair struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// PositionRequest describes a new position.
type PositionRequest struct {
	Epic           string
	Direction      string
	Size           float64
	GuaranteedStop bool
	TrailingStop   bool
	StopLevel      *float64
	StopDistance   *float64
	StopAmount     *float64
	ProfitLevel    *float64
	ProfitDistance *float64
	ProfitAmount   *float64
}

// PositionUpdate describes changes to an open position. Nil fields are left
// unchanged.
type PositionUpdate struct {
	GuaranteedStop bool
	TrailingStop   bool
	StopLevel      *float64
	StopDistance   *float64
	StopAmount     *float64
	ProfitLevel    *float64
	ProfitDistance *float64
	ProfitAmount   *float64
}

// WorkingOrderRequest describes a pending stop or limit order.
type WorkingOrderRequest struct {
	Epic        string
	Direction   string
	Size        float64
	Level       float64
	Type        string
	TimeInForce string
	GoodTill    string
	StopLevel   *float64
	ProfitLevel *float64
}

// WorkingOrderUpdate changes the levels of a pending order.
type WorkingOrderUpdate struct {
	Level       *float64
	GoodTill    string
	StopLevel   *float64
	ProfitLevel *float64
}

// ActivityQuery filters GET /api/v1/history/activity.
type ActivityQuery struct {
	From       string
	To         string
	LastPeriod int
	Detailed   bool
	DealID     string
	Filter     string
}

// TransactionQuery filters GET /api/v1/history/transactions.
type TransactionQuery struct {
	From       string
	To         string
	LastPeriod int
	Type       string
}

// Margin is the estimate attached to created positions.
type Margin struct {
	Instrument     string  `json:"instrument"`
	Direction      string  `json:"direction"`
	Size           float64 `json:"size"`
	Leverage       float64 `json:"leverage"`
	Price          float64 `json:"price"`
	MarginRequired float64 `json:"margin_required"`
}

// ServerTime is the body of GET /api/v1/time.
type ServerTime struct {
	ServerTime int64 `json:"serverTime"`
}

// Time converts the epoch milliseconds to a time.
func (s ServerTime) Time() time.Time {
	return time.UnixMilli(s.ServerTime).UTC()
}
