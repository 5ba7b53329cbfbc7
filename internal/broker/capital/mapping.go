package capital

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"broker_mcp/internal/broker"
	"broker_mcp/internal/validation"
)

// FlattenMarket turns the nested instrument/snapshot body of a market
// details response into a flat Market.
func FlattenMarket(d MarketDetails) Market {
	m := Market{
		Epic:             d.Instrument.Epic,
		InstrumentName:   d.Instrument.Name,
		InstrumentType:   d.Instrument.Type,
		Currency:         d.Instrument.Currency,
		LotSize:          d.Instrument.LotSize,
		Expiry:           d.Instrument.Expiry,
		MarketStatus:     d.Snapshot.MarketStatus,
		Bid:              d.Snapshot.Bid,
		Offer:            d.Snapshot.Offer,
		High:             d.Snapshot.High,
		Low:              d.Snapshot.Low,
		NetChange:        d.Snapshot.NetChange,
		PercentageChange: d.Snapshot.PercentageChange,
		UpdateTime:       d.Snapshot.UpdateTime,
	}
	if d.DealingRules != nil {
		m.MinDealSize = d.DealingRules.MinDealSize.Value
		m.MaxDealSize = d.DealingRules.MaxDealSize.Value
	}
	return m
}

// OppositeDirection returns the direction that closes a position.
func OppositeDirection(direction string) string {
	if direction == "BUY" {
		return "SELL"
	}
	return "BUY"
}

// Sentiment interpretations keyed by long-position share.
const (
	SentimentStronglyBullish   = "Strongly bullish sentiment - high proportion of long positions"
	SentimentModeratelyBullish = "Moderately bullish sentiment"
	SentimentMixed             = "Mixed sentiment - relatively balanced"
	SentimentModeratelyBearish = "Moderately bearish sentiment"
	SentimentStronglyBearish   = "Strongly bearish sentiment - high proportion of short positions"
)

// InterpretSentiment describes a long-position percentage.
func InterpretSentiment(longPct float64) string {
	switch {
	case longPct > 70:
		return SentimentStronglyBullish
	case longPct > 60:
		return SentimentModeratelyBullish
	case longPct > 40:
		return SentimentMixed
	case longPct > 30:
		return SentimentModeratelyBearish
	default:
		return SentimentStronglyBearish
	}
}

// annotateSentiment adds _metadata and a per-market _interpretation.
func annotateSentiment(result broker.Result, requested string) broker.Result {
	sentiments, _ := result["clientSentiments"].([]any)
	result["_metadata"] = map[string]any{
		"requested_markets": requested,
		"total_markets":     len(sentiments),
		"api_note":          "Percentages show proportion of clients holding long vs short positions",
	}
	for _, s := range sentiments {
		entry, ok := s.(map[string]any)
		if !ok {
			continue
		}
		long, _ := entry["longPositionPercentage"].(float64)
		entry["_interpretation"] = InterpretSentiment(long)
	}
	return result
}

// positionPayload builds the JSON body shared by create and update.
func positionPayload(s validation.Stops) map[string]any {
	payload := map[string]any{}
	if s.GuaranteedStop {
		payload["guaranteedStop"] = true
	}
	if s.TrailingStop {
		payload["trailingStop"] = true
	}
	setIf(payload, "stopLevel", s.StopLevel)
	setIf(payload, "stopDistance", s.StopDistance)
	setIf(payload, "stopAmount", s.StopAmount)
	setIf(payload, "profitLevel", s.ProfitLevel)
	setIf(payload, "profitDistance", s.ProfitDistance)
	setIf(payload, "profitAmount", s.ProfitAmount)
	return payload
}

func setIf(m map[string]any, key string, v *float64) {
	if v != nil {
		m[key] = *v
	}
}

func payloadKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stripZone removes a trailing Z or a +hh:mm offset. The history endpoints
// expect YYYY-MM-DDTHH:MM:SS.
func stripZone(date string) string {
	date = strings.TrimSuffix(strings.TrimSpace(date), "Z")
	if i := strings.Index(date, "+"); i >= 0 {
		date = date[:i]
	}
	return date
}

// decodeInto re-decodes a generic result into a typed value.
func decodeInto(result broker.Result, v any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding result: %w", err)
	}
	return nil
}

// toResult converts a typed value into a Result.
func toResult(v any) (broker.Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	var out broker.Result
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return out, nil
}
