package capital

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "broker_mcp/internal/errors"
)

func TestSearchMarkets_SearchTermWins(t *testing.T) {
	var gotQuery url.Values
	c, _ := newTestClient(t, map[string]http.HandlerFunc{
		"GET /api/v1/markets": func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			writeJSON(w, http.StatusOK, map[string]any{"markets": []any{}})
		},
	})
	require.True(t, c.Authenticate(context.Background()))

	_, err := c.SearchMarkets(context.Background(), "gold", []string{"GOLD", "SILVER"})

	require.NoError(t, err)
	assert.Equal(t, "gold", gotQuery.Get("searchTerm"))
	assert.Empty(t, gotQuery.Get("epics"))
}

func TestGetMarketDetails_Flattens(t *testing.T) {
	c, _ := newTestClient(t, map[string]http.HandlerFunc{
		"GET /api/v1/markets/GOLD": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"instrument":   map[string]any{"epic": "GOLD", "name": "Gold", "type": "COMMODITIES"},
				"dealingRules": map[string]any{"minDealSize": map[string]any{"value": 0.01}},
				"snapshot":     map[string]any{"marketStatus": "TRADEABLE", "bid": 1990.5, "offer": 1991.0},
			})
		},
	})
	require.True(t, c.Authenticate(context.Background()))

	result, err := c.GetMarketDetails(context.Background(), "GOLD")

	require.NoError(t, err)
	assert.Equal(t, "Gold", result["instrumentName"])
	assert.Equal(t, 1990.5, result["bid"])
	assert.Equal(t, 0.01, result["minDealSize"])
	assert.NotContains(t, result, "snapshot")
}

func TestGetPrices_DefaultsAndValidation(t *testing.T) {
	var gotQuery url.Values
	c, fb := newTestClient(t, map[string]http.HandlerFunc{
		"GET /api/v1/prices/GOLD": func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			writeJSON(w, http.StatusOK, map[string]any{"prices": []any{}})
		},
	})
	require.True(t, c.Authenticate(context.Background()))

	_, err := c.GetPrices(context.Background(), "GOLD", PriceQuery{})
	require.NoError(t, err)
	assert.Equal(t, "MINUTE", gotQuery.Get("resolution"))
	assert.Equal(t, "10", gotQuery.Get("max"))

	_, err = c.GetPrices(context.Background(), "GOLD", PriceQuery{Resolution: "SECOND"})
	require.Error(t, err)
	assert.Equal(t, "Invalid resolution: 'SECOND'", err.Error())

	_, err = c.GetPrices(context.Background(), "GOLD", PriceQuery{Max: 1001})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 1, fb.count("GET /api/v1/prices/GOLD"))
}

func TestGetHistoricalPrices_RejectsReversedRange(t *testing.T) {
	c, fb := newTestClient(t, nil)
	require.True(t, c.Authenticate(context.Background()))

	_, err := c.GetHistoricalPrices(context.Background(), "GOLD", PriceQuery{
		Resolution: "HOUR",
		From:       "2024-01-02T00:00:00",
		To:         "2024-01-01T00:00:00",
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Zero(t, fb.count("GET /api/v1/prices/GOLD"))
}

func TestGetClientSentiment(t *testing.T) {
	var gotQuery url.Values
	c, _ := newTestClient(t, map[string]http.HandlerFunc{
		"GET /api/v1/clientsentiment": func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query()
			writeJSON(w, http.StatusOK, map[string]any{
				"clientSentiments": []any{
					map[string]any{"marketId": "GOLD", "longPositionPercentage": 65.0},
				},
			})
		},
	})
	require.True(t, c.Authenticate(context.Background()))

	result, err := c.GetClientSentiment(context.Background(), []string{"GOLD", "OIL"})

	require.NoError(t, err)
	assert.Equal(t, "GOLD,OIL", gotQuery.Get("marketIds"))
	entry := result["clientSentiments"].([]any)[0].(map[string]any)
	assert.Equal(t, SentimentModeratelyBullish, entry["_interpretation"])

	_, err = c.GetClientSentiment(context.Background(), nil)
	assert.True(t, apperrors.IsValidation(err))
}
