package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"broker_mcp/internal/broker/capital"
)

func dealCreated(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"dealReference": "o_123"})
}

func goldPrices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"prices": []map[string]any{
			{"closePrice": map[string]any{"bid": 1990.0, "ask": 2000.0}},
		},
	})
}

func TestCreatePosition_AuthenticatesThenSendsOneOrder(t *testing.T) {
	tools, up := newCapitalTools(t, map[string]http.HandlerFunc{
		"POST /api/v1/positions":   dealCreated,
		"GET /api/v1/prices/GOLD": goldPrices,
	})
	tc := &recordingContext{}

	result := tools.CreatePosition(context.Background(), tc, capital.PositionRequest{
		Epic: "GOLD", Direction: "SELL", Size: 0.02,
	})

	require.False(t, result.IsError(), "unexpected error: %v", result)
	assert.Equal(t, 1, up.count("POST /api/v1/session"))
	assert.Equal(t, 1, up.count("POST /api/v1/positions"))
	assert.Equal(t, 0.02, up.lastBody("POST /api/v1/positions")["size"])
	assert.Equal(t, "SELL", up.lastBody("POST /api/v1/positions")["direction"])
	assert.Equal(t, "o_123", result["dealReference"])

	margin, ok := result["margin_information"].(*capital.Margin)
	require.True(t, ok)
	assert.Equal(t, 1990.0, margin.Price)
	assert.InDelta(t, 1.99, margin.MarginRequired, 1e-9)
	assert.Contains(t, tc.infos, "Not authenticated yet, attempting authentication")
}

func TestCreatePosition_MarginFailureIsNotFatal(t *testing.T) {
	tools, _ := newCapitalTools(t, map[string]http.HandlerFunc{
		"POST /api/v1/positions": dealCreated,
		"GET /api/v1/prices/GOLD": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"errorCode": "boom"})
		},
	})

	result := tools.CreatePosition(context.Background(), &recordingContext{}, capital.PositionRequest{
		Epic: "GOLD", Direction: "BUY", Size: 1,
	})

	assert.False(t, result.IsError())
	assert.Equal(t, "o_123", result["dealReference"])
	assert.NotContains(t, result, "margin_information")
}

func TestCreatePosition_LocalValidation(t *testing.T) {
	tests := []struct {
		name string
		req  capital.PositionRequest
		want string
	}{
		{"empty epic", capital.PositionRequest{Direction: "BUY", Size: 1}, "Epic identifier cannot be empty"},
		{"bad direction", capital.PositionRequest{Epic: "GOLD", Direction: "buy", Size: 1}, "Direction must be either 'BUY' or 'SELL'"},
		{"zero size", capital.PositionRequest{Epic: "GOLD", Direction: "BUY"}, "Size must be greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tools, up := newCapitalTools(t, nil)
			tc := &recordingContext{}

			result := tools.CreatePosition(context.Background(), tc, tt.req)

			assert.Equal(t, tt.want, result["error"])
			assert.Equal(t, []string{tt.want}, tc.errors)
			assert.Zero(t, up.total())
		})
	}
}

func TestUpdatePosition_NoFieldsMakesNoCalls(t *testing.T) {
	tools, up := newCapitalTools(t, nil)
	tc := &recordingContext{}

	result := tools.UpdatePosition(context.Background(), tc, "D-1", capital.PositionUpdate{})

	assert.Equal(t, "At least one of stop_level or profit_level must be provided", result["error"])
	assert.Zero(t, up.total(), "no login and no update request")
	assert.Len(t, tc.errors, 1)
}

func TestUpdatePosition_Sends(t *testing.T) {
	tools, up := newCapitalTools(t, map[string]http.HandlerFunc{
		"PUT /api/v1/positions/D-1": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"dealReference": "p_1"})
		},
	})

	result := tools.UpdatePosition(context.Background(), &recordingContext{}, "D-1", capital.PositionUpdate{ProfitLevel: fp(2100)})

	require.False(t, result.IsError(), "unexpected error: %v", result)
	assert.Equal(t, 2100.0, up.lastBody("PUT /api/v1/positions/D-1")["profitLevel"])
}

func TestGetPositions_UpstreamErrorEnvelope(t *testing.T) {
	tools, _ := newCapitalTools(t, map[string]http.HandlerFunc{
		"GET /api/v1/positions": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"errorCode": "error.internal"})
		},
	})
	tc := &recordingContext{}

	result := tools.GetPositions(context.Background(), tc)

	require.True(t, result.IsError())
	assert.Equal(t, "Failed to get positions: 500", result["error"])
	assert.Equal(t, 500, result["status_code"])
	assert.Contains(t, result["details"], "error.internal")
	require.Len(t, tc.errors, 1)
	assert.Contains(t, tc.errors[0], "500")
}

func TestEnsureAuthenticated_ConcurrentFirstCallsLogInOnce(t *testing.T) {
	tools, up := newCapitalTools(t, map[string]http.HandlerFunc{
		"GET /api/v1/positions": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"positions": []any{}})
		},
	})
	tc := &recordingContext{}

	const workers = 6
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := tools.GetPositions(context.Background(), tc)
			assert.False(t, result.IsError(), "unexpected error: %v", result)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, up.count("POST /api/v1/session"))
	assert.Equal(t, workers, up.count("GET /api/v1/positions"))
}

func TestEnsureAuthenticated_LoginRejected(t *testing.T) {
	tools, up := newCapitalTools(t, map[string]http.HandlerFunc{
		"POST /api/v1/session": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"errorCode": "error.invalid.details"})
		},
	})
	tc := &recordingContext{}

	result := tools.GetAccountInfo(context.Background(), tc)

	assert.Equal(t, "Authentication required", result["error"])
	assert.Equal(t, "Authentication failed: 401", result["details"])
	assert.Zero(t, up.count("GET /api/v1/accounts"))
	assert.Equal(t, []string{"Authentication required. Please authenticate first."}, tc.errors)
}

func TestAuthenticateTool(t *testing.T) {
	tools, _ := newCapitalTools(t, nil)
	tc := &recordingContext{}

	result := tools.Authenticate(context.Background(), tc)

	assert.Equal(t, true, result["success"])
	assert.Equal(t, "ACC-1", result["account_id"])
	assert.Equal(t, []string{"Successfully authenticated with Capital.com API"}, tc.infos)
}

func TestSearchMarkets_TruncatesToLimit(t *testing.T) {
	tools, _ := newCapitalTools(t, map[string]http.HandlerFunc{
		"GET /api/v1/markets": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"markets": []map[string]any{{"epic": "A"}, {"epic": "B"}, {"epic": "C"}},
			})
		},
	})

	result := tools.SearchMarkets(context.Background(), &recordingContext{}, "gold", nil, 2)
	assert.Len(t, result["markets"], 2)

	result = tools.SearchMarkets(context.Background(), &recordingContext{}, "", nil, 5)
	assert.Equal(t, "Search query cannot be empty", result["error"])

	result = tools.SearchMarkets(context.Background(), &recordingContext{}, "gold", nil, 101)
	assert.Equal(t, "Limit must be between 1 and 100", result["error"])
}

func TestGetPrices_RejectsUnknownResolution(t *testing.T) {
	tools, up := newCapitalTools(t, nil)

	result := tools.GetPrices(context.Background(), &recordingContext{}, "GOLD", capital.PriceQuery{Resolution: "SECOND"})

	assert.Contains(t, result["error"], "Invalid resolution. Must be one of: MINUTE")
	assert.Zero(t, up.total())
}

func TestCalculateMarginTool(t *testing.T) {
	tools, _ := newCapitalTools(t, map[string]http.HandlerFunc{"GET /api/v1/prices/GOLD": goldPrices})

	result := tools.CalculateMargin(context.Background(), &recordingContext{}, "GOLD", "BUY", 1, 0)

	require.False(t, result.IsError(), "unexpected error: %v", result)
	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"margin_information":{"instrument":"GOLD","direction":"BUY","size":1,"leverage":20,"price":2000,"margin_required":100}}`, string(data))
}
