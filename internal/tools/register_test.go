package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcResponse struct {
	Result struct {
		Tools []struct {
			Name        string `json:"name"`
			InputSchema struct {
				Required []string `json:"required"`
			} `json:"inputSchema"`
		} `json:"tools"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
}

func rpc(t *testing.T, s *server.MCPServer, method string, params any) rpcResponse {
	t.Helper()
	p, err := json.Marshal(params)
	require.NoError(t, err)
	msg := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":%q,"params":%s}`, method, p)

	out := s.HandleMessage(context.Background(), json.RawMessage(msg))
	data, err := json.Marshal(out)
	require.NoError(t, err)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(data, &resp), string(data))
	return resp
}

func callText(t *testing.T, s *server.MCPServer, name string, args map[string]any) (map[string]any, bool) {
	t.Helper()
	resp := rpc(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
	require.Len(t, resp.Result.Content, 1)
	assert.Equal(t, "text", resp.Result.Content[0].Type)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &body))
	return body, resp.Result.IsError
}

func TestCapitalRegister_ListsTools(t *testing.T) {
	tools, _ := newCapitalTools(t, nil)
	s := server.NewMCPServer("capital-test", "0.0.0", server.WithToolCapabilities(true))
	tools.Register(s)

	resp := rpc(t, s, "tools/list", map[string]any{})

	required := map[string][]string{}
	for _, tool := range resp.Result.Tools {
		required[tool.Name] = tool.InputSchema.Required
	}
	for _, name := range []string{
		"authenticate", "get_account_info", "search_markets", "get_prices",
		"get_historical_prices", "get_positions", "create_position",
		"close_position", "update_position", "get_watchlists", "calculate_margin",
	} {
		assert.Contains(t, required, name)
	}
	assert.ElementsMatch(t, []string{"epic", "direction", "size"}, required["create_position"])
}

func TestCapitalRegister_CallCreatePosition(t *testing.T) {
	rec := &memoryRecorder{}
	tools, up := newCapitalTools(t, map[string]http.HandlerFunc{
		"POST /api/v1/positions":   dealCreated,
		"GET /api/v1/prices/GOLD": goldPrices,
	}, WithRecorder(rec))
	s := server.NewMCPServer("capital-test", "0.0.0", server.WithToolCapabilities(true))
	tools.Register(s)

	body, isError := callText(t, s, "create_position", map[string]any{
		"epic": "GOLD", "direction": "SELL", "size": "0.02",
	})

	assert.False(t, isError)
	assert.Equal(t, "o_123", body["dealReference"])
	assert.Contains(t, body, "margin_information")
	assert.Equal(t, 0.02, up.lastBody("POST /api/v1/positions")["size"])

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "create_position", rec.calls[0].Tool)
	assert.Equal(t, "capital", rec.calls[0].Broker)
	assert.True(t, rec.calls[0].Success)
}

func TestCapitalRegister_ErrorIsFlagged(t *testing.T) {
	rec := &memoryRecorder{}
	tools, up := newCapitalTools(t, nil, WithRecorder(rec))
	s := server.NewMCPServer("capital-test", "0.0.0", server.WithToolCapabilities(true))
	tools.Register(s)

	body, isError := callText(t, s, "update_position", map[string]any{"deal_id": "D-1"})

	assert.True(t, isError)
	assert.Equal(t, "At least one of stop_level or profit_level must be provided", body["error"])
	assert.Zero(t, up.total())
	require.Len(t, rec.calls, 1)
	assert.False(t, rec.calls[0].Success)
	assert.Equal(t, body["error"], rec.calls[0].Error)
}

func TestCapitalRegister_NonNumericArgument(t *testing.T) {
	tools, up := newCapitalTools(t, nil)
	s := server.NewMCPServer("capital-test", "0.0.0", server.WithToolCapabilities(true))
	tools.Register(s)

	body, isError := callText(t, s, "create_position", map[string]any{
		"epic": "GOLD", "direction": "BUY", "size": "lots",
	})

	assert.True(t, isError)
	assert.Equal(t, "Parameter 'size' must be a number", body["error"])
	assert.Zero(t, up.total())
}

func TestRecorder_SanitizesArguments(t *testing.T) {
	rec := &memoryRecorder{}
	tools, _ := newCapitalTools(t, nil, WithRecorder(rec))
	s := server.NewMCPServer("capital-test", "0.0.0", server.WithToolCapabilities(true))
	tools.Register(s)

	callText(t, s, "change_active_account", map[string]any{"account_id": "", "password": "hunter2"})

	require.Len(t, rec.calls, 1)
	assert.NotEqual(t, "hunter2", rec.calls[0].Arguments["password"])
}

func TestEtoroRegister_CurrentRates(t *testing.T) {
	tools, up := newEtoroTools(t, map[string]http.HandlerFunc{
		"GET /api/demo/v1/account/info": etoroAccountInfo,
		"GET /api/demo/v1/rates/current": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"instrumentIds": r.URL.Query().Get("instrumentIds")})
		},
	})
	s := server.NewMCPServer("etoro-test", "0.0.0", server.WithToolCapabilities(true))
	tools.Register(s)

	body, isError := callText(t, s, "get_current_rates", map[string]any{"instrument_ids": "1001, 2045"})
	assert.False(t, isError)
	assert.Equal(t, "1001,2045", body["instrumentIds"])

	body, isError = callText(t, s, "get_current_rates", map[string]any{"instrument_ids": "1001,abc"})
	assert.True(t, isError)
	assert.Equal(t, idsMessage, body["error"])

	body, _ = callText(t, s, "get_current_rates", map[string]any{"instrument_ids": "1001,-4"})
	assert.Equal(t, "All instrument IDs must be positive integers", body["error"])
	assert.Equal(t, 1, up.count("GET /api/demo/v1/rates/current"))
}

func TestEtoroRegister_ListsTools(t *testing.T) {
	tools, _ := newEtoroTools(t, nil)
	s := server.NewMCPServer("etoro-test", "0.0.0", server.WithToolCapabilities(true))
	tools.Register(s)

	resp := rpc(t, s, "tools/list", map[string]any{})

	names := make([]string, 0, len(resp.Result.Tools))
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	for _, name := range []string{
		"search_instruments", "get_account_info", "get_positions", "create_position",
		"close_position", "update_position", "get_instrument_metadata", "get_current_rates",
	} {
		assert.Contains(t, names, name)
	}
}
