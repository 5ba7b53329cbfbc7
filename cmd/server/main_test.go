package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"broker_mcp/internal/config"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Flags
		wantErr bool
	}{
		{"defaults", nil, Flags{Broker: "capital", Transport: TransportStdio, Port: 8080}, false},
		{"etoro sse", []string{"--broker", "etoro", "--sse", "--port", "9000"}, Flags{Broker: "etoro", Transport: TransportSSE, Port: 9000}, false},
		{"streamable wins", []string{"--sse", "--streamable-http"}, Flags{Broker: "capital", Transport: TransportStreamable, Port: 8080}, false},
		{"debug and log dir", []string{"--debug", "--log-dir", "/tmp/logs"}, Flags{Broker: "capital", Transport: TransportStdio, Port: 8080, Debug: true, LogDir: "/tmp/logs"}, false},
		{"unknown broker", []string{"--broker", "saxo"}, Flags{}, true},
		{"bad port", []string{"--port", "0"}, Flags{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// fakeCapital serves a login that always succeeds and counts logins.
func fakeCapital(t *testing.T) (string, *atomic.Int32) {
	t.Helper()
	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/session", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		w.Header().Set("CST", "cst-token")
		w.Header().Set("X-SECURITY-TOKEN", "xst-token")
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("GET /api/v1/accounts", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"accounts":[{"accountId":"ACC-1"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL, &logins
}

func capitalConfig(baseURL, dbPath string) *config.Config {
	cfg := config.New()
	cfg.DBPath = dbPath
	cfg.EncryptionSecret = "0123456789abcdef0123456789abcdef"
	cfg.Capital = config.CapitalConfig{
		BaseURL:    baseURL,
		APIKey:     "api-key",
		Identifier: "trader@example.com",
		Password:   "s3cret",
	}
	return cfg
}

func TestApp_CapitalSessionSurvivesRestart(t *testing.T) {
	url, logins := fakeCapital(t)
	cfg := capitalConfig(url, filepath.Join(t.TempDir(), "broker.db"))
	ctx := context.Background()

	first, err := NewApp(cfg, brokerCapital)
	require.NoError(t, err)
	first.Connect(ctx)
	assert.True(t, first.ready())
	first.Close()

	second, err := NewApp(cfg, brokerCapital)
	require.NoError(t, err)
	defer second.Close()
	second.Connect(ctx)

	assert.True(t, second.ready())
	assert.Equal(t, int32(1), logins.Load(), "second start reuses the cached session")
}

func TestApp_RecordsToolCalls(t *testing.T) {
	cfg := config.New()
	cfg.DBPath = filepath.Join(t.TempDir(), "broker.db")
	cfg.Capital = config.CapitalConfig{}

	app, err := NewApp(cfg, brokerCapital)
	require.NoError(t, err)
	defer app.Close()

	msg := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ping","arguments":{}}}`
	app.mcp.HandleMessage(context.Background(), json.RawMessage(msg))

	calls, err := app.audit.Recent(brokerCapital, 10)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "ping", calls[0].Tool)
	assert.False(t, calls[0].Success)
	assert.Equal(t, "Authentication required", calls[0].Error)
}

func TestApp_HealthEndpoint(t *testing.T) {
	cfg := config.New()
	cfg.Etoro = config.EtoroConfig{}

	app, err := NewApp(cfg, brokerEtoro)
	require.NoError(t, err)
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler, _ := app.Router(ctx, TransportStreamable)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, `{"status":"ok","broker":"etoro","authenticated":false}`, rec.Body.String())
}

func TestNewApp_UnknownBroker(t *testing.T) {
	_, err := NewApp(config.New(), "saxo")
	assert.Error(t, err)
}
