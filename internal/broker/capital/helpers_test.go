package capital

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"broker_mcp/internal/config"
)

const (
	testAPIKey     = "test-api-key"
	testIdentifier = "trader@example.com"
	testPassword   = "s3cret-pass"
	testAccountID  = "ACC-1"
)

// fakeBroker records every request it serves so tests can count calls.
type fakeBroker struct {
	mu     sync.Mutex
	hits   map[string]int
	bodies map[string][]map[string]any
	logins int
	routes map[string]http.HandlerFunc
}

func (f *fakeBroker) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[key]
}

func (f *fakeBroker) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.hits {
		n += v
	}
	return n
}

// lastBody returns the decoded JSON body of the most recent request to key.
func (f *fakeBroker) lastBody(key string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	bodies := f.bodies[key]
	if len(bodies) == 0 {
		return nil
	}
	return bodies[len(bodies)-1]
}

// login issues a fresh CST per call so tests can tell sessions apart.
func (f *fakeBroker) login(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.logins++
	n := f.logins
	f.mu.Unlock()

	w.Header().Set(headerCST, fmt.Sprintf("cst-%d", n))
	w.Header().Set(headerSecurityToken, fmt.Sprintf("xst-%d", n))
	writeJSON(w, http.StatusOK, map[string]any{"currentAccountId": testAccountID})
}

func accounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": []map[string]any{
			{"accountId": testAccountID, "accountName": "Demo", "preferred": true},
			{"accountId": "ACC-2", "accountName": "Second"},
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newTestClient starts a fake broker serving routes (keyed "METHOD /path")
// on top of working login and accounts endpoints.
func newTestClient(t *testing.T, routes map[string]http.HandlerFunc, opts ...Option) (*Client, *fakeBroker) {
	t.Helper()
	return newTestClientWithConfig(t, config.CapitalConfig{}, routes, opts...)
}

func newTestClientWithConfig(t *testing.T, cfg config.CapitalConfig, routes map[string]http.HandlerFunc, opts ...Option) (*Client, *fakeBroker) {
	t.Helper()

	fb := &fakeBroker{
		hits:   map[string]int{},
		bodies: map[string][]map[string]any{},
		routes: map[string]http.HandlerFunc{},
	}
	fb.routes["POST /api/v1/session"] = fb.login
	fb.routes["GET /api/v1/accounts"] = accounts
	for k, v := range routes {
		fb.routes[k] = v
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		data, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(data))

		var body map[string]any
		_ = json.Unmarshal(data, &body)

		fb.mu.Lock()
		fb.hits[key]++
		fb.bodies[key] = append(fb.bodies[key], body)
		h, ok := fb.routes[key]
		fb.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL
	if cfg.APIKey == "" {
		cfg.APIKey = testAPIKey
	}
	if cfg.Identifier == "" {
		cfg.Identifier = testIdentifier
	}
	if cfg.Password == "" {
		cfg.Password = testPassword
	}

	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	return NewClient(cfg, opts...), fb
}

func ptr(f float64) *float64 { return &f }
