package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"broker_mcp/internal/broker/capital"
	"broker_mcp/internal/broker/etoro"
	"broker_mcp/internal/config"
)

// upstream is a fake broker API keyed by "METHOD /path".
type upstream struct {
	mu     sync.Mutex
	hits   map[string]int
	bodies map[string][]map[string]any
	routes map[string]http.HandlerFunc
}

func newUpstream(t *testing.T, routes map[string]http.HandlerFunc) (*upstream, string) {
	t.Helper()
	u := &upstream{
		hits:   map[string]int{},
		bodies: map[string][]map[string]any{},
		routes: routes,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		data, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(data))
		var body map[string]any
		_ = json.Unmarshal(data, &body)

		u.mu.Lock()
		u.hits[key]++
		u.bodies[key] = append(u.bodies[key], body)
		h, ok := u.routes[key]
		u.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return u, srv.URL
}

func (u *upstream) count(key string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[key]
}

func (u *upstream) total() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, v := range u.hits {
		n += v
	}
	return n
}

func (u *upstream) lastBody(key string) map[string]any {
	u.mu.Lock()
	defer u.mu.Unlock()
	bodies := u.bodies[key]
	if len(bodies) == 0 {
		return nil
	}
	return bodies[len(bodies)-1]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func capitalLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("CST", "cst-token")
	w.Header().Set("X-SECURITY-TOKEN", "xst-token")
	writeJSON(w, http.StatusOK, map[string]any{})
}

func capitalAccounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": []map[string]any{{"accountId": "ACC-1"}},
	})
}

// newCapitalTools wires tools to a fake Capital.com API with working login.
func newCapitalTools(t *testing.T, routes map[string]http.HandlerFunc, opts ...Option) (*CapitalTools, *upstream) {
	t.Helper()
	all := map[string]http.HandlerFunc{
		"POST /api/v1/session": capitalLogin,
		"GET /api/v1/accounts": capitalAccounts,
	}
	for k, v := range routes {
		all[k] = v
	}
	u, url := newUpstream(t, all)

	client := capital.NewClient(config.CapitalConfig{
		BaseURL:    url,
		APIKey:     "api-key",
		Identifier: "trader@example.com",
		Password:   "s3cret",
	}, capital.WithLogger(zerolog.Nop()))

	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	return NewCapitalTools(client, opts...), u
}

// newEtoroTools wires tools to a fake eToro demo API.
func newEtoroTools(t *testing.T, routes map[string]http.HandlerFunc, opts ...Option) (*EtoroTools, *upstream) {
	t.Helper()
	u, url := newUpstream(t, routes)
	client := etoro.NewClient(config.EtoroConfig{
		BaseURL:     url,
		APIKey:      "public-key",
		UserKey:     "user-key",
		AccountType: etoro.AccountDemo,
	}, etoro.WithLogger(zerolog.Nop()))

	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	return NewEtoroTools(client, opts...), u
}

// recordingContext captures what a tool reports.
type recordingContext struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (c *recordingContext) Info(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.infos = append(c.infos, msg)
}

func (c *recordingContext) Error(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, msg)
}

type memoryRecorder struct {
	mu    sync.Mutex
	calls []Call
}

func (m *memoryRecorder) RecordCall(_ context.Context, call Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return nil
}

func fp(f float64) *float64 { return &f }
