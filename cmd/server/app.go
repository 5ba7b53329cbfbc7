package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"broker_mcp/internal/broker"
	"broker_mcp/internal/broker/capital"
	"broker_mcp/internal/broker/etoro"
	"broker_mcp/internal/config"
	"broker_mcp/internal/database"
	"broker_mcp/internal/middleware"
	"broker_mcp/internal/repository"
	"broker_mcp/internal/services"
	"broker_mcp/internal/tools"
)

const (
	brokerCapital = capital.BrokerName
	brokerEtoro   = etoro.BrokerName

	serverVersion = "1.0.0"
)

// App holds the dependencies of one broker server.
type App struct {
	config *config.Config
	broker string
	db     *database.DB
	audit  *services.AuditService
	mcp    *server.MCPServer

	// connect establishes the broker session at startup.
	connect func(ctx context.Context)
	// ready reports whether the broker accepted our credentials.
	ready func() bool
}

// NewApp wires persistence, the broker client and its tools.
func NewApp(cfg *config.Config, brokerName string) (*App, error) {
	app := &App{config: cfg, broker: brokerName}

	var (
		toolOpts []tools.Option
		store    broker.SessionStore
	)
	if cfg.PersistenceEnabled() {
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		app.db = db
		log.Info().Str("path", cfg.DBPath).Msg("Database ready")

		app.audit = services.NewAuditService(repository.NewToolCallRepository(db))
		app.audit.Prune(services.DefaultAuditRetention)
		toolOpts = append(toolOpts, tools.WithRecorder(app.audit))

		if cfg.EncryptionSecret != "" {
			sealer, err := broker.NewSealer(cfg.EncryptionSecret)
			if err != nil {
				db.Close()
				return nil, fmt.Errorf("session cache: %w", err)
			}
			store = services.NewSessionCache(repository.NewSessionRepository(db), sealer)
		} else {
			log.Warn().Msg("ENCRYPTION_SECRET not set, sessions will not be cached")
		}
	}

	switch brokerName {
	case brokerCapital:
		var opts []capital.Option
		if store != nil {
			opts = append(opts, capital.WithSessionStore(store))
		}
		client := capital.NewClient(cfg.Capital, opts...)
		t := tools.NewCapitalTools(client, toolOpts...)

		app.mcp = newMCPServer("capital-com-mcp-server", tools.CapitalInstructions)
		t.Register(app.mcp)
		app.ready = client.IsAuthenticated
		app.connect = func(ctx context.Context) {
			if client.RestoreSession(ctx) {
				log.Info().Msg("Reusing cached Capital.com session")
				return
			}
			if client.Authenticate(ctx) {
				log.Info().Msg("Successfully authenticated with Capital.com API on startup")
			} else {
				log.Warn().Msg("Failed to authenticate with Capital.com API on startup")
			}
		}
	case brokerEtoro:
		client := etoro.NewClient(cfg.Etoro)
		t := tools.NewEtoroTools(client, toolOpts...)

		app.mcp = newMCPServer("etoro-mcp-server", tools.EtoroInstructions)
		t.Register(app.mcp)
		app.ready = t.CredentialsValid
		app.connect = func(ctx context.Context) {
			if t.ValidateCredentials(ctx) {
				log.Info().Msg("Successfully validated eToro API credentials on startup")
			} else {
				log.Warn().Msg("Failed to validate eToro API credentials on startup")
			}
		}
	default:
		app.Close()
		return nil, fmt.Errorf("unknown broker %q", brokerName)
	}

	log.Info().Str("broker", brokerName).Msg("Starting MCP server")
	return app, nil
}

func newMCPServer(name, instructions string) *server.MCPServer {
	return server.NewMCPServer(name, serverVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
		server.WithRecovery(),
	)
}

// Connect authenticates against the broker. Failure is logged, not fatal:
// tools report it on every call until credentials work.
func (app *App) Connect(ctx context.Context) {
	app.connect(ctx)
}

// Close releases the database, if any.
func (app *App) Close() {
	if app.db != nil {
		app.db.Close()
	}
}

// Router builds the HTTP handler for an HTTP transport. The returned func
// shuts the MCP transport down.
func (app *App) Router(ctx context.Context, transport Transport) (http.Handler, func(context.Context) error) {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log.With().Str("component", "http").Logger()))
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", app.handleHealth)

	var shutdown func(context.Context) error
	r.Group(func(r chi.Router) {
		r.Use(middleware.LimitMCP(ctx))

		switch transport {
		case TransportSSE:
			sse := server.NewSSEServer(app.mcp, server.WithBaseURL("http://"+app.config.Address()))
			r.Handle("/sse", sse.SSEHandler())
			r.Handle("/message", sse.MessageHandler())
			shutdown = sse.Shutdown
		default:
			streamable := server.NewStreamableHTTPServer(app.mcp)
			r.Handle("/mcp", streamable)
			shutdown = streamable.Shutdown
		}
	})

	return r, shutdown
}

// handleHealth returns the server health status.
func (app *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":        "ok",
		"broker":        app.broker,
		"authenticated": app.ready(),
	})
}
