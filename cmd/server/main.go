package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"broker_mcp/internal/config"
	"broker_mcp/internal/logging"
)

// Transport selects how MCP messages reach the server.
type Transport string

const (
	TransportStdio      Transport = "stdio"
	TransportSSE        Transport = "sse"
	TransportStreamable Transport = "streamable-http"
)

// Flags holds the parsed command line.
type Flags struct {
	Broker    string
	Transport Transport
	Port      int
	Debug     bool
	LogDir    string
}

func parseFlags(args []string) (Flags, error) {
	fs := flag.NewFlagSet("broker-mcp", flag.ContinueOnError)
	var (
		f          Flags
		sse        bool
		streamable bool
	)
	fs.StringVar(&f.Broker, "broker", "capital", "Broker to serve: capital or etoro")
	fs.BoolVar(&sse, "sse", false, "Use SSE transport")
	fs.BoolVar(&streamable, "streamable-http", false, "Use streamable HTTP transport")
	fs.IntVar(&f.Port, "port", 8080, "Port to run the server on")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogDir, "log-dir", "", "Directory to store log files")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	switch f.Broker {
	case brokerCapital, brokerEtoro:
	default:
		return Flags{}, fmt.Errorf("unknown broker %q: must be capital or etoro", f.Broker)
	}
	if f.Port <= 0 || f.Port > 65535 {
		return Flags{}, fmt.Errorf("invalid port %d", f.Port)
	}

	// streamable HTTP wins when both are given
	switch {
	case streamable:
		f.Transport = TransportStreamable
	case sse:
		f.Transport = TransportSSE
	default:
		f.Transport = TransportStdio
	}
	return f, nil
}

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := config.Load()
	cfg.Port = strconv.Itoa(flags.Port)

	debug := flags.Debug ||
		(flags.Broker == brokerCapital && cfg.Capital.Debug) ||
		(flags.Broker == brokerEtoro && cfg.Etoro.Debug)
	closer, err := logging.Setup(logging.Options{
		Name:   flags.Broker + "_mcp",
		Debug:  debug,
		LogDir: flags.LogDir,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flags); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		closer.Close()
		os.Exit(1)
	}
	log.Info().Msg("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, flags Flags) error {
	app, err := NewApp(cfg, flags.Broker)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Connect(ctx)

	switch flags.Transport {
	case TransportStdio:
		log.Info().Msg("Using standard stdio transport")
		stdio := server.NewStdioServer(app.mcp)
		stdio.SetErrorLogger(stdlog.New(log.Logger, "", 0))
		err := stdio.Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	default:
		return serveHTTP(ctx, app, flags.Transport)
	}
}

func serveHTTP(ctx context.Context, app *App, transport Transport) error {
	handler, shutdown := app.Router(ctx, transport)

	srv := &http.Server{
		Addr:              app.config.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// no WriteTimeout: SSE and streamable responses are long-lived
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("transport", string(transport)).Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("MCP transport shutdown failed")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
