// Package tools exposes the broker clients as MCP tools. Each tool validates
// its arguments, makes sure the client holds usable credentials, calls the
// client and returns either the broker's result or an error envelope.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"broker_mcp/internal/broker"
	apperrors "broker_mcp/internal/errors"
	"broker_mcp/internal/logging"
)

// Context is the reporting sink handed to every tool invocation.
type Context interface {
	Info(msg string)
	Error(msg string)
}

type logContext struct {
	logger zerolog.Logger
}

func newLogContext(logger zerolog.Logger, tool string) Context {
	return logContext{logger: logger.With().Str("tool", tool).Logger()}
}

func (c logContext) Info(msg string)  { c.logger.Info().Msg(msg) }
func (c logContext) Error(msg string) { c.logger.Error().Msg(msg) }

// Call is one handled tool invocation as seen by a Recorder.
type Call struct {
	Tool      string
	Broker    string
	Success   bool
	Arguments map[string]any
	Error     string
	Duration  time.Duration
}

// Recorder persists handled tool calls.
type Recorder interface {
	RecordCall(ctx context.Context, call Call) error
}

// Option configures a tool set.
type Option func(*options)

type options struct {
	logger   zerolog.Logger
	recorder Recorder
}

// WithLogger sets the logger tool contexts write to.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRecorder records every handled call.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

func newOptions(opts []Option) options {
	o := options{logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// handlerFunc is a tool body working on decoded arguments.
type handlerFunc func(ctx context.Context, tc Context, args Args) broker.Result

// binder turns handlerFuncs into mcp-go handlers for one broker.
type binder struct {
	broker string
	options
}

func (b binder) bind(name string, fn handlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		args := Args(req.GetArguments())
		tc := newLogContext(b.logger, name)
		b.logger.Info().Str("tool", name).Msg("Invoking tool")

		result := fn(ctx, tc, args)
		b.record(ctx, name, args, result, time.Since(start))
		return toCallResult(result)
	}
}

func (b binder) record(ctx context.Context, name string, args Args, result broker.Result, elapsed time.Duration) {
	if b.recorder == nil {
		return
	}
	call := Call{
		Tool:      name,
		Broker:    b.broker,
		Success:   !result.IsError(),
		Arguments: logging.SanitizeMap(args),
		Error:     result.ErrorMessage(),
		Duration:  elapsed,
	}
	if err := b.recorder.RecordCall(ctx, call); err != nil {
		b.logger.Warn().Err(err).Str("tool", name).Msg("Failed to record tool call")
	}
}

// toCallResult encodes result as JSON text. Envelopes carrying an "error"
// key are flagged as tool errors.
func toCallResult(result broker.Result) (*mcp.CallToolResult, error) {
	if result == nil {
		result = broker.Success()
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	out := mcp.NewToolResultText(string(data))
	out.IsError = result.IsError()
	return out, nil
}

// failure reports err through tc and returns its envelope.
func failure(tc Context, op string, err error) broker.Result {
	tc.Error(fmt.Sprintf("Failed to %s: %s", op, err.Error()))
	return apperrors.Envelope(err)
}

// finish returns result, or the envelope of err.
func finish(tc Context, op string, result broker.Result, err error) broker.Result {
	if err != nil {
		return failure(tc, op, err)
	}
	return result
}

// invalid reports a local validation failure.
func invalid(tc Context, err error) broker.Result {
	tc.Error(err.Error())
	return apperrors.Envelope(err)
}
