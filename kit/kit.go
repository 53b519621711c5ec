// Package kit holds the transport-agnostic endpoint plumbing shared by
// canvasd's service surfaces: a typed Endpoint, middleware chaining, and
// the adapter that mounts an Endpoint as an MCP tool.
package kit

import (
	"context"
	"log/slog"
	"time"
)

// Endpoint is one callable operation, independent of transport.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares left-to-right: the first middleware is the
// outermost wrapper.
func Chain(mw ...Middleware) func(Endpoint) Endpoint {
	return func(e Endpoint) Endpoint {
		for i := len(mw) - 1; i >= 0; i-- {
			e = mw[i](e)
		}
		return e
	}
}

// Logging returns middleware that logs each invocation of the named
// operation with its duration and outcome.
func Logging(logger *slog.Logger, name string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			attrs := []any{
				"tool", name,
				"transport", GetTransport(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if err != nil {
				logger.Error("tool call failed", append(attrs, "error", err)...)
			} else {
				logger.Debug("tool call", attrs...)
			}
			return resp, err
		}
	}
}
