// Copyright (c) The Threadline Authors. All rights reserved.

package threadline

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// LoggingMiddleware returns a [Middleware] that logs invocations using slog.
// Persist failures are logged at warn level because the caller still received
// a valid result.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next InvokeFunc) InvokeFunc {
		return func(ctx context.Context, input any, cfg Config) (any, error) {
			start := time.Now()
			logger.InfoContext(ctx, "invocation started")

			out, err := next(ctx, input, cfg)

			duration := time.Since(start)
			switch {
			case err == nil:
				logger.InfoContext(ctx, "invocation completed",
					"duration", duration,
				)
			case errors.Is(err, ErrHistoryPersist):
				logger.WarnContext(ctx, "invocation completed, history behind",
					"duration", duration,
					"error", err,
				)
			default:
				logger.ErrorContext(ctx, "invocation failed",
					"duration", duration,
					"error", err,
				)
			}
			return out, err
		}
	}
}
