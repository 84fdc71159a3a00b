package ta

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/splitworld/tee-sdk/domain/entities"
	"github.com/splitworld/tee-sdk/domain/errors"
)

// Handler executes one command against validated parameters.
type Handler func(ctx TaskContext, p *Params) error

// Middleware wraps a Handler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next Handler) Handler

// PanicRecoveryMiddleware converts a handler panic into a Generic error.
// The dispatcher always installs it outermost.
func PanicRecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx TaskContext, p *Params) (err error) {
			defer func() {
				if r := recover(); r != nil {
					ctx.Logger().Error("handler panicked", slog.String("panic", fmt.Sprint(r)))
					err = errors.Newf(entities.CodeGeneric, entities.OriginUnset, "", "handler panic: %v", r)
				}
			}()
			return next(ctx, p)
		}
	}
}

// LoggingMiddleware logs each invocation with its outcome. Only codes,
// origins and capacities are logged, never buffer content.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx TaskContext, p *Params) error {
			l := logger.With(
				slog.Uint64("session", uint64(ctx.SessionID())),
				slog.String("command", ctx.CommandName()),
			)
			l.Debug("command executing", slog.String("signature", p.Signature().String()))
			start := time.Now()
			err := next(ctx, p)
			if err != nil {
				l.Warn("command failed",
					slog.String("code", errors.CodeOf(err).Name()),
					slog.Duration("elapsed", time.Since(start)),
				)
				return err
			}
			l.Debug("command completed", slog.Duration("elapsed", time.Since(start)))
			return nil
		}
	}
}
