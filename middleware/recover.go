package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/spool/sink"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to permanent sink errors and logged with a stack
// trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req *sink.Request, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("sink panicked",
					slog.String("job_name", req.JobName),
					slog.String("job_id", req.JobID.String()),
					slog.String("printer", req.Printer),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = sink.NewPermanent("send", req.Printer, fmt.Errorf("panic: %v", r))
			}
		}()
		return next(ctx)
	}
}
