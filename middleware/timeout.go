package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/spool/sink"
)

// Timeout returns middleware that bounds each delivery with d. When the
// deadline passes the sink's context is cancelled and the failure is
// reported as a transient "timeout" so the job is retried. A zero d
// disables the deadline.
func Timeout(d time.Duration, logger *slog.Logger) Middleware {
	return func(ctx context.Context, req *sink.Request, next Handler) error {
		if d <= 0 {
			return next(ctx)
		}

		tctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		err := next(tctx)
		if err == nil {
			return nil
		}
		// Only our own deadline is rewritten; a cancelled parent passes
		// through unchanged.
		if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			logger.Warn("delivery timed out",
				slog.String("job_id", req.JobID.String()),
				slog.String("printer", req.Printer),
				slog.Duration("timeout", d),
			)
			var se *sink.Error
			if !errors.As(err, &se) || se.Kind != sink.Transient {
				return sink.NewTransient("timeout", req.Printer, err)
			}
		}
		return err
	}
}
