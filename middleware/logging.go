package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/spool/sink"
)

// Logging returns middleware that logs delivery start and outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req *sink.Request, next Handler) error {
		logger.Info("delivery started",
			slog.String("job_name", req.JobName),
			slog.String("job_id", req.JobID.String()),
			slog.String("printer", req.Printer),
			slog.Int("attempt", req.Attempt),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("delivery failed",
				slog.String("job_name", req.JobName),
				slog.String("job_id", req.JobID.String()),
				slog.String("printer", req.Printer),
				slog.Duration("elapsed", elapsed),
				slog.Bool("transient", sink.IsTransient(err)),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("delivery completed",
				slog.String("job_name", req.JobName),
				slog.String("job_id", req.JobID.String()),
				slog.String("printer", req.Printer),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
