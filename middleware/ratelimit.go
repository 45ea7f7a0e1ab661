package middleware

import (
	"context"

	"github.com/xraph/spool/queue"
	"github.com/xraph/spool/sink"
)

// RateLimit returns middleware that holds each delivery until the
// printer's limits in m allow it. Printers are keyed by ID. Waiting is
// bounded by ctx; a cancelled wait is reported as a transient failure.
func RateLimit(m *queue.Manager) Middleware {
	return func(ctx context.Context, req *sink.Request, next Handler) error {
		key := req.PrinterID.String()
		if err := m.Acquire(ctx, key); err != nil {
			return sink.NewTransient("rate limit", req.Printer, err)
		}
		defer m.Release(key)
		return next(ctx)
	}
}
