package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/spool/sink"
)

// meterName is the instrumentation scope name for spool metrics.
const meterName = "github.com/xraph/spool"

// Metrics returns middleware that records per-delivery metrics using the
// global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - spool.delivery.duration (Float64Histogram): sink call time in seconds,
//     with attributes: printer, format, status ("ok", "transient" or "permanent")
//   - spool.delivery.attempts (Int64Counter): total sink calls,
//     with the same attributes
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the API returns noop instruments.
	duration, _ := meter.Float64Histogram(
		"spool.delivery.duration",
		metric.WithDescription("Duration of print deliveries in seconds"),
		metric.WithUnit("s"),
	)
	attempts, _ := meter.Int64Counter(
		"spool.delivery.attempts",
		metric.WithDescription("Total number of print deliveries"),
		metric.WithUnit("{delivery}"),
	)

	return func(ctx context.Context, req *sink.Request, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		switch {
		case err == nil:
		case sink.IsTransient(err):
			status = "transient"
		default:
			status = "permanent"
		}

		attrs := metric.WithAttributes(
			attribute.String("printer", req.Printer),
			attribute.String("format", string(req.Format)),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		attempts.Add(ctx, 1, attrs)

		return err
	}
}
