package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/spool/sink"
)

// tracerName is the instrumentation scope name for spool tracing.
const tracerName = "github.com/xraph/spool"

// Tracing returns middleware that wraps each delivery in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is used
// and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: spool.job.id, spool.job.name, spool.printer,
// spool.format, spool.copies, spool.attempt.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, req *sink.Request, next Handler) error {
		ctx, span := tracer.Start(ctx, "spool.job.deliver",
			trace.WithAttributes(
				attribute.String("spool.job.id", req.JobID.String()),
				attribute.String("spool.job.name", req.JobName),
				attribute.String("spool.printer", req.Printer),
				attribute.String("spool.format", string(req.Format)),
				attribute.Int("spool.copies", req.Copies),
				attribute.Int("spool.attempt", req.Attempt),
			),
			trace.WithSpanKind(trace.SpanKindClient),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.Bool("spool.transient", sink.IsTransient(err)))
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
