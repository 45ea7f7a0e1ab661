package engine

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/spool"
	"github.com/xraph/spool/backoff"
	"github.com/xraph/spool/ext"
	mw "github.com/xraph/spool/middleware"
	"github.com/xraph/spool/queue"
	"github.com/xraph/spool/sink"
	"github.com/xraph/spool/store"
	"github.com/xraph/spool/worker"
)

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the persistence backend. Required.
func WithStore(s store.Store) Option {
	return func(eng *Engine) { eng.store = s }
}

// WithConfig sets the broker configuration. Defaults to
// spool.DefaultConfig().
func WithConfig(cfg spool.Config) Option {
	return func(eng *Engine) { eng.config = cfg }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithSink sets the print sink. Processed jobs are delivered to it by the
// worker pool. Without a sink (and without WithDeliverer) processed jobs
// stay in printing until an external print agent reports the outcome.
func WithSink(s sink.Sink) Option {
	return func(eng *Engine) { eng.sink = s }
}

// WithRenderer sets the renderer for template-only jobs. It is used by the
// delivery executor and by the batcher.
func WithRenderer(r worker.Renderer) Option {
	return func(eng *Engine) { eng.renderer = r }
}

// WithDeliverer replaces the built-in delivery path entirely.
func WithDeliverer(d Deliverer) Option {
	return func(eng *Engine) { eng.deliverer = d }
}

// WithSynchronousDelivery delivers to the sink on the caller's goroutine
// instead of the worker pool, so Process returns after the outcome is
// recorded.
func WithSynchronousDelivery() Option {
	return func(eng *Engine) { eng.synchronous = true }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.exts = append(eng.exts, e) }
}

// WithMiddleware appends middleware after the default delivery chain.
func WithMiddleware(m ...mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m...) }
}

// WithQueueConfig registers per-printer concurrency and rate limits. A
// Config with an empty Key replaces the default derived from
// Config.PrinterRateLimit.
func WithQueueConfig(configs ...queue.Config) Option {
	return func(eng *Engine) { eng.queueConfigs = append(eng.queueConfigs, configs...) }
}

// WithBackoff replaces the exponential retry backoff.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) { eng.bo = b }
}

// WithTracerProvider sets a custom OTel TracerProvider for the delivery
// tracing middleware. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the delivery
// metrics middleware and the observability extension. If not set, the
// global provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}
