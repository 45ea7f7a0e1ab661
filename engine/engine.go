package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/spool"
	"github.com/xraph/spool/backoff"
	"github.com/xraph/spool/batch"
	"github.com/xraph/spool/cron"
	"github.com/xraph/spool/event"
	"github.com/xraph/spool/ext"
	"github.com/xraph/spool/id"
	"github.com/xraph/spool/job"
	mw "github.com/xraph/spool/middleware"
	"github.com/xraph/spool/observability"
	"github.com/xraph/spool/printer"
	"github.com/xraph/spool/queue"
	"github.com/xraph/spool/retry"
	"github.com/xraph/spool/sink"
	"github.com/xraph/spool/store"
	"github.com/xraph/spool/worker"
)

// ProcessQueueTask is the name of the scheduled queue processing task.
const ProcessQueueTask = "process-queue"

// Deliverer hands a claimed job to its printer. worker.Pool and
// worker.Executor implement it.
type Deliverer interface {
	Deliver(ctx context.Context, j *job.Job, p *printer.Printer) error
}

// Engine is the print-job broker.
type Engine struct {
	store      store.Store
	config     spool.Config
	logger     *slog.Logger
	extensions *ext.Registry
	bus        *event.Bus
	printers   *printer.Registry
	policy     *retry.Policy
	batcher    *batch.Batcher
	processor  *Processor
	scheduler  *cron.Scheduler

	// Delivery.
	sink         sink.Sink
	renderer     worker.Renderer
	deliverer    Deliverer
	pool         *worker.Pool
	synchronous  bool
	mws          []mw.Middleware
	queueConfigs []queue.Config
	queueManager *queue.Manager

	exts        []ext.Extension
	bo          backoff.Strategy
	unsubscribe []func()

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// New creates an Engine. WithStore is required.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		config: spool.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.store == nil {
		return nil, spool.ErrNoStore
	}
	if err := eng.config.Validate(); err != nil {
		return nil, err
	}

	logger := eng.logger
	eng.extensions = ext.NewRegistry(logger)
	eng.bus = event.NewBus(logger)
	eng.printers = printer.NewRegistry(eng.store,
		printer.WithLogger(logger),
		printer.WithPublisher(eng.bus),
		printer.WithJobCounter(eng.store),
	)

	var retryOpts []retry.Option
	if eng.bo != nil {
		retryOpts = append(retryOpts, retry.WithBackoff(eng.bo))
	}
	eng.policy = retry.New(eng.config, retryOpts...)

	batchOpts := []batch.Option{batch.WithLogger(logger)}
	if eng.renderer != nil {
		batchOpts = append(batchOpts, batch.WithRenderer(eng.renderer))
	}
	eng.batcher = batch.New(eng, batchOpts...)

	// Register the observability metrics extension ahead of user
	// extensions.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter("github.com/xraph/spool/observability"))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)
	for _, e := range eng.exts {
		eng.extensions.Register(e)
	}

	if eng.deliverer == nil && eng.sink != nil {
		eng.buildDelivery()
	}

	eng.processor = newProcessor(eng)
	eng.scheduler = cron.NewScheduler(logger)
	if err := eng.scheduler.Register(ProcessQueueTask, eng.config.ProcessSchedule, func(ctx context.Context) error {
		_, err := eng.processor.ProcessQueue(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	eng.unsubscribe = append(eng.unsubscribe,
		eng.bus.Subscribe(event.KindPrinterActivated, "queue-drain", eng.onPrinterActivated),
		eng.bus.Subscribe(event.KindPrinterActivated, "status-hooks", eng.onPrinterStatus),
		eng.bus.Subscribe(event.KindPrinterDeactivated, "status-hooks", eng.onPrinterStatus),
	)

	return eng, nil
}

// buildDelivery assembles the middleware chain, executor and worker pool
// around the configured sink.
func (eng *Engine) buildDelivery() {
	logger := eng.logger

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/xraph/spool"))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/xraph/spool"))
	} else {
		metricsMw = mw.Metrics()
	}

	// Default stack: recover → tracing → metrics → logging → rate limit → timeout.
	mws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
	}

	configs := eng.queueConfigs
	if eng.config.PrinterRateLimit > 0 {
		configs = append([]queue.Config{{RateLimit: eng.config.PrinterRateLimit}}, configs...)
	}
	if len(configs) > 0 {
		eng.queueManager = queue.NewManager(configs...)
		mws = append(mws, mw.RateLimit(eng.queueManager))
	}
	mws = append(mws, mw.Timeout(eng.config.ConnectionTimeout.Duration(), logger))
	mws = append(mws, eng.mws...)

	execOpts := []worker.ExecutorOption{
		worker.WithMiddleware(mws...),
		worker.WithLogger(logger),
	}
	if eng.renderer != nil {
		execOpts = append(execOpts, worker.WithRenderer(eng.renderer))
	}
	executor := worker.NewExecutor(eng.sink, eng, execOpts...)

	if eng.synchronous {
		eng.deliverer = executor
		return
	}
	eng.pool = worker.NewPool(executor, logger,
		worker.WithPoolConcurrency(eng.config.DeliveryConcurrency),
	)
	eng.deliverer = eng.pool
}

// Start begins background work: the delivery pool and the cron scheduler.
func (eng *Engine) Start(ctx context.Context) error {
	if eng.pool != nil {
		if err := eng.pool.Start(ctx); err != nil {
			return fmt.Errorf("start delivery pool: %w", err)
		}
	}
	if err := eng.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start cron scheduler: %w", err)
	}
	eng.logger.Info("spool engine started",
		slog.String("process_schedule", eng.config.ProcessSchedule),
		slog.Bool("delivery", eng.deliverer != nil),
	)
	return nil
}

// Stop gracefully shuts down the engine. Queued deliveries are drained
// until ctx ends.
func (eng *Engine) Stop(ctx context.Context) error {
	if err := eng.scheduler.Stop(ctx); err != nil {
		eng.logger.Error("cron scheduler stop error", slog.String("error", err.Error()))
	}

	var poolErr error
	if eng.pool != nil {
		poolErr = eng.pool.Stop(ctx)
	}

	eng.extensions.EmitShutdown(ctx)
	eng.logger.Info("spool engine stopped")
	return poolErr
}

// Close releases the event subscriptions. The engine must not be used
// afterwards.
func (eng *Engine) Close() {
	for _, unsub := range eng.unsubscribe {
		unsub()
	}
	eng.unsubscribe = nil
}

// ──────────────────────────────────────────────────
// Event handlers
// ──────────────────────────────────────────────────

// onPrinterActivated drains the printer's own backlog.
func (eng *Engine) onPrinterActivated(ctx context.Context, evt *event.Event) error {
	summary, err := eng.processor.DrainPrinter(ctx, evt.PrinterID)
	if err != nil {
		return err
	}
	eng.logger.Info("printer backlog drained",
		slog.String("printer_id", evt.PrinterID.String()),
		slog.String("printer", evt.PrinterName),
		slog.Int("processed", summary.Processed),
		slog.Int("failed", summary.Failed),
	)
	return nil
}

func (eng *Engine) onPrinterStatus(ctx context.Context, evt *event.Event) error {
	p, err := eng.store.GetPrinter(ctx, evt.PrinterID)
	if err != nil {
		return err
	}
	eng.extensions.EmitPrinterStatusChanged(ctx, p)
	return nil
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Printers returns the printer registry.
func (eng *Engine) Printers() *printer.Registry { return eng.printers }

// Printer resolves a printer by ID.
func (eng *Engine) Printer(ctx context.Context, printerID id.PrinterID) (*printer.Printer, error) {
	return eng.printers.Get(ctx, printerID)
}

// Processor returns the queue processor.
func (eng *Engine) Processor() *Processor { return eng.processor }

// Batcher returns the label batcher.
func (eng *Engine) Batcher() *batch.Batcher { return eng.batcher }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// EventBus returns the domain event bus.
func (eng *Engine) EventBus() *event.Bus { return eng.bus }

// Scheduler returns the cron scheduler. Additional periodic tasks, such
// as the connectivity monitor, may be registered before Start.
func (eng *Engine) Scheduler() *cron.Scheduler { return eng.scheduler }

// Store returns the persistence backend.
func (eng *Engine) Store() store.Store { return eng.store }

// Config returns the engine configuration.
func (eng *Engine) Config() spool.Config { return eng.config }

// RetryPolicy returns the retry policy.
func (eng *Engine) RetryPolicy() *retry.Policy { return eng.policy }

// Pool returns the delivery pool, or nil when deliveries are synchronous,
// custom, or left to external agents.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }

// QueueManager returns the per-printer limiter, or nil if no limits are
// configured.
func (eng *Engine) QueueManager() *queue.Manager { return eng.queueManager }

// Logger returns the engine logger.
func (eng *Engine) Logger() *slog.Logger { return eng.logger }
