// Command spoold runs the spool print broker: the engine with its cron
// tasks, the printer connectivity monitor and the HTTP/websocket API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/spool"
	"github.com/xraph/spool/api"
	audithook "github.com/xraph/spool/audit_hook"
	"github.com/xraph/spool/engine"
	"github.com/xraph/spool/monitor"
	"github.com/xraph/spool/notify"
	"github.com/xraph/spool/render"
	"github.com/xraph/spool/service"
	"github.com/xraph/spool/sink"
	"github.com/xraph/spool/sink/file"
	"github.com/xraph/spool/sink/ipp"
	"github.com/xraph/spool/sink/socket"
	"github.com/xraph/spool/stream"
	"github.com/xraph/spool/wire"
)

// MonitorTask is the cron task name of the connectivity check.
const MonitorTask = "printer-monitor"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadServerConfig()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("spoold exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg serverConfig, logger *slog.Logger) error {
	spoolCfg := spool.DefaultConfig()
	if cfg.ConfigPath != "" {
		loaded, err := spool.LoadConfig(cfg.ConfigPath)
		if err != nil {
			return err
		}
		spoolCfg = loaded
	}
	spoolCfg.ApplyEnv()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("store close", slog.String("error", cerr.Error()))
		}
	}()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	renderer := render.NewRegistry(render.WithLogger(logger))
	socketSink := socket.New(
		socket.WithDialTimeout(spoolCfg.ConnectionTimeout.Duration()),
		socket.WithLogger(logger),
	)
	ippSink := ipp.New(ipp.WithLogger(logger))
	// Printers without an address are served by agents that pick payloads
	// up from the spool directory.
	fileSink := file.New(cfg.SpoolDir, file.WithLogger(logger))
	router := sink.NewRouter().
		Handle(socketSink, "socket").
		Handle(ippSink, "ipp", "ipps", "http", "https").
		Handle(fileSink, "file").
		Fallback(fileSink)

	broker := stream.NewBroker(logger)
	eng, err := engine.New(
		engine.WithStore(st),
		engine.WithConfig(spoolCfg),
		engine.WithLogger(logger),
		engine.WithSink(router),
		engine.WithRenderer(renderer),
		engine.WithExtension(broker),
		engine.WithExtension(audithook.New(audithook.LogRecorder(logger.With("component", "audit")))),
		engine.WithExtension(notify.NewExtension(notify.NewLogSink(logger), spoolCfg, notify.WithLogger(logger))),
	)
	if err != nil {
		return err
	}
	defer eng.Close()

	if spoolCfg.MonitorSchedule != "" {
		mon := monitor.New(eng.Printers(),
			monitor.WithProber(socketSink, "socket"),
			monitor.WithProber(ippSink, "ipp", "ipps", "http", "https"),
			monitor.WithTimeout(spoolCfg.ConnectionTimeout.Duration()),
			monitor.WithLogger(logger),
		)
		if err := eng.Scheduler().Register(MonitorTask, spoolCfg.MonitorSchedule, mon.Run); err != nil {
			return err
		}
	}

	svc := service.New(eng, eng.Printers(), renderer, service.WithLogger(logger))

	var auth wire.Authenticator = &wire.NoopAuthenticator{}
	if cfg.APIToken != "" {
		auth = wire.NewAPIKeyAuthenticator(wire.APIKeyEntry{
			Token:    cfg.APIToken,
			Identity: wire.Identity{Subject: "api", Scopes: []string{wire.ScopeAll}},
		})
	}
	ws := wire.NewServer(broker, wire.NewHandler(eng, svc, broker, logger),
		wire.WithAuth(auth),
		wire.WithLogger(logger),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.New(eng, svc, api.WithLogger(logger), api.WithWebSocket(ws)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := eng.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("spoold listening",
			slog.String("addr", cfg.Addr),
			slog.String("store", cfg.StoreDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		httpErr := srv.Shutdown(shutdownCtx)
		engErr := eng.Stop(shutdownCtx)
		return errors.Join(httpErr, engErr)
	})

	return g.Wait()
}

// ── Server configuration ────────────────────────────

type serverConfig struct {
	Addr            string
	ConfigPath      string
	StoreDriver     string
	StoreDSN        string
	Database        string
	SpoolDir        string
	APIToken        string
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
}

func loadServerConfig() serverConfig {
	cfg := serverConfig{
		Addr:            envOr("SPOOL_ADDR", ":8631"),
		ConfigPath:      os.Getenv("SPOOL_CONFIG"),
		StoreDriver:     strings.ToLower(envOr("SPOOL_STORE", "memory")),
		StoreDSN:        os.Getenv("SPOOL_STORE_DSN"),
		Database:        envOr("SPOOL_DATABASE", "spool"),
		SpoolDir:        envOr("SPOOL_DIR", "/var/spool/spoold"),
		APIToken:        os.Getenv("SPOOL_API_TOKEN"),
		ShutdownTimeout: time.Duration(envIntOr("SPOOL_SHUTDOWN_TIMEOUT", 15)) * time.Second,
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(envOr("SPOOL_LOG_LEVEL", "info"))); err != nil {
		cfg.LogLevel = slog.LevelInfo
	}
	return cfg
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
