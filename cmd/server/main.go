// Package main is the entry point for the orchestration core. It wires all
// dependencies using samber/do v2, restores persisted state, starts the
// background loops and the HTTP control API, and handles graceful shutdown
// on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"

	adapthttp "github.com/aurora-nexus/portward/internal/adapters/http"
	"github.com/aurora-nexus/portward/internal/adapters/http/handlers"
	"github.com/aurora-nexus/portward/internal/adapters/http/middleware"

	"github.com/aurora-nexus/portward/internal/adapters/clients/supervisor"
	"github.com/aurora-nexus/portward/internal/adapters/probe"
	"github.com/aurora-nexus/portward/internal/adapters/store"
	"github.com/aurora-nexus/portward/internal/app"
	"github.com/aurora-nexus/portward/internal/app/healer"
	"github.com/aurora-nexus/portward/internal/app/ledger"
	"github.com/aurora-nexus/portward/internal/app/monitor"
	"github.com/aurora-nexus/portward/internal/app/registry"
	"github.com/aurora-nexus/portward/internal/platform/config"
	"github.com/aurora-nexus/portward/internal/platform/health"
	"github.com/aurora-nexus/portward/internal/platform/httpclient"
	"github.com/aurora-nexus/portward/internal/platform/logging"
	"github.com/aurora-nexus/portward/internal/platform/telemetry"
	"github.com/aurora-nexus/portward/internal/ports"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	serverShutdownTimeout = 15 * time.Second
	otelShutdownTimeout   = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	profile := os.Getenv("APP_PROFILE")
	if profile == "" {
		return errors.New("APP_PROFILE environment variable is required (e.g. local, dev, qa, prod)")
	}

	// Bootstrap: config, logger, telemetry.
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	ctx := context.Background()
	otel, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	// DI container.
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger)
	do.ProvideValue(injector, otel.metrics)

	registerDependencies(injector, cfg, logger)

	// Resolve the server (eagerly wires the full graph).
	server, err := do.Invoke[*adapthttp.Server](injector)
	if err != nil {
		return fmt.Errorf("resolving server: %w", err)
	}

	// Register health checkers after the graph is wired.
	healthRegistry := do.MustInvoke[ports.HealthRegistry](injector)
	healthRegistry.Register(do.MustInvoke[*supervisor.Client](injector))
	if cfg.Store.Enabled {
		healthRegistry.Register(do.MustInvoke[*store.SQLiteStore](injector))
	}

	// Restore persisted state, then start the orchestration loops (ledger
	// sweeps, health event fan-in, periodic snapshot flush).
	orch := do.MustInvoke[*app.Orchestrator](injector)
	if err := orch.Restore(ctx); err != nil {
		return fmt.Errorf("restoring snapshot: %w", err)
	}

	orchCtx, orchCancel := context.WithCancel(context.Background())
	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		orch.Run(orchCtx)
	}()

	// Start server in background.
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for shutdown signal or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	if runErr == nil {
		// Graceful shutdown: drain HTTP requests.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}

		// Wait for Start() goroutine to return.
		<-serverErr
	}

	// Stop the orchestration loops. Run saves a final snapshot before
	// returning, so the store must stay open until it is done.
	orchCancel()
	<-orchDone

	if cfg.Store.Enabled {
		if err := do.MustInvoke[*store.SQLiteStore](injector).Close(); err != nil {
			logger.Error("snapshot store close error", slog.Any("error", err))
		}
	}

	// Flush telemetry.
	otelCtx, otelCancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
	defer otelCancel()

	if err := otel.Shutdown(otelCtx); err != nil {
		logger.Error("telemetry shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return runErr
}

// otelProviders bundles OpenTelemetry provider lifecycle. All fields are nil
// when telemetry is disabled.
type otelProviders struct {
	tracer  *sdktrace.TracerProvider
	meter   *sdkmetric.MeterProvider
	metrics *telemetry.Metrics
}

// Shutdown flushes both providers. Nil-safe.
func (o *otelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tracer != nil {
		if err := o.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if o.meter != nil {
		if err := o.meter.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func initTelemetry(ctx context.Context, cfg *config.Config) (*otelProviders, error) {
	if !cfg.Telemetry.Enabled {
		return &otelProviders{}, nil
	}

	tp, err := telemetry.InitTracer(ctx,
		cfg.Telemetry.ServiceName,
		cfg.Telemetry.Exporter,
		cfg.Telemetry.Endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	mp, err := telemetry.InitMeter(ctx,
		cfg.Telemetry.ServiceName,
		cfg.Telemetry.Exporter,
		cfg.Telemetry.Endpoint,
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("init meter: %w", err)
	}

	metrics, err := telemetry.NewMetrics(mp, cfg.Telemetry.ServiceName)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, fmt.Errorf("creating metrics: %w", err)
	}

	return &otelProviders{
		tracer:  tp,
		meter:   mp,
		metrics: metrics,
	}, nil
}

func registerDependencies(injector *do.RootScope, cfg *config.Config, logger *slog.Logger) {
	do.Provide(injector, func(i do.Injector) (*ledger.Ledger, error) {
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		return ledger.New(ledger.Config{
			Pools:            cfg.Ledger.Pools,
			AllocationWait:   cfg.Ledger.AllocationWait,
			RecycleInterval:  cfg.Ledger.RecycleInterval,
			LeakScanInterval: cfg.Ledger.LeakScanInterval,
			LeakScanWorkers:  cfg.Ledger.LeakScanWorkers,
		}, logger, ledger.WithMetrics(metrics)), nil
	})

	do.Provide(injector, func(i do.Injector) (*registry.Registry, error) {
		led := do.MustInvoke[*ledger.Ledger](i)
		return registry.New(led, logger), nil
	})

	do.Provide(injector, func(i do.Injector) (*monitor.Monitor, error) {
		reg := do.MustInvoke[*registry.Registry](i)
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		return monitor.New(monitor.Config{
			ProbeHost:        cfg.Monitor.ProbeHost,
			ProbeTimeout:     cfg.Monitor.ProbeTimeout,
			PollInterval:     cfg.Monitor.PollInterval,
			PollIntervals:    cfg.Monitor.PollIntervals,
			StartupGrace:     cfg.Monitor.StartupGrace,
			StartupFailures:  cfg.Monitor.StartupFailures,
			DegradedFailures: cfg.Monitor.DegradedFailures,
			FailingFailures:  cfg.Monitor.FailingFailures,
			LatencyThreshold: cfg.Monitor.LatencyThreshold,
			EventWindow:      cfg.Monitor.EventWindow,
			EventBuffer:      cfg.Monitor.EventBuffer,
		}, probe.NewTCPProber(), reg, reg, logger, metrics), nil
	})

	do.Provide(injector, func(i do.Injector) (*httpclient.Client, error) {
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		return httpclient.New(&cfg.Supervisor, "supervisor", metrics, logger), nil
	})

	do.Provide(injector, func(i do.Injector) (*supervisor.Client, error) {
		client := do.MustInvoke[*httpclient.Client](i)
		return supervisor.New(client, logger), nil
	})

	do.Provide(injector, func(i do.Injector) (*healer.Healer, error) {
		sup := do.MustInvoke[*supervisor.Client](i)
		reg := do.MustInvoke[*registry.Registry](i)
		led := do.MustInvoke[*ledger.Ledger](i)
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		return healer.New(healer.Config{
			BackoffBase:    cfg.Healer.BackoffBase,
			BackoffCap:     cfg.Healer.BackoffCap,
			RestartCeiling: cfg.Healer.RestartCeiling,
			RestartWindow:  cfg.Healer.RestartWindow,
			AttemptTimeout: cfg.Healer.AttemptTimeout,
		}, sup, reg, reg, led, logger, metrics), nil
	})

	if cfg.Store.Enabled {
		do.Provide(injector, func(_ do.Injector) (*store.SQLiteStore, error) {
			return store.Open(cfg.Store.Path)
		})
	}

	do.Provide(injector, func(i do.Injector) (*app.Orchestrator, error) {
		led := do.MustInvoke[*ledger.Ledger](i)
		reg := do.MustInvoke[*registry.Registry](i)
		mon := do.MustInvoke[*monitor.Monitor](i)
		heal := do.MustInvoke[*healer.Healer](i)

		var snap ports.SnapshotStore
		if cfg.Store.Enabled {
			s, err := do.Invoke[*store.SQLiteStore](i)
			if err != nil {
				return nil, fmt.Errorf("opening snapshot store: %w", err)
			}
			snap = s
		}

		return app.NewOrchestrator(led, reg, mon, heal, snap, cfg.Store.FlushInterval, logger), nil
	})

	do.Provide(injector, func(_ do.Injector) (ports.HealthRegistry, error) {
		return health.New(), nil
	})

	do.Provide(injector, func(i do.Injector) (*handlers.ServiceHandler, error) {
		orch := do.MustInvoke[*app.Orchestrator](i)
		return handlers.NewServiceHandler(orch), nil
	})

	do.Provide(injector, func(i do.Injector) (*handlers.PortHandler, error) {
		orch := do.MustInvoke[*app.Orchestrator](i)
		return handlers.NewPortHandler(orch), nil
	})

	do.Provide(injector, func(i do.Injector) (*handlers.HealthHandler, error) {
		reg := do.MustInvoke[ports.HealthRegistry](i)
		return handlers.NewHealthHandler(reg), nil
	})

	do.Provide(injector, func(i do.Injector) (nethttp.Handler, error) {
		serviceH := do.MustInvoke[*handlers.ServiceHandler](i)
		portH := do.MustInvoke[*handlers.PortHandler](i)
		healthH := do.MustInvoke[*handlers.HealthHandler](i)
		metrics := do.MustInvoke[*telemetry.Metrics](i)

		return adapthttp.NewRouter(serviceH, portH, healthH,
			middleware.Recovery(logger),
			middleware.RequestID(),
			middleware.CorrelationID(),
			middleware.OpenTelemetry(metrics),
			middleware.Logging(logger),
			middleware.Timeout(cfg.Server.WriteTimeout),
		), nil
	})

	do.Provide(injector, func(i do.Injector) (*adapthttp.Server, error) {
		handler := do.MustInvoke[nethttp.Handler](i)
		return adapthttp.NewServer(cfg.Server, handler, logger), nil
	})
}
