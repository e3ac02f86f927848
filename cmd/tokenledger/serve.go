package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/api"
	audithook "github.com/zkrune/tokenledger/audit_hook"
	"github.com/zkrune/tokenledger/observability"
	"github.com/zkrune/tokenledger/store"
	"github.com/zkrune/tokenledger/store/leveldb"
	"github.com/zkrune/tokenledger/store/memory"
	"github.com/zkrune/tokenledger/store/mongo"
	"github.com/zkrune/tokenledger/store/postgres"
	"github.com/zkrune/tokenledger/store/sqlite"
)

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := commonRun()
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
		},
	}
	return cmd
}

// openStore connects the configured backend.
func openStore(ctx context.Context, driver, dsn string) (store.Store, error) {
	switch driver {
	case driverMemory, "":
		return memory.New(), nil
	case driverSQLite:
		return sqlite.Open(ctx, dsn)
	case driverPostgres:
		return postgres.Open(ctx, dsn)
	case driverMongo:
		return mongo.Open(ctx, dsn)
	case driverLevelDB:
		return leveldb.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// newLedger builds a ledger with metrics and, if enabled, an audit log.
func newLedger(ctx context.Context, cfg Config, logger *slog.Logger, reg prometheus.Registerer) (*ledger.Ledger, error) {
	s, err := openStore(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}

	opts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithConfig(cfg.Ledger),
		ledger.WithSweepInterval(cfg.SweepInterval),
		ledger.WithPlugin(observability.NewMetricsExtension(
			observability.NewPrometheusFactory(programName, reg),
		)),
	}
	if cfg.Audit {
		opts = append(opts, ledger.WithPlugin(audithook.New(slogRecorder(logger))))
	}
	return ledger.New(s, opts...), nil
}

// slogRecorder writes audit events to the process log.
func slogRecorder(logger *slog.Logger) audithook.Recorder {
	audit := logger.With("component", "audit")
	return audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
		level := slog.LevelInfo
		switch evt.Severity {
		case audithook.SeverityWarning:
			level = slog.LevelWarn
		case audithook.SeverityError, audithook.SeverityCritical:
			level = slog.LevelError
		}
		audit.Log(ctx, level, evt.Action,
			"resource", evt.Resource,
			"resource_id", evt.ResourceID,
			"actor", evt.Actor,
			"category", evt.Category,
			"outcome", evt.Outcome,
			"reason", evt.Reason,
			"metadata", evt.Metadata,
		)
		return nil
	})
}

// newRouter mounts the API and the metrics endpoint.
func newRouter(l *ledger.Ledger, logger *slog.Logger, metricsPath string, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	if metricsPath != "" {
		r.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	api.New(l, api.WithLogger(logger)).RegisterRoutes(r)
	return r
}

func serve(ctx context.Context, cfg Config, logger *slog.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) error {
	l, err := newLedger(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	if err := l.Start(ctx); err != nil {
		_ = l.Stop()
		return err
	}
	defer func() {
		if err := l.Stop(); err != nil {
			logger.Error("failed to stop ledger", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(l, logger, cfg.Server.MetricsPath, gatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
