package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/zkrune/tokenledger/plugin"
	"github.com/zkrune/tokenledger/store"
)

// DefaultSweepInterval is how often ended proposals are finalized when the
// ledger runs its background worker.
const DefaultSweepInterval = time.Minute

// Ledger is the token-economics engine. It is the only holder of the store
// handle and the single entry point for staking, governance, marketplace
// and premium operations.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   Clock
	config  Config

	// Background workers
	stopChan  chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	started   bool

	sweepInterval time.Duration
	skipMigrate   bool
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		clock:         SystemClock(),
		config:        DefaultConfig(),
		stopChan:      make(chan struct{}),
		sweepInterval: DefaultSweepInterval,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithConfig replaces the default economics. Call Config.Validate first;
// New does not.
func WithConfig(cfg Config) Option {
	return func(l *Ledger) {
		l.config = cfg
	}
}

// WithSweepInterval sets how often the background worker finalizes ended
// proposals. Zero or negative disables the worker.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Ledger) {
		l.sweepInterval = d
	}
}

// WithoutMigrate makes Start skip store migration, for deployments that
// manage the schema themselves.
func WithoutMigrate() Option {
	return func(l *Ledger) {
		l.skipMigrate = true
	}
}

// Config returns the economics the ledger runs with.
func (l *Ledger) Config() Config { return l.config }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Start migrates the store, initializes plugins and begins background
// workers. Calling it again is a no-op.
func (l *Ledger) Start(ctx context.Context) error {
	var err error
	l.startOnce.Do(func() {
		// Migrate database
		if !l.skipMigrate {
			if err = l.store.Migrate(ctx); err != nil {
				err = errors.Join(ErrMigrationFailed, err)
				return
			}
		}

		// Initialize plugins
		l.plugins.EmitInit(ctx, l)

		// Start finalize sweep worker
		if l.sweepInterval > 0 {
			l.wg.Add(1)
			go l.sweepWorker(context.WithoutCancel(ctx))
		}
		l.started = true

		l.logger.Info("ledger started",
			"sweep_interval", l.sweepInterval,
			"plugins", l.plugins.Count(),
		)
	})
	return err
}

// Stop shuts down background workers, notifies plugins and closes the
// store. Calling it again is a no-op.
func (l *Ledger) Stop() error {
	var err error
	l.stopOnce.Do(func() {
		close(l.stopChan)
		l.wg.Wait()

		ctx := context.Background()
		if l.started {
			l.plugins.EmitShutdown(ctx)
		}

		err = l.store.Close()
		l.logger.Info("ledger stopped")
	})
	return err
}

// sweepWorker finalizes ended proposals on every tick.
func (l *Ledger) sweepWorker(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return

		case <-ticker.C:
			l.sweep(ctx)
		}
	}
}

func (l *Ledger) sweep(ctx context.Context) {
	start := time.Now()

	finalized, err := l.FinalizeEndedProposals(ctx)
	if err != nil {
		l.logger.Error("failed to finalize proposals", "error", err)
		return
	}
	if len(finalized) == 0 {
		return
	}

	l.logger.Debug("finalized proposals",
		"count", len(finalized),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// now is the ledger's view of the current time.
func (l *Ledger) now() time.Time {
	return l.clock.Now().UTC()
}

// reject reports a refused operation to plugins and returns err unchanged.
func (l *Ledger) reject(ctx context.Context, op string, err error) error {
	l.plugins.EmitOperationRejected(ctx, op, err)
	if IsRetryable(err) {
		l.logger.Error("ledger operation failed", "op", op, "error", err)
	} else {
		l.logger.Debug("ledger operation rejected", "op", op, "error", err)
	}
	return err
}
