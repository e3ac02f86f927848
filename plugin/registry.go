package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/types"
)

// DefaultTimeout bounds each hook call.
const DefaultTimeout = 5 * time.Second

// Registry holds registered plugins and dispatches hooks to them. Hook
// implementations are discovered once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit              []OnInit
	onShutdown          []OnShutdown
	onStakeCreated      []OnStakeCreated
	onRewardsClaimed    []OnRewardsClaimed
	onUnstaked          []OnUnstaked
	onProposalCreated   []OnProposalCreated
	onVoteCast          []OnVoteCast
	onProposalFinalized []OnProposalFinalized
	onTemplateListed    []OnTemplateListed
	onTemplatePurchased []OnTemplatePurchased
	onTemplateRated     []OnTemplateRated
	onTokensBurned      []OnTokensBurned
	onRejected          []OnOperationRejected
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin and caches the hooks it implements. Names must
// be unique.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnStakeCreated); ok {
		r.onStakeCreated = append(r.onStakeCreated, v)
	}
	if v, ok := p.(OnRewardsClaimed); ok {
		r.onRewardsClaimed = append(r.onRewardsClaimed, v)
	}
	if v, ok := p.(OnUnstaked); ok {
		r.onUnstaked = append(r.onUnstaked, v)
	}
	if v, ok := p.(OnProposalCreated); ok {
		r.onProposalCreated = append(r.onProposalCreated, v)
	}
	if v, ok := p.(OnVoteCast); ok {
		r.onVoteCast = append(r.onVoteCast, v)
	}
	if v, ok := p.(OnProposalFinalized); ok {
		r.onProposalFinalized = append(r.onProposalFinalized, v)
	}
	if v, ok := p.(OnTemplateListed); ok {
		r.onTemplateListed = append(r.onTemplateListed, v)
	}
	if v, ok := p.(OnTemplatePurchased); ok {
		r.onTemplatePurchased = append(r.onTemplatePurchased, v)
	}
	if v, ok := p.(OnTemplateRated); ok {
		r.onTemplateRated = append(r.onTemplateRated, v)
	}
	if v, ok := p.(OnTokensBurned); ok {
		r.onTokensBurned = append(r.onTokensBurned, v)
	}
	if v, ok := p.(OnOperationRejected); ok {
		r.onRejected = append(r.onRejected, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", implementedHooks(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnStakeCreated", reflect.TypeFor[OnStakeCreated]()},
	{"OnRewardsClaimed", reflect.TypeFor[OnRewardsClaimed]()},
	{"OnUnstaked", reflect.TypeFor[OnUnstaked]()},
	{"OnProposalCreated", reflect.TypeFor[OnProposalCreated]()},
	{"OnVoteCast", reflect.TypeFor[OnVoteCast]()},
	{"OnProposalFinalized", reflect.TypeFor[OnProposalFinalized]()},
	{"OnTemplateListed", reflect.TypeFor[OnTemplateListed]()},
	{"OnTemplatePurchased", reflect.TypeFor[OnTemplatePurchased]()},
	{"OnTemplateRated", reflect.TypeFor[OnTemplateRated]()},
	{"OnTokensBurned", reflect.TypeFor[OnTokensBurned]()},
	{"OnOperationRejected", reflect.TypeFor[OnOperationRejected]()},
}

// implementedHooks lists the hook interfaces p implements, for logging.
func implementedHooks(p Plugin) []string {
	var hooks []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			hooks = append(hooks, h.name)
		}
	}
	return hooks
}

// Get returns a plugin by name, or nil.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins in registration order.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission
// ──────────────────────────────────────────────────

// snapshot copies a hook slice under the read lock.
func snapshot[T Plugin](r *Registry, hooks *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(*hooks))
	copy(out, *hooks)
	return out
}

// dispatch calls fn for every plugin in hooks, logging failures.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, hooks []T, fn func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return fn(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit hooks.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	dispatch(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, l)
	})
}

// EmitShutdown calls OnShutdown hooks.
func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitStakeCreated calls OnStakeCreated hooks.
func (r *Registry) EmitStakeCreated(ctx context.Context, pos *staking.Position) {
	dispatch(ctx, r, "OnStakeCreated", snapshot(r, &r.onStakeCreated), func(p OnStakeCreated) error {
		return p.OnStakeCreated(ctx, pos)
	})
}

// EmitRewardsClaimed calls OnRewardsClaimed hooks.
func (r *Registry) EmitRewardsClaimed(ctx context.Context, pos *staking.Position, amount types.Amount) {
	dispatch(ctx, r, "OnRewardsClaimed", snapshot(r, &r.onRewardsClaimed), func(p OnRewardsClaimed) error {
		return p.OnRewardsClaimed(ctx, pos, amount)
	})
}

// EmitUnstaked calls OnUnstaked hooks.
func (r *Registry) EmitUnstaked(ctx context.Context, pos *staking.Position, s staking.Settlement) {
	dispatch(ctx, r, "OnUnstaked", snapshot(r, &r.onUnstaked), func(p OnUnstaked) error {
		return p.OnUnstaked(ctx, pos, s)
	})
}

// EmitProposalCreated calls OnProposalCreated hooks.
func (r *Registry) EmitProposalCreated(ctx context.Context, prop *governance.Proposal) {
	dispatch(ctx, r, "OnProposalCreated", snapshot(r, &r.onProposalCreated), func(p OnProposalCreated) error {
		return p.OnProposalCreated(ctx, prop)
	})
}

// EmitVoteCast calls OnVoteCast hooks.
func (r *Registry) EmitVoteCast(ctx context.Context, v *governance.Vote, prop *governance.Proposal) {
	dispatch(ctx, r, "OnVoteCast", snapshot(r, &r.onVoteCast), func(p OnVoteCast) error {
		return p.OnVoteCast(ctx, v, prop)
	})
}

// EmitProposalFinalized calls OnProposalFinalized hooks.
func (r *Registry) EmitProposalFinalized(ctx context.Context, prop *governance.Proposal) {
	dispatch(ctx, r, "OnProposalFinalized", snapshot(r, &r.onProposalFinalized), func(p OnProposalFinalized) error {
		return p.OnProposalFinalized(ctx, prop)
	})
}

// EmitTemplateListed calls OnTemplateListed hooks.
func (r *Registry) EmitTemplateListed(ctx context.Context, t *marketplace.Template) {
	dispatch(ctx, r, "OnTemplateListed", snapshot(r, &r.onTemplateListed), func(p OnTemplateListed) error {
		return p.OnTemplateListed(ctx, t)
	})
}

// EmitTemplatePurchased calls OnTemplatePurchased hooks.
func (r *Registry) EmitTemplatePurchased(ctx context.Context, purchase *marketplace.Purchase) {
	dispatch(ctx, r, "OnTemplatePurchased", snapshot(r, &r.onTemplatePurchased), func(p OnTemplatePurchased) error {
		return p.OnTemplatePurchased(ctx, purchase)
	})
}

// EmitTemplateRated calls OnTemplateRated hooks.
func (r *Registry) EmitTemplateRated(ctx context.Context, t *marketplace.Template, rater string, rating int) {
	dispatch(ctx, r, "OnTemplateRated", snapshot(r, &r.onTemplateRated), func(p OnTemplateRated) error {
		return p.OnTemplateRated(ctx, t, rater, rating)
	})
}

// EmitTokensBurned calls OnTokensBurned hooks.
func (r *Registry) EmitTokensBurned(ctx context.Context, rec *premium.BurnRecord, st *premium.Status) {
	dispatch(ctx, r, "OnTokensBurned", snapshot(r, &r.onTokensBurned), func(p OnTokensBurned) error {
		return p.OnTokensBurned(ctx, rec, st)
	})
}

// EmitOperationRejected calls OnOperationRejected hooks.
func (r *Registry) EmitOperationRejected(ctx context.Context, op string, opErr error) {
	dispatch(ctx, r, "OnOperationRejected", snapshot(r, &r.onRejected), func(p OnOperationRejected) error {
		return p.OnOperationRejected(ctx, op, opErr)
	})
}

// callWithTimeout runs fn, giving up after the registry timeout or when
// ctx is done. Hooks must never stall a ledger operation.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
