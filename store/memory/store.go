// Package memory is an in-process store for tests and single-node
// deployments. All compound mutations run under one mutex, and records are
// copied on the way in and out so callers never share state with the store.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	"github.com/zkrune/tokenledger/store"
	"github.com/zkrune/tokenledger/types"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Staking storage
	positions map[string]*staking.Position

	// Governance storage
	proposals map[string]*governance.Proposal
	votes     map[string]*governance.Vote // keyed by proposal|voter

	// Marketplace storage
	templates map[string]*marketplace.Template
	purchases map[string]*marketplace.Purchase // keyed by template|buyer

	// Premium storage
	statuses map[string]*premium.Status
	burns    []*premium.BurnRecord
}

func New() *Store {
	return &Store{
		positions: make(map[string]*staking.Position),
		proposals: make(map[string]*governance.Proposal),
		votes:     make(map[string]*governance.Vote),
		templates: make(map[string]*marketplace.Template),
		purchases: make(map[string]*marketplace.Purchase),
		statuses:  make(map[string]*premium.Status),
		burns:     make([]*premium.BurnRecord, 0),
	}
}

func pairKey(a id.ID, b string) string { return a.String() + "|" + b }

// page applies offset and limit to an already ordered slice.
func page[T any](result []T, offset, limit int) []T {
	start := offset
	if start > len(result) {
		start = len(result)
	}
	end := start + limit
	if limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[start:end]
}

// before orders by time, then ID, for a stable listing.
func before(a, b time.Time, aID, bID id.ID) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return aID.String() < bID.String()
}

// Staking Store implementation
func (s *Store) CreatePosition(_ context.Context, p *staking.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.positions[p.ID.String()]; exists {
		return ledger.ErrAlreadyExists
	}
	cp := *p
	s.positions[p.ID.String()] = &cp
	return nil
}

func (s *Store) GetPosition(_ context.Context, positionID id.StakeID) (*staking.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.positions[positionID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, ledger.ErrPositionNotFound
}

func (s *Store) ListPositions(_ context.Context, opts staking.ListOpts) ([]*staking.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*staking.Position, 0)
	for _, p := range s.positions {
		if opts.Staker != "" && p.Staker != opts.Staker {
			continue
		}
		if opts.ActiveOnly && !p.IsActive {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return before(result[i].StakedAt, result[j].StakedAt, result[i].ID, result[j].ID)
	})
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ClaimRewards(_ context.Context, positionID id.StakeID, version int64, amount types.Amount, claimedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[positionID.String()]
	if !ok {
		return ledger.ErrPositionNotFound
	}
	if !p.IsActive {
		return ledger.ErrInactive
	}
	if p.Version != version {
		return ledger.ErrNothingToClaim
	}
	p.LastClaimAt = claimedAt
	p.TotalClaimed = p.TotalClaimed.Add(amount)
	p.Version++
	p.Touch(claimedAt)
	return nil
}

func (s *Store) ClosePosition(_ context.Context, positionID id.StakeID, version int64, rewards types.Amount, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[positionID.String()]
	if !ok {
		return ledger.ErrPositionNotFound
	}
	if !p.IsActive {
		return ledger.ErrAlreadyInactive
	}
	if p.Version != version {
		return ledger.ErrPositionChanged
	}
	p.IsActive = false
	p.TotalClaimed = p.TotalClaimed.Add(rewards)
	p.Version++
	p.Touch(closedAt)
	return nil
}

// Governance Store implementation
func (s *Store) CreateProposal(_ context.Context, p *governance.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.proposals[p.ID.String()]; exists {
		return ledger.ErrAlreadyExists
	}
	cp := *p
	s.proposals[p.ID.String()] = &cp
	return nil
}

func (s *Store) GetProposal(_ context.Context, proposalID id.ProposalID) (*governance.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.proposals[proposalID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, ledger.ErrProposalNotFound
}

func (s *Store) ListProposals(_ context.Context, opts governance.ListOpts) ([]*governance.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*governance.Proposal, 0)
	for _, p := range s.proposals {
		if opts.Status != "" && p.Status != opts.Status {
			continue
		}
		if opts.Type != "" && p.Type != opts.Type {
			continue
		}
		if opts.Creator != "" && p.Creator != opts.Creator {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return before(result[j].CreatedAt, result[i].CreatedAt, result[j].ID, result[i].ID)
	})
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) RecordVote(_ context.Context, v *governance.Vote, quorum types.Amount) (*governance.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(v.ProposalID, v.Voter)
	if _, exists := s.votes[key]; exists {
		return nil, ledger.ErrAlreadyVoted
	}
	p, ok := s.proposals[v.ProposalID.String()]
	if !ok {
		return nil, ledger.ErrProposalNotFound
	}
	if !p.IsOpen(v.Timestamp) {
		return nil, ledger.ErrVotingClosed
	}

	cv := *v
	s.votes[key] = &cv
	p.ApplyVote(v, quorum)

	cp := *p
	return &cp, nil
}

func (s *Store) GetVote(_ context.Context, proposalID id.ProposalID, voter string) (*governance.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.votes[pairKey(proposalID, voter)]; ok {
		cv := *v
		return &cv, nil
	}
	return nil, ledger.ErrNotFound
}

func (s *Store) ListVotes(_ context.Context, opts governance.VoteListOpts) ([]*governance.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*governance.Vote, 0)
	for _, v := range s.votes {
		if !opts.ProposalID.IsNil() && v.ProposalID.String() != opts.ProposalID.String() {
			continue
		}
		if opts.Voter != "" && v.Voter != opts.Voter {
			continue
		}
		cv := *v
		result = append(result, &cv)
	}
	sort.Slice(result, func(i, j int) bool {
		return before(result[i].Timestamp, result[j].Timestamp, result[i].ID, result[j].ID)
	})
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) FinalizeProposals(_ context.Context, now time.Time) ([]*governance.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	finalized := make([]*governance.Proposal, 0)
	for _, p := range s.proposals {
		if !p.HasEnded(now) {
			continue
		}
		p.Status = p.Outcome()
		p.Touch(now)
		cp := *p
		finalized = append(finalized, &cp)
	}
	sort.Slice(finalized, func(i, j int) bool {
		return before(finalized[i].EndsAt, finalized[j].EndsAt, finalized[i].ID, finalized[j].ID)
	})
	return finalized, nil
}

// Marketplace Store implementation
func cloneTemplate(t *marketplace.Template) *marketplace.Template {
	cp := *t
	cp.Tags = slices.Clone(t.Tags)
	return &cp
}

func (s *Store) CreateTemplate(_ context.Context, t *marketplace.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[t.ID.String()]; exists {
		return ledger.ErrAlreadyExists
	}
	s.templates[t.ID.String()] = cloneTemplate(t)
	return nil
}

func (s *Store) GetTemplate(_ context.Context, templateID id.TemplateID) (*marketplace.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.templates[templateID.String()]; ok {
		return cloneTemplate(t), nil
	}
	return nil, ledger.ErrTemplateNotFound
}

func (s *Store) ListTemplates(_ context.Context, opts marketplace.ListOpts) ([]*marketplace.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*marketplace.Template, 0)
	for _, t := range s.templates {
		if opts.Category != "" && t.Category != opts.Category {
			continue
		}
		if opts.Creator != "" && t.Creator != opts.Creator {
			continue
		}
		if opts.Featured != nil && t.Featured != *opts.Featured {
			continue
		}
		if !t.Matches(opts.Query) {
			continue
		}
		result = append(result, cloneTemplate(t))
	}
	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return before(result[j].CreatedAt, result[i].CreatedAt, result[j].ID, result[i].ID)
	})
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) RecordPurchase(_ context.Context, p *marketplace.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(p.TemplateID, p.Buyer)
	if _, exists := s.purchases[key]; exists {
		return ledger.ErrAlreadyOwned
	}
	t, ok := s.templates[p.TemplateID.String()]
	if !ok {
		return ledger.ErrTemplateNotFound
	}

	cp := *p
	s.purchases[key] = &cp
	t.Downloads++
	t.Touch(p.Timestamp)
	return nil
}

func (s *Store) GetPurchase(_ context.Context, templateID id.TemplateID, buyer string) (*marketplace.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.purchases[pairKey(templateID, buyer)]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, ledger.ErrNotFound
}

func (s *Store) ListPurchases(_ context.Context, opts marketplace.PurchaseListOpts) ([]*marketplace.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*marketplace.Purchase, 0)
	for _, p := range s.purchases {
		if !opts.TemplateID.IsNil() && p.TemplateID.String() != opts.TemplateID.String() {
			continue
		}
		if opts.Buyer != "" && p.Buyer != opts.Buyer {
			continue
		}
		if opts.Seller != "" && p.Seller != opts.Seller {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return before(result[i].Timestamp, result[j].Timestamp, result[i].ID, result[j].ID)
	})
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) RateTemplate(_ context.Context, templateID id.TemplateID, rating int, ratedAt time.Time) (*marketplace.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[templateID.String()]
	if !ok {
		return nil, ledger.ErrTemplateNotFound
	}
	t.ApplyRating(rating)
	t.Touch(ratedAt)
	return cloneTemplate(t), nil
}

// Premium Store implementation
func (s *Store) GetStatus(_ context.Context, wallet string) (*premium.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.statuses[wallet]; ok {
		cp := *st
		return &cp, nil
	}
	return nil, ledger.ErrStatusNotFound
}

func (s *Store) ApplyBurn(_ context.Context, rec *premium.BurnRecord, apply premium.ApplyFunc) (*premium.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *premium.Status
	if st, ok := s.statuses[rec.Wallet]; ok {
		cp := *st
		current = &cp
	}

	next, err := apply(current)
	if err != nil {
		return nil, err
	}

	stored := *next
	s.statuses[rec.Wallet] = &stored
	cr := *rec
	s.burns = append(s.burns, &cr)

	out := *next
	return &out, nil
}

func (s *Store) ListBurns(_ context.Context, opts premium.BurnListOpts) ([]*premium.BurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*premium.BurnRecord, 0)
	// Newest first: burns are appended in commit order.
	for i := len(s.burns) - 1; i >= 0; i-- {
		b := s.burns[i]
		if opts.Wallet != "" && b.Wallet != opts.Wallet {
			continue
		}
		cb := *b
		result = append(result, &cb)
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
	}
	return result, nil
}

func (s *Store) SumBurned(_ context.Context) (types.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total types.Amount
	for _, b := range s.burns {
		total = total.SaturatingAdd(b.Amount)
	}
	return total, nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
