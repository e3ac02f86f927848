// Package leveldb is an embedded, single-process store on goleveldb.
// Records are JSON documents under per-kind key prefixes. One mutex
// serializes writers, and every compound mutation is committed as a single
// leveldb.Batch so a crash never leaves half of it on disk.
package leveldb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

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

// Key prefixes. Pair keys join their parts with a NUL byte.
var (
	prefixPosition = []byte("pos/")
	prefixProposal = []byte("prop/")
	prefixVote     = []byte("vote/")
	prefixTemplate = []byte("tmpl/")
	prefixPurchase = []byte("purch/")
	prefixStatus   = []byte("prem/")
	prefixBurn     = []byte("burn/")
)

// Store implements store.Store on a LevelDB directory.
type Store struct {
	mu       sync.Mutex
	db       *leveldb.DB
	burnSeq  uint64
	closed   bool
	syncMode *opt.WriteOptions
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger/leveldb: open %s: %w", path, err)
	}
	s := &Store{db: db, syncMode: &opt.WriteOptions{Sync: true}}
	if err := s.loadBurnSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) loadBurnSeq() error {
	iter := s.db.NewIterator(util.BytesPrefix(prefixBurn), nil)
	defer iter.Release()
	if iter.Last() {
		key := iter.Key()[len(prefixBurn):]
		if len(key) != 8 {
			return fmt.Errorf("ledger/leveldb: malformed burn key %q", iter.Key())
		}
		s.burnSeq = binary.BigEndian.Uint64(key)
	}
	return iter.Error()
}

func key(prefix []byte, parts ...string) []byte {
	k := append([]byte{}, prefix...)
	for i, p := range parts {
		if i > 0 {
			k = append(k, 0)
		}
		k = append(k, p...)
	}
	return k
}

func burnKey(seq uint64) []byte {
	k := append([]byte{}, prefixBurn...)
	return binary.BigEndian.AppendUint64(k, seq)
}

// get decodes the value at k into v and reports whether it existed.
func (s *Store) get(k []byte, v any) (bool, error) {
	data, err := s.db.Get(k, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, s.wrap(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("ledger/leveldb: decode %q: %w", k, err)
	}
	return true, nil
}

// scan decodes every value under prefix and hands it to fn.
func scan[T any](s *Store, prefix []byte, fn func(*T)) error {
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		v := new(T)
		if err := json.Unmarshal(iter.Value(), v); err != nil {
			return fmt.Errorf("ledger/leveldb: decode %q: %w", iter.Key(), err)
		}
		fn(v)
	}
	return s.wrap(iter.Error())
}

func put(b *leveldb.Batch, k []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ledger/leveldb: encode %q: %w", k, err)
	}
	b.Put(k, data)
	return nil
}

func (s *Store) write(b *leveldb.Batch) error {
	return s.wrap(s.db.Write(b, s.syncMode))
}

// create stores v at k unless the key is taken.
func (s *Store) create(k []byte, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.db.Has(k, nil)
	if err != nil {
		return s.wrap(err)
	}
	if ok {
		return ledger.ErrAlreadyExists
	}
	b := new(leveldb.Batch)
	if err := put(b, k, v); err != nil {
		return err
	}
	return s.write(b)
}

func (s *Store) wrap(err error) error {
	if errors.Is(err, leveldb.ErrClosed) {
		return ledger.ErrStoreClosed
	}
	return err
}

// page applies offset and limit to an already ordered slice.
func page[T any](result []T, offset, limit int) []T {
	start := min(offset, len(result))
	end := len(result)
	if limit > 0 {
		end = min(start+limit, len(result))
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

// ==================== Staking Store ====================

func (s *Store) CreatePosition(_ context.Context, p *staking.Position) error {
	return s.create(key(prefixPosition, p.ID.String()), p)
}

func (s *Store) GetPosition(_ context.Context, positionID id.StakeID) (*staking.Position, error) {
	p := new(staking.Position)
	ok, err := s.get(key(prefixPosition, positionID.String()), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrPositionNotFound
	}
	return p, nil
}

func (s *Store) ListPositions(_ context.Context, opts staking.ListOpts) ([]*staking.Position, error) {
	result := make([]*staking.Position, 0)
	err := scan(s, prefixPosition, func(p *staking.Position) {
		if opts.Staker != "" && p.Staker != opts.Staker {
			return
		}
		if opts.ActiveOnly && !p.IsActive {
			return
		}
		result = append(result, p)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		return before(result[i].StakedAt, result[j].StakedAt, result[i].ID, result[j].ID)
	})
	return page(result, opts.Offset, opts.Limit), nil
}

// updatePosition applies fn to the stored position under the write lock.
func (s *Store) updatePosition(positionID id.StakeID, fn func(*staking.Position) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(prefixPosition, positionID.String())
	p := new(staking.Position)
	ok, err := s.get(k, p)
	if err != nil {
		return err
	}
	if !ok {
		return ledger.ErrPositionNotFound
	}
	if err := fn(p); err != nil {
		return err
	}
	b := new(leveldb.Batch)
	if err := put(b, k, p); err != nil {
		return err
	}
	return s.write(b)
}

func (s *Store) ClaimRewards(_ context.Context, positionID id.StakeID, version int64, amount types.Amount, claimedAt time.Time) error {
	return s.updatePosition(positionID, func(p *staking.Position) error {
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
	})
}

func (s *Store) ClosePosition(_ context.Context, positionID id.StakeID, version int64, rewards types.Amount, closedAt time.Time) error {
	return s.updatePosition(positionID, func(p *staking.Position) error {
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
	})
}

// ==================== Governance Store ====================

func (s *Store) CreateProposal(_ context.Context, p *governance.Proposal) error {
	return s.create(key(prefixProposal, p.ID.String()), p)
}

func (s *Store) GetProposal(_ context.Context, proposalID id.ProposalID) (*governance.Proposal, error) {
	p := new(governance.Proposal)
	ok, err := s.get(key(prefixProposal, proposalID.String()), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrProposalNotFound
	}
	return p, nil
}

func (s *Store) ListProposals(_ context.Context, opts governance.ListOpts) ([]*governance.Proposal, error) {
	result := make([]*governance.Proposal, 0)
	err := scan(s, prefixProposal, func(p *governance.Proposal) {
		if opts.Status != "" && p.Status != opts.Status {
			return
		}
		if opts.Type != "" && p.Type != opts.Type {
			return
		}
		if opts.Creator != "" && p.Creator != opts.Creator {
			return
		}
		result = append(result, p)
	})
	if err != nil {
		return nil, err
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

	vk := key(prefixVote, v.ProposalID.String(), v.Voter)
	voted, err := s.db.Has(vk, nil)
	if err != nil {
		return nil, s.wrap(err)
	}
	if voted {
		return nil, ledger.ErrAlreadyVoted
	}

	pk := key(prefixProposal, v.ProposalID.String())
	p := new(governance.Proposal)
	ok, err := s.get(pk, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrProposalNotFound
	}
	if !p.IsOpen(v.Timestamp) {
		return nil, ledger.ErrVotingClosed
	}

	p.ApplyVote(v, quorum)
	b := new(leveldb.Batch)
	if err := put(b, vk, v); err != nil {
		return nil, err
	}
	if err := put(b, pk, p); err != nil {
		return nil, err
	}
	if err := s.write(b); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) GetVote(_ context.Context, proposalID id.ProposalID, voter string) (*governance.Vote, error) {
	v := new(governance.Vote)
	ok, err := s.get(key(prefixVote, proposalID.String(), voter), v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return v, nil
}

func (s *Store) ListVotes(_ context.Context, opts governance.VoteListOpts) ([]*governance.Vote, error) {
	prefix := prefixVote
	if !opts.ProposalID.IsNil() {
		prefix = append(key(prefixVote, opts.ProposalID.String()), 0)
	}

	result := make([]*governance.Vote, 0)
	err := scan(s, prefix, func(v *governance.Vote) {
		if opts.Voter != "" && v.Voter != opts.Voter {
			return
		}
		result = append(result, v)
	})
	if err != nil {
		return nil, err
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
	err := scan(s, prefixProposal, func(p *governance.Proposal) {
		if !p.HasEnded(now) {
			return
		}
		p.Status = p.Outcome()
		p.Touch(now)
		finalized = append(finalized, p)
	})
	if err != nil {
		return nil, err
	}
	if len(finalized) == 0 {
		return finalized, nil
	}

	b := new(leveldb.Batch)
	for _, p := range finalized {
		if err := put(b, key(prefixProposal, p.ID.String()), p); err != nil {
			return nil, err
		}
	}
	if err := s.write(b); err != nil {
		return nil, err
	}

	sort.Slice(finalized, func(i, j int) bool {
		return before(finalized[i].EndsAt, finalized[j].EndsAt, finalized[i].ID, finalized[j].ID)
	})
	return finalized, nil
}

// ==================== Marketplace Store ====================

func (s *Store) CreateTemplate(_ context.Context, t *marketplace.Template) error {
	return s.create(key(prefixTemplate, t.ID.String()), t)
}

func (s *Store) GetTemplate(_ context.Context, templateID id.TemplateID) (*marketplace.Template, error) {
	t := new(marketplace.Template)
	ok, err := s.get(key(prefixTemplate, templateID.String()), t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrTemplateNotFound
	}
	return t, nil
}

func (s *Store) ListTemplates(_ context.Context, opts marketplace.ListOpts) ([]*marketplace.Template, error) {
	result := make([]*marketplace.Template, 0)
	err := scan(s, prefixTemplate, func(t *marketplace.Template) {
		if opts.Category != "" && t.Category != opts.Category {
			return
		}
		if opts.Creator != "" && t.Creator != opts.Creator {
			return
		}
		if opts.Featured != nil && t.Featured != *opts.Featured {
			return
		}
		if !t.Matches(opts.Query) {
			return
		}
		result = append(result, t)
	})
	if err != nil {
		return nil, err
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

	pk := key(prefixPurchase, p.TemplateID.String(), p.Buyer)
	owned, err := s.db.Has(pk, nil)
	if err != nil {
		return s.wrap(err)
	}
	if owned {
		return ledger.ErrAlreadyOwned
	}

	tk := key(prefixTemplate, p.TemplateID.String())
	t := new(marketplace.Template)
	ok, err := s.get(tk, t)
	if err != nil {
		return err
	}
	if !ok {
		return ledger.ErrTemplateNotFound
	}
	t.Downloads++
	t.Touch(p.Timestamp)

	b := new(leveldb.Batch)
	if err := put(b, pk, p); err != nil {
		return err
	}
	if err := put(b, tk, t); err != nil {
		return err
	}
	return s.write(b)
}

func (s *Store) GetPurchase(_ context.Context, templateID id.TemplateID, buyer string) (*marketplace.Purchase, error) {
	p := new(marketplace.Purchase)
	ok, err := s.get(key(prefixPurchase, templateID.String(), buyer), p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListPurchases(_ context.Context, opts marketplace.PurchaseListOpts) ([]*marketplace.Purchase, error) {
	prefix := prefixPurchase
	if !opts.TemplateID.IsNil() {
		prefix = append(key(prefixPurchase, opts.TemplateID.String()), 0)
	}

	result := make([]*marketplace.Purchase, 0)
	err := scan(s, prefix, func(p *marketplace.Purchase) {
		if opts.Buyer != "" && p.Buyer != opts.Buyer {
			return
		}
		if opts.Seller != "" && p.Seller != opts.Seller {
			return
		}
		result = append(result, p)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		return before(result[i].Timestamp, result[j].Timestamp, result[i].ID, result[j].ID)
	})
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) RateTemplate(_ context.Context, templateID id.TemplateID, rating int, ratedAt time.Time) (*marketplace.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tk := key(prefixTemplate, templateID.String())
	t := new(marketplace.Template)
	ok, err := s.get(tk, t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrTemplateNotFound
	}
	t.ApplyRating(rating)
	t.Touch(ratedAt)

	b := new(leveldb.Batch)
	if err := put(b, tk, t); err != nil {
		return nil, err
	}
	if err := s.write(b); err != nil {
		return nil, err
	}
	return t, nil
}

// ==================== Premium Store ====================

func (s *Store) GetStatus(_ context.Context, wallet string) (*premium.Status, error) {
	st := new(premium.Status)
	ok, err := s.get(key(prefixStatus, wallet), st)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ledger.ErrStatusNotFound
	}
	return st, nil
}

func (s *Store) ApplyBurn(_ context.Context, rec *premium.BurnRecord, apply premium.ApplyFunc) (*premium.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sk := key(prefixStatus, rec.Wallet)
	var current *premium.Status
	stored := new(premium.Status)
	ok, err := s.get(sk, stored)
	if err != nil {
		return nil, err
	}
	if ok {
		current = stored
	}

	next, err := apply(current)
	if err != nil {
		return nil, err
	}

	seq := s.burnSeq + 1
	b := new(leveldb.Batch)
	if err := put(b, sk, next); err != nil {
		return nil, err
	}
	if err := put(b, burnKey(seq), rec); err != nil {
		return nil, err
	}
	if err := s.write(b); err != nil {
		return nil, err
	}
	s.burnSeq = seq

	out := *next
	return &out, nil
}

func (s *Store) ListBurns(_ context.Context, opts premium.BurnListOpts) ([]*premium.BurnRecord, error) {
	iter := s.db.NewIterator(util.BytesPrefix(prefixBurn), nil)
	defer iter.Release()

	result := make([]*premium.BurnRecord, 0)
	// Newest first: keys carry the commit sequence.
	for ok := iter.Last(); ok; ok = iter.Prev() {
		rec := new(premium.BurnRecord)
		if err := json.Unmarshal(iter.Value(), rec); err != nil {
			return nil, fmt.Errorf("ledger/leveldb: decode %q: %w", iter.Key(), err)
		}
		if opts.Wallet != "" && rec.Wallet != opts.Wallet {
			continue
		}
		result = append(result, rec)
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, s.wrap(err)
	}
	return result, nil
}

func (s *Store) SumBurned(_ context.Context) (types.Amount, error) {
	var total types.Amount
	err := scan(s, prefixBurn, func(rec *premium.BurnRecord) {
		total = total.SaturatingAdd(rec.Amount)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ==================== Store management ====================

// Migrate is a no-op: LevelDB is schemaless.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the database is still open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ledger.ErrStoreClosed
	}
	return nil
}

// Close closes the database. Calling it again is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
