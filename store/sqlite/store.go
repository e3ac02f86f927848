package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	ledgerstore "github.com/zkrune/tokenledger/store"
	"github.com/zkrune/tokenledger/types"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Open connects to the SQLite database at path. The pool is limited to a
// single connection so that writers queue in Go instead of failing with
// SQLITE_BUSY.
func Open(ctx context.Context, path string) (*Store, error) {
	drv := sqlitedriver.New()
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)"
	if err := drv.Open(ctx, dsn, driver.WithPoolSize(1)); err != nil {
		return nil, fmt.Errorf("ledger/sqlite: open %s: %w", path, err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("ledger/sqlite: open %s: %w", path, err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("ledger/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("ledger/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// inTx runs fn inside a transaction and commits if it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlitedriver.SqliteTx) error) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger/sqlite: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback() //nolint:errcheck // the fn error is what matters
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ledger.ErrTransactionFailed, err)
	}
	return nil
}

// page applies limit and offset. SQLite rejects OFFSET without LIMIT.
func page(q *sqlitedriver.SelectQuery, limit, offset int) *sqlitedriver.SelectQuery {
	if limit > 0 {
		q = q.Limit(limit)
	} else if offset > 0 {
		q = q.Limit(math.MaxInt32)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

func rowsAffected(res driver.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ledger/sqlite: rows affected: %w", err)
	}
	return n, nil
}

// ==================== Position Store ====================

func (s *Store) CreatePosition(ctx context.Context, p *staking.Position) error {
	m := toPositionModel(p)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetPosition(ctx context.Context, positionID id.StakeID) (*staking.Position, error) {
	m := new(positionModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", positionID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, ledger.ErrPositionNotFound
		}
		return nil, err
	}
	return fromPositionModel(m)
}

func (s *Store) ListPositions(ctx context.Context, opts staking.ListOpts) ([]*staking.Position, error) {
	var models []positionModel
	q := s.sdb.NewSelect(&models)

	if opts.Staker != "" {
		q = q.Where("staker = ?", opts.Staker)
	}
	if opts.ActiveOnly {
		q = q.Where("is_active = 1")
	}
	q = q.OrderExpr("staked_at ASC, id ASC")
	q = page(q, opts.Limit, opts.Offset)

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*staking.Position, len(models))
	for i := range models {
		p, err := fromPositionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// positionState explains why a conditional position update matched no row.
func positionState(ctx context.Context, tx *sqlitedriver.SqliteTx, positionID id.StakeID) (*positionModel, error) {
	m := new(positionModel)
	err := tx.NewSelect(m).Where("id = ?", positionID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, ledger.ErrPositionNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *Store) ClaimRewards(ctx context.Context, positionID id.StakeID, version int64, amount types.Amount, claimedAt time.Time) error {
	return s.inTx(ctx, func(tx *sqlitedriver.SqliteTx) error {
		res, err := tx.NewUpdate(&positionModel{}).
			Set("last_claim_at = ?", claimedAt.UTC()).
			Set("total_claimed = total_claimed + ?", amount.Units()).
			Set("version = version + 1").
			Set("updated_at = ?", claimedAt.UTC()).
			Where("id = ?", positionID.String()).
			Where("is_active = 1").
			Where("version = ?", version).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := rowsAffected(res)
		if err != nil || n == 1 {
			return err
		}

		m, err := positionState(ctx, tx, positionID)
		if err != nil {
			return err
		}
		if !m.IsActive {
			return ledger.ErrInactive
		}
		return ledger.ErrNothingToClaim
	})
}

func (s *Store) ClosePosition(ctx context.Context, positionID id.StakeID, version int64, rewards types.Amount, closedAt time.Time) error {
	return s.inTx(ctx, func(tx *sqlitedriver.SqliteTx) error {
		res, err := tx.NewUpdate(&positionModel{}).
			Set("is_active = 0").
			Set("total_claimed = total_claimed + ?", rewards.Units()).
			Set("version = version + 1").
			Set("updated_at = ?", closedAt.UTC()).
			Where("id = ?", positionID.String()).
			Where("is_active = 1").
			Where("version = ?", version).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := rowsAffected(res)
		if err != nil || n == 1 {
			return err
		}

		m, err := positionState(ctx, tx, positionID)
		if err != nil {
			return err
		}
		if !m.IsActive {
			return ledger.ErrAlreadyInactive
		}
		return ledger.ErrPositionChanged
	})
}

// ==================== Governance Store ====================

func (s *Store) CreateProposal(ctx context.Context, p *governance.Proposal) error {
	m := toProposalModel(p)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetProposal(ctx context.Context, proposalID id.ProposalID) (*governance.Proposal, error) {
	return getProposal(ctx, s.sdb.NewSelect, proposalID)
}

// getProposal reads a proposal through either the pool or a transaction.
func getProposal(ctx context.Context, newSelect func(...any) *sqlitedriver.SelectQuery, proposalID id.ProposalID) (*governance.Proposal, error) {
	m := new(proposalModel)
	err := newSelect(m).
		Where("id = ?", proposalID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, ledger.ErrProposalNotFound
		}
		return nil, err
	}
	return fromProposalModel(m)
}

func (s *Store) ListProposals(ctx context.Context, opts governance.ListOpts) ([]*governance.Proposal, error) {
	var models []proposalModel
	q := s.sdb.NewSelect(&models)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Type != "" {
		q = q.Where("type = ?", string(opts.Type))
	}
	if opts.Creator != "" {
		q = q.Where("creator = ?", opts.Creator)
	}
	q = q.OrderExpr("created_at DESC, id DESC")
	q = page(q, opts.Limit, opts.Offset)

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*governance.Proposal, len(models))
	for i := range models {
		p, err := fromProposalModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) RecordVote(ctx context.Context, v *governance.Vote, quorum types.Amount) (*governance.Proposal, error) {
	var updated *governance.Proposal
	err := s.inTx(ctx, func(tx *sqlitedriver.SqliteTx) error {
		if _, err := getVote(ctx, tx.NewSelect, v.ProposalID, v.Voter); err == nil {
			return ledger.ErrAlreadyVoted
		} else if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		p, err := getProposal(ctx, tx.NewSelect, v.ProposalID)
		if err != nil {
			return err
		}
		if !p.IsOpen(v.Timestamp) {
			return ledger.ErrVotingClosed
		}

		res, err := tx.NewInsert(toVoteModel(v)).
			OnConflict("(proposal_id, voter) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := rowsAffected(res); err != nil {
			return err
		} else if n == 0 {
			return ledger.ErrAlreadyVoted
		}

		p.ApplyVote(v, quorum)
		res, err = tx.NewUpdate(&proposalModel{}).
			Set("votes_for = ?", p.VotesFor.Units()).
			Set("votes_against = ?", p.VotesAgainst.Units()).
			Set("voter_count = ?", p.VoterCount).
			Set("quorum_reached = ?", p.QuorumReached).
			Set("updated_at = ?", p.UpdatedAt.UTC()).
			Where("id = ?", p.ID.String()).
			Where("status = ?", string(governance.StatusActive)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := rowsAffected(res); err != nil {
			return err
		} else if n == 0 {
			return ledger.ErrVotingClosed
		}

		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) GetVote(ctx context.Context, proposalID id.ProposalID, voter string) (*governance.Vote, error) {
	return getVote(ctx, s.sdb.NewSelect, proposalID, voter)
}

func getVote(ctx context.Context, newSelect func(...any) *sqlitedriver.SelectQuery, proposalID id.ProposalID, voter string) (*governance.Vote, error) {
	m := new(voteModel)
	err := newSelect(m).
		Where("proposal_id = ?", proposalID.String()).
		Where("voter = ?", voter).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return fromVoteModel(m)
}

func (s *Store) ListVotes(ctx context.Context, opts governance.VoteListOpts) ([]*governance.Vote, error) {
	var models []voteModel
	q := s.sdb.NewSelect(&models)

	if !opts.ProposalID.IsNil() {
		q = q.Where("proposal_id = ?", opts.ProposalID.String())
	}
	if opts.Voter != "" {
		q = q.Where("voter = ?", opts.Voter)
	}
	q = q.OrderExpr("timestamp ASC, id ASC")
	q = page(q, opts.Limit, opts.Offset)

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*governance.Vote, len(models))
	for i := range models {
		v, err := fromVoteModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

func (s *Store) FinalizeProposals(ctx context.Context, now time.Time) ([]*governance.Proposal, error) {
	var finalized []*governance.Proposal
	err := s.inTx(ctx, func(tx *sqlitedriver.SqliteTx) error {
		var models []proposalModel
		err := tx.NewSelect(&models).
			Where("status = ?", string(governance.StatusActive)).
			Where("ends_at <= ?", now.UTC()).
			OrderExpr("ends_at ASC, id ASC").
			Scan(ctx)
		if err != nil {
			return err
		}

		finalized = make([]*governance.Proposal, 0, len(models))
		for i := range models {
			p, err := fromProposalModel(&models[i])
			if err != nil {
				return err
			}
			p.Status = p.Outcome()
			p.Touch(now)

			res, err := tx.NewUpdate(&proposalModel{}).
				Set("status = ?", string(p.Status)).
				Set("updated_at = ?", p.UpdatedAt.UTC()).
				Where("id = ?", p.ID.String()).
				Where("status = ?", string(governance.StatusActive)).
				Exec(ctx)
			if err != nil {
				return err
			}
			if n, err := rowsAffected(res); err != nil {
				return err
			} else if n == 1 {
				finalized = append(finalized, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finalized, nil
}

// ==================== Marketplace Store ====================

func (s *Store) CreateTemplate(ctx context.Context, t *marketplace.Template) error {
	m := toTemplateModel(t)
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetTemplate(ctx context.Context, templateID id.TemplateID) (*marketplace.Template, error) {
	return getTemplate(ctx, s.sdb.NewSelect, templateID)
}

func getTemplate(ctx context.Context, newSelect func(...any) *sqlitedriver.SelectQuery, templateID id.TemplateID) (*marketplace.Template, error) {
	m := new(templateModel)
	err := newSelect(m).
		Where("id = ?", templateID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, ledger.ErrTemplateNotFound
		}
		return nil, err
	}
	return fromTemplateModel(m)
}

func (s *Store) ListTemplates(ctx context.Context, opts marketplace.ListOpts) ([]*marketplace.Template, error) {
	var models []templateModel
	q := s.sdb.NewSelect(&models)

	if opts.Category != "" {
		q = q.Where("category = ?", string(opts.Category))
	}
	if opts.Creator != "" {
		q = q.Where("creator = ?", opts.Creator)
	}
	if opts.Featured != nil {
		q = q.Where("featured = ?", *opts.Featured)
	}
	if query := strings.ToLower(strings.TrimSpace(opts.Query)); query != "" {
		q = q.Where("instr(search_text, ?) > 0", query)
	}
	q = q.OrderExpr("created_at DESC, id DESC")
	q = page(q, opts.Limit, opts.Offset)

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*marketplace.Template, len(models))
	for i := range models {
		t, err := fromTemplateModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

func (s *Store) RecordPurchase(ctx context.Context, p *marketplace.Purchase) error {
	return s.inTx(ctx, func(tx *sqlitedriver.SqliteTx) error {
		if _, err := getTemplate(ctx, tx.NewSelect, p.TemplateID); err != nil {
			return err
		}

		res, err := tx.NewInsert(toPurchaseModel(p)).
			OnConflict("(template_id, buyer) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := rowsAffected(res); err != nil {
			return err
		} else if n == 0 {
			return ledger.ErrAlreadyOwned
		}

		_, err = tx.NewUpdate(&templateModel{}).
			Set("downloads = downloads + 1").
			Set("updated_at = ?", p.Timestamp.UTC()).
			Where("id = ?", p.TemplateID.String()).
			Exec(ctx)
		return err
	})
}

func (s *Store) GetPurchase(ctx context.Context, templateID id.TemplateID, buyer string) (*marketplace.Purchase, error) {
	m := new(purchaseModel)
	err := s.sdb.NewSelect(m).
		Where("template_id = ?", templateID.String()).
		Where("buyer = ?", buyer).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return fromPurchaseModel(m)
}

func (s *Store) ListPurchases(ctx context.Context, opts marketplace.PurchaseListOpts) ([]*marketplace.Purchase, error) {
	var models []purchaseModel
	q := s.sdb.NewSelect(&models)

	if !opts.TemplateID.IsNil() {
		q = q.Where("template_id = ?", opts.TemplateID.String())
	}
	if opts.Buyer != "" {
		q = q.Where("buyer = ?", opts.Buyer)
	}
	if opts.Seller != "" {
		q = q.Where("seller = ?", opts.Seller)
	}
	q = q.OrderExpr("timestamp ASC, id ASC")
	q = page(q, opts.Limit, opts.Offset)

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*marketplace.Purchase, len(models))
	for i := range models {
		p, err := fromPurchaseModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) RateTemplate(ctx context.Context, templateID id.TemplateID, rating int, ratedAt time.Time) (*marketplace.Template, error) {
	var rated *marketplace.Template
	err := s.inTx(ctx, func(tx *sqlitedriver.SqliteTx) error {
		t, err := getTemplate(ctx, tx.NewSelect, templateID)
		if err != nil {
			return err
		}
		t.ApplyRating(rating)
		t.Touch(ratedAt)

		_, err = tx.NewUpdate(&templateModel{}).
			Set("rating = ?", t.Rating).
			Set("rating_count = ?", t.RatingCount).
			Set("updated_at = ?", t.UpdatedAt.UTC()).
			Where("id = ?", templateID.String()).
			Exec(ctx)
		if err != nil {
			return err
		}
		rated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rated, nil
}

// ==================== Premium Store ====================

func (s *Store) GetStatus(ctx context.Context, wallet string) (*premium.Status, error) {
	return getStatus(ctx, s.sdb.NewSelect, wallet)
}

func getStatus(ctx context.Context, newSelect func(...any) *sqlitedriver.SelectQuery, wallet string) (*premium.Status, error) {
	m := new(statusModel)
	err := newSelect(m).
		Where("wallet = ?", wallet).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, ledger.ErrStatusNotFound
		}
		return nil, err
	}
	return fromStatusModel(m), nil
}

func (s *Store) ApplyBurn(ctx context.Context, rec *premium.BurnRecord, apply premium.ApplyFunc) (*premium.Status, error) {
	var next *premium.Status
	err := s.inTx(ctx, func(tx *sqlitedriver.SqliteTx) error {
		current, err := getStatus(ctx, tx.NewSelect, rec.Wallet)
		if err != nil && !errors.Is(err, ledger.ErrStatusNotFound) {
			return err
		}

		next, err = apply(current)
		if err != nil {
			return err
		}

		m := toStatusModel(next)
		if current == nil {
			_, err = tx.NewInsert(m).Exec(ctx)
		} else {
			_, err = tx.NewUpdate(m).WherePK().Exec(ctx)
		}
		if err != nil {
			return err
		}

		_, err = tx.NewInsert(toBurnModel(rec)).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Store) ListBurns(ctx context.Context, opts premium.BurnListOpts) ([]*premium.BurnRecord, error) {
	var models []burnModel
	q := s.sdb.NewSelect(&models)

	if opts.Wallet != "" {
		q = q.Where("wallet = ?", opts.Wallet)
	}
	q = q.OrderExpr("timestamp DESC, rowid DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*premium.BurnRecord, len(models))
	for i := range models {
		b, err := fromBurnModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = b
	}
	return result, nil
}

func (s *Store) SumBurned(ctx context.Context) (types.Amount, error) {
	var total int64
	err := s.sdb.NewRaw(`SELECT COALESCE(SUM(amount), 0) FROM ledger_burns`).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return types.Amount(total), nil
}

// ==================== Helpers ====================

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
