package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
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

// Store implements store.Store using PostgreSQL via Grove ORM.
//
// Compound writes run in READ COMMITTED transactions that lock the row they
// depend on (SELECT ... FOR UPDATE, or an advisory lock for premium wallets
// that may not have a row yet), so concurrent callers queue instead of
// failing with serialization errors.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// Open connects to PostgreSQL using a pgx connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	drv := pgdriver.New()
	if err := drv.Open(ctx, dsn); err != nil {
		return nil, fmt.Errorf("ledger/postgres: open: %w", err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("ledger/postgres: open: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("ledger/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("ledger/postgres: migration failed: %w", err)
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

func (s *Store) inTx(ctx context.Context, fn func(tx *pgdriver.PgTx) error) error {
	tx, err := s.pg.BeginTxQuery(ctx, &driver.TxOptions{IsolationLevel: driver.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("ledger/postgres: begin: %w", err)
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

func affected(res driver.Result) (int64, error) {
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return rows, nil
}

// ==================== Position Store ====================

func (s *Store) CreatePosition(ctx context.Context, p *staking.Position) error {
	m := toPositionModel(p)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetPosition(ctx context.Context, positionID id.StakeID) (*staking.Position, error) {
	m := new(positionModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", positionID.String()).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Staker != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("staker = $%d", argIdx), opts.Staker)
	}
	if opts.ActiveOnly {
		q = q.Where("is_active")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("staked_at ASC, id ASC")

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

func lockPosition(ctx context.Context, tx *pgdriver.PgTx, positionID id.StakeID) (*positionModel, error) {
	m := new(positionModel)
	err := tx.NewSelect(m).
		Where("id = $1", positionID.String()).
		ForUpdate().
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, ledger.ErrPositionNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *Store) ClaimRewards(ctx context.Context, positionID id.StakeID, version int64, amount types.Amount, claimedAt time.Time) error {
	return s.inTx(ctx, func(tx *pgdriver.PgTx) error {
		m, err := lockPosition(ctx, tx, positionID)
		if err != nil {
			return err
		}
		if !m.IsActive {
			return ledger.ErrInactive
		}
		if m.Version != version {
			return ledger.ErrNothingToClaim
		}

		_, err = tx.NewUpdate(&positionModel{}).
			Set("last_claim_at = ?", claimedAt).
			Set("total_claimed = total_claimed + ?", amount.Units()).
			Set("version = version + 1").
			Set("updated_at = ?", claimedAt).
			Where("id = ?", positionID.String()).
			Exec(ctx)
		return err
	})
}

func (s *Store) ClosePosition(ctx context.Context, positionID id.StakeID, version int64, rewards types.Amount, closedAt time.Time) error {
	return s.inTx(ctx, func(tx *pgdriver.PgTx) error {
		m, err := lockPosition(ctx, tx, positionID)
		if err != nil {
			return err
		}
		if !m.IsActive {
			return ledger.ErrAlreadyInactive
		}
		if m.Version != version {
			return ledger.ErrPositionChanged
		}

		_, err = tx.NewUpdate(&positionModel{}).
			Set("is_active = FALSE").
			Set("total_claimed = total_claimed + ?", rewards.Units()).
			Set("version = version + 1").
			Set("updated_at = ?", closedAt).
			Where("id = ?", positionID.String()).
			Exec(ctx)
		return err
	})
}

// ==================== Governance Store ====================

func (s *Store) CreateProposal(ctx context.Context, p *governance.Proposal) error {
	m := toProposalModel(p)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetProposal(ctx context.Context, proposalID id.ProposalID) (*governance.Proposal, error) {
	m := new(proposalModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", proposalID.String()).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Type != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("type = $%d", argIdx), string(opts.Type))
	}
	if opts.Creator != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("creator = $%d", argIdx), opts.Creator)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

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
	err := s.inTx(ctx, func(tx *pgdriver.PgTx) error {
		m := new(proposalModel)
		err := tx.NewSelect(m).
			Where("id = $1", v.ProposalID.String()).
			ForUpdate().
			Scan(ctx)
		if err != nil {
			if isNoRows(err) {
				return ledger.ErrProposalNotFound
			}
			return err
		}

		res, err := tx.NewInsert(toVoteModel(v)).
			OnConflict("(proposal_id, voter) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := affected(res); err != nil {
			return err
		} else if n == 0 {
			return ledger.ErrAlreadyVoted
		}

		p, err := fromProposalModel(m)
		if err != nil {
			return err
		}
		// The vote row is rolled back with the transaction.
		if !p.IsOpen(v.Timestamp) {
			return ledger.ErrVotingClosed
		}

		p.ApplyVote(v, quorum)
		_, err = tx.NewUpdate(&proposalModel{}).
			Set("votes_for = ?", p.VotesFor.Units()).
			Set("votes_against = ?", p.VotesAgainst.Units()).
			Set("voter_count = ?", p.VoterCount).
			Set("quorum_reached = ?", p.QuorumReached).
			Set("updated_at = ?", p.UpdatedAt).
			Where("id = ?", p.ID.String()).
			Exec(ctx)
		if err != nil {
			return err
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
	m := new(voteModel)
	err := s.pg.NewSelect(m).
		Where("proposal_id = $1", proposalID.String()).
		Where("voter = $2", voter).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if !opts.ProposalID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("proposal_id = $%d", argIdx), opts.ProposalID.String())
	}
	if opts.Voter != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("voter = $%d", argIdx), opts.Voter)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("timestamp ASC, id ASC")

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
	err := s.inTx(ctx, func(tx *pgdriver.PgTx) error {
		var models []proposalModel
		err := tx.NewSelect(&models).
			Where("status = $1", string(governance.StatusActive)).
			Where("ends_at <= $2", now).
			OrderExpr("ends_at ASC, id ASC").
			ForUpdate().
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

			_, err = tx.NewUpdate(&proposalModel{}).
				Set("status = ?", string(p.Status)).
				Set("updated_at = ?", p.UpdatedAt).
				Where("id = ?", p.ID.String()).
				Exec(ctx)
			if err != nil {
				return err
			}
			finalized = append(finalized, p)
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
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetTemplate(ctx context.Context, templateID id.TemplateID) (*marketplace.Template, error) {
	m := new(templateModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", templateID.String()).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.Category != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("category = $%d", argIdx), string(opts.Category))
	}
	if opts.Creator != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("creator = $%d", argIdx), opts.Creator)
	}
	if opts.Featured != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("featured = $%d", argIdx), *opts.Featured)
	}
	if query := strings.ToLower(strings.TrimSpace(opts.Query)); query != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("strpos(search_text, $%d) > 0", argIdx), query)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

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

func lockTemplate(ctx context.Context, tx *pgdriver.PgTx, templateID id.TemplateID) (*marketplace.Template, error) {
	m := new(templateModel)
	err := tx.NewSelect(m).
		Where("id = $1", templateID.String()).
		ForUpdate().
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, ledger.ErrTemplateNotFound
		}
		return nil, err
	}
	return fromTemplateModel(m)
}

func (s *Store) RecordPurchase(ctx context.Context, p *marketplace.Purchase) error {
	return s.inTx(ctx, func(tx *pgdriver.PgTx) error {
		if _, err := lockTemplate(ctx, tx, p.TemplateID); err != nil {
			return err
		}

		res, err := tx.NewInsert(toPurchaseModel(p)).
			OnConflict("(template_id, buyer) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := affected(res); err != nil {
			return err
		} else if n == 0 {
			return ledger.ErrAlreadyOwned
		}

		_, err = tx.NewUpdate(&templateModel{}).
			Set("downloads = downloads + 1").
			Set("updated_at = ?", p.Timestamp).
			Where("id = ?", p.TemplateID.String()).
			Exec(ctx)
		return err
	})
}

func (s *Store) GetPurchase(ctx context.Context, templateID id.TemplateID, buyer string) (*marketplace.Purchase, error) {
	m := new(purchaseModel)
	err := s.pg.NewSelect(m).
		Where("template_id = $1", templateID.String()).
		Where("buyer = $2", buyer).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if !opts.TemplateID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("template_id = $%d", argIdx), opts.TemplateID.String())
	}
	if opts.Buyer != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("buyer = $%d", argIdx), opts.Buyer)
	}
	if opts.Seller != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("seller = $%d", argIdx), opts.Seller)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("timestamp ASC, id ASC")

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
	err := s.inTx(ctx, func(tx *pgdriver.PgTx) error {
		t, err := lockTemplate(ctx, tx, templateID)
		if err != nil {
			return err
		}
		t.ApplyRating(rating)
		t.Touch(ratedAt)

		_, err = tx.NewUpdate(&templateModel{}).
			Set("rating = ?", t.Rating).
			Set("rating_count = ?", t.RatingCount).
			Set("updated_at = ?", t.UpdatedAt).
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
	m := new(statusModel)
	err := s.pg.NewSelect(m).
		Where("wallet = $1", wallet).
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
	err := s.inTx(ctx, func(tx *pgdriver.PgTx) error {
		// A first burn has no row to lock, so serialize on the wallet.
		if _, err := tx.NewRaw(`SELECT pg_advisory_xact_lock(hashtext($1))`, rec.Wallet).Exec(ctx); err != nil {
			return err
		}

		var current *premium.Status
		m := new(statusModel)
		err := tx.NewSelect(m).
			Where("wallet = $1", rec.Wallet).
			Scan(ctx)
		switch {
		case err == nil:
			current = fromStatusModel(m)
		case !isNoRows(err):
			return err
		}

		next, err = apply(current)
		if err != nil {
			return err
		}

		if current == nil {
			_, err = tx.NewInsert(toStatusModel(next)).Exec(ctx)
		} else {
			_, err = tx.NewUpdate(toStatusModel(next)).WherePK().Exec(ctx)
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
	q := s.pg.NewSelect(&models)

	if opts.Wallet != "" {
		q = q.Where("wallet = $1", opts.Wallet)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("timestamp DESC, seq DESC")

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
	err := s.pg.NewRaw(`SELECT COALESCE(SUM(amount), 0)::BIGINT FROM ledger_burns`).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return types.Amount(total), nil
}

// ==================== Helpers ====================

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
