package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	ledger "github.com/zkrune/tokenledger"
	"github.com/zkrune/tokenledger/governance"
	"github.com/zkrune/tokenledger/id"
	"github.com/zkrune/tokenledger/marketplace"
	"github.com/zkrune/tokenledger/premium"
	"github.com/zkrune/tokenledger/staking"
	ledgerstore "github.com/zkrune/tokenledger/store"
	"github.com/zkrune/tokenledger/types"
)

// Collection name constants.
const (
	colPositions = "ledger_stake_positions"
	colProposals = "ledger_proposals"
	colVotes     = "ledger_votes"
	colTemplates = "ledger_templates"
	colPurchases = "ledger_purchases"
	colStatus    = "ledger_premium_status"
	colBurns     = "ledger_burns"
)

// maxCASAttempts bounds compare-and-swap retries under contention.
const maxCASAttempts = 16

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
//
// It does not need a replica set: every compound write is built from
// single-document atomic updates, unique indexes and compare-and-swap
// on a revision field.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Open connects to MongoDB. The database name is taken from the URI path.
func Open(ctx context.Context, uri string) (*Store, error) {
	drv := mongodriver.New()
	if err := drv.Open(ctx, uri); err != nil {
		return nil, fmt.Errorf("ledger/mongo: open: %w", err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("ledger/mongo: open: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all ledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("ledger/mongo: migrate %s indexes: %w", col, err)
		}
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

// ==================== Position Store ====================

func (s *Store) CreatePosition(ctx context.Context, p *staking.Position) error {
	m := toPositionModel(p)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("ledger/mongo: create position: %w", err)
	}
	return nil
}

func (s *Store) GetPosition(ctx context.Context, positionID id.StakeID) (*staking.Position, error) {
	var m positionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": positionID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ledger.ErrPositionNotFound
		}
		return nil, fmt.Errorf("ledger/mongo: get position: %w", err)
	}
	return fromPositionModel(&m)
}

func (s *Store) ListPositions(ctx context.Context, opts staking.ListOpts) ([]*staking.Position, error) {
	var models []positionModel

	filter := bson.M{}
	if opts.Staker != "" {
		filter["staker"] = opts.Staker
	}
	if opts.ActiveOnly {
		filter["is_active"] = true
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "staked_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("ledger/mongo: list positions: %w", err)
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

func (s *Store) ClaimRewards(ctx context.Context, positionID id.StakeID, version int64, amount types.Amount, claimedAt time.Time) error {
	res, err := s.mdb.NewUpdate((*positionModel)(nil)).
		Filter(bson.M{"_id": positionID.String(), "is_active": true, "version": version}).
		SetUpdate(bson.M{
			"$set": bson.M{"last_claim_at": claimedAt, "updated_at": claimedAt},
			"$inc": bson.M{"total_claimed": amount.Units(), "version": 1},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ledger/mongo: claim rewards: %w", err)
	}
	if res.MatchedCount() == 1 {
		return nil
	}

	p, err := s.GetPosition(ctx, positionID)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return ledger.ErrInactive
	}
	return ledger.ErrNothingToClaim
}

func (s *Store) ClosePosition(ctx context.Context, positionID id.StakeID, version int64, rewards types.Amount, closedAt time.Time) error {
	res, err := s.mdb.NewUpdate((*positionModel)(nil)).
		Filter(bson.M{"_id": positionID.String(), "is_active": true, "version": version}).
		SetUpdate(bson.M{
			"$set": bson.M{"is_active": false, "updated_at": closedAt},
			"$inc": bson.M{"total_claimed": rewards.Units(), "version": 1},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ledger/mongo: close position: %w", err)
	}
	if res.MatchedCount() == 1 {
		return nil
	}

	p, err := s.GetPosition(ctx, positionID)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return ledger.ErrAlreadyInactive
	}
	return ledger.ErrPositionChanged
}

// ==================== Governance Store ====================

func (s *Store) CreateProposal(ctx context.Context, p *governance.Proposal) error {
	m := toProposalModel(p)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("ledger/mongo: create proposal: %w", err)
	}
	return nil
}

func (s *Store) GetProposal(ctx context.Context, proposalID id.ProposalID) (*governance.Proposal, error) {
	var m proposalModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": proposalID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ledger.ErrProposalNotFound
		}
		return nil, fmt.Errorf("ledger/mongo: get proposal: %w", err)
	}
	return fromProposalModel(&m)
}

func (s *Store) ListProposals(ctx context.Context, opts governance.ListOpts) ([]*governance.Proposal, error) {
	var models []proposalModel

	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if opts.Creator != "" {
		filter["creator"] = opts.Creator
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("ledger/mongo: list proposals: %w", err)
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

// RecordVote claims the (proposal, voter) slot through the unique index,
// then applies the weight with a single conditional update. A vote that
// loses the race against the end of the window is removed again.
func (s *Store) RecordVote(ctx context.Context, v *governance.Vote, quorum types.Amount) (*governance.Proposal, error) {
	p, err := s.GetProposal(ctx, v.ProposalID)
	if err != nil {
		return nil, err
	}

	if _, err := s.mdb.NewInsert(toVoteModel(v)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ledger.ErrAlreadyVoted
		}
		return nil, fmt.Errorf("ledger/mongo: insert vote: %w", err)
	}

	if !p.IsOpen(v.Timestamp) {
		s.dropVote(ctx, v)
		return nil, ledger.ErrVotingClosed
	}

	side := "votes_against"
	if v.Support {
		side = "votes_for"
	}
	total := bson.M{"$add": bson.A{"$votes_for", "$votes_against"}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			side:          bson.M{"$add": bson.A{"$" + side, v.Weight.Units()}},
			"voter_count": bson.M{"$add": bson.A{"$voter_count", 1}},
			"updated_at":  v.Timestamp,
		}}},
		{{Key: "$set", Value: bson.M{
			"quorum_reached": bson.M{"$gte": bson.A{total, quorum.Units()}},
		}}},
	}

	var m proposalModel
	err = s.mdb.Collection(colProposals).FindOneAndUpdate(ctx,
		bson.M{
			"_id":     v.ProposalID.String(),
			"status":  string(governance.StatusActive),
			"ends_at": bson.M{"$gt": v.Timestamp},
		},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		s.dropVote(ctx, v)
		if isNoDocuments(err) {
			return nil, ledger.ErrVotingClosed
		}
		return nil, fmt.Errorf("ledger/mongo: tally vote: %w", err)
	}
	return fromProposalModel(&m)
}

// dropVote removes a vote whose tally update did not apply.
func (s *Store) dropVote(ctx context.Context, v *governance.Vote) {
	q := s.mdb.NewDelete((*voteModel)(nil)).Filter(bson.M{"_id": v.ID.String()})
	_, _ = q.Exec(context.WithoutCancel(ctx)) //nolint:errcheck // best-effort compensation
}

func (s *Store) GetVote(ctx context.Context, proposalID id.ProposalID, voter string) (*governance.Vote, error) {
	var m voteModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"proposal_id": proposalID.String(), "voter": voter}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("ledger/mongo: get vote: %w", err)
	}
	return fromVoteModel(&m)
}

func (s *Store) ListVotes(ctx context.Context, opts governance.VoteListOpts) ([]*governance.Vote, error) {
	var models []voteModel

	filter := bson.M{}
	if !opts.ProposalID.IsNil() {
		filter["proposal_id"] = opts.ProposalID.String()
	}
	if opts.Voter != "" {
		filter["voter"] = opts.Voter
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("ledger/mongo: list votes: %w", err)
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
	var models []proposalModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"status":  string(governance.StatusActive),
			"ends_at": bson.M{"$lte": now},
		}).
		Sort(bson.D{{Key: "ends_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger/mongo: find ended proposals: %w", err)
	}

	finalized := make([]*governance.Proposal, 0, len(models))
	for i := range models {
		p, err := fromProposalModel(&models[i])
		if err != nil {
			return nil, err
		}
		p.Status = p.Outcome()
		p.Touch(now)

		res, err := s.mdb.NewUpdate((*proposalModel)(nil)).
			Filter(bson.M{"_id": p.ID.String(), "status": string(governance.StatusActive)}).
			Set("status", string(p.Status)).
			Set("updated_at", p.UpdatedAt).
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("ledger/mongo: finalize proposal: %w", err)
		}
		if res.MatchedCount() == 1 {
			finalized = append(finalized, p)
		}
	}
	return finalized, nil
}

// ==================== Marketplace Store ====================

func (s *Store) CreateTemplate(ctx context.Context, t *marketplace.Template) error {
	m := toTemplateModel(t)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("ledger/mongo: create template: %w", err)
	}
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, templateID id.TemplateID) (*marketplace.Template, error) {
	m, err := s.getTemplateModel(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return fromTemplateModel(m)
}

func (s *Store) getTemplateModel(ctx context.Context, templateID id.TemplateID) (*templateModel, error) {
	var m templateModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": templateID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ledger.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("ledger/mongo: get template: %w", err)
	}
	return &m, nil
}

func (s *Store) ListTemplates(ctx context.Context, opts marketplace.ListOpts) ([]*marketplace.Template, error) {
	var models []templateModel

	filter := bson.M{}
	if opts.Category != "" {
		filter["category"] = string(opts.Category)
	}
	if opts.Creator != "" {
		filter["creator"] = opts.Creator
	}
	if opts.Featured != nil {
		filter["featured"] = *opts.Featured
	}
	if query := strings.ToLower(strings.TrimSpace(opts.Query)); query != "" {
		filter["search_text"] = bson.M{"$regex": regexp.QuoteMeta(query)}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("ledger/mongo: list templates: %w", err)
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
	if _, err := s.getTemplateModel(ctx, p.TemplateID); err != nil {
		return err
	}

	if _, err := s.mdb.NewInsert(toPurchaseModel(p)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ledger.ErrAlreadyOwned
		}
		return fmt.Errorf("ledger/mongo: insert purchase: %w", err)
	}

	_, err := s.mdb.NewUpdate((*templateModel)(nil)).
		Filter(bson.M{"_id": p.TemplateID.String()}).
		SetUpdate(bson.M{
			"$inc": bson.M{"downloads": 1},
			"$set": bson.M{"updated_at": p.Timestamp},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("ledger/mongo: count download: %w", err)
	}
	return nil
}

func (s *Store) GetPurchase(ctx context.Context, templateID id.TemplateID, buyer string) (*marketplace.Purchase, error) {
	var m purchaseModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"template_id": templateID.String(), "buyer": buyer}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("ledger/mongo: get purchase: %w", err)
	}
	return fromPurchaseModel(&m)
}

func (s *Store) ListPurchases(ctx context.Context, opts marketplace.PurchaseListOpts) ([]*marketplace.Purchase, error) {
	var models []purchaseModel

	filter := bson.M{}
	if !opts.TemplateID.IsNil() {
		filter["template_id"] = opts.TemplateID.String()
	}
	if opts.Buyer != "" {
		filter["buyer"] = opts.Buyer
	}
	if opts.Seller != "" {
		filter["seller"] = opts.Seller
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("ledger/mongo: list purchases: %w", err)
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

// RateTemplate folds the rating in with a compare-and-swap on rating_count.
func (s *Store) RateTemplate(ctx context.Context, templateID id.TemplateID, rating int, ratedAt time.Time) (*marketplace.Template, error) {
	for range maxCASAttempts {
		m, err := s.getTemplateModel(ctx, templateID)
		if err != nil {
			return nil, err
		}
		t, err := fromTemplateModel(m)
		if err != nil {
			return nil, err
		}
		t.ApplyRating(rating)
		t.Touch(ratedAt)

		res, err := s.mdb.NewUpdate((*templateModel)(nil)).
			Filter(bson.M{"_id": m.ID, "rating_count": m.RatingCount}).
			Set("rating", t.Rating).
			Set("rating_count", t.RatingCount).
			Set("updated_at", t.UpdatedAt).
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("ledger/mongo: rate template: %w", err)
		}
		if res.MatchedCount() == 1 {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: rate template: too much contention", ledger.ErrTransactionFailed)
}

// ==================== Premium Store ====================

func (s *Store) GetStatus(ctx context.Context, wallet string) (*premium.Status, error) {
	m, err := s.getStatusModel(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return fromStatusModel(m), nil
}

func (s *Store) getStatusModel(ctx context.Context, wallet string) (*statusModel, error) {
	var m statusModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": wallet}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ledger.ErrStatusNotFound
		}
		return nil, fmt.Errorf("ledger/mongo: get status: %w", err)
	}
	return &m, nil
}

// ApplyBurn swaps the wallet's status on its revision and then appends
// rec. The status write is the commit point.
func (s *Store) ApplyBurn(ctx context.Context, rec *premium.BurnRecord, apply premium.ApplyFunc) (*premium.Status, error) {
	for range maxCASAttempts {
		var current *premium.Status
		var rev int64
		m, err := s.getStatusModel(ctx, rec.Wallet)
		switch {
		case err == nil:
			current, rev = fromStatusModel(m), m.Rev
		case !errors.Is(err, ledger.ErrStatusNotFound):
			return nil, err
		}

		next, err := apply(current)
		if err != nil {
			return nil, err
		}

		swapped, err := s.swapStatus(ctx, next, current == nil, rev)
		if err != nil {
			return nil, err
		}
		if !swapped {
			continue
		}

		if _, err := s.mdb.NewInsert(toBurnModel(rec)).Exec(ctx); err != nil {
			return nil, fmt.Errorf("ledger/mongo: insert burn: %w", err)
		}
		return next, nil
	}
	return nil, fmt.Errorf("%w: apply burn: too much contention", ledger.ErrTransactionFailed)
}

// swapStatus writes next if the stored status is still at rev, or absent
// when create is set. It reports false when another writer got there first.
func (s *Store) swapStatus(ctx context.Context, next *premium.Status, create bool, rev int64) (bool, error) {
	if create {
		_, err := s.mdb.NewInsert(toStatusModel(next, 1)).Exec(ctx)
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("ledger/mongo: insert status: %w", err)
		}
		return true, nil
	}

	res, err := s.mdb.NewUpdate(toStatusModel(next, rev+1)).
		Filter(bson.M{"_id": next.Wallet, "rev": rev}).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("ledger/mongo: update status: %w", err)
	}
	return res.MatchedCount() == 1, nil
}

func (s *Store) ListBurns(ctx context.Context, opts premium.BurnListOpts) ([]*premium.BurnRecord, error) {
	var models []burnModel

	filter := bson.M{}
	if opts.Wallet != "" {
		filter["wallet"] = opts.Wallet
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("ledger/mongo: list burns: %w", err)
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
	var rows []struct {
		Total int64 `bson:"total"`
	}
	err := s.mdb.NewAggregate(colBurns).
		Group(bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}).
		Scan(ctx, &rows)
	if err != nil {
		return 0, fmt.Errorf("ledger/mongo: sum burned: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return types.Amount(rows[0].Total), nil
}

// ==================== Helpers ====================

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all ledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPositions: {
			{Keys: bson.D{{Key: "staker", Value: 1}, {Key: "is_active", Value: 1}}},
			{Keys: bson.D{{Key: "staked_at", Value: 1}}},
		},
		colProposals: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "ends_at", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "creator", Value: 1}}},
		},
		colVotes: {
			{
				Keys:    bson.D{{Key: "proposal_id", Value: 1}, {Key: "voter", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "voter", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
		colTemplates: {
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "creator", Value: 1}}},
		},
		colPurchases: {
			{
				Keys:    bson.D{{Key: "template_id", Value: 1}, {Key: "buyer", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "buyer", Value: 1}}},
			{Keys: bson.D{{Key: "seller", Value: 1}}},
		},
		colStatus: {},
		colBurns: {
			{Keys: bson.D{{Key: "wallet", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
	}
}
