package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the token ledger (PostgreSQL).
var Migrations = migrate.NewGroup("tokenledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_ledger_stake_positions",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ledger_stake_positions (
    id               TEXT PRIMARY KEY,
    staker           TEXT NOT NULL,
    amount           BIGINT NOT NULL CHECK (amount > 0),
    lock_period_days INT NOT NULL,
    multiplier       DOUBLE PRECISION NOT NULL,
    staked_at        TIMESTAMPTZ NOT NULL,
    unlocks_at       TIMESTAMPTZ NOT NULL,
    last_claim_at    TIMESTAMPTZ NOT NULL,
    total_claimed    BIGINT NOT NULL DEFAULT 0 CHECK (total_claimed >= 0),
    is_active        BOOLEAN NOT NULL DEFAULT TRUE,
    version          BIGINT NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_ledger_positions_staker ON ledger_stake_positions (staker, is_active);
CREATE INDEX IF NOT EXISTS idx_ledger_positions_staked_at ON ledger_stake_positions (staked_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS ledger_stake_positions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_ledger_proposals",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ledger_proposals (
    id             TEXT PRIMARY KEY,
    type           TEXT NOT NULL,
    title          TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    creator        TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL DEFAULT 'active',
    votes_for      BIGINT NOT NULL DEFAULT 0,
    votes_against  BIGINT NOT NULL DEFAULT 0,
    voter_count    INT NOT NULL DEFAULT 0,
    quorum_reached BOOLEAN NOT NULL DEFAULT FALSE,
    ends_at        TIMESTAMPTZ NOT NULL,
    template_data  JSONB,
    feature_data   JSONB,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_ledger_proposals_status ON ledger_proposals (status, ends_at);
CREATE INDEX IF NOT EXISTS idx_ledger_proposals_creator ON ledger_proposals (creator);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS ledger_proposals`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_ledger_votes",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ledger_votes (
    id            TEXT PRIMARY KEY,
    proposal_id   TEXT NOT NULL REFERENCES ledger_proposals (id),
    voter         TEXT NOT NULL,
    support       BOOLEAN NOT NULL,
    weight        BIGINT NOT NULL CHECK (weight > 0),
    token_balance BIGINT NOT NULL,
    timestamp     TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_votes_proposal_voter ON ledger_votes (proposal_id, voter);
CREATE INDEX IF NOT EXISTS idx_ledger_votes_voter ON ledger_votes (voter);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS ledger_votes`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_ledger_templates",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ledger_templates (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    creator         TEXT NOT NULL DEFAULT '',
    creator_address TEXT NOT NULL DEFAULT '',
    price           BIGINT NOT NULL,
    category        TEXT NOT NULL DEFAULT 'other',
    circuit_code    TEXT NOT NULL DEFAULT '',
    nodes           JSONB,
    edges           JSONB,
    downloads       BIGINT NOT NULL DEFAULT 0,
    rating          DOUBLE PRECISION NOT NULL DEFAULT 0,
    rating_count    BIGINT NOT NULL DEFAULT 0,
    featured        BOOLEAN NOT NULL DEFAULT FALSE,
    verified        BOOLEAN NOT NULL DEFAULT FALSE,
    tags            TEXT[] NOT NULL DEFAULT '{}',
    search_text     TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_ledger_templates_category ON ledger_templates (category);
CREATE INDEX IF NOT EXISTS idx_ledger_templates_creator ON ledger_templates (creator);
CREATE INDEX IF NOT EXISTS idx_ledger_templates_tags ON ledger_templates USING GIN (tags);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS ledger_templates`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_ledger_purchases",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ledger_purchases (
    id                    TEXT PRIMARY KEY,
    template_id           TEXT NOT NULL REFERENCES ledger_templates (id),
    buyer                 TEXT NOT NULL,
    seller                TEXT NOT NULL DEFAULT '',
    price                 BIGINT NOT NULL,
    platform_fee          BIGINT NOT NULL,
    creator_revenue       BIGINT NOT NULL,
    transaction_signature TEXT NOT NULL DEFAULT '',
    timestamp             TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_purchases_template_buyer ON ledger_purchases (template_id, buyer);
CREATE INDEX IF NOT EXISTS idx_ledger_purchases_buyer ON ledger_purchases (buyer);
CREATE INDEX IF NOT EXISTS idx_ledger_purchases_seller ON ledger_purchases (seller);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS ledger_purchases`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_ledger_premium",
			Version: "20250101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ledger_premium_status (
    wallet          TEXT PRIMARY KEY,
    tier            TEXT NOT NULL DEFAULT 'FREE',
    total_burned    BIGINT NOT NULL DEFAULT 0,
    lifetime_burned BIGINT NOT NULL DEFAULT 0,
    unlocked_at     TIMESTAMPTZ NOT NULL,
    expires_at      TIMESTAMPTZ NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ledger_burns (
    seq          BIGSERIAL,
    id           TEXT PRIMARY KEY,
    wallet       TEXT NOT NULL,
    amount       BIGINT NOT NULL CHECK (amount > 0),
    tier         TEXT NOT NULL,
    total_burned BIGINT NOT NULL,
    signature    TEXT NOT NULL DEFAULT '',
    simulated    BOOLEAN NOT NULL DEFAULT FALSE,
    timestamp    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_burns_wallet ON ledger_burns (wallet, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_burns_timestamp ON ledger_burns (timestamp DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS ledger_burns;
DROP TABLE IF EXISTS ledger_premium_status;
`)
				return err
			},
		},
	)
}
