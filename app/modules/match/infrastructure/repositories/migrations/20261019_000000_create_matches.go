package matchmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating match tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS match_counters (
					name TEXT PRIMARY KEY,
					value BIGINT NOT NULL
				);
			`); err != nil {
				return fmt.Errorf("failed to create match_counters table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS matches (
					id TEXT PRIMARY KEY,
					number BIGINT NOT NULL UNIQUE,
					status VARCHAR(20) NOT NULL,
					players JSONB NOT NULL DEFAULT '{}'::jsonb,
					player_count INTEGER NOT NULL DEFAULT 0,
					round INTEGER NOT NULL DEFAULT 0,
					round_started_at TIMESTAMPTZ,
					countdown_started_at TIMESTAMPTZ,
					countdown_duration_sec INTEGER NOT NULL,
					round_duration_sec INTEGER NOT NULL,
					max_players INTEGER NOT NULL,
					entry_fee_lamports BIGINT NOT NULL,
					total_collected_lamports BIGINT NOT NULL DEFAULT 0,
					token_symbol VARCHAR(20) NOT NULL,
					payout_asset_mint VARCHAR(64) NOT NULL,
					payout_asset_decimals INTEGER NOT NULL,
					payments JSONB NOT NULL DEFAULT '[]'::jsonb,
					winner VARCHAR(64),
					completed_at TIMESTAMPTZ,
					final_stats JSONB,
					prize JSONB,
					version BIGINT NOT NULL DEFAULT 1,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT chk_matches_player_count CHECK (player_count >= 0 AND player_count <= max_players),
					CONSTRAINT chk_matches_round CHECK (round >= 0)
				);
				CREATE INDEX IF NOT EXISTS idx_matches_status ON matches(status);
				CREATE INDEX IF NOT EXISTS idx_matches_open ON matches(created_at) WHERE status IN ('waiting', 'lobby');
			`); err != nil {
				return fmt.Errorf("failed to create matches table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS payment_receipts (
					signature VARCHAR(128) PRIMARY KEY,
					match_id TEXT NOT NULL REFERENCES matches(id),
					player VARCHAR(64) NOT NULL,
					amount_lamports BIGINT NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`); err != nil {
				return fmt.Errorf("failed to create payment_receipts table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS match_payment_summaries (
					match_id TEXT PRIMARY KEY REFERENCES matches(id),
					status VARCHAR(20) NOT NULL,
					winner VARCHAR(64),
					rounds INTEGER NOT NULL,
					entries JSONB NOT NULL,
					total_collected_lamports BIGINT NOT NULL,
					payout_amount_raw BIGINT NOT NULL DEFAULT 0,
					payout_amount TEXT,
					token_symbol VARCHAR(20),
					swap_signature VARCHAR(128),
					swap_success BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_match_payment_summaries_created ON match_payment_summaries(created_at);
			`); err != nil {
				return fmt.Errorf("failed to create match_payment_summaries table: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS match_leases (
					key TEXT PRIMARY KEY,
					owner TEXT NOT NULL,
					expires_at TIMESTAMPTZ NOT NULL
				);
			`); err != nil {
				return fmt.Errorf("failed to create match_leases table: %w", err)
			}

			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping match tables...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, table := range []string{"match_leases", "match_payment_summaries", "payment_receipts", "matches", "match_counters"} {
				if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+";"); err != nil {
					return fmt.Errorf("failed to drop %s: %w", table, err)
				}
			}
			return nil
		})
	})
}
