package database

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS channels (
		id                    TEXT PRIMARY KEY,
		title                 TEXT NOT NULL DEFAULT '',
		description           TEXT NOT NULL DEFAULT '',
		thumbnail_url         TEXT NOT NULL DEFAULT '',
		custom_url            TEXT,
		category              TEXT NOT NULL DEFAULT '',
		subscriber_count      BIGINT NOT NULL DEFAULT 0,
		video_count           BIGINT NOT NULL DEFAULT 0,
		view_count            BIGINT NOT NULL DEFAULT 0,
		published_at          TIMESTAMPTZ,
		parent_channel_id     TEXT,
		secondary_channel_ids TEXT[],
		group_name            TEXT,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_channels_category ON channels (category)`,
	`CREATE INDEX IF NOT EXISTS idx_channels_parent ON channels (parent_channel_id)`,
	`CREATE TABLE IF NOT EXISTS videos (
		id            TEXT PRIMARY KEY,
		channel_id    TEXT NOT NULL,
		title         TEXT NOT NULL DEFAULT '',
		description   TEXT NOT NULL DEFAULT '',
		thumbnail_url TEXT NOT NULL DEFAULT '',
		published_at  TIMESTAMPTZ NOT NULL,
		view_count    BIGINT NOT NULL DEFAULT 0,
		like_count    BIGINT NOT NULL DEFAULT 0,
		comment_count BIGINT NOT NULL DEFAULT 0,
		duration      TEXT NOT NULL DEFAULT '',
		video_type    TEXT NOT NULL DEFAULT 'normal',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_published ON videos (published_at)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_channel_published ON videos (channel_id, published_at DESC, id)`,
	`CREATE TABLE IF NOT EXISTS channel_stats (
		id                  TEXT PRIMARY KEY,
		channel_id          TEXT NOT NULL,
		recorded_at         TIMESTAMPTZ NOT NULL,
		subscriber_count    BIGINT NOT NULL DEFAULT 0,
		video_count         BIGINT NOT NULL DEFAULT 0,
		view_count          BIGINT NOT NULL DEFAULT 0,
		total_likes         BIGINT NOT NULL DEFAULT 0,
		total_comments      BIGINT NOT NULL DEFAULT 0,
		videos_last_30_days BIGINT NOT NULL DEFAULT 0,
		views_last_30_days  BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_channel_stats_channel_date ON channel_stats (channel_id, recorded_at DESC)`,
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func (ps *PostgresService) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := ps.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	ps.logger.Info("Database schema ensured", zap.Int("statements", len(schemaStatements)))
	return nil
}
