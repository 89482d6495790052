package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/constants"
	"github.com/kapu/channel-ranking-go/internal/domain"
	"github.com/kapu/channel-ranking-go/internal/service/database"
	"github.com/kapu/channel-ranking-go/pkg/errors"
)

const channelColumns = `id, title, description, thumbnail_url, custom_url, category,
	subscriber_count, video_count, view_count, published_at,
	parent_channel_id, secondary_channel_ids, group_name, created_at, updated_at`

const videoColumns = `id, channel_id, title, description, thumbnail_url, published_at,
	view_count, like_count, comment_count, duration, video_type, created_at, updated_at`

// PostgresStore persists channels, videos and stats snapshots.
type PostgresStore struct {
	db             *sql.DB
	logger         *zap.Logger
	maxIDsPerQuery int
}

// NewPostgresStore caps membership queries at maxIDsPerQuery ids. Pass the same value the
// group aggregator chunks by; zero or less selects the default.
func NewPostgresStore(postgres *database.PostgresService, logger *zap.Logger, maxIDsPerQuery int) *PostgresStore {
	return newPostgresStore(postgres.GetDB(), logger, maxIDsPerQuery)
}

func newPostgresStore(db *sql.DB, logger *zap.Logger, maxIDsPerQuery int) *PostgresStore {
	if maxIDsPerQuery <= 0 {
		maxIDsPerQuery = constants.QueryLimits.MaxChannelIDsPerQuery
	}
	return &PostgresStore{
		db:             db,
		logger:         logger,
		maxIDsPerQuery: maxIDsPerQuery,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (*domain.Channel, error) {
	var (
		ch          domain.Channel
		customURL   sql.NullString
		publishedAt sql.NullTime
		parentID    sql.NullString
		secondaries pq.StringArray
		groupName   sql.NullString
	)

	err := row.Scan(
		&ch.ID, &ch.Title, &ch.Description, &ch.ThumbnailURL, &customURL, &ch.Category,
		&ch.SubscriberCount, &ch.VideoCount, &ch.ViewCount, &publishedAt,
		&parentID, &secondaries, &groupName, &ch.CreatedAt, &ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if customURL.Valid {
		ch.CustomURL = &customURL.String
	}
	if publishedAt.Valid {
		ch.PublishedAt = publishedAt.Time
	}
	if parentID.Valid {
		ch.ParentChannelID = &parentID.String
	}
	if groupName.Valid {
		ch.GroupName = &groupName.String
	}
	if len(secondaries) > 0 {
		ch.SecondaryChannelIDs = []string(secondaries)
	}

	return &ch, nil
}

func scanVideo(row rowScanner) (*domain.Video, error) {
	var (
		v         domain.Video
		videoType string
	)
	err := row.Scan(
		&v.ID, &v.ChannelID, &v.Title, &v.Description, &v.ThumbnailURL, &v.PublishedAt,
		&v.ViewCount, &v.LikeCount, &v.CommentCount, &v.Duration, &videoType, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.VideoType = domain.VideoType(videoType)
	return &v, nil
}

func (s *PostgresStore) queryChannels(ctx context.Context, query string, args ...any) ([]*domain.Channel, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	channels := make([]*domain.Channel, 0)
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate channels: %w", err)
	}
	return channels, nil
}

func (s *PostgresStore) queryVideos(ctx context.Context, query string, args ...any) ([]*domain.Video, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	videos := make([]*domain.Video, 0)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate videos: %w", err)
	}
	return videos, nil
}

// ListChannels returns every channel ordered by lifetime views.
func (s *PostgresStore) ListChannels(ctx context.Context) ([]*domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels ORDER BY view_count DESC, id`
	return s.queryChannels(ctx, query)
}

// ListChannelsByCategory filters by category; "" and "all" return every channel.
func (s *PostgresStore) ListChannelsByCategory(ctx context.Context, category string) ([]*domain.Channel, error) {
	if category == "" || category == domain.CategoryAll {
		return s.ListChannels(ctx)
	}
	query := `SELECT ` + channelColumns + ` FROM channels WHERE category = $1 ORDER BY view_count DESC, id`
	return s.queryChannels(ctx, query, category)
}

func (s *PostgresStore) GetChannel(ctx context.Context, channelID string) (*domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = $1`

	ch, err := scanChannel(s.db.QueryRowContext(ctx, query, channelID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query channel %s: %w", channelID, err)
	}
	return ch, nil
}

// videoFilter appends the optional window and type conditions.
func videoFilter(conditions []string, args []any, since *time.Time, videoType domain.VideoType) ([]string, []any) {
	if since != nil {
		args = append(args, *since)
		conditions = append(conditions, fmt.Sprintf("published_at >= $%d", len(args)))
	}
	if videoType.IsFilter() {
		args = append(args, string(videoType))
		conditions = append(conditions, fmt.Sprintf("video_type = $%d", len(args)))
	}
	return conditions, args
}

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

func (s *PostgresStore) ListVideosSince(ctx context.Context, since *time.Time, videoType domain.VideoType) ([]*domain.Video, error) {
	conditions, args := videoFilter(nil, nil, since, videoType)
	query := `SELECT ` + videoColumns + ` FROM videos` + whereClause(conditions) + ` ORDER BY published_at DESC, id`
	return s.queryVideos(ctx, query, args...)
}

// ListVideosForChannelIDs rejects more ids than a single membership query may carry.
func (s *PostgresStore) ListVideosForChannelIDs(ctx context.Context, channelIDs []string, since *time.Time, videoType domain.VideoType) ([]*domain.Video, error) {
	if len(channelIDs) == 0 {
		return []*domain.Video{}, nil
	}
	if err := s.checkIDBatch(len(channelIDs)); err != nil {
		return nil, err
	}

	conditions, args := videoFilter([]string{"channel_id = ANY($1)"}, []any{pq.Array(channelIDs)}, since, videoType)
	query := `SELECT ` + videoColumns + ` FROM videos` + whereClause(conditions) + ` ORDER BY published_at DESC, id`
	return s.queryVideos(ctx, query, args...)
}

func (s *PostgresStore) checkIDBatch(n int) error {
	if n > s.maxIDsPerQuery {
		return errors.NewValidationError(
			fmt.Sprintf("at most %d channel ids per query", s.maxIDsPerQuery), "channelIds", n)
	}
	return nil
}

// UpdateChannels applies all patches in one transaction. A patch for an unknown channel
// aborts the whole batch with a NotFoundError.
func (s *PostgresStore) UpdateChannels(ctx context.Context, patches ...domain.ChannelPatch) error {
	if len(patches) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, patch := range patches {
		if patch.IsEmpty() {
			continue
		}
		query, args := buildChannelUpdate(patch)
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update channel %s: %w", patch.ChannelID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 0 {
			return errors.NewNotFoundError("channel", patch.ChannelID)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit channel updates: %w", err)
	}

	s.logger.Debug("Channels updated", zap.Int("patches", len(patches)))
	return nil
}

func buildChannelUpdate(patch domain.ChannelPatch) (string, []any) {
	sets := make([]string, 0, 5)
	args := make([]any, 0, 5)

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	switch {
	case patch.SecondaryChannelIDs != nil:
		// a full replacement already carries the list edits
		set("secondary_channel_ids", pq.Array(patch.Apply(domain.Channel{}).SecondaryChannelIDs))
	case patch.RemoveSecondaryID != nil || patch.AddSecondaryID != nil:
		expr := "secondary_channel_ids"
		if patch.RemoveSecondaryID != nil {
			args = append(args, *patch.RemoveSecondaryID)
			expr = fmt.Sprintf("array_remove(%s, $%d)", expr, len(args))
		}
		if patch.AddSecondaryID != nil {
			args = append(args, *patch.AddSecondaryID)
			expr = fmt.Sprintf("CASE WHEN $%[2]d = ANY(%[1]s) THEN %[1]s ELSE array_append(%[1]s, $%[2]d) END", expr, len(args))
		}
		sets = append(sets, "secondary_channel_ids = "+expr)
	}
	if patch.ClearParentChannelID {
		sets = append(sets, "parent_channel_id = NULL")
	} else if patch.ParentChannelID != nil {
		set("parent_channel_id", *patch.ParentChannelID)
	}
	if patch.ClearGroupName {
		sets = append(sets, "group_name = NULL")
	} else if patch.GroupName != nil {
		set("group_name", *patch.GroupName)
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, patch.ChannelID)
	query := fmt.Sprintf("UPDATE channels SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return query, args
}

// UpsertChannel writes the platform fields of a channel. Grouping columns are never touched
// and an empty category keeps the stored one.
func (s *PostgresStore) UpsertChannel(ctx context.Context, channel *domain.Channel) error {
	category := channel.Category
	if category == "" {
		category = domain.DefaultCategory
	}

	query := `
		INSERT INTO channels (id, title, description, thumbnail_url, custom_url, category,
		                      subscriber_count, video_count, view_count, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			thumbnail_url = EXCLUDED.thumbnail_url,
			custom_url = EXCLUDED.custom_url,
			category = CASE WHEN $11 THEN channels.category ELSE EXCLUDED.category END,
			subscriber_count = EXCLUDED.subscriber_count,
			video_count = EXCLUDED.video_count,
			view_count = EXCLUDED.view_count,
			published_at = EXCLUDED.published_at,
			updated_at = NOW()
	`

	var publishedAt sql.NullTime
	if !channel.PublishedAt.IsZero() {
		publishedAt = sql.NullTime{Time: channel.PublishedAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		channel.ID, channel.Title, channel.Description, channel.ThumbnailURL, channel.CustomURL, category,
		channel.SubscriberCount, channel.VideoCount, channel.ViewCount, publishedAt,
		channel.Category == "",
	)
	if err != nil {
		return fmt.Errorf("failed to upsert channel %s: %w", channel.ID, err)
	}
	return nil
}

// UpsertVideos inserts new videos and refreshes the counters of known ones.
func (s *PostgresStore) UpsertVideos(ctx context.Context, videos []*domain.Video) error {
	if len(videos) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO videos (id, channel_id, title, description, thumbnail_url, published_at,
		                    view_count, like_count, comment_count, duration, video_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			thumbnail_url = EXCLUDED.thumbnail_url,
			view_count = EXCLUDED.view_count,
			like_count = EXCLUDED.like_count,
			comment_count = EXCLUDED.comment_count,
			duration = EXCLUDED.duration,
			video_type = EXCLUDED.video_type,
			updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare video upsert: %w", err)
	}
	defer stmt.Close()

	for _, v := range videos {
		videoType := v.VideoType
		if videoType == domain.VideoTypeAll {
			videoType = domain.VideoTypeNormal
		}
		if _, err := stmt.ExecContext(ctx,
			v.ID, v.ChannelID, v.Title, v.Description, v.ThumbnailURL, v.PublishedAt,
			v.ViewCount, v.LikeCount, v.CommentCount, v.Duration, string(videoType),
		); err != nil {
			return fmt.Errorf("failed to upsert video %s: %w", v.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit videos: %w", err)
	}
	return nil
}

// ListChannelVideos pages through a channel's videos ordered by publish date then views.
// An AfterVideoID that no longer resolves restarts from the first page.
func (s *PostgresStore) ListChannelVideos(ctx context.Context, q domain.VideoPageQuery) (*domain.VideoPage, error) {
	if q.ChannelID == "" {
		return nil, errors.NewValidationError("channel id is required", "channelId", q.ChannelID)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = constants.QueryLimits.DefaultVideoPageSize
	}
	limit = min(limit, constants.QueryLimits.MaxVideoPageSize)

	var since *time.Time
	if !q.Since.IsZero() {
		since = &q.Since
	}
	conditions, args := videoFilter([]string{"channel_id = $1"}, []any{q.ChannelID}, since, q.VideoType)

	if q.AfterVideoID != "" {
		var (
			cursorPublished time.Time
			cursorViews     int64
		)
		err := s.db.QueryRowContext(ctx,
			`SELECT published_at, view_count FROM videos WHERE id = $1 AND channel_id = $2`,
			q.AfterVideoID, q.ChannelID,
		).Scan(&cursorPublished, &cursorViews)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return nil, fmt.Errorf("failed to load cursor video: %w", err)
		default:
			args = append(args, cursorPublished, cursorViews, q.AfterVideoID)
			conditions = append(conditions, fmt.Sprintf("(published_at, view_count, id) < ($%d, $%d, $%d)",
				len(args)-2, len(args)-1, len(args)))
		}
	}

	args = append(args, limit+1)
	query := `SELECT ` + videoColumns + ` FROM videos` + whereClause(conditions) +
		fmt.Sprintf(` ORDER BY published_at DESC, view_count DESC, id DESC LIMIT $%d`, len(args))

	videos, err := s.queryVideos(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	page := &domain.VideoPage{Videos: make([]domain.VideoSummary, 0, min(len(videos), limit))}
	if len(videos) > limit {
		page.HasMore = true
		videos = videos[:limit]
	}
	for _, v := range videos {
		page.Videos = append(page.Videos, v.Summary())
	}
	if len(videos) > 0 {
		page.LastVideoID = videos[len(videos)-1].ID
	}
	return page, nil
}

func (s *PostgresStore) SaveChannelStats(ctx context.Context, snapshot *domain.ChannelStatsSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.Date.IsZero() {
		snapshot.Date = time.Now()
	}

	query := `
		INSERT INTO channel_stats (id, channel_id, recorded_at, subscriber_count, video_count, view_count,
		                           total_likes, total_comments, videos_last_30_days, views_last_30_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		snapshot.ID, snapshot.ChannelID, snapshot.Date, snapshot.SubscriberCount, snapshot.VideoCount,
		snapshot.ViewCount, snapshot.TotalLikes, snapshot.TotalComments, snapshot.VideosLast30Days,
		snapshot.ViewsLast30Days,
	)
	if err != nil {
		return fmt.Errorf("failed to save stats for channel %s: %w", snapshot.ChannelID, err)
	}
	return nil
}

// ListChannelStats returns the newest snapshots first.
func (s *PostgresStore) ListChannelStats(ctx context.Context, channelID string, limit int) ([]*domain.ChannelStatsSnapshot, error) {
	if limit <= 0 {
		limit = constants.QueryLimits.StatsHistoryLimit
	}

	query := `
		SELECT id, channel_id, recorded_at, subscriber_count, video_count, view_count,
		       total_likes, total_comments, videos_last_30_days, views_last_30_days
		FROM channel_stats
		WHERE channel_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := make([]*domain.ChannelStatsSnapshot, 0)
	for rows.Next() {
		var st domain.ChannelStatsSnapshot
		if err := rows.Scan(
			&st.ID, &st.ChannelID, &st.Date, &st.SubscriberCount, &st.VideoCount, &st.ViewCount,
			&st.TotalLikes, &st.TotalComments, &st.VideosLast30Days, &st.ViewsLast30Days,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats = append(stats, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats: %w", err)
	}
	return stats, nil
}
