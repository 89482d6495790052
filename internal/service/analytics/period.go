package analytics

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/domain"
	"github.com/kapu/channel-ranking-go/internal/util"
	"github.com/kapu/channel-ranking-go/pkg/errors"
)

// PeriodRanker ranks every known channel by the views its videos earned inside a trailing window.
type PeriodRanker struct {
	store   domain.VideoRecordStore
	logger  *zap.Logger
	clock   util.Clock
	metrics *Metrics
}

func NewPeriodRanker(store domain.VideoRecordStore, logger *zap.Logger, opts Options) *PeriodRanker {
	opts = opts.withDefaults()
	return &PeriodRanker{
		store:   store,
		logger:  logger,
		clock:   opts.Clock,
		metrics: opts.Metrics,
	}
}

// RankByPeriod returns one entry per channel, zero-filled when a channel has no videos in the
// window, sorted by period views descending. Ties keep the store's channel order.
func (r *PeriodRanker) RankByPeriod(ctx context.Context, daysAgo int, videoType domain.VideoType) (result []*domain.PeriodChannelMetrics, err error) {
	started := time.Now()
	defer func() { r.metrics.observe(OperationRankByPeriod, started, err) }()

	if daysAgo < 0 {
		return nil, errors.NewValidationError("daysAgo must not be negative", "daysAgo", daysAgo)
	}
	since := util.TrailingWindowStart(r.clock.Now(), daysAgo)

	channels, err := r.store.ListChannels(ctx)
	if err != nil {
		return nil, errors.NewServiceError("failed to list channels", "store", "list_channels", err)
	}

	videos, err := r.store.ListVideosSince(ctx, &since, videoType)
	if err != nil {
		return nil, errors.NewServiceError("failed to list videos", "store", "list_videos_since", err)
	}

	result = make([]*domain.PeriodChannelMetrics, 0, len(channels))
	byChannel := make(map[string]*domain.PeriodChannelMetrics, len(channels))
	for _, ch := range channels {
		m := &domain.PeriodChannelMetrics{
			Channel: *ch,
			Videos:  []domain.VideoSummary{},
		}
		byChannel[ch.ID] = m
		result = append(result, m)
	}

	orphaned := 0
	for _, v := range videos {
		if v.PublishedAt.Before(since) || !videoType.Matches(v.VideoType) {
			continue
		}
		m, ok := byChannel[v.ChannelID]
		if !ok {
			orphaned++
			continue
		}
		m.PeriodViews += v.ViewCount
		m.PeriodLikes += v.LikeCount
		m.PeriodComments += v.CommentCount
		m.PeriodVideos++
		m.Videos = append(m.Videos, v.Summary())
	}

	for _, m := range result {
		m.EngagementRate = domain.EngagementRate(m.PeriodLikes, m.PeriodComments, m.PeriodViews)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PeriodViews > result[j].PeriodViews
	})

	if orphaned > 0 {
		r.logger.Warn("Videos reference unknown channels",
			zap.Int("count", orphaned),
			zap.Int("days_ago", daysAgo),
		)
	}

	return result, nil
}
