package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/domain"
	"github.com/kapu/channel-ranking-go/internal/util"
	"github.com/kapu/channel-ranking-go/pkg/errors"
)

// GroupAggregator sums metrics across a primary channel and its secondaries and maintains
// the primary/secondary links.
type GroupAggregator struct {
	store       domain.VideoRecordStore
	logger      *zap.Logger
	clock       util.Clock
	batchSize   int
	concurrency int
	metrics     *Metrics
}

func NewGroupAggregator(store domain.VideoRecordStore, logger *zap.Logger, opts Options) *GroupAggregator {
	opts = opts.withDefaults()
	return &GroupAggregator{
		store:       store,
		logger:      logger,
		clock:       opts.Clock,
		batchSize:   opts.GroupBatchSize,
		concurrency: opts.GroupConcurrency,
		metrics:     opts.Metrics,
	}
}

// GroupMetrics aggregates the group headed by primaryID. With a nil daysAgo the lifetime
// counters stored on each channel are summed and no video query is made; likes and comments
// are then zero. Secondary ids that no longer resolve are ignored.
func (g *GroupAggregator) GroupMetrics(ctx context.Context, primaryID string, daysAgo *int, videoType domain.VideoType) (result *domain.GroupMetrics, err error) {
	started := time.Now()
	defer func() { g.metrics.observe(OperationGroupMetrics, started, err) }()

	since, err := g.windowStart(daysAgo)
	if err != nil {
		return nil, err
	}

	primary, err := g.getChannel(ctx, primaryID)
	if err != nil {
		return nil, err
	}

	secondaries, err := g.resolveSecondaries(ctx, primary)
	if err != nil {
		return nil, err
	}

	return g.aggregate(ctx, primary, secondaries, since, videoType)
}

// GetChannelGroup returns the lifetime metrics of the group channelID belongs to, resolving a
// secondary to its primary first.
func (g *GroupAggregator) GetChannelGroup(ctx context.Context, channelID string) (*domain.GroupMetrics, error) {
	channel, err := g.getChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}

	primary := channel
	if channel.IsSecondary() {
		parent, err := g.store.GetChannel(ctx, *channel.ParentChannelID)
		if err != nil {
			return nil, errors.NewServiceError("failed to load parent channel", "store", "get_channel", err)
		}
		if parent == nil {
			g.logger.Warn("Secondary channel points at a missing primary",
				zap.String("channel_id", channel.ID),
				zap.String("parent_channel_id", *channel.ParentChannelID),
			)
		} else {
			primary = parent
		}
	}

	return g.GroupMetrics(ctx, primary.ID, nil, domain.VideoTypeAll)
}

// RankGroups computes metrics for every primary channel and orders them by total views.
func (g *GroupAggregator) RankGroups(ctx context.Context, daysAgo *int, videoType domain.VideoType) (result []*domain.GroupRankingEntry, err error) {
	started := time.Now()
	defer func() { g.metrics.observe(OperationRankGroups, started, err) }()

	since, err := g.windowStart(daysAgo)
	if err != nil {
		return nil, err
	}

	channels, err := g.store.ListChannels(ctx)
	if err != nil {
		return nil, errors.NewServiceError("failed to list channels", "store", "list_channels", err)
	}

	byID := make(map[string]*domain.Channel, len(channels))
	primaries := make([]*domain.Channel, 0, len(channels))
	for _, ch := range channels {
		byID[ch.ID] = ch
		if ch.IsPrimary() {
			primaries = append(primaries, ch)
		}
	}

	entries := make([]*domain.GroupRankingEntry, len(primaries))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(g.concurrency).WithCancelOnError().WithFirstError()
	for idx, primary := range primaries {
		p.Go(func(ctx context.Context) error {
			secondaries := make([]*domain.Channel, 0, len(primary.SecondaryChannelIDs))
			for _, id := range memberIDs(primary) {
				if ch, ok := byID[id]; ok {
					secondaries = append(secondaries, ch)
				}
			}
			metrics, err := g.aggregate(ctx, primary, secondaries, since, videoType)
			if err != nil {
				return err
			}
			entries[idx] = newGroupRankingEntry(metrics, primary)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalViews > entries[j].TotalViews
	})

	g.logger.Debug("Group ranking computed",
		zap.Int("groups", len(entries)),
		zap.Int("channels", len(channels)),
	)

	return entries, nil
}

func newGroupRankingEntry(metrics *domain.GroupMetrics, primary *domain.Channel) *domain.GroupRankingEntry {
	entry := &domain.GroupRankingEntry{
		GroupMetrics:    *metrics,
		PrimaryChannel:  primary,
		ChannelsInGroup: len(metrics.Channels),
		EngagementRate:  domain.EngagementRate(metrics.TotalLikes, metrics.TotalComments, metrics.TotalViews),
	}
	if metrics.TotalVideos > 0 {
		entry.AverageViewsPerVideo = float64(metrics.TotalViews) / float64(metrics.TotalVideos)
	}
	return entry
}

func (g *GroupAggregator) windowStart(daysAgo *int) (*time.Time, error) {
	if daysAgo == nil {
		return nil, nil
	}
	if *daysAgo < 0 {
		return nil, errors.NewValidationError("daysAgo must not be negative", "daysAgo", *daysAgo)
	}
	start := util.TrailingWindowStart(g.clock.Now(), *daysAgo)
	return &start, nil
}

func (g *GroupAggregator) getChannel(ctx context.Context, channelID string) (*domain.Channel, error) {
	if channelID == "" {
		return nil, errors.NewValidationError("channel id is required", "channelId", channelID)
	}
	ch, err := g.store.GetChannel(ctx, channelID)
	if err != nil {
		return nil, errors.NewServiceError("failed to load channel", "store", "get_channel", err)
	}
	if ch == nil {
		return nil, errors.NewNotFoundError("channel", channelID)
	}
	return ch, nil
}

// memberIDs returns the primary's secondary ids without duplicates or self references.
func memberIDs(primary *domain.Channel) []string {
	return util.RemoveString(util.UniqueStrings(primary.SecondaryChannelIDs), primary.ID)
}

// resolveSecondaries loads the primary's secondaries concurrently, dropping ids that no longer resolve.
func (g *GroupAggregator) resolveSecondaries(ctx context.Context, primary *domain.Channel) ([]*domain.Channel, error) {
	ids := memberIDs(primary)
	if len(ids) == 0 {
		return nil, nil
	}

	resolved := make([]*domain.Channel, len(ids))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(g.concurrency).WithCancelOnError().WithFirstError()
	for idx, id := range ids {
		p.Go(func(ctx context.Context) error {
			ch, err := g.store.GetChannel(ctx, id)
			if err != nil {
				return err
			}
			resolved[idx] = ch
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, errors.NewServiceError("failed to resolve secondary channels", "store", "get_channel", err)
	}

	secondaries := make([]*domain.Channel, 0, len(resolved))
	for idx, ch := range resolved {
		if ch == nil {
			g.logger.Debug("Dropping unresolved secondary channel",
				zap.String("primary_channel_id", primary.ID),
				zap.String("secondary_channel_id", ids[idx]),
			)
			continue
		}
		secondaries = append(secondaries, ch)
	}
	return secondaries, nil
}

func (g *GroupAggregator) aggregate(ctx context.Context, primary *domain.Channel, secondaries []*domain.Channel, since *time.Time, videoType domain.VideoType) (*domain.GroupMetrics, error) {
	members := make([]*domain.Channel, 0, len(secondaries)+1)
	members = append(members, primary)
	members = append(members, secondaries...)

	result := &domain.GroupMetrics{
		PrimaryChannelID: primary.ID,
		GroupName:        primary.ResolvedGroupName(),
		Channels:         members,
	}

	ids := make([]string, 0, len(members))
	for _, ch := range members {
		result.TotalSubscribers += ch.SubscriberCount
		ids = append(ids, ch.ID)
	}

	if since == nil {
		for _, ch := range members {
			result.TotalViews += ch.ViewCount
			result.TotalVideos += ch.VideoCount
		}
		return result, nil
	}

	videos, err := g.fetchVideos(ctx, ids, since, videoType)
	if err != nil {
		return nil, err
	}
	for _, v := range videos {
		result.TotalViews += v.ViewCount
		result.TotalLikes += v.LikeCount
		result.TotalComments += v.CommentCount
		result.TotalVideos++
	}
	return result, nil
}

// fetchVideos queries the store in batches no larger than the configured batch size.
func (g *GroupAggregator) fetchVideos(ctx context.Context, ids []string, since *time.Time, videoType domain.VideoType) ([]*domain.Video, error) {
	batches := util.Chunk(ids, g.batchSize)
	results := make([][]*domain.Video, len(batches))

	p := pool.New().WithContext(ctx).WithMaxGoroutines(g.concurrency).WithCancelOnError().WithFirstError()
	for idx, batch := range batches {
		p.Go(func(ctx context.Context) error {
			videos, err := g.store.ListVideosForChannelIDs(ctx, batch, since, videoType)
			if err != nil {
				return err
			}
			results[idx] = videos
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, errors.NewServiceError("failed to list group videos", "store", "list_videos_for_channel_ids", err)
	}

	total := 0
	for _, batch := range results {
		total += len(batch)
	}
	videos := make([]*domain.Video, 0, total)
	for _, batch := range results {
		videos = append(videos, batch...)
	}
	return videos, nil
}
