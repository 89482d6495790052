package analytics

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/constants"
	"github.com/kapu/channel-ranking-go/internal/domain"
	"github.com/kapu/channel-ranking-go/internal/util"
	"github.com/kapu/channel-ranking-go/pkg/errors"
)

// Options carries the settings shared by every analytics component.
type Options struct {
	Clock            util.Clock
	Location         *time.Location
	GroupBatchSize   int
	GroupConcurrency int
	Metrics          *Metrics
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = util.SystemClock{}
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.GroupBatchSize <= 0 {
		o.GroupBatchSize = constants.QueryLimits.MaxChannelIDsPerQuery
	}
	if o.GroupConcurrency <= 0 {
		o.GroupConcurrency = constants.QueryLimits.DefaultGroupFanOut
	}
	return o
}

// ViralDetector flags videos whose view count is a statistical outlier for their channel.
type ViralDetector struct {
	store   domain.VideoRecordStore
	logger  *zap.Logger
	clock   util.Clock
	loc     *time.Location
	metrics *Metrics
}

func NewViralDetector(store domain.VideoRecordStore, logger *zap.Logger, opts Options) *ViralDetector {
	opts = opts.withDefaults()
	return &ViralDetector{
		store:   store,
		logger:  logger,
		clock:   opts.Clock,
		loc:     opts.Location,
		metrics: opts.Metrics,
	}
}

type viralCandidate struct {
	video  domain.ViralVideo
	zScore float64
}

// DetectViral returns outlier videos ordered by descending z-score. A nil daysAgo scans the
// full history; otherwise the window opens at the start of the calendar day daysAgo days back.
// Store failures are returned to the caller.
func (d *ViralDetector) DetectViral(ctx context.Context, daysAgo *int, videoType domain.VideoType) (result []domain.ViralVideo, err error) {
	started := time.Now()
	defer func() { d.metrics.observe(OperationDetectViral, started, err) }()

	var since *time.Time
	if daysAgo != nil {
		if *daysAgo < 0 {
			return nil, errors.NewValidationError("daysAgo must not be negative", "daysAgo", *daysAgo)
		}
		start := util.DayWindowStart(d.clock.Now(), *daysAgo, d.loc)
		since = &start
	}

	channels, err := d.store.ListChannels(ctx)
	if err != nil {
		return nil, errors.NewServiceError("failed to list channels", "store", "list_channels", err)
	}
	byID := make(map[string]*domain.Channel, len(channels))
	for _, ch := range channels {
		byID[ch.ID] = ch
	}

	videos, err := d.store.ListVideosSince(ctx, since, videoType)
	if err != nil {
		return nil, errors.NewServiceError("failed to list videos", "store", "list_videos_since", err)
	}

	order := make([]string, 0)
	grouped := make(map[string][]*domain.Video)
	for _, v := range videos {
		if !videoType.Matches(v.VideoType) {
			continue
		}
		if _, seen := grouped[v.ChannelID]; !seen {
			order = append(order, v.ChannelID)
		}
		grouped[v.ChannelID] = append(grouped[v.ChannelID], v)
	}

	candidates := make([]viralCandidate, 0)
	for _, channelID := range order {
		channel, ok := byID[channelID]
		if !ok {
			d.metrics.incSkipped(SkipUnknownChannel)
			continue
		}
		candidates = append(candidates, d.detectChannel(channel, grouped[channelID])...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].zScore > candidates[j].zScore
	})

	result = make([]domain.ViralVideo, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, c.video)
		d.metrics.incViral(string(c.video.ViralLevel))
	}

	d.logger.Debug("Viral detection completed",
		zap.Int("channels", len(order)),
		zap.Int("videos", len(videos)),
		zap.Int("viral", len(result)),
		zap.String("video_type", string(videoType)),
	)

	return result, nil
}

func (d *ViralDetector) detectChannel(channel *domain.Channel, videos []*domain.Video) []viralCandidate {
	if len(videos) < constants.Analytics.MinVideosForBaseline {
		d.metrics.incSkipped(SkipInsufficientData)
		return nil
	}

	views := make([]int64, len(videos))
	for i, v := range videos {
		views[i] = v.ViewCount
	}

	baseline := ComputeBaseline(views)
	if baseline.Degenerate() {
		d.metrics.incSkipped(SkipDegenerate)
		return nil
	}

	var found []viralCandidate
	for _, v := range videos {
		z := baseline.ZScore(v.ViewCount)
		level, viral := ClassifyViralLevel(z)
		if !viral {
			continue
		}
		found = append(found, viralCandidate{
			zScore: z,
			video: domain.ViralVideo{
				Video:          *v,
				ChannelTitle:   channel.Title,
				ChannelAverage: int64(util.Round(baseline.Mean, 0)),
				ZScore:         util.Round(z, 2),
				Multiplier:     util.Round(baseline.Multiplier(v.ViewCount), 1),
				ViralLevel:     level,
				Percentile:     util.Round(Percentile(views, v.ViewCount), 1),
			},
		})
	}
	return found
}
