package ingest

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kapu/channel-ranking-go/internal/constants"
	"github.com/kapu/channel-ranking-go/internal/domain"
	"github.com/kapu/channel-ranking-go/internal/service/youtube"
	"github.com/kapu/channel-ranking-go/internal/util"
	"github.com/kapu/channel-ranking-go/pkg/errors"
)

// ChannelSource is the slice of the video platform client used by ingestion.
type ChannelSource interface {
	GetChannelDetails(ctx context.Context, channelID string) (*youtube.ChannelDetails, error)
	ResolveChannelID(ctx context.Context, input string) (string, error)
	ListRecentVideos(ctx context.Context, uploadsPlaylistID string, maxVideos int, publishedAfter time.Time) ([]*domain.Video, error)
}

// Invalidator drops cached reads once new data has been written.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type Options struct {
	Clock             util.Clock
	RequestDelay      time.Duration
	MaxVideos         int
	RefreshWindowDays int
	Invalidator       Invalidator
	Metrics           *Metrics
}

// ChannelResult is the outcome of refreshing one channel.
type ChannelResult struct {
	ID            string `json:"id"`
	Success       bool   `json:"success"`
	VideosUpdated int    `json:"videosUpdated,omitempty"`
	Error         string `json:"error,omitempty"`
}

type RefreshReport struct {
	RunID      string          `json:"runId"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Results    []ChannelResult `json:"results"`
}

// Refresher pulls channel and video data from the platform into the repository.
type Refresher struct {
	source  ChannelSource
	repo    domain.ChannelRepository
	logger  *zap.Logger
	clock   util.Clock
	limiter *rate.Limiter
	opts    Options
	running atomic.Bool
}

func NewRefresher(source ChannelSource, repo domain.ChannelRepository, logger *zap.Logger, opts Options) *Refresher {
	if opts.Clock == nil {
		opts.Clock = util.SystemClock{}
	}
	if opts.MaxVideos <= 0 {
		opts.MaxVideos = constants.YouTubeAPI.DefaultMaxVideos
	}
	if opts.RefreshWindowDays <= 0 {
		opts.RefreshWindowDays = constants.YouTubeAPI.DefaultRefreshDays
	}

	limit := rate.Inf
	if opts.RequestDelay > 0 {
		limit = rate.Every(opts.RequestDelay)
	}

	return &Refresher{
		source:  source,
		repo:    repo,
		logger:  logger,
		clock:   opts.Clock,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
	}
}

// RefreshAll refreshes every tracked channel sequentially. Per-channel failures are
// reported, not returned; only listing channels or a cancelled context fails the run.
func (r *Refresher) RefreshAll(ctx context.Context) (*RefreshReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, errors.NewAppError("refresh already in progress", errors.CodeConflict, http.StatusConflict, nil)
	}
	defer r.running.Store(false)

	channels, err := r.repo.ListChannels(ctx)
	if err != nil {
		return nil, errors.NewServiceError("failed to list channels", "store", "refresh_all", err)
	}

	report := &RefreshReport{
		RunID:     uuid.NewString(),
		StartedAt: r.clock.Now(),
		Results:   make([]ChannelResult, 0, len(channels)),
	}
	r.logger.Info("Channel refresh started",
		zap.String("run", report.RunID),
		zap.Int("channels", len(channels)))

	defer r.invalidate(ctx)

	for _, ch := range channels {
		if err := r.limiter.Wait(ctx); err != nil {
			return report, err
		}
		report.add(r.refreshOne(ctx, ch.ID, ""))
	}

	report.FinishedAt = r.clock.Now()
	r.opts.Metrics.recordRun(report.StartedAt, report.FinishedAt)
	r.logger.Info("Channel refresh completed",
		zap.String("run", report.RunID),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, nil
}

// RefreshChannel refreshes one tracked channel.
func (r *Refresher) RefreshChannel(ctx context.Context, channelID string) (*RefreshReport, error) {
	if channelID == "" {
		return nil, errors.NewValidationError("channel id is required", "channelId", channelID)
	}

	report := &RefreshReport{RunID: uuid.NewString(), StartedAt: r.clock.Now()}
	report.add(r.refreshOne(ctx, channelID, ""))
	report.FinishedAt = r.clock.Now()
	r.invalidate(ctx)
	return report, nil
}

// AddChannel resolves an id, URL or handle and starts tracking it under category.
func (r *Refresher) AddChannel(ctx context.Context, input, category string) (*domain.Channel, error) {
	channelID, err := r.source.ResolveChannelID(ctx, input)
	if err != nil {
		return nil, err
	}
	if category == "" || category == domain.CategoryAll {
		category = domain.DefaultCategory
	}

	result := r.refreshOne(ctx, channelID, category)
	r.invalidate(ctx)
	if !result.Success {
		if result.err != nil {
			return nil, result.err
		}
		return nil, errors.NewNotFoundError("channel", input)
	}

	ch, err := r.repo.GetChannel(ctx, channelID)
	if err != nil {
		return nil, errors.NewServiceError("failed to load channel", "store", "add_channel", err)
	}
	r.logger.Info("Channel added",
		zap.String("channel", channelID),
		zap.String("category", category),
		zap.Int("videos", result.VideosUpdated))
	return ch, nil
}

type channelOutcome struct {
	ChannelResult
	err error
}

func (rep *RefreshReport) add(o channelOutcome) {
	if o.Success {
		rep.Succeeded++
	} else {
		rep.Failed++
	}
	rep.Results = append(rep.Results, o.ChannelResult)
}

// refreshOne fetches details, recent uploads and a stats snapshot for one channel.
// An empty category keeps the stored one.
func (r *Refresher) refreshOne(ctx context.Context, channelID, category string) channelOutcome {
	videos, err := r.fetchAndStore(ctx, channelID, category)
	r.opts.Metrics.recordChannel(videos, err)
	if err != nil {
		r.logger.Warn("Channel refresh failed",
			zap.String("channel", channelID),
			zap.Error(err))
		return channelOutcome{ChannelResult: ChannelResult{ID: channelID, Error: err.Error()}, err: err}
	}
	return channelOutcome{ChannelResult: ChannelResult{ID: channelID, Success: true, VideosUpdated: videos}}
}

func (r *Refresher) fetchAndStore(ctx context.Context, channelID, category string) (int, error) {
	details, err := r.source.GetChannelDetails(ctx, channelID)
	if err != nil {
		return 0, err
	}
	if details == nil {
		return 0, errors.NewNotFoundError("channel", channelID)
	}

	ch := details.Channel
	ch.Category = category
	if err := r.repo.UpsertChannel(ctx, ch); err != nil {
		return 0, errors.NewServiceError("failed to save channel", "store", "upsert_channel", err)
	}

	now := r.clock.Now()
	since := now.AddDate(0, 0, -r.opts.RefreshWindowDays)
	videos, err := r.source.ListRecentVideos(ctx, details.UploadsPlaylistID, r.opts.MaxVideos, since)
	if err != nil {
		return 0, err
	}
	for _, v := range videos {
		if v.ChannelID == "" {
			v.ChannelID = channelID
		}
	}
	if err := r.repo.UpsertVideos(ctx, videos); err != nil {
		return 0, errors.NewServiceError("failed to save videos", "store", "upsert_videos", err)
	}

	if err := r.repo.SaveChannelStats(ctx, buildSnapshot(ch, videos, now)); err != nil {
		return 0, errors.NewServiceError("failed to save stats", "store", "save_stats", err)
	}

	r.logger.Debug("Channel refreshed",
		zap.String("channel", channelID),
		zap.Int("videos", len(videos)))
	return len(videos), nil
}

// buildSnapshot totals engagement over the uploads fetched in this refresh window.
func buildSnapshot(ch *domain.Channel, recent []*domain.Video, at time.Time) *domain.ChannelStatsSnapshot {
	s := &domain.ChannelStatsSnapshot{
		ID:               uuid.NewString(),
		ChannelID:        ch.ID,
		Date:             at,
		SubscriberCount:  ch.SubscriberCount,
		VideoCount:       ch.VideoCount,
		ViewCount:        ch.ViewCount,
		VideosLast30Days: int64(len(recent)),
	}
	for _, v := range recent {
		s.TotalLikes += v.LikeCount
		s.TotalComments += v.CommentCount
		s.ViewsLast30Days += v.ViewCount
	}
	return s
}

func (r *Refresher) invalidate(ctx context.Context) {
	if r.opts.Invalidator != nil {
		r.opts.Invalidator.Invalidate(ctx)
	}
}
