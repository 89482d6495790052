package ingest

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/domain"
	"github.com/kapu/channel-ranking-go/internal/service/youtube"
	"github.com/kapu/channel-ranking-go/internal/util"
	"github.com/kapu/channel-ranking-go/pkg/errors"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	channels map[string]*domain.Channel
	videos   map[string][]*domain.Video
	failFor  map[string]error
	handles  map[string]string

	lastSince time.Time
	lastMax   int
}

func (s *fakeSource) GetChannelDetails(ctx context.Context, channelID string) (*youtube.ChannelDetails, error) {
	if err := s.failFor[channelID]; err != nil {
		return nil, err
	}
	ch, ok := s.channels[channelID]
	if !ok {
		return nil, nil
	}
	copied := *ch
	return &youtube.ChannelDetails{Channel: &copied, UploadsPlaylistID: "UU" + channelID}, nil
}

func (s *fakeSource) ResolveChannelID(ctx context.Context, input string) (string, error) {
	if id, ok := s.handles[input]; ok {
		return id, nil
	}
	return input, nil
}

func (s *fakeSource) ListRecentVideos(ctx context.Context, uploadsPlaylistID string, maxVideos int, publishedAfter time.Time) ([]*domain.Video, error) {
	s.lastSince = publishedAfter
	s.lastMax = maxVideos
	return s.videos[uploadsPlaylistID[2:]], nil
}

type fakeRepo struct {
	mu       sync.Mutex
	channels map[string]*domain.Channel
	order    []string
	videos   []*domain.Video
	stats    []*domain.ChannelStatsSnapshot
}

func newFakeRepo(ids ...string) *fakeRepo {
	r := &fakeRepo{channels: make(map[string]*domain.Channel)}
	for _, id := range ids {
		r.channels[id] = &domain.Channel{ID: id, Category: "music"}
		r.order = append(r.order, id)
	}
	return r
}

func (r *fakeRepo) ListChannels(ctx context.Context) ([]*domain.Channel, error) {
	out := make([]*domain.Channel, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.channels[id])
	}
	return out, nil
}

func (r *fakeRepo) ListChannelsByCategory(ctx context.Context, category string) ([]*domain.Channel, error) {
	return r.ListChannels(ctx)
}

func (r *fakeRepo) GetChannel(ctx context.Context, channelID string) (*domain.Channel, error) {
	return r.channels[channelID], nil
}

func (r *fakeRepo) ListVideosSince(ctx context.Context, since *time.Time, videoType domain.VideoType) ([]*domain.Video, error) {
	return r.videos, nil
}

func (r *fakeRepo) ListVideosForChannelIDs(ctx context.Context, channelIDs []string, since *time.Time, videoType domain.VideoType) ([]*domain.Video, error) {
	return r.videos, nil
}

func (r *fakeRepo) UpdateChannels(ctx context.Context, patches ...domain.ChannelPatch) error {
	return nil
}

func (r *fakeRepo) UpsertChannel(ctx context.Context, channel *domain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.channels[channel.ID]; ok {
		if channel.Category == "" {
			channel.Category = existing.Category
		}
	} else {
		r.order = append(r.order, channel.ID)
	}
	r.channels[channel.ID] = channel
	return nil
}

func (r *fakeRepo) UpsertVideos(ctx context.Context, videos []*domain.Video) error {
	r.videos = append(r.videos, videos...)
	return nil
}

func (r *fakeRepo) ListChannelVideos(ctx context.Context, query domain.VideoPageQuery) (*domain.VideoPage, error) {
	return &domain.VideoPage{}, nil
}

func (r *fakeRepo) SaveChannelStats(ctx context.Context, snapshot *domain.ChannelStatsSnapshot) error {
	r.stats = append(r.stats, snapshot)
	return nil
}

func (r *fakeRepo) ListChannelStats(ctx context.Context, channelID string, limit int) ([]*domain.ChannelStatsSnapshot, error) {
	return r.stats, nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(ctx context.Context) { c.calls++ }

func newSource() *fakeSource {
	return &fakeSource{
		channels: map[string]*domain.Channel{
			"A": {ID: "A", Title: "Alpha", SubscriberCount: 100, ViewCount: 5000, VideoCount: 12},
			"B": {ID: "B", Title: "Beta"},
		},
		videos: map[string][]*domain.Video{
			"A": {
				{ID: "a1", ViewCount: 300, LikeCount: 30, CommentCount: 3, VideoType: domain.VideoTypeNormal},
				{ID: "a2", ViewCount: 200, LikeCount: 20, CommentCount: 2, VideoType: domain.VideoTypeShorts},
			},
		},
		failFor: map[string]error{},
		handles: map[string]string{"@alpha": "A"},
	}
}

func TestRefreshAllReportsPerChannelResults(t *testing.T) {
	src := newSource()
	src.failFor["B"] = stderrors.New("upstream timeout")
	repo := newFakeRepo("A", "B", "gone")
	inv := &countingInvalidator{}
	metrics := NewMetrics()

	r := NewRefresher(src, repo, zap.NewNop(), Options{
		Clock:       util.FixedClock{At: testNow},
		Invalidator: inv,
		Metrics:     metrics,
	})

	report, err := r.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll returned error: %v", err)
	}
	if report.RunID == "" || report.Succeeded != 1 || report.Failed != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !report.Results[0].Success || report.Results[0].VideosUpdated != 2 {
		t.Fatalf("unexpected result for A: %+v", report.Results[0])
	}
	if report.Results[1].Error == "" || report.Results[2].Success {
		t.Fatalf("failures not reported: %+v", report.Results)
	}
	if inv.calls != 1 {
		t.Fatalf("invalidations = %d, want 1", inv.calls)
	}

	if repo.channels["A"].Category != "music" || repo.channels["A"].Title != "Alpha" {
		t.Fatalf("refresh lost stored category: %+v", repo.channels["A"])
	}
	for _, v := range repo.videos {
		if v.ChannelID != "A" {
			t.Fatalf("video %s missing channel id", v.ID)
		}
	}

	if len(repo.stats) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(repo.stats))
	}
	s := repo.stats[0]
	if s.TotalLikes != 50 || s.TotalComments != 5 || s.ViewsLast30Days != 500 || s.VideosLast30Days != 2 || s.SubscriberCount != 100 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if !s.Date.Equal(testNow) || s.ID == "" {
		t.Fatalf("snapshot date/id = %v/%q", s.Date, s.ID)
	}

	if !src.lastSince.Equal(testNow.AddDate(0, 0, -30)) || src.lastMax != 200 {
		t.Fatalf("fetch window = %v max %d", src.lastSince, src.lastMax)
	}

	if got := testutil.ToFloat64(metrics.channelsRefresh.WithLabelValues(resultFailure)); got != 2 {
		t.Fatalf("failure counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.videosUpserted); got != 2 {
		t.Fatalf("videos counter = %v, want 2", got)
	}
}

func TestRefreshAllRejectsConcurrentRun(t *testing.T) {
	r := NewRefresher(newSource(), newFakeRepo(), zap.NewNop(), Options{})
	r.running.Store(true)

	_, err := r.RefreshAll(context.Background())
	if errors.StatusCode(err) != 409 {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRefreshAllStopsOnCancelledContext(t *testing.T) {
	r := NewRefresher(newSource(), newFakeRepo("A", "B"), zap.NewNop(), Options{RequestDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.RefreshAll(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if r.running.Load() {
		t.Fatal("running flag left set")
	}
}

func TestAddChannelResolvesHandleAndDefaultsCategory(t *testing.T) {
	repo := newFakeRepo()
	inv := &countingInvalidator{}
	r := NewRefresher(newSource(), repo, zap.NewNop(), Options{Clock: util.FixedClock{At: testNow}, Invalidator: inv})

	ch, err := r.AddChannel(context.Background(), "@alpha", "")
	if err != nil {
		t.Fatalf("AddChannel returned error: %v", err)
	}
	if ch.ID != "A" || ch.Category != domain.DefaultCategory {
		t.Fatalf("unexpected channel: %+v", ch)
	}
	if inv.calls != 1 {
		t.Fatalf("invalidations = %d, want 1", inv.calls)
	}

	ch, err = r.AddChannel(context.Background(), "B", "gaming")
	if err != nil || ch.Category != "gaming" {
		t.Fatalf("AddChannel(B) = (%+v, %v)", ch, err)
	}
}

func TestAddChannelUnknownIsNotFound(t *testing.T) {
	r := NewRefresher(newSource(), newFakeRepo(), zap.NewNop(), Options{})

	if _, err := r.AddChannel(context.Background(), "UCnothing", "music"); !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRefreshChannelSingle(t *testing.T) {
	repo := newFakeRepo("A")
	r := NewRefresher(newSource(), repo, zap.NewNop(), Options{Clock: util.FixedClock{At: testNow}})

	report, err := r.RefreshChannel(context.Background(), "A")
	if err != nil {
		t.Fatalf("RefreshChannel returned error: %v", err)
	}
	if len(report.Results) != 1 || !report.Results[0].Success {
		t.Fatalf("unexpected report: %+v", report)
	}

	if _, err := r.RefreshChannel(context.Background(), ""); !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := NewMetrics().Register(reg); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	var nilMetrics *Metrics
	nilMetrics.recordChannel(1, nil)
	nilMetrics.recordRun(testNow, testNow)
}
