package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/domain"
	"github.com/kapu/channel-ranking-go/internal/util"
)

func newTestRanker(store domain.VideoRecordStore) *PeriodRanker {
	return NewPeriodRanker(store, zap.NewNop(), Options{Clock: util.FixedClock{At: testNow}})
}

func TestRankByPeriodExcludesVideosOutsideWindow(t *testing.T) {
	store := newFakeStore(channel("X", "X"))
	store.addVideos(
		video("in1", "X", 500, testNow.AddDate(0, 0, -1)),
		video("in2", "X", 300, testNow.AddDate(0, 0, -6)),
		video("old", "X", 10000, testNow.AddDate(0, 0, -10)),
	)

	got, err := newTestRanker(store).RankByPeriod(context.Background(), 7, domain.VideoTypeAll)
	if err != nil {
		t.Fatalf("RankByPeriod returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if got[0].PeriodViews != 800 || got[0].PeriodVideos != 2 {
		t.Fatalf("period views = %d videos = %d, want 800 and 2", got[0].PeriodViews, got[0].PeriodVideos)
	}
	if len(got[0].Videos) != 2 {
		t.Fatalf("got %d summaries, want 2", len(got[0].Videos))
	}
}

func TestRankByPeriodIncludesEveryChannel(t *testing.T) {
	store := newFakeStore(channel("quiet", "Quiet"), channel("busy", "Busy"), channel("idle", "Idle"))
	v := video("v1", "busy", 1000, testNow.Add(-time.Hour))
	v.LikeCount = 40
	v.CommentCount = 10
	store.addVideos(v)

	got, err := newTestRanker(store).RankByPeriod(context.Background(), 7, domain.VideoTypeAll)
	if err != nil {
		t.Fatalf("RankByPeriod returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[0].ID != "busy" || got[0].EngagementRate != 5 {
		t.Fatalf("first entry = %s with engagement %v", got[0].ID, got[0].EngagementRate)
	}
	// zero-view channels keep store order and a zero engagement rate
	if got[1].ID != "quiet" || got[2].ID != "idle" {
		t.Fatalf("tie order = %s, %s; want quiet, idle", got[1].ID, got[2].ID)
	}
	for _, m := range got[1:] {
		if m.EngagementRate != 0 || m.Videos == nil {
			t.Fatalf("channel %s: engagement %v videos %v", m.ID, m.EngagementRate, m.Videos)
		}
	}
}

func TestRankByPeriodKeepsUnroundedEngagement(t *testing.T) {
	store := newFakeStore(channel("X", "X"))
	v := video("v1", "X", 3, testNow.Add(-time.Hour))
	v.CommentCount = 1
	store.addVideos(v)

	got, err := newTestRanker(store).RankByPeriod(context.Background(), 7, domain.VideoTypeAll)
	if err != nil {
		t.Fatalf("RankByPeriod returned error: %v", err)
	}
	if want := 100.0 / 3; got[0].EngagementRate != want {
		t.Fatalf("engagement rate = %v, want %v", got[0].EngagementRate, want)
	}
}

func TestRankByPeriodUsesTrailingWindow(t *testing.T) {
	store := newFakeStore()
	if _, err := newTestRanker(store).RankByPeriod(context.Background(), 3, domain.VideoTypeAll); err != nil {
		t.Fatalf("RankByPeriod returned error: %v", err)
	}
	want := testNow.AddDate(0, 0, -3)
	if store.lastSince == nil || !store.lastSince.Equal(want) {
		t.Fatalf("since = %v, want %v", store.lastSince, want)
	}
}

func TestRankByPeriodFiltersByType(t *testing.T) {
	store := newFakeStore(channel("X", "X"))
	short := video("s", "X", 900, testNow.Add(-time.Hour))
	short.VideoType = domain.VideoTypeShorts
	store.addVideos(short, video("n", "X", 100, testNow.Add(-time.Hour)))

	got, err := newTestRanker(store).RankByPeriod(context.Background(), 1, domain.VideoTypeShorts)
	if err != nil {
		t.Fatalf("RankByPeriod returned error: %v", err)
	}
	if got[0].PeriodViews != 900 {
		t.Fatalf("period views = %d, want 900", got[0].PeriodViews)
	}
}

func TestRankByPeriodPropagatesStoreError(t *testing.T) {
	store := newFakeStore()
	store.listChannelsErr = errors.New("timeout")

	if _, err := newTestRanker(store).RankByPeriod(context.Background(), 7, domain.VideoTypeAll); err == nil {
		t.Fatal("expected error")
	}
}
