package analytics

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kapu/channel-ranking-go/internal/domain"
)

type fakeStore struct {
	mu       sync.Mutex
	channels []*domain.Channel
	videos   []*domain.Video

	listChannelsErr error
	listVideosErr   error
	batchErr        error
	updateErr       error

	batchSizes      []int
	videoQueries    int
	updateCalls     int
	lastSince       *time.Time
	lastPatchBatch  []domain.ChannelPatch
	maxBatchAllowed int

	// beforeUpdate runs once, outside the lock, ahead of the next UpdateChannels write.
	beforeUpdate func()
}

func newFakeStore(channels ...*domain.Channel) *fakeStore {
	return &fakeStore{channels: channels, maxBatchAllowed: 10}
}

func (s *fakeStore) addVideos(videos ...*domain.Video) {
	s.videos = append(s.videos, videos...)
}

func (s *fakeStore) ListChannels(ctx context.Context) ([]*domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listChannelsErr != nil {
		return nil, s.listChannelsErr
	}
	out := make([]*domain.Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		c := *ch
		c.SecondaryChannelIDs = slices.Clone(ch.SecondaryChannelIDs)
		out = append(out, &c)
	}
	return out, nil
}

func (s *fakeStore) GetChannel(ctx context.Context, channelID string) (*domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.channels {
		if ch.ID == channelID {
			c := *ch
			c.SecondaryChannelIDs = slices.Clone(ch.SecondaryChannelIDs)
			return &c, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) channel(id string) *domain.Channel {
	ch, _ := s.GetChannel(context.Background(), id)
	return ch
}

func (s *fakeStore) matching(since *time.Time, videoType domain.VideoType, include func(*domain.Video) bool) []*domain.Video {
	out := make([]*domain.Video, 0)
	for _, v := range s.videos {
		if since != nil && v.PublishedAt.Before(*since) {
			continue
		}
		if !videoType.Matches(v.VideoType) || !include(v) {
			continue
		}
		c := *v
		out = append(out, &c)
	}
	return out
}

func (s *fakeStore) ListVideosSince(ctx context.Context, since *time.Time, videoType domain.VideoType) ([]*domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoQueries++
	s.lastSince = since
	if s.listVideosErr != nil {
		return nil, s.listVideosErr
	}
	return s.matching(since, videoType, func(*domain.Video) bool { return true }), nil
}

func (s *fakeStore) ListVideosForChannelIDs(ctx context.Context, channelIDs []string, since *time.Time, videoType domain.VideoType) ([]*domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoQueries++
	s.batchSizes = append(s.batchSizes, len(channelIDs))
	if s.batchErr != nil {
		return nil, s.batchErr
	}
	if len(channelIDs) > s.maxBatchAllowed {
		return nil, fmt.Errorf("too many ids in one query: %d", len(channelIDs))
	}
	return s.matching(since, videoType, func(v *domain.Video) bool {
		return slices.Contains(channelIDs, v.ChannelID)
	}), nil
}

func (s *fakeStore) UpdateChannels(ctx context.Context, patches ...domain.ChannelPatch) error {
	s.mu.Lock()
	hook := s.beforeUpdate
	s.beforeUpdate = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	s.lastPatchBatch = patches
	if s.updateErr != nil {
		return s.updateErr
	}
	for _, p := range patches {
		for i, ch := range s.channels {
			if ch.ID == p.ChannelID {
				updated := p.Apply(*ch)
				s.channels[i] = &updated
			}
		}
	}
	return nil
}

func channel(id, title string) *domain.Channel {
	return &domain.Channel{ID: id, Title: title}
}

func video(id, channelID string, views int64, publishedAt time.Time) *domain.Video {
	return &domain.Video{
		ID:          id,
		ChannelID:   channelID,
		ViewCount:   views,
		PublishedAt: publishedAt,
		VideoType:   domain.VideoTypeNormal,
	}
}

func intPtr(v int) *int {
	return &v
}
