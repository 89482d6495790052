package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/constants"
	"github.com/kapu/channel-ranking-go/internal/domain"
)

// Cache is the port the cached store reads through. Get reports a miss as (false, nil).
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

type CacheTTLs struct {
	Channels time.Duration
	Videos   time.Duration
	Stats    time.Duration
}

func (t CacheTTLs) withDefaults() CacheTTLs {
	if t.Channels <= 0 {
		t.Channels = constants.CacheTTL.Channels
	}
	if t.Videos <= 0 {
		t.Videos = constants.CacheTTL.Videos
	}
	if t.Stats <= 0 {
		t.Stats = constants.CacheTTL.Stats
	}
	return t
}

// CachedStore decorates a repository with read-through caching. Cache failures are logged
// and the call falls through to the repository; writes invalidate the affected prefixes.
type CachedStore struct {
	next   domain.ChannelRepository
	cache  Cache
	logger *zap.Logger
	ttl    CacheTTLs
}

func NewCachedStore(next domain.ChannelRepository, cache Cache, logger *zap.Logger, ttl CacheTTLs) *CachedStore {
	return &CachedStore{
		next:   next,
		cache:  cache,
		logger: logger,
		ttl:    ttl.withDefaults(),
	}
}

func readThrough[T any](ctx context.Context, s *CachedStore, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var cached T
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("Cache read failed, falling back to store", zap.String("key", key), zap.Error(err))
	} else if found {
		return cached, nil
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

func (s *CachedStore) invalidate(ctx context.Context, prefixes ...string) {
	for _, prefix := range prefixes {
		if err := s.cache.InvalidatePrefix(ctx, prefix); err != nil {
			s.logger.Warn("Cache invalidation failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}

// Invalidate drops every cached read. Used after bulk ingestion.
func (s *CachedStore) Invalidate(ctx context.Context) {
	s.invalidate(ctx,
		constants.CachePrefix.Channels,
		constants.CachePrefix.Channel,
		constants.CachePrefix.Videos,
		constants.CachePrefix.Stats,
	)
}

func windowKey(since *time.Time, videoType domain.VideoType) string {
	window := "all"
	if since != nil {
		window = fmt.Sprintf("%d", since.Unix())
	}
	vt := string(videoType)
	if vt == "" {
		vt = "any"
	}
	return window + "_" + vt
}

// videosTTL keeps calendar-aligned windows for the full video TTL. Trailing windows produce a
// new key on every request, so they only live as long as the channel list.
func (s *CachedStore) videosTTL(since *time.Time) time.Duration {
	if since == nil {
		return s.ttl.Videos
	}
	if since.Nanosecond() == 0 && since.Second() == 0 && since.Minute() == 0 {
		return s.ttl.Videos
	}
	return s.ttl.Channels
}

func (s *CachedStore) ListChannels(ctx context.Context) ([]*domain.Channel, error) {
	return readThrough(ctx, s, constants.CachePrefix.Channels+"all", s.ttl.Channels, func() ([]*domain.Channel, error) {
		return s.next.ListChannels(ctx)
	})
}

func (s *CachedStore) ListChannelsByCategory(ctx context.Context, category string) ([]*domain.Channel, error) {
	if category == "" {
		category = domain.CategoryAll
	}
	return readThrough(ctx, s, constants.CachePrefix.Channels+"cat_"+category, s.ttl.Channels, func() ([]*domain.Channel, error) {
		return s.next.ListChannelsByCategory(ctx, category)
	})
}

// GetChannel caches hits only, so a channel added later is visible immediately.
func (s *CachedStore) GetChannel(ctx context.Context, channelID string) (*domain.Channel, error) {
	key := constants.CachePrefix.Channel + channelID

	var cached domain.Channel
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("Cache read failed, falling back to store", zap.String("key", key), zap.Error(err))
	} else if found {
		return &cached, nil
	}

	ch, err := s.next.GetChannel(ctx, channelID)
	if err != nil || ch == nil {
		return ch, err
	}
	if err := s.cache.Set(ctx, key, ch, s.ttl.Channels); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return ch, nil
}

func (s *CachedStore) ListVideosSince(ctx context.Context, since *time.Time, videoType domain.VideoType) ([]*domain.Video, error) {
	key := constants.CachePrefix.Videos + "since_" + windowKey(since, videoType)
	return readThrough(ctx, s, key, s.videosTTL(since), func() ([]*domain.Video, error) {
		return s.next.ListVideosSince(ctx, since, videoType)
	})
}

func (s *CachedStore) ListVideosForChannelIDs(ctx context.Context, channelIDs []string, since *time.Time, videoType domain.VideoType) ([]*domain.Video, error) {
	ids := slices.Clone(channelIDs)
	slices.Sort(ids)
	key := constants.CachePrefix.Videos + "ids_" + strings.Join(ids, ",") + "_" + windowKey(since, videoType)
	return readThrough(ctx, s, key, s.videosTTL(since), func() ([]*domain.Video, error) {
		return s.next.ListVideosForChannelIDs(ctx, channelIDs, since, videoType)
	})
}

// ListChannelVideos is not cached; cursor pages are cheap and rarely repeated.
func (s *CachedStore) ListChannelVideos(ctx context.Context, query domain.VideoPageQuery) (*domain.VideoPage, error) {
	return s.next.ListChannelVideos(ctx, query)
}

func (s *CachedStore) ListChannelStats(ctx context.Context, channelID string, limit int) ([]*domain.ChannelStatsSnapshot, error) {
	key := fmt.Sprintf("%s%s_%d", constants.CachePrefix.Stats, channelID, limit)
	return readThrough(ctx, s, key, s.ttl.Stats, func() ([]*domain.ChannelStatsSnapshot, error) {
		return s.next.ListChannelStats(ctx, channelID, limit)
	})
}

func (s *CachedStore) UpdateChannels(ctx context.Context, patches ...domain.ChannelPatch) error {
	if err := s.next.UpdateChannels(ctx, patches...); err != nil {
		return err
	}
	s.invalidate(ctx, constants.CachePrefix.Channels, constants.CachePrefix.Channel)
	return nil
}

func (s *CachedStore) UpsertChannel(ctx context.Context, channel *domain.Channel) error {
	if err := s.next.UpsertChannel(ctx, channel); err != nil {
		return err
	}
	s.invalidate(ctx, constants.CachePrefix.Channels, constants.CachePrefix.Channel+channel.ID)
	return nil
}

func (s *CachedStore) UpsertVideos(ctx context.Context, videos []*domain.Video) error {
	if err := s.next.UpsertVideos(ctx, videos); err != nil {
		return err
	}
	s.invalidate(ctx, constants.CachePrefix.Videos)
	return nil
}

func (s *CachedStore) SaveChannelStats(ctx context.Context, snapshot *domain.ChannelStatsSnapshot) error {
	if err := s.next.SaveChannelStats(ctx, snapshot); err != nil {
		return err
	}
	s.invalidate(ctx, constants.CachePrefix.Stats+snapshot.ChannelID+"_")
	return nil
}
