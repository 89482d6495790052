package domain

import (
	"context"
	"time"
)

// VideoRecordStore is the read/write contract the analytics engine needs from storage.
//
// GetChannel returns (nil, nil) for an unknown id. A nil since means full history and
// VideoTypeAll applies no type filter. ListVideosForChannelIDs callers keep len(ids) within
// the store's batch limit. UpdateChannels applies every patch or none.
type VideoRecordStore interface {
	ListChannels(ctx context.Context) ([]*Channel, error)
	GetChannel(ctx context.Context, channelID string) (*Channel, error)
	ListVideosSince(ctx context.Context, since *time.Time, videoType VideoType) ([]*Video, error)
	ListVideosForChannelIDs(ctx context.Context, channelIDs []string, since *time.Time, videoType VideoType) ([]*Video, error)
	UpdateChannels(ctx context.Context, patches ...ChannelPatch) error
}

// CategoryAll disables the category filter of ListChannelsByCategory.
const CategoryAll = "all"

// DefaultCategory is assigned to channels added without one.
const DefaultCategory = "general"

// VideoPageQuery selects one page of a channel's videos, newest first.
type VideoPageQuery struct {
	ChannelID    string
	Since        time.Time
	VideoType    VideoType
	Limit        int
	AfterVideoID string
}

// VideoPage is a keyset-paginated slice of a channel's videos.
type VideoPage struct {
	Videos      []VideoSummary `json:"videos"`
	HasMore     bool           `json:"hasMore"`
	LastVideoID string         `json:"lastVideoId,omitempty"`
}

// ChannelRepository is the full storage surface used by ingestion and the HTTP layer.
type ChannelRepository interface {
	VideoRecordStore

	ListChannelsByCategory(ctx context.Context, category string) ([]*Channel, error)
	UpsertChannel(ctx context.Context, channel *Channel) error
	UpsertVideos(ctx context.Context, videos []*Video) error
	ListChannelVideos(ctx context.Context, query VideoPageQuery) (*VideoPage, error)
	SaveChannelStats(ctx context.Context, snapshot *ChannelStatsSnapshot) error
	ListChannelStats(ctx context.Context, channelID string, limit int) ([]*ChannelStatsSnapshot, error)
}
