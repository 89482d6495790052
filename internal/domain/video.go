package domain

import (
	"fmt"
	"strings"
	"time"
)

type VideoType string

const (
	VideoTypeAll    VideoType = ""
	VideoTypeNormal VideoType = "normal"
	VideoTypeShorts VideoType = "shorts"
	VideoTypeLive   VideoType = "live"
)

// ShortsMaxDuration is the exclusive upper bound of a shorts video.
const ShortsMaxDuration = 300 * time.Second

// ParseVideoType accepts "", "all", "normal", "shorts" and "live".
func ParseVideoType(value string) (VideoType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "all":
		return VideoTypeAll, nil
	case string(VideoTypeNormal):
		return VideoTypeNormal, nil
	case string(VideoTypeShorts):
		return VideoTypeShorts, nil
	case string(VideoTypeLive):
		return VideoTypeLive, nil
	default:
		return VideoTypeAll, fmt.Errorf("unknown video type %q", value)
	}
}

// IsFilter reports whether the type narrows a query.
func (t VideoType) IsFilter() bool {
	return t != VideoTypeAll
}

// Matches reports whether a video of type v passes the filter t.
func (t VideoType) Matches(v VideoType) bool {
	return !t.IsFilter() || t == v
}

// VideoTypeForDuration classifies a video by its length.
func VideoTypeForDuration(d time.Duration) VideoType {
	if d < ShortsMaxDuration {
		return VideoTypeShorts
	}
	return VideoTypeNormal
}

// Video is an ingested upload. PublishedAt never changes; counters are refreshed on every fetch.
type Video struct {
	ID           string    `json:"id"`
	ChannelID    string    `json:"channelId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	PublishedAt  time.Time `json:"publishedAt"`
	ViewCount    int64     `json:"viewCount"`
	LikeCount    int64     `json:"likeCount"`
	CommentCount int64     `json:"commentCount"`
	Duration     string    `json:"duration"`
	VideoType    VideoType `json:"videoType"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// VideoSummary is the lightweight projection used in ranking payloads.
type VideoSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	PublishedAt  time.Time `json:"publishedAt"`
	ViewCount    int64     `json:"viewCount"`
	LikeCount    int64     `json:"likeCount"`
	CommentCount int64     `json:"commentCount"`
	VideoType    VideoType `json:"videoType"`
}

func (v *Video) Summary() VideoSummary {
	return VideoSummary{
		ID:           v.ID,
		Title:        v.Title,
		ThumbnailURL: v.ThumbnailURL,
		PublishedAt:  v.PublishedAt,
		ViewCount:    v.ViewCount,
		LikeCount:    v.LikeCount,
		CommentCount: v.CommentCount,
		VideoType:    v.VideoType,
	}
}
