package constants

import "time"

var CacheTTL = struct {
	Channels time.Duration
	Videos   time.Duration
	Stats    time.Duration
}{
	Channels: 1 * time.Minute, // channel list changes with admin edits
	Videos:   12 * time.Hour,  // videos only change on the periodic refresh
	Stats:    12 * time.Hour,  // snapshots are written once per refresh
}

// Cache key prefixes. Writes invalidate by prefix.
var CachePrefix = struct {
	Channels string
	Channel  string
	Videos   string
	Stats    string
}{
	Channels: "channels_",
	Channel:  "channel_",
	Videos:   "videos_",
	Stats:    "stats_",
}

var Analytics = struct {
	MinVideosForBaseline int
	ViralZScore          float64
	SilverZScore         float64
	GoldZScore           float64
	DiamondZScore        float64
}{
	MinVideosForBaseline: 5,
	ViralZScore:          2.0,
	SilverZScore:         3.0,
	GoldZScore:           5.0,
	DiamondZScore:        10.0,
}

var QueryLimits = struct {
	MaxChannelIDsPerQuery int
	MaxGroupBatchSize     int
	DefaultGroupFanOut    int
	DefaultVideoPageSize  int
	MaxVideoPageSize      int
	StatsHistoryLimit     int
}{
	MaxChannelIDsPerQuery: 10,
	MaxGroupBatchSize:     30,
	DefaultGroupFanOut:    4,
	DefaultVideoPageSize:  5,
	MaxVideoPageSize:      50,
	StatsHistoryLimit:     30,
}

var YouTubeAPI = struct {
	MaxIDsPerRequest    int
	DailyQuotaLimit     int
	QuotaSafetyMargin   int
	ChannelsListCost    int
	VideosListCost      int
	PlaylistItemsCost   int
	SearchListCost      int
	DefaultMaxVideos    int
	DefaultRefreshDays  int
	DefaultRequestDelay time.Duration
}{
	MaxIDsPerRequest:    50,
	DailyQuotaLimit:     10000,
	QuotaSafetyMargin:   500,
	ChannelsListCost:    1,
	VideosListCost:      1,
	PlaylistItemsCost:   1,
	SearchListCost:      100,
	DefaultMaxVideos:    200,
	DefaultRefreshDays:  30,
	DefaultRequestDelay: time.Second,
}

var CircuitBreakerConfig = struct {
	FailureThreshold uint32
	Interval         time.Duration
	Timeout          time.Duration
	MaxRequests      uint32
}{
	FailureThreshold: 3,
	Interval:         time.Minute,
	Timeout:          30 * time.Second,
	MaxRequests:      1,
}
