package domain

type ViralLevel string

const (
	ViralLevelBronze  ViralLevel = "bronze"
	ViralLevelSilver  ViralLevel = "silver"
	ViralLevelGold    ViralLevel = "gold"
	ViralLevelDiamond ViralLevel = "diamond"
)

// ViralVideo is a video whose view count is an outlier for its channel. Derived, never stored.
type ViralVideo struct {
	Video
	ChannelTitle   string     `json:"channelTitle"`
	ChannelAverage int64      `json:"channelAverage"`
	ZScore         float64    `json:"zScore"`
	Multiplier     float64    `json:"multiplier"`
	ViralLevel     ViralLevel `json:"viralLevel"`
	Percentile     float64    `json:"percentile"`
}

// PeriodChannelMetrics aggregates a channel's videos inside a day window.
type PeriodChannelMetrics struct {
	Channel
	PeriodViews    int64          `json:"periodViews"`
	PeriodVideos   int64          `json:"periodVideos"`
	PeriodLikes    int64          `json:"periodLikes"`
	PeriodComments int64          `json:"periodComments"`
	EngagementRate float64        `json:"engagementRate"`
	Videos         []VideoSummary `json:"videos"`
}

// GroupMetrics sums a primary channel and its resolved secondaries.
type GroupMetrics struct {
	PrimaryChannelID string     `json:"primaryChannelId"`
	GroupName        string     `json:"groupName"`
	Channels         []*Channel `json:"channels"`
	TotalViews       int64      `json:"totalViews"`
	TotalVideos      int64      `json:"totalVideos"`
	TotalLikes       int64      `json:"totalLikes"`
	TotalComments    int64      `json:"totalComments"`
	TotalSubscribers int64      `json:"totalSubscribers"`
}

// GroupRankingEntry is one row of the group leaderboard.
type GroupRankingEntry struct {
	GroupMetrics
	PrimaryChannel       *Channel `json:"primaryChannel"`
	ChannelsInGroup      int      `json:"channelsInGroup"`
	EngagementRate       float64  `json:"engagementRate"`
	AverageViewsPerVideo float64  `json:"averageViewsPerVideo"`
}

// EngagementRate returns (likes+comments)/views as a percentage, 0 when there are no views.
func EngagementRate(likes, comments, views int64) float64 {
	if views <= 0 {
		return 0
	}
	return float64(likes+comments) / float64(views) * 100
}
