package domain

import "time"

// ChannelStatsSnapshot is recorded once per channel refresh.
type ChannelStatsSnapshot struct {
	ID               string    `json:"id"`
	ChannelID        string    `json:"channelId"`
	Date             time.Time `json:"date"`
	SubscriberCount  int64     `json:"subscriberCount"`
	VideoCount       int64     `json:"videoCount"`
	ViewCount        int64     `json:"viewCount"`
	TotalLikes       int64     `json:"totalLikes"`
	TotalComments    int64     `json:"totalComments"`
	VideosLast30Days int64     `json:"videosLast30Days"`
	ViewsLast30Days  int64     `json:"viewsLast30Days"`
}
