package youtube

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/kapu/channel-ranking-go/internal/constants"
	"github.com/kapu/channel-ranking-go/internal/domain"
	"github.com/kapu/channel-ranking-go/internal/util"
	"github.com/kapu/channel-ranking-go/pkg/errors"
)

var (
	channelParts = []string{"snippet", "statistics", "contentDetails"}
	videoParts   = []string{"snippet", "statistics", "contentDetails", "liveStreamingDetails"}
)

// ClientConfig selects how the Data API is reached. HTTPClient (OAuth) wins over APIKey.
type ClientConfig struct {
	APIKey     string
	HTTPClient *http.Client
	DailyQuota int
	// Endpoint overrides the API base URL.
	Endpoint string
}

// ChannelDetails is a fetched channel plus the playlist holding its uploads.
type ChannelDetails struct {
	Channel           *domain.Channel
	UploadsPlaylistID string
}

// Client wraps the YouTube Data API v3 with quota accounting and a circuit breaker.
type Client struct {
	service  *youtube.Service
	logger   *zap.Logger
	quota    *quotaTracker
	breaker  *gobreaker.CircuitBreaker[any]
	resolver *PageResolver
}

func NewClient(ctx context.Context, cfg ClientConfig, resolver *PageResolver, logger *zap.Logger) (*Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	default:
		return nil, fmt.Errorf("YouTube API key or OAuth client is required")
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	c := &Client{
		service:  service,
		logger:   logger,
		quota:    newQuotaTracker(cfg.DailyQuota, logger),
		resolver: resolver,
	}
	c.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "youtube-data-api",
		MaxRequests: constants.CircuitBreakerConfig.MaxRequests,
		Interval:    constants.CircuitBreakerConfig.Interval,
		Timeout:     constants.CircuitBreakerConfig.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= constants.CircuitBreakerConfig.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.IsQuotaExceeded(err) || isNotFoundAPIError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("YouTube circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	used, remaining, reset := c.quota.status()
	logger.Info("YouTube client initialized",
		zap.Int("quotaUsed", used),
		zap.Int("quotaRemaining", remaining),
		zap.Time("quotaReset", reset))

	return c, nil
}

// QuotaStatus reports local quota accounting.
func (c *Client) QuotaStatus() (used int, remaining int, resetTime time.Time) {
	return c.quota.status()
}

// call runs fn behind the quota tracker and the breaker.
func call[T any](c *Client, operation string, cost int, fn func() (T, error)) (T, error) {
	var zero T
	if err := c.quota.check(cost); err != nil {
		return zero, err
	}

	result, err := c.breaker.Execute(func() (any, error) {
		v, err := fn()
		if err != nil {
			return nil, c.translateError(err, cost)
		}
		return v, nil
	})
	if err != nil {
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, errors.NewServiceError("YouTube API temporarily unavailable", "youtube", operation, err)
		}
		return zero, err
	}

	c.quota.consume(cost)
	return result.(T), nil
}

func (c *Client) translateError(err error, cost int) error {
	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden {
		used, _, _ := c.quota.status()
		c.quota.exhaust()
		return errors.NewQuotaExceededError(used, c.quota.limit, cost)
	}
	if stderrors.As(err, &apiErr) {
		return errors.NewAPIError("YouTube API error", http.StatusBadGateway, map[string]any{
			"upstreamStatus": apiErr.Code,
		}).WithCause(err)
	}
	return fmt.Errorf("YouTube API error: %w", err)
}

func isNotFoundAPIError(err error) bool {
	var apiErr *googleapi.Error
	return stderrors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

// GetChannelDetails returns nil when the channel does not exist.
func (c *Client) GetChannelDetails(ctx context.Context, channelID string) (*ChannelDetails, error) {
	resp, err := call(c, "channels.list", constants.YouTubeAPI.ChannelsListCost, func() (*youtube.ChannelListResponse, error) {
		return c.service.Channels.List(channelParts).Id(channelID).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}

	item := resp.Items[0]
	details := &ChannelDetails{Channel: toChannel(item)}
	if item.ContentDetails != nil && item.ContentDetails.RelatedPlaylists != nil {
		details.UploadsPlaylistID = item.ContentDetails.RelatedPlaylists.Uploads
	}
	return details, nil
}

// ResolveChannelID turns an id, handle or channel URL into a channel id. Handles go through
// channels.list forHandle first; the public channel page and finally search are fallbacks.
func (c *Client) ResolveChannelID(ctx context.Context, input string) (string, error) {
	ident, ok := ParseChannelIdentifier(input)
	if !ok {
		return "", errors.NewValidationError("unrecognized channel identifier", "channelId", input)
	}
	if ident.Kind == IdentifierID {
		return ident.Value, nil
	}

	if ident.Kind == IdentifierHandle {
		resp, err := call(c, "channels.list", constants.YouTubeAPI.ChannelsListCost, func() (*youtube.ChannelListResponse, error) {
			return c.service.Channels.List([]string{"id"}).ForHandle(ident.Value).Context(ctx).Do()
		})
		if err != nil {
			return "", err
		}
		if len(resp.Items) > 0 {
			return resp.Items[0].Id, nil
		}
	}

	if c.resolver != nil {
		id, err := c.resolver.Resolve(ctx, ident)
		if err == nil {
			return id, nil
		}
		c.logger.Debug("Channel page lookup failed",
			zap.String("identifier", ident.Value),
			zap.Error(err))
	}

	resp, err := call(c, "search.list", constants.YouTubeAPI.SearchListCost, func() (*youtube.SearchListResponse, error) {
		return c.service.Search.List([]string{"snippet"}).Q(ident.Value).Type("channel").MaxResults(1).Context(ctx).Do()
	})
	if err != nil {
		return "", err
	}
	for _, item := range resp.Items {
		if item.Snippet != nil && item.Snippet.ChannelId != "" {
			return item.Snippet.ChannelId, nil
		}
		if item.Id != nil && item.Id.ChannelId != "" {
			return item.Id.ChannelId, nil
		}
	}
	return "", errors.NewNotFoundError("channel", input)
}

// ListRecentVideos walks the uploads playlist (newest first) and returns up to maxVideos
// uploads published at or after publishedAfter, with full statistics.
func (c *Client) ListRecentVideos(ctx context.Context, uploadsPlaylistID string, maxVideos int, publishedAfter time.Time) ([]*domain.Video, error) {
	if uploadsPlaylistID == "" {
		return []*domain.Video{}, nil
	}
	if maxVideos <= 0 {
		maxVideos = constants.YouTubeAPI.DefaultMaxVideos
	}

	ids, err := c.listUploadIDs(ctx, uploadsPlaylistID, maxVideos, publishedAfter)
	if err != nil {
		return nil, err
	}

	videos := make([]*domain.Video, 0, len(ids))
	for _, batch := range util.Chunk(ids, constants.YouTubeAPI.MaxIDsPerRequest) {
		resp, err := call(c, "videos.list", constants.YouTubeAPI.VideosListCost, func() (*youtube.VideoListResponse, error) {
			return c.service.Videos.List(videoParts).Id(batch...).Context(ctx).Do()
		})
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			v := toVideo(item)
			if v.PublishedAt.Before(publishedAfter) {
				continue
			}
			videos = append(videos, v)
		}
	}

	c.logger.Debug("Recent videos fetched",
		zap.String("playlist", uploadsPlaylistID),
		zap.Int("count", len(videos)))
	return videos, nil
}

func (c *Client) listUploadIDs(ctx context.Context, playlistID string, maxVideos int, publishedAfter time.Time) ([]string, error) {
	ids := make([]string, 0, maxVideos)
	pageToken := ""

	for len(ids) < maxVideos {
		pageSize := int64(min(constants.YouTubeAPI.MaxIDsPerRequest, maxVideos-len(ids)))
		resp, err := call(c, "playlistItems.list", constants.YouTubeAPI.PlaylistItemsCost, func() (*youtube.PlaylistItemListResponse, error) {
			req := c.service.PlaylistItems.List([]string{"contentDetails"}).
				PlaylistId(playlistID).
				MaxResults(pageSize)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			return req.Context(ctx).Do()
		})
		if err != nil {
			if isNotFoundAPIError(err) {
				return ids, nil
			}
			return nil, err
		}

		reachedOlder := false
		for _, item := range resp.Items {
			if item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
				continue
			}
			if published := parseTime(item.ContentDetails.VideoPublishedAt); !published.IsZero() && published.Before(publishedAfter) {
				reachedOlder = true
				break
			}
			ids = append(ids, item.ContentDetails.VideoId)
		}

		if reachedOlder || resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return ids, nil
}

func toChannel(item *youtube.Channel) *domain.Channel {
	ch := &domain.Channel{ID: item.Id}
	if s := item.Snippet; s != nil {
		ch.Title = s.Title
		ch.Description = s.Description
		ch.ThumbnailURL = extractThumbnail(s.Thumbnails)
		ch.PublishedAt = parseTime(s.PublishedAt)
		if s.CustomUrl != "" {
			ch.CustomURL = domain.StringPtr(s.CustomUrl)
		}
	}
	if st := item.Statistics; st != nil {
		ch.SubscriberCount = int64(st.SubscriberCount)
		ch.VideoCount = int64(st.VideoCount)
		ch.ViewCount = int64(st.ViewCount)
	}
	return ch
}

func toVideo(item *youtube.Video) *domain.Video {
	v := &domain.Video{ID: item.Id}
	broadcast := item.LiveStreamingDetails != nil
	if s := item.Snippet; s != nil {
		v.ChannelID = s.ChannelId
		v.Title = s.Title
		v.Description = s.Description
		v.ThumbnailURL = extractThumbnail(s.Thumbnails)
		v.PublishedAt = parseTime(s.PublishedAt)
		broadcast = broadcast || s.LiveBroadcastContent == "live" || s.LiveBroadcastContent == "upcoming"
	}
	if st := item.Statistics; st != nil {
		v.ViewCount = int64(st.ViewCount)
		v.LikeCount = int64(st.LikeCount)
		v.CommentCount = int64(st.CommentCount)
	}
	if cd := item.ContentDetails; cd != nil {
		v.Duration = cd.Duration
	}
	v.VideoType = ClassifyVideo(v.Duration, broadcast)
	return v
}

func extractThumbnail(thumbnails *youtube.ThumbnailDetails) string {
	if thumbnails == nil {
		return ""
	}
	for _, t := range []*youtube.Thumbnail{thumbnails.High, thumbnails.Medium, thumbnails.Default} {
		if t != nil && t.Url != "" {
			return t.Url
		}
	}
	return ""
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
