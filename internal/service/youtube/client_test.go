package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/domain"
	"github.com/kapu/channel-ranking-go/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), ClientConfig{
		APIKey:   "test-key",
		Endpoint: srv.URL + "/",
	}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func TestGetChannelDetails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/channels") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("id") == "missing" {
			writeJSON(w, `{"items":[]}`)
			return
		}
		writeJSON(w, `{"items":[{
			"id":"UCx",
			"snippet":{"title":"Sora","customUrl":"@sora","publishedAt":"2017-09-07T00:00:00Z",
				"thumbnails":{"default":{"url":"d.jpg"},"high":{"url":"h.jpg"}}},
			"statistics":{"subscriberCount":"1200","videoCount":"34","viewCount":"98765"},
			"contentDetails":{"relatedPlaylists":{"uploads":"UUx"}}
		}]}`)
	})

	details, err := c.GetChannelDetails(context.Background(), "UCx")
	if err != nil {
		t.Fatalf("GetChannelDetails returned error: %v", err)
	}
	ch := details.Channel
	if ch.Title != "Sora" || ch.ThumbnailURL != "h.jpg" || ch.SubscriberCount != 1200 || ch.ViewCount != 98765 {
		t.Fatalf("unexpected channel: %+v", ch)
	}
	if ch.CustomURL == nil || *ch.CustomURL != "@sora" || details.UploadsPlaylistID != "UUx" {
		t.Fatalf("unexpected details: %+v", details)
	}

	missing, err := c.GetChannelDetails(context.Background(), "missing")
	if err != nil || missing != nil {
		t.Fatalf("GetChannelDetails(missing) = (%v, %v), want (nil, nil)", missing, err)
	}

	if used, _, _ := c.QuotaStatus(); used != 2 {
		t.Fatalf("quota used = %d, want 2", used)
	}
}

func TestListRecentVideosStopsAtWindowAndClassifies(t *testing.T) {
	publishedAfter := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var videoIDs string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/playlistItems"):
			writeJSON(w, `{"nextPageToken":"more","items":[
				{"contentDetails":{"videoId":"v1","videoPublishedAt":"2025-03-10T00:00:00Z"}},
				{"contentDetails":{"videoId":"v2","videoPublishedAt":"2025-03-05T00:00:00Z"}},
				{"contentDetails":{"videoId":"old","videoPublishedAt":"2025-02-01T00:00:00Z"}}
			]}`)
		case strings.HasSuffix(r.URL.Path, "/videos"):
			videoIDs = strings.Join(r.URL.Query()["id"], ",")
			writeJSON(w, `{"items":[
				{"id":"v1","snippet":{"channelId":"UCx","title":"clip","publishedAt":"2025-03-10T00:00:00Z","liveBroadcastContent":"none"},
				 "statistics":{"viewCount":"500","likeCount":"20","commentCount":"3"},
				 "contentDetails":{"duration":"PT45S"}},
				{"id":"v2","snippet":{"channelId":"UCx","title":"stream","publishedAt":"2025-03-05T00:00:00Z","liveBroadcastContent":"none"},
				 "statistics":{"viewCount":"9000"},
				 "contentDetails":{"duration":"PT2H"},
				 "liveStreamingDetails":{"actualStartTime":"2025-03-05T00:00:00Z"}}
			]}`)
		default:
			http.NotFound(w, r)
		}
	})

	videos, err := c.ListRecentVideos(context.Background(), "UUx", 200, publishedAfter)
	if err != nil {
		t.Fatalf("ListRecentVideos returned error: %v", err)
	}
	if videoIDs != "v1,v2" {
		t.Fatalf("videos.list ids = %q, want the two in-window uploads", videoIDs)
	}
	if len(videos) != 2 {
		t.Fatalf("got %d videos, want 2", len(videos))
	}
	if videos[0].VideoType != domain.VideoTypeShorts || videos[0].ViewCount != 500 || videos[0].LikeCount != 20 {
		t.Fatalf("unexpected first video: %+v", videos[0])
	}
	if videos[1].VideoType != domain.VideoTypeLive {
		t.Fatalf("broadcast classified as %q", videos[1].VideoType)
	}
}

func TestAPIForbiddenMapsToQuotaExceeded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded"}]}}`))
	})

	_, err := c.GetChannelDetails(context.Background(), "UCx")
	if !errors.IsQuotaExceeded(err) {
		t.Fatalf("expected quota error, got %v", err)
	}

	// local accounting now refuses without calling the API
	_, err = c.GetChannelDetails(context.Background(), "UCx")
	if !errors.IsQuotaExceeded(err) {
		t.Fatalf("expected local quota refusal, got %v", err)
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"boom"}}`))
	})

	for i := 0; i < 3; i++ {
		_, err := c.GetChannelDetails(context.Background(), "UCx")
		if err == nil {
			t.Fatal("expected error")
		}
		if got := errors.StatusCode(err); got != http.StatusBadGateway {
			t.Fatalf("StatusCode = %d, want %d", got, http.StatusBadGateway)
		}
	}
	before := hits.Load()

	_, err := c.GetChannelDetails(context.Background(), "UCx")
	if err == nil || errors.IsQuotaExceeded(err) {
		t.Fatalf("expected breaker error, got %v", err)
	}
	if hits.Load() != before {
		t.Fatal("request sent while breaker open")
	}
}

func TestResolveChannelID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/channels") && r.URL.Query().Get("forHandle") == "sora":
			writeJSON(w, `{"items":[{"id":"UCfromHandle"}]}`)
		case strings.HasSuffix(r.URL.Path, "/channels"):
			writeJSON(w, `{"items":[]}`)
		case strings.HasSuffix(r.URL.Path, "/search"):
			writeJSON(w, `{"items":[{"id":{"kind":"youtube#channel","channelId":"UCfromSearch"},"snippet":{"channelId":"UCfromSearch"}}]}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	if id, err := c.ResolveChannelID(ctx, "UCp6993wxpyDPHUpavwDFqgg"); err != nil || id != "UCp6993wxpyDPHUpavwDFqgg" {
		t.Fatalf("id passthrough = (%q, %v)", id, err)
	}
	if id, err := c.ResolveChannelID(ctx, "https://www.youtube.com/@sora"); err != nil || id != "UCfromHandle" {
		t.Fatalf("handle = (%q, %v)", id, err)
	}
	if id, err := c.ResolveChannelID(ctx, "https://www.youtube.com/c/Legacy"); err != nil || id != "UCfromSearch" {
		t.Fatalf("custom = (%q, %v)", id, err)
	}
	if _, err := c.ResolveChannelID(ctx, "not a channel"); !errors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
