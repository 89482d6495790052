package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	youtubeBaseURL      = "https://www.youtube.com"
	pageResolverTimeout = 15 * time.Second
)

var channelIDInText = regexp.MustCompile(`UC[\w-]{22}`)

// PageResolver finds a channel id by reading the public channel page. It costs no API
// quota and covers legacy /c/ and /user/ names that forHandle cannot resolve.
type PageResolver struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

func NewPageResolver(logger *zap.Logger) *PageResolver {
	return &PageResolver{
		httpClient: &http.Client{Timeout: pageResolverTimeout},
		baseURL:    youtubeBaseURL,
		logger:     logger,
	}
}

func (r *PageResolver) pageURL(ident ChannelIdentifier) string {
	switch ident.Kind {
	case IdentifierHandle:
		return r.baseURL + "/@" + url.PathEscape(ident.Value)
	case IdentifierID:
		return r.baseURL + "/channel/" + url.PathEscape(ident.Value)
	default:
		return r.baseURL + "/c/" + url.PathEscape(ident.Value)
	}
}

func (r *PageResolver) Resolve(ctx context.Context, ident ChannelIdentifier) (string, error) {
	pageURL := r.pageURL(ident)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ChannelRanking/1.0)")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	// skips the EU consent interstitial
	req.AddCookie(&http.Cookie{Name: "CONSENT", Value: "YES+1"})

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	id, err := extractChannelIDFromPage(resp.Body)
	if err != nil {
		return "", err
	}

	r.logger.Debug("Channel id resolved from page",
		zap.String("url", pageURL),
		zap.String("channelId", id))
	return id, nil
}

// extractChannelIDFromPage looks at the channel metadata tags in order of reliability.
func extractChannelIDFromPage(body io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	candidates := []string{
		doc.Find(`meta[itemprop="identifier"]`).AttrOr("content", ""),
		doc.Find(`meta[itemprop="channelId"]`).AttrOr("content", ""),
		doc.Find(`link[rel="canonical"]`).AttrOr("href", ""),
		doc.Find(`meta[property="og:url"]`).AttrOr("content", ""),
	}
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if IsChannelID(candidate) {
			return candidate, nil
		}
		if strings.Contains(candidate, "/channel/") {
			if id := channelIDInText.FindString(candidate); id != "" {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("channel id not found in page")
}
