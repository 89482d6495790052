package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kapu/channel-ranking-go/internal/domain"
)

type IdentifierKind string

const (
	IdentifierID     IdentifierKind = "id"
	IdentifierHandle IdentifierKind = "handle"
	IdentifierCustom IdentifierKind = "custom"
)

// ChannelIdentifier is what a user typed to name a channel, before resolution.
type ChannelIdentifier struct {
	Kind  IdentifierKind
	Value string
}

var channelIDPattern = regexp.MustCompile(`^UC[\w-]{22}$`)

// IsChannelID reports whether s has the shape of a channel id.
func IsChannelID(s string) bool {
	return channelIDPattern.MatchString(s)
}

// ParseChannelIdentifier accepts a channel id, an @handle, or a channel URL in the
// /@handle, /channel/<id>, /c/<name> or /user/<name> forms.
func ParseChannelIdentifier(input string) (ChannelIdentifier, bool) {
	cleaned := strings.TrimSpace(input)
	if cleaned == "" {
		return ChannelIdentifier{}, false
	}
	if IsChannelID(cleaned) {
		return ChannelIdentifier{Kind: IdentifierID, Value: cleaned}, true
	}
	if strings.HasPrefix(cleaned, "@") {
		handle := strings.SplitN(cleaned[1:], "/", 2)[0]
		if handle == "" {
			return ChannelIdentifier{}, false
		}
		return ChannelIdentifier{Kind: IdentifierHandle, Value: handle}, true
	}

	raw := cleaned
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.Contains(u.Host, "youtube.com") {
		return ChannelIdentifier{}, false
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return ChannelIdentifier{}, false
	}

	switch {
	case strings.HasPrefix(segments[0], "@") && len(segments[0]) > 1:
		return ChannelIdentifier{Kind: IdentifierHandle, Value: segments[0][1:]}, true
	case segments[0] == "channel" && len(segments) > 1 && segments[1] != "":
		return ChannelIdentifier{Kind: IdentifierID, Value: segments[1]}, true
	case (segments[0] == "c" || segments[0] == "user") && len(segments) > 1 && segments[1] != "":
		return ChannelIdentifier{Kind: IdentifierCustom, Value: segments[1]}, true
	}
	return ChannelIdentifier{}, false
}

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration parses the subset of ISO-8601 durations the Data API returns (PnDTnHnMnS).
func ParseISODuration(value string) (time.Duration, error) {
	m := isoDurationPattern.FindStringSubmatch(value)
	if m == nil || value == "P" || value == "PT" {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", value)
	}

	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", value, err)
		}
		total += time.Duration(n) * unit
	}
	return total, nil
}

// ClassifyVideo derives the stored video type. Broadcasts are live regardless of length;
// an unparseable duration is treated as a normal upload.
func ClassifyVideo(duration string, broadcast bool) domain.VideoType {
	if broadcast {
		return domain.VideoTypeLive
	}
	d, err := ParseISODuration(duration)
	if err != nil {
		return domain.VideoTypeNormal
	}
	return domain.VideoTypeForDuration(d)
}
