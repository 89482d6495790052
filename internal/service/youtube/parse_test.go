package youtube

import (
	"testing"
	"time"

	"github.com/kapu/channel-ranking-go/internal/domain"
)

func TestParseChannelIdentifier(t *testing.T) {
	const id = "UCp6993wxpyDPHUpavwDFqgg"

	tests := []struct {
		input string
		want  ChannelIdentifier
		ok    bool
	}{
		{id, ChannelIdentifier{IdentifierID, id}, true},
		{"  " + id + "  ", ChannelIdentifier{IdentifierID, id}, true},
		{"@tokinosora", ChannelIdentifier{IdentifierHandle, "tokinosora"}, true},
		{"https://www.youtube.com/@tokinosora", ChannelIdentifier{IdentifierHandle, "tokinosora"}, true},
		{"https://www.youtube.com/@tokinosora/videos", ChannelIdentifier{IdentifierHandle, "tokinosora"}, true},
		{"youtube.com/channel/" + id, ChannelIdentifier{IdentifierID, id}, true},
		{"https://m.youtube.com/c/SomeName", ChannelIdentifier{IdentifierCustom, "SomeName"}, true},
		{"https://www.youtube.com/user/legacy", ChannelIdentifier{IdentifierCustom, "legacy"}, true},
		{"https://example.com/@someone", ChannelIdentifier{}, false},
		{"https://www.youtube.com/", ChannelIdentifier{}, false},
		{"@", ChannelIdentifier{}, false},
		{"@/videos", ChannelIdentifier{}, false},
		{"", ChannelIdentifier{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseChannelIdentifier(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseChannelIdentifier(%q) = (%+v, %v), want (%+v, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseISODuration(t *testing.T) {
	tests := map[string]time.Duration{
		"PT45S":    45 * time.Second,
		"PT4M59S":  4*time.Minute + 59*time.Second,
		"PT5M":     5 * time.Minute,
		"PT1H2M3S": time.Hour + 2*time.Minute + 3*time.Second,
		"P1DT2H":   26 * time.Hour,
		"P0D":      0,
		"PT0S":     0,
	}
	for input, want := range tests {
		got, err := ParseISODuration(input)
		if err != nil {
			t.Errorf("ParseISODuration(%q) returned error: %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseISODuration(%q) = %v, want %v", input, got, want)
		}
	}

	for _, bad := range []string{"", "P", "PT", "5M", "PT1.5S", "garbage"} {
		if _, err := ParseISODuration(bad); err == nil {
			t.Errorf("ParseISODuration(%q) expected error", bad)
		}
	}
}

func TestClassifyVideo(t *testing.T) {
	tests := []struct {
		duration  string
		broadcast bool
		want      domain.VideoType
	}{
		{"PT4M59S", false, domain.VideoTypeShorts},
		{"PT5M", false, domain.VideoTypeNormal},
		{"PT2H", false, domain.VideoTypeNormal},
		{"PT30S", true, domain.VideoTypeLive},
		{"", false, domain.VideoTypeNormal},
	}
	for _, tt := range tests {
		if got := ClassifyVideo(tt.duration, tt.broadcast); got != tt.want {
			t.Errorf("ClassifyVideo(%q, %v) = %q, want %q", tt.duration, tt.broadcast, got, tt.want)
		}
	}
}
