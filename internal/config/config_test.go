package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DB", "")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("GROUP_QUERY_BATCH_SIZE", "")
	t.Setenv("REFRESH_INTERVAL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Postgres.Database != "channel_ranking" {
		t.Errorf("Postgres.Database = %q", cfg.Postgres.Database)
	}
	if cfg.Redis.Enabled() {
		t.Errorf("Redis should be disabled without REDIS_HOST")
	}
	if cfg.Analytics.GroupQueryBatchSize != 10 {
		t.Errorf("GroupQueryBatchSize = %d, want 10", cfg.Analytics.GroupQueryBatchSize)
	}
	if cfg.Refresh.Interval != 12*time.Hour {
		t.Errorf("Refresh.Interval = %v, want 12h", cfg.Refresh.Interval)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("CORSOrigins = %v, want [*]", cfg.Server.CORSOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("YOUTUBE_REQUEST_DELAY", "250ms")
	t.Setenv("REFRESH_INTERVAL", "3600")
	t.Setenv("GROUP_QUERY_BATCH_SIZE", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example, ,https://b.example ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if !cfg.Redis.Enabled() {
		t.Errorf("Redis should be enabled")
	}
	if cfg.YouTube.RequestDelay != 250*time.Millisecond {
		t.Errorf("RequestDelay = %v", cfg.YouTube.RequestDelay)
	}
	if cfg.Refresh.Interval != time.Hour {
		t.Errorf("Refresh.Interval = %v, want 1h", cfg.Refresh.Interval)
	}
	if cfg.Analytics.GroupQueryBatchSize != 5 {
		t.Errorf("GroupQueryBatchSize = %d", cfg.Analytics.GroupQueryBatchSize)
	}
	if got := strings.Join(cfg.Server.CORSOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Errorf("CORSOrigins = %q", got)
	}
}

func TestValidateRejectsBadBatchSize(t *testing.T) {
	t.Setenv("GROUP_QUERY_BATCH_SIZE", "50")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for batch size 50")
	}
}

func TestValidateRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("ANALYTICS_TIMEZONE", "Mars/Olympus_Mons")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for unknown timezone")
	}
}

func TestYouTubeEnabled(t *testing.T) {
	if (YouTubeConfig{}).Enabled() {
		t.Error("empty config should be disabled")
	}
	if !(YouTubeConfig{APIKey: "k"}).Enabled() {
		t.Error("api key should enable")
	}
	if (YouTubeConfig{OAuthCredentialsFile: "c.json"}).Enabled() {
		t.Error("credentials without token should not enable")
	}
}
