package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kapu/channel-ranking-go/internal/constants"
)

type Config struct {
	Postgres  PostgresConfig
	Redis     RedisConfig
	YouTube   YouTubeConfig
	Server    ServerConfig
	Refresh   RefreshConfig
	Analytics AnalyticsConfig
	Cache     CacheConfig
	Logging   LoggingConfig
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Enabled is false when no host is configured; the in-memory cache is used instead.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type YouTubeConfig struct {
	APIKey               string
	OAuthCredentialsFile string
	OAuthTokenFile       string
	RequestDelay         time.Duration
	MaxVideosPerChannel  int
	RefreshWindowDays    int
	DailyQuota           int
}

// Enabled reports whether any credential is configured for the Data API.
func (y YouTubeConfig) Enabled() bool {
	return y.APIKey != "" || (y.OAuthCredentialsFile != "" && y.OAuthTokenFile != "")
}

type ServerConfig struct {
	Addr            string
	AdminToken      string
	ShutdownTimeout time.Duration
	// CORSOrigins lists the dashboard frontends allowed to call the API.
	CORSOrigins []string
	// AdminRateLimit caps admin requests per client IP per minute; 0 disables it.
	AdminRateLimit int
}

type RefreshConfig struct {
	Interval  time.Duration
	OnStartup bool
}

type AnalyticsConfig struct {
	Timezone            string
	GroupQueryBatchSize int
	GroupConcurrency    int
}

type CacheConfig struct {
	ChannelsTTL time.Duration
	VideosTTL   time.Duration
	StatsTTL    time.Duration
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "channel_ranking"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		YouTube: YouTubeConfig{
			APIKey:               getEnv("YOUTUBE_API_KEY", ""),
			OAuthCredentialsFile: getEnv("YOUTUBE_OAUTH_CREDENTIALS_FILE", ""),
			OAuthTokenFile:       getEnv("YOUTUBE_OAUTH_TOKEN_FILE", ""),
			RequestDelay:         getEnvDuration("YOUTUBE_REQUEST_DELAY", constants.YouTubeAPI.DefaultRequestDelay),
			MaxVideosPerChannel:  getEnvInt("YOUTUBE_MAX_VIDEOS_PER_CHANNEL", constants.YouTubeAPI.DefaultMaxVideos),
			RefreshWindowDays:    getEnvInt("YOUTUBE_REFRESH_WINDOW_DAYS", constants.YouTubeAPI.DefaultRefreshDays),
			DailyQuota:           getEnvInt("YOUTUBE_DAILY_QUOTA", constants.YouTubeAPI.DailyQuotaLimit),
		},
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			AdminToken:      getEnv("ADMIN_TOKEN", ""),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSOrigins:     getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AdminRateLimit:  getEnvInt("ADMIN_RATE_LIMIT", 10),
		},
		Refresh: RefreshConfig{
			Interval:  getEnvDuration("REFRESH_INTERVAL", 12*time.Hour),
			OnStartup: getEnvBool("REFRESH_ON_STARTUP", false),
		},
		Analytics: AnalyticsConfig{
			Timezone:            getEnv("ANALYTICS_TIMEZONE", "UTC"),
			GroupQueryBatchSize: getEnvInt("GROUP_QUERY_BATCH_SIZE", constants.QueryLimits.MaxChannelIDsPerQuery),
			GroupConcurrency:    getEnvInt("GROUP_CONCURRENCY", constants.QueryLimits.DefaultGroupFanOut),
		},
		Cache: CacheConfig{
			ChannelsTTL: getEnvDuration("CACHE_CHANNELS_TTL", constants.CacheTTL.Channels),
			VideosTTL:   getEnvDuration("CACHE_VIDEOS_TTL", constants.CacheTTL.Videos),
			StatsTTL:    getEnvDuration("CACHE_STATS_TTL", constants.CacheTTL.Stats),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Postgres.Database == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.Analytics.GroupQueryBatchSize < 1 || c.Analytics.GroupQueryBatchSize > constants.QueryLimits.MaxGroupBatchSize {
		return fmt.Errorf("GROUP_QUERY_BATCH_SIZE must be between 1 and %d, got %d",
			constants.QueryLimits.MaxGroupBatchSize, c.Analytics.GroupQueryBatchSize)
	}
	if c.Analytics.GroupConcurrency < 1 {
		return fmt.Errorf("GROUP_CONCURRENCY must be positive, got %d", c.Analytics.GroupConcurrency)
	}
	if _, err := time.LoadLocation(c.Analytics.Timezone); err != nil {
		return fmt.Errorf("ANALYTICS_TIMEZONE is invalid: %w", err)
	}
	if c.YouTube.MaxVideosPerChannel < 1 {
		return fmt.Errorf("YOUTUBE_MAX_VIDEOS_PER_CHANNEL must be positive")
	}
	if c.Server.AdminRateLimit < 0 {
		return fmt.Errorf("ADMIN_RATE_LIMIT must not be negative")
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration syntax ("90s", "12h") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
