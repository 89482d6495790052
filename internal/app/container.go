package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/api"
	"github.com/kapu/channel-ranking-go/internal/config"
	"github.com/kapu/channel-ranking-go/internal/service/analytics"
	"github.com/kapu/channel-ranking-go/internal/service/cache"
	"github.com/kapu/channel-ranking-go/internal/service/database"
	"github.com/kapu/channel-ranking-go/internal/service/ingest"
	"github.com/kapu/channel-ranking-go/internal/service/store"
	"github.com/kapu/channel-ranking-go/internal/service/youtube"
	"github.com/kapu/channel-ranking-go/internal/util"
)

const memoryCacheJanitorInterval = 5 * time.Minute

// Container bundles the assembled services behind the dashboard server.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Postgres  *database.PostgresService
	Store     *store.CachedStore
	Groups    *analytics.GroupAggregator
	Refresher *ingest.Refresher
	Registry  *prometheus.Registry

	handler   http.Handler
	scheduler *ingest.Scheduler
	closers   []func()
}

// Handler returns the HTTP router.
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Start launches background work. It is a no-op when ingestion is not configured.
func (c *Container) Start(ctx context.Context) {
	if c.scheduler != nil {
		c.scheduler.Start(ctx)
	}
}

// Close stops background work and releases connections in reverse build order.
func (c *Container) Close() {
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build assembles every service. The database schema is applied here so that the server
// never starts against a missing table.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c := &Container{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	postgresSvc, err := database.NewPostgresService(database.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres service: %w", err)
	}
	c.closers = append(c.closers, func() {
		_ = postgresSvc.Close()
	})
	if err := postgresSvc.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	c.Postgres = postgresSvc

	cacheBackend, err := buildCache(ctx, c, cfg, logger)
	if err != nil {
		return nil, err
	}

	cached := store.NewCachedStore(store.NewPostgresStore(postgresSvc, logger, cfg.Analytics.GroupQueryBatchSize), cacheBackend, logger, store.CacheTTLs{
		Channels: cfg.Cache.ChannelsTTL,
		Videos:   cfg.Cache.VideosTTL,
		Stats:    cfg.Cache.StatsTTL,
	})
	c.Store = cached

	loc, err := util.LoadLocation(cfg.Analytics.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load analytics timezone: %w", err)
	}

	c.Registry = prometheus.NewRegistry()
	if err := c.Registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}

	analyticsMetrics := analytics.NewMetrics()
	if err := analyticsMetrics.Register(c.Registry); err != nil {
		return nil, fmt.Errorf("failed to register analytics metrics: %w", err)
	}
	opts := analytics.Options{
		Location:         loc,
		GroupBatchSize:   cfg.Analytics.GroupQueryBatchSize,
		GroupConcurrency: cfg.Analytics.GroupConcurrency,
		Metrics:          analyticsMetrics,
	}
	viral := analytics.NewViralDetector(cached, logger, opts)
	period := analytics.NewPeriodRanker(cached, logger, opts)
	c.Groups = analytics.NewGroupAggregator(cached, logger, opts)

	deps := api.Dependencies{
		Viral:          viral,
		Period:         period,
		Groups:         c.Groups,
		Repository:     cached,
		Database:       postgresSvc,
		Gatherer:       c.Registry,
		AdminToken:     cfg.Server.AdminToken,
		AdminRateLimit: cfg.Server.AdminRateLimit,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Logger:         logger,
	}

	if health, ok := cacheBackend.(api.CacheHealth); ok {
		deps.Cache = health
	}

	if cfg.YouTube.Enabled() {
		refresher, client, err := buildRefresher(ctx, c, cfg, logger)
		if err != nil {
			return nil, err
		}
		c.Refresher = refresher
		c.scheduler = ingest.NewScheduler(refresher, cfg.Refresh.Interval, cfg.Refresh.OnStartup, logger)
		deps.Ingestor = refresher
		deps.Quota = client
	} else {
		logger.Warn("YouTube credentials not configured, ingestion disabled")
	}

	httpMetrics := api.NewHTTPMetrics()
	if err := httpMetrics.Register(c.Registry); err != nil {
		return nil, fmt.Errorf("failed to register http metrics: %w", err)
	}
	deps.Metrics = httpMetrics

	c.handler = api.NewHandler(deps).Routes()

	logger.Info("Application services assembled",
		zap.Bool("redis", cfg.Redis.Enabled()),
		zap.Bool("ingestion", c.Refresher != nil),
		zap.Bool("admin", cfg.Server.AdminToken != ""),
		zap.String("timezone", loc.String()))

	return c, nil
}

// buildCache prefers Redis and falls back to the in-process cache when no host is set.
func buildCache(ctx context.Context, c *Container, cfg *config.Config, logger *zap.Logger) (store.Cache, error) {
	if cfg.Redis.Enabled() {
		redisCache, err := cache.NewRedisCache(cache.CacheConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache service: %w", err)
		}
		c.closers = append(c.closers, func() {
			_ = redisCache.Close()
		})
		return redisCache, nil
	}

	memory := cache.NewMemoryCache()
	janitorCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	go memory.RunJanitor(janitorCtx, memoryCacheJanitorInterval)
	c.closers = append(c.closers, stop)
	logger.Info("Using in-memory cache")
	return memory, nil
}

func buildRefresher(ctx context.Context, c *Container, cfg *config.Config, logger *zap.Logger) (*ingest.Refresher, *youtube.Client, error) {
	clientCfg := youtube.ClientConfig{
		APIKey:     cfg.YouTube.APIKey,
		DailyQuota: cfg.YouTube.DailyQuota,
	}
	mode := "api_key"

	if cfg.YouTube.OAuthCredentialsFile != "" && cfg.YouTube.OAuthTokenFile != "" {
		oauth, err := youtube.NewOAuth(cfg.YouTube.OAuthCredentialsFile, cfg.YouTube.OAuthTokenFile, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load YouTube OAuth credentials: %w", err)
		}
		httpClient, err := oauth.HTTPClient(context.WithoutCancel(ctx))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create YouTube OAuth client: %w", err)
		}
		clientCfg.HTTPClient = httpClient
		mode = "oauth"
	}

	client, err := youtube.NewClient(ctx, clientCfg, youtube.NewPageResolver(logger), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create YouTube client: %w", err)
	}

	ingestMetrics := ingest.NewMetrics()
	if err := ingestMetrics.Register(c.Registry); err != nil {
		return nil, nil, fmt.Errorf("failed to register ingest metrics: %w", err)
	}

	logger.Info("YouTube ingestion enabled",
		zap.String("mode", mode),
		zap.Int("daily_quota", cfg.YouTube.DailyQuota),
		zap.Duration("request_delay", cfg.YouTube.RequestDelay))

	return ingest.NewRefresher(client, c.Store, logger, ingest.Options{
		RequestDelay:      cfg.YouTube.RequestDelay,
		MaxVideos:         cfg.YouTube.MaxVideosPerChannel,
		RefreshWindowDays: cfg.YouTube.RefreshWindowDays,
		Invalidator:       c.Store,
		Metrics:           ingestMetrics,
	}), client, nil
}
