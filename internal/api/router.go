package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/domain"
	"github.com/kapu/channel-ranking-go/internal/service/analytics"
	"github.com/kapu/channel-ranking-go/internal/service/ingest"
)

type ViralDetector interface {
	DetectViral(ctx context.Context, daysAgo *int, videoType domain.VideoType) ([]domain.ViralVideo, error)
}

type PeriodRanker interface {
	RankByPeriod(ctx context.Context, daysAgo int, videoType domain.VideoType) ([]*domain.PeriodChannelMetrics, error)
}

type GroupService interface {
	GetChannelGroup(ctx context.Context, channelID string) (*domain.GroupMetrics, error)
	RankGroups(ctx context.Context, daysAgo *int, videoType domain.VideoType) ([]*domain.GroupRankingEntry, error)
	AddSecondaryChannel(ctx context.Context, primaryID, secondaryID, groupName string) error
	RemoveSecondaryChannel(ctx context.Context, primaryID, secondaryID string) error
	ReconcileGroups(ctx context.Context, dryRun bool) (*analytics.ReconcileReport, error)
}

// Ingestor is nil when no video platform credentials are configured.
type Ingestor interface {
	AddChannel(ctx context.Context, input, category string) (*domain.Channel, error)
	RefreshAll(ctx context.Context) (*ingest.RefreshReport, error)
	RefreshChannel(ctx context.Context, channelID string) (*ingest.RefreshReport, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheHealth is satisfied by the Redis cache; the in-process cache is always reachable.
type CacheHealth interface {
	IsConnected(ctx context.Context) bool
}

type QuotaReporter interface {
	QuotaStatus() (used int, remaining int, resetTime time.Time)
}

type Dependencies struct {
	Viral      ViralDetector
	Period     PeriodRanker
	Groups     GroupService
	Repository domain.ChannelRepository
	Ingestor   Ingestor
	Database   Pinger
	Cache      CacheHealth
	Quota      QuotaReporter
	Gatherer   prometheus.Gatherer
	Metrics    *HTTPMetrics
	AdminToken string
	// AdminRateLimit is requests per minute per client IP on admin routes; 0 disables it.
	AdminRateLimit int
	CORSOrigins    []string
	Logger         *zap.Logger
}

const readTimeout = 60 * time.Second

// Handler serves the dashboard JSON API.
type Handler struct {
	deps   Dependencies
	logger *zap.Logger
}

func NewHandler(deps Dependencies) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Handler{deps: deps, logger: deps.Logger}
}

// Routes builds the chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(h.logger, h.deps.Metrics))
	r.Use(chimiddleware.Recoverer)
	if len(h.deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.deps.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", h.Health)
	if h.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(readTimeout))

			r.Get("/viral", h.Viral)
			r.Get("/ranking/period", h.PeriodRanking)
			r.Get("/ranking/groups", h.GroupRanking)
			r.Get("/videos/by-channel", h.VideosByChannel)
			r.Get("/stats/{channelId}", h.ChannelStats)
			r.Get("/channels", h.Channels)
			r.Get("/channels/group/{channelId}", h.ChannelGroup)
		})

		// refreshes are paced and may outlive the read timeout
		r.Group(func(r chi.Router) {
			if h.deps.AdminRateLimit > 0 {
				r.Use(httprate.LimitByIP(h.deps.AdminRateLimit, time.Minute))
			}
			r.Use(requireAdmin(h.deps.AdminToken))

			r.Post("/channels/add", h.AddChannel)
			r.Post("/channels/update", h.UpdateChannels)
			r.Post("/channels/group/add", h.AddSecondary)
			r.Post("/channels/group/remove", h.RemoveSecondary)
			r.Post("/channels/group/reconcile", h.ReconcileGroups)
		})
	})

	return r
}
