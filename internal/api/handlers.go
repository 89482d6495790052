package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/constants"
	"github.com/kapu/channel-ranking-go/internal/domain"
	"github.com/kapu/channel-ranking-go/pkg/errors"
)

const defaultPeriodDays = 30

// Health fails only on the database. A lost cache degrades reads to the store, so it is
// reported but not fatal.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.deps.Database != nil {
		if err := h.deps.Database.Ping(ctx); err != nil {
			h.logger.Warn("Health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}

	resp := map[string]any{"status": "ok"}
	if h.deps.Cache != nil {
		cacheStatus := "ok"
		if !h.deps.Cache.IsConnected(ctx) {
			cacheStatus = "unavailable"
		}
		resp["cache"] = cacheStatus
	}
	if h.deps.Quota != nil {
		used, remaining, reset := h.deps.Quota.QuotaStatus()
		resp["quota"] = map[string]any{
			"used":      used,
			"remaining": remaining,
			"resetAt":   reset,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Viral never fails the request on a store error; the dashboard shows an empty list.
func (h *Handler) Viral(w http.ResponseWriter, r *http.Request) {
	daysAgo, err := parseWindow(r, "period", nil, true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	videoType, err := parseVideoType(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	videos, err := h.deps.Viral.DetectViral(r.Context(), daysAgo, videoType)
	if err != nil {
		if errors.IsValidation(err) {
			h.writeError(w, r, err)
			return
		}
		h.logger.Error("Viral detection failed, returning empty list", zap.Error(err))
		videos = []domain.ViralVideo{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"videos": videos,
		"total":  len(videos),
	})
}

func (h *Handler) PeriodRanking(w http.ResponseWriter, r *http.Request) {
	daysAgo, err := parseWindow(r, "period", intPtr(defaultPeriodDays), false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	videoType, err := parseVideoType(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ranking, err := h.deps.Period.RankByPeriod(r.Context(), *daysAgo, videoType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ranking": ranking,
		"period":  *daysAgo,
	})
}

func (h *Handler) GroupRanking(w http.ResponseWriter, r *http.Request) {
	daysAgo, err := parseWindow(r, "period", intPtr(defaultPeriodDays), true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	videoType, err := parseVideoType(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ranking, err := h.deps.Groups.RankGroups(r.Context(), daysAgo, videoType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"ranking": ranking,
	})
}

func (h *Handler) ChannelGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.deps.Groups.GetChannelGroup(r.Context(), chi.URLParam(r, "channelId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"group":    group,
		"channels": group.Channels,
	})
}

func (h *Handler) Channels(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		category = domain.CategoryAll
	}

	channels, err := h.deps.Repository.ListChannelsByCategory(r.Context(), category)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": channels})
}

func (h *Handler) VideosByChannel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	channelID := strings.TrimSpace(q.Get("channelId"))
	if channelID == "" {
		h.writeError(w, r, errors.NewValidationError("channelId is required", "channelId", channelID))
		return
	}
	daysAgo, err := parseWindow(r, "daysAgo", intPtr(defaultPeriodDays), false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	videoType, err := parseVideoType(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := parseLimit(r, constants.QueryLimits.DefaultVideoPageSize, constants.QueryLimits.MaxVideoPageSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.deps.Repository.ListChannelVideos(r.Context(), domain.VideoPageQuery{
		ChannelID:    channelID,
		Since:        time.Now().AddDate(0, 0, -*daysAgo),
		VideoType:    videoType,
		Limit:        limit,
		AfterVideoID: strings.TrimSpace(q.Get("lastVideoId")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"videos":      page.Videos,
		"hasMore":     page.HasMore,
		"lastVideoId": page.LastVideoID,
	})
}

func (h *Handler) ChannelStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Repository.ListChannelStats(r.Context(), chi.URLParam(r, "channelId"), constants.QueryLimits.StatsHistoryLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

type addChannelRequest struct {
	ChannelID string `json:"channelId"`
	Category  string `json:"category"`
}

func (h *Handler) AddChannel(w http.ResponseWriter, r *http.Request) {
	if !h.ingestionEnabled(w, r) {
		return
	}

	var req addChannelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ChannelID) == "" {
		h.writeError(w, r, errors.NewValidationError("channelId is required", "channelId", req.ChannelID))
		return
	}

	channel, err := h.deps.Ingestor.AddChannel(r.Context(), req.ChannelID, strings.TrimSpace(req.Category))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "channel": channel})
}

type updateChannelsRequest struct {
	ChannelID string `json:"channelId"`
}

// UpdateChannels refreshes one channel, or every channel when the body names none.
func (h *Handler) UpdateChannels(w http.ResponseWriter, r *http.Request) {
	if !h.ingestionEnabled(w, r) {
		return
	}

	var req updateChannelsRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var (
		report any
		err    error
	)
	if id := strings.TrimSpace(req.ChannelID); id != "" {
		report, err = h.deps.Ingestor.RefreshChannel(r.Context(), id)
	} else {
		report, err = h.deps.Ingestor.RefreshAll(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "report": report})
}

type groupMembershipRequest struct {
	PrimaryChannelID   string `json:"primaryChannelId"`
	SecondaryChannelID string `json:"secondaryChannelId"`
	GroupName          string `json:"groupName"`
}

func (req groupMembershipRequest) validate() error {
	if strings.TrimSpace(req.PrimaryChannelID) == "" || strings.TrimSpace(req.SecondaryChannelID) == "" {
		return errors.NewValidationError("primaryChannelId and secondaryChannelId are required", "channelId", nil)
	}
	return nil
}

func (h *Handler) AddSecondary(w http.ResponseWriter, r *http.Request) {
	var req groupMembershipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.deps.Groups.AddSecondaryChannel(r.Context(), req.PrimaryChannelID, req.SecondaryChannelID, req.GroupName); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "secondary channel added"})
}

func (h *Handler) RemoveSecondary(w http.ResponseWriter, r *http.Request) {
	var req groupMembershipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.deps.Groups.RemoveSecondaryChannel(r.Context(), req.PrimaryChannelID, req.SecondaryChannelID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "secondary channel removed"})
}

type reconcileRequest struct {
	DryRun *bool `json:"dryRun"`
}

// ReconcileGroups defaults to a dry run; send {"dryRun": false} to apply.
func (h *Handler) ReconcileGroups(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	dryRun := req.DryRun == nil || *req.DryRun

	report, err := h.deps.Groups.ReconcileGroups(r.Context(), dryRun)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "report": report})
}

func (h *Handler) ingestionEnabled(w http.ResponseWriter, r *http.Request) bool {
	if h.deps.Ingestor != nil {
		return true
	}
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{
		Error: "video platform ingestion is not configured",
		Code:  errors.CodeService,
	})
	return false
}
