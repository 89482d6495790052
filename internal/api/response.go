package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/domain"
	"github.com/kapu/channel-ranking-go/pkg/errors"
)

const maxRequestBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the error chain onto a status code. Server-side failures are logged
// and their detail is not echoed back.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.StatusCode(err)
	resp := errorResponse{Error: err.Error()}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		resp.Code = appErr.Code
		resp.Error = appErr.Message
	}
	switch {
	case errors.IsValidation(err):
		resp.Code = errors.CodeValidation
	case errors.IsNotFound(err):
		resp.Code = errors.CodeNotFound
	case errors.IsQuotaExceeded(err):
		resp.Code = errors.CodeQuota
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		resp.Error = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dest); err != nil {
		return errors.NewValidationError("invalid JSON body", "body", err.Error())
	}
	return nil
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dest); err != nil && !stderrors.Is(err, io.EOF) {
		return errors.NewValidationError("invalid JSON body", "body", err.Error())
	}
	return nil
}

// parseWindow reads a day window. Absent means fallback; "all" means the whole history
// when allowAll is set.
func parseWindow(r *http.Request, key string, fallback *int, allowAll bool) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	if allowAll && strings.EqualFold(raw, "all") {
		return nil, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		return nil, errors.NewValidationError("invalid "+key+" parameter", key, raw)
	}
	return &days, nil
}

func parseVideoType(r *http.Request) (domain.VideoType, error) {
	raw := r.URL.Query().Get("videoType")
	if raw == "" {
		raw = r.URL.Query().Get("type")
	}
	vt, err := domain.ParseVideoType(raw)
	if err != nil {
		return domain.VideoTypeAll, errors.NewValidationError(err.Error(), "videoType", raw)
	}
	return vt, nil
}

func parseLimit(r *http.Request, fallback, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.NewValidationError("invalid limit parameter", "limit", raw)
	}
	return min(n, max), nil
}

func intPtr(v int) *int {
	return &v
}
