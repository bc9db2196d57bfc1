package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"wxshop-dashboard/internal/errors"
	"wxshop-dashboard/internal/narrative"
	"wxshop-dashboard/internal/observability"
	"wxshop-dashboard/internal/services"
)

const (
	defaultOrderLimit = 100
	maxOrderLimit     = 1000
	maxBodyBytes      = 1 << 20
)

type APIHandlers struct {
	analytics *services.Analytics
	analyst   *narrative.Analyst
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, analyst *narrative.Analyst, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		analyst:   analyst,
		logger:    logger,
	}
}

var noStore = map[string]string{
	"Cache-Control": "no-store",
}

func (h *APIHandlers) HandleOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultOrderLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxOrderLimit {
			errors.WriteError(w, h.logger, errors.Validation("limit must be between 1 and 1000"), requestID(r))
			return
		}
		limit = n
	}

	errors.WriteSuccessWithHeaders(w, h.analytics.Orders(limit), noStore)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.Stats(), noStore)
}

func (h *APIHandlers) HandleDailyTrend(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.DailyTrend(), noStore)
}

func (h *APIHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.TopProducts(), noStore)
}

func (h *APIHandlers) HandleRegions(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.RegionDistribution(), noStore)
}

func (h *APIHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.analytics.Summary(), noStore)
}

type insightsRequest struct {
	Query string `json:"query"`
}

type insightsResponse struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

func (h *APIHandlers) HandleInsights(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid JSON body"), requestID(r))
			return
		}
	}

	text := h.analyst.Analyze(r.Context(), h.analytics.Stats(), req.Query)
	html, err := narrative.RenderHTML(text)
	if err != nil {
		observability.FromContext(r.Context(), h.logger).Warn("render narrative", "error", err)
	}

	errors.WriteSuccess(w, insightsResponse{Text: text, HTML: html})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {

	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleAdminStats(w http.ResponseWriter, r *http.Request) {
	info := h.analytics.Info()
	info["narrative_enabled"] = h.analyst.Enabled()

	errors.WriteSuccess(w, info)
}
