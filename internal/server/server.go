package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wxshop-dashboard/internal/handlers"
	"wxshop-dashboard/internal/narrative"
	"wxshop-dashboard/internal/services"
	"wxshop-dashboard/internal/syncer"
)

type Server struct {
	analytics    *services.Analytics
	mux          *http.ServeMux
	logger       *slog.Logger
	apiHandlers  *handlers.APIHandlers
	syncHandlers *handlers.SyncHandlers
	sseHandlers  *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(analytics *services.Analytics, controller *syncer.Controller, analyst *narrative.Analyst, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:    analytics,
		mux:          http.NewServeMux(),
		logger:       logger,
		apiHandlers:  handlers.NewAPIHandlers(analytics, analyst, logger),
		syncHandlers: handlers.NewSyncHandlers(controller, logger),
		sseHandlers:  handlers.NewSSEHandlers(analytics, controller, analyst, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleAdminStats)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// REST API endpoints
	s.mux.HandleFunc("GET /api/orders", s.apiHandlers.HandleOrders)
	s.mux.HandleFunc("GET /api/stats", s.apiHandlers.HandleStats)
	s.mux.HandleFunc("GET /api/daily-trend", s.apiHandlers.HandleDailyTrend)
	s.mux.HandleFunc("GET /api/top-products", s.apiHandlers.HandleTopProducts)
	s.mux.HandleFunc("GET /api/regions", s.apiHandlers.HandleRegions)
	s.mux.HandleFunc("GET /api/summary", s.apiHandlers.HandleSummary)
	s.mux.HandleFunc("POST /api/insights", s.apiHandlers.HandleInsights)

	// Sync dialog
	s.mux.HandleFunc("GET /api/sync", s.syncHandlers.HandleState)
	s.mux.HandleFunc("POST /api/sync/open", s.syncHandlers.HandleOpen)
	s.mux.HandleFunc("POST /api/sync/start", s.syncHandlers.HandleStart)
	s.mux.HandleFunc("POST /api/sync/scan", s.syncHandlers.HandleScan)
	s.mux.HandleFunc("POST /api/sync/retry", s.syncHandlers.HandleRetry)
	s.mux.HandleFunc("POST /api/sync/back", s.syncHandlers.HandleBack)
	s.mux.HandleFunc("POST /api/sync/close", s.syncHandlers.HandleClose)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
	s.mux.HandleFunc("GET /sse/sync", s.sseHandlers.HandleSyncStream)
	s.mux.HandleFunc("POST /sse/sync/{action}", s.sseHandlers.HandleSyncAction)
	s.mux.HandleFunc("POST /sse/insights", s.sseHandlers.HandleInsights)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
