package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"wxshop-dashboard/internal/config"
	"wxshop-dashboard/internal/middleware"
	"wxshop-dashboard/internal/narrative"
	"wxshop-dashboard/internal/observability"
	"wxshop-dashboard/internal/scrape"
	"wxshop-dashboard/internal/server"
	"wxshop-dashboard/internal/services"
	"wxshop-dashboard/internal/syncer"
	"wxshop-dashboard/internal/ui/templates"
)

const (
	renderTimeout  = 10 * time.Second
	csvLoadTimeout = 30 * time.Second
	cacheMaxAge    = "public, max-age=300"
)

// Template handler functions that can access the template functions
func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", cacheMaxAge)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// loadOrders fills the collection from the configured CSV file, or with
// synthesized orders when none is set.
func loadOrders(ctx context.Context, cfg config.DataConfig, analytics *services.Analytics, generator *services.Generator) error {
	if cfg.CSVFile == "" {
		analytics.Seed(generator, cfg.SeedOrders)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, csvLoadTimeout)
	defer cancel()
	return analytics.LoadFromCSV(ctx, cfg.CSVFile)
}

func newController(cfg *config.Config, analytics *services.Analytics, generator *services.Generator, logger *slog.Logger) *syncer.Controller {
	client := scrape.NewClient(cfg.Scrape.BaseURL, cfg.Scrape.RequestTimeout, logger)

	return syncer.NewController(client, generator, analytics.Prepend, syncer.Options{
		PollInterval:     cfg.Scrape.PollInterval,
		DemoQRDelay:      cfg.Sync.DemoQRDelay,
		DemoVerifyDelay:  cfg.Sync.DemoVerifyDelay,
		DemoProgressStep: cfg.Sync.DemoProgressStep,
		SettleDelay:      cfg.Sync.SettleDelay,
		DemoBatchSize:    cfg.Sync.DemoBatchSize,
		BackendHint:      fmt.Sprintf("Make sure the scraper is running at %s, or use demo mode.", cfg.Scrape.BaseURL),
		Logger:           logger,
	})
}

func newAnalyst(ctx context.Context, cfg config.NarrativeConfig, logger *slog.Logger) *narrative.Analyst {
	model, err := narrative.NewGemini(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		logger.Warn("narrative model unavailable", "error", err)
		model = nil
	}
	if model == nil {
		logger.Info("narrative generation disabled, no API key configured")
	}
	return narrative.NewAnalyst(model, cfg.Timeout, logger)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	analytics := services.NewAnalytics()
	analytics.SetLogger(logger)
	generator := services.NewGenerator()

	start := time.Now()
	if err := loadOrders(context.Background(), cfg.Data, analytics, generator); err != nil {
		logger.Error("failed to load orders", "error", err)
		os.Exit(1)
	}
	logger.Info("orders loaded",
		"count", analytics.Summary().OrderCount,
		"duration", time.Since(start),
	)

	controller := newController(cfg, analytics, generator, logger)
	analyst := newAnalyst(context.Background(), cfg.Narrative, logger)

	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(analytics, controller, analyst, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Metrics(),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	handler := middlewareChain(srv)

	// Long-lived SSE streams hang off this context so shutdown can end them.
	baseCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("closing sync session and streams")
		controller.Close()
		stopStreams()
		return nil
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
