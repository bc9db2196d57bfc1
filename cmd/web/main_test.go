package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wxshop-dashboard/internal/config"
	"wxshop-dashboard/internal/models"
	"wxshop-dashboard/internal/narrative"
	"wxshop-dashboard/internal/scrape"
	"wxshop-dashboard/internal/server"
	"wxshop-dashboard/internal/services"
	"wxshop-dashboard/internal/syncer"
)

type unreachableBackend struct{}

func (unreachableBackend) Start(context.Context, scrape.DateRange) error {
	return errors.New("connection refused")
}

func (unreachableBackend) Status(context.Context) (*scrape.StatusResponse, error) {
	return nil, errors.New("connection refused")
}

func (unreachableBackend) Results(context.Context) ([]models.Order, error) {
	return nil, errors.New("connection refused")
}

// Test helper to create analytics with test data
func newTestAnalytics() *services.Analytics {
	a := services.NewAnalytics()
	a.SetData([]models.Order{
		{
			ID:           "ORD-1",
			OrderNumber:  "WX1001",
			CustomerName: "Li Wei",
			ProductName:  "Premium Green Tea Set",
			Amount:       decimal.RequireFromString("100.00"),
			Status:       models.StatusPaid,
			Date:         time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
			Region:       "Guangdong",
		},
		{
			ID:           "ORD-2",
			OrderNumber:  "WX1002",
			CustomerName: "Wang Fang",
			ProductName:  "Premium Green Tea Set",
			Amount:       decimal.RequireFromString("50.00"),
			Status:       models.StatusPendingPayment,
			Date:         time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
			Region:       "Beijing",
		},
		{
			ID:           "ORD-3",
			OrderNumber:  "WX1003",
			CustomerName: "Zhang Min",
			ProductName:  "Silk Scarf",
			Amount:       decimal.RequireFromString("75.00"),
			Status:       models.StatusShipped,
			Date:         time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
			Region:       "Guangdong",
		},
	})
	return a
}

func newTestServer(t *testing.T) *server.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	analytics := newTestAnalytics()
	controller := syncer.NewController(unreachableBackend{}, services.NewGenerator(), analytics.Prepend, syncer.Options{
		BackendHint: "start the scraper",
		Logger:      logger,
	})
	t.Cleanup(controller.Close)
	analyst := narrative.NewAnalyst(nil, time.Second, logger)

	templateHandlers := &server.TemplateHandlers{Dashboard: handleDashboard}
	return server.NewServer(analytics, controller, analyst, logger, templateHandlers)
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return response
}

// Integration tests for HTTP routes
func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path           string
		expectedStatus int
		contentType    string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/api/orders", http.StatusOK, "application/json"},
		{"/api/stats", http.StatusOK, "application/json"},
		{"/api/daily-trend", http.StatusOK, "application/json"},
		{"/api/top-products", http.StatusOK, "application/json"},
		{"/api/regions", http.StatusOK, "application/json"},
		{"/api/summary", http.StatusOK, "application/json"},
		{"/api/sync", http.StatusOK, "application/json"},
		{"/health", http.StatusOK, "application/json"},
		{"/admin/stats", http.StatusOK, "application/json"},
		{"/metrics", http.StatusOK, "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", tt.path, nil)

			srv.ServeHTTP(w, r)

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}

			ct := w.Header().Get("Content-Type")
			if !strings.Contains(ct, tt.contentType) {
				t.Errorf("content-type = %q, want %q", ct, tt.contentType)
			}

			// Validate JSON responses
			if tt.contentType == "application/json" {
				var result any
				if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
					t.Errorf("invalid json: %v", err)
				}
			}
		})
	}
}

func TestServer_DailyTrendResponse(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/daily-trend", nil)
	srv.ServeHTTP(w, r)

	response := decodeEnvelope(t, w)
	if success, ok := response["success"].(bool); !ok || !success {
		t.Error("expected success=true in response")
	}

	data, ok := response["data"].([]any)
	if !ok {
		t.Fatalf("expected data array in response")
	}
	if len(data) != 2 {
		t.Fatalf("days = %d, want 2", len(data))
	}

	first := data[0].(map[string]any)
	if first["date"] != "01-01" || first["revenue"] != 150.0 || first["orders"] != 2.0 {
		t.Errorf("first day = %v, want 01-01 150 2", first)
	}
	second := data[1].(map[string]any)
	if second["date"] != "01-02" || second["revenue"] != 75.0 || second["orders"] != 1.0 {
		t.Errorf("second day = %v, want 01-02 75 1", second)
	}
}

// Test Server-Sent Events routes
func TestServer_SSERoutes(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/sse/refresh-all", nil)
	srv.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("content-type = %q, should contain 'text/event-stream'", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("cache-control = %q, want 'no-cache'", cc)
	}
	if !strings.Contains(w.Body.String(), "WX1001") {
		t.Error("orders table should list order WX1001")
	}
}

func TestServer_SyncStartBackendDown(t *testing.T) {
	srv := newTestServer(t)

	body := strings.NewReader(`{"start_date":"2024-01-01","end_date":"2024-01-31"}`)
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/sync/start", body)
	srv.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	data := decodeEnvelope(t, w)["data"].(map[string]any)
	if data["phase"] != "backend_unavailable" {
		t.Errorf("phase = %v, want backend_unavailable", data["phase"])
	}
	if data["hint"] != "start the scraper" {
		t.Errorf("hint = %v, want the configured hint", data["hint"])
	}

	// Scanning makes no sense without a running session.
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("POST", "/api/sync/scan", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("scan status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestServer_SyncStartInvalidDate(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/sync/start", strings.NewReader(`{"start_date":"01/01/2024"}`))
	srv.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestServer_InsightsWithoutKey(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/insights", strings.NewReader(`{"query":"How are sales?"}`))
	srv.ServeHTTP(w, r)

	data := decodeEnvelope(t, w)["data"].(map[string]any)
	if data["text"] != narrative.MissingKeyMessage {
		t.Errorf("text = %v, want the missing key message", data["text"])
	}
}

// Test health endpoint
func TestServer_HandleHealth(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/health", nil)

	srv.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	response := decodeEnvelope(t, w)
	healthData, ok := response["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected health data in response")
	}

	if status, ok := healthData["status"].(string); !ok || status != "healthy" {
		t.Errorf("health status = %v, want 'healthy'", healthData["status"])
	}
}

// Test error handling for invalid methods
func TestServer_ErrorHandling(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"POST", "/api/orders", http.StatusMethodNotAllowed},
		{"PUT", "/", http.StatusMethodNotAllowed},
		{"DELETE", "/health", http.StatusMethodNotAllowed},
		{"GET", "/api/sync/start", http.StatusMethodNotAllowed},
		{"GET", "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, tt.path, nil)

			srv.ServeHTTP(w, r)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestLoadOrders_Seed(t *testing.T) {
	analytics := services.NewAnalytics()
	generator := services.NewSeededGenerator(7, time.Now)

	if err := loadOrders(context.Background(), config.DataConfig{SeedOrders: 50}, analytics, generator); err != nil {
		t.Fatalf("loadOrders: %v", err)
	}
	if got := analytics.Summary().OrderCount; got != 50 {
		t.Errorf("orders = %d, want 50", got)
	}
}

func TestLoadOrders_MissingFile(t *testing.T) {
	analytics := services.NewAnalytics()
	cfg := config.DataConfig{CSVFile: "does-not-exist.csv"}

	if err := loadOrders(context.Background(), cfg, analytics, services.NewGenerator()); err == nil {
		t.Error("expected error for missing CSV file")
	}
}

// Test dashboard template rendering
func TestDashboardTemplate(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)

	handleDashboard(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	expectedComponents := []string{
		"WeChat Shop Analytics",
		"/sse/refresh-all",
		"/sse/sync",
		"orders-content",
		"insights-content",
		"sync-dialog",
	}

	for _, component := range expectedComponents {
		if !strings.Contains(body, component) {
			t.Errorf("dashboard should contain '%s'", component)
		}
	}
}
