package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wxshop-dashboard/internal/models"
	"wxshop-dashboard/internal/narrative"
	"wxshop-dashboard/internal/syncer"
)

func newTestSSEHandlers(t *testing.T, model narrative.Model) *SSEHandlers {
	t.Helper()
	logger := testLogger()
	return NewSSEHandlers(
		createTestAnalytics(),
		newTestController(t, stubBackend{}),
		narrative.NewAnalyst(model, time.Second, logger),
		logger,
	)
}

func TestNewSSEHandlers(t *testing.T) {
	handlers := newTestSSEHandlers(t, nil)

	if handlers.analytics == nil || handlers.sync == nil || handlers.analyst == nil {
		t.Error("NewSSEHandlers() should set all dependencies")
	}
}

func TestSSEHandlers_renderOrdersTable(t *testing.T) {
	handlers := newTestSSEHandlers(t, nil)

	order := testOrder(1, "Silk Scarf", "Zhejiang", "120.5", 3)
	order.CustomerName = "<script>alert(1)</script>"
	order.Status = models.StatusPendingPayment

	html, err := handlers.renderOrdersTable([]models.Order{order})
	if err != nil {
		t.Fatalf("renderOrdersTable() failed: %v", err)
	}

	expected := []string{
		`id="orders-content"`,
		"WX0001",
		"¥120.50",
		"status-pending-payment",
		"2024-01-03 08:00:00",
		"Zhejiang",
		"&lt;script&gt;",
	}
	for _, want := range expected {
		if !strings.Contains(html, want) {
			t.Errorf("table should contain %q", want)
		}
	}
	if strings.Contains(html, "<script>") {
		t.Error("customer name should be escaped")
	}
}

func TestSSEHandlers_renderOrdersTable_Limits(t *testing.T) {
	handlers := newTestSSEHandlers(t, nil)

	orders := make([]models.Order, 0, 30)
	for i := 0; i < 30; i++ {
		orders = append(orders, testOrder(i, "Silk Scarf", "Zhejiang", "10", 1))
	}

	html, err := handlers.renderOrdersTable(orders)
	if err != nil {
		t.Fatalf("renderOrdersTable() failed: %v", err)
	}
	if rows := strings.Count(html, "<tr>"); rows != maxTableRows+1 {
		t.Errorf("rows = %d, want %d including header", rows, maxTableRows+1)
	}

	empty, err := handlers.renderOrdersTable(nil)
	if err != nil {
		t.Fatalf("renderOrdersTable(nil) failed: %v", err)
	}
	if !strings.Contains(empty, "No orders yet.") {
		t.Error("empty table should show placeholder")
	}
}

func TestSSEHandlers_renderSyncDialog(t *testing.T) {
	handlers := newTestSSEHandlers(t, nil)

	tests := []struct {
		name  string
		snap  syncer.Snapshot
		want  []string
		avoid []string
	}{
		{
			name:  "closed",
			snap:  syncer.Snapshot{State: syncer.Initial()},
			avoid: []string{"sync-panel"},
		},
		{
			name: "config",
			snap: syncer.Snapshot{State: syncer.Initial(), Open: true},
			want: []string{"data-bind-start-date", "/sse/sync/start"},
		},
		{
			name:  "qr live",
			snap:  syncer.Snapshot{State: syncer.State{Phase: syncer.PhaseCredentialReady, QRCode: "data:image/png;base64,AAAA"}, Open: true},
			want:  []string{"sync-qr"},
			avoid: []string{"/sse/sync/scan"},
		},
		{
			name: "qr demo",
			snap: syncer.Snapshot{State: syncer.State{Phase: syncer.PhaseCredentialReady, QRCode: "https://picsum.photos/200"}, Open: true, Demo: true},
			want: []string{"/sse/sync/scan", "https://picsum.photos/200"},
		},
		{
			name: "extracting",
			snap: syncer.Snapshot{State: syncer.State{Phase: syncer.PhaseExtracting, Progress: "Downloading orders... 40%"}, Open: true},
			want: []string{"Downloading orders... 40%"},
		},
		{
			name: "error",
			snap: syncer.Snapshot{State: syncer.State{Phase: syncer.PhaseError, Error: "X"}, Open: true},
			want: []string{"sync-error", "Try again", "/sse/sync/retry"},
		},
		{
			name: "backend unavailable",
			snap: syncer.Snapshot{State: syncer.State{Phase: syncer.PhaseBackendUnavailable, Error: "down", Hint: "run it"}, Open: true},
			want: []string{"run it", "/sse/sync/retry"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := handlers.renderSyncDialog(tt.snap)
			if err != nil {
				t.Fatalf("renderSyncDialog() failed: %v", err)
			}
			if !strings.Contains(html, `id="sync-dialog"`) {
				t.Error("dialog should keep its element id")
			}
			for _, want := range tt.want {
				if !strings.Contains(html, want) {
					t.Errorf("dialog should contain %q", want)
				}
			}
			for _, avoid := range tt.avoid {
				if strings.Contains(html, avoid) {
					t.Errorf("dialog should not contain %q", avoid)
				}
			}
		})
	}
}

func TestSSEHandlers_HandleRefreshAll(t *testing.T) {
	handlers := newTestSSEHandlers(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/sse/refresh-all", nil)
	w := httptest.NewRecorder()

	handlers.HandleRefreshAll(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	body := w.Body.String()
	expected := []string{
		"datastar-patch-elements",
		"datastar-patch-signals",
		"salesTrend",
		"topProducts",
		"geoStats",
		"summary",
		"<table",
	}
	for _, want := range expected {
		if !strings.Contains(body, want) {
			t.Errorf("response should contain %q", want)
		}
	}
}

func TestSSEHandlers_HandleSyncAction(t *testing.T) {
	handlers := newTestSSEHandlers(t, nil)

	post := func(action, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/sse/sync/"+action, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.SetPathValue("action", action)
		w := httptest.NewRecorder()
		handlers.HandleSyncAction(w, req)
		return w
	}

	if w := post("open", "{}"); !strings.Contains(w.Body.String(), "sync-dialog open") {
		t.Error("open should render the visible dialog")
	}

	w := post("start", `{"startDate":"2024-01-01","endDate":"2024-01-31","demo":true}`)
	if !strings.Contains(w.Body.String(), `"phase":"initializing"`) {
		t.Errorf("start should publish the initializing phase: %s", w.Body.String())
	}
	if snap := handlers.sync.Snapshot(); !snap.Demo || snap.StartDate != "2024-01-01" {
		t.Errorf("snapshot = %+v, want demo session from 2024-01-01", snap)
	}

	// Rejected actions still answer with the current dialog.
	w = post("back", "{}")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"phase":"initializing"`) {
		t.Errorf("back while running should leave the dialog alone: %d %s", w.Code, w.Body.String())
	}

	if w := post("start", `{"startDate":"soon"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	if w := post("dance", "{}"); w.Code != http.StatusNotFound {
		t.Errorf("unknown action status = %d, want %d", w.Code, http.StatusNotFound)
	}

	post("close", "{}")
	if handlers.sync.Snapshot().Open {
		t.Error("close should hide the dialog")
	}
}

func TestSSEHandlers_HandleSyncStream(t *testing.T) {
	handlers := newTestSSEHandlers(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/sse/sync", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handlers.HandleSyncStream(w, req)
		close(done)
	}()

	// Changes published while the stream is open reach the client.
	time.Sleep(20 * time.Millisecond)
	handlers.sync.Open()
	handlers.analytics.Prepend([]models.Order{testOrder(99, "Silk Scarf", "Sichuan", "10", 4)})
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after the client left")
	}

	body := w.Body.String()
	for _, want := range []string{"sync-dialog open", "WX0099"} {
		if !strings.Contains(body, want) {
			t.Errorf("stream should contain %q", want)
		}
	}
}

func TestSSEHandlers_HandleInsights(t *testing.T) {
	tests := []struct {
		name  string
		model narrative.Model
		want  string
	}{
		{"missing key", nil, "API Key is missing"},
		{"markdown answer", stubModel{text: "**Revenue** is up."}, "<strong>Revenue</strong>"},
		{"empty answer", stubModel{text: "  "}, narrative.EmptyMessage},
		{"failure", stubModel{err: fmt.Errorf("quota")}, narrative.FailureMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := newTestSSEHandlers(t, tt.model)

			req := httptest.NewRequest(http.MethodPost, "/sse/insights", strings.NewReader(`{"query":"How are sales?"}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handlers.HandleInsights(w, req)

			body := w.Body.String()
			if !strings.Contains(body, "Analyzing your sales data") {
				t.Error("response should show the loading state first")
			}
			if !strings.Contains(body, tt.want) {
				t.Errorf("response should contain %q, got %s", tt.want, body)
			}
		})
	}
}
