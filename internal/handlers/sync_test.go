package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benbjohnson/clock"

	"wxshop-dashboard/internal/models"
	"wxshop-dashboard/internal/scrape"
	"wxshop-dashboard/internal/services"
	"wxshop-dashboard/internal/syncer"
)

type stubBackend struct {
	startErr error
}

func (b stubBackend) Start(context.Context, scrape.DateRange) error {
	return b.startErr
}

func (b stubBackend) Status(context.Context) (*scrape.StatusResponse, error) {
	return &scrape.StatusResponse{Status: scrape.StatusInitializing}, nil
}

func (b stubBackend) Results(context.Context) ([]models.Order, error) {
	return nil, nil
}

// newTestController returns a controller whose clock never advances on its
// own, so sessions stay in the phase the test put them in.
func newTestController(t *testing.T, backend syncer.Backend) *syncer.Controller {
	t.Helper()
	c := syncer.NewController(backend, services.NewGenerator(), func([]models.Order) {}, syncer.Options{
		DemoQRDelay:     syncer.DefaultOptions().DemoQRDelay,
		DemoVerifyDelay: syncer.DefaultOptions().DemoVerifyDelay,
		SettleDelay:     syncer.DefaultOptions().SettleDelay,
		BackendHint:     "start the scraper",
		Clock:           clock.NewMock(),
		Logger:          testLogger(),
	})
	t.Cleanup(c.Close)
	return c
}

func TestSyncHandlers_Flow(t *testing.T) {
	handlers := NewSyncHandlers(newTestController(t, stubBackend{}), testLogger())

	steps := []struct {
		name    string
		handler http.HandlerFunc
		body    string
		status  int
		phase   string
	}{
		{"state before open", handlers.HandleState, "", http.StatusOK, "config"},
		{"open", handlers.HandleOpen, "", http.StatusOK, "config"},
		{"back from config", handlers.HandleBack, "", http.StatusOK, "config"},
		{"start demo", handlers.HandleStart, `{"start_date":"2024-01-01","end_date":"2024-01-31","demo":true}`, http.StatusOK, "initializing"},
		{"start twice", handlers.HandleStart, `{"demo":true}`, http.StatusConflict, ""},
		{"back while running", handlers.HandleBack, "", http.StatusConflict, ""},
		{"retry while running", handlers.HandleRetry, "", http.StatusConflict, ""},
		{"close", handlers.HandleClose, "", http.StatusOK, "config"},
		{"scan after close", handlers.HandleScan, "", http.StatusConflict, ""},
	}

	for _, step := range steps {
		req := httptest.NewRequest(http.MethodPost, "/api/sync", strings.NewReader(step.body))
		w := httptest.NewRecorder()

		step.handler(w, req)

		if w.Code != step.status {
			t.Fatalf("%s: status = %d, want %d (%s)", step.name, w.Code, step.status, w.Body.String())
		}
		if step.phase == "" {
			continue
		}

		var snap syncer.Snapshot
		decodeData(t, w, &snap)
		if string(snap.Phase) != step.phase {
			t.Errorf("%s: phase = %s, want %s", step.name, snap.Phase, step.phase)
		}
	}
}

func TestSyncHandlers_StartUsesRequestedRange(t *testing.T) {
	handlers := NewSyncHandlers(newTestController(t, stubBackend{}), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/sync/start",
		strings.NewReader(`{"start_date":"2024-02-01","end_date":"2024-02-29"}`))
	w := httptest.NewRecorder()
	handlers.HandleStart(w, req)

	var snap syncer.Snapshot
	decodeData(t, w, &snap)
	if snap.StartDate != "2024-02-01" || snap.EndDate != "2024-02-29" {
		t.Errorf("range = %s..%s, want 2024-02-01..2024-02-29", snap.StartDate, snap.EndDate)
	}
	if snap.Demo {
		t.Error("live start should not be demo")
	}
}

func TestSyncHandlers_BackendUnavailable(t *testing.T) {
	handlers := NewSyncHandlers(newTestController(t, stubBackend{startErr: errors.New("refused")}), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/sync/start", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	handlers.HandleStart(w, req)

	var snap syncer.Snapshot
	decodeData(t, w, &snap)
	if snap.Phase != syncer.PhaseBackendUnavailable {
		t.Fatalf("phase = %s, want %s", snap.Phase, syncer.PhaseBackendUnavailable)
	}
	if snap.Hint != "start the scraper" {
		t.Errorf("hint = %q, want the configured hint", snap.Hint)
	}

	w = httptest.NewRecorder()
	handlers.HandleBack(w, httptest.NewRequest(http.MethodPost, "/api/sync/back", nil))
	decodeData(t, w, &snap)
	if snap.Phase != syncer.PhaseConfig {
		t.Errorf("phase after back = %s, want config", snap.Phase)
	}
}

func TestSyncHandlers_StartValidation(t *testing.T) {
	handlers := NewSyncHandlers(newTestController(t, stubBackend{}), testLogger())

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"start_date":`, "BAD_REQUEST"},
		{"bad start", `{"start_date":"2024/01/01"}`, "VALIDATION_ERROR"},
		{"bad end", `{"end_date":"yesterday"}`, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/sync/start", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handlers.HandleStart(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if !strings.Contains(w.Body.String(), tt.code) {
				t.Errorf("body should carry %s: %s", tt.code, w.Body.String())
			}
		})
	}
}

func TestSyncError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{syncer.ErrNoSession, http.StatusConflict},
		{syncer.ErrScanNotManual, http.StatusConflict},
		{syncer.ErrInvalidTransition, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := syncError(tt.err).StatusCode; got != tt.status {
			t.Errorf("syncError(%v) = %d, want %d", tt.err, got, tt.status)
		}
	}
}
