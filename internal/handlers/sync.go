package handlers

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"wxshop-dashboard/internal/errors"
	"wxshop-dashboard/internal/observability"
	"wxshop-dashboard/internal/scrape"
	"wxshop-dashboard/internal/syncer"
)

// SyncHandlers exposes the sync dialog as JSON endpoints.
type SyncHandlers struct {
	sync   *syncer.Controller
	logger *slog.Logger
	now    func() time.Time
}

func NewSyncHandlers(controller *syncer.Controller, logger *slog.Logger) *SyncHandlers {
	return &SyncHandlers{
		sync:   controller,
		logger: logger,
		now:    time.Now,
	}
}

type startRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Demo      bool   `json:"demo"`
}

func (h *SyncHandlers) HandleState(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccessWithHeaders(w, h.sync.Snapshot(), noStore)
}

func (h *SyncHandlers) HandleOpen(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.sync.Open())
}

func (h *SyncHandlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			errors.WriteError(w, h.logger, errors.BadRequestWrap(err, "invalid JSON body"), requestID(r))
			return
		}
	}

	dr, err := dateRange(req.StartDate, req.EndDate, h.now())
	if err != nil {
		errors.WriteError(w, h.logger, errors.ValidationWrap(err, "dates must be YYYY-MM-DD"), requestID(r))
		return
	}

	snap, err := h.sync.Start(dr, req.Demo)
	h.writeResult(w, r, snap, err)
}

func (h *SyncHandlers) HandleScan(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sync.AcknowledgeScan()
	h.writeResult(w, r, snap, err)
}

func (h *SyncHandlers) HandleRetry(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sync.Retry()
	h.writeResult(w, r, snap, err)
}

func (h *SyncHandlers) HandleBack(w http.ResponseWriter, r *http.Request) {
	snap, err := h.sync.Back()
	h.writeResult(w, r, snap, err)
}

func (h *SyncHandlers) HandleClose(w http.ResponseWriter, r *http.Request) {
	h.sync.Close()
	errors.WriteSuccess(w, h.sync.Snapshot())
}

func (h *SyncHandlers) writeResult(w http.ResponseWriter, r *http.Request, snap syncer.Snapshot, err error) {
	if err != nil {
		errors.WriteError(w, h.logger, syncError(err), requestID(r))
		return
	}
	errors.WriteSuccess(w, snap)
}

func syncError(err error) *errors.AppError {
	switch {
	case stderrors.Is(err, syncer.ErrNoSession):
		return errors.ConflictWrap(err, "sync dialog is not open")
	case stderrors.Is(err, syncer.ErrScanNotManual):
		return errors.ConflictWrap(err, "scan confirmation is only available in demo mode")
	case stderrors.Is(err, syncer.ErrInvalidTransition):
		return errors.ConflictWrap(err, "action not allowed in the current sync phase")
	default:
		return errors.InternalWrap(err, "sync action failed")
	}
}

// dateRange parses the dialog dates; empty fields fall back to the last 30 days.
func dateRange(start, end string, now time.Time) (scrape.DateRange, error) {
	def := scrape.DefaultDateRange(now)
	if start == "" {
		start = def.Start.Format(time.DateOnly)
	}
	if end == "" {
		end = def.End.Format(time.DateOnly)
	}
	return scrape.ParseDateRange(start, end)
}

func requestID(r *http.Request) string {
	return observability.GetRequestID(r.Context())
}
