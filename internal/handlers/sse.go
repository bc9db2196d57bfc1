package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"wxshop-dashboard/internal/models"
	"wxshop-dashboard/internal/narrative"
	"wxshop-dashboard/internal/observability"
	"wxshop-dashboard/internal/services"
	"wxshop-dashboard/internal/syncer"
)

const (
	maxTableRows = 20
	thinkingHTML = `<div id="insights-content" class="insights-loading">Analyzing your sales data...</div>`
)

var ordersTableTemplate = template.Must(template.New("ordersTable").Parse(`
<div id="orders-content">
<table class="modern-table">
<thead><tr><th>Order</th><th>Customer</th><th>Product</th><th>Amount</th><th>Status</th><th>Date</th><th>Province</th></tr></thead>
<tbody>
{{range .}}<tr>
<td>{{.OrderNumber}}</td>
<td>{{.CustomerName}}</td>
<td>{{.ProductName}}</td>
<td><strong>¥{{.Amount}}</strong></td>
<td><span class="status-badge status-{{.StatusClass}}">{{.Status}}</span></td>
<td>{{.Date}}</td>
<td>{{.Region}}</td>
</tr>{{else}}<tr><td colspan="7">No orders yet.</td></tr>{{end}}
</tbody>
</table>
</div>`))

var syncDialogTemplate = template.Must(template.New("syncDialog").Parse(`
<div id="sync-dialog" class="sync-dialog{{if .Open}} open{{end}}">
{{if .Open}}<div class="sync-panel" data-phase="{{.Phase}}">
<header><h3>Sync WeChat Shop Orders</h3><button data-on-click="@post('/sse/sync/close')">Close</button></header>
{{if eq .Phase "config"}}
<label>Start date <input type="date" data-bind-start-date></label>
<label>End date <input type="date" data-bind-end-date></label>
<label><input type="checkbox" data-bind-demo> Demo mode</label>
<button data-on-click="@post('/sse/sync/start')">Start sync</button>
{{else if eq .Phase "initializing"}}
<p class="sync-status">Starting the browser session...</p>
{{else if eq .Phase "credential_ready"}}
<img class="sync-qr" src="{{.QRCode}}" alt="Login QR code">
<p class="sync-status">Scan the QR code with WeChat to log in.</p>
{{if .Demo}}<button data-on-click="@post('/sse/sync/scan')">I have scanned it</button>{{end}}
{{else if eq .Phase "verifying"}}
<p class="sync-status">Verifying login...</p>
{{else if eq .Phase "extracting"}}
<p class="sync-status">{{.Progress}}</p>
{{else if eq .Phase "complete"}}
<p class="sync-status sync-success">Sync complete.</p>
{{else if eq .Phase "error"}}
<p class="sync-status sync-error">{{.Error}}</p>
<button data-on-click="@post('/sse/sync/retry')">Try again</button>
{{else if eq .Phase "backend_unavailable"}}
<p class="sync-status sync-error">{{.Error}}</p>
{{if .Hint}}<p class="sync-hint">{{.Hint}}</p>{{end}}
<button data-on-click="@post('/sse/sync/retry')">Retry</button>
<button data-on-click="@post('/sse/sync/back')">Back</button>
{{end}}
</div>{{end}}
</div>`))

type SSEHandlers struct {
	analytics *services.Analytics
	sync      *syncer.Controller
	analyst   *narrative.Analyst
	logger    *slog.Logger
	now       func() time.Time
}

func NewSSEHandlers(analytics *services.Analytics, controller *syncer.Controller, analyst *narrative.Analyst, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		sync:      controller,
		analyst:   analyst,
		logger:    logger,
		now:       time.Now,
	}
}

type orderRow struct {
	OrderNumber  string
	CustomerName string
	ProductName  string
	Amount       string
	Status       models.OrderStatus
	StatusClass  string
	Date         string
	Region       string
}

func (h *SSEHandlers) renderOrdersTable(orders []models.Order) (string, error) {
	if len(orders) > maxTableRows {
		orders = orders[:maxTableRows]
	}

	rows := make([]orderRow, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, orderRow{
			OrderNumber:  o.OrderNumber,
			CustomerName: o.CustomerName,
			ProductName:  o.ProductName,
			Amount:       o.Amount.StringFixed(2),
			Status:       o.Status,
			StatusClass:  strings.ToLower(strings.ReplaceAll(string(o.Status), " ", "-")),
			Date:         o.Date.Format(time.DateTime),
			Region:       o.Region,
		})
	}

	var buf strings.Builder
	err := ordersTableTemplate.Execute(&buf, rows)
	return buf.String(), err
}

func (h *SSEHandlers) renderSyncDialog(snap syncer.Snapshot) (string, error) {
	var buf strings.Builder
	err := syncDialogTemplate.Execute(&buf, snap)
	return buf.String(), err
}

// patchDashboard sends the orders table as an element and every series plus
// the summary cards as signals.
func (h *SSEHandlers) patchDashboard(sse *datastar.ServerSentEventGenerator) error {
	html, err := h.renderOrdersTable(h.analytics.Orders(maxTableRows))
	if err != nil {
		h.logger.Error("render orders table", "error", err)
		return err
	}
	if err := sse.PatchElements(html); err != nil {
		return err
	}

	stats := h.analytics.Stats()
	allSignals, err := json.Marshal(map[string]any{
		"salesTrend":  stats.DailyTrend,
		"topProducts": stats.TopProducts,
		"geoStats":    stats.RegionDist,
		"summary":     h.analytics.Summary(),
	})
	if err != nil {
		h.logger.Error("marshal dashboard signals", "error", err)
		return err
	}
	return sse.PatchSignals(allSignals)
}

func (h *SSEHandlers) patchSync(sse *datastar.ServerSentEventGenerator, snap syncer.Snapshot) error {
	html, err := h.renderSyncDialog(snap)
	if err != nil {
		h.logger.Error("render sync dialog", "error", err)
		return err
	}
	if err := sse.PatchElements(html); err != nil {
		return err
	}

	signals, err := json.Marshal(map[string]any{"sync": snap})
	if err != nil {
		h.logger.Error("marshal sync signals", "error", err)
		return err
	}
	return sse.PatchSignals(signals)
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	if err := h.patchDashboard(sse); err != nil {
		h.logger.Debug("refresh-all aborted", "error", err)
	}
}

// HandleSyncStream keeps the connection open and pushes every sync dialog
// change and every change to the order collection until the client leaves.
func (h *SSEHandlers) HandleSyncStream(w http.ResponseWriter, r *http.Request) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("clear write deadline", "error", err)
	}

	snaps, unsubscribeSync := h.sync.Subscribe()
	defer unsubscribeSync()
	changes, unsubscribeData := h.analytics.Subscribe()
	defer unsubscribeData()

	sse := datastar.NewSSE(w, r)
	if err := h.patchSync(sse, h.sync.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-snaps:
			if err := h.patchSync(sse, snap); err != nil {
				return
			}
		case <-changes:
			if err := h.patchDashboard(sse); err != nil {
				return
			}
		}
	}
}

type syncSignals struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Demo      bool   `json:"demo"`
}

// HandleSyncAction runs one dialog action named by the path and answers with
// the resulting dialog. Rejected actions leave the dialog as it was.
func (h *SSEHandlers) HandleSyncAction(w http.ResponseWriter, r *http.Request) {
	var (
		snap syncer.Snapshot
		err  error
	)

	action := r.PathValue("action")
	switch action {
	case "open":
		snap = h.sync.Open()
	case "start":
		var signals syncSignals
		if err := datastar.ReadSignals(r, &signals); err != nil {
			http.Error(w, "invalid signals", http.StatusBadRequest)
			return
		}
		dr, perr := dateRange(signals.StartDate, signals.EndDate, h.now())
		if perr != nil {
			http.Error(w, "dates must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		snap, err = h.sync.Start(dr, signals.Demo)
	case "scan":
		snap, err = h.sync.AcknowledgeScan()
	case "retry":
		snap, err = h.sync.Retry()
	case "back":
		snap, err = h.sync.Back()
	case "close":
		h.sync.Close()
		snap = h.sync.Snapshot()
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		observability.FromContext(r.Context(), h.logger).Info("sync action rejected", "action", action, "error", err)
	}

	sse := datastar.NewSSE(w, r)
	if err := h.patchSync(sse, snap); err != nil {
		h.logger.Debug("sync action patch aborted", "error", err)
	}
}

type insightsSignals struct {
	Query string `json:"query"`
}

func (h *SSEHandlers) HandleInsights(w http.ResponseWriter, r *http.Request) {
	var signals insightsSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "invalid signals", http.StatusBadRequest)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElements(thinkingHTML); err != nil {
		h.logger.Debug("insights patch aborted", "error", err)
		return
	}

	text := h.analyst.Analyze(r.Context(), h.analytics.Stats(), signals.Query)
	body, err := narrative.RenderHTML(text)
	if err != nil {
		observability.FromContext(r.Context(), h.logger).Warn("render narrative", "error", err)
		body = template.HTMLEscapeString(text)
	}

	if err := sse.PatchElements(`<div id="insights-content" class="insights-result">` + body + `</div>`); err != nil {
		h.logger.Debug("insights patch aborted", "error", err)
	}
}
