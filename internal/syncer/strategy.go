package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"wxshop-dashboard/internal/models"
	"wxshop-dashboard/internal/scrape"
)

const (
	demoQRCode       = "https://picsum.photos/200/200?grayscale"
	demoProgressDone = 100
	demoProgressStep = 10

	msgConnectionLost = "Lost connection to the scraper backend."
	msgJobFailed      = "The scraper reported an error."
)

var ErrScanNotManual = errors.New("scan is confirmed by the device in live mode")

// Backend is the scrape service as seen by the live strategy.
type Backend interface {
	Start(ctx context.Context, r scrape.DateRange) error
	Status(ctx context.Context) (*scrape.StatusResponse, error)
	Results(ctx context.Context) ([]models.Order, error)
}

// OrderSource synthesizes the demo batch.
type OrderSource interface {
	Orders(count int) []models.Order
}

// strategy supplies the externally driven events of one session. enter is
// called after every phase change, outside the controller lock.
type strategy interface {
	mode() string
	begin(ctx context.Context, r scrape.DateRange) error
	enter(ctx context.Context, phase Phase, emit func(Event) error)
	acknowledgeScan() (Event, error)
	results(ctx context.Context) ([]models.Order, error)
	stop()
}

type livePoller struct {
	backend  Backend
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	ticker  *clock.Ticker
	stopped bool
}

func (p *livePoller) mode() string { return "live" }

func (p *livePoller) begin(ctx context.Context, r scrape.DateRange) error {
	return p.backend.Start(ctx, r)
}

func (p *livePoller) enter(ctx context.Context, phase Phase, emit func(Event) error) {
	if phase != PhaseInitializing {
		return
	}

	p.mu.Lock()
	if p.stopped || p.ticker != nil {
		p.mu.Unlock()
		return
	}
	ticker := p.clock.Ticker(p.interval)
	p.ticker = ticker
	p.mu.Unlock()

	go p.poll(ctx, ticker, emit)
}

// poll issues one status request per tick; the loop body is sequential so at
// most one request is outstanding.
func (p *livePoller) poll(ctx context.Context, ticker *clock.Ticker, emit func(Event) error) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}

		status, err := p.backend.Status(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("status poll failed", "error", err)
			emitLogged(p.logger, emit, Event{Kind: EventFailed, Failure: FailureTransport, Message: msgConnectionLost})
			return
		}

		ev, ok := eventForStatus(status)
		if !ok {
			continue
		}
		if err := emitLogged(p.logger, emit, ev); errors.Is(err, ErrStaleSession) {
			return
		}
		if ev.Kind == EventCompleted || ev.Kind == EventFailed {
			return
		}
	}
}

func eventForStatus(s *scrape.StatusResponse) (Event, bool) {
	switch s.Status {
	case scrape.StatusQRReady:
		return Event{Kind: EventCredentialReady, QRCode: s.QRCode}, true
	case scrape.StatusScanning:
		return Event{Kind: EventScanned, Message: s.Message}, true
	case scrape.StatusCompleted:
		return Event{Kind: EventCompleted}, true
	case scrape.StatusError:
		msg := s.Error
		if msg == "" {
			msg = s.Message
		}
		if msg == "" {
			msg = msgJobFailed
		}
		return Event{Kind: EventFailed, Failure: FailureJob, Message: msg}, true
	}
	return Event{}, false
}

func (p *livePoller) acknowledgeScan() (Event, error) {
	return Event{}, ErrScanNotManual
}

func (p *livePoller) results(ctx context.Context) ([]models.Order, error) {
	return p.backend.Results(ctx)
}

func (p *livePoller) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.ticker != nil {
		p.ticker.Stop()
	}
}

// demoRunner replays the sync with fixed delays and synthesized data. It
// never touches the network.
type demoRunner struct {
	source       OrderSource
	clock        clock.Clock
	qrDelay      time.Duration
	verifyDelay  time.Duration
	progressStep time.Duration
	batchSize    int
	logger       *slog.Logger

	mu      sync.Mutex
	timers  []*clock.Timer
	stopped bool
}

func (d *demoRunner) mode() string { return "demo" }

func (d *demoRunner) begin(context.Context, scrape.DateRange) error {
	return nil
}

func (d *demoRunner) enter(ctx context.Context, phase Phase, emit func(Event) error) {
	switch phase {
	case PhaseInitializing:
		d.after(ctx, d.qrDelay, func() {
			emitLogged(d.logger, emit, Event{Kind: EventCredentialReady, QRCode: demoQRCode})
		})
	case PhaseVerifying:
		d.after(ctx, d.verifyDelay, func() {
			emitLogged(d.logger, emit, Event{Kind: EventProgress, Message: progressText(0)})
		})
	case PhaseExtracting:
		d.step(ctx, demoProgressStep, emit)
	}
}

func (d *demoRunner) step(ctx context.Context, pct int, emit func(Event) error) {
	d.after(ctx, d.progressStep, func() {
		if pct >= demoProgressDone {
			emitLogged(d.logger, emit, Event{Kind: EventCompleted})
			return
		}
		if err := emitLogged(d.logger, emit, Event{Kind: EventProgress, Message: progressText(pct)}); err != nil {
			return
		}
		d.step(ctx, pct+demoProgressStep, emit)
	})
}

func (d *demoRunner) after(ctx context.Context, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.timers = append(d.timers, d.clock.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		fn()
	}))
}

func (d *demoRunner) acknowledgeScan() (Event, error) {
	return Event{Kind: EventScanned}, nil
}

func (d *demoRunner) results(context.Context) ([]models.Order, error) {
	return d.source.Orders(d.batchSize), nil
}

func (d *demoRunner) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = nil
}

// emitLogged delivers ev and records at debug level when the controller
// refuses it.
func emitLogged(logger *slog.Logger, emit func(Event) error, ev Event) error {
	err := emit(ev)
	if err != nil {
		logger.Debug("sync event dropped", "event", ev.Kind.String(), "error", err)
	}
	return err
}

func progressText(pct int) string {
	return fmt.Sprintf("Downloading orders... %d%%", pct)
}
