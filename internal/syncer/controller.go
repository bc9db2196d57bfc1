package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"wxshop-dashboard/internal/models"
	"wxshop-dashboard/internal/observability"
	"wxshop-dashboard/internal/scrape"
)

const (
	msgBackendUnreachable = "Cannot connect to the scraper backend."
	msgResultsFailed      = "Failed to fetch synced orders."
)

var (
	ErrNoSession    = errors.New("sync dialog is not open")
	ErrStaleSession = errors.New("sync session is no longer active")
)

// ResultHandler receives the order batch of a successful sync. It is called
// with the controller lock held and must not call back into the Controller.
type ResultHandler func(orders []models.Order)

type Options struct {
	PollInterval     time.Duration
	DemoQRDelay      time.Duration
	DemoVerifyDelay  time.Duration
	DemoProgressStep time.Duration
	SettleDelay      time.Duration
	DemoBatchSize    int
	// BackendHint is shown when the scraper cannot be reached.
	BackendHint string
	Clock       clock.Clock
	Logger      *slog.Logger
}

func DefaultOptions() Options {
	return Options{
		PollInterval:     2 * time.Second,
		DemoQRDelay:      1500 * time.Millisecond,
		DemoVerifyDelay:  2 * time.Second,
		DemoProgressStep: 300 * time.Millisecond,
		SettleDelay:      time.Second,
		DemoBatchSize:    5,
	}
}

// Snapshot is the read-only view of the sync dialog handed to the UI.
type Snapshot struct {
	State
	SessionID string `json:"session_id,omitempty"`
	Open      bool   `json:"open"`
	Demo      bool   `json:"demo"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

type session struct {
	id        string
	state     State
	dateRange scrape.DateRange
	demo      bool
	strategy  strategy
	ctx       context.Context
	cancel    context.CancelFunc
	settle    *clock.Timer

	starting   bool
	completing bool
	delivered  bool
}

// Controller owns the single sync session of the dashboard. All state
// changes go through Transition under one lock; events from a session that
// has been closed or replaced are dropped.
type Controller struct {
	backend  Backend
	source   OrderSource
	onResult ResultHandler
	opts     Options
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	session *session

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

func NewController(backend Backend, source OrderSource, onResult ResultHandler, opts Options) *Controller {
	defaults := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.DemoBatchSize <= 0 {
		opts.DemoBatchSize = defaults.DemoBatchSize
	}
	if opts.DemoProgressStep <= 0 {
		opts.DemoProgressStep = defaults.DemoProgressStep
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Controller{
		backend:  backend,
		source:   source,
		onResult: onResult,
		opts:     opts,
		clock:    opts.Clock,
		logger:   opts.Logger,
		subs:     make(map[int]chan Snapshot),
	}
}

func (c *Controller) newSession(r scrape.DateRange) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:        uuid.NewString(),
		state:     Initial(),
		dateRange: r,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Open shows the dialog. An already open dialog is left as is.
func (c *Controller) Open() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		c.session = c.newSession(scrape.DefaultDateRange(c.clock.Now()))
		c.logger.Info("sync dialog opened", "session_id", c.session.id)
		c.publishLocked()
	}
	return c.snapshotLocked()
}

// Start launches a sync for the date range. demo selects the simulated path
// for the lifetime of the session. The start request is issued before Start
// returns; if it fails the session lands in PhaseBackendUnavailable.
func (c *Controller) Start(r scrape.DateRange, demo bool) (Snapshot, error) {
	c.mu.Lock()
	if c.session == nil {
		c.session = c.newSession(r)
	}
	s := c.session
	if s.state.Phase != PhaseConfig || s.starting {
		c.mu.Unlock()
		return c.Snapshot(), fmt.Errorf("%w: start in phase %s", ErrInvalidTransition, s.state.Phase)
	}
	s.dateRange = r
	s.demo = demo
	s.strategy = c.newStrategy(demo)
	s.starting = true
	c.mu.Unlock()

	observability.SyncSessions.WithLabelValues(s.strategy.mode()).Inc()
	c.logger.Info("sync starting",
		"session_id", s.id,
		"mode", s.strategy.mode(),
		"range", r.String(),
	)

	c.launch(s)
	return c.Snapshot(), nil
}

// Retry re-issues the start request after the backend was unreachable. After
// a failed job it returns to the date-range form, the same as Back.
func (c *Controller) Retry() (Snapshot, error) {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return c.Snapshot(), ErrNoSession
	}
	if s.state.Phase == PhaseError {
		c.mu.Unlock()
		return c.Back()
	}
	if s.state.Phase != PhaseBackendUnavailable || s.starting || s.strategy == nil {
		c.mu.Unlock()
		return c.Snapshot(), fmt.Errorf("%w: retry in phase %s", ErrInvalidTransition, s.state.Phase)
	}
	s.starting = true
	c.mu.Unlock()

	c.logger.Info("sync retrying", "session_id", s.id)
	c.launch(s)
	return c.Snapshot(), nil
}

func (c *Controller) launch(s *session) {
	if err := s.strategy.begin(s.ctx, s.dateRange); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		c.logger.Warn("scraper start failed", "session_id", s.id, "error", err)
		c.apply(s.id, Event{
			Kind:    EventBackendUnreachable,
			Message: msgBackendUnreachable,
			Hint:    c.opts.BackendHint,
		})
		return
	}
	c.apply(s.id, Event{Kind: EventStart})
}

// AcknowledgeScan confirms the simulated QR scan in demo mode.
func (c *Controller) AcknowledgeScan() (Snapshot, error) {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return c.Snapshot(), ErrNoSession
	}
	if s.strategy == nil || s.state.Phase != PhaseCredentialReady {
		c.mu.Unlock()
		return c.Snapshot(), fmt.Errorf("%w: scan in phase %s", ErrInvalidTransition, s.state.Phase)
	}
	ev, err := s.strategy.acknowledgeScan()
	c.mu.Unlock()
	if err != nil {
		return c.Snapshot(), err
	}

	err = c.apply(s.id, ev)
	return c.Snapshot(), err
}

// Back returns a settled dialog to the date-range form with a fresh session.
func (c *Controller) Back() (Snapshot, error) {
	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return c.Snapshot(), ErrNoSession
	}
	if _, err := Transition(s.state, Event{Kind: EventBack}); err != nil {
		c.mu.Unlock()
		return c.Snapshot(), err
	}
	c.session = c.newSession(s.dateRange)
	c.publishLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.teardown(s)
	c.logger.Info("sync reset", "session_id", snap.SessionID, "previous", s.id)
	return snap, nil
}

// Close hides the dialog from any phase, stops all timers and discards
// whatever the closed session still has in flight.
func (c *Controller) Close() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	if s != nil {
		c.publishLocked()
	}
	c.mu.Unlock()

	if s != nil {
		c.teardown(s)
		c.logger.Info("sync dialog closed", "session_id", s.id, "phase", s.state.Phase)
	}
}

func (c *Controller) closeSession(id string) {
	c.mu.Lock()
	s := c.session
	if s == nil || s.id != id {
		c.mu.Unlock()
		return
	}
	c.session = nil
	c.publishLocked()
	c.mu.Unlock()

	c.teardown(s)
	c.logger.Info("sync dialog closed after completion", "session_id", id)
}

func (c *Controller) teardown(s *session) {
	s.cancel()
	if s.strategy != nil {
		s.strategy.stop()
	}
	if s.settle != nil {
		s.settle.Stop()
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := c.session
	if s == nil {
		return Snapshot{State: Initial()}
	}
	return Snapshot{
		State:     s.state,
		SessionID: s.id,
		Open:      true,
		Demo:      s.demo,
		StartDate: s.dateRange.Start.Format(time.DateOnly),
		EndDate:   s.dateRange.End.Format(time.DateOnly),
	}
}

// Subscribe delivers the latest snapshot after every change. Slow readers
// only ever see the newest one.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subMu.Unlock()

	return ch, func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) publishLocked() {
	snap := c.snapshotLocked()

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (c *Controller) newStrategy(demo bool) strategy {
	if demo {
		return &demoRunner{
			source:       c.source,
			clock:        c.clock,
			qrDelay:      c.opts.DemoQRDelay,
			verifyDelay:  c.opts.DemoVerifyDelay,
			progressStep: c.opts.DemoProgressStep,
			batchSize:    c.opts.DemoBatchSize,
			logger:       c.logger,
		}
	}
	return &livePoller{
		backend:  c.backend,
		clock:    c.clock,
		interval: c.opts.PollInterval,
		logger:   c.logger,
	}
}

// apply feeds one event of session id through the state machine and runs the
// follow-up work of the phase it lands in.
func (c *Controller) apply(id string, ev Event) error {
	c.mu.Lock()
	s := c.session
	if s == nil || s.id != id {
		c.mu.Unlock()
		c.logger.Debug("discarding stale sync event", "session_id", id, "event", ev.Kind)
		return ErrStaleSession
	}

	if ev.Kind == EventCompleted && !s.delivered {
		if s.completing {
			c.mu.Unlock()
			return nil
		}
		if !s.state.Phase.InFlight() {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s in phase %s", ErrInvalidTransition, ev.Kind, s.state.Phase)
		}
		s.completing = true
		c.mu.Unlock()
		c.complete(s)
		return nil
	}

	prev := s.state
	next, err := Transition(prev, ev)
	if err != nil {
		c.mu.Unlock()
		c.logger.Debug("ignoring sync event", "session_id", id, "event", ev.Kind, "phase", prev.Phase)
		return err
	}

	if ev.Kind == EventStart || ev.Kind == EventBackendUnreachable {
		s.starting = false
	}
	s.state = next
	if next != prev {
		c.publishLocked()
	}
	if next.Phase == PhaseComplete && prev.Phase != PhaseComplete {
		s.settle = c.clock.AfterFunc(c.opts.SettleDelay, func() { c.closeSession(id) })
	}
	strat, ctx := s.strategy, s.ctx
	c.mu.Unlock()

	if next.Phase != prev.Phase {
		observability.SyncTransitions.WithLabelValues(string(next.Phase)).Inc()
		c.logger.Info("sync phase changed",
			"session_id", id,
			"event", ev.Kind.String(),
			"from", prev.Phase,
			"to", next.Phase,
			"error", next.Error,
		)
		if strat != nil {
			strat.enter(ctx, next.Phase, func(e Event) error { return c.apply(id, e) })
		}
	}
	return nil
}

// complete obtains the batch, hands it over exactly once and only then lets
// the machine reach PhaseComplete.
func (c *Controller) complete(s *session) {
	orders, err := s.strategy.results(s.ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		c.logger.Error("fetching sync results failed", "session_id", s.id, "error", err)
		c.apply(s.id, Event{Kind: EventFailed, Failure: FailureResults, Message: msgResultsFailed})
		return
	}

	c.mu.Lock()
	if c.session != s || s.delivered {
		c.mu.Unlock()
		return
	}
	s.delivered = true
	if c.onResult != nil {
		c.onResult(orders)
	}
	c.mu.Unlock()

	c.logger.Info("sync results delivered", "session_id", s.id, "orders", len(orders))
	c.apply(s.id, Event{Kind: EventCompleted})
}
