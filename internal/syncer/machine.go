package syncer

import (
	"errors"
	"fmt"
)

// Phase is a step of the sync dialog.
type Phase string

const (
	PhaseConfig             Phase = "config"
	PhaseInitializing       Phase = "initializing"
	PhaseCredentialReady    Phase = "credential_ready"
	PhaseVerifying          Phase = "verifying"
	PhaseExtracting         Phase = "extracting"
	PhaseComplete           Phase = "complete"
	PhaseError              Phase = "error"
	PhaseBackendUnavailable Phase = "backend_unavailable"
)

// InFlight reports whether a scrape job is running in this phase.
func (p Phase) InFlight() bool {
	switch p {
	case PhaseInitializing, PhaseCredentialReady, PhaseVerifying, PhaseExtracting:
		return true
	}
	return false
}

// Settled reports whether the machine waits for the user in this phase.
func (p Phase) Settled() bool {
	switch p {
	case PhaseComplete, PhaseError, PhaseBackendUnavailable:
		return true
	}
	return false
}

type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureTransport FailureKind = "transport"
	FailureJob       FailureKind = "job"
	FailureResults   FailureKind = "results"
)

type EventKind int

const (
	EventStart EventKind = iota + 1
	EventBackendUnreachable
	EventCredentialReady
	EventScanned
	EventProgress
	EventCompleted
	EventFailed
	EventBack
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventBackendUnreachable:
		return "backend_unreachable"
	case EventCredentialReady:
		return "credential_ready"
	case EventScanned:
		return "scanned"
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventBack:
		return "back"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

type Event struct {
	Kind    EventKind
	QRCode  string
	Message string
	Failure FailureKind
	Hint    string
}

type State struct {
	Phase    Phase       `json:"phase"`
	QRCode   string      `json:"qr_code,omitempty"`
	Progress string      `json:"progress,omitempty"`
	Error    string      `json:"error,omitempty"`
	Failure  FailureKind `json:"failure,omitempty"`
	Hint     string      `json:"hint,omitempty"`
}

func Initial() State {
	return State{Phase: PhaseConfig}
}

var ErrInvalidTransition = errors.New("invalid sync transition")

// Transition is the whole sync state machine. It has no side effects; an
// event that does not apply to the current phase yields ErrInvalidTransition
// and the unchanged state.
func Transition(s State, ev Event) (State, error) {
	switch ev.Kind {
	case EventStart:
		if s.Phase == PhaseConfig || s.Phase == PhaseBackendUnavailable {
			return State{Phase: PhaseInitializing}, nil
		}

	case EventBackendUnreachable:
		if s.Phase == PhaseConfig || s.Phase == PhaseBackendUnavailable {
			return State{
				Phase:   PhaseBackendUnavailable,
				Error:   ev.Message,
				Failure: FailureTransport,
				Hint:    ev.Hint,
			}, nil
		}

	case EventCredentialReady:
		// A repeated ready status refreshes an expired QR code.
		if s.Phase == PhaseInitializing || s.Phase == PhaseCredentialReady {
			return State{Phase: PhaseCredentialReady, QRCode: ev.QRCode}, nil
		}

	case EventScanned:
		switch s.Phase {
		case PhaseInitializing, PhaseCredentialReady:
			// Initializing is allowed too: a stored login skips the QR step.
			next := s
			next.Phase = PhaseVerifying
			next.Progress = ev.Message
			return next, nil
		case PhaseVerifying, PhaseExtracting:
			if ev.Message == "" || ev.Message == s.Progress {
				return s, nil
			}
			next := s
			next.Phase = PhaseExtracting
			next.Progress = ev.Message
			return next, nil
		}

	case EventProgress:
		if s.Phase == PhaseVerifying || s.Phase == PhaseExtracting {
			next := s
			next.Phase = PhaseExtracting
			if ev.Message != "" {
				next.Progress = ev.Message
			}
			return next, nil
		}

	case EventCompleted:
		if s.Phase.InFlight() {
			next := s
			next.Phase = PhaseComplete
			return next, nil
		}

	case EventFailed:
		if s.Phase.InFlight() {
			return State{Phase: PhaseError, Error: ev.Message, Failure: ev.Failure}, nil
		}

	case EventBack:
		if s.Phase.Settled() || s.Phase == PhaseConfig {
			return Initial(), nil
		}
	}

	return s, fmt.Errorf("%w: %s in phase %s", ErrInvalidTransition, ev.Kind, s.Phase)
}
