// Package booking implements the booking-intent / payment-confirmation handshake
// for live sessions, in-person sessions and course purchases.
package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"brainbridge/internal/apiclient"
	"brainbridge/internal/model"
)

// State represents the current state of a booking attempt.
type State string

const (
	StateIdle             State = "idle"
	StateIntentRequested  State = "intent_requested"
	StatePaymentCollected State = "payment_collected"
	StateConfirmed        State = "confirmed"
	StateFailed           State = "failed"
)

// Attempt is one pass through the handshake. It is never resumed; a failed
// attempt is retried by starting a new one.
type Attempt struct {
	ID               string
	Resource         string
	ResourceID       int64
	ScheduledDate    string
	PointsToUse      int
	RequiresPayment  bool
	Amount           float64
	Currency         string
	PaymentIntentID  string
	PaymentCollected bool
	BookingID        string
	State            State
	ErrorKind        apiclient.Kind
	Message          string
	StartedAt        time.Time
	UpdatedAt        time.Time
}

// NewAttempt creates an idle attempt with a fresh id.
func NewAttempt(r model.Resource, resourceID int64) *Attempt {
	now := time.Now()
	return &Attempt{
		ID:         uuid.New().String(),
		Resource:   r.Name,
		ResourceID: resourceID,
		State:      StateIdle,
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// Finished reports whether the attempt reached a terminal state.
func (a *Attempt) Finished() bool {
	return a.State == StateConfirmed || a.State == StateFailed
}

// FSM manages state transitions for booking attempts.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates a new FSM with the handshake transitions.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle:             {StateIntentRequested, StateFailed},
			StateIntentRequested:  {StatePaymentCollected, StateConfirmed, StateFailed},
			StatePaymentCollected: {StateConfirmed, StateFailed},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the attempt to state to if allowed.
func (f *FSM) Transition(a *Attempt, to State) error {
	if !f.CanTransition(a.State, to) {
		return fmt.Errorf("booking attempt %s: illegal transition %s -> %s", a.ID, a.State, to)
	}
	a.State = to
	a.UpdatedAt = time.Now()
	return nil
}
