package enrollment

import (
	"errors"
	"fmt"

	"github.com/MrCodeEU/facegate/pkg/logging"
	"github.com/MrCodeEU/facegate/pkg/recognition"
)

// ErrCommit wraps a failure to save a completed session.
var ErrCommit = errors.New("enrollment commit failed")

// Store is the part of the face store enrollment writes to.
type Store interface {
	NextID() int
	Append(id int, embeddings ...recognition.Embedding) error
}

// Enroller drives the state machine and owns the capture accumulator.
type Enroller struct {
	state   State
	store   Store
	pending []recognition.Embedding
}

// NewEnroller returns an idle Enroller.
func NewEnroller(store Store, required int) *Enroller {
	return &Enroller{
		state: NewState(required),
		store: store,
	}
}

// Step feeds one cycle into the machine. embeddings holds one entry per
// usable face in the frame. It reports whether the caller should run
// recognition on them. A failed commit discards the session and returns an
// error wrapping ErrCommit.
func (e *Enroller) Step(triggered bool, embeddings []recognition.Embedding) (bool, error) {
	in := Input{Triggered: triggered, Faces: len(embeddings)}
	if triggered && e.state.Mode == Idle {
		in.NextID = e.store.NextID()
	}

	log := logging.Component("enroll")
	if triggered && e.state.Mode == Enrolling {
		log.Debug("Trigger ignored, enrollment in progress")
	}

	next, effects := Next(e.state, in)
	e.state = next

	recognize := false
	for _, effect := range effects {
		switch effect {
		case EffectOpen:
			e.pending = e.pending[:0]
			log.WithFields(logging.Fields{
				"id":       next.Session.TargetID,
				"required": next.Session.Required,
			}).Info("Enrollment started")

		case EffectCapture:
			e.pending = append(e.pending, embeddings[0].Clone())
			log.Infof("Captured %d/%d for identity %d",
				next.Session.Done, next.Session.Required, next.Session.TargetID)

		case EffectCommit:
			captures := e.pending
			e.pending = nil
			if err := e.store.Append(next.Session.TargetID, captures...); err != nil {
				return false, fmt.Errorf("%w: identity %d: %w", ErrCommit, next.Session.TargetID, err)
			}
			log.WithField("id", next.Session.TargetID).Info("Enrollment complete")

		case EffectRecognize:
			recognize = true
		}
	}

	return recognize, nil
}

// Enrolling reports whether a session is open.
func (e *Enroller) Enrolling() bool {
	return e.state.Mode == Enrolling
}

// State returns the current machine state.
func (e *Enroller) State() State {
	return e.state
}
