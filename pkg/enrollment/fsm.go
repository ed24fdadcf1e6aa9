// Package enrollment implements the enrollment state machine that turns a
// trigger and a run of captured faces into a new identity.
package enrollment

import "fmt"

// Mode is the controller's top level state.
type Mode int

const (
	Idle Mode = iota
	Enrolling
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Enrolling:
		return "enrolling"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Session tracks an enrollment in progress.
type Session struct {
	TargetID int
	Done     int
	Required int
}

// State is the full machine state. Session is meaningful only while Enrolling.
type State struct {
	Mode     Mode
	Session  Session
	Required int
}

// NewState returns an idle state requiring the given number of captures.
func NewState(required int) State {
	return State{Mode: Idle, Required: required}
}

// Input is what one cycle observed.
type Input struct {
	Triggered bool
	Faces     int
	// NextID is the id a session opened by this input enrolls under.
	NextID int
}

// Effect is an action the caller must carry out for a transition.
type Effect int

const (
	// EffectOpen starts a new session and clears the accumulator.
	EffectOpen Effect = iota
	// EffectCapture adds the cycle's first face to the accumulator.
	EffectCapture
	// EffectCommit saves the accumulator under Session.TargetID.
	EffectCommit
	// EffectRecognize matches the cycle's faces against the store.
	EffectRecognize
)

func (e Effect) String() string {
	switch e {
	case EffectOpen:
		return "open"
	case EffectCapture:
		return "capture"
	case EffectCommit:
		return "commit"
	case EffectRecognize:
		return "recognize"
	default:
		return fmt.Sprintf("effect(%d)", int(e))
	}
}

// Next computes one transition. A trigger and the first capture may happen
// in the same step, and effects are returned in the order they apply.
func Next(s State, in Input) (State, []Effect) {
	var effects []Effect

	if s.Mode == Idle && in.Triggered {
		s.Mode = Enrolling
		s.Session = Session{TargetID: in.NextID, Required: s.Required}
		effects = append(effects, EffectOpen)
	}

	if s.Mode == Idle {
		if in.Faces > 0 {
			effects = append(effects, EffectRecognize)
		}
		return s, effects
	}

	if in.Faces == 0 {
		return s, effects
	}

	s.Session.Done++
	effects = append(effects, EffectCapture)
	if s.Session.Done >= s.Session.Required {
		s.Mode = Idle
		effects = append(effects, EffectCommit)
	}
	return s, effects
}
