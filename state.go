package posture

import (
	"fmt"
)

// maxInvalidStreak caps the invalid sample counter when no lost tracking
// limit is configured
const maxInvalidStreak = 1 << 16

// State is the posture signal emitted by the StateMachine
type State int

const (
	Calibrating State = iota
	Good
	Bad
)

// String returns a readable name of the state
func (s State) String() string {
	switch s {
	case Calibrating:
		return "CALIBRATING"
	case Good:
		return "GOOD"
	case Bad:
		return "BAD"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// PostureState is a snapshot of the StateMachine
type PostureState struct {
	State State
	// Streak is the number of consecutive valid samples confirming a
	// transition away from State.  It never exceeds the debounce window
	Streak int
	// InvalidStreak is the number of consecutive invalid samples.  It
	// saturates at the lost tracking limit, or maxInvalidStreak without one
	InvalidStreak int
	// LastSample is the most recent valid deviation sample
	LastSample DeviationSample
}

// StateMachine debounces deviation samples into a GOOD/BAD posture signal.
// It is the single writer of PostureState and is not safe for concurrent use.
//
// Invalid samples hold the streak: they neither advance it nor reset it.  Only
// a valid sample on the side of the current state resets the streak to zero,
// or a run of invalid samples reaching the lost tracking limit
type StateMachine struct {
	threshold float64
	debounce  int
	recovery  int
	lostLimit int
	ps        PostureState
	// lostNow is set when the last Update reached the lost tracking limit
	lostNow bool
}

// NewStateMachine returns a StateMachine in the CALIBRATING state
func NewStateMachine(cfg Config) *StateMachine {
	return &StateMachine{
		threshold: cfg.DeviationThreshold,
		debounce:  cfg.DebounceFrames,
		recovery:  cfg.recoverFrames(),
		lostLimit: cfg.LostTrackingFrames,
		ps:        PostureState{State: Calibrating},
	}
}

// State returns the current posture state
func (m *StateMachine) State() State {
	return m.ps.State
}

// Snapshot returns a copy of the full PostureState
func (m *StateMachine) Snapshot() PostureState {
	return m.ps
}

// Reset returns the machine to CALIBRATING and discards all counters
func (m *StateMachine) Reset() {
	m.ps = PostureState{State: Calibrating}
	m.lostNow = false
}

// Calibrated moves the machine from CALIBRATING to GOOD once a baseline has
// been committed.  It has no effect in other states
func (m *StateMachine) Calibrated() {
	if m.ps.State != Calibrating {
		return
	}

	m.ps = PostureState{State: Good}
}

// Update applies a deviation sample and returns true if the state changed.
// Samples received while CALIBRATING are ignored
func (m *StateMachine) Update(s DeviationSample) bool {

	m.lostNow = false

	if m.ps.State == Calibrating {
		return false
	}

	if !s.Valid {
		limit := maxInvalidStreak

		if m.lostLimit > 0 {
			limit = m.lostLimit
		}

		if m.ps.InvalidStreak >= limit {
			return false
		}

		m.ps.InvalidStreak++

		if m.lostLimit > 0 && m.ps.InvalidStreak == m.lostLimit {
			m.ps.Streak = 0
			m.lostNow = true
		}

		return false
	}

	m.ps.InvalidStreak = 0
	m.ps.LastSample = s

	over := s.Value > m.threshold

	switch m.ps.State {
	case Good:
		if !over {
			m.ps.Streak = 0
			return false
		}

		m.ps.Streak++

		if m.ps.Streak >= m.debounce {
			m.ps.State = Bad
			m.ps.Streak = 0
			return true
		}

	case Bad:
		if over {
			m.ps.Streak = 0
			return false
		}

		m.ps.Streak++

		if m.ps.Streak >= m.recovery {
			m.ps.State = Good
			m.ps.Streak = 0
			return true
		}
	}

	return false
}

// TrackingLost reports if the run of invalid samples has reached the lost
// tracking limit
func (m *StateMachine) TrackingLost() bool {
	return m.lostLimit > 0 && m.ps.InvalidStreak >= m.lostLimit
}

// LostOnUpdate reports if the last Update was the one that reached the lost
// tracking limit
func (m *StateMachine) LostOnUpdate() bool {
	return m.lostNow
}

// Intensity returns a value in 0..1 for driving the overlay.  While GOOD it
// is the progress of the streak towards BAD, while BAD it falls as the streak
// progresses back towards GOOD
func (m *StateMachine) Intensity() float64 {

	switch m.ps.State {
	case Good:
		return float64(m.ps.Streak) / float64(m.debounce)
	case Bad:
		return 1 - float64(m.ps.Streak)/float64(m.recovery)
	default:
		return 0
	}
}
