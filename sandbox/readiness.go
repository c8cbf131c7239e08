package sandbox

import "strings"

// ReadinessState is the startup state of a sandbox server
type ReadinessState int

// Readiness states. Only StateWaiting has outgoing transitions.
const (
	StateWaiting ReadinessState = iota
	StateReady
	StateFailed
	StateTimedOut
)

func (s ReadinessState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Readiness tracks a server's startup from its diagnostic output, one line at
// a time. The marker is the substring announcing the server accepts
// requests.
type Readiness struct {
	marker string
	state  ReadinessState
}

// NewReadiness returns a machine in StateWaiting
func NewReadiness(marker string) *Readiness {
	return &Readiness{marker: marker}
}

// State returns the current state
func (r *Readiness) State() ReadinessState {
	return r.state
}

// Done reports whether a terminal state was reached
func (r *Readiness) Done() bool {
	return r.state != StateWaiting
}

// Line feeds one output line
func (r *Readiness) Line(line string) ReadinessState {
	if r.state == StateWaiting && strings.Contains(line, r.marker) {
		r.state = StateReady
	}
	return r.state
}

// Closed records the end of the output stream
func (r *Readiness) Closed() ReadinessState {
	if r.state == StateWaiting {
		r.state = StateFailed
	}
	return r.state
}

// Abort records that startup was abandoned, for example on cancellation
func (r *Readiness) Abort() ReadinessState {
	if r.state == StateWaiting {
		r.state = StateFailed
	}
	return r.state
}

// Expired records that the startup timeout elapsed
func (r *Readiness) Expired() ReadinessState {
	if r.state == StateWaiting {
		r.state = StateTimedOut
	}
	return r.state
}
