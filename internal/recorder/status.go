package recorder

import (
	"time"
)

// Status is a point-in-time view of the recorder for the status endpoint.
type Status struct {
	Running       bool      `json:"running"`
	State         string    `json:"state"`
	Events        uint64    `json:"events"`
	Recordings    uint64    `json:"recordings"`
	Failures      uint64    `json:"failures"`
	Dropped       uint64    `json:"dropped"`
	BufferFill    float64   `json:"buffer_fill"`
	LastEvent     time.Time `json:"last_event,omitzero"`
	LastRecording string    `json:"last_recording,omitempty"`
	CooldownUntil time.Time `json:"cooldown_until,omitzero"`
}

// Status returns a snapshot of the recorder.
func (r *RecorderContext) Status() Status {
	r.mu.Lock()
	s := r.status
	r.mu.Unlock()
	s.Running = r.running.Load()
	return s
}

// StatusAny adapts Status to observability.StatusFunc.
func (r *RecorderContext) StatusAny() any {
	return r.Status()
}
