// Package trigger implements the event state machine that decides, block by
// block, whether audio is buffered, flushed or dropped.
//
// Time is taken from block timestamps, so the machine runs identically on a
// live device, on a replayed file and under a virtual clock in tests.
package trigger

import (
	"slices"
	"time"

	"github.com/tphakala/eventrec/internal/audiocore"
	"github.com/tphakala/eventrec/internal/audiocore/detection"
)

// State is the trigger phase.
type State int

const (
	// StateIdle buffers every block and evaluates the threshold.
	StateIdle State = iota
	// StatePostEvent buffers every block without evaluation until the
	// recording deadline passes.
	StatePostEvent
	// StateCooldown drops audio after a flush; no event can trigger.
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePostEvent:
		return "post_event"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Action tells the capture loop what to do with the observed block.
type Action int

const (
	// ActionBuffer pushes the block to the ring buffer.
	ActionBuffer Action = iota
	// ActionTrigger pushes the block; it started a new event.
	ActionTrigger
	// ActionFlush pushes the block, then drains the ring buffer: the
	// post-event deadline has passed.
	ActionFlush
	// ActionDiscard drops the block (cool-down).
	ActionDiscard
)

func (a Action) String() string {
	switch a {
	case ActionBuffer:
		return "buffer"
	case ActionTrigger:
		return "trigger"
	case ActionFlush:
		return "flush"
	case ActionDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// Buffers reports whether the block belongs in the ring buffer.
func (a Action) Buffers() bool {
	return a != ActionDiscard
}

// Event describes the event currently being recorded, or the one just
// completed on ActionFlush.
type Event struct {
	EventTime    time.Time
	RecordingEnd time.Time
	FlushTime    time.Time
	Triggered    []int
}

// Decision is the outcome of observing one block.
type Decision struct {
	Action Action
	State  State // state after the block
	Event  Event // valid for ActionTrigger and ActionFlush
}

// Machine is the trigger state machine. It is not safe for concurrent use;
// the capture loop owns it.
type Machine struct {
	cfg       Config
	evaluator audiocore.Evaluator

	state       State
	event       Event
	cooldownEnd time.Time
	events      uint64
}

// NewMachine validates cfg and returns a machine in StateIdle.
func NewMachine(cfg Config, evaluator audiocore.Evaluator) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if evaluator == nil {
		evaluator = detection.PeakEvaluator{}
	}
	return &Machine{
		cfg:       cfg.clone(),
		evaluator: evaluator,
		state:     StateIdle,
	}, nil
}

// Observe advances the machine with one block. The block's timestamp is the
// current time.
func (m *Machine) Observe(block audiocore.SampleBlock) Decision {
	now := block.Timestamp

	if m.state == StateCooldown {
		if now.Before(m.cooldownEnd) {
			return Decision{Action: ActionDiscard, State: StateCooldown}
		}
		m.state = StateIdle
		m.cooldownEnd = time.Time{}
	}

	switch m.state {
	case StateIdle:
		results := m.evaluator.Evaluate(block, m.cfg.Channels, m.cfg.Threshold)
		if !detection.Any(results) {
			return Decision{Action: ActionBuffer, State: StateIdle}
		}
		m.state = StatePostEvent
		m.events++
		m.event = Event{
			EventTime:    now,
			RecordingEnd: now.Add(m.cfg.PostEvent),
			Triggered:    detection.Triggered(m.cfg.Channels, results),
		}
		return Decision{Action: ActionTrigger, State: StatePostEvent, Event: m.snapshot()}

	case StatePostEvent:
		// Threshold crossings are ignored until the deadline passes.
		if !now.After(m.event.RecordingEnd) {
			return Decision{Action: ActionBuffer, State: StatePostEvent}
		}
		m.event.FlushTime = now
		done := m.snapshot()
		m.state = StateCooldown
		m.cooldownEnd = now.Add(m.cfg.Cooldown())
		m.event = Event{}
		return Decision{Action: ActionFlush, State: StateCooldown, Event: done}
	}

	return Decision{Action: ActionDiscard, State: m.state}
}

// Interrupt ends an in-flight event early, for shutdown. It returns the
// event and true when the machine was in StatePostEvent.
func (m *Machine) Interrupt(now time.Time) (Event, bool) {
	if m.state != StatePostEvent {
		return Event{}, false
	}
	m.event.FlushTime = now
	done := m.snapshot()
	m.state = StateIdle
	m.event = Event{}
	return done, true
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// CooldownEnd returns when the current cool-down ends, zero outside cool-down.
func (m *Machine) CooldownEnd() time.Time {
	return m.cooldownEnd
}

// Events returns how many events have triggered.
func (m *Machine) Events() uint64 {
	return m.events
}

// Config returns the machine configuration.
func (m *Machine) Config() Config {
	return m.cfg.clone()
}

func (m *Machine) snapshot() Event {
	ev := m.event
	ev.Triggered = slices.Clone(ev.Triggered)
	return ev
}
