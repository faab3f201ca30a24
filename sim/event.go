package sim

// Event defines the interface for all simulation events.
// Each event has a Timestamp (in model time units), a Priority used to order
// events sharing a timestamp, and an Execute method that advances simulation
// state when invoked.
type Event interface {
	Timestamp() float64
	Priority() int
	Execute(*Simulator)
}

// Event priorities. Lower values run first among events with equal timestamps.
const (
	// PriorityUrgent is used for wake-ups of suspended activities, so that a
	// granted reservation resumes before new timers fire at the same instant.
	PriorityUrgent = 0
	// PriorityNormal is used for timers.
	PriorityNormal = 1
)

// CallbackEvent runs a function at a given time. Timers, wake-ups and
// zero-length delays are all CallbackEvents.
type CallbackEvent struct {
	time     float64
	priority int
	fn       func()
}

// NewCallbackEvent creates a CallbackEvent. fn must not be nil.
func NewCallbackEvent(time float64, priority int, fn func()) *CallbackEvent {
	if fn == nil {
		panic("NewCallbackEvent: fn must not be nil")
	}
	return &CallbackEvent{time: time, priority: priority, fn: fn}
}

// Timestamp returns the scheduled time of the CallbackEvent.
func (e *CallbackEvent) Timestamp() float64 { return e.time }

// Priority returns the tie-break priority of the CallbackEvent.
func (e *CallbackEvent) Priority() int { return e.priority }

// Execute invokes the callback.
func (e *CallbackEvent) Execute(*Simulator) { e.fn() }
