// sim/simulator.go
package sim

import (
	"container/heap"
	"fmt"

	"github.com/sirupsen/logrus"
)

// eventEntry wraps an Event with a sequence ID for deterministic FIFO
// tie-breaking when timestamp and priority are equal.
type eventEntry struct {
	event Event
	seqID int64
}

// EventQueue is a min-heap ordered by (Timestamp, Priority, seqID).
// Implements heap.Interface.
type EventQueue []eventEntry

func (q EventQueue) Len() int { return len(q) }

func (q EventQueue) Less(i, j int) bool {
	if q[i].event.Timestamp() != q[j].event.Timestamp() {
		return q[i].event.Timestamp() < q[j].event.Timestamp()
	}
	if q[i].event.Priority() != q[j].event.Priority() {
		return q[i].event.Priority() < q[j].event.Priority()
	}
	return q[i].seqID < q[j].seqID
}

func (q EventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *EventQueue) Push(x any) {
	*q = append(*q, x.(eventEntry))
}

func (q *EventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Dispatcher defers work to the event loop at the current simulation time.
// *Simulator implements it; stores and semaphores use it to resume waiters.
type Dispatcher interface {
	Defer(fn func())
}

// Simulator is the single-threaded event loop that owns the simulation clock.
// All node activities are multiplexed on it; there is no parallelism, only
// interleaving, and the interleaving is fully determined by the queue order.
type Simulator struct {
	// Clock is the current simulation time in model time units.
	Clock float64

	events   EventQueue
	seqID    int64
	executed int64
}

// NewSimulator creates a Simulator with an empty event queue at time 0.
func NewSimulator() *Simulator {
	return &Simulator{
		events: make(EventQueue, 0),
	}
}

func (s *Simulator) nextSeqID() int64 {
	id := s.seqID
	s.seqID++
	return id
}

// Schedule pushes an event into the queue.
// Panics if the event lies in the past.
func (s *Simulator) Schedule(ev Event) {
	if ev.Timestamp() < s.Clock {
		panic(fmt.Sprintf("Schedule: event at %v is before the clock %v", ev.Timestamp(), s.Clock))
	}
	heap.Push(&s.events, eventEntry{event: ev, seqID: s.nextSeqID()})
}

// After runs fn once delay time units have elapsed. A zero delay still goes
// through the queue, so the caller always yields to activities already
// scheduled for the current instant.
func (s *Simulator) After(delay float64, fn func()) {
	if delay < 0 {
		panic(fmt.Sprintf("After: negative delay %v", delay))
	}
	s.Schedule(NewCallbackEvent(s.Clock+delay, PriorityNormal, fn))
}

// Defer runs fn at the current time, ahead of timers for the same instant.
func (s *Simulator) Defer(fn func()) {
	s.Schedule(NewCallbackEvent(s.Clock, PriorityUrgent, fn))
}

// Run executes every event whose timestamp does not exceed horizon and then
// leaves the clock at horizon. Events beyond the horizon stay queued, so a
// later Run with a larger horizon continues the same simulation.
func (s *Simulator) Run(horizon float64) {
	if horizon < s.Clock {
		panic(fmt.Sprintf("Run: horizon %v is before the clock %v", horizon, s.Clock))
	}
	for len(s.events) > 0 {
		if s.events[0].event.Timestamp() > horizon {
			break
		}
		ev := heap.Pop(&s.events).(eventEntry).event
		s.Clock = ev.Timestamp()
		logrus.Tracef("[t=%.4f] executing %T", s.Clock, ev)
		ev.Execute(s)
		s.executed++
	}
	s.Clock = horizon
	logrus.Debugf("[t=%.4f] horizon reached, %d events executed, %d pending", s.Clock, s.executed, len(s.events))
}

// Now returns the current simulation time.
func (s *Simulator) Now() float64 {
	return s.Clock
}

// Pending returns the number of queued events.
func (s *Simulator) Pending() int {
	return len(s.events)
}

// Executed returns the number of events executed so far.
func (s *Simulator) Executed() int64 {
	return s.executed
}

// PeekNextEventTime returns the timestamp of the next queued event.
// The boolean is false if the queue is empty.
func (s *Simulator) PeekNextEventTime() (float64, bool) {
	if len(s.events) == 0 {
		return 0, false
	}
	return s.events[0].event.Timestamp(), true
}
