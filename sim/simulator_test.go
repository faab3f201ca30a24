package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulator_TimestampOrdering(t *testing.T) {
	// GIVEN events scheduled out of order
	s := NewSimulator()
	var order []float64
	for _, ts := range []float64{3, 1, 2} {
		ts := ts
		s.Schedule(NewCallbackEvent(ts, PriorityNormal, func() { order = append(order, ts) }))
	}

	// WHEN the simulator runs
	s.Run(10)

	// THEN events execute in timestamp order and the clock rests at the horizon
	assert.Equal(t, []float64{1, 2, 3}, order)
	assert.Equal(t, 10.0, s.Clock)
	assert.Equal(t, int64(3), s.Executed())
}

func TestSimulator_SameTimestamp_PriorityThenRegistration(t *testing.T) {
	// GIVEN three events at the same instant: two normal, one urgent registered last
	s := NewSimulator()
	var order []string
	s.Schedule(NewCallbackEvent(5, PriorityNormal, func() { order = append(order, "timer-a") }))
	s.Schedule(NewCallbackEvent(5, PriorityNormal, func() { order = append(order, "timer-b") }))
	s.Schedule(NewCallbackEvent(5, PriorityUrgent, func() { order = append(order, "wake") }))

	// WHEN run
	s.Run(5)

	// THEN the urgent event runs first and normal events keep registration order
	assert.Equal(t, []string{"wake", "timer-a", "timer-b"}, order)
}

func TestSimulator_ZeroDelayYields(t *testing.T) {
	// GIVEN an activity that schedules a zero-length delay while another
	// activity is already due at the same instant
	s := NewSimulator()
	var order []string
	s.Schedule(NewCallbackEvent(1, PriorityNormal, func() {
		order = append(order, "a-start")
		s.After(0, func() { order = append(order, "a-resume") })
	}))
	s.Schedule(NewCallbackEvent(1, PriorityNormal, func() { order = append(order, "b") }))

	// WHEN run
	s.Run(1)

	// THEN the zero delay lets b run before a resumes
	assert.Equal(t, []string{"a-start", "b", "a-resume"}, order)
}

func TestSimulator_RunStopsAtHorizonAndContinues(t *testing.T) {
	// GIVEN a self-rescheduling unit timer
	s := NewSimulator()
	count := 0
	var tick func()
	tick = func() {
		count++
		s.After(1, tick)
	}
	s.After(1, tick)

	// WHEN run to 5 and then to 8
	s.Run(5)
	require.Equal(t, 5, count, "ticks at t=1..5 are inside the horizon")
	next, ok := s.PeekNextEventTime()
	require.True(t, ok)
	assert.Equal(t, 6.0, next)

	s.Run(8)

	// THEN the second run continues the same timeline
	assert.Equal(t, 8, count)
	assert.Equal(t, 1, s.Pending())
}

func TestSimulator_Schedule_PastEventPanics(t *testing.T) {
	s := NewSimulator()
	s.Run(3)
	assert.Panics(t, func() {
		s.Schedule(NewCallbackEvent(2, PriorityNormal, func() {}))
	})
}

func TestSimulator_After_NegativeDelayPanics(t *testing.T) {
	s := NewSimulator()
	assert.Panics(t, func() { s.After(-1, func() {}) })
}

func TestSimulator_Defer_RunsAtCurrentTime(t *testing.T) {
	s := NewSimulator()
	var at float64 = -1
	s.After(2, func() {
		s.Defer(func() { at = s.Clock })
	})
	s.Run(10)
	assert.Equal(t, 2.0, at)
}
