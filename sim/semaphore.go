package sim

import "fmt"

// Semaphore is a counting guard with FIFO waiters. A processor uses one to
// bound the number of entities in its Processing state.
//
// Acquire never blocks the event loop: if a slot is free the continuation
// runs immediately, otherwise it is queued and later resumed through the
// Dispatcher when a slot is handed over by Release.
type Semaphore struct {
	name       string
	capacity   int
	inUse      int
	waiters    []func()
	dispatcher Dispatcher
}

// NewSemaphore creates a Semaphore with the given number of slots.
// Panics if capacity < 1 or dispatcher is nil.
func NewSemaphore(name string, capacity int, dispatcher Dispatcher) *Semaphore {
	if capacity < 1 {
		panic(fmt.Sprintf("NewSemaphore(%s): capacity must be >= 1, got %d", name, capacity))
	}
	if dispatcher == nil {
		panic(fmt.Sprintf("NewSemaphore(%s): dispatcher must not be nil", name))
	}
	return &Semaphore{name: name, capacity: capacity, dispatcher: dispatcher}
}

// Acquire takes a slot and runs then. If no slot is free, then is queued
// behind earlier waiters.
func (s *Semaphore) Acquire(then func()) {
	if s.inUse < s.capacity && len(s.waiters) == 0 {
		s.inUse++
		then()
		return
	}
	s.waiters = append(s.waiters, then)
}

// Release frees a slot. If a waiter is queued the slot passes to it directly,
// so a later Acquire cannot overtake it.
func (s *Semaphore) Release() {
	if s.inUse == 0 {
		panic(fmt.Sprintf("Semaphore(%s).Release: no slot held", s.name))
	}
	if len(s.waiters) > 0 {
		next := s.waiters[0]
		s.waiters[0] = nil
		s.waiters = s.waiters[1:]
		s.dispatcher.Defer(next)
		return
	}
	s.inUse--
}

// InUse returns the number of held slots.
func (s *Semaphore) InUse() int { return s.inUse }

// Waiting returns the number of queued acquirers.
func (s *Semaphore) Waiting() int { return len(s.waiters) }

// Capacity returns the total number of slots.
func (s *Semaphore) Capacity() int { return s.capacity }
