// Package store implements the reservable bounded store that sits on every
// edge of a flow network.
//
// Access is two-phase. An actor first reserves the right to insert
// (ReservePut) or remove (ReserveGet) and is resumed when the reservation is
// granted; it then redeems the token exactly once with Put or Get, or gives
// it back with Cancel. Reservations are counted against the store so that at
// all times
//
//	Level() + PutReserved() <= Capacity()
//	GetReserved() <= Level()
//
// and no two live tokens can claim the same slot or the same entity.
package store

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/flowsim/flowsim/sim"
)

// HookPosPut marks when an entity is inserted. Detail is the level after insertion.
var HookPosPut = &sim.HookPos{Name: "Store Put"}

// HookPosGet marks when an entity is removed. Detail is the level after removal.
var HookPosGet = &sim.HookPos{Name: "Store Get"}

// Discipline selects the order in which stored entities are handed out.
type Discipline string

const (
	// FIFO hands out entities in insertion order.
	FIFO Discipline = "fifo"
	// PriorityOrder hands out the entity with the lowest Priority value first,
	// insertion order breaking ties.
	PriorityOrder Discipline = "priority"
)

// IsValidDiscipline reports whether name is a recognized discipline. Empty defaults to fifo.
func IsValidDiscipline(name string) bool {
	switch Discipline(name) {
	case "", FIFO, PriorityOrder:
		return true
	}
	return false
}

// Clock reports the current simulation time for hook contexts.
type Clock interface {
	Now() float64
}

// Store is a bounded entity buffer with reserve-before-mutate access.
// It is not safe for use from multiple goroutines; the event loop is the
// only caller.
type Store struct {
	sim.HookableBase

	name       string
	capacity   int
	discipline Discipline
	dispatcher sim.Dispatcher
	clock      Clock

	items       []*sim.Entity
	putReserved int
	getReserved int
	putWaiters  waiterQueue
	getWaiters  waiterQueue
	nextTokenID uint64

	maxLevel int
	puts     int64
	gets     int64
}

// New creates a Store. dispatcher resumes waiters whose reservations are
// granted after they were queued; clock may be nil, in which case hook
// contexts carry time 0. Panics if capacity < 1 or dispatcher is nil.
func New(name string, capacity int, discipline Discipline, dispatcher sim.Dispatcher, clock Clock) *Store {
	if capacity < 1 {
		panic(fmt.Sprintf("store.New(%s): capacity must be >= 1, got %d", name, capacity))
	}
	if dispatcher == nil {
		panic(fmt.Sprintf("store.New(%s): dispatcher must not be nil", name))
	}
	if discipline == "" {
		discipline = FIFO
	}
	if !IsValidDiscipline(string(discipline)) {
		panic(fmt.Sprintf("store.New(%s): unknown discipline %q", name, discipline))
	}
	return &Store{
		name:       name,
		capacity:   capacity,
		discipline: discipline,
		dispatcher: dispatcher,
		clock:      clock,
	}
}

// Name returns the name of the store.
func (s *Store) Name() string { return s.name }

// Capacity returns the maximum number of stored entities.
func (s *Store) Capacity() int { return s.capacity }

// Level returns the number of stored entities.
func (s *Store) Level() int { return len(s.items) }

// MaxLevel returns the highest level observed so far.
func (s *Store) MaxLevel() int { return s.maxLevel }

// PutReserved returns the number of granted, unredeemed put tokens.
func (s *Store) PutReserved() int { return s.putReserved }

// GetReserved returns the number of granted, unredeemed get tokens.
func (s *Store) GetReserved() int { return s.getReserved }

// PendingPuts returns the number of queued put reservations.
func (s *Store) PendingPuts() int { return s.putWaiters.Len() }

// PendingGets returns the number of queued get reservations.
func (s *Store) PendingGets() int { return s.getWaiters.Len() }

// Puts returns the number of completed insertions.
func (s *Store) Puts() int64 { return s.puts }

// Gets returns the number of completed removals.
func (s *Store) Gets() int64 { return s.gets }

func (s *Store) canGrantPut() bool {
	return len(s.items)+s.putReserved < s.capacity
}

func (s *Store) canGrantGet() bool {
	return len(s.items)-s.getReserved > 0
}

func (s *Store) newToken(dir Direction, priority int, onGrant GrantFunc) *Token {
	if onGrant == nil {
		panic(fmt.Sprintf("store %s: reserve %s without continuation", s.name, dir))
	}
	s.nextTokenID++
	return &Token{
		id:       s.nextTokenID,
		dir:      dir,
		store:    s,
		priority: priority,
		state:    tokenPending,
		onGrant:  onGrant,
		index:    -1,
	}
}

// ReservePut requests one free slot. Lower priority values are served first;
// equal priorities are served in request order.
//
// If a slot is free and nobody is queued ahead, the token is granted at once
// and onGrant runs before ReservePut returns. Otherwise the request is queued
// and onGrant runs later from the event loop, at the simulation time the
// slot became available. The returned token can be used to Cancel.
func (s *Store) ReservePut(priority int, onGrant GrantFunc) *Token {
	tok := s.newToken(DirPut, priority, onGrant)
	if s.putWaiters.Len() == 0 && s.canGrantPut() {
		s.putReserved++
		tok.state = tokenGranted
		tok.onGrant(tok)
		return tok
	}
	s.putWaiters.enqueue(tok)
	logrus.Tracef("store %s: put reservation %s queued (%d waiting)", s.name, tok, s.putWaiters.Len())
	return tok
}

// ReserveGet requests one stored entity, with the same ordering and
// continuation rules as ReservePut.
func (s *Store) ReserveGet(priority int, onGrant GrantFunc) *Token {
	tok := s.newToken(DirGet, priority, onGrant)
	if s.getWaiters.Len() == 0 && s.canGrantGet() {
		s.getReserved++
		tok.state = tokenGranted
		tok.onGrant(tok)
		return tok
	}
	s.getWaiters.enqueue(tok)
	logrus.Tracef("store %s: get reservation %s queued (%d waiting)", s.name, tok, s.getWaiters.Len())
	return tok
}

// Put redeems a granted put token by inserting e. It never suspends.
func (s *Store) Put(tok *Token, e *sim.Entity) error {
	if err := s.checkRedeemable(tok, DirPut, "put"); err != nil {
		return err
	}
	if e == nil {
		panic(fmt.Sprintf("store %s: put of nil entity", s.name))
	}
	s.insert(e)
	s.putReserved--
	tok.state = tokenRedeemed
	s.puts++
	if len(s.items) > s.maxLevel {
		s.maxLevel = len(s.items)
	}
	s.invokeHook(HookPosPut, e)
	s.grantWaiters()
	return nil
}

// Get redeems a granted get token and returns the oldest eligible entity.
// It never suspends.
func (s *Store) Get(tok *Token) (*sim.Entity, error) {
	if err := s.checkRedeemable(tok, DirGet, "get"); err != nil {
		return nil, err
	}
	e := s.items[0]
	s.items[0] = nil
	s.items = s.items[1:]
	s.getReserved--
	tok.state = tokenRedeemed
	s.gets++
	s.invokeHook(HookPosGet, e)
	s.grantWaiters()
	return e, nil
}

// Cancel gives back a pending or granted, unredeemed token. A pending token
// leaves the wait list; a granted one releases its slot or entity, which is
// then offered to the next eligible waiter.
func (s *Store) Cancel(tok *Token) error {
	if err := s.checkOwned(tok, "cancel"); err != nil {
		return err
	}
	switch tok.state {
	case tokenPending:
		if tok.dir == DirPut {
			s.putWaiters.remove(tok)
		} else {
			s.getWaiters.remove(tok)
		}
	case tokenGranted:
		if tok.dir == DirPut {
			s.putReserved--
		} else {
			s.getReserved--
		}
	case tokenRedeemed:
		return s.fault("cancel", tok, ErrTokenRedeemed)
	case tokenCancelled:
		return s.fault("cancel", tok, ErrTokenCancelled)
	}
	tok.state = tokenCancelled
	s.grantWaiters()
	return nil
}

// grantWaiters grants queued reservations in both directions until neither
// can make progress. Each grant is delivered through the dispatcher so that
// the waiter resumes from the event loop rather than inside the caller. A
// token cancelled before delivery never reaches its continuation.
func (s *Store) grantWaiters() {
	for {
		progressed := false
		for s.putWaiters.Len() > 0 && s.canGrantPut() {
			s.putReserved++
			s.grant(s.putWaiters.dequeue())
			progressed = true
		}
		for s.getWaiters.Len() > 0 && s.canGrantGet() {
			s.getReserved++
			s.grant(s.getWaiters.dequeue())
			progressed = true
		}
		if !progressed {
			return
		}
	}
}

func (s *Store) grant(tok *Token) {
	tok.state = tokenGranted
	logrus.Tracef("store %s: granted %s", s.name, tok)
	s.dispatcher.Defer(func() {
		if tok.state != tokenGranted {
			logrus.Tracef("store %s: dropping grant of %s", s.name, tok)
			return
		}
		tok.onGrant(tok)
	})
}

func (s *Store) insert(e *sim.Entity) {
	if s.discipline == PriorityOrder {
		i := len(s.items)
		for i > 0 && s.items[i-1].Priority > e.Priority {
			i--
		}
		s.items = append(s.items, nil)
		copy(s.items[i+1:], s.items[i:])
		s.items[i] = e
		return
	}
	s.items = append(s.items, e)
}

func (s *Store) checkOwned(tok *Token, op string) error {
	if tok == nil {
		return &ReservationError{Store: s.name, Op: op, Token: "<nil>", Err: ErrNilToken}
	}
	if tok.store != s {
		return s.fault(op, tok, ErrForeignToken)
	}
	return nil
}

func (s *Store) checkRedeemable(tok *Token, dir Direction, op string) error {
	if err := s.checkOwned(tok, op); err != nil {
		return err
	}
	switch tok.state {
	case tokenPending:
		return s.fault(op, tok, ErrTokenPending)
	case tokenRedeemed:
		return s.fault(op, tok, ErrTokenRedeemed)
	case tokenCancelled:
		return s.fault(op, tok, ErrTokenCancelled)
	}
	if tok.dir != dir {
		return s.fault(op, tok, ErrWrongDirection)
	}
	return nil
}

func (s *Store) fault(op string, tok *Token, cause error) error {
	return &ReservationError{Store: s.name, Op: op, Token: tok.String(), Err: cause}
}

func (s *Store) invokeHook(pos *sim.HookPos, e *sim.Entity) {
	if s.NumHooks() == 0 {
		return
	}
	now := 0.0
	if s.clock != nil {
		now = s.clock.Now()
	}
	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    pos,
		Now:    now,
		Item:   e,
		Detail: len(s.items),
	})
}

// checkInvariants returns an error describing the first violated capacity
// invariant, or nil.
func (s *Store) checkInvariants() error {
	if len(s.items)+s.putReserved > s.capacity {
		return fmt.Errorf("store %s: level %d + put reservations %d exceed capacity %d",
			s.name, len(s.items), s.putReserved, s.capacity)
	}
	if s.getReserved > len(s.items) {
		return fmt.Errorf("store %s: get reservations %d exceed level %d", s.name, s.getReserved, len(s.items))
	}
	if s.putReserved < 0 || s.getReserved < 0 {
		return fmt.Errorf("store %s: negative reservation count (put %d, get %d)", s.name, s.putReserved, s.getReserved)
	}
	return nil
}
