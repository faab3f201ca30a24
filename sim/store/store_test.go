package store

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsim/flowsim/sim"
)

func newTestStore(t *testing.T, capacity int) (*Store, *sim.Simulator) {
	t.Helper()
	s := sim.NewSimulator()
	return New("e1", capacity, FIFO, s, s), s
}

func entity(id string) *sim.Entity {
	return &sim.Entity{ID: id, Ready: true}
}

// flush runs every wake-up that is due at the current instant.
func flush(s *sim.Simulator) {
	s.Run(s.Clock)
}

func TestStore_ReservePut_ImmediateGrantRunsSynchronously(t *testing.T) {
	st, _ := newTestStore(t, 2)

	var got *Token
	tok := st.ReservePut(0, func(tok *Token) { got = tok })

	assert.Same(t, tok, got, "continuation runs before ReservePut returns")
	assert.True(t, tok.Granted())
	assert.Equal(t, 1, st.PutReserved())
	require.NoError(t, st.Put(tok, entity("a")))
	assert.Equal(t, 1, st.Level())
	assert.Equal(t, 0, st.PutReserved())
	assert.False(t, tok.Live())
}

func TestStore_ReservePut_BeyondCapacityQueues(t *testing.T) {
	// GIVEN a store of capacity 3
	st, s := newTestStore(t, 3)

	// WHEN five put reservations are issued
	granted := 0
	toks := make([]*Token, 5)
	for i := range toks {
		toks[i] = st.ReservePut(0, func(*Token) { granted++ })
	}
	flush(s)

	// THEN only three are granted and two wait
	assert.Equal(t, 3, granted)
	assert.Equal(t, 3, st.PutReserved())
	assert.Equal(t, 2, st.PendingPuts())
	assert.True(t, toks[3].Pending())
	assert.True(t, toks[4].Pending())
	require.NoError(t, st.checkInvariants())
}

func TestStore_GetGrantsFollowIssuanceOrder(t *testing.T) {
	// GIVEN an empty store and N get reservations issued with equal priority
	st, s := newTestStore(t, 10)
	const n = 6
	var order []int
	for i := 0; i < n; i++ {
		i := i
		st.ReserveGet(0, func(tok *Token) {
			order = append(order, i)
			_, err := st.Get(tok)
			require.NoError(t, err)
		})
	}
	assert.Equal(t, n, st.PendingGets())

	// WHEN N entities are put one at a time
	for i := 0; i < n; i++ {
		st.ReservePut(0, func(tok *Token) {
			require.NoError(t, st.Put(tok, entity("x")))
		})
		flush(s)
	}

	// THEN the reservations were granted in issuance order
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, order)
	assert.Equal(t, 0, st.Level())
}

func TestStore_WaitersOrderedByPriorityThenArrival(t *testing.T) {
	// GIVEN an empty store with get waiters of mixed priority
	st, s := newTestStore(t, 10)
	var order []string
	reserve := func(name string, prio int) {
		st.ReserveGet(prio, func(tok *Token) {
			order = append(order, name)
			_, err := st.Get(tok)
			require.NoError(t, err)
		})
	}
	reserve("low-1", 5)
	reserve("high-1", 1)
	reserve("low-2", 5)
	reserve("high-2", 1)

	// WHEN four entities arrive at once
	for i := 0; i < 4; i++ {
		tok := st.ReservePut(0, func(*Token) {})
		require.NoError(t, st.Put(tok, entity("x")))
	}
	flush(s)

	// THEN lower priority values go first, FIFO within a priority
	assert.Equal(t, []string{"high-1", "high-2", "low-1", "low-2"}, order)
}

func TestStore_GetReturnsOldestEntity(t *testing.T) {
	st, _ := newTestStore(t, 3)
	for _, id := range []string{"a", "b", "c"} {
		tok := st.ReservePut(0, func(*Token) {})
		require.NoError(t, st.Put(tok, entity(id)))
	}

	var ids []string
	for i := 0; i < 3; i++ {
		tok := st.ReserveGet(0, func(*Token) {})
		e, err := st.Get(tok)
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestStore_PriorityDiscipline_HandsOutLowestPriorityFirst(t *testing.T) {
	s := sim.NewSimulator()
	st := New("e1", 5, PriorityOrder, s, s)
	for _, e := range []*sim.Entity{
		{ID: "p2-a", Priority: 2},
		{ID: "p1", Priority: 1},
		{ID: "p2-b", Priority: 2},
		{ID: "p0", Priority: 0},
	} {
		tok := st.ReservePut(0, func(*Token) {})
		require.NoError(t, st.Put(tok, e))
	}

	var ids []string
	for st.Level() > 0 {
		tok := st.ReserveGet(0, func(*Token) {})
		e, err := st.Get(tok)
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"p0", "p1", "p2-a", "p2-b"}, ids)
}

func TestStore_GetFreesCapacityForQueuedPut(t *testing.T) {
	// GIVEN a full store of capacity 1 with a queued put
	st, s := newTestStore(t, 1)
	first := st.ReservePut(0, func(*Token) {})
	require.NoError(t, st.Put(first, entity("a")))

	resumedAt := -1.0
	queued := st.ReservePut(0, func(tok *Token) {
		resumedAt = s.Clock
		require.NoError(t, st.Put(tok, entity("b")))
	})
	require.True(t, queued.Pending())

	// WHEN a consumer removes the entity at t=4
	s.After(4, func() {
		tok := st.ReserveGet(0, func(*Token) {})
		_, err := st.Get(tok)
		require.NoError(t, err)
	})
	s.Run(10)

	// THEN the queued put resumes at the same instant and completes
	assert.Equal(t, 4.0, resumedAt)
	assert.Equal(t, 1, st.Level())
	assert.Equal(t, int64(2), st.Puts())
}

func TestStore_Redeem_Faults(t *testing.T) {
	st, _ := newTestStore(t, 2)
	other, _ := newTestStore(t, 2)

	redeemed := st.ReservePut(0, func(*Token) {})
	require.NoError(t, st.Put(redeemed, entity("a")))

	cancelled := st.ReservePut(0, func(*Token) {})
	require.NoError(t, st.Cancel(cancelled))

	full := st.ReservePut(0, func(*Token) {})
	pending := st.ReservePut(0, func(*Token) {})
	require.True(t, pending.Pending())

	foreign := other.ReservePut(0, func(*Token) {})
	getTok := st.ReserveGet(0, func(*Token) {})

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"double redemption", func() error { return st.Put(redeemed, entity("x")) }, ErrTokenRedeemed},
		{"redeem cancelled", func() error { return st.Put(cancelled, entity("x")) }, ErrTokenCancelled},
		{"redeem pending", func() error { return st.Put(pending, entity("x")) }, ErrTokenPending},
		{"foreign token", func() error { return st.Put(foreign, entity("x")) }, ErrForeignToken},
		{"wrong direction", func() error { return st.Put(getTok, entity("x")) }, ErrWrongDirection},
		{"get with put token", func() error { _, err := st.Get(full); return err }, ErrWrongDirection},
		{"nil token", func() error { return st.Put(nil, entity("x")) }, ErrNilToken},
		{"cancel redeemed", func() error { return st.Cancel(redeemed) }, ErrTokenRedeemed},
		{"cancel twice", func() error { return st.Cancel(cancelled) }, ErrTokenCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
			var rerr *ReservationError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, "e1", rerr.Store)
		})
	}
	require.NoError(t, st.checkInvariants())
}

func TestStore_Cancel_PendingLeavesWaitList(t *testing.T) {
	// GIVEN an empty store with two queued gets
	st, s := newTestStore(t, 2)
	firstRan := false
	first := st.ReserveGet(0, func(*Token) { firstRan = true })
	second := st.ReserveGet(0, func(tok *Token) {
		_, err := st.Get(tok)
		require.NoError(t, err)
	})

	// WHEN the first is cancelled and an entity arrives
	require.NoError(t, st.Cancel(first))
	tok := st.ReservePut(0, func(*Token) {})
	require.NoError(t, st.Put(tok, entity("a")))
	flush(s)

	// THEN the second waiter gets it and the cancelled continuation never runs
	assert.False(t, firstRan)
	assert.False(t, second.Live())
	assert.Equal(t, 0, st.Level())
	assert.Equal(t, 0, st.PendingGets())
}

func TestStore_Cancel_GrantedReleasesToNextWaiter(t *testing.T) {
	// GIVEN a store of capacity 1 whose only slot is reserved, with a queued put
	st, s := newTestStore(t, 1)
	held := st.ReservePut(0, func(*Token) {})
	nextGranted := false
	st.ReservePut(0, func(*Token) { nextGranted = true })

	// WHEN the granted token is cancelled
	require.NoError(t, st.Cancel(held))
	flush(s)

	// THEN the slot passes to the waiter
	assert.True(t, nextGranted)
	assert.Equal(t, 1, st.PutReserved())
	assert.Equal(t, 0, st.PendingPuts())
}

func TestStore_Cancel_BeforeGrantDeliverySkipsContinuation(t *testing.T) {
	// GIVEN a store of capacity 1 with a granted put and a queued put
	st, s := newTestStore(t, 1)
	held := st.ReservePut(0, func(*Token) {})
	ran := 0
	queued := st.ReservePut(0, func(tok *Token) {
		ran++
		require.NoError(t, st.Put(tok, entity("late")))
	})

	// WHEN the first is cancelled, handing the slot to the queued token, and
	// the queued token is cancelled before its grant is delivered
	require.NoError(t, st.Cancel(held))
	require.True(t, queued.Granted())
	require.NoError(t, st.Cancel(queued))
	flush(s)

	// THEN the continuation never runs and the slot is free again
	assert.Equal(t, 0, ran)
	assert.False(t, queued.Live())
	assert.Equal(t, 0, st.PutReserved())
	assert.Equal(t, 0, st.Level())

	// THEN a new reservation is granted immediately
	assert.True(t, st.ReservePut(0, func(*Token) {}).Granted())
}

func TestStore_Hooks_ReportLevel(t *testing.T) {
	st, s := newTestStore(t, 3)
	var levels []int
	st.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
		levels = append(levels, ctx.Detail.(int))
		assert.Same(t, st, ctx.Domain)
	}))

	s.After(1, func() {
		tok := st.ReservePut(0, func(*Token) {})
		require.NoError(t, st.Put(tok, entity("a")))
		tok = st.ReservePut(0, func(*Token) {})
		require.NoError(t, st.Put(tok, entity("b")))
		tok = st.ReserveGet(0, func(*Token) {})
		_, err := st.Get(tok)
		require.NoError(t, err)
	})
	s.Run(2)

	assert.Equal(t, []int{1, 2, 1}, levels)
	assert.Equal(t, 2, st.MaxLevel())
}

// TestStore_RandomProtocol_NeverExceedsCapacity drives a store with a random
// mix of reservations, redemptions and cancellations and checks the capacity
// invariants after every step.
func TestStore_RandomProtocol_NeverExceedsCapacity(t *testing.T) {
	for _, capacity := range []int{1, 2, 3, 7} {
		st, s := newTestStore(t, capacity)
		rng := rand.New(rand.NewSource(int64(capacity)))
		var granted []*Token
		var pending []*Token
		onGrant := func(tok *Token) { granted = append(granted, tok) }

		for step := 0; step < 2000; step++ {
			switch op := rng.Intn(5); {
			case op == 0:
				if tok := st.ReservePut(rng.Intn(3), onGrant); tok.Pending() {
					pending = append(pending, tok)
				}
			case op == 1:
				if tok := st.ReserveGet(rng.Intn(3), onGrant); tok.Pending() {
					pending = append(pending, tok)
				}
			case op == 2 || op == 3:
				if len(granted) == 0 {
					break
				}
				i := rng.Intn(len(granted))
				tok := granted[i]
				granted = append(granted[:i], granted[i+1:]...)
				if !tok.Granted() {
					break
				}
				if tok.Direction() == DirPut {
					require.NoError(t, st.Put(tok, entity("x")))
				} else {
					_, err := st.Get(tok)
					require.NoError(t, err)
				}
			case op == 4:
				if len(pending) == 0 {
					break
				}
				i := rng.Intn(len(pending))
				tok := pending[i]
				pending = append(pending[:i], pending[i+1:]...)
				if tok.Live() {
					require.NoError(t, st.Cancel(tok))
				}
			}
			flush(s)
			require.NoError(t, st.checkInvariants(), "capacity %d, step %d", capacity, step)
			require.LessOrEqual(t, st.Level(), capacity)
		}
	}
}
