package store

import "fmt"

// Direction tags what a Token grants: the right to insert or to remove.
type Direction int

const (
	// DirPut grants one free slot.
	DirPut Direction = iota
	// DirGet grants one stored entity.
	DirGet
)

func (d Direction) String() string {
	switch d {
	case DirPut:
		return "put"
	case DirGet:
		return "get"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

type tokenState int

const (
	tokenPending tokenState = iota
	tokenGranted
	tokenRedeemed
	tokenCancelled
)

func (s tokenState) String() string {
	switch s {
	case tokenPending:
		return "pending"
	case tokenGranted:
		return "granted"
	case tokenRedeemed:
		return "redeemed"
	case tokenCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("tokenState(%d)", int(s))
	}
}

// GrantFunc is the continuation of a reservation. It runs exactly once, when
// the token is granted.
type GrantFunc func(tok *Token)

// Token is a single-use reservation on one Store. It is pending until
// granted, and invalid as soon as it is redeemed or cancelled.
type Token struct {
	id       uint64
	dir      Direction
	store    *Store
	priority int
	state    tokenState
	onGrant  GrantFunc
	index    int // position in the waiter heap while pending, -1 otherwise
}

// ID returns the token's sequence number within its store. Tokens are
// numbered in issue order, which is also the arrival order used for ties.
func (t *Token) ID() uint64 { return t.id }

// Direction returns whether the token reserves a slot or an entity.
func (t *Token) Direction() Direction { return t.dir }

// Priority returns the priority the reservation was issued with.
func (t *Token) Priority() int { return t.priority }

// Granted reports whether the token is granted and not yet redeemed or cancelled.
func (t *Token) Granted() bool { return t.state == tokenGranted }

// Pending reports whether the token is still waiting for capacity.
func (t *Token) Pending() bool { return t.state == tokenPending }

// Live reports whether the token can still be redeemed or cancelled.
func (t *Token) Live() bool { return t.state == tokenPending || t.state == tokenGranted }

func (t *Token) String() string {
	name := "<nil>"
	if t.store != nil {
		name = t.store.name
	}
	return fmt.Sprintf("%s#%d(%s,%s)", name, t.id, t.dir, t.state)
}
