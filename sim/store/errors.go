package store

import (
	"errors"
	"fmt"
)

// Sentinel causes of a ReservationError. Match them with errors.Is.
var (
	ErrNilToken       = errors.New("nil token")
	ErrForeignToken   = errors.New("token belongs to another store")
	ErrWrongDirection = errors.New("token direction does not match operation")
	ErrTokenPending   = errors.New("token has not been granted")
	ErrTokenRedeemed  = errors.New("token already redeemed")
	ErrTokenCancelled = errors.New("token already cancelled")
)

// ReservationError reports a broken use of the reservation protocol: a token
// that is redeemed twice, redeemed on the wrong store, or cancelled after use.
// It signals a programming defect in a node behavior and is never retried.
type ReservationError struct {
	Store string
	Op    string // "put", "get" or "cancel"
	Token string
	Err   error
}

func (e *ReservationError) Error() string {
	return fmt.Sprintf("reservation fault on store %q: %s %s: %v", e.Store, e.Op, e.Token, e.Err)
}

func (e *ReservationError) Unwrap() error { return e.Err }
