package trade

import (
	"errors"
	"fmt"
)

// ErrStaleState marks an async result that arrived after the relevant
// trade key changed. Callers drop it silently.
var ErrStaleState = errors.New("stale result for superseded trade key")

// ErrNoOpenTrade is returned when an action needs an open position and
// there is none.
var ErrNoOpenTrade = errors.New("no open trade")

// ConcurrentActionError rejects a second close/flip while one is in
// flight. The request is refused immediately, never queued.
type ConcurrentActionError struct {
	Requested string
	InFlight  string
}

func (e *ConcurrentActionError) Error() string {
	return fmt.Sprintf("cannot %s: %s already in flight", e.Requested, e.InFlight)
}
