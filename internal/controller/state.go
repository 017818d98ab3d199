package controller

import (
	"errors"
	"fmt"

	"github.com/matheuskafuri/pinfeed/internal/cache"
)

// State is the controller's loading state.
type State int

const (
	// Idle: no fetch in flight and more pages may exist.
	Idle State = iota
	// Fetching: exactly one fetch is in flight.
	Fetching
	// Exhausted: the source ran out; no fetch is ever issued again.
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshot is a copy of the feed state at one instant.
type Snapshot struct {
	Items    []cache.Pin
	NextPage int
	State    State
	// Err is the error of the last fetch, cleared by the next successful one.
	Err error
}

var ErrDuplicateKey = errors.New("duplicate item key")

// FetchError wraps a page source failure. The controller is back in Idle
// when it is reported, so the same page can be retried.
type FetchError struct {
	Page int
	Err  error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetching page %d: %v", e.Page, e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

// InvariantError reports data that breaks a feed invariant, such as a key
// that is already visible.
type InvariantError struct {
	Page int
	Keys []string
	Err  error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("page %d: %v: %v", e.Page, e.Err, e.Keys)
}

func (e *InvariantError) Unwrap() error { return e.Err }
