package models

import "errors"

// Shared error taxonomy. Domain packages wrap these so callers can classify
// a rejected transition with errors.Is regardless of which app produced it.
var (
	// ErrNotAuthorized is returned when the caller is not the token owner,
	// effective owner, team captain or contract owner required by the call.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrStateConflict is returned when an entity is already in the state the
	// call tries to enter (already rostered, already signed up, already
	// challenged, already finished).
	ErrStateConflict = errors.New("state conflict")

	// ErrInsufficientFunds covers stakes, fees and settlement liquidity.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTimingWindow is returned when a call lands outside its block window,
	// either too early or too late.
	ErrTimingWindow = errors.New("outside timing window")

	// ErrCapacity is returned when a roster is full or a position is taken.
	ErrCapacity = errors.New("capacity exceeded")

	// ErrNotFound is returned for unknown teams, games, requests, tokens and
	// applications.
	ErrNotFound = errors.New("not found")
)
