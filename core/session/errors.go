package session

import "errors"

var (
	// ErrNotFound is returned when no live session matches the lookup.
	// "No session" is a normal outcome of every unauthenticated request.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidToken is returned for caller-supplied tokens that fail the
	// format screen. Rejected before any storage access.
	ErrInvalidToken = errors.New("invalid session token format")

	// ErrInvalidTTL is returned for an explicit zero TTL, which is meaningless:
	// omit the option for the configured default, or pass a negative value to
	// create an already-expired record.
	ErrInvalidTTL = errors.New("invalid session TTL")

	// ErrInvalidAccountID is returned when creating a session without a
	// positive account identifier.
	ErrInvalidAccountID = errors.New("invalid account id")

	// ErrTokenGeneration is returned when token generation fails or a token
	// collision persists after the single retry. Should never occur given the
	// token entropy.
	ErrTokenGeneration = errors.New("failed to generate session token")

	// ErrDuplicateToken signals a token collision from a backend. Backends
	// return it so the manager can regenerate and retry once.
	ErrDuplicateToken = errors.New("duplicate session token")

	// ErrStorage wraps backend transport failures so callers can distinguish
	// "backend down" from "no session" and choose to fail or degrade.
	ErrStorage = errors.New("session storage failure")

	// ErrNoAccountResolver is returned by Account when the manager was built
	// without a resolver.
	ErrNoAccountResolver = errors.New("no account resolver configured")
)
