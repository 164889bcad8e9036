package account

import "errors"

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")

	// ErrInvalidCredentials is returned when the password does not match.
	// Deliberately indistinguishable from an unknown email at the login API.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInactive is returned when the account exists but its status does
	// not permit login.
	ErrInactive = errors.New("account is not active")

	// ErrWeakPassword is returned when a password fails the minimum-length check.
	ErrWeakPassword = errors.New("password too short")

	// ErrStorage wraps backend failures from the resolver.
	ErrStorage = errors.New("account storage failure")
)
