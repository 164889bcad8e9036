package account

import (
	"context"
	"time"
)

// Account statuses. Only active accounts may authenticate.
const (
	StatusActive    = "ACTIVE"
	StatusSuspended = "SUSPENDED"
	StatusCancelled = "CANCELLED"
	StatusDeleted   = "DELETED"
)

// Account is the owning entity behind a session.
type Account struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Status       string
	LastLoginAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the account is allowed to authenticate.
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// Resolver maps an account identifier to the account entity. The session
// manager consumes it to answer "whose session is this".
type Resolver interface {
	FindByID(ctx context.Context, id int64) (*Account, error)
}
