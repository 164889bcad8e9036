package session

import (
	"context"
	"time"
)

// Store is the storage-backend contract. Both implementations provide the
// same behavioral contract over different expiry and transaction primitives;
// implementations must be safe for concurrent use.
type Store interface {
	// Create persists a new record. For non-shadow sessions it first evicts
	// every existing non-shadow record for the same account, atomically with
	// the insert as far as the backend allows. Returns ErrDuplicateToken when
	// the token is already taken.
	Create(ctx context.Context, sess *Session) error

	// GetByToken returns the non-expired record matching token, refreshing
	// the live activity marker when its window has lapsed. Returns
	// ErrNotFound for missing or expired records.
	GetByToken(ctx context.Context, token string) (*Session, error)

	// Touch extends the record's expiry to now+ttl and persists the updated
	// client IP taken from sess.
	Touch(ctx context.Context, sess *Session, ttl time.Duration) error

	// SaveData rewrites the record's serialized data bag.
	SaveData(ctx context.Context, sess *Session, data []byte) error

	// Delete removes the record. Returns ErrNotFound when nothing was stored.
	Delete(ctx context.Context, sess *Session) error

	// DeleteAll removes every record when all is true, otherwise only records
	// already past their expiry. Backends with native key expiry have nothing
	// to sweep and report zero for all=false. Returns the number removed.
	DeleteAll(ctx context.Context, all bool) (int64, error)

	// Count returns the number of stored records when all is true, otherwise
	// the number of records whose live marker has not lapsed.
	Count(ctx context.Context, all bool) (int64, error)
}
