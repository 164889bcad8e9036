package session

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Session is one authenticated session record. The Token is the only value
// ever shared with the client; everything else stays server-side.
type Session struct {
	// ID is the stable record identifier, generated at creation.
	ID uuid.UUID

	// Token is the opaque session token bound 1:1 to the client cookie.
	// Immutable after creation.
	Token string

	// AccountID identifies the owning account.
	AccountID int64

	// IP is the last-known client address, updated on renewal.
	IP string

	// Data is the serialized key/value bag attached to the session.
	// It starts as an empty JSON object and is rewritten as a whole on merge.
	Data json.RawMessage

	// Shadow marks a secondary session that coexists with the account's
	// primary session. Shadow sessions never evict and are never evicted
	// by the replace-on-login step. Immutable after creation.
	Shadow bool

	// ExpiresAt is the absolute expiry; the record is unobservable past it.
	ExpiresAt time.Time

	// LiveExpiresAt is the shorter-lived activity marker used to count
	// recently active sessions. Zero means the marker has never been set.
	LiveExpiresAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// newSessionParams carries the inputs resolved from create options.
type newSessionParams struct {
	accountID int64
	ip        string
	shadow    bool
	ttl       time.Duration
	ttlSet    bool
	liveTTL   time.Duration
}

// newSession builds an unsaved record with a fresh token.
// A negative ttl produces a record that is expired at birth, which is a valid
// way to pre-expire a session; a ttl of zero is rejected by the manager before
// this point.
func newSession(p newSessionParams) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, errors.Join(ErrTokenGeneration, err)
	}

	now := time.Now()
	return &Session{
		ID:            uuid.New(),
		Token:         token,
		AccountID:     p.accountID,
		IP:            p.ip,
		Data:          json.RawMessage(`{}`),
		Shadow:        p.shadow,
		ExpiresAt:     now.Add(p.ttl),
		LiveExpiresAt: now.Add(p.liveTTL),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// IsExpired reports whether the record is past its absolute expiry.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsLive reports whether the activity marker is still within its window.
func (s *Session) IsLive() bool {
	return time.Now().Before(s.LiveExpiresAt)
}
