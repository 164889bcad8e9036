package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mardix/voodoo-doll-auth/core/account"
)

// Manager is the session store façade used by application code. It owns the
// lifecycle rules (token generation, eviction retry, TTL defaults, data merge)
// and delegates persistence to the configured Store.
type Manager struct {
	store    Store
	accounts account.Resolver
	ttl      time.Duration
	liveTTL  time.Duration
	log      *slog.Logger
}

// ManagerOption configures optional manager collaborators.
type ManagerOption func(*Manager)

// WithResolver wires the account resolver used by Account.
func WithResolver(r account.Resolver) ManagerOption {
	return func(m *Manager) {
		m.accounts = r
	}
}

// WithLogger sets the structured logger. Defaults to a discard logger.
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager creates a session manager over the given store.
func NewManager(store Store, cfg Config, opts ...ManagerOption) *Manager {
	cfg = cfg.normalize()
	m := &Manager{
		store:   store,
		ttl:     cfg.TTL,
		liveTTL: cfg.LiveTTL,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateOption adjusts a single create or renew call.
type CreateOption func(*newSessionParams)

// WithTTL overrides the configured TTL for this call. A negative value
// creates an already-expired record; an explicit zero is rejected.
func WithTTL(ttl time.Duration) CreateOption {
	return func(p *newSessionParams) {
		p.ttl = ttl
		p.ttlSet = true
	}
}

// WithShadow creates a shadow session: it coexists with the account's primary
// session and neither evicts nor is evicted on login.
func WithShadow() CreateOption {
	return func(p *newSessionParams) {
		p.shadow = true
	}
}

// WithIP records the client origin address on the session.
func WithIP(ip string) CreateOption {
	return func(p *newSessionParams) {
		p.ip = ip
	}
}

// StartNew creates and persists a session for accountID. For non-shadow
// sessions the store evicts the account's existing primary session as part of
// the same operation. A token collision is retried once with a fresh token;
// a second collision surfaces ErrTokenGeneration.
func (m *Manager) StartNew(ctx context.Context, accountID int64, opts ...CreateOption) (*Session, error) {
	if accountID <= 0 {
		return nil, ErrInvalidAccountID
	}

	p := newSessionParams{
		accountID: accountID,
		ttl:       m.ttl,
		liveTTL:   m.liveTTL,
	}
	for _, opt := range opts {
		opt(&p)
	}
	if p.ttlSet && p.ttl == 0 {
		return nil, ErrInvalidTTL
	}

	sess, err := newSession(p)
	if err != nil {
		return nil, err
	}

	if err := m.store.Create(ctx, sess); err != nil {
		if !errors.Is(err, ErrDuplicateToken) {
			return nil, err
		}

		// One retry with a fresh token; with 256-bit tokens a second
		// collision means the generator is broken.
		token, genErr := generateToken()
		if genErr != nil {
			return nil, errors.Join(ErrTokenGeneration, genErr)
		}
		sess.Token = token
		if err := m.store.Create(ctx, sess); err != nil {
			if errors.Is(err, ErrDuplicateToken) {
				return nil, errors.Join(ErrTokenGeneration, err)
			}
			return nil, err
		}
	}

	m.log.DebugContext(ctx, "session created",
		slog.Int64("account_id", sess.AccountID),
		slog.Bool("shadow", sess.Shadow),
		slog.Time("expires_at", sess.ExpiresAt))
	return sess, nil
}

// Resolve returns the live session matching token. Malformed tokens are
// rejected before any storage access.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if !validToken(token) {
		return nil, ErrInvalidToken
	}
	return m.store.GetByToken(ctx, token)
}

// Account resolves the owning account of sess through the configured
// resolver. Returns account.ErrNotFound when the account no longer exists.
func (m *Manager) Account(ctx context.Context, sess *Session) (*account.Account, error) {
	if sess == nil {
		return nil, ErrNotFound
	}
	if m.accounts == nil {
		return nil, ErrNoAccountResolver
	}
	return m.accounts.FindByID(ctx, sess.AccountID)
}

// Destroy removes sess from storage. Returns false when no stored session
// existed, making repeated calls idempotent.
func (m *Manager) Destroy(ctx context.Context, sess *Session) (bool, error) {
	if sess == nil {
		return false, nil
	}
	if err := m.store.Delete(ctx, sess); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	m.log.DebugContext(ctx, "session destroyed", slog.Int64("account_id", sess.AccountID))
	return true, nil
}

// DestroyAll wipes every session when all is true, otherwise sweeps records
// already past their expiry.
func (m *Manager) DestroyAll(ctx context.Context, all bool) error {
	n, err := m.store.DeleteAll(ctx, all)
	if err != nil {
		return err
	}
	m.log.InfoContext(ctx, "sessions removed", slog.Int64("count", n), slog.Bool("all", all))
	return nil
}

// Count returns the stored-session count when all is true, otherwise the
// number of sessions within their live activity window.
func (m *Manager) Count(ctx context.Context, all bool) (int64, error) {
	return m.store.Count(ctx, all)
}

// ResetTTL extends the session expiry from now and records the caller's IP.
// No-op when sess is nil.
func (m *Manager) ResetTTL(ctx context.Context, sess *Session, opts ...CreateOption) error {
	if sess == nil {
		return nil
	}

	p := newSessionParams{ttl: m.ttl, ip: sess.IP}
	for _, opt := range opts {
		opt(&p)
	}
	if p.ttlSet && p.ttl == 0 {
		return ErrInvalidTTL
	}

	sess.IP = p.ip
	if err := m.store.Touch(ctx, sess, p.ttl); err != nil {
		return err
	}

	now := time.Now()
	sess.ExpiresAt = now.Add(p.ttl)
	sess.UpdatedAt = now
	return nil
}

// SetData merge-sets key into the session's data bag and rewrites it as a
// whole. No-op when sess is nil.
func (m *Manager) SetData(ctx context.Context, sess *Session, key string, value any) error {
	if sess == nil {
		return nil
	}

	bag, err := m.DataMap(sess)
	if err != nil {
		return err
	}
	bag[key] = value

	raw, err := json.Marshal(bag)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}
	if err := m.store.SaveData(ctx, sess, raw); err != nil {
		return err
	}

	sess.Data = raw
	sess.UpdatedAt = time.Now()
	return nil
}

// GetData returns the value stored under key, or nil when absent.
func (m *Manager) GetData(sess *Session, key string) any {
	bag, err := m.DataMap(sess)
	if err != nil {
		return nil
	}
	return bag[key]
}

// DataMap decodes the whole data bag. Never returns a nil map.
func (m *Manager) DataMap(sess *Session) (map[string]any, error) {
	if sess == nil || len(sess.Data) == 0 {
		return map[string]any{}, nil
	}
	bag := map[string]any{}
	if err := json.Unmarshal(sess.Data, &bag); err != nil {
		return nil, fmt.Errorf("decode session data: %w", err)
	}
	return bag, nil
}

// TTL returns the configured default session time-to-live.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
