package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mardix/voodoo-doll-auth/integration/database/pg"
)

// PGDatabase is the subset of pgxpool.Pool the relational backend needs.
type PGDatabase interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore persists sessions in the auth_session table. Rows are not
// self-cleaning: expired rows stay until DeleteAll(false) sweeps them, so
// Count(true) reports historical and live rows alike.
type PGStore struct {
	db      PGDatabase
	liveTTL time.Duration
}

// NewPGStore creates the relational backend. liveTTL is the activity-marker
// window; zero or negative falls back to the default.
func NewPGStore(db PGDatabase, liveTTL time.Duration) *PGStore {
	if liveTTL <= 0 {
		liveTTL = DefaultConfig().LiveTTL
	}
	return &PGStore{db: db, liveTTL: liveTTL}
}

const pgSessionColumns = `id, token, account_id, ip, data, shadow, expires_at, live_expires_at, created_at, updated_at`

// querier returns the ambient transaction when one is carried by ctx,
// otherwise the pool.
func (s *PGStore) querier(ctx context.Context) PGDatabase {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return tx
	}
	return s.db
}

// Create evicts the account's primary session and inserts the new row inside
// one transaction. A plain DELETE does not serialize racing logins under
// READ COMMITTED (neither sees the other's uncommitted insert), so the
// eviction takes a per-account advisory lock first; the second login blocks
// until the first commits and then evicts its row.
func (s *PGStore) Create(ctx context.Context, sess *Session) error {
	tx, ownTx, err := s.begin(ctx)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if ownTx {
		defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit
	}

	if !sess.Shadow {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock($1)`, sess.AccountID,
		); err != nil {
			return errors.Join(ErrStorage, err)
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM auth_session WHERE account_id = $1 AND shadow = FALSE`,
			sess.AccountID,
		); err != nil {
			return errors.Join(ErrStorage, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO auth_session (id, token, account_id, ip, data, shadow, expires_at, live_expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sess.ID, sess.Token, sess.AccountID, sess.IP, sess.Data, sess.Shadow,
		sess.ExpiresAt, nullableTime(sess.LiveExpiresAt), sess.CreatedAt, sess.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateToken
		}
		return errors.Join(ErrStorage, err)
	}

	if ownTx {
		if err := tx.Commit(ctx); err != nil {
			return errors.Join(ErrStorage, err)
		}
	}
	return nil
}

// GetByToken looks up a non-expired row and lazily extends the live marker
// once its window has lapsed.
func (s *PGStore) GetByToken(ctx context.Context, token string) (*Session, error) {
	q := s.querier(ctx)

	row := q.QueryRow(ctx,
		`SELECT `+pgSessionColumns+` FROM auth_session WHERE token = $1 AND expires_at > now()`,
		token,
	)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrStorage, err)
	}

	if now := time.Now(); !sess.LiveExpiresAt.After(now) {
		live := now.Add(s.liveTTL)
		if _, err := q.Exec(ctx,
			`UPDATE auth_session SET live_expires_at = $2 WHERE id = $1`,
			sess.ID, live,
		); err != nil {
			return nil, errors.Join(ErrStorage, err)
		}
		sess.LiveExpiresAt = live
	}

	return sess, nil
}

// Touch extends the expiry from now and persists the caller's IP.
func (s *PGStore) Touch(ctx context.Context, sess *Session, ttl time.Duration) error {
	tag, err := s.querier(ctx).Exec(ctx,
		`UPDATE auth_session SET expires_at = $2, ip = $3, updated_at = now() WHERE id = $1`,
		sess.ID, time.Now().Add(ttl), sess.IP,
	)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveData rewrites the serialized data bag.
func (s *PGStore) SaveData(ctx context.Context, sess *Session, data []byte) error {
	tag, err := s.querier(ctx).Exec(ctx,
		`UPDATE auth_session SET data = $2, updated_at = now() WHERE id = $1`,
		sess.ID, data,
	)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the row.
func (s *PGStore) Delete(ctx context.Context, sess *Session) error {
	tag, err := s.querier(ctx).Exec(ctx, `DELETE FROM auth_session WHERE id = $1`, sess.ID)
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll wipes the table when all is true, otherwise sweeps expired rows.
func (s *PGStore) DeleteAll(ctx context.Context, all bool) (int64, error) {
	query := `DELETE FROM auth_session WHERE expires_at <= now()`
	if all {
		query = `DELETE FROM auth_session`
	}
	tag, err := s.querier(ctx).Exec(ctx, query)
	if err != nil {
		return 0, errors.Join(ErrStorage, err)
	}
	return tag.RowsAffected(), nil
}

// Count reports stored rows (all) or rows within the live window.
func (s *PGStore) Count(ctx context.Context, all bool) (int64, error) {
	query := `SELECT count(*) FROM auth_session WHERE live_expires_at > now()`
	if all {
		query = `SELECT count(*) FROM auth_session`
	}
	var n int64
	if err := s.querier(ctx).QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, errors.Join(ErrStorage, err)
	}
	return n, nil
}

// begin reuses an ambient transaction from ctx or starts its own.
func (s *PGStore) begin(ctx context.Context) (pgx.Tx, bool, error) {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return tx, false, nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	return tx, true, nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		sess Session
		live *time.Time
	)
	if err := row.Scan(
		&sess.ID, &sess.Token, &sess.AccountID, &sess.IP, &sess.Data, &sess.Shadow,
		&sess.ExpiresAt, &live, &sess.CreatedAt, &sess.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if live != nil {
		sess.LiveExpiresAt = *live
	}
	return &sess, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
