package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mardix/voodoo-doll-auth/integration/database/pg"
)

// PGDatabase is the subset of pgxpool.Pool the resolver needs.
type PGDatabase interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGResolver reads accounts from the auth_account table.
type PGResolver struct {
	db PGDatabase
}

// NewPGResolver creates a postgres-backed account resolver.
func NewPGResolver(db PGDatabase) *PGResolver {
	return &PGResolver{db: db}
}

const accountColumns = `id, email, name, password_hash, status, last_login_at, created_at, updated_at`

func (r *PGResolver) querier(ctx context.Context) PGDatabase {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// FindByID returns the account with the given id, or ErrNotFound.
func (r *PGResolver) FindByID(ctx context.Context, id int64) (*Account, error) {
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM auth_account WHERE id = $1`, id)
}

// FindByEmail returns the account with the given email, or ErrNotFound.
// Emails are matched case-insensitively.
func (r *PGResolver) FindByEmail(ctx context.Context, email string) (*Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.findOne(ctx, `SELECT `+accountColumns+` FROM auth_account WHERE lower(email) = $1`, email)
}

// LoginWithEmail verifies the password against the stored digest and returns
// the account on success, recording the login time. Unknown email and wrong
// password both yield ErrInvalidCredentials.
func (r *PGResolver) LoginWithEmail(ctx context.Context, email, password string) (*Account, error) {
	acc, err := r.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !VerifyPassword(password, acc.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !acc.IsActive() {
		return nil, ErrInactive
	}
	if err := r.UpdateLastLogin(ctx, acc.ID); err != nil {
		return nil, err
	}
	acc.LastLoginAt = time.Now()
	return acc, nil
}

// UpdateLastLogin stamps the account's last successful login.
func (r *PGResolver) UpdateLastLogin(ctx context.Context, id int64) error {
	if _, err := r.querier(ctx).Exec(ctx,
		`UPDATE auth_account SET last_login_at = now(), updated_at = now() WHERE id = $1`, id,
	); err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

func (r *PGResolver) findOne(ctx context.Context, query string, arg any) (*Account, error) {
	var (
		acc       Account
		lastLogin *time.Time
	)
	err := r.querier(ctx).QueryRow(ctx, query, arg).Scan(
		&acc.ID, &acc.Email, &acc.Name, &acc.PasswordHash, &acc.Status,
		&lastLogin, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrStorage, err)
	}
	if lastLogin != nil {
		acc.LastLoginAt = *lastLogin
	}
	return &acc, nil
}
