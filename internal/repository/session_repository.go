package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/guesthairspa/salon/internal/model"
)

// SessionRepo persists/validates admin sessions (single 'token_hash' column).
type SessionRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewSessionRepo constructs a SessionRepo using the wall clock.
func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db, now: time.Now}
}

// WithClock replaces the time source used for expiry checks.
func (r *SessionRepo) WithClock(now func() time.Time) *SessionRepo {
	r.now = now
	return r
}

// Create inserts a session row for the given token hash.
func (r *SessionRepo) Create(ctx context.Context, tokenHash string, exp time.Time) (*model.AdminSession, error) {
	s := &model.AdminSession{
		ID:        uuid.NewString(),
		TokenHash: tokenHash,
		ExpiresAt: exp.UTC().Truncate(time.Microsecond),
		CreatedAt: r.now().UTC().Truncate(time.Microsecond),
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO admin_sessions (id, token_hash, expires_at, created_at) VALUES (?,?,?,?)",
		s.ID, s.TokenHash, s.ExpiresAt, s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Validate returns the session if a non-revoked, non-expired row exists.
func (r *SessionRepo) Validate(ctx context.Context, tokenHash string) (*model.AdminSession, error) {
	var (
		s         model.AdminSession
		revokedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, token_hash, expires_at, revoked_at, created_at FROM admin_sessions WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&s.ID, &s.TokenHash, &s.ExpiresAt, &revokedAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if revokedAt.Valid {
		return nil, ErrSessionNotFound
	}
	if !r.now().UTC().Before(s.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

// Revoke marks a session as revoked.  Revoking an unknown or already revoked
// session is not an error.
func (r *SessionRepo) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE admin_sessions SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		r.now().UTC().Truncate(time.Microsecond), tokenHash)
	return err
}

// PurgeExpired deletes sessions that expired before the given instant or were
// revoked, and returns how many rows went away.
func (r *SessionRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM admin_sessions WHERE expires_at < ? OR revoked_at IS NOT NULL",
		before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
