// Package auth is the admin gate.  There is a single shared secret; a
// successful login yields a signed session token whose id is recorded in
// admin_sessions so logout can revoke it server-side.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/guesthairspa/salon/internal/model"
	"github.com/guesthairspa/salon/internal/repository"
	"github.com/guesthairspa/salon/internal/utils"
)

var (
	// ErrInvalidPassword is returned by Login for a wrong secret.
	ErrInvalidPassword = errors.New("mot de passe incorrect")
	// ErrSessionExpired is returned by Resolve for expired or revoked sessions.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidToken is returned by Resolve for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Options configures a Gate.  Exactly one of PasswordHash and Password is
// expected; a plain Password is hashed once here.
type Options struct {
	PasswordHash string
	Password     string
	BcryptCost   int
	JWTSecret    string
	SessionTTL   time.Duration
}

// Gate checks the admin secret and manages sessions.
type Gate struct {
	hash     string
	secret   string
	ttl      time.Duration
	sessions *repository.SessionRepo
	now      func() time.Time
}

// NewGate validates opts and returns a ready gate.
func NewGate(opts Options, sessions *repository.SessionRepo) (*Gate, error) {
	hash := opts.PasswordHash
	switch {
	case hash != "":
		if !utils.IsBcryptHash(hash) {
			return nil, errors.New("admin password hash is not a bcrypt hash")
		}
	case opts.Password != "":
		h, err := utils.HashPassword(opts.Password, opts.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		hash = h
	default:
		return nil, errors.New("no admin password configured")
	}
	if opts.JWTSecret == "" {
		return nil, errors.New("empty JWT secret")
	}
	if opts.SessionTTL <= 0 {
		return nil, errors.New("session TTL must be positive")
	}
	return &Gate{
		hash:     hash,
		secret:   opts.JWTSecret,
		ttl:      opts.SessionTTL,
		sessions: sessions,
		now:      time.Now,
	}, nil
}

// WithClock replaces the time source used for issuing and checking tokens.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// Login moves the caller from LoggedOut to LoggedIn when password matches.
// A wrong password creates nothing and returns ErrInvalidPassword.
func (g *Gate) Login(ctx context.Context, password string) (*model.Session, error) {
	if !utils.VerifyPassword(g.hash, password) {
		return nil, ErrInvalidPassword
	}
	tok, err := utils.NewSessionToken(g.secret, model.RoleAdmin, g.ttl, g.now())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	if _, err := g.sessions.Create(ctx, utils.HashTokenID(tok.ID), tok.Exp); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &model.Session{
		ID:        tok.ID,
		Role:      model.RoleAdmin,
		Token:     tok.Token,
		ExpiresAt: tok.Exp,
	}, nil
}

// Resolve turns a bearer token into a session.  The signature, the expiry
// and the session row must all check out.
func (g *Gate) Resolve(ctx context.Context, raw string) (*model.Session, error) {
	claims, err := utils.ParseSessionToken(g.secret, raw, g.now())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidToken
	}
	row, err := g.sessions.Validate(ctx, utils.HashTokenID(claims.ID))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	return &model.Session{
		ID:        claims.ID,
		Role:      claims.Role,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

// Logout revokes the session.  It always succeeds for a session that is
// already gone.
func (g *Gate) Logout(ctx context.Context, s *model.Session) error {
	if s == nil {
		return nil
	}
	return g.sessions.Revoke(ctx, utils.HashTokenID(s.ID))
}

// PurgeSessions deletes expired and revoked session rows.
func (g *Gate) PurgeSessions(ctx context.Context) (int64, error) {
	return g.sessions.PurgeExpired(ctx, g.now())
}
