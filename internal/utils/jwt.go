package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims of an admin session token.  The token id (jti)
// is what the session table remembers, hashed.
type SessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SessionToken is a signed JWT together with its id and expiry.
type SessionToken struct {
	Token string    // the serialized JWT string
	ID    string    // jti claim
	Exp   time.Time // UTC expiration time
}

// NewSessionToken builds and signs an HS256 JWT for the admin.  The token
// carries a random jti, the role, iat and exp.
func NewSessionToken(secret, role string, ttl time.Duration, now time.Time) (SessionToken, error) {
	jti, err := randomHex(24)
	if err != nil {
		return SessionToken{}, err
	}
	now = now.UTC()
	exp := now.Add(ttl)
	claims := SessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	// exp is encoded with second precision
	return SessionToken{Token: signed, ID: jti, Exp: exp.Truncate(time.Second)}, nil
}

// ParseSessionToken verifies signature, algorithm and expiry at the given
// instant and returns the claims.
func ParseSessionToken(secret, raw string, now time.Time) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, err
	}
	if !tok.Valid || claims.ID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// HashTokenID returns the SHA-256 hash of a token id as a hex string.
// Storing only the hash keeps a leaked table from yielding live sessions.
func HashTokenID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
