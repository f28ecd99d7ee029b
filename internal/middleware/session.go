package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/guesthairspa/salon/internal/model"
)

// SessionKey is the echo context key holding the resolved *model.Session.
const SessionKey = "session"

// SessionResolver turns a bearer token into a live session.
type SessionResolver interface {
	Resolve(ctx context.Context, raw string) (*model.Session, error)
}

// SessionAuth returns an Echo middleware that resolves the Bearer token into
// a session and stores it in the request context together with its role.
// A missing, invalid, expired or revoked token ends the request with 401:
// the caller is LoggedOut.
func SessionAuth(resolver SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			s, err := resolver.Resolve(c.Request().Context(), raw)
			if err != nil || s == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session invalide ou expirée"})
			}

			c.Set(SessionKey, s)
			c.Set("role", s.Role)
			return next(c)
		}
	}
}

// SessionFrom returns the session stored by SessionAuth, or nil.
func SessionFrom(c echo.Context) *model.Session {
	s, _ := c.Get(SessionKey).(*model.Session)
	return s
}
