package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/guesthairspa/salon/internal/auth"
	"github.com/guesthairspa/salon/internal/middleware"
)

// AuthHandler serves admin login and logout.
type AuthHandler struct {
	Gate *auth.Gate
}

// NewAuthHandler wires the gate.
func NewAuthHandler(g *auth.Gate) *AuthHandler {
	return &AuthHandler{Gate: g}
}

type loginReq struct {
	Password string `json:"password"`
}

type loginResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Login checks the shared admin secret.  A wrong password answers 401 with
// "mot de passe incorrect"; an empty one is just a wrong one.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	s, err := h.Gate.Login(ctx, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "mot de passe incorrect"})
		}
		return writeError(c, err, "login failed")
	}
	return c.JSON(http.StatusOK, loginResp{Token: s.Token, Expires: s.ExpiresAt})
}

// Logout revokes the current session.  It always answers 204 once the
// caller got past SessionAuth.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Gate.Logout(ctx, middleware.SessionFrom(c)); err != nil {
		return writeError(c, err, "logout failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Session reports the current session, letting the front end decide
// between the login form and the dashboard.
func (h *AuthHandler) Session(c echo.Context) error {
	s := middleware.SessionFrom(c)
	return c.JSON(http.StatusOK, echo.Map{
		"authenticated": true,
		"role":          s.Role,
		"expires":       s.ExpiresAt,
	})
}
