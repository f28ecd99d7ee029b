package middleware

// identity.go defines helpers shared across middleware files.

import "github.com/labstack/echo/v4"

// subject identifies the caller for rate-limit keys: the session id when an
// admin is logged in, "anon" otherwise.
func subject(c echo.Context) string {
	if s := SessionFrom(c); s != nil && s.ID != "" {
		return s.ID
	}
	return "anon"
}

// clientIP returns the caller address as resolved by the configured
// IPExtractor, or "unknown".
func clientIP(c echo.Context) string {
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}
