package router

import (
	"github.com/labstack/echo/v4"

	"github.com/guesthairspa/salon/internal/middleware"
)

// RegisterPublic registers the endpoints the public site calls.  The
// promotion list goes through the response cache; contact submissions are
// rate limited per IP.
func RegisterPublic(e *echo.Echo, d Deps) {
	e.GET("/v1/promotions", d.Promotions.List, middleware.NewRedisCache(d.Cache, d.Redis))
	e.POST("/v1/contacts", d.Contacts.Submit, middleware.NewTokenBucket(d.RateLimit, d.Redis))
}
