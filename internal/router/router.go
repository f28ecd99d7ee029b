package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"
	"net"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/guesthairspa/salon/internal/auth"
	"github.com/guesthairspa/salon/internal/config"
	"github.com/guesthairspa/salon/internal/handler"
	"github.com/guesthairspa/salon/internal/middleware"
	"github.com/guesthairspa/salon/internal/storage"
)

// Deps bundles everything the routes need.  Redis may be nil; caching and
// rate limiting then degrade to pass-through and in-memory limits.
type Deps struct {
	DB         *sql.DB
	Redis      *redis.Client
	Cache      config.CacheConfig
	RateLimit  config.RateLimitConfig
	Gate       *auth.Gate
	Promotions *handler.PromotionHandler
	Contacts   *handler.ContactHandler
	Dashboard  *handler.DashboardHandler
	Auth       *handler.AuthHandler
	Bucket     *storage.LocalBucket

	// TrustedProxies may set X-Forwarded-For; with none the socket peer is
	// the client address used for rate limiting.
	TrustedProxies []*net.IPNet
}

// clientIPExtractor never trusts forwarding headers from arbitrary peers.
func clientIPExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the health check and uploaded media.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
	if d.Bucket != nil {
		e.Static(storage.MediaPrefix+"/"+storage.PromotionsBucket, d.Bucket.Dir())
	}
}

// RegisterAuth registers the admin login, logout and session check.  Login
// is rate limited; the other two require a live session.
func RegisterAuth(e *echo.Echo, d Deps) {
	g := e.Group("/v1/admin")
	g.POST("/login", d.Auth.Login, middleware.NewTokenBucket(d.RateLimit, d.Redis))

	s := e.Group("/v1/admin", middleware.SessionAuth(d.Gate))
	s.POST("/logout", d.Auth.Logout)
	s.GET("/session", d.Auth.Session)
}
