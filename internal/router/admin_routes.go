package router

import (
	"github.com/labstack/echo/v4"

	"github.com/guesthairspa/salon/internal/middleware"
	"github.com/guesthairspa/salon/internal/model"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1/admin.
// All routes require a live session with the ADMIN role.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1/admin",
		middleware.SessionAuth(d.Gate),
		middleware.RequireRole(model.RoleAdmin),
	)

	g.GET("/dashboard", d.Dashboard.Get)

	// ---- Promotions ----
	g.GET("/promotions", d.Promotions.List)
	g.POST("/promotions", d.Promotions.Create)
	g.POST("/promotions/images", d.Promotions.UploadImage)
	g.PUT("/promotions/:id", d.Promotions.Update)
	g.PATCH("/promotions/:id", d.Promotions.Update)
	g.DELETE("/promotions/:id", d.Promotions.Delete)

	// ---- Contacts ----
	g.GET("/contacts", d.Contacts.List)
	g.PATCH("/contacts/:id/read", d.Contacts.MarkRead)
	g.DELETE("/contacts/:id", d.Contacts.Delete)
}

// Register wires every route group.
func Register(e *echo.Echo, d Deps) {
	e.IPExtractor = clientIPExtractor(d.TrustedProxies)
	RegisterRoutes(e, d)
	RegisterPublic(e, d)
	RegisterAuth(e, d)
	RegisterAdmin(e, d)
}
