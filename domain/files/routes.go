package files

import (
	"github.com/labstack/echo/v4"

	"github.com/ai4kg/server/pkg/auth"
)

// RegisterRoutes registers import/export routes. Import sits before the
// parameterized graph routes so "import" is never taken for a graph id.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/graphs")
	g.Use(authMiddleware.RequireAuth())

	g.POST("/import", h.Import)
	g.GET("/:graph_id/export", h.Export)
}
