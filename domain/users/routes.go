package users

import (
	"github.com/labstack/echo/v4"

	"github.com/ai4kg/server/pkg/auth"
)

// RegisterRoutes registers all account routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/auth")

	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.GET("/me", h.Me, authMiddleware.RequireAuth())
}
