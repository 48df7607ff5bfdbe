package graph

import (
	"github.com/labstack/echo/v4"

	"github.com/ai4kg/server/pkg/auth"
)

// RegisterRoutes registers all graph routes.
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	// All graph routes require authentication
	g := e.Group("/api/graphs")
	g.Use(authMiddleware.RequireAuth())

	g.POST("", h.CreateGraph)
	g.GET("", h.ListGraphs)
	g.GET("/:graph_id", h.GetGraph)
	g.PUT("/:graph_id", h.UpdateGraph)
	g.DELETE("/:graph_id", h.DeleteGraph)

	// Node routes. Merge is registered before the parameterized routes so
	// "merge" is never taken for a node id.
	g.POST("/:graph_id/nodes/merge", h.MergeNodes)
	g.GET("/:graph_id/nodes", h.ListNodes)
	g.POST("/:graph_id/nodes", h.AddNode)
	g.PUT("/:graph_id/nodes/:node_id", h.UpdateNode)
	g.DELETE("/:graph_id/nodes/:node_id", h.DeleteNode)
	g.GET("/:graph_id/nodes/:node_id/delete-impact", h.DeleteImpact)

	// Edge routes
	g.GET("/:graph_id/edges", h.ListEdges)
	g.POST("/:graph_id/edges", h.AddEdge)
	g.PUT("/:graph_id/edges/:edge_id", h.UpdateEdge)
	g.DELETE("/:graph_id/edges/:edge_id", h.DeleteEdge)
}
