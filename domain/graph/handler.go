package graph

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ai4kg/server/pkg/apperror"
	"github.com/ai4kg/server/pkg/auth"
	"github.com/ai4kg/server/pkg/logger"
)

// Handler exposes the graph service over HTTP. It binds requests, delegates
// to the service, and wraps results in the response envelope.
type Handler struct {
	service *Service
	log     *slog.Logger
}

// NewHandler creates a graph handler.
func NewHandler(service *Service, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With(logger.Scope("graph.handler")),
	}
}

func requireUser(c echo.Context) (*auth.User, error) {
	user := auth.GetUser(c)
	if user == nil {
		return nil, apperror.ErrUnauthorized
	}
	return user, nil
}

// CreateGraph handles POST /api/graphs.
func (h *Handler) CreateGraph(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	var req CreateGraphRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	resp, err := h.service.CreateGraph(c.Request().Context(), user, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, OK("Graph created successfully", resp))
}

// ListGraphs handles GET /api/graphs.
func (h *Handler) ListGraphs(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	search := c.QueryParam("search")

	resp, err := h.service.ListGraphs(c.Request().Context(), user, page, size, search)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OK("Graphs retrieved successfully", resp))
}

// GetGraph handles GET /api/graphs/:graph_id.
func (h *Handler) GetGraph(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	resp, err := h.service.GetGraph(c.Request().Context(), user, c.Param("graph_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OK("Graph retrieved successfully", resp))
}

// UpdateGraph handles PUT /api/graphs/:graph_id.
func (h *Handler) UpdateGraph(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	var req UpdateGraphRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	resp, err := h.service.UpdateGraph(c.Request().Context(), user, c.Param("graph_id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OK("Graph updated successfully", resp))
}

// DeleteGraph handles DELETE /api/graphs/:graph_id.
func (h *Handler) DeleteGraph(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	if err := h.service.DeleteGraph(c.Request().Context(), user, c.Param("graph_id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OK("Graph deleted successfully", nil))
}

// ListNodes handles GET /api/graphs/:graph_id/nodes.
func (h *Handler) ListNodes(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	nodes, err := h.service.ListNodes(c.Request().Context(), user, c.Param("graph_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OK("Nodes retrieved successfully", nodes))
}

// ListEdges handles GET /api/graphs/:graph_id/edges.
func (h *Handler) ListEdges(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	edges, err := h.service.ListEdges(c.Request().Context(), user, c.Param("graph_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OK("Edges retrieved successfully", edges))
}

// AddNode handles POST /api/graphs/:graph_id/nodes.
func (h *Handler) AddNode(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	var req CreateNodeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	node, err := h.service.AddNode(c.Request().Context(), user, c.Param("graph_id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, OK("Node added successfully", node))
}

// UpdateNode handles PUT /api/graphs/:graph_id/nodes/:node_id.
func (h *Handler) UpdateNode(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	var req UpdateNodeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	node, err := h.service.UpdateNode(c.Request().Context(), user, c.Param("graph_id"), c.Param("node_id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OK("Node updated successfully", node))
}

// DeleteNode handles DELETE /api/graphs/:graph_id/nodes/:node_id.
func (h *Handler) DeleteNode(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	resp, err := h.service.DeleteNode(c.Request().Context(), user, c.Param("graph_id"), c.Param("node_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OK("Node deleted successfully", resp))
}

// DeleteImpact handles GET /api/graphs/:graph_id/nodes/:node_id/delete-impact.
func (h *Handler) DeleteImpact(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	resp, err := h.service.DeleteImpact(c.Request().Context(), user, c.Param("graph_id"), c.Param("node_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OK("Delete impact analyzed successfully", resp))
}

// MergeNodes handles POST /api/graphs/:graph_id/nodes/merge.
func (h *Handler) MergeNodes(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	var req MergeNodesRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	resp, err := h.service.MergeNodes(c.Request().Context(), user, c.Param("graph_id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OK("Nodes merged successfully", resp))
}

// AddEdge handles POST /api/graphs/:graph_id/edges.
func (h *Handler) AddEdge(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	var req CreateEdgeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	edge, err := h.service.AddEdge(c.Request().Context(), user, c.Param("graph_id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, OK("Edge added successfully", edge))
}

// UpdateEdge handles PUT /api/graphs/:graph_id/edges/:edge_id.
func (h *Handler) UpdateEdge(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	var req UpdateEdgeRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	edge, err := h.service.UpdateEdge(c.Request().Context(), user, c.Param("graph_id"), c.Param("edge_id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OK("Edge updated successfully", edge))
}

// DeleteEdge handles DELETE /api/graphs/:graph_id/edges/:edge_id.
func (h *Handler) DeleteEdge(c echo.Context) error {
	user, err := requireUser(c)
	if err != nil {
		return err
	}

	edge, err := h.service.DeleteEdge(c.Request().Context(), user, c.Param("graph_id"), c.Param("edge_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, OK("Edge deleted successfully", edge))
}
