package files

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ai4kg/server/domain/graph"
	"github.com/ai4kg/server/pkg/apperror"
	"github.com/ai4kg/server/pkg/auth"
	"github.com/ai4kg/server/pkg/logger"
)

// Handler exposes graph import and export.
type Handler struct {
	service *Service
	log     *slog.Logger
}

// NewHandler creates a files handler.
func NewHandler(service *Service, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With(logger.Scope("files.handler")),
	}
}

// Import handles POST /api/graphs/import. The graph file arrives as the
// multipart field "file".
func (h *Handler) Import(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperror.NewBadRequest("multipart field 'file' is required")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return apperror.NewBadRequest("cannot read uploaded file")
	}
	defer src.Close()

	resp, err := h.service.Import(c.Request().Context(), user, fileHeader.Filename, src)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, graph.OK("Graph imported successfully", resp))
}

// Export handles GET /api/graphs/:graph_id/export. The format query
// parameter defaults to json.
func (h *Handler) Export(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	format := c.QueryParam("format")
	if format == "" {
		format = string(FormatJSON)
	}

	export, err := h.service.ExportGraph(c.Request().Context(), user, c.Param("graph_id"), format)
	if err != nil {
		return err
	}

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, export.Filename))
	return c.Blob(http.StatusOK, export.ContentType, export.Content)
}
