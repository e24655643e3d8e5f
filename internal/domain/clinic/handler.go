package clinic

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the clinic catalog over HTTP.
type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes mounts clinic routes on the supplied Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/clinics", h.handleList)
}

func (h *Handler) handleList(c echo.Context) error {
	clinics, err := h.repo.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list clinics")
	}
	if clinics == nil {
		clinics = []*Clinic{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":   true,
		"data": clinics,
	})
}
