package healthlog

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mediimate/gateway/internal/platform/auth"
	"github.com/mediimate/gateway/internal/platform/httperr"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the dashboard routes on a group that already
// requires a patient session past the terms gate.
func (h *Handler) RegisterRoutes(patient *echo.Group) {
	patient.GET("/dashboard", h.Dashboard)
	patient.GET("/meal-logs", h.MealLogs)
	patient.GET("/health-logs/export", h.Export)
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context(), auth.Current(c))
	if err != nil {
		return httperr.From(err, "Failed to load health logs")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) MealLogs(c echo.Context) error {
	meals, err := h.svc.MealLogs(c.Request().Context(), auth.Current(c))
	if err != nil {
		return httperr.From(err, "Failed to load meal logs")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"mealLogs": meals})
}

func (h *Handler) Export(c echo.Context) error {
	data, name, err := h.svc.Export(c.Request().Context(), auth.Current(c))
	if err != nil {
		return httperr.From(err, "Failed to export health logs")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}
