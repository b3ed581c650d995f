package vault

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mediimate/gateway/internal/platform/auth"
	"github.com/mediimate/gateway/internal/platform/httperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the vault on a group that already requires a doctor
// session past the terms gate.
func (h *Handler) RegisterRoutes(doctor *echo.Group) {
	g := doctor.Group("/doctor/vault")
	g.GET("", h.View)
	g.POST("/search", h.Search)
	g.POST("/select", h.Select)
	g.POST("/close", h.Close)
	g.GET("/records/:id", h.Record)

	g.POST("/prescriptions/:id/edit", h.BeginEdit)
	g.PATCH("/edit", h.EditMedication)
	g.POST("/edit/medications", h.AddMedication)
	g.DELETE("/edit/medications/:index", h.RemoveMedication)
	g.DELETE("/edit", h.CancelEdit)
	g.PUT("/edit", h.Save)
}

func (h *Handler) Search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := h.svc.Search(c.Request().Context(), auth.Current(c), req.MPIN, c.RealIP())
	if err != nil {
		return httperr.From(err, "Failed to find patients with this MPIN")
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Select(c echo.Context) error {
	var req SelectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := h.svc.Select(c.Request().Context(), auth.Current(c), req.PatientID, c.RealIP())
	if err != nil {
		return httperr.From(err, "Failed to access medical records")
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) View(c echo.Context) error {
	v, err := h.svc.View(auth.Current(c), c.QueryParam("tab"))
	if err != nil {
		return httperr.From(err, "Failed to load vault")
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Record(c echo.Context) error {
	rec, err := h.svc.Record(auth.Current(c), c.Param("id"))
	if err != nil {
		return httperr.From(err, "Failed to load record")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Close(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Close(auth.Current(c)))
}

func (h *Handler) BeginEdit(c echo.Context) error {
	return h.respond(c, func() (*View, error) { return h.svc.BeginEdit(auth.Current(c), c.Param("id")) })
}

func (h *Handler) EditMedication(c echo.Context) error {
	var req EditRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return h.respond(c, func() (*View, error) { return h.svc.EditMedication(auth.Current(c), req) })
}

func (h *Handler) AddMedication(c echo.Context) error {
	return h.respond(c, func() (*View, error) { return h.svc.AddMedication(auth.Current(c)) })
}

func (h *Handler) RemoveMedication(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "index must be a number")
	}
	return h.respond(c, func() (*View, error) { return h.svc.RemoveMedication(auth.Current(c), index) })
}

func (h *Handler) CancelEdit(c echo.Context) error {
	return h.respond(c, func() (*View, error) { return h.svc.CancelEdit(auth.Current(c)) })
}

func (h *Handler) Save(c echo.Context) error {
	v, err := h.svc.Save(c.Request().Context(), auth.Current(c), c.RealIP())
	if err != nil {
		return httperr.From(err, "Failed to update prescription")
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) respond(c echo.Context, fn func() (*View, error)) error {
	v, err := fn()
	if err != nil {
		return httperr.From(err, "Failed to update edit")
	}
	return c.JSON(http.StatusOK, v)
}
