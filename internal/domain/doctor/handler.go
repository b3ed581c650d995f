package doctor

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mediimate/gateway/internal/platform/auth"
	"github.com/mediimate/gateway/internal/platform/httperr"
	"github.com/mediimate/gateway/internal/platform/session"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the doctor sign-in routes on api and the patient
// routes on gated, a group that already requires a doctor past the terms
// gate.
func (h *Handler) RegisterRoutes(api *echo.Group, gated *echo.Group) {
	api.POST("/doctor/auth/otp/send", h.SendOTP)
	api.POST("/doctor/auth/otp/verify", h.VerifyOTP)
	api.POST("/doctor/register/otp/send", h.SendRegistrationOTP)
	api.POST("/doctor/register", h.Register)

	pending := api.Group("", auth.RequireRole(session.RoleDoctor))
	pending.POST("/doctor/auth/tnc", h.AcceptTnC)
	pending.POST("/doctor/auth/tnc/decline", h.DeclineTnC)

	gated.GET("/doctor/patients", h.ListPatients)
	gated.GET("/doctor/patients/:id/logs", h.PatientLogs)
}

func (h *Handler) SendOTP(c echo.Context) error {
	var req OTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.SendOTP(c.Request().Context(), req.Phone); err != nil {
		return httperr.From(err, "Failed to send OTP")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "OTP sent successfully"})
}

func (h *Handler) VerifyOTP(c echo.Context) error {
	var req OTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.VerifyOTP(c.Request().Context(), req)
	if err != nil {
		return httperr.From(err, "Invalid OTP")
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) AcceptTnC(c echo.Context) error {
	if err := h.svc.AcceptTnC(c.Request().Context(), auth.Current(c)); err != nil {
		return httperr.From(err, "Failed to accept terms")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Terms accepted", "requires_tnc": false})
}

func (h *Handler) DeclineTnC(c echo.Context) error {
	if err := h.svc.DeclineTnC(c.Request().Context(), auth.Current(c)); err != nil {
		return httperr.From(err, "Failed to sign out")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SendRegistrationOTP(c echo.Context) error {
	var req OTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.SendRegistrationOTP(c.Request().Context(), req.Phone); err != nil {
		return httperr.From(err, "Failed to send OTP")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "OTP sent successfully"})
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Register(c.Request().Context(), &req); err != nil {
		return httperr.From(err, "Invalid OTP.")
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"message":   "Registration successful!",
		"next_step": "login",
	})
}

func (h *Handler) ListPatients(c echo.Context) error {
	list, err := h.svc.Patients(c.Request().Context(), auth.Current(c), c.QueryParam("search"), c.QueryParam("status"))
	if err != nil {
		return httperr.From(err, "Failed to load patients")
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) PatientLogs(c echo.Context) error {
	logs, err := h.svc.PatientLogs(c.Request().Context(), auth.Current(c), c.Param("id"))
	if err != nil {
		return httperr.From(err, "Failed to load patient logs")
	}
	return c.JSON(http.StatusOK, logs)
}
