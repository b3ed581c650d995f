package account

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Sign-in entry points are public (see auth.AuthSkipper).
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/otp/send", h.SendOTP)
	api.POST("/auth/otp/verify", h.VerifyOTP)
	api.POST("/auth/otp-registration/send", h.SendRegistrationOTP)
	api.POST("/auth/otp-registration/verify", h.VerifyRegistrationOTP)

	// Any signed-in role may log out.
	api.POST("/auth/logout", h.Logout)

	patient := api.Group("", auth.RequireRole(session.RolePatient))
	patient.POST("/auth/tnc", h.AcceptTnC)

	gated := patient.Group("", auth.RequireTnC())
	gated.GET("/profile", h.GetProfile)
	gated.PUT("/profile", h.UpdateProfile)
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.Register(c.Request().Context(), &req)
	if err != nil {
		return httperr.From(err, "Registration failed")
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return httperr.From(err, "Login failed")
	}
	return c.JSON(http.StatusOK, res)
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

func (h *Handler) VerifyRegistrationOTP(c echo.Context) error {
	var req OTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.VerifyRegistrationOTP(c.Request().Context(), req)
	if err != nil {
		return httperr.From(err, "Invalid OTP")
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) AcceptTnC(c echo.Context) error {
	s := auth.Current(c)
	if err := h.svc.AcceptTnC(c.Request().Context(), s); err != nil {
		return httperr.From(err, "Failed to accept terms")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Terms accepted", "requires_tnc": false})
}

func (h *Handler) GetProfile(c echo.Context) error {
	user, err := h.svc.Profile(c.Request().Context(), auth.Current(c))
	if err != nil {
		return httperr.From(err, "Failed to load profile")
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	user, err := h.svc.UpdateProfile(c.Request().Context(), auth.Current(c), &req)
	if err != nil {
		return httperr.From(err, "Failed to update profile")
	}
	return c.JSON(http.StatusOK, user)
}

func (h *Handler) Logout(c echo.Context) error {
	s := auth.Current(c)
	if s == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if err := h.svc.Logout(c.Request().Context(), s); err != nil {
		return httperr.From(err, "Logout failed")
	}
	return c.NoContent(http.StatusNoContent)
}
