package records

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mediimate/gateway/internal/platform/auth"
	"github.com/mediimate/gateway/internal/platform/httperr"
	"github.com/mediimate/gateway/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts prescription and report routes on a group that
// already requires a patient session past the terms gate.
func (h *Handler) RegisterRoutes(patient *echo.Group) {
	patient.GET("/prescriptions", h.ListPrescriptions)
	patient.POST("/prescriptions", h.UploadPrescription)
	patient.GET("/prescriptions/:id", h.GetPrescription)
	patient.DELETE("/prescriptions/:id", h.DeletePrescription)

	patient.GET("/reports", h.ListReports)
	patient.POST("/reports", h.UploadReport)
	patient.GET("/reports/analytics", h.Analytics)
	patient.GET("/reports/:id", h.GetReport)
	patient.DELETE("/reports/:id", h.DeleteReport)
	patient.POST("/reports/:id/reprocess", h.ReprocessReport)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	list, err := h.svc.ListPrescriptions(c.Request().Context(), auth.Current(c), c.QueryParam("search"), pagination.FromContext(c))
	if err != nil {
		return httperr.From(err, "Failed to fetch prescriptions")
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	rx, err := h.svc.Prescription(c.Request().Context(), auth.Current(c), c.Param("id"))
	if err != nil {
		return httperr.From(err, "Failed to fetch prescription")
	}
	return c.JSON(http.StatusOK, rx)
}

func (h *Handler) UploadPrescription(c echo.Context) error {
	f, closeFn, err := formFile(c, "prescriptionFile")
	if err != nil {
		return err
	}
	defer closeFn()

	rx, err := h.svc.UploadPrescription(c.Request().Context(), auth.Current(c), f, c.FormValue("title"), c.FormValue("notes"))
	if err != nil {
		return httperr.From(err, "Failed to upload prescription")
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":      "Prescription uploaded successfully",
		"prescription": rx,
	})
}

func (h *Handler) DeletePrescription(c echo.Context) error {
	cleared, err := h.svc.DeletePrescription(c.Request().Context(), auth.Current(c), c.Param("id"))
	if err != nil {
		return httperr.From(err, "Failed to delete prescription")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":           "Prescription deleted",
		"selection_cleared": cleared,
	})
}

func (h *Handler) ListReports(c echo.Context) error {
	list, err := h.svc.ListReports(c.Request().Context(), auth.Current(c), c.QueryParam("search"), pagination.FromContext(c))
	if err != nil {
		return httperr.From(err, "Failed to fetch reports")
	}
	return c.JSON(http.StatusOK, list)
}

func (h *Handler) GetReport(c echo.Context) error {
	rep, err := h.svc.Report(c.Request().Context(), auth.Current(c), c.Param("id"))
	if err != nil {
		return httperr.From(err, "Failed to fetch report")
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) UploadReport(c echo.Context) error {
	f, closeFn, err := formFile(c, "reportFile")
	if err != nil {
		return err
	}
	defer closeFn()

	rep, err := h.svc.UploadReport(c.Request().Context(), auth.Current(c), f,
		c.FormValue("reportType"), c.FormValue("title"), c.FormValue("notes"))
	if err != nil {
		return httperr.From(err, "Failed to upload report")
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Report uploaded successfully",
		"report":  rep,
	})
}

func (h *Handler) DeleteReport(c echo.Context) error {
	cleared, err := h.svc.DeleteReport(c.Request().Context(), auth.Current(c), c.Param("id"))
	if err != nil {
		return httperr.From(err, "Failed to delete report")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":           "Report deleted",
		"selection_cleared": cleared,
	})
}

func (h *Handler) ReprocessReport(c echo.Context) error {
	if err := h.svc.ReprocessReport(c.Request().Context(), auth.Current(c), c.Param("id")); err != nil {
		return httperr.From(err, "Failed to reprocess report")
	}
	return c.JSON(http.StatusAccepted, map[string]string{"message": "Report queued for reprocessing"})
}

func (h *Handler) Analytics(c echo.Context) error {
	data, err := h.svc.Analytics(c.Request().Context(), auth.Current(c))
	if err != nil {
		return httperr.From(err, "Failed to fetch analytics")
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	return c.JSONBlob(http.StatusOK, data)
}

// formFile opens the named multipart file. A missing file is not an error
// here; the service decides whether the field is required.
func formFile(c echo.Context, field string) (FileUpload, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return FileUpload{}, func() {}, nil
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return FileUpload{}, nil, he
		}
		return FileUpload{}, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	file, err := fh.Open()
	if err != nil {
		return FileUpload{}, nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	return FileUpload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        file,
	}, func() { file.Close() }, nil
}
