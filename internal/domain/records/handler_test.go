package records

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/mediimate/gateway/internal/platform/auth"
)

func multipartRequest(t *testing.T, field, name, contentType, body string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write([]byte(body))
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func TestHandler_UploadReport(t *testing.T) {
	svc, mb, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	req := multipartRequest(t, "reportFile", "lipid.pdf", "application/pdf", "%PDF-1.4", map[string]string{
		"reportType": "Blood Test",
		"title":      "Lipid panel",
	})
	c := e.NewContext(req, rec)
	c.Set(auth.ContextKey, patient)

	if err := h.UploadReport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if mb.uploadBody != "%PDF-1.4" || mb.upload.FileName != "lipid.pdf" || mb.upload.Fields["title"] != "Lipid panel" {
		t.Errorf("unexpected upload %+v body=%q", mb.upload, mb.uploadBody)
	}
}

func TestHandler_UploadReport_MissingFile(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	c := e.NewContext(multipartRequest(t, "", "", "", "", map[string]string{"reportType": "MRI"}), httptest.NewRecorder())
	c.Set(auth.ContextKey, patient)

	err := h.UploadReport(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest || he.Message != "Please select a file and report type." {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestHandler_UploadPrescription_WrongType(t *testing.T) {
	svc, mb, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	c := e.NewContext(multipartRequest(t, "prescriptionFile", "a.gif", "image/gif", "GIF89a", nil), httptest.NewRecorder())
	c.Set(auth.ContextKey, patient)

	err := h.UploadPrescription(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if len(mb.calls) != 0 {
		t.Errorf("backend called: %v", mb.calls)
	}
}

func TestHandler_ListPrescriptions(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=2&page=1", nil), rec)
	c.Set(auth.ContextKey, patient)
	if err := h.ListPrescriptions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		Data    []map[string]any `json:"data"`
		Total   int              `json:"total"`
		HasMore bool             `json:"has_more"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Data) != 2 || body.Total != 3 || !body.HasMore {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_DeleteReport(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("r2")
	c.Set(auth.ContextKey, patient)
	if err := h.GetReport(c); err != nil {
		t.Fatalf("get: %v", err)
	}

	rec := httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues("r2")
	c.Set(auth.ContextKey, patient)
	if err := h.DeleteReport(c); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["selection_cleared"] != true {
		t.Errorf("expected selection cleared, got %v", body)
	}
}

func TestHandler_Analytics(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.Set(auth.ContextKey, patient)
	if err := h.Analytics(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body.String() != `{"totalReports":2}` {
		t.Errorf("expected passthrough, got %s", rec.Body.String())
	}
}
