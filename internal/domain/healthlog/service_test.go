package healthlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/labstack/echo/v4"

	"github.com/mediimate/gateway/internal/platform/auth"
	"github.com/mediimate/gateway/internal/platform/backend"
	"github.com/mediimate/gateway/internal/platform/session"
)

type mockBackend struct {
	phone string
	token string
	logs  *backend.HealthLogs
	err   error
}

func (m *mockBackend) HealthLogs(_ context.Context, token, phone string) (*backend.HealthLogs, error) {
	m.token, m.phone = token, phone
	return m.logs, m.err
}

type staticTokens struct{}

func (staticTokens) BackendToken(*session.Session) (string, error) { return "backend-token", nil }

func newTestService() (*Service, *mockBackend) {
	mb := &mockBackend{logs: sampleLogs()}
	svc := NewService(mb, staticTokens{})
	svc.now = func() time.Time { return time.Date(2025, 11, 11, 8, 0, 0, 0, time.UTC) }
	return svc, mb
}

var patient = &session.Session{ID: "s1", Role: session.RolePatient, SubjectID: "u1", Phone: "+919876543210", TnCAccepted: true}

func TestService_DashboardUsesSessionPhone(t *testing.T) {
	svc, mb := newTestService()

	d, err := svc.Dashboard(context.Background(), patient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mb.phone != "+919876543210" || mb.token != "backend-token" {
		t.Errorf("unexpected backend call %q %q", mb.phone, mb.token)
	}
	if d.MealCount != 3 || d.VitalCount != 7 {
		t.Errorf("unexpected counts %+v", d)
	}
}

func TestService_BackendError(t *testing.T) {
	svc, mb := newTestService()
	mb.err = &backend.APIError{Status: 500}

	_, err := svc.MealLogs(context.Background(), patient)
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestService_NilLogs(t *testing.T) {
	svc, mb := newTestService()
	mb.logs = nil

	meals, err := svc.MealLogs(context.Background(), patient)
	if err != nil || meals == nil || len(meals) != 0 {
		t.Fatalf("expected empty list, got %v %v", meals, err)
	}
}

func TestWorkbook(t *testing.T) {
	data, err := Workbook(sampleLogs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}

	if got := wb.GetCellValue(SheetMeals, "A1"); got != "Date" {
		t.Errorf("expected meals header, got %q", got)
	}
	if got := wb.GetCellValue(SheetMeals, "C2"); got != "lunch" {
		t.Errorf("expected newest meal first, got %q", got)
	}
	if got := wb.GetCellValue(SheetVitals, "C2"); got != TypeFood {
		t.Errorf("expected newest vital first, got %q", got)
	}
	if got := wb.GetCellValue(SheetVitals, "H2"); got != "450" {
		t.Errorf("expected calories 450, got %q", got)
	}
	if wb.GetSheetIndex("Sheet1") != 0 {
		t.Error("expected default sheet removed")
	}
}

func TestHandler_Export(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/health-logs/export", nil), rec)
	c.Set(auth.ContextKey, patient)

	if err := h.Export(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != xlsxContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "health-logs-2025-11-11.xlsx") {
		t.Errorf("unexpected disposition %q", cd)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected workbook body")
	}
}

func TestHandler_Dashboard(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil), rec)
	c.Set(auth.ContextKey, patient)

	if err := h.Dashboard(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]json.RawMessage
	json.Unmarshal(rec.Body.Bytes(), &body)
	for _, key := range []string{"caloriesData", "bpData", "weightData", "mealCount"} {
		if _, ok := body[key]; !ok {
			t.Errorf("missing %s in %s", key, rec.Body.String())
		}
	}
}
