package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/mediimate/gateway/internal/platform/session"
)

func contextWithSession(s *session.Session) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if s != nil {
		c.Set(ContextKey, s)
	}
	return c, rec
}

func TestRequireRole_Allowed(t *testing.T) {
	c, rec := contextWithSession(&session.Session{Role: session.RoleDoctor})
	if err := RequireRole(session.RoleDoctor)(okHandler)(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c, _ := contextWithSession(&session.Session{Role: session.RolePatient})
	err := RequireRole(session.RoleDoctor)(okHandler)(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
	if he.Message != "required role: doctor" {
		t.Errorf("unexpected message %v", he.Message)
	}
}

func TestRequireRole_NoSession(t *testing.T) {
	c, _ := contextWithSession(nil)
	err := RequireRole(session.RolePatient)(okHandler)(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestRequireTnC(t *testing.T) {
	c, _ := contextWithSession(&session.Session{Role: session.RoleDoctor})
	err := RequireTnC()(okHandler)(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden || he.Message != "terms not accepted" {
		t.Fatalf("expected 403 terms not accepted, got %v", err)
	}

	c, rec := contextWithSession(&session.Session{Role: session.RoleDoctor, TnCAccepted: true})
	if err := RequireTnC()(okHandler)(c); err != nil {
		t.Fatalf("expected pass, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuthSkipper(t *testing.T) {
	for path, want := range map[string]bool{
		"/health":                 true,
		"/api/v1/auth/login":      true,
		"/api/v1/doctor/register": true,
		"/api/v1/auth/tnc":        false,
		"/api/v1/doctor/vault":    false,
		"/ws":                     false,
	} {
		if got := IsPublicPath(path); got != want {
			t.Errorf("IsPublicPath(%q) = %v, want %v", path, got, want)
		}
	}
}
