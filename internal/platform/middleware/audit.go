package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediimate/gateway/internal/platform/auth"
)

// AuditEntry records one access to health data through the gateway.
type AuditEntry struct {
	SessionID    string
	SubjectID    string
	Role         string
	ResourceType string
	ResourceID   string
	Action       string // read, create, update, delete
	IPAddress    string
	UserAgent    string
	Path         string
	Method       string
	Timestamp    time.Time
	RequestID    string
	StatusCode   int
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// auditedResources are the first path segments under /api/v1 (or
// /api/v1/doctor) that return or change health records.
var auditedResources = map[string]bool{
	"dashboard":     true,
	"meal-logs":     true,
	"health-logs":   true,
	"prescriptions": true,
	"reports":       true,
	"patients":      true,
	"vault":         true,
}

// Audit returns middleware that logs every access to health data with the
// session that made it. Entries go to the structured log and, when given,
// to recorders[0].
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			resource := extractResourceType(path)
			if !auditedResources[resource] {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:    time.Now().UTC(),
				Path:         path,
				Method:       req.Method,
				IPAddress:    c.RealIP(),
				UserAgent:    req.UserAgent(),
				StatusCode:   c.Response().Status,
				Action:       httpMethodToAction(req.Method),
				ResourceType: resource,
				ResourceID:   c.Param("id"),
			}
			if he, ok := err.(*echo.HTTPError); ok {
				entry.StatusCode = he.Code
			}
			if s := auth.Current(c); s != nil {
				entry.SessionID = s.ID
				entry.SubjectID = s.SubjectID
				entry.Role = string(s.Role)
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "phi_audit").
				Str("request_id", entry.RequestID).
				Str("session_id", entry.SessionID).
				Str("subject_id", entry.SubjectID).
				Str("role", entry.Role).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResourceType returns the resource segment of an API path:
//   - /api/v1/reports/123           -> reports
//   - /api/v1/doctor/patients/9/logs -> patients
//   - /api/v1/doctor/vault/search   -> vault
func extractResourceType(path string) string {
	if !strings.HasPrefix(path, "/api/v1/") {
		return ""
	}
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if segments[0] == "doctor" {
		segments = segments[1:]
	}
	if len(segments) > 0 {
		return segments[0]
	}
	return ""
}
