package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIError is a non-2xx response from the clinical backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// parseAPIError reads the response body and extracts the backend's error
// text from the "error" field, then "message".
func parseAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(data, &body) != nil {
		return apiErr
	}
	var s string
	if len(body.Error) > 0 && json.Unmarshal(body.Error, &s) == nil && s != "" {
		apiErr.Message = s
		return apiErr
	}
	apiErr.Message = body.Message
	return apiErr
}

// StatusOf returns the backend status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// MessageOf returns the backend's error text, or fallback when the backend
// did not supply one (or the failure never reached the backend).
func MessageOf(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// ToHTTPError maps a backend failure onto the gateway's response. 4xx
// statuses pass through; backend 5xx and transport failures become 502 and
// deadline expiry becomes 504.
func ToHTTPError(err error, fallback string) *echo.HTTPError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		status := apiErr.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		return echo.NewHTTPError(status, MessageOf(err, fallback))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return echo.NewHTTPError(http.StatusGatewayTimeout, fallback)
	}
	return echo.NewHTTPError(http.StatusBadGateway, fallback)
}
