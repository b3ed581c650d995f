// Package httperr maps service errors onto echo HTTP errors.
package httperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mediimate/gateway/internal/platform/backend"
	"github.com/mediimate/gateway/internal/platform/session"
	"github.com/mediimate/gateway/internal/platform/validate"
)

// Error is a failure with a fixed response status. Fields are merged into
// the JSON body next to "message".
type Error struct {
	Status  int
	Message string
	Fields  map[string]any
}

func (e *Error) Error() string { return e.Message }

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// With returns a copy of e carrying an extra response field.
func (e *Error) With(key string, value any) *Error {
	out := &Error{Status: e.Status, Message: e.Message, Fields: make(map[string]any, len(e.Fields)+1)}
	for k, v := range e.Fields {
		out.Fields[k] = v
	}
	out.Fields[key] = value
	return out
}

// From translates err. fallback is shown when the backend gave no message.
func From(err error, fallback string) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var e *Error
	if errors.As(err, &e) {
		if len(e.Fields) == 0 {
			return echo.NewHTTPError(e.Status, e.Message)
		}
		body := map[string]any{"message": e.Message}
		for k, v := range e.Fields {
			body[k] = v
		}
		return echo.NewHTTPError(e.Status, body)
	}

	var ve *validate.Error
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Message)
	}

	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrExpired) {
		return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
	}

	return backend.ToHTTPError(err, fallback)
}
