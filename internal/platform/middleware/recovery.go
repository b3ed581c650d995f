package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery turns panics into 500 responses. Panics and 5xx errors are also
// sent to Sentry when a client has been initialised.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)

					logger.Error().
						Str("request_id", fmt.Sprintf("%v", c.Get("request_id"))).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(stack[:n])).
						Msg("panic recovered")

					capture(c, fmt.Errorf("panic: %v", r))
					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
				}
			}()

			err = next(c)
			if err != nil && isServerError(err) {
				capture(c, err)
			}
			return err
		}
	}
}

func isServerError(err error) bool {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code >= 500
	}
	return true
}

func capture(c echo.Context, err error) {
	hub := sentry.CurrentHub()
	if hub.Client() == nil {
		return
	}
	hub = hub.Clone()
	hub.Scope().SetRequest(c.Request())
	if rid, ok := c.Get("request_id").(string); ok {
		hub.Scope().SetTag("request_id", rid)
	}
	hub.CaptureException(err)
}
