package middleware

import (
	"github.com/labstack/echo/v4"
)

// baseHeaders are set on every response. Responses carry health records,
// so nothing is cacheable.
var baseHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	{"Cache-Control", "no-store"},
}

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders returns middleware that sets security response headers.
// HSTS is only sent when hsts is true; local development runs over plain
// http and a pinned HSTS entry would break it.
func SecurityHeaders(hsts bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range baseHeaders {
				h.Set(kv[0], kv[1])
			}
			if hsts {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			if isStreamPath(c.Request().URL.Path) {
				// Proxies must not buffer the event stream.
				h.Set("X-Accel-Buffering", "no")
			}
			return next(c)
		}
	}
}
