package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths that bypass session authentication: health
// checks and the sign-in entry points that create sessions.
var publicPaths = map[string]bool{
	"/health":                              true,
	"/health/db":                           true,
	"/api/v1/auth/register":                true,
	"/api/v1/auth/login":                   true,
	"/api/v1/auth/otp/send":                true,
	"/api/v1/auth/otp/verify":              true,
	"/api/v1/auth/otp-registration/send":   true,
	"/api/v1/auth/otp-registration/verify": true,
	"/api/v1/doctor/auth/otp/send":         true,
	"/api/v1/doctor/auth/otp/verify":       true,
	"/api/v1/doctor/register/otp/send":     true,
	"/api/v1/doctor/register":              true,
}

// AuthSkipper returns true for requests whose route should skip
// authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given path is a public endpoint.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
