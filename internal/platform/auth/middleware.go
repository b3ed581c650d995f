package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mediimate/gateway/internal/platform/session"
)

// ContextKey is the echo.Context key the resolved session is stored under.
const ContextKey = "session"

// Resolver turns a client token into a live session.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
}

// SessionMiddleware authenticates the bearer session token and places the
// session on both the echo context and the request context.
func SessionMiddleware(resolver Resolver, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			token := extractToken(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing session token")
			}

			s, err := resolver.Resolve(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, session.ErrExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid session")
			}

			c.Set(ContextKey, s)
			c.SetRequest(c.Request().WithContext(session.WithSession(c.Request().Context(), s)))
			return next(c)
		}
	}
}

// extractToken reads the Authorization header. Browsers cannot set headers
// on WebSocket or EventSource requests, so the push endpoints also accept
// an access_token query parameter.
func extractToken(c echo.Context) string {
	h := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if isStreamPath(c.Request().URL.Path) {
		return c.QueryParam("access_token")
	}
	return ""
}

func isStreamPath(path string) bool {
	return path == "/ws" || path == "/api/v1/events"
}

// Current returns the session placed by SessionMiddleware, or nil.
func Current(c echo.Context) *session.Session {
	if s, ok := c.Get(ContextKey).(*session.Session); ok {
		return s
	}
	return session.FromContext(c.Request().Context())
}
