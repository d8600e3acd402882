package middleware

// identity.go exposes the principal stored by JWTAuth to handlers and to the
// rate limiter.

import "github.com/labstack/echo/v4"

// Principal returns the authenticated principal, or "" when the request did
// not pass through JWTAuth.
func Principal(c echo.Context) string {
	if s, ok := c.Get(CtxPrincipal).(string); ok {
		return s
	}
	return ""
}

// Role returns the role claim of the authenticated principal, or "".
func Role(c echo.Context) string {
	if s, ok := c.Get(CtxRole).(string); ok {
		return s
	}
	return ""
}
