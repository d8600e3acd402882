package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns a middleware that admits only principals whose role
// claim matches one of roles, compared case-insensitively.  With no roles
// configured every authenticated principal is admitted.  It must run after
// JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		if r = strings.ToUpper(strings.TrimSpace(r)); r != "" {
			allowed[r] = true
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(allowed) == 0 {
				return next(c)
			}
			if !allowed[strings.ToUpper(Role(c))] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
