package middleware // middleware holds the HTTP middleware shared by the shelter routes

import (
	"net/http" // HTTP status codes for responses
	"strings"  // prefix checking and trimming

	"github.com/golang-jwt/jwt/v5" // parses and validates staff access tokens
	"github.com/labstack/echo/v4"  // middleware chaining and request context
)

// Context keys populated by JWTAuth.
const (
	CtxPrincipal = "principal"
	CtxRole      = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the authenticated principal and role in the request context.  The
// principal is the token's "email" claim, falling back to "sub"; it is what
// ends up in a shelter's updated_by field.  Tokens are issued by an external
// identity provider sharing the HS256 secret.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			// Only HMAC tokens signed with our secret are accepted; exp is
			// checked by the parser when present.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			principal := claimString(claims, "email")
			if principal == "" {
				principal = claimString(claims, "sub")
			}
			if principal == "" {
				// A token that names nobody cannot attribute an update.
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has no principal"})
			}
			c.Set(CtxPrincipal, principal)
			c.Set(CtxRole, claimString(claims, "role"))
			return next(c)
		}
	}
}

func claimString(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return strings.TrimSpace(v)
}
