package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/handler"    // shelter, stream and health handlers
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/middleware" // JWT principal extraction and role gate
)

// RegisterRoutes registers operational routes: the health probe and, when
// a handler is given, the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc, metrics http.Handler) {
	e.GET("/healthz", health)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterPublic registers the unauthenticated read endpoints.  Static
// segments such as /summary and /stream win over the :id parameter.
func RegisterPublic(e *echo.Echo, h *handler.ShelterHandler) {
	g := e.Group("/v1/shelters")
	g.GET("", h.List)
	g.GET("/summary", h.Summary)
	g.GET("/stream", h.Stream)
	g.GET("/:id", h.Get)
}

// StaffOptions configures the authenticated routes.
type StaffOptions struct {
	JWTSecret string
	Roles     []string            // empty admits any authenticated principal
	RateLimit echo.MiddlewareFunc // applied to writes after authentication; may be nil
}

// RegisterStaff registers the authenticated endpoints.  JWTAuth runs first
// so the rate limiter can key its buckets by principal.
func RegisterStaff(e *echo.Echo, h *handler.ShelterHandler, opts StaffOptions) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(opts.JWTSecret))
	auth.Use(middleware.RequireRole(opts.Roles...))
	auth.GET("/me", handler.Me)

	writes := []echo.MiddlewareFunc{}
	if opts.RateLimit != nil {
		writes = append(writes, opts.RateLimit)
	}
	auth.PATCH("/shelters/:id", h.Update, writes...)
}
