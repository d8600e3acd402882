package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"net/http" // status codes
	"time"

	"github.com/labstack/echo/v4" // web framework

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/shelter"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health is the liveness probe used by load balancers.  It returns a plain
// "ok"; with ?verbose=1 it reports record and subscriber counts and, when
// db is set, whether the backend answers.  Liveness never depends on the
// backend: reads are served from memory even while it is down.
func Health(store *shelter.Store, notifier *shelter.Notifier, db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.QueryParam("verbose") != "1" {
			return c.String(http.StatusOK, "ok")
		}
		out := echo.Map{"status": "ok"}
		if store != nil {
			out["shelters"] = store.Len()
		}
		if notifier != nil {
			out["subscribers"] = notifier.Len()
		}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				out["database"] = "unreachable"
			} else {
				out["database"] = "ok"
			}
		}
		return c.JSON(http.StatusOK, out)
	}
}
