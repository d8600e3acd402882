package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/shelter"
)

// writeError maps core errors onto HTTP responses.  Every body uses the
// {"error": ...} shape; conflicts add the current record so the client can
// redo its edit without another round trip.
func writeError(c echo.Context, err error) error {
	var ce *shelter.ConflictError
	var ve *shelter.ValidationError
	switch {
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   "revision conflict",
			"current": newShelterView(ce.Current),
		})
	case errors.As(err, &ve):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error": ve.Reason,
			"field": ve.Field,
		})
	case errors.Is(err, shelter.ErrInvalidMutation):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, shelter.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "shelter not found"})
	case errors.Is(err, shelter.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads this body.
		return c.NoContent(statusClientClosed)
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// statusClientClosed is nginx's non-standard code for an aborted request.
const statusClientClosed = 499
