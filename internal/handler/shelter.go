// Package handler exposes the HTTP surface of the shelter service: public
// snapshot and detail reads, the live change stream, and the staff update
// endpoint.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/middleware"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/shelter"
)

// ShelterHandler serves the shelter routes.  Reads go through the Gateway,
// writes through the Coordinator.
type ShelterHandler struct {
	Gateway     *shelter.Gateway
	Coordinator *shelter.Coordinator
	Log         *zap.Logger
	KeepAlive   time.Duration // interval between SSE keepalive comments
}

// NewShelterHandler wires a handler and panics if a dependency is missing.
func NewShelterHandler(g *shelter.Gateway, co *shelter.Coordinator, log *zap.Logger, keepAlive time.Duration) *ShelterHandler {
	if g == nil || co == nil {
		panic("nil dependency passed to NewShelterHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &ShelterHandler{Gateway: g, Coordinator: co, Log: log, KeepAlive: keepAlive}
}

// shelterView is a record as served over HTTP, with its derived status.
type shelterView struct {
	model.Shelter
	Status model.Status `json:"status"`
}

func newShelterView(s model.Shelter) shelterView {
	return shelterView{Shelter: s, Status: s.Status()}
}

// List returns the full snapshot ordered by name, then id.
func (h *ShelterHandler) List(c echo.Context) error {
	list, err := h.Gateway.SnapshotAll(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	out := make([]shelterView, 0, len(list))
	for _, s := range list {
		out = append(out, newShelterView(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out, "count": len(out)})
}

// Get returns one record or 404.
func (h *ShelterHandler) Get(c echo.Context) error {
	s, err := h.Gateway.SnapshotOne(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, newShelterView(s))
}

// Summary returns dashboard totals across every shelter.
func (h *ShelterHandler) Summary(c echo.Context) error {
	sum, err := h.Gateway.Summary(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// updateRequest is the PATCH body.  ObservedRevision is a pointer so that a
// missing value is told apart from revision 0.
type updateRequest struct {
	AvailableBeds    *int   `json:"available_beds"`
	AllowsPets       *bool  `json:"allows_pets"`
	RequiresSobriety *bool  `json:"requires_sobriety"`
	AcceptsFamilies  *bool  `json:"accepts_families"`
	ObservedRevision *int64 `json:"observed_revision"`
}

// Update applies a staff edit against the revision the client last saw.
// Unknown fields are rejected, which also keeps immutable fields such as
// total_beds out of reach.
func (h *ShelterHandler) Update(c echo.Context) error {
	principal := middleware.Principal(c)
	if principal == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req updateRequest
	dec := json.NewDecoder(io.LimitReader(c.Request().Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		msg := "invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "empty request body"
		} else if strings.HasPrefix(err.Error(), "json: unknown field") {
			msg = strings.TrimPrefix(err.Error(), "json: ")
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	if req.ObservedRevision == nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "observed_revision is required", "field": "observed_revision"})
	}

	rec, err := h.Coordinator.Submit(c.Request().Context(), shelter.UpdateRequest{
		ID: c.Param("id"),
		Update: model.ShelterUpdate{
			AvailableBeds:    req.AvailableBeds,
			AllowsPets:       req.AllowsPets,
			RequiresSobriety: req.RequiresSobriety,
			AcceptsFamilies:  req.AcceptsFamilies,
		},
		ObservedRevision: *req.ObservedRevision,
		Principal:        principal,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, newShelterView(rec))
}

// Me returns the principal that staff writes will be attributed to.
func Me(c echo.Context) error {
	p := middleware.Principal(c)
	if p == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{"principal": p, "role": middleware.Role(c)})
}
