package shelter

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
)

// UpdateRequest is a staff mutation as received at the service boundary.
type UpdateRequest struct {
	ID               string
	Update           model.ShelterUpdate
	ObservedRevision int64
	Principal        string
}

// Coordinator validates staff mutations and commits them through the
// store.  It never clamps values and never retries: a conflict means
// another writer's change must be shown to this caller first.
type Coordinator struct {
	store *Store
	log   *zap.Logger
	rec   Recorder
}

// NewCoordinator returns a coordinator over store.  log and rec may be nil.
func NewCoordinator(store *Store, log *zap.Logger, rec Recorder) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Coordinator{store: store, log: log, rec: rec}
}

// Submit applies req.  Errors are ErrUnauthorized, ErrNotFound,
// *ValidationError, *ConflictError, or an infrastructure error from the
// persister.
func (c *Coordinator) Submit(ctx context.Context, req UpdateRequest) (model.Shelter, error) {
	rec, err := c.submit(ctx, req)
	result := outcome(err)
	c.rec.CommitResult(result)

	fields := []zap.Field{
		zap.String("id", req.ID),
		zap.Int64("observed_revision", req.ObservedRevision),
		zap.String("principal", req.Principal),
	}
	switch result {
	case "ok":
		c.log.Info("shelter updated", append(fields, zap.Int64("revision", rec.Revision), zap.Int("available_beds", rec.AvailableBeds))...)
	case "error":
		c.log.Error("shelter update failed", append(fields, zap.Error(err))...)
	default:
		c.log.Info("shelter update rejected", append(fields, zap.String("reason", result), zap.Error(err))...)
	}
	return rec, err
}

func (c *Coordinator) submit(ctx context.Context, req UpdateRequest) (model.Shelter, error) {
	principal := strings.TrimSpace(req.Principal)
	if principal == "" {
		return model.Shelter{}, ErrUnauthorized
	}
	if strings.TrimSpace(req.ID) == "" {
		return model.Shelter{}, ErrNotFound
	}
	if req.Update.Empty() {
		return model.Shelter{}, invalid("update", "contains no fields")
	}
	if req.ObservedRevision < 0 {
		return model.Shelter{}, invalid("observed_revision", "must not be negative")
	}
	if b := req.Update.AvailableBeds; b != nil && *b < 0 {
		return model.Shelter{}, invalid("available_beds", "must not be negative")
	}
	return c.store.Commit(ctx, req.ID, req.Update, req.ObservedRevision, principal)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidMutation):
		return "invalid"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
