// Package shelter is the synchronization core: the authoritative record
// store, the optimistic update path, change fan-out to subscribers and the
// read-only query gateway.
//
// Records live in memory and are optionally mirrored to a SQL backend
// through a Persister.  Each record has its own commit lock, so writers to
// different shelters never contend, and readers load an immutable
// snapshot pointer without taking any lock.
package shelter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/repository"
)

// Persister mirrors committed records to durable storage.  UpdateShelter
// must apply the row only when its stored revision equals
// expectedRevision and otherwise return repository.ErrConflict.
type Persister interface {
	ListShelters(ctx context.Context) ([]model.Shelter, error)
	GetShelter(ctx context.Context, id string) (model.Shelter, error)
	InsertShelter(ctx context.Context, s model.Shelter) error
	UpdateShelter(ctx context.Context, s model.Shelter, expectedRevision int64) error
}

// Emitter receives exactly one event per committed change.  Publish must
// not block on subscribers.
type Emitter interface {
	Publish(ev model.ChangeEvent)
}

type entry struct {
	mu  sync.Mutex // held for the whole commit of this record
	cur atomic.Pointer[model.Shelter]
}

func (e *entry) load() model.Shelter { return *e.cur.Load() }

// Store owns the shelter record set.  Commit is the only mutating entry
// point after creation.
type Store struct {
	persist Persister
	emit    Emitter
	clock   Clock
	log     *zap.Logger
	rec     Recorder

	mu       sync.RWMutex // guards records and reserved, not the records
	records  map[string]*entry
	reserved map[string]struct{} // ids being created
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock overrides the commit clock.
func WithClock(c Clock) StoreOption { return func(s *Store) { s.clock = c } }

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) StoreOption { return func(s *Store) { s.log = l } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) StoreOption { return func(s *Store) { s.rec = r } }

// NewStore returns an empty store.  persist may be nil for a purely
// in-memory store; emit may be nil when nobody listens.
func NewStore(persist Persister, emit Emitter, opts ...StoreOption) *Store {
	s := &Store{
		persist: persist,
		emit:    emit,
		clock:   RealClock{},
		log:     zap.NewNop(),
		rec:     nopRecorder{},
		records:  make(map[string]*entry),
		reserved: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load hydrates the store from the persister.  It must run before the
// store is shared; existing in-memory records with the same id are
// replaced.
func (s *Store) Load(ctx context.Context) (int, error) {
	if s.persist == nil {
		return 0, nil
	}
	list, err := s.persist.ListShelters(ctx)
	if err != nil {
		return 0, fmt.Errorf("load shelters: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range list {
		rec := list[i]
		e := &entry{}
		e.cur.Store(&rec)
		s.records[rec.ID] = e
	}
	s.log.Info("store hydrated", zap.Int("shelters", len(list)))
	return len(list), nil
}

// Create inserts a new record at revision 0 and emits its creation event.
// An empty id is replaced by a random UUID.
func (s *Store) Create(ctx context.Context, rec model.Shelter) (model.Shelter, error) {
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := validateNew(rec); err != nil {
		return model.Shelter{}, err
	}
	now := s.now()
	rec.Revision = 0
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = rec.CreatedAt
	}
	rec.CreatedAt = rec.CreatedAt.UTC().Truncate(time.Microsecond)
	rec.LastUpdated = rec.LastUpdated.UTC().Truncate(time.Microsecond)
	if rec.UpdatedBy == "" {
		rec.UpdatedBy = "system"
	}

	if !s.reserve(rec.ID) {
		return model.Shelter{}, invalid("id", "already exists")
	}
	if s.persist != nil {
		if err := s.persist.InsertShelter(ctx, rec); err != nil {
			s.release(rec.ID, nil)
			if errors.Is(err, repository.ErrDuplicate) {
				return model.Shelter{}, invalid("id", "already exists")
			}
			return model.Shelter{}, fmt.Errorf("insert shelter %s: %w", rec.ID, err)
		}
	}
	e := &entry{}
	e.cur.Store(&rec)
	e.mu.Lock()
	defer e.mu.Unlock()
	s.release(rec.ID, e)

	s.publish(rec)
	s.log.Info("shelter created", zap.String("id", rec.ID), zap.String("name", rec.Name))
	return rec, nil
}

// Get returns the current record.
func (s *Store) Get(id string) (model.Shelter, error) {
	e := s.lookup(id)
	if e == nil {
		return model.Shelter{}, ErrNotFound
	}
	return e.load(), nil
}

// ListAll returns every record ordered by name, ties broken by id.
func (s *Store) ListAll() []model.Shelter {
	s.mu.RLock()
	out := make([]model.Shelter, 0, len(s.records))
	for _, e := range s.records {
		out = append(out, e.load())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Commit applies upd to record id if its revision equals expectedRevision.
// On success the new record is published before Commit returns.  A stale
// revision fails with *ConflictError carrying the current record; an
// invariant violation fails with *ValidationError and changes nothing.
func (s *Store) Commit(ctx context.Context, id string, upd model.ShelterUpdate, expectedRevision int64, principal string) (model.Shelter, error) {
	e := s.lookup(id)
	if e == nil {
		return model.Shelter{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.load()
	if cur.Revision != expectedRevision {
		return model.Shelter{}, &ConflictError{Expected: expectedRevision, Current: cur}
	}
	next := upd.Apply(cur)
	if err := validateBeds(next); err != nil {
		return model.Shelter{}, err
	}
	now := s.now()
	if now.Before(cur.LastUpdated) {
		now = cur.LastUpdated
	}
	next.LastUpdated = now
	next.UpdatedBy = principal
	next.Revision = cur.Revision + 1

	if s.persist != nil {
		if err := s.persist.UpdateShelter(ctx, next, expectedRevision); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return model.Shelter{}, s.resync(ctx, e, expectedRevision)
			}
			return model.Shelter{}, fmt.Errorf("persist shelter %s: %w", id, err)
		}
	}
	e.cur.Store(&next)
	s.publish(next)
	s.log.Debug("shelter committed",
		zap.String("id", id),
		zap.Int64("revision", next.Revision),
		zap.String("principal", principal))
	return next, nil
}

// resync handles a backend row that moved underneath the in-memory copy,
// which only happens when something other than this process writes the
// table.  The backend row wins.  Caller holds e.mu.
func (s *Store) resync(ctx context.Context, e *entry, expected int64) error {
	cur := e.load()
	fresh, err := s.persist.GetShelter(ctx, cur.ID)
	if err != nil {
		return fmt.Errorf("reload shelter %s: %w", cur.ID, err)
	}
	if fresh.Revision <= cur.Revision {
		// Nothing newer to hand back; a Conflict here could never be resolved.
		return fmt.Errorf("persist shelter %s: backend rejected revision %d but holds %d", cur.ID, expected, fresh.Revision)
	}
	e.cur.Store(&fresh)
	s.publish(fresh)
	s.log.Warn("backend revision ahead of store",
		zap.String("id", fresh.ID),
		zap.Int64("revision", fresh.Revision))
	return &ConflictError{Expected: expected, Current: fresh}
}

// reserve claims id for a Create in progress so the insert can run without
// holding the map lock.
func (s *Store) reserve(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; ok {
		return false
	}
	if _, ok := s.reserved[id]; ok {
		return false
	}
	s.reserved[id] = struct{}{}
	return true
}

// release drops the reservation on id and, when e is set, publishes it in
// the map.
func (s *Store) release(id string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reserved, id)
	if e != nil {
		s.records[id] = e
	}
}

func (s *Store) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[id]
}

func (s *Store) publish(rec model.Shelter) {
	if s.emit != nil {
		s.emit.Publish(model.NewChangeEvent(rec))
	}
}

// now truncates to microseconds so in-memory timestamps match what the SQL
// backends round-trip.
func (s *Store) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

func validateBeds(rec model.Shelter) error {
	if rec.TotalBeds < 0 {
		return invalid("total_beds", "must not be negative")
	}
	if rec.AvailableBeds < 0 {
		return invalid("available_beds", "must not be negative")
	}
	if rec.AvailableBeds > rec.TotalBeds {
		return invalid("available_beds", fmt.Sprintf("must not exceed total_beds (%d)", rec.TotalBeds))
	}
	return nil
}

func validateNew(rec model.Shelter) error {
	if strings.TrimSpace(rec.Name) == "" {
		return invalid("name", "is required")
	}
	if math.IsNaN(rec.Latitude) || rec.Latitude < -90 || rec.Latitude > 90 {
		return invalid("latitude", "must be within [-90, 90]")
	}
	if math.IsNaN(rec.Longitude) || rec.Longitude < -180 || rec.Longitude > 180 {
		return invalid("longitude", "must be within [-180, 180]")
	}
	return validateBeds(rec)
}
