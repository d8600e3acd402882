package shelter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/repository"
)

// TestMain ensures no subscription or commit goroutines outlive the tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stepClock advances by one second on every read.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// fixedClock always reports the same instant.
type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// countingRecorder tallies recorder calls for assertions.
type countingRecorder struct {
	mu       sync.Mutex
	results  map[string]int
	overruns int
	subs     int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{results: make(map[string]int)}
}

func (r *countingRecorder) CommitResult(res string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[res]++
}

func (r *countingRecorder) Subscribers(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = n
}

func (r *countingRecorder) Overrun() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overruns++
}

func (r *countingRecorder) result(res string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[res]
}

// s1 is the reference shelter: 20 beds, 5 free, at revision 3.
func s1() model.Shelter {
	return model.Shelter{
		ID:            "S1",
		Name:          "Harbor House",
		Address:       "12 Harbor St",
		Latitude:      21.3069,
		Longitude:     -157.8583,
		TotalBeds:     20,
		AvailableBeds: 5,
		Revision:      3,
		LastUpdated:   time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedBy:     "seed",
	}
}

// memPersister is a Persister backed by a map, used to seed records at a
// chosen revision and to simulate a backend that moved on.
type memPersister struct {
	mu   sync.Mutex
	rows map[string]model.Shelter
	fail error
}

func newMemPersister(rows ...model.Shelter) *memPersister {
	p := &memPersister{rows: make(map[string]model.Shelter)}
	for _, r := range rows {
		p.rows[r.ID] = r
	}
	return p
}

func (p *memPersister) ListShelters(context.Context) ([]model.Shelter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Shelter, 0, len(p.rows))
	for _, r := range p.rows {
		out = append(out, r)
	}
	return out, nil
}

func (p *memPersister) GetShelter(_ context.Context, id string) (model.Shelter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rows[id], nil
}

func (p *memPersister) InsertShelter(_ context.Context, s model.Shelter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.rows[s.ID] = s
	return nil
}

func (p *memPersister) UpdateShelter(_ context.Context, s model.Shelter, expected int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	cur := p.rows[s.ID]
	if cur.Revision != expected {
		return repository.ErrConflict
	}
	p.rows[s.ID] = s
	return nil
}

// newLoadedStore returns a store hydrated with recs and wired to n.
func newLoadedStore(t *testing.T, n *Notifier, recs ...model.Shelter) (*Store, *memPersister) {
	t.Helper()
	p := newMemPersister(recs...)
	var emit Emitter
	if n != nil {
		emit = n
	}
	st := NewStore(p, emit, WithClock(newStepClock()))
	_, err := st.Load(context.Background())
	require.NoError(t, err)
	return st, p
}

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }
