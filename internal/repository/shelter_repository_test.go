package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/database"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
)

// newTestRepo creates an in-memory SQLite repository for testing.
func newTestRepo(t *testing.T) *ShelterRepo {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.SQLite))
	return NewShelterRepo(db)
}

func sampleShelter(id, name string) model.Shelter {
	ts := time.Date(2026, 3, 1, 12, 30, 0, 123456000, time.UTC)
	return model.Shelter{
		ID:              id,
		Name:            name,
		Address:         "12 Harbor St",
		Latitude:        21.3069,
		Longitude:       -157.8583,
		TotalBeds:       20,
		AvailableBeds:   5,
		AcceptsFamilies: true,
		ContactPhone:    "808-555-0100",
		ContactEmail:    "desk@example.org",
		LastUpdated:     ts,
		UpdatedBy:       "system",
		CreatedAt:       ts,
		Revision:        3,
	}
}

func TestShelterRepo_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	want := sampleShelter("s1", "Harbor House")

	require.NoError(t, repo.InsertShelter(ctx, want))

	got, err := repo.GetShelter(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = repo.GetShelter(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestShelterRepo_InsertDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.InsertShelter(ctx, sampleShelter("s1", "Harbor House")))

	err := repo.InsertShelter(ctx, sampleShelter("s1", "Other"))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestShelterRepo_ListOrdersByNameThenID(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.InsertShelter(ctx, sampleShelter("b", "Zeta")))
	require.NoError(t, repo.InsertShelter(ctx, sampleShelter("z", "Alpha")))
	require.NoError(t, repo.InsertShelter(ctx, sampleShelter("a", "Alpha")))

	list, err := repo.ListShelters(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "z", "b"}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestShelterRepo_UpdateIsRevisionGuarded(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	orig := sampleShelter("s1", "Harbor House")
	require.NoError(t, repo.InsertShelter(ctx, orig))

	next := orig
	next.AvailableBeds = 3
	next.AllowsPets = true
	next.Revision = 4
	next.UpdatedBy = "staff@example.org"
	next.LastUpdated = orig.LastUpdated.Add(time.Minute)

	t.Run("matching revision applies", func(t *testing.T) {
		require.NoError(t, repo.UpdateShelter(ctx, next, 3))
		got, err := repo.GetShelter(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, next, got)
	})

	t.Run("stale revision conflicts", func(t *testing.T) {
		stale := next
		stale.AvailableBeds = 10
		err := repo.UpdateShelter(ctx, stale, 3)
		assert.ErrorIs(t, err, ErrConflict)

		got, err := repo.GetShelter(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 3, got.AvailableBeds)
	})

	t.Run("unknown id", func(t *testing.T) {
		ghost := next
		ghost.ID = "ghost"
		assert.ErrorIs(t, repo.UpdateShelter(ctx, ghost, 3), ErrNotFound)
	})
}

func TestShelterRepo_CheckConstraintRejectsOverCapacity(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	bad := sampleShelter("s1", "Harbor House")
	bad.AvailableBeds = 25
	assert.Error(t, repo.InsertShelter(ctx, bad))
}
