package shelter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
)

func TestGateway_Snapshots(t *testing.T) {
	ctx := context.Background()
	b := s1()
	b.ID, b.Name, b.AvailableBeds, b.AllowsPets = "S2", "Aloha Haven", 0, true
	st, _ := newLoadedStore(t, nil, s1(), b)
	g := NewGateway(st, nil)

	list, err := g.SnapshotAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "S2", list[0].ID, "ordered by name")

	one, err := g.SnapshotOne(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, s1(), one)

	_, err = g.SnapshotOne(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	sum, err := g.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Shelters)
	assert.Equal(t, 1, sum.SheltersWithBeds)
	assert.Equal(t, 5, sum.AvailableBeds)
	assert.Equal(t, 1, sum.AllowsPets)
}

func TestGateway_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	st, _ := newLoadedStore(t, nil, s1())
	g := NewGateway(st, nil)

	list, _ := g.SnapshotAll(ctx)
	list[0].AvailableBeds = 99

	cur, err := g.SnapshotOne(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, 5, cur.AvailableBeds)
}

func TestGateway_CanceledContext(t *testing.T) {
	st, _ := newLoadedStore(t, nil, s1())
	g := NewGateway(st, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.SnapshotAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = g.SnapshotOne(ctx, "S1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGateway_FollowBridgesGap(t *testing.T) {
	ctx := context.Background()
	n := NewNotifier(8, nil, nil)
	defer n.Close()
	st, _ := newLoadedStore(t, n, s1())
	g := NewGateway(st, n)

	list, sub, err := g.Follow(ctx)
	require.NoError(t, err)
	defer sub.Close()
	require.Len(t, list, 1)
	assert.Equal(t, int64(3), list[0].Revision)

	_, err = st.Commit(ctx, "S1", model.ShelterUpdate{AvailableBeds: intp(4)}, 3, "staff")
	require.NoError(t, err)

	ev, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), ev.Revision)
}

func TestGateway_FollowCanceled(t *testing.T) {
	n := NewNotifier(8, nil, nil)
	defer n.Close()
	st, _ := newLoadedStore(t, n, s1())
	g := NewGateway(st, n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, sub, err := g.Follow(ctx)
	assert.Error(t, err)
	assert.Nil(t, sub)
	assert.Zero(t, n.Len(), "subscription released on failure")
}
