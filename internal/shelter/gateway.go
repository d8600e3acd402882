package shelter

import (
	"context"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
)

// Gateway is the read-only query surface used for initial page loads and
// for resynchronizing after a reconnect or overrun.
type Gateway struct {
	store    *Store
	notifier *Notifier
}

// NewGateway returns a gateway over store.  notifier may be nil if Follow
// is never called.
func NewGateway(store *Store, notifier *Notifier) *Gateway {
	return &Gateway{store: store, notifier: notifier}
}

// SnapshotAll returns every record ordered by name, then id.
func (g *Gateway) SnapshotAll(ctx context.Context) ([]model.Shelter, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.store.ListAll(), nil
}

// SnapshotOne returns one record or ErrNotFound.
func (g *Gateway) SnapshotOne(ctx context.Context, id string) (model.Shelter, error) {
	if err := ctx.Err(); err != nil {
		return model.Shelter{}, err
	}
	return g.store.Get(id)
}

// Summary aggregates the current snapshot.
func (g *Gateway) Summary(ctx context.Context) (model.Summary, error) {
	list, err := g.SnapshotAll(ctx)
	if err != nil {
		return model.Summary{}, err
	}
	return model.Summarize(list), nil
}

// Follow subscribes and then snapshots, so no commit can fall between the
// two.  Events in the subscription may repeat a revision already present
// in the snapshot; consumers drop events whose revision is not newer than
// what they hold for that id.
func (g *Gateway) Follow(ctx context.Context) ([]model.Shelter, *Subscription, error) {
	sub := g.notifier.Subscribe()
	list, err := g.SnapshotAll(ctx)
	if err != nil {
		sub.Close()
		return nil, nil, err
	}
	return list, sub, nil
}
