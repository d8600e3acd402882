package shelter

import (
	"context"
	"iter"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
)

// DefaultBuffer is the per-subscriber pending-event capacity used when a
// non-positive size is configured.
const DefaultBuffer = 100

// Notifier fans committed changes out to live subscriptions.  Publish never
// blocks: each subscription has a bounded queue, and a subscription whose
// queue is full is disconnected with ErrSubscriberOverrun instead of
// slowing the writer down.
type Notifier struct {
	buffer int
	log    *zap.Logger
	rec    Recorder

	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

// NewNotifier returns a notifier whose subscriptions buffer up to buffer
// pending events.  log and rec may be nil.
func NewNotifier(buffer int, log *zap.Logger, rec Recorder) *Notifier {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Notifier{
		buffer: buffer,
		log:    log,
		rec:    rec,
		subs:   make(map[string]*Subscription),
	}
}

// Subscribe opens a live feed.  Only events published after Subscribe
// returns are delivered; use the Gateway for the current state.  After
// Close, Subscribe returns an already-closed subscription.
func (n *Notifier) Subscribe() *Subscription {
	return n.SubscribeBuffered(n.buffer)
}

// SubscribeBuffered is Subscribe with a buffer size for this subscription
// only.  Server-side consumers such as the broker relay use it to ride out
// bursts that would overrun a browser-sized buffer.
func (n *Notifier) SubscribeBuffered(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = n.buffer
	}
	s := &Subscription{
		id:     uuid.NewString(),
		n:      n,
		events: make(chan model.ChangeEvent, buffer),
		done:   make(chan struct{}),
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		s.err = ErrSubscriptionClosed
		close(s.done)
		return s
	}
	n.subs[s.id] = s
	count := len(n.subs)
	n.mu.Unlock()

	n.rec.Subscribers(count)
	n.log.Debug("subscriber connected", zap.String("subscription", s.id), zap.Int("total", count))
	return s
}

// Unsubscribe closes s.  It is idempotent.
func (n *Notifier) Unsubscribe(s *Subscription) {
	if s != nil {
		s.Close()
	}
}

// Publish hands ev to every live subscription.  Callers publishing events
// for the same record must do so sequentially; the store guarantees this
// by publishing under the record's commit lock.
func (n *Notifier) Publish(ev model.ChangeEvent) {
	var overrun []*Subscription
	n.mu.RLock()
	for _, s := range n.subs {
		if !s.deliver(ev) {
			overrun = append(overrun, s)
		}
	}
	n.mu.RUnlock()

	for _, s := range overrun {
		n.remove(s)
		n.rec.Overrun()
		n.log.Warn("subscriber overrun, disconnecting",
			zap.String("subscription", s.id),
			zap.Int("buffer", cap(s.events)),
			zap.String("shelter", ev.ID),
			zap.Int64("revision", ev.Revision))
	}
}

// Len returns the number of live subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// Close disconnects every subscription and rejects new ones.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	subs := n.subs
	n.subs = make(map[string]*Subscription)
	n.mu.Unlock()

	for _, s := range subs {
		s.terminate(ErrSubscriptionClosed)
	}
	n.rec.Subscribers(0)
}

func (n *Notifier) remove(s *Subscription) {
	n.mu.Lock()
	_, ok := n.subs[s.id]
	delete(n.subs, s.id)
	count := len(n.subs)
	n.mu.Unlock()
	if ok {
		n.rec.Subscribers(count)
		n.log.Debug("subscriber disconnected", zap.String("subscription", s.id), zap.Int("total", count))
	}
}

// Subscription is one live feed of change events.  It is not restartable:
// once closed or overrun it stays terminated and the caller must subscribe
// again and resynchronize from a snapshot.
type Subscription struct {
	id     string
	n      *Notifier
	events chan model.ChangeEvent
	done   chan struct{}

	mu  sync.Mutex // orders deliver against terminate
	err error
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string { return s.id }

// Done is closed when the subscription terminates.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns nil while live, then ErrSubscriptionClosed or
// ErrSubscriberOverrun.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Next blocks until an event arrives, the subscription terminates or ctx
// is done.  Events still queued when the subscription terminates are
// discarded.
func (s *Subscription) Next(ctx context.Context) (model.ChangeEvent, error) {
	select {
	case <-s.done:
		return model.ChangeEvent{}, s.Err()
	default:
	}
	select {
	case ev := <-s.events:
		select {
		case <-s.done:
			return model.ChangeEvent{}, s.Err()
		default:
		}
		return ev, nil
	case <-s.done:
		return model.ChangeEvent{}, s.Err()
	case <-ctx.Done():
		return model.ChangeEvent{}, ctx.Err()
	}
}

// Events returns the feed as a sequence.  The sequence ends after yielding
// a non-nil error or when the consumer stops ranging.
func (s *Subscription) Events(ctx context.Context) iter.Seq2[model.ChangeEvent, error] {
	return func(yield func(model.ChangeEvent, error) bool) {
		for {
			ev, err := s.Next(ctx)
			if err != nil {
				yield(model.ChangeEvent{}, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Close terminates the subscription and releases it from the notifier.
// Safe to call more than once and from cleanup paths.
func (s *Subscription) Close() {
	s.terminate(ErrSubscriptionClosed)
	s.n.remove(s)
}

// deliver enqueues ev.  It reports false when the queue was full and the
// subscription has just been terminated for overrun.
func (s *Subscription) deliver(ev model.ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return true
	}
	select {
	case s.events <- ev:
		return true
	default:
		s.err = ErrSubscriberOverrun
		close(s.done)
		return false
	}
}

func (s *Subscription) terminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	s.err = err
	close(s.done)
}
