// Package service runs background workers that sit beside the HTTP server.
// The Relay forwards every committed shelter change to RabbitMQ so other
// systems (dispatch, analytics, the audit log) see the same stream the
// browsers do.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/config"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/model"
	q "github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/queue"
	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/shelter"
)

// Publisher sends one encoded change to the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
	Close() error
}

// Dialer opens a Publisher.
type Dialer func(ctx context.Context) (Publisher, error)

// RelayMetrics receives one call per publish attempt.
type RelayMetrics interface {
	Relayed(outcome string)
}

// Relay subscribes to the notifier and publishes each change.  A failed
// publish is retried on a fresh connection; events keep queueing in the
// subscription meanwhile.  If the subscription overruns, the relay logs it
// and subscribes again: consumers resynchronize from the snapshot API, the
// same as a browser would.
type Relay struct {
	notifier   *shelter.Notifier
	dial       Dialer
	log        *zap.Logger
	metrics    RelayMetrics
	buffer     int
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewRelay builds a relay.  log and metrics may be nil.
func NewRelay(n *shelter.Notifier, dial Dialer, cfg config.BrokerConfig, log *zap.Logger, metrics RelayMetrics) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		notifier:   n,
		dial:       dial,
		log:        log.Named("relay"),
		metrics:    metrics,
		buffer:     cfg.RelayBuffer,
		minBackoff: time.Second,
		maxBackoff: cfg.MaxBackoff,
	}
}

// Run relays until ctx is cancelled or the notifier closes.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.notifier.SubscribeBuffered(r.buffer)
	defer func() { sub.Close() }()

	var (
		pub     Publisher
		pending *model.ChangeEvent
		backoff = r.minBackoff
	)
	defer func() {
		if pub != nil {
			_ = pub.Close()
		}
	}()

	for {
		if pub == nil {
			p, err := r.dial(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.log.Warn("dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
				if !q.SleepContext(ctx, backoff) {
					return nil
				}
				backoff = q.NextBackoff(backoff, r.maxBackoff)
				continue
			}
			pub, backoff = p, r.minBackoff
			r.log.Info("connected to broker")
		}

		if pending == nil {
			ev, err := sub.Next(ctx)
			switch {
			case err == nil:
				pending = &ev
			case errors.Is(err, shelter.ErrSubscriberOverrun):
				r.log.Warn("relay fell behind, resubscribing; downstream must resync from the snapshot")
				sub = r.notifier.SubscribeBuffered(r.buffer)
				continue
			case errors.Is(err, shelter.ErrSubscriptionClosed), ctx.Err() != nil:
				return nil
			default:
				return err
			}
		}

		if err := r.publish(ctx, pub, *pending); err != nil {
			r.record("error")
			if ctx.Err() != nil {
				return nil
			}
			r.log.Warn("publish failed, reconnecting", zap.String("shelter", pending.ID), zap.Int64("revision", pending.Revision), zap.Error(err))
			_ = pub.Close()
			pub = nil
			continue
		}
		r.record("ok")
		pending = nil
	}
}

func (r *Relay) publish(ctx context.Context, pub Publisher, ev model.ChangeEvent) error {
	body, err := q.Marshal(q.FromEvent(ev))
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	return pub.Publish(ctx, ev.ID, body)
}

func (r *Relay) record(outcome string) {
	if r.metrics != nil {
		r.metrics.Relayed(outcome)
	}
}

// amqpPublisher publishes persistent messages to the change exchange.
type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// AMQPDialer returns a Dialer for the broker described by cfg.  Each
// connection declares the durable fanout exchange before use.
func AMQPDialer(cfg config.BrokerConfig) Dialer {
	return func(context.Context) (Publisher, error) {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("channel open: %w", err)
		}
		if err := q.DeclareTopology(ch, cfg.Exchange); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
		return &amqpPublisher{conn: conn, ch: ch, exchange: cfg.Exchange}, nil
	}
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	return p.ch.PublishWithContext(ctx,
		p.exchange, // fanout exchange
		routingKey, // shelter id, for consumers that rebind to a topic exchange
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  q.ContentType,
			DeliveryMode: amqp.Persistent, // store on disk
			Timestamp:    time.Now().UTC(),
			Type:         "shelter.changed",
			Body:         body,
		})
}

func (p *amqpPublisher) Close() error {
	_ = p.ch.Close()
	return p.conn.Close()
}
