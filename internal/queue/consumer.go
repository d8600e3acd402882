package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/kahala-purplemaia/Real-Time-Shelter-Availability-App/internal/config"
)

// DeclareTopology declares the durable fanout exchange every change is
// published to.  Publisher and consumer both call it; declaring is
// idempotent.
func DeclareTopology(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare %s: %w", exchange, err)
	}
	return nil
}

// AuditLog appends one human-readable line per change to a file.
type AuditLog struct {
	path string
	mu   sync.Mutex
}

// NewAuditLog returns a log writing to path.  Parent directories are
// created on first write.
func NewAuditLog(path string) *AuditLog { return &AuditLog{path: path} }

// Append writes m as a single line.
func (a *AuditLog) Append(m ShelterChanged) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("mkdir audit dir: %w", err)
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatAuditLine(m)); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// FormatAuditLine renders m in the audit log's single-line format.
func FormatAuditLine(m ShelterChanged) string {
	return fmt.Sprintf("[%s] Shelter updated | id=%s | revision=%d | shelter=%q | beds=%d/%d | status=%s | pets=%t | sobriety=%t | families=%t | by=%q\n",
		m.LastUpdated().Format(time.RFC3339Nano), m.ID, m.Revision, m.Name,
		m.AvailableBeds, m.TotalBeds, m.Status, m.AllowsPets, m.RequiresSobriety, m.AcceptsFamilies, m.UpdatedBy)
}

// handleMessage decodes one delivery body and appends it to the audit log.
func (a *AuditLog) handleMessage(body []byte) error {
	m, err := Unmarshal(body)
	if err != nil {
		return err
	}
	return a.Append(m)
}

// StartAuditConsumer binds cfg.AuditQueue to the change exchange and
// appends every message to the audit log.  It reconnects with exponential
// backoff and returns only when ctx is cancelled.  Malformed messages are
// rejected without requeue so a poison message cannot spin the loop.
func StartAuditConsumer(ctx context.Context, cfg config.BrokerConfig, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("audit-consumer")
	audit := NewAuditLog(cfg.AuditLogPath)

	backoff := time.Second
	for {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			log.Warn("dial broker failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !SleepContext(ctx, backoff) {
				return nil
			}
			backoff = NextBackoff(backoff, cfg.MaxBackoff)
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, cfg, audit, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !SleepContext(ctx, 2*time.Second) {
			return nil
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg config.BrokerConfig, audit *AuditLog, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set QoS failed", zap.Error(err))
	}
	if err := DeclareTopology(ch, cfg.Exchange); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(cfg.AuditQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(cfg.AuditQueue, "", cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(cfg.AuditQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	log.Info("consuming", zap.String("queue", cfg.AuditQueue), zap.String("exchange", cfg.Exchange))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := audit.handleMessage(d.Body); err != nil {
				log.Error("handle message failed", zap.Error(err), zap.String("routing_key", d.RoutingKey))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// SleepContext waits for d or until ctx is done, reporting whether to continue.
func SleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// NextBackoff doubles d up to limit.
func NextBackoff(d, limit time.Duration) time.Duration {
	if limit <= 0 {
		limit = 30 * time.Second
	}
	d *= 2
	if d > limit {
		d = limit
	}
	return d
}
