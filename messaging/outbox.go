package messaging

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ticketops/logging"
	"ticketops/store"
)

const (
	drainBatch      = 50
	maxRetries      = 10
	outboxRetention = 7 * 24 * time.Hour
)

// Publisher is the slice of Client the drainer needs.
type Publisher interface {
	PublishKeyed(topic, key string, payload []byte) error
}

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db       *store.DB
	client   Publisher
	interval time.Duration
	log      *zap.Logger
	observe  func(sent, failed int)
}

func NewOutboxDrainer(db *store.DB, client Publisher, interval time.Duration, log *zap.Logger) *OutboxDrainer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxDrainer{db: db, client: client, interval: interval, log: logging.OrNop(log).Named("outbox")}
}

// OnDrain registers a callback receiving the result of every drain pass.
func (d *OutboxDrainer) OnDrain(fn func(sent, failed int)) {
	d.observe = fn
}

// Run drains on every tick until ctx is done. Sent rows older than a week are
// purged once an hour.
func (d *OutboxDrainer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	lastPurge := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain()
			if time.Since(lastPurge) > time.Hour {
				d.purge()
				lastPurge = time.Now()
			}
		}
	}
}

// Drain publishes one batch and returns how many were acked.
func (d *OutboxDrainer) Drain() int {
	msgs, err := d.db.ListPendingOutbox(maxRetries, drainBatch)
	if err != nil {
		d.log.Error("list pending", zap.Error(err))
		return 0
	}
	sent, failed := 0, 0
	for _, msg := range msgs {
		if err := d.client.PublishKeyed(msg.Topic, msg.Key, msg.Payload); err != nil {
			d.log.Warn("publish failed", zap.String("topic", msg.Topic), zap.Int64("id", msg.ID), zap.Int("retries", msg.Retries+1), zap.Error(err))
			d.db.IncrementOutboxRetries(msg.ID)
			failed++
			continue
		}
		if err := d.db.AckOutbox(msg.ID); err != nil {
			d.log.Error("ack", zap.Int64("id", msg.ID), zap.Error(err))
			continue
		}
		sent++
	}
	if d.observe != nil && len(msgs) > 0 {
		d.observe(sent, failed)
	}
	return sent
}

func (d *OutboxDrainer) purge() {
	n, err := d.db.PurgeOutbox(time.Now().Add(-outboxRetention))
	if err != nil {
		d.log.Error("purge", zap.Error(err))
		return
	}
	if n > 0 {
		d.log.Info("purged sent messages", zap.Int64("rows", n))
	}
}
