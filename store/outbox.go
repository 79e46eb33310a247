package store

import (
	"time"
)

type OutboxMessage struct {
	ID        int64
	Topic     string
	Payload   []byte
	MsgType   string
	Key       string
	Retries   int
	CreatedAt time.Time
	SentAt    *time.Time
}

func (db *DB) EnqueueOutbox(topic string, payload []byte, msgType, key string) error {
	_, err := db.exec(`INSERT INTO outbox (topic, payload, msg_type, msg_key) VALUES (?, ?, ?, ?)`,
		topic, payload, msgType, key)
	return err
}

// ListPendingOutbox returns unsent rows below the retry ceiling, oldest first.
func (db *DB) ListPendingOutbox(maxRetries, limit int) ([]*OutboxMessage, error) {
	rows, err := db.query(`SELECT id, topic, payload, msg_type, msg_key, retries, created_at FROM outbox WHERE sent_at IS NULL AND retries < ? ORDER BY id LIMIT ?`, maxRetries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []*OutboxMessage
	for rows.Next() {
		var m OutboxMessage
		var createdAt any
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.MsgType, &m.Key, &m.Retries, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func (db *DB) AckOutbox(id int64) error {
	_, err := db.exec(`UPDATE outbox SET sent_at=datetime('now') WHERE id=?`, id)
	return err
}

func (db *DB) IncrementOutboxRetries(id int64) error {
	_, err := db.exec(`UPDATE outbox SET retries=retries+1 WHERE id=?`, id)
	return err
}

// PurgeOutbox deletes rows sent before cutoff.
func (db *DB) PurgeOutbox(cutoff time.Time) (int64, error) {
	res, err := db.exec(`DELETE FROM outbox WHERE sent_at IS NOT NULL AND sent_at < ?`, ts(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
