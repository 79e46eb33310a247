package store

import "time"

const (
	EmailSent   = "sent"
	EmailFailed = "failed"
)

type EmailLogEntry struct {
	ID        int64     `json:"id"`
	ToAddress string    `json:"to_address"`
	Subject   string    `json:"subject"`
	EventType string    `json:"event_type"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

func (db *DB) LogEmail(to, subject, eventType, status, errText string) error {
	_, err := db.exec(`INSERT INTO email_log (to_address, subject, event_type, status, error) VALUES (?, ?, ?, ?, ?)`,
		to, subject, eventType, status, errText)
	return err
}

func (db *DB) ListEmailLog(limit int) ([]*EmailLogEntry, error) {
	rows, err := db.query(`SELECT id, to_address, subject, event_type, status, error, sent_at FROM email_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*EmailLogEntry
	for rows.Next() {
		var e EmailLogEntry
		var sentAt any
		if err := rows.Scan(&e.ID, &e.ToAddress, &e.Subject, &e.EventType, &e.Status, &e.Error, &sentAt); err != nil {
			return nil, err
		}
		e.SentAt = parseTime(sentAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}
