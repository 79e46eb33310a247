package store

import (
	"database/sql"
	"fmt"
	"time"
)

type Notification struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	ClientID   *int64     `json:"client_id,omitempty"`
	Type       string     `json:"type"`
	Severity   string     `json:"severity"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	EntityType string     `json:"entity_type"`
	EntityID   int64      `json:"entity_id"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

const notificationSelectCols = `id, user_id, client_id, type, severity, title, message, entity_type, entity_id, read_at, created_at`

func (db *DB) CreateNotification(n *Notification) error {
	id, err := db.insert(`INSERT INTO notifications (user_id, client_id, type, severity, title, message, entity_type, entity_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, nullInt(n.ClientID), n.Type, n.Severity, n.Title, n.Message, n.EntityType, n.EntityID)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	n.ID = id
	n.CreatedAt = time.Now().UTC()
	return nil
}

func (db *DB) ListNotifications(userID int64, unreadOnly bool, limit int) ([]*Notification, error) {
	q := fmt.Sprintf(`SELECT %s FROM notifications WHERE user_id=?`, notificationSelectCols)
	if unreadOnly {
		q += ` AND read_at IS NULL`
	}
	rows, err := db.query(q+` ORDER BY id DESC LIMIT ?`, userID, limitOr(limit, 100))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Notification
	for rows.Next() {
		var n Notification
		var clientID sql.NullInt64
		var readAt, createdAt any
		if err := rows.Scan(&n.ID, &n.UserID, &clientID, &n.Type, &n.Severity, &n.Title, &n.Message,
			&n.EntityType, &n.EntityID, &readAt, &createdAt); err != nil {
			return nil, err
		}
		n.ClientID = intPtr(clientID)
		n.ReadAt = parseTimePtr(readAt)
		n.CreatedAt = parseTime(createdAt)
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (db *DB) CountUnreadNotifications(userID int64) (int, error) {
	var n int
	err := db.queryRow(`SELECT COUNT(*) FROM notifications WHERE user_id=? AND read_at IS NULL`, userID).Scan(&n)
	return n, err
}

// MarkNotificationRead only touches the user's own rows.
func (db *DB) MarkNotificationRead(userID, id int64) error {
	return mustAffect(db.exec(`UPDATE notifications SET read_at=datetime('now') WHERE id=? AND user_id=? AND read_at IS NULL`, id, userID))
}

func (db *DB) MarkAllNotificationsRead(userID int64) (int64, error) {
	res, err := db.exec(`UPDATE notifications SET read_at=datetime('now') WHERE user_id=? AND read_at IS NULL`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
