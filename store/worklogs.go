package store

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	WorkLogSystem = "system"
	WorkLogManual = "manual"
)

// dateLayout is the work log day key.
const dateLayout = "2006-01-02"

type WorkLog struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	ClientID        *int64    `json:"client_id,omitempty"`
	LogDate         string    `json:"log_date"`
	Source          string    `json:"source"`
	Category        string    `json:"category"`
	Description     string    `json:"description"`
	EntityType      string    `json:"entity_type"`
	EntityID        int64     `json:"entity_id"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

type WorkLogSummary struct {
	UserID   int64  `json:"user_id"`
	LogDate  string `json:"log_date"`
	Minutes  int    `json:"minutes"`
	Entries  int    `json:"entries"`
	Username string `json:"username"`
}

// Day formats t as a work log date.
func Day(t time.Time) string { return t.UTC().Format(dateLayout) }

const workLogSelectCols = `id, user_id, client_id, log_date, source, category, description, entity_type, entity_id, duration_minutes, created_at`

func scanWorkLog(row interface{ Scan(...any) error }) (*WorkLog, error) {
	var w WorkLog
	var clientID sql.NullInt64
	var createdAt any
	if err := row.Scan(&w.ID, &w.UserID, &clientID, &w.LogDate, &w.Source, &w.Category, &w.Description,
		&w.EntityType, &w.EntityID, &w.DurationMinutes, &createdAt); err != nil {
		return nil, notFound(err)
	}
	w.ClientID = intPtr(clientID)
	w.CreatedAt = parseTime(createdAt)
	return &w, nil
}

func (db *DB) CreateWorkLog(w *WorkLog) error {
	id, err := db.insert(`INSERT INTO work_logs (user_id, client_id, log_date, source, category, description, entity_type, entity_id, duration_minutes) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.UserID, nullInt(w.ClientID), w.LogDate, w.Source, w.Category, w.Description, w.EntityType, w.EntityID, w.DurationMinutes)
	if err != nil {
		return fmt.Errorf("create work log: %w", err)
	}
	w.ID = id
	return nil
}

func (db *DB) GetWorkLog(id int64) (*WorkLog, error) {
	return scanWorkLog(db.queryRow(fmt.Sprintf(`SELECT %s FROM work_logs WHERE id=?`, workLogSelectCols), id))
}

func (db *DB) DeleteWorkLog(id int64) error {
	return mustAffect(db.exec(`DELETE FROM work_logs WHERE id=?`, id))
}

// ListWorkLogs returns a user's entries between from and to (inclusive, YYYY-MM-DD).
func (db *DB) ListWorkLogs(userID int64, from, to string) ([]*WorkLog, error) {
	rows, err := db.query(fmt.Sprintf(`SELECT %s FROM work_logs WHERE user_id=? AND log_date>=? AND log_date<=? ORDER BY log_date, id`, workLogSelectCols),
		userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*WorkLog
	for rows.Next() {
		w, err := scanWorkLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// SummarizeWorkLogs totals minutes and entries per user per day; clientID 0 spans tenants.
func (db *DB) SummarizeWorkLogs(clientID int64, from, to string) ([]*WorkLogSummary, error) {
	c := conds{clauses: []string{"w.log_date>=?", "w.log_date<=?"}, args: []any{from, to}}
	if clientID > 0 {
		c.add("w.client_id=?", clientID)
	}
	rows, err := db.query(fmt.Sprintf(`SELECT w.user_id, u.username, w.log_date, COALESCE(SUM(w.duration_minutes), 0), COUNT(*)
		FROM work_logs w JOIN users u ON u.id = w.user_id%s
		GROUP BY w.user_id, u.username, w.log_date ORDER BY w.log_date, u.username`, c.where()), c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*WorkLogSummary
	for rows.Next() {
		var s WorkLogSummary
		if err := rows.Scan(&s.UserID, &s.Username, &s.LogDate, &s.Minutes, &s.Entries); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
