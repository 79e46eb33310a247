package store

import (
	"time"
)

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (db *DB) ListSettings() ([]*Setting, error) {
	rows, err := db.query(`SELECT key, value, updated_by, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Setting
	for rows.Next() {
		var s Setting
		var updatedAt any
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedBy, &updatedAt); err != nil {
			return nil, err
		}
		s.UpdatedAt = parseTime(updatedAt)
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (db *DB) GetSetting(key string) (*Setting, error) {
	var s Setting
	var updatedAt any
	err := db.queryRow(`SELECT key, value, updated_by, updated_at FROM settings WHERE key=?`, key).
		Scan(&s.Key, &s.Value, &s.UpdatedBy, &updatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

// SetSetting inserts or replaces a key.
func (db *DB) SetSetting(key, value, actor string) error {
	_, err := db.exec(`INSERT INTO settings (key, value, updated_by, updated_at) VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT (key) DO UPDATE SET value=excluded.value, updated_by=excluded.updated_by, updated_at=excluded.updated_at`,
		key, value, actor)
	return err
}

func (db *DB) DeleteSetting(key string) error {
	return mustAffect(db.exec(`DELETE FROM settings WHERE key=?`, key))
}
