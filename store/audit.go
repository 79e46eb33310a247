package store

import (
	"fmt"
	"time"
)

type AuditEntry struct {
	ID         int64     `json:"id"`
	ClientID   int64     `json:"client_id"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	Action     string    `json:"action"`
	OldValue   string    `json:"old_value"`
	NewValue   string    `json:"new_value"`
	Actor      string    `json:"actor"`
	CreatedAt  time.Time `json:"created_at"`
}

const auditSelectCols = `id, client_id, entity_type, entity_id, action, old_value, new_value, actor, created_at`

func (db *DB) AppendAudit(clientID int64, entityType string, entityID int64, action, oldValue, newValue, actor string) error {
	_, err := db.exec(`INSERT INTO audit_log (client_id, entity_type, entity_id, action, old_value, new_value, actor) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		clientID, entityType, entityID, action, oldValue, newValue, actor)
	return err
}

// ListAuditLog returns the newest entries; clientID 0 spans all tenants.
func (db *DB) ListAuditLog(clientID int64, limit int) ([]*AuditEntry, error) {
	if clientID > 0 {
		return db.listAudit(fmt.Sprintf(`SELECT %s FROM audit_log WHERE client_id=? ORDER BY id DESC LIMIT ?`, auditSelectCols), clientID, limit)
	}
	return db.listAudit(fmt.Sprintf(`SELECT %s FROM audit_log ORDER BY id DESC LIMIT ?`, auditSelectCols), limit)
}

func (db *DB) ListEntityAudit(entityType string, entityID int64) ([]*AuditEntry, error) {
	return db.listAudit(fmt.Sprintf(`SELECT %s FROM audit_log WHERE entity_type=? AND entity_id=? ORDER BY id DESC`, auditSelectCols), entityType, entityID)
}

func (db *DB) listAudit(query string, args ...any) ([]*AuditEntry, error) {
	rows, err := db.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var createdAt any
		if err := rows.Scan(&e.ID, &e.ClientID, &e.EntityType, &e.EntityID, &e.Action, &e.OldValue, &e.NewValue, &e.Actor, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
