package store

import "fmt"

// Record number prefixes.
const (
	PrefixTicket   = "TKT"
	PrefixRMA      = "RMA"
	PrefixTransfer = "TRF"
)

// NextNumber advances the counter for prefix and formats it as PREFIX-000123.
func (db *DB) NextNumber(prefix string) (string, error) {
	var n int64
	err := db.WithTx(func(tx *DB) error {
		if _, err := tx.exec(`INSERT INTO counters (name, value) VALUES (?, 0) ON CONFLICT (name) DO NOTHING`, prefix); err != nil {
			return err
		}
		if _, err := tx.exec(`UPDATE counters SET value=value+1 WHERE name=?`, prefix); err != nil {
			return err
		}
		return tx.queryRow(`SELECT value FROM counters WHERE name=?`, prefix).Scan(&n)
	})
	if err != nil {
		return "", fmt.Errorf("next %s number: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%06d", prefix, n), nil
}

// RaiseCounter lifts the counter for prefix to at least n so imported
// numbers are never issued again.
func (db *DB) RaiseCounter(prefix string, n int64) error {
	return db.WithTx(func(tx *DB) error {
		if _, err := tx.exec(`INSERT INTO counters (name, value) VALUES (?, 0) ON CONFLICT (name) DO NOTHING`, prefix); err != nil {
			return err
		}
		_, err := tx.exec(`UPDATE counters SET value=? WHERE name=? AND value<?`, n, prefix, n)
		return err
	})
}
