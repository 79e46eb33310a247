package store

import (
	"fmt"
	"slices"
	"time"
)

// BackupTables lists the tables included in a full backup, parents first.
var BackupTables = []string{
	"clients", "sites", "users", "role_permissions", "settings",
	"assets", "asset_update_requests", "tickets", "ticket_history", "ticket_comments",
	"stock_items", "stock_transfers", "stock_transfer_items", "rmas", "rma_history",
	"work_logs", "audit_log",
}

// DumpTable returns the column names and every row of table rendered as text.
func (db *DB) DumpTable(table string) ([]string, [][]string, error) {
	if !slices.Contains(BackupTables, table) {
		return nil, nil, fmt.Errorf("table %q is not dumpable", table)
	}
	rows, err := db.query(fmt.Sprintf(`SELECT * FROM %s ORDER BY 1`, table))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		rec := make([]string, len(cols))
		for i, v := range vals {
			rec[i] = cellText(v)
		}
		out = append(out, rec)
	}
	return cols, out, rows.Err()
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case time.Time:
		return ts(x)
	default:
		return fmt.Sprint(x)
	}
}
