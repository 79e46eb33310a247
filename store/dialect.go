package store

import (
	"strconv"
	"strings"
	"time"
)

// dialect holds what differs between the SQLite and Postgres backends.
// Queries are written once in SQLite form and rewritten on the way out.
type dialect struct {
	name   string
	schema string
	// returning reports whether new ids come back via RETURNING rather
	// than LastInsertId.
	returning bool
	rewrite   func(string) string
}

var (
	sqliteSQL = dialect{
		name:    "sqlite",
		schema:  schemaSQLite,
		rewrite: func(q string) string { return q },
	}
	postgresSQL = dialect{
		name:      "postgres",
		schema:    schemaPostgres,
		returning: true,
		rewrite: func(q string) string {
			return numberParams(strings.ReplaceAll(q, "datetime('now')", "NOW()"))
		},
	}
)

// numberParams turns each ? into $1, $2, ... in order of appearance.
func numberParams(q string) string {
	if !strings.Contains(q, "?") {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// placeholders returns "(?, ?, ?)" for n values, or "(NULL)" so an empty
// IN list still parses and matches nothing.
func placeholders(n int) string {
	if n <= 0 {
		return "(NULL)"
	}
	return "(?" + strings.Repeat(", ?", n-1) + ")"
}

// Scanned timestamps arrive as strings from SQLite and time.Time from pgx.
var storedLayouts = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02",
}

func parseTime(v any) time.Time {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case []byte:
		s = string(t)
	case string:
		s = t
	default:
		return time.Time{}
	}
	for _, layout := range storedLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

func parseTimePtr(v any) *time.Time {
	if t := parseTime(v); !t.IsZero() {
		return &t
	}
	return nil
}
