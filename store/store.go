package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticketops/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type DB struct {
	*sql.DB
	dialect dialect
	tx      *sql.Tx
}

func Open(cfg *config.DatabaseConfig) (*DB, error) {
	switch cfg.Driver {
	case "sqlite":
		return openSQLite(cfg.SQLite.Path)
	case "postgres":
		return openPostgres(&cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func openSQLite(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	db := &DB{DB: sqlDB, dialect: sqliteSQL}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}

func openPostgres(cfg *config.PostgresConfig) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode)
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db := &DB{DB: sqlDB, dialect: postgresSQL}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return db, nil
}

func (db *DB) Driver() string { return db.dialect.name }

// Q adapts a query written for SQLite to the open backend.
func (db *DB) Q(query string) string { return db.dialect.rewrite(query) }

// WithTx runs fn inside a transaction. The *DB handed to fn routes every
// statement through the transaction; nested calls reuse the outer one.
func (db *DB) WithTx(fn func(tx *DB) error) error {
	if db.tx != nil {
		return fn(db)
	}
	sqlTx, err := db.DB.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txDB := &DB{DB: db.DB, dialect: db.dialect, tx: sqlTx}
	if err := fn(txDB); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (db *DB) exec(query string, args ...any) (sql.Result, error) {
	if db.tx != nil {
		return db.tx.Exec(db.Q(query), args...)
	}
	return db.DB.Exec(db.Q(query), args...)
}

func (db *DB) query(query string, args ...any) (*sql.Rows, error) {
	if db.tx != nil {
		return db.tx.Query(db.Q(query), args...)
	}
	return db.DB.Query(db.Q(query), args...)
}

func (db *DB) queryRow(query string, args ...any) *sql.Row {
	if db.tx != nil {
		return db.tx.QueryRow(db.Q(query), args...)
	}
	return db.DB.QueryRow(db.Q(query), args...)
}

// insert runs an INSERT and returns the new row id. pgx does not implement
// LastInsertId, so Postgres uses RETURNING instead.
func (db *DB) insert(query string, args ...any) (int64, error) {
	if db.dialect.returning {
		var id int64
		if err := db.queryRow(query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := db.exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// mustAffect returns ErrNotFound when an UPDATE/DELETE touched nothing.
func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const timeLayout = "2006-01-02 15:04:05"

// ts formats t in UTC the way the schema stores timestamps.
func ts(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// tsPtr is ts for optional timestamps; nil stays NULL.
func tsPtr(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return ts(*t)
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func (db *DB) migrate() error {
	_, err := db.DB.Exec(db.dialect.schema)
	return err
}

// conds accumulates optional WHERE clauses for list filters.
type conds struct {
	clauses []string
	args    []any
}

func (c *conds) add(clause string, arg any) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, arg)
}

func (c *conds) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func limitOr(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
