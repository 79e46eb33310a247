// Package backup dumps every table into one workbook and stores it in S3 or
// a local directory.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"ticketops/config"
	"ticketops/export"
	"ticketops/logging"
	"ticketops/store"
)

const contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Uploader stores a finished backup under key.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
	Location(key string) string
}

// Result describes one completed backup.
type Result struct {
	Key      string        `json:"key"`
	Location string        `json:"location"`
	Tables   int           `json:"tables"`
	Rows     int           `json:"rows"`
	Bytes    int           `json:"bytes"`
	Took     time.Duration `json:"took"`
}

type Service struct {
	db       *store.DB
	prefix   string
	uploader Uploader
	log      *zap.Logger
	now      func() time.Time
}

// New picks S3 when a bucket is configured and the local directory otherwise.
func New(ctx context.Context, db *store.DB, cfg config.StorageConfig, log *zap.Logger) (*Service, error) {
	var up Uploader
	if cfg.Bucket != "" {
		s3up, err := NewS3Uploader(ctx, cfg)
		if err != nil {
			return nil, err
		}
		up = s3up
	} else {
		up = &LocalUploader{Dir: cfg.LocalDir}
	}
	return NewWithUploader(db, cfg.Prefix, up, log), nil
}

func NewWithUploader(db *store.DB, prefix string, up Uploader, log *zap.Logger) *Service {
	return &Service{db: db, prefix: prefix, uploader: up, log: logging.OrNop(log).Named("backup"), now: time.Now}
}

// Key is <prefix>/ticketops-YYYYMMDD-HHMMSS.xlsx.
func (s *Service) Key(at time.Time) string {
	name := "ticketops-" + at.UTC().Format("20060102-150405") + ".xlsx"
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Run dumps store.BackupTables into one workbook and uploads it.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	start := s.now()
	res := &Result{Key: s.Key(start)}
	tables := make([]*export.Table, 0, len(store.BackupTables))
	for _, name := range store.BackupTables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cols, rows, err := s.db.DumpTable(name)
		if err != nil {
			return nil, fmt.Errorf("dump %s: %w", name, err)
		}
		tables = append(tables, &export.Table{Name: name, Headers: cols, Rows: rows})
		res.Rows += len(rows)
	}
	res.Tables = len(tables)

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, tables...); err != nil {
		return nil, fmt.Errorf("build backup workbook: %w", err)
	}
	res.Bytes = buf.Len()
	if err := s.uploader.Upload(ctx, res.Key, buf.Bytes(), contentType); err != nil {
		return nil, fmt.Errorf("store backup %s: %w", res.Key, err)
	}
	res.Location = s.uploader.Location(res.Key)
	res.Took = s.now().Sub(start)
	s.log.Info("backup written",
		zap.String("location", res.Location),
		zap.Int("tables", res.Tables),
		zap.Int("rows", res.Rows),
		zap.Int("bytes", res.Bytes))
	return res, nil
}

// LocalUploader writes backups below Dir.
type LocalUploader struct {
	Dir string
}

func (l *LocalUploader) Upload(_ context.Context, key string, body []byte, _ string) error {
	p := l.Location(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, body, 0o640)
}

func (l *LocalUploader) Location(key string) string {
	dir := l.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, filepath.FromSlash(key))
}
