package backup

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ticketops/config"
	"ticketops/store"
)

type memUploader struct {
	key, contentType string
	body             []byte
}

func (m *memUploader) Upload(_ context.Context, key string, body []byte, contentType string) error {
	m.key, m.body, m.contentType = key, body, contentType
	return nil
}

func (m *memUploader) Location(key string) string { return "mem://" + key }

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.CreateClient(&store.Client{Name: "Acme", Code: "ACME", Status: store.ClientActive}))
	return db
}

func TestRunWritesSheetPerTable(t *testing.T) {
	db := testDB(t)
	up := &memUploader{}
	svc := NewWithUploader(db, "backups", up, nil)
	at := time.Date(2026, 4, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return at }

	res, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "backups/ticketops-20260402-030405.xlsx", res.Key)
	assert.Equal(t, "mem://"+res.Key, res.Location)
	assert.Equal(t, len(store.BackupTables), res.Tables)
	assert.Equal(t, len(up.body), res.Bytes)
	assert.Equal(t, contentType, up.contentType)

	f, err := excelize.OpenReader(bytes.NewReader(up.body))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, store.BackupTables, f.GetSheetList())

	rows, err := f.GetRows("clients")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[0], "code")
	assert.Contains(t, rows[1], "ACME")
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	svc := NewWithUploader(testDB(t), "", &memUploader{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalUploader(t *testing.T) {
	dir := t.TempDir()
	db := testDB(t)
	svc, err := New(context.Background(), db, config.StorageConfig{LocalDir: dir, Prefix: "nightly"}, nil)
	require.NoError(t, err)

	res, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nightly"), filepath.Dir(res.Location))
	info, err := os.Stat(res.Location)
	require.NoError(t, err)
	assert.Equal(t, int64(res.Bytes), info.Size())
}

func TestKeyWithoutPrefix(t *testing.T) {
	svc := NewWithUploader(nil, "", &memUploader{}, nil)
	assert.Equal(t, "ticketops-20260101-000000.xlsx", svc.Key(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}
