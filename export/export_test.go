package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ticketops/config"
	"ticketops/store"
)

func testDB(t *testing.T) (*store.DB, *store.Client) {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := &store.Client{Name: "Acme", Code: "ACME", Status: store.ClientActive}
	require.NoError(t, db.CreateClient(c))
	other := &store.Client{Name: "Other", Code: "OTH", Status: store.ClientActive}
	require.NoError(t, db.CreateClient(other))
	for i, cl := range []*store.Client{c, c, other} {
		tk := &store.Ticket{
			Number: "TKT-00000" + string(rune('1'+i)), ClientID: cl.ID, Title: "Camera offline",
			Category: "camera", Priority: "high", Status: "open", Source: "manual",
		}
		require.NoError(t, db.CreateTicket(tk, "test"))
	}
	return db, c
}

func TestBuildScopesByClient(t *testing.T) {
	db, c := testDB(t)

	tbl, err := Build(db, "tickets", c.ID)
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 2)
	assert.Equal(t, "Number", tbl.Headers[0])

	all, err := Build(db, "tickets", 0)
	require.NoError(t, err)
	assert.Len(t, all.Rows, 3)

	_, err = Build(db, "invoices", 0)
	assert.ErrorIs(t, err, ErrUnknownResource)
}

func TestEmptyResourcesBuild(t *testing.T) {
	db, c := testDB(t)
	for _, r := range Resources {
		tbl, err := Build(db, r, c.ID)
		require.NoError(t, err, r)
		assert.NotEmpty(t, tbl.Headers, r)
	}
}

func TestWriteCSV(t *testing.T) {
	tbl := &Table{Name: "T", Headers: []string{"a", "b"}, Rows: [][]string{{"1", "x,y"}, {"2", ""}}}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, tbl))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "x,y"}, {"2", ""}}, recs)
}

func TestWriteXLSXSheetsAndHeaderStyle(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXLSX(&buf,
		&Table{Name: "tickets", Headers: []string{"Number", "Title"}, Rows: [][]string{{"TKT-000001", "Offline"}}},
		&Table{Name: "assets", Headers: []string{"Code"}},
	)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"tickets", "assets"}, f.GetSheetList())

	v, err := f.GetCellValue("tickets", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Offline", v)

	styleID, err := f.GetCellStyle("tickets", "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

func TestWorkbookNeedsTables(t *testing.T) {
	_, err := Workbook()
	assert.Error(t, err)
}

func TestFilenameAndContentType(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "assets-20260301.xlsx", Filename("assets", FormatXLSX, now))
	assert.Equal(t, "text/csv", ContentType(FormatCSV))
	assert.True(t, ValidFormat("csv"))
	assert.False(t, ValidFormat("pdf"))
	assert.True(t, ValidResource("rmas"))
}
