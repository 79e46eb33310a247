package settings

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketops/config"
	"ticketops/store"
)

func testService(t *testing.T) *Service {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestDefaults(t *testing.T) {
	s := testService(t)

	assert.Equal(t, 4, s.SLAHours("critical"))
	assert.Equal(t, 8, s.SLAHours("high"))
	assert.Equal(t, 24, s.SLAHours("medium"))
	assert.Equal(t, 72, s.SLAHours("low"))
	assert.Equal(t, 24, s.SLAHours("unknown"))
	assert.False(t, s.Bool(EmailEnabled))
	assert.True(t, s.Bool(RegistrationEnabled))
	assert.Equal(t, 7, s.Int(TicketAutoCloseDays))

	_, err := s.Get("free.form")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestSetValidatesKnownKeys(t *testing.T) {
	s := testService(t)

	assert.ErrorIs(t, s.Set(SLAHighHours, "soon", "admin"), ErrInvalidValue)
	assert.ErrorIs(t, s.Set(SLAHighHours, "-1", "admin"), ErrInvalidValue)
	assert.ErrorIs(t, s.Set(EmailEnabled, "maybe", "admin"), ErrInvalidValue)

	require.NoError(t, s.Set(SLAHighHours, "6", "admin"))
	require.NoError(t, s.Set(EmailEnabled, "1", "admin"))
	require.NoError(t, s.Set("ui.banner", "Maintenance Friday", "admin"))

	assert.Equal(t, 6, s.SLAHours("high"))
	assert.True(t, s.Bool(EmailEnabled))
	v, err := s.Get("ui.banner")
	require.NoError(t, err)
	assert.Equal(t, "Maintenance Friday", v)

	// normalised on write
	v, _ = s.Get(EmailEnabled)
	assert.Equal(t, "true", v)
}

func TestDeleteFallsBackToDefault(t *testing.T) {
	s := testService(t)

	require.NoError(t, s.Set(TicketAutoCloseDays, "3", "admin"))
	assert.Equal(t, 3, s.Int(TicketAutoCloseDays))
	require.NoError(t, s.Delete(TicketAutoCloseDays))
	assert.Equal(t, 7, s.Int(TicketAutoCloseDays))
	assert.ErrorIs(t, s.Delete("never.set"), store.ErrNotFound)
}

func TestListMergesDefaults(t *testing.T) {
	s := testService(t)
	require.NoError(t, s.Set(SLALowHours, "96", "admin"))
	require.NoError(t, s.Set("zz.custom", "x", "admin"))

	entries, err := s.List()
	require.NoError(t, err)
	assert.Len(t, entries, len(knownKeys)+1)

	byKey := map[string]Entry{}
	for _, e := range entries {
		byKey[e.Key] = e
	}
	assert.Equal(t, "96", byKey[SLALowHours].Value)
	assert.False(t, byKey[SLALowHours].Default)
	assert.True(t, byKey[SLAHighHours].Default)
	assert.Equal(t, "zz.custom", entries[len(entries)-1].Key)
}
