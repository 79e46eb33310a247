package worklog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketops/config"
	"ticketops/rights"
	"ticketops/store"
)

type fixture struct {
	svc               *Service
	db                *store.DB
	admin, tech, peer rights.Actor
	outsider          rights.Actor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	actor := func(c *store.Client, name, role string) rights.Actor {
		u := &store.User{ClientID: &c.ID, Username: name, PasswordHash: "x", Role: role, Active: true}
		require.NoError(t, db.CreateUser(u))
		return rights.Actor{UserID: u.ID, Username: name, ClientID: c.ID, Role: role}
	}
	acme := &store.Client{Name: "Acme", Code: "ACME", Status: store.ClientActive}
	require.NoError(t, db.CreateClient(acme))
	globex := &store.Client{Name: "Globex", Code: "GLBX", Status: store.ClientActive}
	require.NoError(t, db.CreateClient(globex))

	svc := NewService(db, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) }
	return &fixture{
		svc: svc, db: db,
		admin:    actor(acme, "boss", rights.RoleAdmin),
		tech:     actor(acme, "tech", rights.RoleTechnician),
		peer:     actor(acme, "peer", rights.RoleTechnician),
		outsider: actor(globex, "gx", rights.RoleAdmin),
	}
}

func TestRecordAndManual(t *testing.T) {
	f := setup(t)
	f.svc.Record(f.tech, "ticket", "ticket", 4, "moved TKT-000004 to in_progress")
	f.svc.Record(rights.System, "ticket", "ticket", 4, "auto-closed")

	w, err := f.svc.Add(f.tech, ManualInput{Category: "site_visit", Description: " swapped PSU ", DurationMinutes: 90})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", w.LogDate)
	assert.Equal(t, "swapped PSU", w.Description)

	list, err := f.svc.List(f.tech, 0, "", "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, store.WorkLogSystem, list[0].Source)
	assert.Equal(t, store.WorkLogManual, list[1].Source)
}

func TestAddValidation(t *testing.T) {
	f := setup(t)
	bad := []ManualInput{
		{Category: "site_visit", Description: "x", DurationMinutes: 0},
		{Category: "site_visit", Description: "x", DurationMinutes: 1441},
		{Category: "golf", Description: "x", DurationMinutes: 10},
		{Category: "site_visit", Description: "  ", DurationMinutes: 10},
		{Date: "10/03/2026", Category: "site_visit", Description: "x", DurationMinutes: 10},
		{Date: "2026-03-11", Category: "site_visit", Description: "x", DurationMinutes: 10},
	}
	for _, in := range bad {
		_, err := f.svc.Add(f.tech, in)
		assert.ErrorIs(t, err, ErrInvalid, "%+v", in)
	}
	_, err := f.svc.Add(f.tech, ManualInput{Date: "2026-03-09", Category: "travel", Description: "drive", DurationMinutes: 30})
	assert.NoError(t, err)
	_, err = f.svc.Add(rights.System, ManualInput{Category: "travel", Description: "x", DurationMinutes: 1})
	assert.ErrorIs(t, err, rights.ErrForbidden)
}

func TestDeleteOwnManualOnly(t *testing.T) {
	f := setup(t)
	f.svc.Record(f.tech, "rma", "rma", 1, "opened RMA-000001")
	sys, _ := f.svc.List(f.tech, 0, "", "")
	require.Len(t, sys, 1)
	assert.ErrorIs(t, f.svc.Delete(f.tech, sys[0].ID), rights.ErrForbidden)

	w, err := f.svc.Add(f.tech, ManualInput{Category: "admin", Description: "reports", DurationMinutes: 15})
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Delete(f.peer, w.ID), store.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(f.admin, w.ID), store.ErrNotFound)
	require.NoError(t, f.svc.Delete(f.tech, w.ID))
}

func TestListAccess(t *testing.T) {
	f := setup(t)
	f.svc.Record(f.tech, "ticket", "ticket", 1, "x")

	_, err := f.svc.List(f.peer, f.tech.UserID, "", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.svc.List(f.outsider, f.tech.UserID, "", "")
	assert.ErrorIs(t, err, store.ErrNotFound)

	list, err := f.svc.List(f.admin, f.tech.UserID, "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.List(f.tech, 0, "2026-03-31", "2026-03-01")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSummary(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Add(f.tech, ManualInput{Category: "site_visit", Description: "a", DurationMinutes: 60})
	require.NoError(t, err)
	_, err = f.svc.Add(f.tech, ManualInput{Category: "travel", Description: "b", DurationMinutes: 30})
	require.NoError(t, err)
	f.svc.Record(f.tech, "ticket", "ticket", 1, "c")
	_, err = f.svc.Add(f.outsider, ManualInput{Category: "admin", Description: "d", DurationMinutes: 45})
	require.NoError(t, err)

	_, err = f.svc.Summary(f.tech, "", "")
	assert.ErrorIs(t, err, rights.ErrForbidden)

	sum, err := f.svc.Summary(f.admin, "2026-03-10", "2026-03-10")
	require.NoError(t, err)
	require.Len(t, sum, 1)
	assert.Equal(t, "tech", sum[0].Username)
	assert.Equal(t, 90, sum[0].Minutes)
	assert.Equal(t, 3, sum[0].Entries)
}
