package users

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketops/config"
	"ticketops/rights"
	"ticketops/store"
)

func setup(t *testing.T) (*Service, *store.DB, *store.Client) {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = rights.SeedDefaults(db)
	require.NoError(t, err)
	perms := rights.NewPermCache()
	require.NoError(t, perms.Refresh(db))

	c := &store.Client{Name: "Acme", Code: "ACME", Status: store.ClientActive}
	require.NoError(t, db.CreateClient(c))
	return NewService(db, perms), db, c
}

func TestAuthenticate(t *testing.T) {
	svc, db, c := setup(t)
	u, err := svc.Create(rights.System, Input{Username: "alice", Password: "secret-pass", Role: rights.RoleAdmin, ClientID: &c.ID})
	require.NoError(t, err)

	got, err := svc.Authenticate("alice", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	reloaded, err := db.GetUser(u.ID)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.LastLoginAt)

	_, err = svc.Authenticate("alice", "wrong-pass")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = svc.Authenticate("nobody", "secret-pass")
	assert.ErrorIs(t, err, ErrBadCredentials)

	require.NoError(t, db.SetClientStatus(c.ID, store.ClientSuspended))
	_, err = svc.Authenticate("alice", "secret-pass")
	assert.ErrorIs(t, err, ErrBadCredentials, "suspended client")
}

func TestTenantAdminRules(t *testing.T) {
	svc, db, c := setup(t)
	other := &store.Client{Name: "Other", Code: "OTHER", Status: store.ClientActive}
	require.NoError(t, db.CreateClient(other))

	admin := rights.Actor{UserID: 99, Username: "boss", ClientID: c.ID, Role: rights.RoleAdmin}

	// Tenant admins always create inside their own client.
	u, err := svc.Create(admin, Input{Username: "tech", Password: "secret-pass", Role: rights.RoleTechnician, ClientID: &other.ID})
	require.NoError(t, err)
	require.NotNil(t, u.ClientID)
	assert.Equal(t, c.ID, *u.ClientID)

	_, err = svc.Create(admin, Input{Username: "root2", Password: "secret-pass", Role: rights.RoleSuperAdmin})
	assert.ErrorIs(t, err, rights.ErrForbidden)

	_, err = svc.Create(admin, Input{Username: "tech", Password: "secret-pass", Role: rights.RoleViewer})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Create(admin, Input{Username: "short", Password: "x", Role: rights.RoleViewer})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Create(admin, Input{Username: "bad", Password: "secret-pass", Role: "owner"})
	assert.ErrorIs(t, err, ErrInvalid)

	foreign, err := svc.Create(rights.System, Input{Username: "foreign", Password: "secret-pass", Role: rights.RoleViewer, ClientID: &other.ID})
	require.NoError(t, err)
	_, err = svc.Get(admin, foreign.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	list, err := svc.List(admin, other.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "tech", list[0].Username)

	all, err := svc.List(rights.System, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSiteMustBelongToClient(t *testing.T) {
	svc, db, c := setup(t)
	other := &store.Client{Name: "Other", Code: "OTHER", Status: store.ClientActive}
	require.NoError(t, db.CreateClient(other))
	site := &store.Site{ClientID: other.ID, Name: "HQ", Code: "HQ", Active: true}
	require.NoError(t, db.CreateSite(site))

	_, err := svc.Create(rights.System, Input{Username: "t", Password: "secret-pass", Role: rights.RoleTechnician, ClientID: &c.ID, SiteID: &site.ID})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestUpdateAndDelete(t *testing.T) {
	svc, _, c := setup(t)
	u, err := svc.Create(rights.System, Input{Username: "eng", Password: "secret-pass", Role: rights.RoleEngineer, ClientID: &c.ID})
	require.NoError(t, err)
	self := ActorFor(u)

	inactive := false
	_, err = svc.Update(self, u.ID, Input{Active: &inactive})
	assert.ErrorIs(t, err, ErrSelf)

	updated, err := svc.Update(rights.System, u.ID, Input{FullName: " Eng One ", Email: "eng@example.com", Role: rights.RoleTechnician})
	require.NoError(t, err)
	assert.Equal(t, "Eng One", updated.FullName)
	assert.Equal(t, rights.RoleTechnician, updated.Role)
	assert.True(t, updated.Active)

	_, err = svc.Update(rights.System, u.ID, Input{Role: rights.RoleSuperAdmin})
	assert.ErrorIs(t, err, ErrInvalid)

	assert.ErrorIs(t, svc.Delete(self, u.ID), ErrSelf)
	require.NoError(t, svc.Delete(rights.System, u.ID))
	_, err = svc.Get(rights.System, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetPassword(t *testing.T) {
	svc, _, c := setup(t)
	a, err := svc.Create(rights.System, Input{Username: "a", Password: "secret-pass", Role: rights.RoleTechnician, ClientID: &c.ID})
	require.NoError(t, err)
	b, err := svc.Create(rights.System, Input{Username: "b", Password: "secret-pass", Role: rights.RoleTechnician, ClientID: &c.ID})
	require.NoError(t, err)

	require.NoError(t, svc.SetPassword(ActorFor(a), a.ID, "new-password"))
	_, err = svc.Authenticate("a", "new-password")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.SetPassword(ActorFor(a), b.ID, "new-password"), rights.ErrForbidden)

	admin := rights.Actor{UserID: 50, ClientID: c.ID, Role: rights.RoleAdmin}
	require.NoError(t, svc.SetPassword(admin, b.ID, "reset-password"))
	_, err = svc.Authenticate("b", "reset-password")
	require.NoError(t, err)
}

func TestEnsureAndCreateAdmin(t *testing.T) {
	svc, _, _ := setup(t)
	created, err := svc.EnsureAdmin("admin", "admin-pass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin("admin", "admin-pass")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = svc.CreateAdmin("admin", "other-pass", false)
	assert.ErrorIs(t, err, ErrConflict)

	u, err := svc.CreateAdmin("admin", "other-pass", true)
	require.NoError(t, err)
	assert.Equal(t, rights.RoleSuperAdmin, u.Role)
	assert.Nil(t, u.ClientID)
	_, err = svc.Authenticate("admin", "other-pass")
	require.NoError(t, err)
}

func TestSetPermissions(t *testing.T) {
	svc, _, c := setup(t)
	admin := rights.Actor{UserID: 5, ClientID: c.ID, Role: rights.RoleAdmin}
	viewer := rights.Actor{UserID: 6, ClientID: c.ID, Role: rights.RoleViewer}

	perms := []store.Permission{{Module: rights.ModuleTickets, Action: rights.ActionView}}
	assert.ErrorIs(t, svc.SetPermissions(viewer, rights.RoleViewer, perms), rights.ErrForbidden)
	assert.ErrorIs(t, svc.SetPermissions(admin, rights.RoleAdmin, perms), rights.ErrForbidden)

	require.NoError(t, svc.SetPermissions(admin, rights.RoleViewer, perms))
	assert.Equal(t, []string{rights.ModuleTickets}, svc.Menu(rights.RoleViewer))
	assert.NoError(t, svc.Check(viewer, rights.ModuleTickets, rights.ActionView))
	assert.True(t, errors.Is(svc.Check(viewer, rights.ModuleAssets, rights.ActionView), rights.ErrForbidden))

	err := svc.SetPermissions(admin, rights.RoleViewer, []store.Permission{{Module: "bogus", Action: rights.ActionView}})
	assert.ErrorIs(t, err, ErrInvalid)
}
