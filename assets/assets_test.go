package assets

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketops/config"
	"ticketops/rights"
	"ticketops/store"
)

type mockEmitter struct {
	changed   []string
	submitted int
	reviewed  []string
}

func (m *mockEmitter) EmitAssetChanged(_ *store.Asset, action string, _ rights.Actor) {
	m.changed = append(m.changed, action)
}
func (m *mockEmitter) EmitAssetRequestSubmitted(*store.AssetUpdateRequest, *store.Asset, rights.Actor) {
	m.submitted++
}
func (m *mockEmitter) EmitAssetRequestReviewed(r *store.AssetUpdateRequest, _ *store.Asset, _ rights.Actor) {
	m.reviewed = append(m.reviewed, r.Status)
}

type fixture struct {
	svc   *Service
	db    *store.DB
	em    *mockEmitter
	site  *store.Site
	admin rights.Actor
	tech  rights.Actor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := &store.Client{Name: "Acme", Code: "ACME", Status: store.ClientActive}
	require.NoError(t, db.CreateClient(c))
	site := &store.Site{ClientID: c.ID, Name: "HQ", Code: "HQ", Active: true}
	require.NoError(t, db.CreateSite(site))
	admin := &store.User{ClientID: &c.ID, Username: "boss", PasswordHash: "x", Role: rights.RoleAdmin, Active: true}
	tech := &store.User{ClientID: &c.ID, Username: "tech", PasswordHash: "x", Role: rights.RoleTechnician, Active: true}
	require.NoError(t, db.CreateUser(admin))
	require.NoError(t, db.CreateUser(tech))

	em := &mockEmitter{}
	return &fixture{
		svc: NewService(db, em), db: db, em: em, site: site,
		admin: rights.Actor{UserID: admin.ID, Username: "boss", ClientID: c.ID, Role: rights.RoleAdmin},
		tech:  rights.Actor{UserID: tech.ID, Username: "tech", ClientID: c.ID, Role: rights.RoleTechnician},
	}
}

func TestCreateAndDirectUpdate(t *testing.T) {
	f := setup(t)

	a := &store.Asset{Code: "CAM-01", SiteID: &f.site.ID, AssetType: "camera"}
	require.NoError(t, f.svc.Create(f.admin, a))
	assert.Equal(t, store.AssetActive, a.Status)

	assert.ErrorIs(t, f.svc.Create(f.admin, &store.Asset{Code: "CAM-01"}), ErrConflict)
	assert.ErrorIs(t, f.svc.Create(f.admin, &store.Asset{Code: "CAM-02", Status: "lost"}), ErrInvalid)

	a.Location = "Gate 2"
	assert.ErrorIs(t, f.svc.Update(f.tech, a), rights.ErrForbidden)
	require.NoError(t, f.svc.Update(f.admin, a))
	got, _ := f.db.GetAsset(a.ID)
	assert.Equal(t, "Gate 2", got.Location)
	assert.Equal(t, []string{"created", "updated"}, f.em.changed)
}

func TestUpdateRequestApproval(t *testing.T) {
	f := setup(t)
	a := &store.Asset{Code: "CAM-01", Location: "Lobby", IPAddress: "10.0.0.1"}
	require.NoError(t, f.svc.Create(f.admin, a))

	_, err := f.svc.SubmitRequest(f.tech, a.ID, map[string]string{"status": "spare"}, "")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = f.svc.SubmitRequest(f.tech, a.ID, map[string]string{"ip_address": "not-an-ip"}, "")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = f.svc.SubmitRequest(f.tech, a.ID, map[string]string{"warranty_until": "next year"}, "")
	assert.ErrorIs(t, err, ErrInvalid)

	changes := map[string]string{
		"location":       "Car park",
		"ip_address":     "10.0.0.2",
		"site_id":        strconv.FormatInt(f.site.ID, 10),
		"warranty_until": "2028-01-31",
	}
	r, err := f.svc.SubmitRequest(f.tech, a.ID, changes, "moved during refit")
	require.NoError(t, err)
	assert.Equal(t, store.RequestPending, r.Status)

	_, err = f.svc.SubmitRequest(f.tech, a.ID, map[string]string{"notes": "x"}, "")
	assert.ErrorIs(t, err, ErrPendingRequest)

	_, err = f.svc.Approve(f.tech, r.ID, "")
	assert.ErrorIs(t, err, rights.ErrForbidden)

	_, err = f.svc.Approve(f.admin, r.ID, "ok")
	require.NoError(t, err)

	got, _ := f.db.GetAsset(a.ID)
	assert.Equal(t, "Car park", got.Location)
	assert.Equal(t, "10.0.0.2", got.IPAddress)
	require.NotNil(t, got.SiteID)
	assert.Equal(t, f.site.ID, *got.SiteID)
	require.NotNil(t, got.WarrantyUntil)
	assert.Equal(t, "2028-01-31", got.WarrantyUntil.Format("2006-01-02"))

	audit, _ := f.db.ListEntityAudit("asset", a.ID)
	assert.Len(t, audit, 4)

	_, err = f.svc.Approve(f.admin, r.ID, "")
	assert.ErrorIs(t, err, ErrConflict)

	// the asset is free for a new request once reviewed
	r2, err := f.svc.SubmitRequest(f.tech, a.ID, map[string]string{"notes": "lens cracked"}, "")
	require.NoError(t, err)
	_, err = f.svc.Reject(f.admin, r2.ID, "")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = f.svc.Reject(f.admin, r2.ID, "raise a ticket instead")
	require.NoError(t, err)
	got, _ = f.db.GetAsset(a.ID)
	assert.Equal(t, "", got.Notes)
	assert.Equal(t, []string{store.RequestApproved, store.RequestRejected}, f.em.reviewed)
}

func TestApplyChangesSkipsUnchanged(t *testing.T) {
	a := &store.Asset{Make: "Axis", Model: "P3245"}
	diffs, err := applyChanges(a, map[string]string{"make": "Axis", "model": "P3265"})
	require.NoError(t, err)
	assert.Equal(t, []Change{{Field: "model", Old: "P3245", New: "P3265"}}, diffs)
}

func TestDeleteBlockedByActiveRMA(t *testing.T) {
	f := setup(t)
	a := &store.Asset{Code: "NVR-1"}
	require.NoError(t, f.svc.Create(f.admin, a))
	rma := &store.RMA{Number: "RMA-000001", ClientID: a.ClientID, AssetID: a.ID, Type: "repair",
		Status: "open", RepairStatus: "pending", ReplacementStatus: "not_required"}
	require.NoError(t, f.db.CreateRMA(rma))

	assert.ErrorIs(t, f.svc.Delete(f.admin, a.ID), ErrConflict)
}
