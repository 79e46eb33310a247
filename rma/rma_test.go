package rma

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketops/config"
	"ticketops/rights"
	"ticketops/store"
)

type moved struct{ track, from, to string }

type mockEmitter struct {
	created int
	moves   []moved
}

func (m *mockEmitter) EmitRMACreated(*store.RMA, rights.Actor) { m.created++ }
func (m *mockEmitter) EmitRMAMoved(_ *store.RMA, track, from, to, _ string, _ rights.Actor) {
	m.moves = append(m.moves, moved{track, from, to})
}

type fixture struct {
	svc   *Service
	db    *store.DB
	em    *mockEmitter
	site  *store.Site
	asset *store.Asset
	spare *store.StockItem
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
	asset := &store.Asset{ClientID: c.ID, SiteID: &site.ID, Code: "CAM-01", AssetType: "camera", Model: "DS-2CD", Location: "Gate", Status: store.AssetFaulty}
	require.NoError(t, db.CreateAsset(asset))
	spare := &store.StockItem{ClientID: c.ID, SiteID: site.ID, ItemCode: "DS-2CD", Condition: store.ConditionNew, Quantity: 2}
	require.NoError(t, db.CreateStockItem(spare))
	tech := &store.User{ClientID: &c.ID, Username: "tech", PasswordHash: "x", Role: rights.RoleTechnician, Active: true}
	require.NoError(t, db.CreateUser(tech))

	em := &mockEmitter{}
	return &fixture{
		svc: NewService(db, em), db: db, em: em, site: site, asset: asset, spare: spare,
		tech: rights.Actor{UserID: tech.ID, Username: "tech", ClientID: c.ID, Role: rights.RoleTechnician},
	}
}

func (f *fixture) assetStatus(t *testing.T) *store.Asset {
	t.Helper()
	a, err := f.db.GetAsset(f.asset.ID)
	require.NoError(t, err)
	return a
}

func (f *fixture) walk(t *testing.T, id int64, track string, steps ...string) *store.RMA {
	t.Helper()
	var r *store.RMA
	var err error
	for _, to := range steps {
		if track == TrackRepair {
			r, err = f.svc.MoveRepair(f.tech, id, to, Move{})
		} else {
			r, err = f.svc.MoveReplacement(f.tech, id, to, Move{})
		}
		require.NoError(t, err, "%s -> %s", track, to)
	}
	return r
}

func TestOverall(t *testing.T) {
	cases := []struct {
		repair, replacement, want string
	}{
		{RepairPending, ReplacementNotRequired, StatusOpen},
		{RepairPending, ReplacementRequested, StatusOpen},
		{RepairPending, ReplacementDispatched, StatusInProgress},
		{RepairAtVendor, ReplacementNotRequired, StatusInProgress},
		{RepairReceived, ReplacementNotRequired, StatusClosed},
		{RepairReceived, ReplacementDelivered, StatusInProgress},
		{RepairScrapped, ReplacementInstalled, StatusClosed},
		{RepairReceived, ReplacementCancelled, StatusClosed},
	}
	for _, tc := range cases {
		if got := overall(tc.repair, tc.replacement); got != tc.want {
			t.Errorf("overall(%s, %s) = %s, want %s", tc.repair, tc.replacement, got, tc.want)
		}
	}
}

func TestCanMove(t *testing.T) {
	assert.True(t, CanMove(TrackRepair, RepairAtVendor, RepairBeyondRepair))
	assert.False(t, CanMove(TrackRepair, RepairPending, RepairAtVendor))
	assert.False(t, CanMove(TrackRepair, RepairBeyondRepair, RepairReturnTransit))
	assert.True(t, CanMove(TrackReplacement, ReplacementRequested, ReplacementCancelled))
	assert.False(t, CanMove(TrackReplacement, ReplacementNotRequired, ReplacementDispatched))
	assert.Empty(t, NextSteps(TrackRepair, RepairReceived))
}

func TestCreate(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Create(f.tech, Input{AssetID: f.asset.ID, Type: "swap", FaultDescription: "dead"})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = f.svc.Create(f.tech, Input{AssetID: f.asset.ID, Type: TypeRepair})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = f.svc.Create(f.tech, Input{AssetID: f.asset.ID, Type: TypeRepair, FaultDescription: "x", ReplacementItemID: &f.spare.ID})
	assert.ErrorIs(t, err, ErrInvalid)

	r, err := f.svc.Create(f.tech, Input{AssetID: f.asset.ID, Type: TypeRepair, Vendor: " Hik ", FaultDescription: "no video"})
	require.NoError(t, err)
	assert.Equal(t, "RMA-000001", r.Number)
	assert.Equal(t, StatusOpen, r.Status)
	assert.Equal(t, ReplacementNotRequired, r.ReplacementStatus)
	assert.Equal(t, "Hik", r.Vendor)
	assert.Equal(t, f.site.ID, *r.SiteID)
	assert.Equal(t, store.AssetUnderRMA, f.assetStatus(t).Status)

	_, err = f.svc.Create(f.tech, Input{AssetID: f.asset.ID, Type: TypeRepair, FaultDescription: "again"})
	assert.ErrorIs(t, err, ErrConflict)

	h, err := f.svc.History(f.tech, r.ID)
	require.NoError(t, err)
	assert.Len(t, h, 2)
	assert.Equal(t, 1, f.em.created)

	outsider := rights.Actor{Username: "x", ClientID: r.ClientID + 100, Role: rights.RoleAdmin}
	_, err = f.svc.Get(outsider, r.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRepairOnlyClosesAndReactivates(t *testing.T) {
	f := setup(t)
	r, err := f.svc.Create(f.tech, Input{AssetID: f.asset.ID, Type: TypeRepair, FaultDescription: "no video"})
	require.NoError(t, err)

	_, err = f.svc.MoveReplacement(f.tech, r.ID, ReplacementDispatched, Move{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	r, err = f.svc.MoveRepair(f.tech, r.ID, RepairDispatched, Move{Courier: "DHL", Tracking: "OUT1"})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, r.Status)
	assert.Equal(t, "OUT1", r.OutboundTracking)

	r = f.walk(t, r.ID, TrackRepair, RepairAtVendor, RepairRepaired, RepairReturnTransit, RepairReceived)
	assert.Equal(t, StatusClosed, r.Status)
	assert.NotNil(t, r.ClosedAt)
	assert.Equal(t, store.AssetActive, f.assetStatus(t).Status)

	_, err = f.svc.MoveRepair(f.tech, r.ID, RepairPending, Move{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReplaceFlowReturnsUnitToStock(t *testing.T) {
	f := setup(t)
	r, err := f.svc.Create(f.tech, Input{AssetID: f.asset.ID, Type: TypeReplace, FaultDescription: "ir dead"})
	require.NoError(t, err)
	assert.Equal(t, ReplacementRequested, r.ReplacementStatus)

	_, err = f.svc.MoveReplacement(f.tech, r.ID, ReplacementDispatched, Move{})
	assert.ErrorIs(t, err, ErrInvalid, "no spare chosen yet")

	_, err = f.svc.MoveReplacement(f.tech, r.ID, ReplacementDispatched, Move{ItemID: &f.spare.ID})
	require.NoError(t, err)
	it, _ := f.db.GetStockItem(f.spare.ID)
	assert.Equal(t, 1, it.Quantity)

	f.walk(t, r.ID, TrackReplacement, ReplacementDelivered, ReplacementInstalled)
	a := f.assetStatus(t)
	assert.Equal(t, store.AssetSpare, a.Status)
	assert.Nil(t, a.SiteID)

	r = f.walk(t, r.ID, TrackRepair, RepairDispatched, RepairAtVendor, RepairVendorReplaced, RepairReturnTransit, RepairReceived)
	assert.Equal(t, StatusClosed, r.Status)

	refurb, err := f.db.FindStockItem(f.site.ID, "DS-2CD", store.ConditionRefurbished)
	require.NoError(t, err)
	assert.Equal(t, 1, refurb.Quantity)
	assert.Equal(t, store.AssetSpare, f.assetStatus(t).Status)
}

func TestInstallAfterScrapKeepsAssetDecommissioned(t *testing.T) {
	f := setup(t)
	r, err := f.svc.Create(f.tech, Input{AssetID: f.asset.ID, Type: TypeReplace, FaultDescription: "lightning", ReplacementItemID: &f.spare.ID})
	require.NoError(t, err)

	f.walk(t, r.ID, TrackRepair, RepairDispatched, RepairAtVendor, RepairBeyondRepair, RepairScrapped)
	require.Equal(t, store.AssetDecommissioned, f.assetStatus(t).Status)

	r = f.walk(t, r.ID, TrackReplacement, ReplacementDispatched, ReplacementDelivered, ReplacementInstalled)
	assert.Equal(t, StatusClosed, r.Status)
	a := f.assetStatus(t)
	assert.Equal(t, store.AssetDecommissioned, a.Status)
	require.NotNil(t, a.SiteID)
	assert.Equal(t, f.site.ID, *a.SiteID)

	_, err = f.db.FindStockItem(f.site.ID, "DS-2CD", store.ConditionRefurbished)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestInstallAfterRepairReceivedCreditsStock(t *testing.T) {
	f := setup(t)
	r, err := f.svc.Create(f.tech, Input{AssetID: f.asset.ID, Type: TypeReplace, FaultDescription: "ir dead", ReplacementItemID: &f.spare.ID})
	require.NoError(t, err)

	f.walk(t, r.ID, TrackRepair, RepairDispatched, RepairAtVendor, RepairRepaired, RepairReturnTransit, RepairReceived)
	require.Equal(t, store.AssetActive, f.assetStatus(t).Status)
	_, err = f.db.FindStockItem(f.site.ID, "DS-2CD", store.ConditionRefurbished)
	require.ErrorIs(t, err, store.ErrNotFound)

	r = f.walk(t, r.ID, TrackReplacement, ReplacementDispatched, ReplacementDelivered, ReplacementInstalled)
	assert.Equal(t, StatusClosed, r.Status)
	a := f.assetStatus(t)
	assert.Equal(t, store.AssetSpare, a.Status)
	assert.Nil(t, a.SiteID)

	refurb, err := f.db.FindStockItem(f.site.ID, "DS-2CD", store.ConditionRefurbished)
	require.NoError(t, err)
	assert.Equal(t, 1, refurb.Quantity)
}

func TestScrapDecommissions(t *testing.T) {
	f := setup(t)
	r, err := f.svc.Create(f.tech, Input{AssetID: f.asset.ID, Type: TypeRepair, FaultDescription: "water"})
	require.NoError(t, err)
	r = f.walk(t, r.ID, TrackRepair, RepairDispatched, RepairAtVendor, RepairBeyondRepair, RepairScrapped)
	assert.Equal(t, StatusClosed, r.Status)
	assert.Equal(t, store.AssetDecommissioned, f.assetStatus(t).Status)
}

func TestDispatchWithoutStockRollsBack(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.AdjustStock(f.spare.ID, -2))
	r, err := f.svc.Create(f.tech, Input{AssetID: f.asset.ID, Type: TypeReplace, FaultDescription: "x", ReplacementItemID: &f.spare.ID})
	require.NoError(t, err)

	_, err = f.svc.MoveReplacement(f.tech, r.ID, ReplacementDispatched, Move{})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	got, err := f.svc.Get(f.tech, r.ID)
	require.NoError(t, err)
	assert.Equal(t, ReplacementRequested, got.ReplacementStatus)
	assert.Equal(t, StatusOpen, got.Status)
}

func TestCancel(t *testing.T) {
	f := setup(t)
	r, err := f.svc.Create(f.tech, Input{AssetID: f.asset.ID, Type: TypeReplace, FaultDescription: "x"})
	require.NoError(t, err)

	r, err = f.svc.Cancel(f.tech, r.ID, "false alarm")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, r.Status)
	assert.Equal(t, ReplacementCancelled, r.ReplacementStatus)
	assert.Equal(t, store.AssetFaulty, f.assetStatus(t).Status)
	assert.Equal(t, moved{TrackOverall, StatusOpen, StatusCancelled}, f.em.moves[len(f.em.moves)-1])

	_, err = f.svc.Cancel(f.tech, r.ID, "again")
	assert.ErrorIs(t, err, ErrClosed)

	// a new RMA may be raised once the old one is cancelled
	r2, err := f.svc.Create(f.tech, Input{AssetID: f.asset.ID, Type: TypeRepair, FaultDescription: "y"})
	require.NoError(t, err)
	f.walk(t, r2.ID, TrackRepair, RepairDispatched)
	_, err = f.svc.Cancel(f.tech, r2.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
