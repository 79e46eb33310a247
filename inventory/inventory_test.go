package inventory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketops/config"
	"ticketops/rights"
	"ticketops/store"
)

type mockEmitter struct {
	adjusted    []int
	transitions []string
	cleared     int
}

func (m *mockEmitter) EmitStockAdjusted(_ *store.StockItem, delta int, _ string, _ rights.Actor) {
	m.adjusted = append(m.adjusted, delta)
}
func (m *mockEmitter) EmitTransferStatusChanged(_ *store.StockTransfer, _, to string, _ rights.Actor) {
	m.transitions = append(m.transitions, to)
}
func (m *mockEmitter) EmitStockCleared(_, _ int64, items int, _ rights.Actor) {
	m.cleared += items
}

type fixture struct {
	svc          *Service
	db           *store.DB
	em           *mockEmitter
	hq, branch   *store.Site
	otherSite    *store.Site
	admin, clerk rights.Actor
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
	other := &store.Client{Name: "Globex", Code: "GLBX", Status: store.ClientActive}
	require.NoError(t, db.CreateClient(other))

	hq := &store.Site{ClientID: c.ID, Name: "HQ", Code: "HQ", Active: true}
	branch := &store.Site{ClientID: c.ID, Name: "Branch", Code: "BR", Active: true}
	plant := &store.Site{ClientID: other.ID, Name: "Plant", Code: "PL", Active: true}
	for _, s := range []*store.Site{hq, branch, plant} {
		require.NoError(t, db.CreateSite(s))
	}

	em := &mockEmitter{}
	return &fixture{
		svc: NewService(db, em), db: db, em: em,
		hq: hq, branch: branch, otherSite: plant,
		admin: rights.Actor{UserID: 0, Username: "boss", ClientID: c.ID, Role: rights.RoleAdmin},
		clerk: rights.Actor{UserID: 0, Username: "clerk", ClientID: c.ID, Role: rights.RoleTechnician},
	}
}

func (f *fixture) item(t *testing.T, site *store.Site, code string, qty int) *store.StockItem {
	t.Helper()
	it := &store.StockItem{SiteID: site.ID, ItemCode: code, Description: code, Quantity: qty}
	require.NoError(t, f.svc.CreateItem(f.admin, it))
	return it
}

func (f *fixture) qty(t *testing.T, id int64) int {
	t.Helper()
	it, err := f.db.GetStockItem(id)
	require.NoError(t, err)
	return it.Quantity
}

func TestCreateItemValidation(t *testing.T) {
	f := setup(t)
	it := f.item(t, f.hq, "CAM-4MP", 5)
	assert.Equal(t, store.ConditionNew, it.Condition)
	assert.Equal(t, []int{5}, f.em.adjusted)

	assert.ErrorIs(t, f.svc.CreateItem(f.admin, &store.StockItem{SiteID: f.hq.ID, ItemCode: "CAM-4MP"}), ErrConflict)
	assert.ErrorIs(t, f.svc.CreateItem(f.admin, &store.StockItem{SiteID: f.hq.ID, ItemCode: " "}), ErrInvalid)
	assert.ErrorIs(t, f.svc.CreateItem(f.admin, &store.StockItem{SiteID: f.hq.ID, ItemCode: "X", Condition: "used"}), ErrInvalid)
	assert.ErrorIs(t, f.svc.CreateItem(f.admin, &store.StockItem{SiteID: f.otherSite.ID, ItemCode: "X"}), ErrInvalid)

	// same code in another condition is a separate line
	require.NoError(t, f.svc.CreateItem(f.admin, &store.StockItem{SiteID: f.hq.ID, ItemCode: "CAM-4MP", Condition: store.ConditionRefurbished}))
}

func TestAdjustNeverNegative(t *testing.T) {
	f := setup(t)
	it := f.item(t, f.hq, "NVR", 2)

	_, err := f.svc.Adjust(f.clerk, it.ID, -3, "used on site")
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, f.qty(t, it.ID))

	got, err := f.svc.Adjust(f.clerk, it.ID, -2, "used on site")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)

	_, err = f.svc.Adjust(f.clerk, it.ID, 1, "")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = f.svc.Adjust(f.clerk, it.ID, 0, "noop")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDeleteItemRequiresEmpty(t *testing.T) {
	f := setup(t)
	it := f.item(t, f.hq, "PSU", 1)
	assert.ErrorIs(t, f.svc.DeleteItem(f.admin, it.ID), ErrConflict)
	_, err := f.svc.Adjust(f.admin, it.ID, -1, "faulty")
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteItem(f.admin, it.ID))
}

func TestTenantIsolation(t *testing.T) {
	f := setup(t)
	it := f.item(t, f.hq, "CAM", 1)
	outsider := rights.Actor{Username: "x", ClientID: f.otherSite.ClientID, Role: rights.RoleAdmin}
	_, err := f.svc.Item(outsider, it.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	items, err := f.svc.Items(outsider, store.StockFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestTransferLifecycle(t *testing.T) {
	f := setup(t)
	cam := f.item(t, f.hq, "CAM", 10)
	nvr := f.item(t, f.hq, "NVR", 2)

	tr, err := f.svc.CreateTransfer(f.clerk, TransferInput{
		FromSiteID: f.hq.ID, ToSiteID: f.branch.ID,
		Lines: []TransferLine{{ItemID: cam.ID, Quantity: 3}, {ItemID: nvr.ID, Quantity: 1}, {ItemID: cam.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "TRF-000001", tr.Number)
	require.Len(t, tr.Items, 2)
	assert.Equal(t, 4, tr.Items[0].Quantity)
	assert.Equal(t, 10, f.qty(t, cam.ID), "pending transfer does not move stock")

	_, err = f.svc.Complete(f.clerk, tr.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	tr, err = f.svc.Dispatch(f.clerk, tr.ID, Shipping{Courier: "DHL", TrackingNo: "1Z"})
	require.NoError(t, err)
	assert.Equal(t, 6, f.qty(t, cam.ID))
	assert.Equal(t, 1, f.qty(t, nvr.ID))
	assert.NotNil(t, tr.DispatchedAt)

	_, err = f.svc.MarkInTransit(f.clerk, tr.ID)
	require.NoError(t, err)
	tr, err = f.svc.Complete(f.clerk, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TransferCompleted, tr.Status)

	dest, err := f.db.FindStockItem(f.branch.ID, "CAM", store.ConditionNew)
	require.NoError(t, err)
	assert.Equal(t, 4, dest.Quantity)
	assert.Equal(t, f.hq.ClientID, dest.ClientID)

	assert.Equal(t, []string{store.TransferPending, store.TransferDispatched, store.TransferInTransit, store.TransferCompleted}, f.em.transitions)

	_, err = f.svc.Cancel(f.clerk, tr.ID, "too late")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransferValidation(t *testing.T) {
	f := setup(t)
	cam := f.item(t, f.hq, "CAM", 1)

	cases := []struct {
		name string
		in   TransferInput
		want error
	}{
		{"same site", TransferInput{FromSiteID: f.hq.ID, ToSiteID: f.hq.ID, Lines: []TransferLine{{cam.ID, 1}}}, ErrInvalid},
		{"cross client", TransferInput{FromSiteID: f.hq.ID, ToSiteID: f.otherSite.ID, Lines: []TransferLine{{cam.ID, 1}}}, ErrInvalid},
		{"no lines", TransferInput{FromSiteID: f.hq.ID, ToSiteID: f.branch.ID}, ErrInvalid},
		{"zero qty", TransferInput{FromSiteID: f.hq.ID, ToSiteID: f.branch.ID, Lines: []TransferLine{{cam.ID, 0}}}, ErrInvalid},
		{"wrong site", TransferInput{FromSiteID: f.branch.ID, ToSiteID: f.hq.ID, Lines: []TransferLine{{cam.ID, 1}}}, ErrInvalid},
		{"short", TransferInput{FromSiteID: f.hq.ID, ToSiteID: f.branch.ID, Lines: []TransferLine{{cam.ID, 2}}}, ErrInsufficientStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateTransfer(f.clerk, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDispatchIsAtomic(t *testing.T) {
	f := setup(t)
	cam := f.item(t, f.hq, "CAM", 5)
	nvr := f.item(t, f.hq, "NVR", 1)

	tr, err := f.svc.CreateTransfer(f.clerk, TransferInput{
		FromSiteID: f.hq.ID, ToSiteID: f.branch.ID,
		Lines: []TransferLine{{ItemID: cam.ID, Quantity: 2}, {ItemID: nvr.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	// stock consumed elsewhere after the transfer was raised
	_, err = f.svc.Adjust(f.admin, nvr.ID, -1, "installed")
	require.NoError(t, err)

	_, err = f.svc.Dispatch(f.clerk, tr.ID, Shipping{})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 5, f.qty(t, cam.ID))

	got, err := f.svc.Transfer(f.clerk, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, store.TransferPending, got.Status)
}

func TestCancelAfterDispatchReturnsStock(t *testing.T) {
	f := setup(t)
	cam := f.item(t, f.hq, "CAM", 5)
	tr, err := f.svc.CreateTransfer(f.clerk, TransferInput{
		FromSiteID: f.hq.ID, ToSiteID: f.branch.ID,
		Lines: []TransferLine{{ItemID: cam.ID, Quantity: 3}},
	})
	require.NoError(t, err)
	_, err = f.svc.Dispatch(f.clerk, tr.ID, Shipping{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.qty(t, cam.ID))

	tr, err = f.svc.Cancel(f.clerk, tr.ID, "wrong parts")
	require.NoError(t, err)
	assert.Equal(t, store.TransferCancelled, tr.Status)
	assert.Equal(t, "wrong parts", tr.Notes)
	assert.Equal(t, 5, f.qty(t, cam.ID))
}

func TestClearStock(t *testing.T) {
	f := setup(t)
	a := f.item(t, f.hq, "CAM", 5)
	f.item(t, f.hq, "NVR", 0)
	b := f.item(t, f.hq, "PSU", 2)
	keep := f.item(t, f.branch, "CAM", 7)

	_, err := f.svc.ClearStock(f.clerk, f.hq.ID)
	assert.ErrorIs(t, err, rights.ErrForbidden)

	n, err := f.svc.ClearStock(f.admin, f.hq.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, f.em.cleared)
	assert.Equal(t, 0, f.qty(t, a.ID))
	assert.Equal(t, 0, f.qty(t, b.ID))
	assert.Equal(t, 7, f.qty(t, keep.ID))

	entries, err := f.db.ListEntityAudit("stock_item", a.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cleared", entries[0].Action)
	assert.Equal(t, "5", entries[0].OldValue)
}
