package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrInsufficientStock is returned when a deduction would drop a quantity below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

const (
	ConditionNew         = "new"
	ConditionRefurbished = "refurbished"
	ConditionFaulty      = "faulty"
)

type StockItem struct {
	ID          int64     `json:"id"`
	ClientID    int64     `json:"client_id"`
	SiteID      int64     `json:"site_id"`
	ItemCode    string    `json:"item_code"`
	Description string    `json:"description"`
	AssetType   string    `json:"asset_type"`
	Make        string    `json:"make"`
	Model       string    `json:"model"`
	Condition   string    `json:"condition"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type StockFilter struct {
	ClientID  int64
	SiteID    int64
	ItemCode  string
	Condition string
	InStock   bool
}

const stockSelectCols = `id, client_id, site_id, item_code, description, asset_type, make, model, item_condition, quantity, created_at, updated_at`

func scanStockItem(row interface{ Scan(...any) error }) (*StockItem, error) {
	var s StockItem
	var createdAt, updatedAt any
	err := row.Scan(&s.ID, &s.ClientID, &s.SiteID, &s.ItemCode, &s.Description, &s.AssetType, &s.Make, &s.Model,
		&s.Condition, &s.Quantity, &createdAt, &updatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func scanStockItems(rows *sql.Rows) ([]*StockItem, error) {
	var items []*StockItem
	for rows.Next() {
		s, err := scanStockItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (db *DB) CreateStockItem(s *StockItem) error {
	if s.Condition == "" {
		s.Condition = ConditionNew
	}
	id, err := db.insert(`INSERT INTO stock_items (client_id, site_id, item_code, description, asset_type, make, model, item_condition, quantity) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ClientID, s.SiteID, s.ItemCode, s.Description, s.AssetType, s.Make, s.Model, s.Condition, s.Quantity)
	if err != nil {
		return fmt.Errorf("create stock item: %w", err)
	}
	s.ID = id
	return nil
}

// UpdateStockItem saves descriptive fields; quantities only move through AdjustStock.
func (db *DB) UpdateStockItem(s *StockItem) error {
	return mustAffect(db.exec(`UPDATE stock_items SET description=?, asset_type=?, make=?, model=?, updated_at=datetime('now') WHERE id=?`,
		s.Description, s.AssetType, s.Make, s.Model, s.ID))
}

func (db *DB) DeleteStockItem(id int64) error {
	return mustAffect(db.exec(`DELETE FROM stock_items WHERE id=?`, id))
}

func (db *DB) GetStockItem(id int64) (*StockItem, error) {
	return scanStockItem(db.queryRow(fmt.Sprintf(`SELECT %s FROM stock_items WHERE id=?`, stockSelectCols), id))
}

func (db *DB) FindStockItem(siteID int64, itemCode, condition string) (*StockItem, error) {
	return scanStockItem(db.queryRow(fmt.Sprintf(`SELECT %s FROM stock_items WHERE site_id=? AND item_code=? AND item_condition=?`, stockSelectCols),
		siteID, itemCode, condition))
}

func (db *DB) ListStock(f StockFilter) ([]*StockItem, error) {
	var c conds
	if f.ClientID > 0 {
		c.add("client_id=?", f.ClientID)
	}
	if f.SiteID > 0 {
		c.add("site_id=?", f.SiteID)
	}
	if f.ItemCode != "" {
		c.add("item_code=?", f.ItemCode)
	}
	if f.Condition != "" {
		c.add("item_condition=?", f.Condition)
	}
	if f.InStock {
		c.add("quantity>?", 0)
	}
	rows, err := db.query(fmt.Sprintf(`SELECT %s FROM stock_items%s ORDER BY site_id, item_code, item_condition`, stockSelectCols, c.where()), c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStockItems(rows)
}

// AdjustStock adds delta to an item's quantity, refusing to go below zero.
func (db *DB) AdjustStock(id int64, delta int) error {
	res, err := db.exec(`UPDATE stock_items SET quantity=quantity+?, updated_at=datetime('now') WHERE id=? AND quantity+? >= 0`, delta, id, delta)
	if err := mustAffect(res, err); err != ErrNotFound {
		return err
	}
	if _, err := db.GetStockItem(id); err != nil {
		return err
	}
	return ErrInsufficientStock
}

// CreditStock adds qty of like at siteID, creating the row when the site has none.
func (db *DB) CreditStock(like *StockItem, siteID int64, condition string, qty int) (*StockItem, error) {
	item, err := db.FindStockItem(siteID, like.ItemCode, condition)
	if errors.Is(err, ErrNotFound) {
		item = &StockItem{
			ClientID:    like.ClientID,
			SiteID:      siteID,
			ItemCode:    like.ItemCode,
			Description: like.Description,
			AssetType:   like.AssetType,
			Make:        like.Make,
			Model:       like.Model,
			Condition:   condition,
		}
		if err := db.CreateStockItem(item); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	if err := db.AdjustStock(item.ID, qty); err != nil {
		return nil, err
	}
	item.Quantity += qty
	return item, nil
}

// ClearSiteStock zeroes every non-empty item at a site and returns them with
// their previous quantities.
func (db *DB) ClearSiteStock(siteID int64) ([]*StockItem, error) {
	var cleared []*StockItem
	err := db.WithTx(func(tx *DB) error {
		rows, err := tx.query(fmt.Sprintf(`SELECT %s FROM stock_items WHERE site_id=? AND quantity>0`, stockSelectCols), siteID)
		if err != nil {
			return err
		}
		cleared, err = scanStockItems(rows)
		rows.Close()
		if err != nil {
			return err
		}
		_, err = tx.exec(`UPDATE stock_items SET quantity=0, updated_at=datetime('now') WHERE site_id=?`, siteID)
		return err
	})
	return cleared, err
}

// --- Stock transfers ---

const (
	TransferPending    = "pending"
	TransferDispatched = "dispatched"
	TransferInTransit  = "in_transit"
	TransferCompleted  = "completed"
	TransferCancelled  = "cancelled"
)

type StockTransfer struct {
	ID           int64                `json:"id"`
	Number       string               `json:"number"`
	ClientID     int64                `json:"client_id"`
	FromSiteID   int64                `json:"from_site_id"`
	ToSiteID     int64                `json:"to_site_id"`
	Status       string               `json:"status"`
	RequestedBy  *int64               `json:"requested_by,omitempty"`
	Courier      string               `json:"courier"`
	TrackingNo   string               `json:"tracking_no"`
	Notes        string               `json:"notes"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	DispatchedAt *time.Time           `json:"dispatched_at,omitempty"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	CancelledAt  *time.Time           `json:"cancelled_at,omitempty"`
	Items        []*StockTransferItem `json:"items"`
}

type StockTransferItem struct {
	ID           int64  `json:"id"`
	TransferID   int64  `json:"transfer_id"`
	SourceItemID int64  `json:"source_item_id"`
	ItemCode     string `json:"item_code"`
	Condition    string `json:"condition"`
	Quantity     int    `json:"quantity"`
}

type TransferFilter struct {
	ClientID int64
	SiteID   int64
	Status   string
	Limit    int
}

const transferSelectCols = `id, number, client_id, from_site_id, to_site_id, status, requested_by, courier, tracking_no, notes, created_at, updated_at, dispatched_at, completed_at, cancelled_at`

func scanTransfer(row interface{ Scan(...any) error }) (*StockTransfer, error) {
	var t StockTransfer
	var requestedBy sql.NullInt64
	var createdAt, updatedAt, dispatchedAt, completedAt, cancelledAt any
	err := row.Scan(&t.ID, &t.Number, &t.ClientID, &t.FromSiteID, &t.ToSiteID, &t.Status, &requestedBy,
		&t.Courier, &t.TrackingNo, &t.Notes, &createdAt, &updatedAt, &dispatchedAt, &completedAt, &cancelledAt)
	if err != nil {
		return nil, notFound(err)
	}
	t.RequestedBy = intPtr(requestedBy)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	t.DispatchedAt = parseTimePtr(dispatchedAt)
	t.CompletedAt = parseTimePtr(completedAt)
	t.CancelledAt = parseTimePtr(cancelledAt)
	return &t, nil
}

// CreateTransfer inserts the transfer header and its lines in one transaction.
func (db *DB) CreateTransfer(t *StockTransfer) error {
	if t.Status == "" {
		t.Status = TransferPending
	}
	return db.WithTx(func(tx *DB) error {
		id, err := tx.insert(`INSERT INTO stock_transfers (number, client_id, from_site_id, to_site_id, status, requested_by, courier, tracking_no, notes) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Number, t.ClientID, t.FromSiteID, t.ToSiteID, t.Status, nullInt(t.RequestedBy), t.Courier, t.TrackingNo, t.Notes)
		if err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}
		t.ID = id
		for _, it := range t.Items {
			it.TransferID = id
			itemID, err := tx.insert(`INSERT INTO stock_transfer_items (transfer_id, source_item_id, item_code, item_condition, quantity) VALUES (?, ?, ?, ?, ?)`,
				id, it.SourceItemID, it.ItemCode, it.Condition, it.Quantity)
			if err != nil {
				return fmt.Errorf("create transfer item %s: %w", it.ItemCode, err)
			}
			it.ID = itemID
		}
		return nil
	})
}

func (db *DB) GetTransfer(id int64) (*StockTransfer, error) {
	t, err := scanTransfer(db.queryRow(fmt.Sprintf(`SELECT %s FROM stock_transfers WHERE id=?`, transferSelectCols), id))
	if err != nil {
		return nil, err
	}
	t.Items, err = db.ListTransferItems(id)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (db *DB) ListTransferItems(transferID int64) ([]*StockTransferItem, error) {
	rows, err := db.query(`SELECT id, transfer_id, source_item_id, item_code, item_condition, quantity FROM stock_transfer_items WHERE transfer_id=? ORDER BY id`, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*StockTransferItem
	for rows.Next() {
		var it StockTransferItem
		if err := rows.Scan(&it.ID, &it.TransferID, &it.SourceItemID, &it.ItemCode, &it.Condition, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

// ListTransfers lists headers only; SiteID matches either end.
func (db *DB) ListTransfers(f TransferFilter) ([]*StockTransfer, error) {
	var c conds
	if f.ClientID > 0 {
		c.add("client_id=?", f.ClientID)
	}
	if f.SiteID > 0 {
		c.clauses = append(c.clauses, "(from_site_id=? OR to_site_id=?)")
		c.args = append(c.args, f.SiteID, f.SiteID)
	}
	if f.Status != "" {
		c.add("status=?", f.Status)
	}
	args := append(c.args, limitOr(f.Limit, 500))
	rows, err := db.query(fmt.Sprintf(`SELECT %s FROM stock_transfers%s ORDER BY id DESC LIMIT ?`, transferSelectCols, c.where()), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*StockTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaveTransferState writes status, courier details and lifecycle timestamps.
func (db *DB) SaveTransferState(t *StockTransfer) error {
	return mustAffect(db.exec(`UPDATE stock_transfers SET status=?, courier=?, tracking_no=?, notes=?, dispatched_at=?, completed_at=?, cancelled_at=?, updated_at=datetime('now') WHERE id=?`,
		t.Status, t.Courier, t.TrackingNo, t.Notes, tsPtr(t.DispatchedAt), tsPtr(t.CompletedAt), tsPtr(t.CancelledAt), t.ID))
}
