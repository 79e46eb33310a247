package store

import (
	"database/sql"
	"fmt"
	"time"
)

type RMA struct {
	ID                int64      `json:"id"`
	Number            string     `json:"number"`
	ClientID          int64      `json:"client_id"`
	SiteID            *int64     `json:"site_id,omitempty"`
	AssetID           int64      `json:"asset_id"`
	TicketID          *int64     `json:"ticket_id,omitempty"`
	Type              string     `json:"rma_type"`
	Vendor            string     `json:"vendor"`
	FaultDescription  string     `json:"fault_description"`
	Status            string     `json:"status"`
	RepairStatus      string     `json:"repair_status"`
	ReplacementStatus string     `json:"replacement_status"`
	ReplacementItemID *int64     `json:"replacement_item_id,omitempty"`
	Courier           string     `json:"courier"`
	OutboundTracking  string     `json:"outbound_tracking"`
	ReturnTracking    string     `json:"return_tracking"`
	CreatedBy         *int64     `json:"created_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
}

type RMAHistory struct {
	ID         int64     `json:"id"`
	RMAID      int64     `json:"rma_id"`
	Track      string    `json:"track"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Detail     string    `json:"detail"`
	Actor      string    `json:"actor"`
	CreatedAt  time.Time `json:"created_at"`
}

type RMAFilter struct {
	ClientID int64
	SiteID   int64
	AssetID  int64
	Status   string
	Limit    int
}

const rmaSelectCols = `id, number, client_id, site_id, asset_id, ticket_id, rma_type, vendor, fault_description, status, repair_status, replacement_status, replacement_item_id, courier, outbound_tracking, return_tracking, created_by, created_at, updated_at, closed_at`

func scanRMA(row interface{ Scan(...any) error }) (*RMA, error) {
	var r RMA
	var siteID, ticketID, replItemID, createdBy sql.NullInt64
	var createdAt, updatedAt, closedAt any
	err := row.Scan(&r.ID, &r.Number, &r.ClientID, &siteID, &r.AssetID, &ticketID, &r.Type, &r.Vendor,
		&r.FaultDescription, &r.Status, &r.RepairStatus, &r.ReplacementStatus, &replItemID,
		&r.Courier, &r.OutboundTracking, &r.ReturnTracking, &createdBy, &createdAt, &updatedAt, &closedAt)
	if err != nil {
		return nil, notFound(err)
	}
	r.SiteID = intPtr(siteID)
	r.TicketID = intPtr(ticketID)
	r.ReplacementItemID = intPtr(replItemID)
	r.CreatedBy = intPtr(createdBy)
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	r.ClosedAt = parseTimePtr(closedAt)
	return &r, nil
}

func (db *DB) CreateRMA(r *RMA) error {
	id, err := db.insert(`INSERT INTO rmas (number, client_id, site_id, asset_id, ticket_id, rma_type, vendor, fault_description, status, repair_status, replacement_status, replacement_item_id, courier, outbound_tracking, return_tracking, created_by) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Number, r.ClientID, nullInt(r.SiteID), r.AssetID, nullInt(r.TicketID), r.Type, r.Vendor, r.FaultDescription,
		r.Status, r.RepairStatus, r.ReplacementStatus, nullInt(r.ReplacementItemID),
		r.Courier, r.OutboundTracking, r.ReturnTracking, nullInt(r.CreatedBy))
	if err != nil {
		return fmt.Errorf("create rma: %w", err)
	}
	r.ID = id
	return nil
}

// UpdateRMADetails saves the descriptive and shipping fields.
func (db *DB) UpdateRMADetails(r *RMA) error {
	return mustAffect(db.exec(`UPDATE rmas SET vendor=?, fault_description=?, courier=?, outbound_tracking=?, return_tracking=?, replacement_item_id=?, updated_at=datetime('now') WHERE id=?`,
		r.Vendor, r.FaultDescription, r.Courier, r.OutboundTracking, r.ReturnTracking, nullInt(r.ReplacementItemID), r.ID))
}

// SaveRMAState writes both track statuses and the derived overall status.
func (db *DB) SaveRMAState(r *RMA) error {
	return mustAffect(db.exec(`UPDATE rmas SET status=?, repair_status=?, replacement_status=?, replacement_item_id=?, courier=?, outbound_tracking=?, return_tracking=?, closed_at=?, updated_at=datetime('now') WHERE id=?`,
		r.Status, r.RepairStatus, r.ReplacementStatus, nullInt(r.ReplacementItemID),
		r.Courier, r.OutboundTracking, r.ReturnTracking, tsPtr(r.ClosedAt), r.ID))
}

func (db *DB) GetRMA(id int64) (*RMA, error) {
	return scanRMA(db.queryRow(fmt.Sprintf(`SELECT %s FROM rmas WHERE id=?`, rmaSelectCols), id))
}

func (db *DB) GetRMAByNumber(number string) (*RMA, error) {
	return scanRMA(db.queryRow(fmt.Sprintf(`SELECT %s FROM rmas WHERE number=?`, rmaSelectCols), number))
}

// FindActiveRMAForAsset returns an RMA on the asset that is neither closed nor cancelled.
func (db *DB) FindActiveRMAForAsset(assetID int64) (*RMA, error) {
	return scanRMA(db.queryRow(fmt.Sprintf(`SELECT %s FROM rmas WHERE asset_id=? AND status NOT IN ('closed', 'cancelled') ORDER BY id DESC LIMIT 1`, rmaSelectCols), assetID))
}

func (db *DB) ListRMAs(f RMAFilter) ([]*RMA, error) {
	var c conds
	if f.ClientID > 0 {
		c.add("client_id=?", f.ClientID)
	}
	if f.SiteID > 0 {
		c.add("site_id=?", f.SiteID)
	}
	if f.AssetID > 0 {
		c.add("asset_id=?", f.AssetID)
	}
	if f.Status != "" {
		c.add("status=?", f.Status)
	}
	args := append(c.args, limitOr(f.Limit, 500))
	rows, err := db.query(fmt.Sprintf(`SELECT %s FROM rmas%s ORDER BY id DESC LIMIT ?`, rmaSelectCols, c.where()), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*RMA
	for rows.Next() {
		r, err := scanRMA(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) AppendRMAHistory(rmaID int64, track, from, to, detail, actor string) error {
	_, err := db.exec(`INSERT INTO rma_history (rma_id, track, from_status, to_status, detail, actor) VALUES (?, ?, ?, ?, ?, ?)`,
		rmaID, track, from, to, detail, actor)
	return err
}

func (db *DB) ListRMAHistory(rmaID int64) ([]*RMAHistory, error) {
	rows, err := db.query(`SELECT id, rma_id, track, from_status, to_status, detail, actor, created_at FROM rma_history WHERE rma_id=? ORDER BY id`, rmaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*RMAHistory
	for rows.Next() {
		var h RMAHistory
		var createdAt any
		if err := rows.Scan(&h.ID, &h.RMAID, &h.Track, &h.FromStatus, &h.ToStatus, &h.Detail, &h.Actor, &createdAt); err != nil {
			return nil, err
		}
		h.CreatedAt = parseTime(createdAt)
		out = append(out, &h)
	}
	return out, rows.Err()
}
