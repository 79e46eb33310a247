package store

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	AssetActive         = "active"
	AssetFaulty         = "faulty"
	AssetUnderRMA       = "under_rma"
	AssetSpare          = "spare"
	AssetDecommissioned = "decommissioned"
)

type Asset struct {
	ID            int64      `json:"id"`
	ClientID      int64      `json:"client_id"`
	SiteID        *int64     `json:"site_id,omitempty"`
	Code          string     `json:"code"`
	SerialNumber  string     `json:"serial_number"`
	AssetType     string     `json:"asset_type"`
	Make          string     `json:"make"`
	Model         string     `json:"model"`
	Location      string     `json:"location"`
	IPAddress     string     `json:"ip_address"`
	Status        string     `json:"status"`
	InstalledAt   *time.Time `json:"installed_at,omitempty"`
	WarrantyUntil *time.Time `json:"warranty_until,omitempty"`
	Notes         string     `json:"notes"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type AssetFilter struct {
	ClientID  int64
	SiteID    int64
	Status    string
	AssetType string
	Search    string
	Limit     int
}

const assetSelectCols = `id, client_id, site_id, code, serial_number, asset_type, make, model, location, ip_address, status, installed_at, warranty_until, notes, created_at, updated_at`

func scanAsset(row interface{ Scan(...any) error }) (*Asset, error) {
	var a Asset
	var siteID sql.NullInt64
	var installedAt, warrantyUntil, createdAt, updatedAt any
	err := row.Scan(&a.ID, &a.ClientID, &siteID, &a.Code, &a.SerialNumber, &a.AssetType, &a.Make, &a.Model,
		&a.Location, &a.IPAddress, &a.Status, &installedAt, &warrantyUntil, &a.Notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	a.SiteID = intPtr(siteID)
	a.InstalledAt = parseTimePtr(installedAt)
	a.WarrantyUntil = parseTimePtr(warrantyUntil)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

func (db *DB) CreateAsset(a *Asset) error {
	if a.Status == "" {
		a.Status = AssetActive
	}
	id, err := db.insert(`INSERT INTO assets (client_id, site_id, code, serial_number, asset_type, make, model, location, ip_address, status, installed_at, warranty_until, notes) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ClientID, nullInt(a.SiteID), a.Code, a.SerialNumber, a.AssetType, a.Make, a.Model,
		a.Location, a.IPAddress, a.Status, tsPtr(a.InstalledAt), tsPtr(a.WarrantyUntil), a.Notes)
	if err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	a.ID = id
	return nil
}

func (db *DB) UpdateAsset(a *Asset) error {
	return mustAffect(db.exec(`UPDATE assets SET site_id=?, code=?, serial_number=?, asset_type=?, make=?, model=?, location=?, ip_address=?, status=?, installed_at=?, warranty_until=?, notes=?, updated_at=datetime('now') WHERE id=?`,
		nullInt(a.SiteID), a.Code, a.SerialNumber, a.AssetType, a.Make, a.Model, a.Location, a.IPAddress,
		a.Status, tsPtr(a.InstalledAt), tsPtr(a.WarrantyUntil), a.Notes, a.ID))
}

func (db *DB) SetAssetStatus(id int64, status string) error {
	return mustAffect(db.exec(`UPDATE assets SET status=?, updated_at=datetime('now') WHERE id=?`, status, id))
}

func (db *DB) DeleteAsset(id int64) error {
	return mustAffect(db.exec(`DELETE FROM assets WHERE id=?`, id))
}

func (db *DB) GetAsset(id int64) (*Asset, error) {
	return scanAsset(db.queryRow(fmt.Sprintf(`SELECT %s FROM assets WHERE id=?`, assetSelectCols), id))
}

func (db *DB) GetAssetByCode(clientID int64, code string) (*Asset, error) {
	return scanAsset(db.queryRow(fmt.Sprintf(`SELECT %s FROM assets WHERE client_id=? AND code=?`, assetSelectCols), clientID, code))
}

// FindAssetByDevice matches an alerting device by serial number first, then IP.
func (db *DB) FindAssetByDevice(serial, ip string) (*Asset, error) {
	if serial != "" {
		a, err := scanAsset(db.queryRow(fmt.Sprintf(`SELECT %s FROM assets WHERE serial_number=? ORDER BY id LIMIT 1`, assetSelectCols), serial))
		if err == nil || ip == "" {
			return a, err
		}
	}
	if ip == "" {
		return nil, ErrNotFound
	}
	return scanAsset(db.queryRow(fmt.Sprintf(`SELECT %s FROM assets WHERE ip_address=? AND status<>? ORDER BY id LIMIT 1`, assetSelectCols), ip, AssetDecommissioned))
}

func (db *DB) ListAssets(f AssetFilter) ([]*Asset, error) {
	var c conds
	if f.ClientID > 0 {
		c.add("client_id=?", f.ClientID)
	}
	if f.SiteID > 0 {
		c.add("site_id=?", f.SiteID)
	}
	if f.Status != "" {
		c.add("status=?", f.Status)
	}
	if f.AssetType != "" {
		c.add("asset_type=?", f.AssetType)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		c.clauses = append(c.clauses, "(code LIKE ? OR serial_number LIKE ? OR location LIKE ?)")
		c.args = append(c.args, like, like, like)
	}
	args := append(c.args, limitOr(f.Limit, 1000))
	rows, err := db.query(fmt.Sprintf(`SELECT %s FROM assets%s ORDER BY code LIMIT ?`, assetSelectCols, c.where()), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assets []*Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// --- Asset update requests ---

const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

type AssetUpdateRequest struct {
	ID          int64      `json:"id"`
	AssetID     int64      `json:"asset_id"`
	ClientID    int64      `json:"client_id"`
	RequestedBy int64      `json:"requested_by"`
	ChangesJSON string     `json:"changes_json"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	ReviewedBy  *int64     `json:"reviewed_by,omitempty"`
	ReviewNote  string     `json:"review_note"`
	CreatedAt   time.Time  `json:"created_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
}

const aurSelectCols = `id, asset_id, client_id, requested_by, changes_json, reason, status, reviewed_by, review_note, created_at, reviewed_at`

func scanAssetUpdateRequest(row interface{ Scan(...any) error }) (*AssetUpdateRequest, error) {
	var r AssetUpdateRequest
	var reviewedBy sql.NullInt64
	var createdAt, reviewedAt any
	err := row.Scan(&r.ID, &r.AssetID, &r.ClientID, &r.RequestedBy, &r.ChangesJSON, &r.Reason, &r.Status,
		&reviewedBy, &r.ReviewNote, &createdAt, &reviewedAt)
	if err != nil {
		return nil, notFound(err)
	}
	r.ReviewedBy = intPtr(reviewedBy)
	r.CreatedAt = parseTime(createdAt)
	r.ReviewedAt = parseTimePtr(reviewedAt)
	return &r, nil
}

func (db *DB) CreateAssetUpdateRequest(r *AssetUpdateRequest) error {
	r.Status = RequestPending
	id, err := db.insert(`INSERT INTO asset_update_requests (asset_id, client_id, requested_by, changes_json, reason, status) VALUES (?, ?, ?, ?, ?, ?)`,
		r.AssetID, r.ClientID, r.RequestedBy, r.ChangesJSON, r.Reason, r.Status)
	if err != nil {
		return fmt.Errorf("create asset update request: %w", err)
	}
	r.ID = id
	return nil
}

func (db *DB) GetAssetUpdateRequest(id int64) (*AssetUpdateRequest, error) {
	return scanAssetUpdateRequest(db.queryRow(fmt.Sprintf(`SELECT %s FROM asset_update_requests WHERE id=?`, aurSelectCols), id))
}

// PendingRequestForAsset returns the open request on an asset, or ErrNotFound.
func (db *DB) PendingRequestForAsset(assetID int64) (*AssetUpdateRequest, error) {
	return scanAssetUpdateRequest(db.queryRow(fmt.Sprintf(`SELECT %s FROM asset_update_requests WHERE asset_id=? AND status=? LIMIT 1`, aurSelectCols), assetID, RequestPending))
}

// ReviewAssetUpdateRequest closes a pending request; ErrNotFound if it was no longer pending.
func (db *DB) ReviewAssetUpdateRequest(id int64, status string, reviewerID int64, note string) error {
	return mustAffect(db.exec(`UPDATE asset_update_requests SET status=?, reviewed_by=?, review_note=?, reviewed_at=datetime('now') WHERE id=? AND status=?`,
		status, reviewerID, note, id, RequestPending))
}

func (db *DB) ListAssetUpdateRequests(clientID int64, status string) ([]*AssetUpdateRequest, error) {
	var c conds
	if clientID > 0 {
		c.add("client_id=?", clientID)
	}
	if status != "" {
		c.add("status=?", status)
	}
	rows, err := db.query(fmt.Sprintf(`SELECT %s FROM asset_update_requests%s ORDER BY id DESC`, aurSelectCols, c.where()), c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*AssetUpdateRequest
	for rows.Next() {
		r, err := scanAssetUpdateRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
