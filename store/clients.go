package store

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	ClientPending   = "pending"
	ClientActive    = "active"
	ClientSuspended = "suspended"
)

type Client struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	ContactName  string    `json:"contact_name"`
	ContactEmail string    `json:"contact_email"`
	ContactPhone string    `json:"contact_phone"`
	Address      string    `json:"address"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Site struct {
	ID        int64     `json:"id"`
	ClientID  int64     `json:"client_id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

const clientSelectCols = `id, name, code, contact_name, contact_email, contact_phone, address, status, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (*Client, error) {
	var c Client
	var createdAt, updatedAt any
	if err := row.Scan(&c.ID, &c.Name, &c.Code, &c.ContactName, &c.ContactEmail, &c.ContactPhone,
		&c.Address, &c.Status, &createdAt, &updatedAt); err != nil {
		return nil, notFound(err)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func (db *DB) CreateClient(c *Client) error {
	if c.Status == "" {
		c.Status = ClientPending
	}
	id, err := db.insert(`INSERT INTO clients (name, code, contact_name, contact_email, contact_phone, address, status) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Code, c.ContactName, c.ContactEmail, c.ContactPhone, c.Address, c.Status)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	c.ID = id
	return nil
}

func (db *DB) UpdateClient(c *Client) error {
	return mustAffect(db.exec(`UPDATE clients SET name=?, contact_name=?, contact_email=?, contact_phone=?, address=?, updated_at=datetime('now') WHERE id=?`,
		c.Name, c.ContactName, c.ContactEmail, c.ContactPhone, c.Address, c.ID))
}

func (db *DB) SetClientStatus(id int64, status string) error {
	return mustAffect(db.exec(`UPDATE clients SET status=?, updated_at=datetime('now') WHERE id=?`, status, id))
}

func (db *DB) DeleteClient(id int64) error {
	return mustAffect(db.exec(`DELETE FROM clients WHERE id=?`, id))
}

func (db *DB) GetClient(id int64) (*Client, error) {
	return scanClient(db.queryRow(fmt.Sprintf(`SELECT %s FROM clients WHERE id=?`, clientSelectCols), id))
}

func (db *DB) GetClientByCode(code string) (*Client, error) {
	return scanClient(db.queryRow(fmt.Sprintf(`SELECT %s FROM clients WHERE code=?`, clientSelectCols), code))
}

// ListClients returns clients, optionally filtered by status.
func (db *DB) ListClients(status string) ([]*Client, error) {
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = db.query(fmt.Sprintf(`SELECT %s FROM clients WHERE status=? ORDER BY name`, clientSelectCols), status)
	} else {
		rows, err = db.query(fmt.Sprintf(`SELECT %s FROM clients ORDER BY name`, clientSelectCols))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var clients []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// --- Sites ---

const siteSelectCols = `id, client_id, name, code, address, active, created_at`

func scanSite(row interface{ Scan(...any) error }) (*Site, error) {
	var s Site
	var createdAt any
	if err := row.Scan(&s.ID, &s.ClientID, &s.Name, &s.Code, &s.Address, &s.Active, &createdAt); err != nil {
		return nil, notFound(err)
	}
	s.CreatedAt = parseTime(createdAt)
	return &s, nil
}

func (db *DB) CreateSite(s *Site) error {
	id, err := db.insert(`INSERT INTO sites (client_id, name, code, address, active) VALUES (?, ?, ?, ?, ?)`,
		s.ClientID, s.Name, s.Code, s.Address, s.Active)
	if err != nil {
		return fmt.Errorf("create site: %w", err)
	}
	s.ID = id
	return nil
}

func (db *DB) UpdateSite(s *Site) error {
	return mustAffect(db.exec(`UPDATE sites SET name=?, code=?, address=?, active=? WHERE id=?`,
		s.Name, s.Code, s.Address, s.Active, s.ID))
}

func (db *DB) DeleteSite(id int64) error {
	return mustAffect(db.exec(`DELETE FROM sites WHERE id=?`, id))
}

func (db *DB) GetSite(id int64) (*Site, error) {
	return scanSite(db.queryRow(fmt.Sprintf(`SELECT %s FROM sites WHERE id=?`, siteSelectCols), id))
}

func (db *DB) GetSiteByCode(clientID int64, code string) (*Site, error) {
	return scanSite(db.queryRow(fmt.Sprintf(`SELECT %s FROM sites WHERE client_id=? AND code=?`, siteSelectCols), clientID, code))
}

func (db *DB) ListSites(clientID int64) ([]*Site, error) {
	rows, err := db.query(fmt.Sprintf(`SELECT %s FROM sites WHERE client_id=? ORDER BY name`, siteSelectCols), clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sites []*Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}
