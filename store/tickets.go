package store

import (
	"database/sql"
	"fmt"
	"time"
)

type Ticket struct {
	ID          int64      `json:"id"`
	Number      string     `json:"number"`
	ClientID    int64      `json:"client_id"`
	SiteID      *int64     `json:"site_id,omitempty"`
	AssetID     *int64     `json:"asset_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	Source      string     `json:"source"`
	ReportedBy  *int64     `json:"reported_by,omitempty"`
	AssignedTo  *int64     `json:"assigned_to,omitempty"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

type TicketHistory struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Detail     string    `json:"detail"`
	Actor      string    `json:"actor"`
	CreatedAt  time.Time `json:"created_at"`
}

type TicketComment struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	AuthorID  *int64    `json:"author_id,omitempty"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Internal  bool      `json:"internal"`
	CreatedAt time.Time `json:"created_at"`
}

type TicketFilter struct {
	ClientID   int64
	SiteID     int64
	AssetID    int64
	AssignedTo int64
	Status     string
	Priority   string
	Limit      int
}

// Statuses after which a ticket no longer counts as open work.
var ticketDoneStatuses = []any{"resolved", "closed", "cancelled"}

const ticketSelectCols = `id, number, client_id, site_id, asset_id, title, description, category, priority, status, source, reported_by, assigned_to, due_at, created_at, updated_at, resolved_at, closed_at`

func scanTicket(row interface{ Scan(...any) error }) (*Ticket, error) {
	var t Ticket
	var siteID, assetID, reportedBy, assignedTo sql.NullInt64
	var dueAt, createdAt, updatedAt, resolvedAt, closedAt any
	err := row.Scan(&t.ID, &t.Number, &t.ClientID, &siteID, &assetID, &t.Title, &t.Description,
		&t.Category, &t.Priority, &t.Status, &t.Source, &reportedBy, &assignedTo,
		&dueAt, &createdAt, &updatedAt, &resolvedAt, &closedAt)
	if err != nil {
		return nil, notFound(err)
	}
	t.SiteID = intPtr(siteID)
	t.AssetID = intPtr(assetID)
	t.ReportedBy = intPtr(reportedBy)
	t.AssignedTo = intPtr(assignedTo)
	t.DueAt = parseTimePtr(dueAt)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	t.ResolvedAt = parseTimePtr(resolvedAt)
	t.ClosedAt = parseTimePtr(closedAt)
	return &t, nil
}

func scanTickets(rows *sql.Rows) ([]*Ticket, error) {
	var tickets []*Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// CreateTicket inserts the ticket with its CreatedAt (defaulting to now) and
// records the initial history row.
func (db *DB) CreateTicket(t *Ticket, actor string) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.UpdatedAt = t.CreatedAt
	return db.WithTx(func(tx *DB) error {
		id, err := tx.insert(`INSERT INTO tickets (number, client_id, site_id, asset_id, title, description, category, priority, status, source, reported_by, assigned_to, due_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Number, t.ClientID, nullInt(t.SiteID), nullInt(t.AssetID), t.Title, t.Description,
			t.Category, t.Priority, t.Status, t.Source, nullInt(t.ReportedBy), nullInt(t.AssignedTo),
			tsPtr(t.DueAt), ts(t.CreatedAt), ts(t.UpdatedAt))
		if err != nil {
			return fmt.Errorf("create ticket: %w", err)
		}
		t.ID = id
		return tx.AppendTicketHistory(id, "", t.Status, "ticket created", actor)
	})
}

// UpdateTicket saves the editable fields.
func (db *DB) UpdateTicket(t *Ticket) error {
	return mustAffect(db.exec(`UPDATE tickets SET site_id=?, asset_id=?, title=?, description=?, category=?, priority=?, due_at=?, updated_at=datetime('now') WHERE id=?`,
		nullInt(t.SiteID), nullInt(t.AssetID), t.Title, t.Description, t.Category, t.Priority, tsPtr(t.DueAt), t.ID))
}

// SaveTicketState writes status, assignee and lifecycle timestamps.
func (db *DB) SaveTicketState(t *Ticket) error {
	return mustAffect(db.exec(`UPDATE tickets SET status=?, assigned_to=?, resolved_at=?, closed_at=?, updated_at=datetime('now') WHERE id=?`,
		t.Status, nullInt(t.AssignedTo), tsPtr(t.ResolvedAt), tsPtr(t.ClosedAt), t.ID))
}

func (db *DB) DeleteTicket(id int64) error {
	return mustAffect(db.exec(`DELETE FROM tickets WHERE id=?`, id))
}

func (db *DB) GetTicket(id int64) (*Ticket, error) {
	return scanTicket(db.queryRow(fmt.Sprintf(`SELECT %s FROM tickets WHERE id=?`, ticketSelectCols), id))
}

func (db *DB) GetTicketByNumber(number string) (*Ticket, error) {
	return scanTicket(db.queryRow(fmt.Sprintf(`SELECT %s FROM tickets WHERE number=?`, ticketSelectCols), number))
}

func (db *DB) ListTickets(f TicketFilter) ([]*Ticket, error) {
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
	if f.AssignedTo > 0 {
		c.add("assigned_to=?", f.AssignedTo)
	}
	if f.Status != "" {
		c.add("status=?", f.Status)
	}
	if f.Priority != "" {
		c.add("priority=?", f.Priority)
	}
	args := append(c.args, limitOr(f.Limit, 500))
	rows, err := db.query(fmt.Sprintf(`SELECT %s FROM tickets%s ORDER BY id DESC LIMIT ?`, ticketSelectCols, c.where()), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// ListOverdueTickets returns unfinished tickets whose due time is before now.
func (db *DB) ListOverdueTickets(now time.Time) ([]*Ticket, error) {
	args := append([]any{ts(now)}, ticketDoneStatuses...)
	rows, err := db.query(fmt.Sprintf(`SELECT %s FROM tickets WHERE due_at IS NOT NULL AND due_at < ? AND status NOT IN %s ORDER BY due_at`,
		ticketSelectCols, placeholders(len(ticketDoneStatuses))), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// ListResolvedBefore returns tickets resolved before cutoff and still in resolved.
func (db *DB) ListResolvedBefore(cutoff time.Time) ([]*Ticket, error) {
	rows, err := db.query(fmt.Sprintf(`SELECT %s FROM tickets WHERE status='resolved' AND resolved_at IS NOT NULL AND resolved_at < ? ORDER BY id`, ticketSelectCols), ts(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// FindOpenTicketForAsset returns the newest unfinished ticket on an asset.
func (db *DB) FindOpenTicketForAsset(assetID int64) (*Ticket, error) {
	args := append([]any{assetID}, ticketDoneStatuses...)
	return scanTicket(db.queryRow(fmt.Sprintf(`SELECT %s FROM tickets WHERE asset_id=? AND status NOT IN %s ORDER BY id DESC LIMIT 1`,
		ticketSelectCols, placeholders(len(ticketDoneStatuses))), args...))
}

// CountTicketsByStatus returns status -> count for a client (0 = all).
func (db *DB) CountTicketsByStatus(clientID int64) (map[string]int, error) {
	var c conds
	if clientID > 0 {
		c.add("client_id=?", clientID)
	}
	rows, err := db.query(fmt.Sprintf(`SELECT status, COUNT(*) FROM tickets%s GROUP BY status`, c.where()), c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// --- History ---

func (db *DB) AppendTicketHistory(ticketID int64, from, to, detail, actor string) error {
	_, err := db.exec(`INSERT INTO ticket_history (ticket_id, from_status, to_status, detail, actor) VALUES (?, ?, ?, ?, ?)`,
		ticketID, from, to, detail, actor)
	return err
}

func (db *DB) ListTicketHistory(ticketID int64) ([]*TicketHistory, error) {
	rows, err := db.query(`SELECT id, ticket_id, from_status, to_status, detail, actor, created_at FROM ticket_history WHERE ticket_id=? ORDER BY id`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []*TicketHistory
	for rows.Next() {
		var h TicketHistory
		var createdAt any
		if err := rows.Scan(&h.ID, &h.TicketID, &h.FromStatus, &h.ToStatus, &h.Detail, &h.Actor, &createdAt); err != nil {
			return nil, err
		}
		h.CreatedAt = parseTime(createdAt)
		history = append(history, &h)
	}
	return history, rows.Err()
}

// --- Comments ---

func (db *DB) AddTicketComment(c *TicketComment) error {
	id, err := db.insert(`INSERT INTO ticket_comments (ticket_id, author_id, author, body, internal) VALUES (?, ?, ?, ?, ?)`,
		c.TicketID, nullInt(c.AuthorID), c.Author, c.Body, c.Internal)
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	c.ID = id
	return nil
}

// ListTicketComments returns comments oldest first; internal notes only when asked.
func (db *DB) ListTicketComments(ticketID int64, includeInternal bool) ([]*TicketComment, error) {
	q := `SELECT id, ticket_id, author_id, author, body, internal, created_at FROM ticket_comments WHERE ticket_id=?`
	args := []any{ticketID}
	if !includeInternal {
		q += ` AND internal=?`
		args = append(args, false)
	}
	rows, err := db.query(q+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var comments []*TicketComment
	for rows.Next() {
		var c TicketComment
		var authorID sql.NullInt64
		var createdAt any
		if err := rows.Scan(&c.ID, &c.TicketID, &authorID, &c.Author, &c.Body, &c.Internal, &createdAt); err != nil {
			return nil, err
		}
		c.AuthorID = intPtr(authorID)
		c.CreatedAt = parseTime(createdAt)
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}
