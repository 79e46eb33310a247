// Package tickets implements the ticket lifecycle: creation with SLA due
// times, assignment, the status machine, comments and sweeps.
package tickets

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ticketops/rights"
	"ticketops/settings"
	"ticketops/store"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalid           = errors.New("invalid ticket")
)

// Input carries the caller-supplied fields for Create and Update.
type Input struct {
	ClientID    int64  `json:"client_id"`
	SiteID      *int64 `json:"site_id"`
	AssetID     *int64 `json:"asset_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	AssignedTo  *int64 `json:"assigned_to"`
}

type Service struct {
	db       *store.DB
	settings *settings.Service
	emitter  Emitter
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	notified map[int64]bool // overdue tickets already announced
}

func NewService(db *store.DB, s *settings.Service, emitter Emitter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:       db,
		settings: s,
		emitter:  emitter,
		log:      log.Named("tickets"),
		now:      func() time.Time { return time.Now().UTC() },
		notified: make(map[int64]bool),
	}
}

// Get returns a ticket the actor may see; other tenants' tickets read as not found.
func (s *Service) Get(actor rights.Actor, id int64) (*store.Ticket, error) {
	t, err := s.db.GetTicket(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(t.ClientID) {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (s *Service) List(actor rights.Actor, f store.TicketFilter) ([]*store.Ticket, error) {
	if !actor.IsSuperAdmin() {
		f.ClientID = actor.ClientID
	}
	return s.db.ListTickets(f)
}

func (s *Service) History(actor rights.Actor, id int64) ([]*store.TicketHistory, error) {
	if _, err := s.Get(actor, id); err != nil {
		return nil, err
	}
	return s.db.ListTicketHistory(id)
}

// resolveRefs checks that site and asset belong to the client, and fills the
// site from the asset when only the asset is given.
func (s *Service) resolveRefs(clientID int64, in *Input) error {
	if in.AssetID != nil {
		a, err := s.db.GetAsset(*in.AssetID)
		if err != nil || a.ClientID != clientID {
			return fmt.Errorf("%w: unknown asset %d", ErrInvalid, *in.AssetID)
		}
		if in.SiteID == nil {
			in.SiteID = a.SiteID
		}
	}
	if in.SiteID != nil {
		site, err := s.db.GetSite(*in.SiteID)
		if err != nil || site.ClientID != clientID {
			return fmt.Errorf("%w: unknown site %d", ErrInvalid, *in.SiteID)
		}
	}
	return nil
}

func validateInput(in *Input) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if in.Category == "" {
		in.Category = "other"
	}
	if !slices.Contains(Categories, in.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, in.Category)
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !slices.Contains(Priorities, in.Priority) {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, in.Priority)
	}
	return nil
}

// checkAssignee returns the assignee if they are an active, non-viewer user of the client.
func (s *Service) checkAssignee(clientID, userID int64) (*store.User, error) {
	u, err := s.db.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown assignee %d", ErrInvalid, userID)
	}
	if !u.Active || u.Role == rights.RoleViewer || (u.ClientID != nil && *u.ClientID != clientID) {
		return nil, fmt.Errorf("%w: user %s cannot be assigned", ErrInvalid, u.Username)
	}
	return u, nil
}

func (s *Service) dueAt(priority string, from time.Time) *time.Time {
	due := from.Add(time.Duration(s.settings.SLAHours(priority)) * time.Hour)
	return &due
}

// Create opens a ticket with due_at = created_at + the priority's SLA hours.
func (s *Service) Create(actor rights.Actor, in Input) (*store.Ticket, error) {
	return s.create(actor, in, SourceManual)
}

func (s *Service) create(actor rights.Actor, in Input, source string) (*store.Ticket, error) {
	clientID := in.ClientID
	if !actor.IsSuperAdmin() {
		clientID = actor.ClientID
	}
	if clientID == 0 {
		return nil, fmt.Errorf("%w: client is required", ErrInvalid)
	}
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	if err := s.resolveRefs(clientID, &in); err != nil {
		return nil, err
	}
	status := StatusOpen
	if in.AssignedTo != nil {
		if _, err := s.checkAssignee(clientID, *in.AssignedTo); err != nil {
			return nil, err
		}
		status = StatusAssigned
	}

	number, err := s.db.NextNumber(store.PrefixTicket)
	if err != nil {
		return nil, err
	}
	now := s.now().Truncate(time.Second)
	t := &store.Ticket{
		Number:      number,
		ClientID:    clientID,
		SiteID:      in.SiteID,
		AssetID:     in.AssetID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Priority:    in.Priority,
		Status:      status,
		Source:      source,
		AssignedTo:  in.AssignedTo,
		DueAt:       s.dueAt(in.Priority, now),
		CreatedAt:   now,
	}
	if actor.UserID > 0 {
		t.ReportedBy = &actor.UserID
	}
	if err := s.db.CreateTicket(t, actor.Name()); err != nil {
		return nil, err
	}
	s.emitter.EmitTicketCreated(t, actor)
	if t.AssignedTo != nil {
		s.emitter.EmitTicketAssigned(t, *t.AssignedTo, actor)
	}
	return t, nil
}

// Update edits descriptive fields. A priority change recomputes the due time
// from the original creation time.
func (s *Service) Update(actor rights.Actor, id int64, in Input) (*store.Ticket, error) {
	t, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}
	if IsDone(t.Status) {
		return nil, fmt.Errorf("%w: ticket is %s", ErrInvalid, t.Status)
	}
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	if err := s.resolveRefs(t.ClientID, &in); err != nil {
		return nil, err
	}
	if in.Priority != t.Priority {
		t.DueAt = s.dueAt(in.Priority, t.CreatedAt)
	}
	t.SiteID, t.AssetID = in.SiteID, in.AssetID
	t.Title, t.Description = in.Title, in.Description
	t.Category, t.Priority = in.Category, in.Priority
	if err := s.db.UpdateTicket(t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) Delete(actor rights.Actor, id int64) error {
	if _, err := s.Get(actor, id); err != nil {
		return err
	}
	return s.db.DeleteTicket(id)
}

// Assign sets the assignee. open and reopened tickets move to assigned;
// tickets already being worked keep their status.
func (s *Service) Assign(actor rights.Actor, id, userID int64) (*store.Ticket, error) {
	t, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}
	u, err := s.checkAssignee(t.ClientID, userID)
	if err != nil {
		return nil, err
	}
	from := t.Status
	switch from {
	case StatusOpen, StatusReopened:
		t.Status = StatusAssigned
	case StatusAssigned, StatusInProgress, StatusOnHold:
	default:
		return nil, fmt.Errorf("%w: cannot assign a %s ticket", ErrInvalidTransition, from)
	}
	t.AssignedTo = &u.ID
	err = s.db.WithTx(func(tx *store.DB) error {
		if err := tx.SaveTicketState(t); err != nil {
			return err
		}
		return tx.AppendTicketHistory(t.ID, from, t.Status, "assigned to "+u.Username, actor.Name())
	})
	if err != nil {
		return nil, err
	}
	s.emitter.EmitTicketAssigned(t, u.ID, actor)
	if from != t.Status {
		s.emitter.EmitTicketStatusChanged(t, from, t.Status, "assigned to "+u.Username, actor)
	}
	return t, nil
}

// Transition moves the ticket along the status table and records history.
func (s *Service) Transition(actor rights.Actor, id int64, to, note string) (*store.Ticket, error) {
	t, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}
	return s.transition(actor, t, to, note)
}

func (s *Service) transition(actor rights.Actor, t *store.Ticket, to, note string) (*store.Ticket, error) {
	from := t.Status
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	now := s.now().Truncate(time.Second)
	switch to {
	case StatusAssigned:
		if t.AssignedTo == nil {
			return nil, fmt.Errorf("%w: assign a user to move to assigned", ErrInvalidTransition)
		}
	case StatusOpen:
		t.AssignedTo = nil
	case StatusInProgress:
		t.ResolvedAt = nil
		if t.AssignedTo == nil && actor.UserID > 0 && actor.Role != rights.RoleViewer {
			t.AssignedTo = &actor.UserID
		}
	case StatusResolved:
		t.ResolvedAt = &now
	case StatusClosed:
		t.ClosedAt = &now
	case StatusReopened:
		t.ResolvedAt = nil
		t.ClosedAt = nil
	case StatusCancelled:
		t.ClosedAt = &now
	}
	t.Status = to
	err := s.db.WithTx(func(tx *store.DB) error {
		if err := tx.SaveTicketState(t); err != nil {
			return err
		}
		return tx.AppendTicketHistory(t.ID, from, to, note, actor.Name())
	})
	if err != nil {
		return nil, err
	}
	if IsDone(to) {
		s.forgetOverdue(t.ID)
	}
	s.emitter.EmitTicketStatusChanged(t, from, to, note, actor)
	return t, nil
}

// Comment appends a comment. Internal notes are hidden from viewers.
func (s *Service) Comment(actor rights.Actor, id int64, body string, internal bool) (*store.TicketComment, error) {
	t, err := s.Get(actor, id)
	if err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: comment body is required", ErrInvalid)
	}
	c := &store.TicketComment{TicketID: t.ID, Author: actor.Name(), Body: body, Internal: internal}
	if actor.UserID > 0 {
		c.AuthorID = &actor.UserID
	}
	if err := s.db.AddTicketComment(c); err != nil {
		return nil, err
	}
	s.emitter.EmitTicketCommented(t, c, actor)
	return c, nil
}

func (s *Service) Comments(actor rights.Actor, id int64) ([]*store.TicketComment, error) {
	if _, err := s.Get(actor, id); err != nil {
		return nil, err
	}
	return s.db.ListTicketComments(id, actor.Role != rights.RoleViewer)
}
