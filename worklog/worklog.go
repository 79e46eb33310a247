// Package worklog keeps each user's daily activity journal.
package worklog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"ticketops/rights"
	"ticketops/store"
)

var ErrInvalid = errors.New("invalid work log entry")

const maxMinutes = 24 * 60

// Categories accepted on manual entries.
var Categories = []string{"site_visit", "remote_support", "maintenance", "installation", "admin", "travel", "training", "other"}

type Service struct {
	db  *store.DB
	log *zap.Logger
	now func() time.Time
}

func NewService(db *store.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log.Named("worklog"), now: time.Now}
}

// Record adds a system entry for something the actor did. Actions by the
// system actor are not journaled.
func (s *Service) Record(actor rights.Actor, category, entityType string, entityID int64, description string) {
	if actor.UserID <= 0 {
		return
	}
	w := &store.WorkLog{
		UserID:      actor.UserID,
		LogDate:     store.Day(s.now()),
		Source:      store.WorkLogSystem,
		Category:    category,
		Description: description,
		EntityType:  entityType,
		EntityID:    entityID,
	}
	if actor.ClientID > 0 {
		w.ClientID = &actor.ClientID
	}
	if err := s.db.CreateWorkLog(w); err != nil {
		s.log.Error("record work log", zap.Int64("user", actor.UserID), zap.String("entity", entityType), zap.Error(err))
	}
}

type ManualInput struct {
	Date            string `json:"log_date"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	EntityType      string `json:"entity_type"`
	EntityID        int64  `json:"entity_id"`
}

// Add records a manual entry for the actor. Date defaults to today and may
// not lie in the future.
func (s *Service) Add(actor rights.Actor, in ManualInput) (*store.WorkLog, error) {
	if actor.UserID <= 0 {
		return nil, rights.ErrForbidden
	}
	today := store.Day(s.now())
	if in.Date == "" {
		in.Date = today
	}
	if _, err := time.Parse(time.DateOnly, in.Date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
	}
	if in.Date > today {
		return nil, fmt.Errorf("%w: date is in the future", ErrInvalid)
	}
	if !slices.Contains(Categories, in.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalid, in.Category)
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalid)
	}
	if in.DurationMinutes <= 0 || in.DurationMinutes > maxMinutes {
		return nil, fmt.Errorf("%w: duration must be 1-%d minutes", ErrInvalid, maxMinutes)
	}
	w := &store.WorkLog{
		UserID:          actor.UserID,
		LogDate:         in.Date,
		Source:          store.WorkLogManual,
		Category:        in.Category,
		Description:     in.Description,
		EntityType:      in.EntityType,
		EntityID:        in.EntityID,
		DurationMinutes: in.DurationMinutes,
	}
	if actor.ClientID > 0 {
		w.ClientID = &actor.ClientID
	}
	if err := s.db.CreateWorkLog(w); err != nil {
		return nil, err
	}
	w.CreatedAt = s.now().UTC()
	return w, nil
}

// Delete removes one of the actor's own manual entries.
func (s *Service) Delete(actor rights.Actor, id int64) error {
	w, err := s.db.GetWorkLog(id)
	if err != nil {
		return err
	}
	if w.UserID != actor.UserID {
		return store.ErrNotFound
	}
	if w.Source != store.WorkLogManual {
		return fmt.Errorf("%w: system entries cannot be deleted", rights.ErrForbidden)
	}
	return s.db.DeleteWorkLog(id)
}

func (s *Service) span(from, to string) (string, string, error) {
	today := store.Day(s.now())
	if to == "" {
		to = today
	}
	if from == "" {
		from = to
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return "", "", fmt.Errorf("%w: bad date %q", ErrInvalid, d)
		}
	}
	if from > to {
		return "", "", fmt.Errorf("%w: from is after to", ErrInvalid)
	}
	return from, to, nil
}

// List returns a user's journal. Users read their own; admins read anyone in
// their client.
func (s *Service) List(actor rights.Actor, userID int64, from, to string) ([]*store.WorkLog, error) {
	if userID == 0 {
		userID = actor.UserID
	}
	if userID != actor.UserID {
		u, err := s.db.GetUser(userID)
		if err != nil {
			return nil, err
		}
		if !actor.IsAdmin() || !actor.CanAccess(u.TenantID()) {
			return nil, store.ErrNotFound
		}
	}
	from, to, err := s.span(from, to)
	if err != nil {
		return nil, err
	}
	return s.db.ListWorkLogs(userID, from, to)
}

// Summary totals minutes and entries per user per day within the actor's scope.
func (s *Service) Summary(actor rights.Actor, from, to string) ([]*store.WorkLogSummary, error) {
	if !actor.IsAdmin() {
		return nil, rights.ErrForbidden
	}
	from, to, err := s.span(from, to)
	if err != nil {
		return nil, err
	}
	return s.db.SummarizeWorkLogs(actor.Scope(), from, to)
}
