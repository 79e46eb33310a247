package tickets

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"ticketops/rights"
	"ticketops/settings"
	"ticketops/store"
)

// Overdue lists the actor's unfinished tickets past their due time.
func (s *Service) Overdue(actor rights.Actor) ([]*store.Ticket, error) {
	all, err := s.db.ListOverdueTickets(s.now())
	if err != nil {
		return nil, err
	}
	var out []*store.Ticket
	for _, t := range all {
		if actor.CanAccess(t.ClientID) {
			out = append(out, t)
		}
	}
	return out, nil
}

// SweepOverdue announces newly overdue tickets once each and returns how many
// were announced.
func (s *Service) SweepOverdue() (int, error) {
	overdue, err := s.db.ListOverdueTickets(s.now())
	if err != nil {
		return 0, err
	}
	current := make(map[int64]bool, len(overdue))
	var fresh []*store.Ticket
	s.mu.Lock()
	for _, t := range overdue {
		current[t.ID] = true
		if !s.notified[t.ID] {
			s.notified[t.ID] = true
			fresh = append(fresh, t)
		}
	}
	for id := range s.notified {
		if !current[id] {
			delete(s.notified, id)
		}
	}
	s.mu.Unlock()

	for _, t := range fresh {
		s.emitter.EmitTicketOverdue(t)
	}
	return len(fresh), nil
}

func (s *Service) forgetOverdue(id int64) {
	s.mu.Lock()
	delete(s.notified, id)
	s.mu.Unlock()
}

// AutoClose closes tickets resolved longer than tickets.auto_close_days ago.
// A setting of 0 disables it.
func (s *Service) AutoClose(now time.Time) (int, error) {
	days := s.settings.Int(settings.TicketAutoCloseDays)
	if days <= 0 {
		return 0, nil
	}
	stale, err := s.db.ListResolvedBefore(now.Add(-time.Duration(days) * 24 * time.Hour))
	if err != nil {
		return 0, err
	}
	closed := 0
	note := fmt.Sprintf("auto-closed after %d days resolved", days)
	for _, t := range stale {
		if _, err := s.transition(rights.System, t, StatusClosed, note); err != nil {
			s.log.Warn("auto-close failed", zap.String("ticket", t.Number), zap.Error(err))
			continue
		}
		closed++
	}
	return closed, nil
}
