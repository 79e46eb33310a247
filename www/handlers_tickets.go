package www

import (
	"net/http"

	"ticketops/store"
	"ticketops/tickets"
)

type ticketDetail struct {
	*store.Ticket
	NextStatuses []string `json:"next_statuses"`
}

func (h *Handlers) apiListTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.TicketFilter{
		ClientID:   queryInt64(r, "client_id"),
		SiteID:     queryInt64(r, "site_id"),
		AssetID:    queryInt64(r, "asset_id"),
		AssignedTo: queryInt64(r, "assigned_to"),
		Status:     q.Get("status"),
		Priority:   q.Get("priority"),
		Limit:      queryInt(r, "limit"),
	}
	if queryBool(r, "mine") {
		f.AssignedTo = actorFrom(r).UserID
	}
	list, err := h.engine.Tickets().List(actorFrom(r), f)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiOverdueTickets(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.Tickets().Overdue(actorFrom(r))
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiCreateTicket(w http.ResponseWriter, r *http.Request) {
	var in tickets.Input
	if !h.decode(w, r, &in) {
		return
	}
	t, err := h.engine.Tickets().Create(actorFrom(r), in)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonCreated(w, t)
}

func (h *Handlers) apiGetTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	t, err := h.engine.Tickets().Get(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, ticketDetail{Ticket: t, NextStatuses: tickets.NextStatuses(t.Status)})
}

func (h *Handlers) apiUpdateTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in tickets.Input
	if !h.decode(w, r, &in) {
		return
	}
	t, err := h.engine.Tickets().Update(actorFrom(r), id, in)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, t)
}

func (h *Handlers) apiDeleteTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Tickets().Delete(actorFrom(r), id); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) apiAssignTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		UserID int64 `json:"user_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.engine.Tickets().Assign(actorFrom(r), id, req.UserID)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, t)
}

func (h *Handlers) apiTicketStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.engine.Tickets().Transition(actorFrom(r), id, req.Status, req.Note)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, ticketDetail{Ticket: t, NextStatuses: tickets.NextStatuses(t.Status)})
}

func (h *Handlers) apiTicketHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	hist, err := h.engine.Tickets().History(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, hist)
}

func (h *Handlers) apiTicketComments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	comments, err := h.engine.Tickets().Comments(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, comments)
}

func (h *Handlers) apiAddTicketComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Body     string `json:"body"`
		Internal bool   `json:"internal"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.engine.Tickets().Comment(actorFrom(r), id, req.Body, req.Internal)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonCreated(w, c)
}
