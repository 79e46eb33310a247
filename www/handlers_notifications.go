package www

import (
	"net/http"

	"ticketops/worklog"
)

func (h *Handlers) apiListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")
	if limit <= 0 {
		limit = 50
	}
	list, err := h.engine.Notifier().List(actorFrom(r).UserID, queryBool(r, "unread"), limit)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiUnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.Notifier().UnreadCount(actorFrom(r).UserID)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, map[string]int{"unread": n})
}

func (h *Handlers) apiMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Notifier().MarkRead(actorFrom(r).UserID, id); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiMarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.Notifier().MarkAllRead(actorFrom(r).UserID)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, map[string]int64{"marked": n})
}

// --- Work logs ---

func (h *Handlers) apiListWorkLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.engine.WorkLog().List(actorFrom(r), queryInt64(r, "user_id"), q.Get("from"), q.Get("to"))
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiWorkLogCategories(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, worklog.Categories)
}

func (h *Handlers) apiWorkLogSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sum, err := h.engine.WorkLog().Summary(actorFrom(r), q.Get("from"), q.Get("to"))
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, sum)
}

func (h *Handlers) apiAddWorkLog(w http.ResponseWriter, r *http.Request) {
	var in worklog.ManualInput
	if !h.decode(w, r, &in) {
		return
	}
	entry, err := h.engine.WorkLog().Add(actorFrom(r), in)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonCreated(w, entry)
}

func (h *Handlers) apiDeleteWorkLog(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.engine.WorkLog().Delete(actorFrom(r), id); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
