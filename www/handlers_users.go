package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ticketops/rights"
	"ticketops/store"
	"ticketops/users"
)

func (h *Handlers) apiListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.List(actorFrom(r), queryInt64(r, "client_id"))
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiCreateUser(w http.ResponseWriter, r *http.Request) {
	var in users.Input
	if !h.decode(w, r, &in) {
		return
	}
	u, err := h.users.Create(actorFrom(r), in)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonCreated(w, u)
}

func (h *Handlers) apiGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	u, err := h.users.Get(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, u)
}

func (h *Handlers) apiUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in users.Input
	if !h.decode(w, r, &in) {
		return
	}
	u, err := h.users.Update(actorFrom(r), id, in)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, u)
}

func (h *Handlers) apiDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.users.Delete(actorFrom(r), id); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) apiResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.users.SetPassword(actorFrom(r), id, req.Password); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

// apiListPermissions returns the matrix of one role, or of every role.
func (h *Handlers) apiListPermissions(w http.ResponseWriter, r *http.Request) {
	if role := r.URL.Query().Get("role"); role != "" {
		if !rights.ValidRole(role) {
			h.jsonError(w, "unknown role", http.StatusBadRequest)
			return
		}
		h.jsonOK(w, h.users.Permissions(role))
		return
	}
	all := make(map[string][]store.Permission)
	for _, role := range rights.Roles {
		all[role] = h.users.Permissions(role)
	}
	h.jsonOK(w, map[string]any{
		"modules":     rights.Modules,
		"actions":     rights.Actions,
		"permissions": all,
	})
}

func (h *Handlers) apiSetPermissions(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	var perms []store.Permission
	if !h.decode(w, r, &perms) {
		return
	}
	if err := h.users.SetPermissions(actorFrom(r), role, perms); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	// Cached reads were authorised under the old rights.
	h.invalidate(r, "")
	h.jsonOK(w, h.users.Permissions(role))
}
