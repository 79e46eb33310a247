package www

import (
	"net/http"

	"go.uber.org/zap"

	"ticketops/clients"
	"ticketops/settings"
	"ticketops/store"
)

func (h *Handlers) apiRegistrationStatus(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, map[string]bool{"enabled": h.engine.Settings().Bool(settings.RegistrationEnabled)})
}

func (h *Handlers) apiRegister(w http.ResponseWriter, r *http.Request) {
	var reg clients.Registration
	if !h.decode(w, r, &reg) {
		return
	}
	c, admin, err := h.engine.Clients().Register(reg)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.invalidate(r, "clients")
	h.log.Info("client registered", zap.String("code", c.Code), zap.String("admin", admin.Username))
	h.jsonCreated(w, map[string]any{"client": c, "admin": admin})
}

func (h *Handlers) apiListClients(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.Clients().List(actorFrom(r), r.URL.Query().Get("status"))
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiCreateClient(w http.ResponseWriter, r *http.Request) {
	var c store.Client
	if !h.decode(w, r, &c) {
		return
	}
	if err := h.engine.Clients().Create(actorFrom(r), &c); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonCreated(w, c)
}

func (h *Handlers) apiGetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	c, err := h.engine.Clients().Get(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, c)
}

func (h *Handlers) apiUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var c store.Client
	if !h.decode(w, r, &c) {
		return
	}
	c.ID = id
	svc := h.engine.Clients()
	if err := svc.Update(actorFrom(r), &c); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	updated, err := svc.Get(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, updated)
}

func (h *Handlers) apiDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Clients().Delete(actorFrom(r), id); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) apiApproveClient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	c, err := h.engine.Clients().Approve(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, c)
}

func (h *Handlers) apiSuspendClient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	c, err := h.engine.Clients().Suspend(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, c)
}

// --- Sites ---

func (h *Handlers) apiListSites(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	clientID := queryInt64(r, "client_id")
	if clientID == 0 {
		clientID = actor.ClientID
	}
	list, err := h.engine.Clients().Sites(actor, clientID)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiCreateSite(w http.ResponseWriter, r *http.Request) {
	var site store.Site
	if !h.decode(w, r, &site) {
		return
	}
	actor := actorFrom(r)
	if !actor.IsSuperAdmin() || site.ClientID == 0 {
		site.ClientID = actor.ClientID
	}
	site.Active = true
	if err := h.engine.Clients().CreateSite(actor, &site); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonCreated(w, site)
}

func (h *Handlers) apiGetSite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	site, err := h.engine.Clients().Site(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, site)
}

func (h *Handlers) apiUpdateSite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var site store.Site
	if !h.decode(w, r, &site) {
		return
	}
	site.ID = id
	if err := h.engine.Clients().UpdateSite(actorFrom(r), &site); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, site)
}

func (h *Handlers) apiDeleteSite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Clients().DeleteSite(actorFrom(r), id); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
