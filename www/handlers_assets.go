package www

import (
	"net/http"

	"ticketops/store"
)

func (h *Handlers) apiListAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.engine.Assets().List(actorFrom(r), store.AssetFilter{
		ClientID:  queryInt64(r, "client_id"),
		SiteID:    queryInt64(r, "site_id"),
		Status:    q.Get("status"),
		AssetType: q.Get("type"),
		Search:    q.Get("q"),
		Limit:     queryInt(r, "limit"),
	})
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiCreateAsset(w http.ResponseWriter, r *http.Request) {
	var a store.Asset
	if !h.decode(w, r, &a) {
		return
	}
	if err := h.engine.Assets().Create(actorFrom(r), &a); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonCreated(w, a)
}

func (h *Handlers) apiGetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	a, err := h.engine.Assets().Get(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, a)
}

func (h *Handlers) apiUpdateAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var a store.Asset
	if !h.decode(w, r, &a) {
		return
	}
	a.ID = id
	if err := h.engine.Assets().Update(actorFrom(r), &a); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, a)
}

func (h *Handlers) apiDeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Assets().Delete(actorFrom(r), id); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) apiAssetAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, err := h.engine.Assets().Get(actorFrom(r), id); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	entries, err := h.engine.DB().ListEntityAudit("asset", id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, entries)
}

func (h *Handlers) apiSubmitAssetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Changes map[string]string `json:"changes"`
		Reason  string            `json:"reason"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	ur, err := h.engine.Assets().SubmitRequest(actorFrom(r), id, req.Changes, req.Reason)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonCreated(w, ur)
}

func (h *Handlers) apiListAssetRequests(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.Assets().Requests(actorFrom(r), r.URL.Query().Get("status"))
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

type reviewRequest struct {
	Note string `json:"note"`
}

func (h *Handlers) apiApproveAssetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	ur, err := h.engine.Assets().Approve(actorFrom(r), id, req.Note)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, ur)
}

func (h *Handlers) apiRejectAssetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	ur, err := h.engine.Assets().Reject(actorFrom(r), id, req.Note)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, ur)
}
