package www

import (
	"net/http"

	"ticketops/rights"
	"ticketops/rma"
	"ticketops/store"
)

type rmaDetail struct {
	*store.RMA
	NextRepair      []string `json:"next_repair"`
	NextReplacement []string `json:"next_replacement"`
}

func newRMADetail(r *store.RMA) rmaDetail {
	return rmaDetail{
		RMA:             r,
		NextRepair:      rma.NextSteps(rma.TrackRepair, r.RepairStatus),
		NextReplacement: rma.NextSteps(rma.TrackReplacement, r.ReplacementStatus),
	}
}

func (h *Handlers) apiListRMAs(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.RMAs().List(actorFrom(r), store.RMAFilter{
		ClientID: queryInt64(r, "client_id"),
		SiteID:   queryInt64(r, "site_id"),
		AssetID:  queryInt64(r, "asset_id"),
		Status:   r.URL.Query().Get("status"),
		Limit:    queryInt(r, "limit"),
	})
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiCreateRMA(w http.ResponseWriter, r *http.Request) {
	var in rma.Input
	if !h.decode(w, r, &in) {
		return
	}
	rec, err := h.engine.RMAs().Create(actorFrom(r), in)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonCreated(w, newRMADetail(rec))
}

func (h *Handlers) apiGetRMA(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.engine.RMAs().Get(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, newRMADetail(rec))
}

func (h *Handlers) apiUpdateRMA(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var rec store.RMA
	if !h.decode(w, r, &rec) {
		return
	}
	rec.ID = id
	svc := h.engine.RMAs()
	if err := svc.UpdateDetails(actorFrom(r), &rec); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	updated, err := svc.Get(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, newRMADetail(updated))
}

func (h *Handlers) apiRMAHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	hist, err := h.engine.RMAs().History(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, hist)
}

type moveRequest struct {
	To string `json:"to"`
	rma.Move
}

func (h *Handlers) apiMoveRMARepair(w http.ResponseWriter, r *http.Request) {
	h.moveRMA(w, r, h.engine.RMAs().MoveRepair)
}

func (h *Handlers) apiMoveRMAReplacement(w http.ResponseWriter, r *http.Request) {
	h.moveRMA(w, r, h.engine.RMAs().MoveReplacement)
}

func (h *Handlers) moveRMA(w http.ResponseWriter, r *http.Request, move func(rights.Actor, int64, string, rma.Move) (*store.RMA, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := move(actorFrom(r), id, req.To, req.Move)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, newRMADetail(rec))
}

func (h *Handlers) apiCancelRMA(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.engine.RMAs().Cancel(actorFrom(r), id, req.Reason)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, newRMADetail(rec))
}
