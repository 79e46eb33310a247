package www

import (
	"net/http"

	"ticketops/inventory"
	"ticketops/store"
)

func (h *Handlers) apiListStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.engine.Inventory().Items(actorFrom(r), store.StockFilter{
		ClientID:  queryInt64(r, "client_id"),
		SiteID:    queryInt64(r, "site_id"),
		ItemCode:  q.Get("item_code"),
		Condition: q.Get("condition"),
		InStock:   queryBool(r, "in_stock"),
	})
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiCreateStockItem(w http.ResponseWriter, r *http.Request) {
	var item store.StockItem
	if !h.decode(w, r, &item) {
		return
	}
	if err := h.engine.Inventory().CreateItem(actorFrom(r), &item); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonCreated(w, item)
}

func (h *Handlers) apiGetStockItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	item, err := h.engine.Inventory().Item(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, item)
}

func (h *Handlers) apiUpdateStockItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var item store.StockItem
	if !h.decode(w, r, &item) {
		return
	}
	item.ID = id
	inv := h.engine.Inventory()
	if err := inv.UpdateItem(actorFrom(r), &item); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	updated, err := inv.Item(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, updated)
}

func (h *Handlers) apiDeleteStockItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Inventory().DeleteItem(actorFrom(r), id); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) apiAdjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Delta  int    `json:"delta"`
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.engine.Inventory().Adjust(actorFrom(r), id, req.Delta, req.Reason)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, item)
}

// --- Transfers ---

type transferDetail struct {
	*store.StockTransfer
	Items []*store.StockTransferItem `json:"items"`
}

func (h *Handlers) apiListTransfers(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.Inventory().Transfers(actorFrom(r), store.TransferFilter{
		ClientID: queryInt64(r, "client_id"),
		SiteID:   queryInt64(r, "site_id"),
		Status:   r.URL.Query().Get("status"),
		Limit:    queryInt(r, "limit"),
	})
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var in inventory.TransferInput
	if !h.decode(w, r, &in) {
		return
	}
	t, err := h.engine.Inventory().CreateTransfer(actorFrom(r), in)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonCreated(w, t)
}

func (h *Handlers) apiGetTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	t, err := h.engine.Inventory().Transfer(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	items, err := h.engine.DB().ListTransferItems(id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, transferDetail{StockTransfer: t, Items: items})
}

func (h *Handlers) apiDispatchTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var ship inventory.Shipping
	if !h.decode(w, r, &ship) {
		return
	}
	t, err := h.engine.Inventory().Dispatch(actorFrom(r), id, ship)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, t)
}

func (h *Handlers) apiTransferInTransit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	t, err := h.engine.Inventory().MarkInTransit(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, t)
}

func (h *Handlers) apiCompleteTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	t, err := h.engine.Inventory().Complete(actorFrom(r), id)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, t)
}

func (h *Handlers) apiCancelTransfer(w http.ResponseWriter, r *http.Request) {
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
	t, err := h.engine.Inventory().Cancel(actorFrom(r), id, req.Reason)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, t)
}
