package www

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ticketops/export"
)

func (h *Handlers) apiHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":      "ok",
		"database":    "ok",
		"sse_clients": h.eventHub.ClientCount(),
	}
	code := http.StatusOK
	if err := h.engine.DB().PingContext(r.Context()); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if mc := h.engine.MsgClient(); mc != nil {
		status["messaging"] = mc.IsConnected()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

// invalidate drops cached reads of resource after writes the cache
// middleware cannot attribute, e.g. public or admin routes.
func (h *Handlers) invalidate(r *http.Request, resource string) {
	if h.cache != nil {
		h.cache.Invalidate(context.WithoutCancel(r.Context()), resource)
	}
}

func (h *Handlers) apiAuditLog(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	entityType := r.URL.Query().Get("entity_type")
	entityID := queryInt64(r, "entity_id")
	db := h.engine.DB()

	if entityType != "" && entityID > 0 {
		entries, err := db.ListEntityAudit(entityType, entityID)
		if err != nil {
			h.jsonFail(w, r, err)
			return
		}
		visible := entries[:0]
		for _, e := range entries {
			if actor.CanAccess(e.ClientID) {
				visible = append(visible, e)
			}
		}
		h.jsonOK(w, visible)
		return
	}

	limit := queryInt(r, "limit")
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	entries, err := db.ListAuditLog(actor.Scope(), limit)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, entries)
}

func (h *Handlers) apiExport(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatXLSX
	}
	if !export.ValidFormat(format) {
		h.jsonError(w, "format must be xlsx or csv", http.StatusBadRequest)
		return
	}
	table, err := export.Build(h.engine.DB(), resource, actorFrom(r).Scope())
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, table); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(resource, format, time.Now())))
	w.Write(buf.Bytes())
}

// --- Settings ---

func (h *Handlers) apiListSettings(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.Settings().List()
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiSetSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req struct {
		Value string `json:"value"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.Settings().Set(key, req.Value, actorFrom(r).Name()); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.log.Info("setting changed", zap.String("key", key), zap.String("by", actorFrom(r).Name()))
	h.jsonOK(w, map[string]string{"key": key, "value": h.settingValue(key)})
}

func (h *Handlers) settingValue(key string) string {
	v, _ := h.engine.Settings().Get(key)
	return v
}

func (h *Handlers) apiDeleteSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.engine.Settings().Delete(key); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Maintenance ---

func (h *Handlers) apiBackup(w http.ResponseWriter, r *http.Request) {
	if h.backup == nil {
		h.jsonError(w, "backup storage not configured", http.StatusServiceUnavailable)
		return
	}
	res, err := h.backup.Run(r.Context())
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, res)
}

func (h *Handlers) apiEmailTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To string `json:"to"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.Notifier().SendTest(req.To); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonOK(w, map[string]string{"status": "sent", "to": req.To})
}

func (h *Handlers) apiSweep(w http.ResponseWriter, r *http.Request) {
	h.engine.Sweep(time.Now())
	h.invalidate(r, "tickets")
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiClearStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SiteID int64 `json:"site_id"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	n, err := h.engine.Inventory().ClearStock(actorFrom(r), req.SiteID)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.invalidate(r, "stock")
	h.jsonOK(w, map[string]int{"cleared": n})
}

func (h *Handlers) apiReconnectMessaging(w http.ResponseWriter, r *http.Request) {
	if h.engine.MsgClient() == nil {
		h.jsonError(w, "messaging not configured", http.StatusServiceUnavailable)
		return
	}
	h.engine.ReconfigureMessaging()
	h.jsonOK(w, map[string]bool{"connected": h.engine.MsgClient().IsConnected()})
}
