package www

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ticketops/assets"
	"ticketops/clients"
	"ticketops/export"
	"ticketops/inventory"
	"ticketops/rights"
	"ticketops/rma"
	"ticketops/settings"
	"ticketops/store"
	"ticketops/tickets"
	"ticketops/users"
	"ticketops/worklog"
)

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonCreated(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// jsonFail answers with the status matching err's sentinel.
func (h *Handlers) jsonFail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	h.jsonError(w, err.Error(), code)
}

var (
	badRequest = []error{
		tickets.ErrInvalid, tickets.ErrInvalidTransition,
		assets.ErrInvalid,
		inventory.ErrInvalid, inventory.ErrInvalidTransition,
		rma.ErrInvalid, rma.ErrInvalidTransition,
		clients.ErrInvalid,
		users.ErrInvalid, users.ErrSelf,
		worklog.ErrInvalid,
		settings.ErrInvalidValue,
		rights.ErrWeakPassword,
		export.ErrUnknownResource,
	}
	conflict = []error{
		store.ErrInsufficientStock,
		assets.ErrConflict, assets.ErrPendingRequest,
		inventory.ErrConflict,
		rma.ErrConflict, rma.ErrClosed,
		clients.ErrConflict,
		users.ErrConflict,
	}
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rights.ErrForbidden), errors.Is(err, clients.ErrRegistrationClosed):
		return http.StatusForbidden
	case errors.Is(err, users.ErrBadCredentials):
		return http.StatusUnauthorized
	}
	for _, e := range badRequest {
		if errors.Is(err, e) {
			return http.StatusBadRequest
		}
	}
	for _, e := range conflict {
		if errors.Is(err, e) {
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

// decode reads a JSON body into v, answering 400 itself on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.jsonError(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// pathID parses the {id} URL parameter, answering 400 itself on failure.
func (h *Handlers) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryInt64(r *http.Request, name string) int64 {
	v, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return v
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}
