package www

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"ticketops/rights"
	"ticketops/store"
	"ticketops/users"
)

const sessionName = "ticketops-session"

type ctxKey int

const (
	actorKey ctxKey = iota
	userKey
)

func newSessionStore(secret string, secure bool) *sessions.CookieStore {
	if secret == "" {
		secret = "ticketops-default-secret-change-me"
	}
	s := sessions.NewCookieStore([]byte(secret))
	s.Options.Path = "/"
	s.Options.HttpOnly = true
	s.Options.Secure = secure
	s.Options.SameSite = http.SameSiteLaxMode
	return s
}

// sessionUser resolves the logged-in user. Deactivated or deleted users lose
// their session on the next request.
func (h *Handlers) sessionUser(r *http.Request) *store.User {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return nil
	}
	if auth, ok := session.Values["authenticated"].(bool); !ok || !auth {
		return nil
	}
	id, ok := session.Values["user_id"].(int64)
	if !ok {
		return nil
	}
	u, err := h.engine.DB().GetUser(id)
	if err != nil || !u.Active {
		return nil
	}
	return u
}

func (h *Handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := h.sessionUser(r)
		if u == nil {
			h.jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userKey, u)
		ctx = context.WithValue(ctx, actorKey, users.ActorFor(u))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// can rejects requests whose actor lacks module/action.
func (h *Handlers) can(module, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := h.users.Check(actorFrom(r), module, action); err != nil {
				h.jsonError(w, err.Error(), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handlers) superAdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r).IsSuperAdmin() {
			h.jsonError(w, "super admin only", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFrom(r *http.Request) rights.Actor {
	a, _ := r.Context().Value(actorKey).(rights.Actor)
	return a
}

func userFrom(r *http.Request) *store.User {
	u, _ := r.Context().Value(userKey).(*store.User)
	return u
}

// actorScope keys cached responses by tenant and role. Reads filtered to
// the caller, such as ?mine=true, are also keyed by user.
func actorScope(r *http.Request) string {
	a := actorFrom(r)
	scope := strconv.FormatInt(a.ClientID, 10) + ":" + a.Role
	if queryBool(r, "mine") {
		scope += ":u" + strconv.FormatInt(a.UserID, 10)
	}
	return scope
}

type sessionInfo struct {
	User *store.User `json:"user"`
	Menu []string    `json:"menu"`
}

func (h *Handlers) apiLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		h.jsonFail(w, r, err)
		return
	}

	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = true
	session.Values["user_id"] = u.ID
	if err := session.Save(r, w); err != nil {
		h.log.Error("session save", zap.Error(err))
		h.jsonError(w, "session error", http.StatusInternalServerError)
		return
	}
	h.log.Info("login", zap.String("username", u.Username), zap.Int64("client_id", u.TenantID()))
	h.jsonOK(w, sessionInfo{User: u, Menu: h.users.Menu(u.Role)})
}

func (h *Handlers) apiLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = false
	delete(session.Values, "user_id")
	session.Options.MaxAge = -1
	session.Save(r, w)
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiMe(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	h.jsonOK(w, sessionInfo{User: u, Menu: h.users.Menu(u.Role)})
}

func (h *Handlers) apiChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	u := userFrom(r)
	if !rights.CheckPassword(u.PasswordHash, req.Current) {
		h.jsonError(w, "current password is wrong", http.StatusBadRequest)
		return
	}
	if err := h.users.SetPassword(actorFrom(r), u.ID, req.New); err != nil {
		h.jsonFail(w, r, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}
