package www

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ticketops/assets"
	"ticketops/cache"
	"ticketops/config"
	"ticketops/engine"
	"ticketops/metrics"
	"ticketops/notify"
	"ticketops/rights"
	"ticketops/settings"
	"ticketops/store"
	"ticketops/tickets"
	"ticketops/users"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	handler http.Handler
	eng     *engine.Engine
	db      *store.DB
	client  *store.Client
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = rights.SeedDefaults(db)
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.Web.SessionSecret = "test-session-secret"
	st := settings.New(db)
	eng := engine.New(engine.Config{
		AppConfig: cfg,
		DB:        db,
		Settings:  st,
		Notifier:  notify.New(db, st, nil, nil),
		Metrics:   metrics.New(),
	})
	eng.Start()

	handler, stop := NewRouter(eng, Options{CacheBackend: cache.NewMemoryBackend()})
	t.Cleanup(stop)

	c := &store.Client{Name: "Acme", Code: "ACME", Status: store.ClientActive}
	require.NoError(t, db.CreateClient(c))

	_, err = eng.Users().CreateAdmin("root", "root-password", false)
	require.NoError(t, err)
	for _, u := range []users.Input{
		{Username: "boss", Password: "boss-password", Role: rights.RoleAdmin, ClientID: &c.ID},
		{Username: "tech", Password: "tech-password", Role: rights.RoleTechnician, ClientID: &c.ID},
		{Username: "viewer", Password: "viewer-password", Role: rights.RoleViewer, ClientID: &c.ID},
	} {
		_, err := eng.Users().Create(rights.System, u)
		require.NoError(t, err)
	}
	return &fixture{handler: handler, eng: eng, db: db, client: c}
}

func (f *fixture) do(t *testing.T, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T, username, password string) []*http.Cookie {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLoginMeLogout(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "boss", "password": "nope-nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec)["error"], "invalid username or password")

	rec = f.do(t, http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookies := f.login(t, "boss", "boss-password")
	rec = f.do(t, http.MethodGet, "/api/auth/me", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		User store.User `json:"user"`
		Menu []string   `json:"menu"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "boss", me.User.Username)
	assert.Contains(t, me.Menu, rights.ModuleTickets)
	assert.Contains(t, me.Menu, rights.ModuleUsers)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	rec = f.do(t, http.MethodPost, "/api/auth/logout", nil, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/auth/me", nil, rec.Result().Cookies())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeactivatedUserLosesSession(t *testing.T) {
	f := setup(t)
	cookies := f.login(t, "tech", "tech-password")

	u, err := f.db.GetUserByUsername("tech")
	require.NoError(t, err)
	u.Active = false
	require.NoError(t, f.db.UpdateUser(u))

	rec := f.do(t, http.MethodGet, "/api/tickets", nil, cookies)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestModuleRightsEnforced(t *testing.T) {
	f := setup(t)
	viewer := f.login(t, "viewer", "viewer-password")

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/tickets", nil, viewer).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/tickets", map[string]string{"title": "x"}, viewer).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/users", nil, viewer).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/admin/sweep", nil, viewer).Code)

	boss := f.login(t, "boss", "boss-password")
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/admin/sweep", nil, boss).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPut, "/api/settings/sla.high_hours", map[string]string{"value": "2"}, boss).Code)

	root := f.login(t, "root", "root-password")
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/admin/sweep", nil, root).Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodPost, "/api/admin/backup", nil, root).Code)
}

func TestTicketEndpoints(t *testing.T) {
	f := setup(t)
	boss := f.login(t, "boss", "boss-password")

	rec := f.do(t, http.MethodPost, "/api/tickets", tickets.Input{Title: "Camera 4 offline", Priority: tickets.PriorityHigh, Category: "camera"}, boss)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[store.Ticket](t, rec)
	assert.True(t, strings.HasPrefix(created.Number, "TKT-"))
	assert.Equal(t, f.client.ID, created.ClientID)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/tickets/%d", created.ID), nil, boss)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Status       string   `json:"status"`
		NextStatuses []string `json:"next_statuses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, tickets.StatusOpen, detail.Status)
	assert.Contains(t, detail.NextStatuses, tickets.StatusInProgress)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/tickets/%d/status", created.ID), map[string]string{"status": tickets.StatusClosed}, boss)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/tickets/%d/status", created.ID), map[string]string{"status": tickets.StatusInProgress, "note": "on site"}, boss)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/tickets/%d/comments", created.ID), map[string]any{"body": "replaced PSU"}, boss)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/tickets/%d/comments", created.ID), nil, boss)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]store.TicketComment](t, rec), 1)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/tickets/9999", nil, boss).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/tickets/abc", nil, boss).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/tickets", map[string]string{"title": " "}, boss).Code)
}

func TestTenantIsolation(t *testing.T) {
	f := setup(t)
	other := &store.Client{Name: "Other", Code: "OTHER", Status: store.ClientActive}
	require.NoError(t, f.db.CreateClient(other))
	_, err := f.eng.Users().Create(rights.System, users.Input{Username: "otheradmin", Password: "other-password", Role: rights.RoleAdmin, ClientID: &other.ID})
	require.NoError(t, err)

	boss := f.login(t, "boss", "boss-password")
	rec := f.do(t, http.MethodPost, "/api/tickets", tickets.Input{Title: "Acme only"}, boss)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[store.Ticket](t, rec)

	stranger := f.login(t, "otheradmin", "other-password")
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, fmt.Sprintf("/api/tickets/%d", created.ID), nil, stranger).Code)
	rec = f.do(t, http.MethodGet, "/api/tickets", nil, stranger)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]store.Ticket](t, rec))
}

func TestResponseCache(t *testing.T) {
	f := setup(t)
	boss := f.login(t, "boss", "boss-password")

	rec := f.do(t, http.MethodGet, "/api/tickets", nil, boss)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec = f.do(t, http.MethodGet, "/api/tickets", nil, boss)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/tickets", tickets.Input{Title: "New"}, boss).Code)

	rec = f.do(t, http.MethodGet, "/api/tickets", nil, boss)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Len(t, decodeBody[[]store.Ticket](t, rec), 1)

	// Notifications are per user and never cached.
	rec = f.do(t, http.MethodGet, "/api/notifications", nil, boss)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestResponseCacheKeepsMineListsPerUser(t *testing.T) {
	f := setup(t)
	_, err := f.eng.Users().Create(rights.System, users.Input{Username: "tech2", Password: "tech2-password", Role: rights.RoleTechnician, ClientID: &f.client.ID})
	require.NoError(t, err)
	tech, err := f.db.GetUserByUsername("tech")
	require.NoError(t, err)

	boss := f.login(t, "boss", "boss-password")
	rec := f.do(t, http.MethodPost, "/api/tickets", tickets.Input{Title: "NVR disk failure", AssignedTo: &tech.ID}, boss)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	techCookies := f.login(t, "tech", "tech-password")
	rec = f.do(t, http.MethodGet, "/api/tickets?mine=true", nil, techCookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Len(t, decodeBody[[]store.Ticket](t, rec), 1)

	tech2 := f.login(t, "tech2", "tech2-password")
	rec = f.do(t, http.MethodGet, "/api/tickets?mine=true", nil, tech2)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Empty(t, decodeBody[[]store.Ticket](t, rec))

	rec = f.do(t, http.MethodGet, "/api/tickets?mine=true", nil, techCookies)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Len(t, decodeBody[[]store.Ticket](t, rec), 1)
}

func TestActorScope(t *testing.T) {
	actor := rights.Actor{UserID: 7, ClientID: 3, Role: rights.RoleTechnician}
	scoped := func(target string) string {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		return actorScope(req.WithContext(context.WithValue(req.Context(), actorKey, actor)))
	}
	assert.Equal(t, "3:technician", scoped("/api/tickets"))
	assert.Equal(t, "3:technician:u7", scoped("/api/tickets?mine=true"))
}

func TestAssetRequestEndpoints(t *testing.T) {
	f := setup(t)
	boss := f.login(t, "boss", "boss-password")
	tech := f.login(t, "tech", "tech-password")

	rec := f.do(t, http.MethodPost, "/api/assets", store.Asset{Code: "CAM-001", AssetType: "camera", Make: "Axis"}, boss)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	asset := decodeBody[store.Asset](t, rec)

	// Technicians cannot edit directly and must file a request.
	rec = f.do(t, http.MethodPut, fmt.Sprintf("/api/assets/%d", asset.ID), store.Asset{Code: "CAM-001", AssetType: "camera", Location: "Gate"}, tech)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/assets/%d/requests", asset.ID), map[string]any{
		"changes": map[string]string{"location": "Gate"},
		"reason":  "moved",
	}, tech)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	req := decodeBody[store.AssetUpdateRequest](t, rec)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, fmt.Sprintf("/api/assets/requests/%d/approve", req.ID), map[string]string{}, tech).Code)
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/assets/requests/%d/approve", req.ID), map[string]string{"note": "ok"}, boss)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, store.RequestApproved, decodeBody[store.AssetUpdateRequest](t, rec).Status)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/assets/%d", asset.ID), nil, boss)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Gate", decodeBody[store.Asset](t, rec).Location)
}

func TestRegistration(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodGet, "/api/register", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[map[string]bool](t, rec)["enabled"])

	rec = f.do(t, http.MethodPost, "/api/register", map[string]string{
		"name": "Newco", "code": "newco", "admin_username": "newadmin", "admin_password": "newco-password",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Client store.Client `json:"client"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "NEWCO", out.Client.Code)
	assert.Equal(t, store.ClientPending, out.Client.Status)

	// Pending tenants cannot sign in.
	rec = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "newadmin", "password": "newco-password"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	root := f.login(t, "root", "root-password")
	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/clients/%d/approve", out.Client.ID), nil, root)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	f.login(t, "newadmin", "newco-password")

	rec = f.do(t, http.MethodPost, "/api/register", map[string]string{
		"name": "Dup", "code": "NEWCO", "admin_username": "dup", "admin_password": "dup-password",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, f.eng.Settings().Set(settings.RegistrationEnabled, "false", "test"))
	rec = f.do(t, http.MethodPost, "/api/register", map[string]string{"name": "Late", "code": "LATE"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExport(t *testing.T) {
	f := setup(t)
	boss := f.login(t, "boss", "boss-password")
	rec := f.do(t, http.MethodPost, "/api/tickets", tickets.Input{Title: "Export me"}, boss)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[store.Ticket](t, rec)

	rec = f.do(t, http.MethodGet, "/api/export/tickets?format=csv", nil, boss)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "tickets-")
	assert.Contains(t, rec.Body.String(), created.Number)
	assert.Contains(t, rec.Body.String(), "Export me")

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/export/tickets?format=pdf", nil, boss).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/export/invoices", nil, boss).Code)

	tech := f.login(t, "tech", "tech-password")
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/export/tickets", nil, tech).Code)
}

func TestUserAdministration(t *testing.T) {
	f := setup(t)
	boss := f.login(t, "boss", "boss-password")

	rec := f.do(t, http.MethodPost, "/api/users", users.Input{Username: "eng", Password: "eng-password", Role: rights.RoleEngineer}, boss)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	eng := decodeBody[store.User](t, rec)
	require.NotNil(t, eng.ClientID)
	assert.Equal(t, f.client.ID, *eng.ClientID)

	rec = f.do(t, http.MethodPost, "/api/users", users.Input{Username: "sneaky", Password: "sneaky-password", Role: rights.RoleSuperAdmin}, boss)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPut, fmt.Sprintf("/api/users/%d/password", eng.ID), map[string]string{"password": "short"}, boss)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPut, fmt.Sprintf("/api/users/%d/password", eng.ID), map[string]string{"password": "brand-new-pass"}, boss)
	assert.Equal(t, http.StatusOK, rec.Code)
	engCookies := f.login(t, "eng", "brand-new-pass")

	rec = f.do(t, http.MethodPut, "/api/auth/password", map[string]string{"current_password": "wrong", "new_password": "another-pass"}, engCookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPut, "/api/auth/password", map[string]string{"current_password": "brand-new-pass", "new_password": "another-pass"}, engCookies)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/permissions/viewer", []store.Permission{{Module: rights.ModuleTickets, Action: rights.ActionView}}, boss)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	viewer := f.login(t, "viewer", "viewer-password")
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/assets", nil, viewer).Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := setup(t)
	rec := f.do(t, http.MethodGet, "/api/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]any](t, rec)["status"])

	rec = f.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ticketops_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/api/health"`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", rights.ErrForbidden), http.StatusForbidden},
		{tickets.ErrInvalidTransition, http.StatusBadRequest},
		{fmt.Errorf("%w: bad", assets.ErrInvalid), http.StatusBadRequest},
		{store.ErrInsufficientStock, http.StatusConflict},
		{users.ErrConflict, http.StatusConflict},
		{users.ErrBadCredentials, http.StatusUnauthorized},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
