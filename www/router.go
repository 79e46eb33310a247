// Package www serves the JSON API consumed by the single-page front end.
package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"ticketops/backup"
	"ticketops/cache"
	"ticketops/engine"
	"ticketops/logging"
	"ticketops/rights"
	"ticketops/users"
)

// Options carries the optional collaborators of the router.
type Options struct {
	// CacheBackend enables the response cache when set.
	CacheBackend cache.Backend
	Backup       *backup.Service
	Logger       *zap.Logger
}

type Handlers struct {
	engine   *engine.Engine
	users    *users.Service
	sessions *sessions.CookieStore
	eventHub *EventHub
	cache    *cache.Cache
	backup   *backup.Service
	log      *zap.Logger
}

func NewRouter(eng *engine.Engine, opts Options) (http.Handler, func()) {
	log := logging.OrNop(opts.Logger).Named("www")

	hub := NewEventHub(log)
	hub.Start()
	eng.SetBroadcaster(hub)

	cfg := eng.AppConfig()
	cfg.Lock()
	web := cfg.Web
	ttl := cfg.Cache.TTL
	cfg.Unlock()

	h := &Handlers{
		engine:   eng,
		users:    eng.Users(),
		sessions: newSessionStore(web.SessionSecret, web.SecureCookies),
		eventHub: hub,
		backup:   opts.Backup,
		log:      log,
	}
	if opts.CacheBackend != nil {
		h.cache = cache.New(opts.CacheBackend, ttl, actorScope, log)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if m := eng.Metrics(); m != nil {
		r.Use(m.Middleware)
		r.Handle("/metrics", m.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.apiHealth)
		r.Post("/auth/login", h.apiLogin)
		r.Post("/auth/logout", h.apiLogout)
		r.Get("/register", h.apiRegistrationStatus)
		r.Post("/register", h.apiRegister)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			if h.cache != nil {
				r.Use(h.cache.Middleware)
			}
			r.Get("/auth/me", h.apiMe)
			r.Put("/auth/password", h.apiChangePassword)
			r.Get("/events", hub.SSEHandler)

			h.ticketRoutes(r)
			h.assetRoutes(r)
			h.stockRoutes(r)
			h.transferRoutes(r)
			h.rmaRoutes(r)
			h.clientRoutes(r)
			h.userRoutes(r)
			h.notificationRoutes(r)
			h.worklogRoutes(r)
			h.adminRoutes(r)
		})
	})

	return r, hub.Stop
}

func (h *Handlers) ticketRoutes(r chi.Router) {
	view := h.can(rights.ModuleTickets, rights.ActionView)
	edit := h.can(rights.ModuleTickets, rights.ActionEdit)
	r.Route("/tickets", func(r chi.Router) {
		r.With(view).Get("/", h.apiListTickets)
		r.With(view).Get("/overdue", h.apiOverdueTickets)
		r.With(h.can(rights.ModuleTickets, rights.ActionCreate)).Post("/", h.apiCreateTicket)
		r.With(view).Get("/{id}", h.apiGetTicket)
		r.With(edit).Put("/{id}", h.apiUpdateTicket)
		r.With(h.can(rights.ModuleTickets, rights.ActionDelete)).Delete("/{id}", h.apiDeleteTicket)
		r.With(edit).Post("/{id}/assign", h.apiAssignTicket)
		r.With(edit).Post("/{id}/status", h.apiTicketStatus)
		r.With(view).Get("/{id}/history", h.apiTicketHistory)
		r.With(view).Get("/{id}/comments", h.apiTicketComments)
		r.With(edit).Post("/{id}/comments", h.apiAddTicketComment)
	})
}

func (h *Handlers) assetRoutes(r chi.Router) {
	view := h.can(rights.ModuleAssets, rights.ActionView)
	edit := h.can(rights.ModuleAssets, rights.ActionEdit)
	approve := h.can(rights.ModuleAssets, rights.ActionApprove)
	r.Route("/assets", func(r chi.Router) {
		r.With(view).Get("/", h.apiListAssets)
		r.With(h.can(rights.ModuleAssets, rights.ActionCreate)).Post("/", h.apiCreateAsset)
		r.With(view).Get("/requests", h.apiListAssetRequests)
		r.With(approve).Post("/requests/{id}/approve", h.apiApproveAssetRequest)
		r.With(approve).Post("/requests/{id}/reject", h.apiRejectAssetRequest)
		r.With(view).Get("/{id}", h.apiGetAsset)
		r.With(edit).Put("/{id}", h.apiUpdateAsset)
		r.With(h.can(rights.ModuleAssets, rights.ActionDelete)).Delete("/{id}", h.apiDeleteAsset)
		r.With(edit).Post("/{id}/requests", h.apiSubmitAssetRequest)
		r.With(view).Get("/{id}/audit", h.apiAssetAudit)
	})
}

func (h *Handlers) stockRoutes(r chi.Router) {
	view := h.can(rights.ModuleStock, rights.ActionView)
	edit := h.can(rights.ModuleStock, rights.ActionEdit)
	r.Route("/stock", func(r chi.Router) {
		r.With(view).Get("/", h.apiListStock)
		r.With(h.can(rights.ModuleStock, rights.ActionCreate)).Post("/", h.apiCreateStockItem)
		r.With(view).Get("/{id}", h.apiGetStockItem)
		r.With(edit).Put("/{id}", h.apiUpdateStockItem)
		r.With(h.can(rights.ModuleStock, rights.ActionDelete)).Delete("/{id}", h.apiDeleteStockItem)
		r.With(edit).Post("/{id}/adjust", h.apiAdjustStock)
	})
}

func (h *Handlers) transferRoutes(r chi.Router) {
	view := h.can(rights.ModuleTransfers, rights.ActionView)
	edit := h.can(rights.ModuleTransfers, rights.ActionEdit)
	r.Route("/transfers", func(r chi.Router) {
		r.With(view).Get("/", h.apiListTransfers)
		r.With(h.can(rights.ModuleTransfers, rights.ActionCreate)).Post("/", h.apiCreateTransfer)
		r.With(view).Get("/{id}", h.apiGetTransfer)
		r.With(edit).Post("/{id}/dispatch", h.apiDispatchTransfer)
		r.With(edit).Post("/{id}/in-transit", h.apiTransferInTransit)
		r.With(edit).Post("/{id}/complete", h.apiCompleteTransfer)
		r.With(edit).Post("/{id}/cancel", h.apiCancelTransfer)
	})
}

func (h *Handlers) rmaRoutes(r chi.Router) {
	view := h.can(rights.ModuleRMAs, rights.ActionView)
	edit := h.can(rights.ModuleRMAs, rights.ActionEdit)
	r.Route("/rmas", func(r chi.Router) {
		r.With(view).Get("/", h.apiListRMAs)
		r.With(h.can(rights.ModuleRMAs, rights.ActionCreate)).Post("/", h.apiCreateRMA)
		r.With(view).Get("/{id}", h.apiGetRMA)
		r.With(edit).Put("/{id}", h.apiUpdateRMA)
		r.With(view).Get("/{id}/history", h.apiRMAHistory)
		r.With(edit).Post("/{id}/repair", h.apiMoveRMARepair)
		r.With(edit).Post("/{id}/replacement", h.apiMoveRMAReplacement)
		r.With(edit).Post("/{id}/cancel", h.apiCancelRMA)
	})
}

func (h *Handlers) clientRoutes(r chi.Router) {
	view := h.can(rights.ModuleClients, rights.ActionView)
	edit := h.can(rights.ModuleClients, rights.ActionEdit)
	r.Route("/clients", func(r chi.Router) {
		r.With(view).Get("/", h.apiListClients)
		r.With(h.superAdminOnly).Post("/", h.apiCreateClient)
		r.With(view).Get("/{id}", h.apiGetClient)
		r.With(edit).Put("/{id}", h.apiUpdateClient)
		r.With(h.superAdminOnly).Delete("/{id}", h.apiDeleteClient)
		r.With(h.superAdminOnly).Post("/{id}/approve", h.apiApproveClient)
		r.With(h.superAdminOnly).Post("/{id}/suspend", h.apiSuspendClient)
	})
	// Every signed-in user needs the site list of its own client.
	r.Route("/sites", func(r chi.Router) {
		r.Get("/", h.apiListSites)
		r.With(edit).Post("/", h.apiCreateSite)
		r.Get("/{id}", h.apiGetSite)
		r.With(edit).Put("/{id}", h.apiUpdateSite)
		r.With(edit).Delete("/{id}", h.apiDeleteSite)
	})
}

func (h *Handlers) userRoutes(r chi.Router) {
	view := h.can(rights.ModuleUsers, rights.ActionView)
	edit := h.can(rights.ModuleUsers, rights.ActionEdit)
	r.Route("/users", func(r chi.Router) {
		r.With(view).Get("/", h.apiListUsers)
		r.With(h.can(rights.ModuleUsers, rights.ActionCreate)).Post("/", h.apiCreateUser)
		r.With(view).Get("/{id}", h.apiGetUser)
		r.With(edit).Put("/{id}", h.apiUpdateUser)
		r.With(h.can(rights.ModuleUsers, rights.ActionDelete)).Delete("/{id}", h.apiDeleteUser)
		r.With(edit).Put("/{id}/password", h.apiResetPassword)
	})
	r.Route("/permissions", func(r chi.Router) {
		r.With(view).Get("/", h.apiListPermissions)
		r.With(edit).Put("/{role}", h.apiSetPermissions)
	})
}

func (h *Handlers) notificationRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.apiListNotifications)
		r.Get("/count", h.apiUnreadCount)
		r.Post("/read-all", h.apiMarkAllRead)
		r.Post("/{id}/read", h.apiMarkRead)
	})
}

func (h *Handlers) worklogRoutes(r chi.Router) {
	view := h.can(rights.ModuleWorkLogs, rights.ActionView)
	r.Route("/worklogs", func(r chi.Router) {
		r.With(view).Get("/", h.apiListWorkLogs)
		r.With(view).Get("/categories", h.apiWorkLogCategories)
		r.With(h.can(rights.ModuleReports, rights.ActionView)).Get("/summary", h.apiWorkLogSummary)
		r.With(h.can(rights.ModuleWorkLogs, rights.ActionCreate)).Post("/", h.apiAddWorkLog)
		r.With(h.can(rights.ModuleWorkLogs, rights.ActionDelete)).Delete("/{id}", h.apiDeleteWorkLog)
	})
}

func (h *Handlers) adminRoutes(r chi.Router) {
	reports := h.can(rights.ModuleReports, rights.ActionView)
	r.With(reports).Get("/audit", h.apiAuditLog)
	r.With(reports).Get("/export/{resource}", h.apiExport)

	r.Route("/settings", func(r chi.Router) {
		r.With(h.can(rights.ModuleSettings, rights.ActionView)).Get("/", h.apiListSettings)
		r.With(h.superAdminOnly).Put("/{key}", h.apiSetSetting)
		r.With(h.superAdminOnly).Delete("/{key}", h.apiDeleteSetting)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.superAdminOnly)
		r.Post("/backup", h.apiBackup)
		r.Post("/email-test", h.apiEmailTest)
		r.Post("/sweep", h.apiSweep)
		r.Post("/clear-stock", h.apiClearStock)
		r.Post("/messaging/reconnect", h.apiReconnectMessaging)
	})
}
