// Package engine owns the domain services and routes their events to the
// audit trail, notifications, work logs, the outbox and live sessions.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ticketops/assets"
	"ticketops/clients"
	"ticketops/config"
	"ticketops/inventory"
	"ticketops/logging"
	"ticketops/messaging"
	"ticketops/metrics"
	"ticketops/notify"
	"ticketops/rights"
	"ticketops/rma"
	"ticketops/settings"
	"ticketops/store"
	"ticketops/tickets"
	"ticketops/users"
	"ticketops/worklog"
)

const healthInterval = 30 * time.Second

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	Settings   *settings.Service
	Notifier   *notify.Notifier
	WorkLog    *worklog.Service
	Metrics    *metrics.Metrics
	MsgClient  *messaging.Client
	Perms      *rights.PermCache
	Logger     *zap.Logger
}

type Engine struct {
	cfg        *config.Config
	configPath string
	db         *store.DB
	settings   *settings.Service
	notifier   *notify.Notifier
	worklog    *worklog.Service
	metrics    *metrics.Metrics
	msgClient  *messaging.Client
	log        *zap.Logger
	Events     *EventBus

	tickets   *tickets.Service
	assets    *assets.Service
	inventory *inventory.Service
	rmas      *rma.Service
	clients   *clients.Service
	users     *users.Service
	perms     *rights.PermCache

	hub notify.Broadcaster

	mu           sync.Mutex
	clientCodes  map[int64]string
	msgConnected bool
	started      bool
}

func New(c Config) *Engine {
	base := logging.OrNop(c.Logger)
	log := base.Named("engine")
	e := &Engine{
		cfg:         c.AppConfig,
		configPath:  c.ConfigPath,
		db:          c.DB,
		settings:    c.Settings,
		notifier:    c.Notifier,
		worklog:     c.WorkLog,
		metrics:     c.Metrics,
		msgClient:   c.MsgClient,
		perms:       c.Perms,
		log:         log,
		Events:      NewEventBus(log),
		clientCodes: make(map[int64]string),
	}
	if e.settings == nil {
		e.settings = settings.New(e.db)
	}
	if e.worklog == nil {
		e.worklog = worklog.NewService(e.db, base)
	}
	e.tickets = tickets.NewService(e.db, e.settings, &ticketEmitter{bus: e.Events}, base)
	e.assets = assets.NewService(e.db, &assetEmitter{bus: e.Events})
	e.inventory = inventory.NewService(e.db, &inventoryEmitter{bus: e.Events})
	e.rmas = rma.NewService(e.db, &rmaEmitter{bus: e.Events})
	e.clients = clients.NewService(e.db, e.settings, &clientEmitter{bus: e.Events})
	if e.perms == nil {
		e.perms = rights.NewPermCache()
		if err := e.perms.Refresh(e.db); err != nil {
			log.Error("load permissions", zap.Error(err))
		}
	}
	e.users = users.NewService(e.db, e.perms)
	return e
}

// Start wires the event handlers. It is safe to call more than once.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	e.wireEventHandlers()
	if e.notifier != nil && e.metrics != nil {
		e.notifier.OnSent(e.metrics.NotificationsSent)
	}
	e.checkConnectionStatus()
	e.log.Info("started")
}

// Run performs the periodic sweeps and connection checks until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.Engine.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	sweep := time.NewTicker(interval)
	defer sweep.Stop()
	health := time.NewTicker(healthInterval)
	defer health.Stop()

	e.Sweep(time.Now())
	for {
		select {
		case <-ctx.Done():
			e.log.Info("stopped")
			return nil
		case now := <-sweep.C:
			e.Sweep(now)
		case <-health.C:
			e.checkConnectionStatus()
		}
	}
}

// Sweep flags overdue tickets and closes resolved tickets past the
// auto-close window.
func (e *Engine) Sweep(now time.Time) {
	if n, err := e.tickets.SweepOverdue(); err != nil {
		e.log.Error("overdue sweep", zap.Error(err))
	} else if n > 0 {
		e.log.Info("overdue tickets flagged", zap.Int("count", n))
	}
	if n, err := e.tickets.AutoClose(now); err != nil {
		e.log.Error("auto-close sweep", zap.Error(err))
	} else if n > 0 {
		e.log.Info("resolved tickets auto-closed", zap.Int("count", n))
	}
}

// SetBroadcaster attaches the live event hub to the engine and notifier.
func (e *Engine) SetBroadcaster(b notify.Broadcaster) {
	e.mu.Lock()
	e.hub = b
	e.mu.Unlock()
	if e.notifier != nil {
		e.notifier.SetBroadcaster(b)
	}
}

func (e *Engine) broadcaster() notify.Broadcaster {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hub
}

// HandleAlert opens or updates a ticket for a device alert and counts the
// outcome.
func (e *Engine) HandleAlert(alert tickets.DeviceAlert) (*store.Ticket, bool, error) {
	t, created, err := e.tickets.HandleAlert(alert)
	if e.metrics != nil {
		switch {
		case err != nil:
			e.metrics.AlertHandled("rejected")
		case created:
			e.metrics.AlertHandled("created")
		default:
			e.metrics.AlertHandled("merged")
		}
	}
	return t, created, err
}

// Accessors
func (e *Engine) DB() *store.DB                 { return e.db }
func (e *Engine) AppConfig() *config.Config     { return e.cfg }
func (e *Engine) ConfigPath() string            { return e.configPath }
func (e *Engine) Settings() *settings.Service   { return e.settings }
func (e *Engine) Notifier() *notify.Notifier    { return e.notifier }
func (e *Engine) WorkLog() *worklog.Service     { return e.worklog }
func (e *Engine) Metrics() *metrics.Metrics     { return e.metrics }
func (e *Engine) MsgClient() *messaging.Client  { return e.msgClient }
func (e *Engine) Tickets() *tickets.Service     { return e.tickets }
func (e *Engine) Assets() *assets.Service       { return e.assets }
func (e *Engine) Inventory() *inventory.Service { return e.inventory }
func (e *Engine) RMAs() *rma.Service            { return e.rmas }
func (e *Engine) Clients() *clients.Service     { return e.clients }
func (e *Engine) Users() *users.Service         { return e.users }
func (e *Engine) Perms() *rights.PermCache      { return e.perms }

func (e *Engine) checkConnectionStatus() {
	if e.msgClient == nil {
		return
	}
	connected := e.msgClient.IsConnected()
	e.mu.Lock()
	changed := connected != e.msgConnected
	e.msgConnected = connected
	e.mu.Unlock()
	if !changed {
		return
	}
	if connected {
		e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
	} else {
		e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
	}
}

// ReconfigureMessaging reconnects messaging with the current config.
func (e *Engine) ReconfigureMessaging() {
	if e.msgClient == nil {
		return
	}
	e.cfg.Lock()
	mc := e.cfg.Messaging
	e.cfg.Unlock()
	if err := e.msgClient.Reconfigure(mc); err != nil {
		e.log.Error("messaging reconfigure", zap.Error(err))
	} else {
		e.log.Info("messaging reconfigured", zap.String("backend", mc.Backend))
	}
	e.checkConnectionStatus()
}

// clientCode resolves and caches the tenant code used as the outbox key.
func (e *Engine) clientCode(clientID int64) string {
	if clientID <= 0 {
		return ""
	}
	e.mu.Lock()
	code, ok := e.clientCodes[clientID]
	e.mu.Unlock()
	if ok {
		return code
	}
	c, err := e.db.GetClient(clientID)
	if err != nil {
		return ""
	}
	e.mu.Lock()
	e.clientCodes[clientID] = c.Code
	e.mu.Unlock()
	return c.Code
}
