package engine

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ticketops/rights"
)

type SubscriberID int

// Event is one domain occurrence. ClientID scopes it to a tenant (0 for
// platform events) and Actor records who caused it.
type Event struct {
	Type      EventType
	Timestamp time.Time
	ClientID  int64
	Actor     rights.Actor
	Payload   any
}

// listener is a registered handler. A nil types set means every event.
type listener struct {
	id      SubscriberID
	handler func(Event)
	types   map[EventType]bool
}

func (l listener) wants(t EventType) bool {
	return l.types == nil || l.types[t]
}

// EventBus fans events out to handlers synchronously. Registrations swap in a
// new listener slice, so Emit never holds a lock while handlers run.
type EventBus struct {
	mu        sync.Mutex
	lastID    SubscriberID
	listeners atomic.Pointer[[]listener]
	log       *zap.Logger
}

func NewEventBus(log *zap.Logger) *EventBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventBus{log: log}
}

// Subscribe registers fn for every event type.
func (eb *EventBus) Subscribe(fn func(Event)) SubscriberID {
	return eb.add(fn, nil)
}

// SubscribeTypes registers fn for the listed event types only.
func (eb *EventBus) SubscribeTypes(fn func(Event), types ...EventType) SubscriberID {
	set := make(map[EventType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return eb.add(fn, set)
}

func (eb *EventBus) add(fn func(Event), types map[EventType]bool) SubscriberID {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.lastID++
	next := append(slices.Clone(eb.current()), listener{id: eb.lastID, handler: fn, types: types})
	eb.listeners.Store(&next)
	return eb.lastID
}

func (eb *EventBus) Unsubscribe(id SubscriberID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	next := slices.DeleteFunc(slices.Clone(eb.current()), func(l listener) bool { return l.id == id })
	eb.listeners.Store(&next)
}

func (eb *EventBus) current() []listener {
	if p := eb.listeners.Load(); p != nil {
		return *p
	}
	return nil
}

// Emit delivers evt to interested handlers in registration order. A handler
// that panics is logged and skipped.
func (eb *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	for _, l := range eb.current() {
		if l.wants(evt.Type) {
			eb.deliver(l, evt)
		}
	}
}

func (eb *EventBus) deliver(l listener, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.log.Error("event handler panic",
				zap.String("event", string(evt.Type)),
				zap.Int64("client_id", evt.ClientID),
				zap.Int("subscriber", int(l.id)),
				zap.Any("panic", r))
		}
	}()
	l.handler(evt)
}
