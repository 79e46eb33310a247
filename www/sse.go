package www

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"ticketops/rights"
	"ticketops/store"
)

type SSEEvent struct {
	Event string
	Data  string

	clientID int64
	userID   int64
}

// sseClient is one connected session. Super admins see every tenant.
type sseClient struct {
	ch       chan SSEEvent
	clientID int64
	userID   int64
	all      bool
}

func (c *sseClient) wants(evt SSEEvent) bool {
	if evt.userID != 0 {
		return c.userID == evt.userID
	}
	return evt.clientID == 0 || c.all || c.clientID == evt.clientID
}

type EventHub struct {
	mu        sync.RWMutex
	clients   map[*sseClient]struct{}
	broadcast chan SSEEvent
	stopChan  chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	log       *zap.Logger
}

func NewEventHub(log *zap.Logger) *EventHub {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventHub{
		clients:   make(map[*sseClient]struct{}),
		broadcast: make(chan SSEEvent, 256),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
		log:       log.Named("sse"),
	}
}

func (h *EventHub) Start() {
	go h.run()
}

// Stop ends the hub loop and waits for it. Safe to call more than once.
func (h *EventHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
		<-h.done
	})
}

func (h *EventHub) run() {
	defer close(h.done)
	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(evt) {
					continue
				}
				select {
				case c.ch <- evt:
				default:
					// drop if full
				}
			}
			h.mu.RUnlock()
		case <-keepalive.C:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.ch <- SSEEvent{Event: "keepalive", Data: "ping"}:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues an event for the sessions of clientID; 0 reaches everyone.
// Notifications only reach their recipient.
func (h *EventHub) Broadcast(clientID int64, event string, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		h.log.Warn("marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	evt := SSEEvent{Event: event, Data: string(b), clientID: clientID}
	if n, ok := data.(*store.Notification); ok {
		evt.userID = n.UserID
	}
	select {
	case h.broadcast <- evt:
	default:
		h.log.Warn("broadcast queue full, dropping", zap.String("event", event))
	}
}

func (h *EventHub) AddClient(a rights.Actor) *sseClient {
	c := &sseClient{
		ch:       make(chan SSEEvent, 64),
		clientID: a.ClientID,
		userID:   a.UserID,
		all:      a.IsSuperAdmin(),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *EventHub) RemoveClient(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SSEHandler serves the SSE endpoint.
func (h *EventHub) SSEHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	c := h.AddClient(actorFrom(r))
	defer h.RemoveClient(c)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.stopChan:
			return
		case evt := <-c.ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data); err != nil {
				h.log.Debug("write error", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}
