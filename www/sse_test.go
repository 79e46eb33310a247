package www

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketops/rights"
	"ticketops/store"
)

func recv(t *testing.T, c *sseClient) SSEEvent {
	t.Helper()
	select {
	case evt := <-c.ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return SSEEvent{}
	}
}

func TestEventHubScoping(t *testing.T) {
	hub := NewEventHub(nil)
	hub.Start()
	defer hub.Stop()

	acme := hub.AddClient(rights.Actor{UserID: 1, ClientID: 1, Role: rights.RoleTechnician})
	globex := hub.AddClient(rights.Actor{UserID: 2, ClientID: 2, Role: rights.RoleTechnician})
	root := hub.AddClient(rights.Actor{UserID: 3, Role: rights.RoleSuperAdmin})
	assert.Equal(t, 3, hub.ClientCount())

	// Events are fanned out in order, so acme seeing the second event
	// proves it skipped the first.
	hub.Broadcast(2, "ticket.created", map[string]int{"id": 10})
	hub.Broadcast(1, "ticket.created", map[string]int{"id": 11})
	hub.Broadcast(0, "system", "maintenance")

	assert.Equal(t, `{"id":11}`, recv(t, acme).Data)
	assert.Equal(t, `"maintenance"`, recv(t, acme).Data)

	assert.Equal(t, `{"id":10}`, recv(t, globex).Data)
	assert.Equal(t, `"maintenance"`, recv(t, globex).Data)

	assert.Equal(t, `{"id":10}`, recv(t, root).Data)
	assert.Equal(t, `{"id":11}`, recv(t, root).Data)
	assert.Equal(t, `"maintenance"`, recv(t, root).Data)

	hub.RemoveClient(globex)
	assert.Equal(t, 2, hub.ClientCount())
}

func TestEventHubNotificationReachesRecipientOnly(t *testing.T) {
	hub := NewEventHub(nil)
	hub.Start()
	defer hub.Stop()

	alice := hub.AddClient(rights.Actor{UserID: 1, ClientID: 1, Role: rights.RoleTechnician})
	bob := hub.AddClient(rights.Actor{UserID: 2, ClientID: 1, Role: rights.RoleAdmin})
	root := hub.AddClient(rights.Actor{UserID: 3, Role: rights.RoleSuperAdmin})

	hub.Broadcast(1, "notification", &store.Notification{ID: 7, UserID: 2, Title: "Assigned"})
	hub.Broadcast(1, "stock.changed", map[string]int{"id": 1})

	evt := recv(t, bob)
	assert.Equal(t, "notification", evt.Event)
	assert.Contains(t, evt.Data, `"title":"Assigned"`)

	assert.Equal(t, "stock.changed", recv(t, alice).Event)
	assert.Equal(t, "stock.changed", recv(t, root).Event)
}

// streamRecorder is a ResponseWriter safe to read while the handler writes.
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	code   int
	body   bytes.Buffer
}

func (s *streamRecorder) Header() http.Header { return s.header }

func (s *streamRecorder) WriteHeader(code int) {
	s.mu.Lock()
	s.code = code
	s.mu.Unlock()
}

func (s *streamRecorder) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body.Write(p)
}

func (s *streamRecorder) Flush() {}

func (s *streamRecorder) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body.String()
}

func TestSSEHandlerStreamsEvents(t *testing.T) {
	hub := NewEventHub(nil)
	hub.Start()
	defer hub.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	ctx = context.WithValue(ctx, actorKey, rights.Actor{UserID: 1, ClientID: 1, Role: rights.RoleViewer})
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := &streamRecorder{header: make(http.Header)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.SSEHandler(rec, req)
	}()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Broadcast(1, "rma.updated", map[string]string{"number": "RMA-0001"})
	require.Eventually(t, func() bool {
		return strings.Contains(rec.String(), "event: rma.updated\ndata: {\"number\":\"RMA-0001\"}\n\n")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestEventHubStopIdempotent(t *testing.T) {
	hub := NewEventHub(nil)
	hub.Start()
	hub.Stop()
	hub.Stop()
}
