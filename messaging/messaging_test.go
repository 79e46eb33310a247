package messaging

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketops/config"
	"ticketops/store"
	"ticketops/tickets"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEnvelope(t *testing.T) {
	alert := tickets.DeviceAlert{Serial: "SN1", Message: "video loss", Severity: "critical"}
	env, err := NewEnvelope(TypeDeviceAlert, "ACME", alert)
	require.NoError(t, err)
	assert.Len(t, env.ID, 36)

	data, err := env.Encode()
	require.NoError(t, err)
	got, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, "ACME", got.Client)

	var back tickets.DeviceAlert
	require.NoError(t, got.DecodePayload(&back))
	if diff := cmp.Diff(alert, back); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeEnvelopeRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"garbage": `not json`,
		"version": `{"v":2,"type":"device.alert","id":"x"}`,
		"no type": `{"v":1,"id":"x"}`,
	} {
		if _, err := DecodeEnvelope([]byte(raw)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

type fakePublisher struct {
	sent []string
	fail map[string]bool
}

func (p *fakePublisher) PublishKeyed(topic, key string, _ []byte) error {
	if p.fail[topic] {
		return errors.New("broker down")
	}
	p.sent = append(p.sent, topic+"/"+key)
	return nil
}

func TestOutboxDrain(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.EnqueueOutbox("events", []byte(`{}`), "ticket.created", "ACME"))
	require.NoError(t, db.EnqueueOutbox("dead", []byte(`{}`), "x", ""))
	require.NoError(t, db.EnqueueOutbox("events", []byte(`{}`), "rma.moved", "ACME"))

	pub := &fakePublisher{fail: map[string]bool{"dead": true}}
	d := NewOutboxDrainer(db, pub, time.Second, nil)

	assert.Equal(t, 2, d.Drain())
	assert.Equal(t, []string{"events/ACME", "events/ACME"}, pub.sent)

	pending, err := db.ListPendingOutbox(maxRetries, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Retries)

	for range maxRetries {
		d.Drain()
	}
	pending, _ = db.ListPendingOutbox(maxRetries, 10)
	assert.Empty(t, pending, "message is parked after the retry ceiling")
}

type fakeAlerts struct {
	got []tickets.DeviceAlert
	err error
}

func (f *fakeAlerts) HandleAlert(a tickets.DeviceAlert) (*store.Ticket, bool, error) {
	f.got = append(f.got, a)
	if f.err != nil {
		return nil, false, f.err
	}
	return &store.Ticket{Number: "TKT-000001"}, true, nil
}

type fakeSubscriber struct {
	topic   string
	handler MessageHandler
}

func (s *fakeSubscriber) Subscribe(topic string, h MessageHandler) error {
	s.topic, s.handler = topic, h
	return nil
}

func TestAlertConsumer(t *testing.T) {
	sub := &fakeSubscriber{}
	h := &fakeAlerts{}
	c := NewAlertConsumer(sub, "alerts", h, nil)
	require.NoError(t, c.Start())
	assert.Equal(t, "alerts", sub.topic)

	env, _ := NewEnvelope(TypeDeviceAlert, "ACME", map[string]string{"ip": "10.0.0.5", "message": "offline"})
	data, _ := env.Encode()
	sub.handler("alerts", data)

	other, _ := NewEnvelope("ticket.created", "ACME", map[string]int{"id": 1})
	data2, _ := other.Encode()
	sub.handler("alerts", data2)
	sub.handler("alerts", []byte("{"))

	require.Len(t, h.got, 1)
	assert.Equal(t, "10.0.0.5", h.got[0].IP)
	assert.True(t, env.Timestamp.Equal(h.got[0].At), "alert time defaults to the envelope timestamp")

	h.err = errors.New("no asset")
	sub.handler("alerts", data)
	assert.Len(t, h.got, 2)
}

func TestClientNotConnected(t *testing.T) {
	c := NewClient(config.MessagingConfig{Backend: "kafka"}, nil)
	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Publish("events", []byte("x")), ErrNotConnected)
	assert.ErrorIs(t, c.Subscribe("alerts", func(string, []byte) {}), ErrNotConnected)
	assert.Error(t, c.Connect(), "no brokers configured")
	c.Close()

	bad := NewClient(config.MessagingConfig{Backend: "amqp"}, nil)
	assert.Error(t, bad.Connect())
}
