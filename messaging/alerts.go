package messaging

import (
	"go.uber.org/zap"

	"ticketops/logging"
	"ticketops/store"
	"ticketops/tickets"
)

// AlertHandler turns a device alert into ticket work.
type AlertHandler interface {
	HandleAlert(alert tickets.DeviceAlert) (*store.Ticket, bool, error)
}

// Subscriber is the slice of Client the consumer needs.
type Subscriber interface {
	Subscribe(topic string, handler MessageHandler) error
}

// AlertConsumer subscribes to the alerts topic and routes device.alert
// envelopes to the ticket service.
type AlertConsumer struct {
	client  Subscriber
	topic   string
	handler AlertHandler
	log     *zap.Logger
}

func NewAlertConsumer(client Subscriber, topic string, handler AlertHandler, log *zap.Logger) *AlertConsumer {
	return &AlertConsumer{client: client, topic: topic, handler: handler, log: logging.OrNop(log).Named("alerts")}
}

func (c *AlertConsumer) Start() error {
	return c.client.Subscribe(c.topic, c.HandleMessage)
}

func (c *AlertConsumer) HandleMessage(_ string, payload []byte) {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		c.log.Warn("decode", zap.Error(err))
		return
	}
	if env.Type != TypeDeviceAlert {
		c.log.Debug("ignoring message", zap.String("type", env.Type), zap.String("id", env.ID))
		return
	}
	var alert tickets.DeviceAlert
	if err := env.DecodePayload(&alert); err != nil {
		c.log.Warn("decode alert payload", zap.String("id", env.ID), zap.Error(err))
		return
	}
	if alert.At.IsZero() {
		alert.At = env.Timestamp
	}
	t, created, err := c.handler.HandleAlert(alert)
	if err != nil {
		c.log.Warn("alert not handled", zap.String("id", env.ID), zap.String("serial", alert.Serial), zap.String("ip", alert.IP), zap.Error(err))
		return
	}
	c.log.Info("alert handled", zap.String("ticket", t.Number), zap.Bool("created", created))
}
