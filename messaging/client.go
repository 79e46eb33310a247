// Package messaging connects TicketOps to a Kafka or MQTT broker: outbound
// domain events via the outbox, inbound device alerts.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"ticketops/config"
	"ticketops/logging"
)

var ErrNotConnected = errors.New("messaging not connected")

type MessageHandler func(topic string, payload []byte)

// Client is the unified messaging client (MQTT or Kafka).
type Client struct {
	mu       sync.RWMutex
	cfg      config.MessagingConfig
	log      *zap.Logger
	handlers map[string]MessageHandler

	mqttConn mqtt.Client
	kafkaW   *kafkago.Writer
	readers  map[string]*kafkago.Reader
	wg       sync.WaitGroup
}

func NewClient(cfg config.MessagingConfig, log *zap.Logger) *Client {
	return &Client{
		cfg:      cfg,
		log:      logging.OrNop(log).Named("messaging"),
		handlers: make(map[string]MessageHandler),
	}
}

func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.cfg.Backend {
	case "mqtt":
		return c.connectMQTT()
	case "kafka":
		return c.connectKafka()
	default:
		return fmt.Errorf("unknown messaging backend: %s", c.cfg.Backend)
	}
}

func (c *Client) connectMQTT() error {
	broker := fmt.Sprintf("tcp://%s:%d", c.cfg.MQTT.Broker, c.cfg.MQTT.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(c.cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if c.cfg.MQTT.Username != "" {
		opts.SetUsername(c.cfg.MQTT.Username).SetPassword(c.cfg.MQTT.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt connect: timeout to %s", broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	c.mqttConn = client
	c.log.Info("mqtt connected", zap.String("broker", broker))
	return nil
}

func (c *Client) connectKafka() error {
	if len(c.cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	var conn *kafkago.Conn
	var connErr error
	for _, broker := range c.cfg.Kafka.Brokers {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		conn, connErr = kafkago.DialContext(ctx, "tcp", broker)
		cancel()
		if connErr == nil {
			c.log.Info("kafka connected", zap.String("broker", broker))
			break
		}
	}
	if connErr != nil {
		return fmt.Errorf("kafka connect: %w", connErr)
	}
	c.ensureTopics(conn, c.cfg.EventsTopic, c.cfg.AlertsTopic)
	conn.Close()

	c.kafkaW = &kafkago.Writer{
		Addr:         kafkago.TCP(c.cfg.Kafka.Brokers...),
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
	}
	c.readers = make(map[string]*kafkago.Reader)
	return nil
}

// ensureTopics creates Kafka topics if they don't already exist. Failures are
// logged only; brokers may auto-create topics anyway.
func (c *Client) ensureTopics(conn *kafkago.Conn, topics ...string) {
	var wanted []kafkago.TopicConfig
	for _, t := range topics {
		if t != "" {
			wanted = append(wanted, kafkago.TopicConfig{Topic: t, NumPartitions: 1, ReplicationFactor: 1})
		}
	}
	if len(wanted) == 0 {
		return
	}
	controller, err := conn.Controller()
	if err != nil {
		c.log.Warn("kafka controller lookup", zap.Error(err))
		return
	}
	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		c.log.Warn("kafka controller dial", zap.Error(err))
		return
	}
	defer controllerConn.Close()
	if err := controllerConn.CreateTopics(wanted...); err != nil {
		c.log.Warn("kafka topic auto-create", zap.Error(err))
	}
}

// Publish sends payload to topic.
func (c *Client) Publish(topic string, payload []byte) error {
	return c.PublishKeyed(topic, "", payload)
}

// PublishKeyed sends payload with a partition key. MQTT ignores the key.
func (c *Client) PublishKeyed(topic, key string, payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.mqttConn != nil:
		if !c.mqttConn.IsConnected() {
			return ErrNotConnected
		}
		token := c.mqttConn.Publish(topic, 1, false, payload)
		if !token.WaitTimeout(10 * time.Second) {
			return fmt.Errorf("mqtt publish %s: timeout", topic)
		}
		return token.Error()
	case c.kafkaW != nil:
		msg := kafkago.Message{Topic: topic, Value: payload}
		if key != "" {
			msg.Key = []byte(key)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return c.kafkaW.WriteMessages(ctx, msg)
	default:
		return ErrNotConnected
	}
}

// PublishEnvelope encodes and publishes an envelope to the given topic.
func (c *Client) PublishEnvelope(topic string, env *Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return c.PublishKeyed(topic, env.Client, data)
}

// Subscribe registers handler for topic. The registration survives Reconfigure.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[topic] = handler
	switch {
	case c.mqttConn != nil:
		token := c.mqttConn.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			handler(msg.Topic(), msg.Payload())
		})
		token.Wait()
		return token.Error()
	case c.kafkaW != nil:
		groupID := c.cfg.Kafka.GroupID
		if groupID == "" {
			groupID = c.cfg.Source
		}
		reader := kafkago.NewReader(kafkago.ReaderConfig{
			Brokers: c.cfg.Kafka.Brokers,
			Topic:   topic,
			GroupID: groupID,
		})
		c.readers[topic] = reader
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for {
				msg, err := reader.ReadMessage(context.Background())
				if err != nil {
					if !errors.Is(err, io.EOF) {
						c.log.Debug("kafka reader stopped", zap.String("topic", topic), zap.Error(err))
					}
					return
				}
				handler(msg.Topic, msg.Value)
			}
		}()
		return nil
	default:
		return ErrNotConnected
	}
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch {
	case c.mqttConn != nil:
		return c.mqttConn.IsConnected()
	default:
		return c.kafkaW != nil
	}
}

// Reconfigure closes the connection, reconnects with cfg and restores every
// subscription.
func (c *Client) Reconfigure(cfg config.MessagingConfig) error {
	c.Close()
	c.mu.Lock()
	c.cfg = cfg
	handlers := make(map[string]MessageHandler, len(c.handlers))
	for k, v := range c.handlers {
		handlers[k] = v
	}
	c.mu.Unlock()

	if err := c.Connect(); err != nil {
		return err
	}
	for topic, handler := range handlers {
		if err := c.Subscribe(topic, handler); err != nil {
			c.log.Warn("re-subscribe after reconfigure", zap.String("topic", topic), zap.Error(err))
		}
	}
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.mqttConn != nil {
		c.mqttConn.Disconnect(1000)
		c.mqttConn = nil
	}
	for _, r := range c.readers {
		r.Close()
	}
	c.readers = nil
	if c.kafkaW != nil {
		c.kafkaW.Close()
		c.kafkaW = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
}
