package mqttbus

import (
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Delivery uses QoS 1 end to end: the broker redelivers unacknowledged
// messages, and the ingest path deduplicates on event time.
const qosAtLeastOnce = 1

const (
	connectTimeout   = 10 * time.Second
	subscribeTimeout = 5 * time.Second
	publishTimeout   = 5 * time.Second
)

// MessageHandler receives every message delivered on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Config carries broker connection settings.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Client wraps the paho MQTT client with auto-reconnect and at-least-once
// subscriptions.
type Client struct {
	client mqtt.Client
	broker string
	logger *log.Logger
}

// NewClient constructs a broker client. It does not connect.
func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqttbus: empty broker address")
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("maintenance-cloud-%d", time.Now().Unix())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Printf("mqtt: connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Printf("mqtt: reconnecting to broker %s", cfg.Broker)
	})

	return &Client{
		client: mqtt.NewClient(opts),
		broker: cfg.Broker,
		logger: logger,
	}, nil
}

// Connect establishes the broker session.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqttbus: connect to %s timed out", c.broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqttbus: connect to %s: %w", c.broker, err)
	}
	c.logger.Printf("mqtt: connected to broker %s", c.broker)
	return nil
}

// Subscribe registers handler on topic with at-least-once delivery.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if handler == nil {
		return errors.New("mqttbus: nil message handler")
	}
	token := c.client.Subscribe(topic, qosAtLeastOnce, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("mqttbus: subscribe to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqttbus: subscribe to %s: %w", topic, err)
	}
	c.logger.Printf("mqtt: subscribed to %s", topic)
	return nil
}

// Publish sends payload to topic with at-least-once delivery.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, qosAtLeastOnce, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqttbus: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqttbus: publish to %s: %w", topic, err)
	}
	return nil
}

// Disconnect closes the broker session, allowing in-flight work to finish.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	c.logger.Printf("mqtt: disconnected from broker %s", c.broker)
}

// SharedTopic builds a shared subscription filter so a group of instances
// splits the topic between them instead of each receiving every message.
func SharedTopic(group, topic string) string {
	if group == "" {
		return topic
	}
	return "$share/" + group + "/" + topic
}
