package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/ciscodnac/dnac-backup/pkg/broker"
)

const (
	clientDisconnectWaitTimeout = 250
	lastWillStatement           = `{"status": "OFFLINE"}`
	defaultClientID             = "dnac-backup"
)

var _ broker.Broker = (*MQTTBroker)(nil)

var (
	ErrNoConnection = errors.New("no connection to broker server")
	ErrTimeout      = errors.New("timed out waiting for broker")
)

const defaultTimeout = 10 * time.Second

// MQTTBroker implements broker.Broker interface.
type MQTTBroker struct {
	uri      *url.URL
	username string
	password string
	clientID string
	client   mqtt.Client
	qos      byte
	retained bool
	timeout  time.Duration
	logger   *zap.Logger

	// Option for resubscribe when OnConnect
	subscribeTopics  []string
	subscribeHandler broker.Handler
}

// NewBroker creates new mqtt broker.
func NewBroker(opts ...Option) (*MQTTBroker, error) {
	m := &MQTTBroker{clientID: defaultClientID, timeout: defaultTimeout}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.uri == nil {
		return nil, errors.New("broker url is required")
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.qos = 1
	return m, nil
}

// serverURI maps the configured url onto the schemes paho understands.
func (m *MQTTBroker) serverURI() string {
	switch m.uri.Scheme {
	case "ssl", "tls", "mqtts":
		return "ssl://" + m.uri.Host
	case "ws", "wss":
		return m.uri.Scheme + "://" + m.uri.Host + m.uri.Path
	}
	return "tcp://" + m.uri.Host
}

func (m *MQTTBroker) opts() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.serverURI())
	username := m.username
	if u := m.uri.User.Username(); u != "" {
		username = u
	}
	opts.SetUsername(username)
	password := m.password
	if p, isSet := m.uri.User.Password(); isSet {
		password = p
	}
	opts.SetPassword(password)
	opts.SetClientID(m.clientID)
	opts.SetCleanSession(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(m.timeout)

	opts.OnConnect = func(client mqtt.Client) {
		m.logger.Info("Connected to broker", zap.String("broker", m.serverURI()))

		// resubscribe when connected or reconnected with broker
		if m.subscribeHandler != nil && m.subscribeTopics != nil {
			if err := m.Subscribe(m.subscribeTopics, m.subscribeHandler); err != nil {
				m.logger.Error("Subscribe to topics return error", zap.Error(err), zap.Strings("topics", m.subscribeTopics))
				return
			}
			m.logger.Debug("Subscribed", zap.Strings("topics", m.subscribeTopics))
		}
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		m.logger.Error("Connection lost with broker", zap.Error(err))
	}
	opts.OnReconnecting = func(client mqtt.Client, opts *mqtt.ClientOptions) {
		m.logger.Warn("Trying reconnect with broker")
	}

	opts.SetWill("dnac-backup/"+m.clientID+"/status", lastWillStatement, 0, false)
	return opts
}

// ConnectAndSubscribe connects and subscribes to subTopics again after every
// reconnect.
func (m *MQTTBroker) ConnectAndSubscribe(subHandler broker.Handler, subTopics []string) error {
	m.subscribeHandler = subHandler
	m.subscribeTopics = subTopics

	return m.Connect()
}

func (m *MQTTBroker) Connect() error {
	client := mqtt.NewClient(m.opts())
	if err := m.wait(client.Connect()); err != nil {
		return fmt.Errorf("connect to %s: %w", m.serverURI(), err)
	}
	m.client = client
	return nil
}

func (m *MQTTBroker) Disconnect() error {
	if m.client == nil {
		return ErrNoConnection
	}

	m.client.Disconnect(clientDisconnectWaitTimeout)
	m.client = nil

	return nil
}

func (m *MQTTBroker) Publish(topic string, payload interface{}) error {
	if m.client == nil {
		return ErrNoConnection
	}
	if err := m.wait(m.client.Publish(topic, m.qos, m.retained, payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (m *MQTTBroker) Subscribe(topics []string, h broker.Handler) error {
	if m.client == nil {
		return ErrNoConnection
	}
	if len(topics) == 0 {
		return errors.New("no topics provided")
	}
	filters := make(map[string]byte, len(topics))
	for _, topic := range topics {
		filters[topic] = m.qos
	}

	token := m.client.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		if err := h(broker.Event{
			Topic:    msg.Topic(),
			Payload:  msg.Payload(),
			Retained: msg.Retained(),
		}); err != nil {
			m.logger.Error("handle event", zap.String("topic", msg.Topic()), zap.Error(err))
		}
	})
	return m.wait(token)
}

// wait blocks until t completes or the broker timeout passes.
func (m *MQTTBroker) wait(t mqtt.Token) error {
	if !t.WaitTimeout(m.timeout) {
		return ErrTimeout
	}
	return t.Error()
}

func (m *MQTTBroker) String() string {
	return fmt.Sprintf("Broker [%s]", m.clientID)
}
