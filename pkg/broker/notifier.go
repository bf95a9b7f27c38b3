package broker

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Notifier publishes job events to a single topic. A nil Notifier drops
// every event, so callers need not check whether notifications are on.
type Notifier struct {
	b      Broker
	topic  string
	logger *zap.Logger
}

// NewNotifier returns a Notifier publishing on topic through b.
func NewNotifier(b Broker, topic string, logger *zap.Logger) *Notifier {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{b: b, topic: topic, logger: logger}
}

func (n *Notifier) Topic() string {
	if n == nil {
		return ""
	}
	return n.topic
}

// Notify publishes msg. Failures are logged, never returned.
func (n *Notifier) Notify(msg Message) {
	if n == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		n.logger.Error("encode notification", zap.Error(err))
		return
	}
	if err := n.b.Publish(n.topic, payload); err != nil {
		n.logger.Error("publish notification",
			zap.String("broker", n.b.String()),
			zap.String("topic", n.topic),
			zap.String("event_type", msg.EventType),
			zap.Error(err))
		return
	}
	n.logger.Debug("notification published", zap.String("topic", n.topic), zap.String("event_type", msg.EventType))
}

// Close disconnects the underlying broker.
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	return n.b.Disconnect()
}
