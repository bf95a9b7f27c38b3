package mqtt

import (
	"errors"
	"net/url"
	"time"

	"go.uber.org/zap"
)

type Option func(m *MQTTBroker) error

// WithURL returns an Option which set the broker url. mqtt:// and tcp://
// connect in clear text, ssl:// and mqtts:// over TLS.
func WithURL(u string) Option {
	return func(m *MQTTBroker) error {
		if u == "" {
			return errors.New("empty broker url")
		}
		uri, err := url.Parse(u)
		if err != nil {
			return err
		}
		if uri.Host == "" {
			return errors.New("broker url has no host: " + u)
		}
		m.uri = uri
		return nil
	}
}

// WithClientID returns an Option which set the broker client id.
func WithClientID(id string) Option {
	return func(m *MQTTBroker) error {
		m.clientID = id
		return nil
	}
}

// WithCredentials sets the username and password used when the url carries none.
func WithCredentials(username, password string) Option {
	return func(m *MQTTBroker) error {
		m.username = username
		m.password = password
		return nil
	}
}

// WithRetained marks published messages as retained.
func WithRetained(retained bool) Option {
	return func(m *MQTTBroker) error {
		m.retained = retained
		return nil
	}
}

// WithTimeout bounds how long connect, publish and subscribe wait for the
// broker.
func WithTimeout(d time.Duration) Option {
	return func(m *MQTTBroker) error {
		if d <= 0 {
			return errors.New("broker timeout must be positive")
		}
		m.timeout = d
		return nil
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *MQTTBroker) error {
		m.logger = logger
		return nil
	}
}
