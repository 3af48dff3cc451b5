package mqtt

import "github.com/okian/vita/pkg/logger"

// Option configures an MQTT source.
type Option func(*Source)

// WithBroker sets the broker URL, e.g. tcp://localhost:1883.
func WithBroker(broker string) Option {
	return func(s *Source) {
		if broker != "" {
			s.broker = broker
		}
	}
}

// WithClientID sets the MQTT client identifier.
func WithClientID(id string) Option {
	return func(s *Source) {
		if id != "" {
			s.clientID = id
		}
	}
}

// WithReadingTopic sets the wildcard subscription for readings.
func WithReadingTopic(topic string) Option {
	return func(s *Source) {
		if topic != "" {
			s.readingTopic = topic
		}
	}
}

// WithDeviceTopic sets the wildcard subscription for device events.
func WithDeviceTopic(topic string) Option {
	return func(s *Source) {
		if topic != "" {
			s.deviceTopic = topic
		}
	}
}

// WithQoS sets the subscription quality of service level.
func WithQoS(qos byte) Option {
	return func(s *Source) {
		if qos <= 2 {
			s.qos = qos
		}
	}
}

// WithCredentials sets broker authentication.
func WithCredentials(username, password string) Option {
	return func(s *Source) {
		s.username = username
		s.password = password
	}
}

// WithLogger sets the logger used by message handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Source) {
		s.logger = l
	}
}
