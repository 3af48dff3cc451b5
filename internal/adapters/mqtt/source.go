// Package mqtt ingests biometric readings and device lifecycle events
// from an MQTT broker. Wearables typically report over MQTT when a
// direct HTTP uplink is unavailable.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/okian/vita/internal/domain/model"
	"github.com/okian/vita/pkg/logger"
	"github.com/okian/vita/pkg/metrics"
)

// Ingestor accepts decoded readings and device lifecycle events.
type Ingestor interface {
	Ingest(ctx context.Context, r model.BiometricReading) error
	ConnectDevice(ctx context.Context, id, name, deviceType string)
	DisconnectDevice(ctx context.Context, id string)
}

// Source bridges an MQTT broker into the reading stream. Topics are
// wildcard subscriptions; the last topic segment carries the device id
// when the payload omits one.
type Source struct {
	client       paho.Client
	ingestor     Ingestor
	logger       logger.Logger
	broker       string
	clientID     string
	readingTopic string
	deviceTopic  string
	qos          byte
	username     string
	password     string
}

// New creates an MQTT source. Connect must be called before messages
// flow.
func New(ingestor Ingestor, opts ...Option) (*Source, error) {
	if ingestor == nil {
		return nil, ErrNoIngestor
	}
	s := &Source{
		ingestor:     ingestor,
		broker:       "tcp://localhost:1883",
		clientID:     "vita-engine",
		readingTopic: "vita/readings/#",
		deviceTopic:  "vita/devices/#",
		qos:          1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Connect dials the broker and subscribes to the reading and device
// topics. Reconnects are automatic; subscriptions are restored by the
// OnConnect handler.
func (s *Source) Connect(ctx context.Context) error {
	opts := paho.NewClientOptions()
	opts.AddBroker(s.broker)
	opts.SetClientID(s.clientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	if s.username != "" {
		opts.SetUsername(s.username)
	}
	if s.password != "" {
		opts.SetPassword(s.password)
	}
	opts.SetOnConnectHandler(func(c paho.Client) {
		if err := s.subscribe(c); err != nil && s.logger != nil {
			s.logger.Error(ctx, "mqtt subscribe failed", logger.Error(err))
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		metrics.RecordErrorByComponent("mqtt", "connection_lost")
		if s.logger != nil {
			s.logger.Warn(ctx, "mqtt connection lost", logger.Error(err))
		}
	})

	s.client = paho.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect to broker %s: %w", s.broker, token.Error())
	}
	if s.logger != nil {
		s.logger.Info(ctx, "mqtt source connected", logger.String("broker", s.broker))
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight handlers a
// short grace period.
func (s *Source) Close() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

func (s *Source) subscribe(c paho.Client) error {
	if token := c.Subscribe(s.readingTopic, s.qos, s.onReading); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", s.readingTopic, token.Error())
	}
	if token := c.Subscribe(s.deviceTopic, s.qos, s.onDeviceEvent); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", s.deviceTopic, token.Error())
	}
	return nil
}

// readingPayload mirrors the JSON published by device gateways.
type readingPayload struct {
	DeviceID     string   `json:"device_id"`
	TS           string   `json:"ts"`
	HeartRate    *float64 `json:"heart_rate,omitempty"`
	HRV          *float64 `json:"hrv,omitempty"`
	Stress       *float64 `json:"stress,omitempty"`
	SleepQuality *float64 `json:"sleep_quality,omitempty"`
}

// devicePayload mirrors the JSON for device lifecycle events.
type devicePayload struct {
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Event    string `json:"event"`
}

func (s *Source) onReading(_ paho.Client, msg paho.Message) {
	ctx := context.Background()

	var p readingPayload
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		metrics.RecordErrorByComponent("mqtt", "decode_error")
		if s.logger != nil {
			s.logger.Warn(ctx, "dropping malformed reading payload",
				logger.String("topic", msg.Topic()), logger.Error(err))
		}
		return
	}
	if p.DeviceID == "" {
		p.DeviceID = lastSegment(msg.Topic())
	}

	r := model.BiometricReading{
		DeviceID:     p.DeviceID,
		HeartRate:    p.HeartRate,
		HRV:          p.HRV,
		StressRaw:    p.Stress,
		SleepQuality: p.SleepQuality,
	}
	if p.TS != "" {
		ts, err := parseTimestamp(p.TS)
		if err != nil {
			metrics.RecordErrorByComponent("mqtt", "decode_error")
			if s.logger != nil {
				s.logger.Warn(ctx, "dropping reading with bad timestamp",
					logger.String("device_id", p.DeviceID), logger.Error(err))
			}
			return
		}
		r.Timestamp = ts
	}

	if err := s.ingestor.Ingest(ctx, r); err != nil && s.logger != nil {
		s.logger.Debug(ctx, "reading rejected",
			logger.String("device_id", p.DeviceID), logger.Error(err))
	}
}

func (s *Source) onDeviceEvent(_ paho.Client, msg paho.Message) {
	ctx := context.Background()

	var p devicePayload
	if err := json.Unmarshal(msg.Payload(), &p); err != nil {
		metrics.RecordErrorByComponent("mqtt", "decode_error")
		if s.logger != nil {
			s.logger.Warn(ctx, "dropping malformed device payload",
				logger.String("topic", msg.Topic()), logger.Error(err))
		}
		return
	}
	if p.DeviceID == "" {
		p.DeviceID = lastSegment(msg.Topic())
	}
	if p.DeviceID == "" {
		return
	}

	switch strings.ToLower(p.Event) {
	case "connected", "connect", "":
		s.ingestor.ConnectDevice(ctx, p.DeviceID, p.Name, p.Type)
	case "disconnected", "disconnect":
		s.ingestor.DisconnectDevice(ctx, p.DeviceID)
	default:
		if s.logger != nil {
			s.logger.Debug(ctx, "ignoring unknown device event",
				logger.String("event", p.Event))
		}
	}
}

// parseTimestamp accepts RFC3339 or unix milliseconds, the two
// formats gateways emit in practice.
func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
	}
	return time.UnixMilli(ms), nil
}

func lastSegment(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
