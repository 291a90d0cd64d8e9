package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/HerbHall/hwmeter/internal/pollster"
)

// MQTTConfig configures the MQTT sink.
type MQTTConfig struct {
	Broker      string        `mapstructure:"broker"`
	ClientID    string        `mapstructure:"client_id"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	TopicPrefix string        `mapstructure:"topic_prefix"`
	QoS         byte          `mapstructure:"qos"`
	Retained    bool          `mapstructure:"retained"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// publisher is the part of mqtt.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes each sample as JSON to
// <topic_prefix>/<resource_id>/<name>[/<instance>].
type MQTTSink struct {
	client publisher
	conf   MQTTConfig
	logger *zap.Logger
}

var _ Sink = (*MQTTSink)(nil)

// NewMQTTSink connects to the broker.
func NewMQTTSink(conf MQTTConfig, logger *zap.Logger) (*MQTTSink, error) {
	if conf.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	conf = withMQTTDefaults(conf)

	opts := mqtt.NewClientOptions().
		AddBroker(conf.Broker).
		SetClientID(conf.ClientID).
		SetConnectTimeout(conf.Timeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		})
	if conf.Username != "" {
		opts.SetUsername(conf.Username)
		opts.SetPassword(conf.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(conf.Timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out after %s", conf.Broker, conf.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", conf.Broker, err)
	}
	logger.Info("mqtt connected", zap.String("broker", conf.Broker))
	return newMQTTSink(client, conf, logger), nil
}

func newMQTTSink(client publisher, conf MQTTConfig, logger *zap.Logger) *MQTTSink {
	return &MQTTSink{client: client, conf: withMQTTDefaults(conf), logger: logger}
}

func withMQTTDefaults(conf MQTTConfig) MQTTConfig {
	if conf.ClientID == "" {
		conf.ClientID = "hwmeter"
	}
	if conf.TopicPrefix == "" {
		conf.TopicPrefix = "hwmeter"
	}
	if conf.Timeout <= 0 {
		conf.Timeout = 5 * time.Second
	}
	return conf
}

func (s *MQTTSink) Name() string { return "mqtt" }

// Publish sends every sample and waits for each delivery.
func (s *MQTTSink) Publish(ctx context.Context, samples []pollster.Sample) error {
	var errs []error
	for _, smp := range samples {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := json.Marshal(smp)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", smp.SeriesKey(), err))
			continue
		}
		topic := s.topic(smp)
		token := s.client.Publish(topic, s.conf.QoS, s.conf.Retained, payload)
		if !token.WaitTimeout(s.conf.Timeout) {
			errs = append(errs, fmt.Errorf("publish %s: timed out", topic))
			continue
		}
		if err := token.Error(); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", topic, err))
		}
	}
	return errors.Join(errs...)
}

func (s *MQTTSink) topic(smp pollster.Sample) string {
	topic := s.conf.TopicPrefix + "/" + smp.ResourceID + "/" + smp.Name
	if inst := smp.Instance(); inst != "" {
		topic += "/" + url.PathEscape(inst)
	}
	return topic
}

// Close disconnects, allowing 250ms for in-flight messages.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
