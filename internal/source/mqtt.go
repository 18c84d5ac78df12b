package source

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig holds the raw-frame subscriber configuration.
type MQTTConfig struct {
	Broker   string
	Username string
	Password string
	Topic    string // frames arrive on <Topic>/<device-id>
}

// MQTTSource subscribes to a topic tree where capture nodes publish raw
// lock frames, one device per subtopic.
type MQTTSource struct {
	client pahomqtt.Client
	cfg    MQTTConfig
	logger *slog.Logger
}

// NewMQTTSource prepares a subscriber; the broker connection is made in
// Start so the frame handler is in place before the first message.
func NewMQTTSource(cfg MQTTConfig, logger *slog.Logger) *MQTTSource {
	return &MQTTSource{
		cfg:    cfg,
		logger: logger.With("component", "mqtt-source"),
	}
}

// Start connects to the broker and subscribes. The subscription is redone
// from the connect handler so it survives reconnects.
func (s *MQTTSource) Start(h Handler) error {
	filter := s.cfg.Topic + "/+"
	opts := pahomqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID("wlckg1-bridge-source").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			s.logger.Info("frame subscriber connected", "filter", filter)
			// QoS 0: the counter filter downstream already tolerates
			// replays and gaps.
			c.Subscribe(filter, 0, func(_ pahomqtt.Client, msg pahomqtt.Message) {
				// Paho may reuse the payload buffer after the callback.
				data := make([]byte, len(msg.Payload()))
				copy(data, msg.Payload())
				h(Frame{Device: deviceFromTopic(msg.Topic()), Data: data, At: time.Now()})
			})
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			s.logger.Warn("frame subscriber connection lost", "err", err)
		})

	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt source connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt source connect: %w", err)
	}
	s.client = client
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSource) Close() error {
	if s.client != nil {
		s.client.Disconnect(1000)
	}
	return nil
}

// deviceFromTopic returns the last topic segment, which the capture nodes
// use as the device id.
func deviceFromTopic(topic string) string {
	return topic[strings.LastIndex(topic, "/")+1:]
}
