//go:build !no_mqtt

// Package mqtt publishes decoded lock state for consumers like Home
// Assistant. The bridge is observe-only: there is no command topic and no
// way to operate the lock from here.
package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/chanronson/wlckg1-bridge/internal/bridge"
	"github.com/chanronson/wlckg1-bridge/internal/decoder"
	"github.com/chanronson/wlckg1-bridge/internal/store"
)

// Config holds MQTT publisher configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
	Discovery   bool
}

// Publisher mirrors decoded events and merged device state onto MQTT.
type Publisher struct {
	client pahomqtt.Client
	store  store.Store
	prefix string
	disc   bool
	logger *slog.Logger
	unsub  func()

	// Devices we have already announced to Home Assistant.
	mu        sync.Mutex
	announced map[string]bool
}

// statePayload is the retained per-device state document.
type statePayload struct {
	State      string `json:"state,omitempty"`
	LockState  string `json:"lock_state,omitempty"`
	Action     string `json:"action,omitempty"`
	DoorState  string `json:"door_state,omitempty"`
	Contact    *bool  `json:"contact,omitempty"`
	LastSeen   string `json:"last_seen,omitempty"`
	EventCount uint64 `json:"event_count,omitempty"`
}

// NewPublisher creates and connects a publisher. The will message marks
// the bridge offline if the process dies without a clean Stop.
func NewPublisher(cfg Config, st store.Store, logger *slog.Logger) (*Publisher, error) {
	p := &Publisher{
		store:     st,
		prefix:    cfg.TopicPrefix,
		disc:      cfg.Discovery,
		logger:    logger.With("component", "mqtt"),
		announced: make(map[string]bool),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("wlckg1-bridge").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			p.logger.Info("MQTT connected")
			p.publishBridgeState("online")
			p.publishAllDiscovery()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			p.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	// Assigned before Connect: the connect handler publishes through it.
	p.client = pahomqtt.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return p, nil
}

// Start subscribes to decoded lock events on the bus.
func (p *Publisher) Start(bus *bridge.EventBus) {
	p.unsub = bus.On(bridge.EventLock, p.handleLockEvent)
	p.logger.Info("MQTT publisher started", "prefix", p.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (p *Publisher) Stop() {
	if p.unsub != nil {
		p.unsub()
	}
	p.publishBridgeState("offline")
	p.client.Disconnect(1000)
	p.logger.Info("MQTT publisher stopped")
}

func (p *Publisher) handleLockEvent(event bridge.Event) {
	evt, ok := event.Data.(*decoder.Event)
	if !ok {
		return
	}

	p.maybeAnnounce(evt.Device)

	// The event itself, not retained: one message per state transition.
	p.publish(p.prefix+"/"+evt.Device+"/event", mustJSON(evt), false)

	// The merged state document, retained so consumers see the latest
	// state on subscribe. Built from the store so door state persists
	// across lock-only events.
	st, err := p.store.GetDeviceState(evt.Device)
	if err != nil {
		p.logger.Warn("state read failed, skipping retained publish",
			"device", evt.Device, "err", err)
		return
	}
	p.publish(p.prefix+"/"+evt.Device, mustJSON(renderState(st)), true)
}

// renderState maps a stored device record onto the published document.
func renderState(st *store.DeviceState) statePayload {
	out := statePayload{
		State:      commandFor(st.LockState),
		LockState:  st.LockState,
		Action:     st.LastAction,
		DoorState:  st.DoorState,
		Contact:    st.Contact,
		EventCount: st.EventCount,
	}
	if !st.LastSeen.IsZero() {
		out.LastSeen = st.LastSeen.Format(time.RFC3339)
	}
	return out
}

func commandFor(lockState string) string {
	switch lockState {
	case "locked":
		return "LOCK"
	case "unlocked":
		return "UNLOCK"
	}
	return ""
}

// maybeAnnounce publishes Home Assistant discovery the first time a
// device shows up.
func (p *Publisher) maybeAnnounce(device string) {
	if !p.disc {
		return
	}
	p.mu.Lock()
	seen := p.announced[device]
	p.announced[device] = true
	p.mu.Unlock()
	if seen {
		return
	}
	for _, msg := range buildDiscovery(device, p.prefix) {
		p.publish(msg.Topic, msg.Payload, true)
	}
	p.logger.Info("published HA discovery", "device", device)
}

// publishAllDiscovery re-announces every known device. Runs on every
// (re)connect since the broker may have restarted and lost the retained
// configs.
func (p *Publisher) publishAllDiscovery() {
	if !p.disc {
		return
	}
	states, err := p.store.ListDeviceStates()
	if err != nil {
		p.logger.Error("list devices for discovery", "err", err)
		return
	}
	p.mu.Lock()
	for _, st := range states {
		p.announced[st.Device] = true
	}
	p.mu.Unlock()
	for _, st := range states {
		for _, msg := range buildDiscovery(st.Device, p.prefix) {
			p.publish(msg.Topic, msg.Payload, true)
		}
	}
}

func (p *Publisher) publishBridgeState(state string) {
	p.publish(p.prefix+"/bridge/state", []byte(state), true)
}

func (p *Publisher) publish(topic string, payload []byte, retained bool) {
	token := p.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			p.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			p.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
