//go:build no_mqtt

package main

import (
	"log/slog"

	"github.com/chanronson/wlckg1-bridge/internal/bridge"
	"github.com/chanronson/wlckg1-bridge/internal/store"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ store.Store, _ *bridge.EventBus, _ *Config, _ *slog.Logger) *mqttStopper {
	return &mqttStopper{}
}
