//go:build !no_mqtt

package main

import (
	"log/slog"

	"github.com/chanronson/wlckg1-bridge/internal/bridge"
	"github.com/chanronson/wlckg1-bridge/internal/mqtt"
	"github.com/chanronson/wlckg1-bridge/internal/store"
)

type mqttStopper struct {
	pub *mqtt.Publisher
}

func (m *mqttStopper) Stop() {
	if m.pub != nil {
		m.pub.Stop()
	}
}

func initMQTT(st store.Store, events *bridge.EventBus, cfg *Config, logger *slog.Logger) *mqttStopper {
	if !cfg.MQTT.Enabled {
		return &mqttStopper{}
	}
	pub, err := mqtt.NewPublisher(mqtt.Config{
		Broker:      cfg.MQTT.Broker,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		Discovery:   cfg.MQTT.Discovery,
	}, st, logger)
	if err != nil {
		logger.Error("mqtt publisher", "err", err)
		return &mqttStopper{}
	}
	pub.Start(events)
	return &mqttStopper{pub: pub}
}
