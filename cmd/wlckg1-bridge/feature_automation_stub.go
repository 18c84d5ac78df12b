//go:build no_automation

package main

import (
	"log/slog"

	"github.com/chanronson/wlckg1-bridge/internal/bridge"
	"github.com/chanronson/wlckg1-bridge/internal/store"
)

type autoStopper struct{}

func (a *autoStopper) Stop() {}

func initAutomation(_ store.Store, _ *bridge.EventBus, _ *Config, _ *slog.Logger) *autoStopper {
	return &autoStopper{}
}
