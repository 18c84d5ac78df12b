//go:build !no_automation

package main

import (
	"log/slog"

	"github.com/chanronson/wlckg1-bridge/internal/automation"
	"github.com/chanronson/wlckg1-bridge/internal/bridge"
	"github.com/chanronson/wlckg1-bridge/internal/store"
)

type autoStopper struct {
	engine *automation.Engine
}

func (a *autoStopper) Stop() {
	if a.engine != nil {
		a.engine.Stop()
	}
}

func initAutomation(st store.Store, events *bridge.EventBus, cfg *Config, logger *slog.Logger) *autoStopper {
	scriptMgr, err := automation.NewManager(cfg.ScriptsDir)
	if err != nil {
		logger.Error("create script manager", "err", err)
		return &autoStopper{}
	}

	engine := automation.NewEngine(st, scriptMgr, logger)
	engine.Start(events)
	return &autoStopper{engine: engine}
}
