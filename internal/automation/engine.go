//go:build !no_automation

// Package automation runs user Lua scripts against the decoded event
// stream. Each script gets its own sandboxed VM and a single goroutine, so
// script authors never deal with locking.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/chanronson/wlckg1-bridge/internal/bridge"
	"github.com/chanronson/wlckg1-bridge/internal/decoder"
	"github.com/chanronson/wlckg1-bridge/internal/lockwire"
	"github.com/chanronson/wlckg1-bridge/internal/store"
)

// luaEventHandler is a registered Lua callback for an event pattern. The
// filter fields are empty when the script did not pin them.
type luaEventHandler struct {
	eventType string
	device    string
	action    string
	lockState string
	doorState string
	fn        *lua.LFunction
}

// scriptVM is a running Lua VM for a single script.
type scriptVM struct {
	state    *lua.LState
	commands chan func(*lua.LState) // serializes Lua access
	handlers []luaEventHandler
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex // protects handlers
}

// Engine manages script VMs and dispatches bus events to them.
type Engine struct {
	store   store.Store
	manager *Manager
	logger  *slog.Logger

	mu    sync.Mutex
	vms   map[string]*scriptVM // script ID -> running VM
	unsub func()
}

// NewEngine creates an automation engine.
func NewEngine(st store.Store, mgr *Manager, logger *slog.Logger) *Engine {
	return &Engine{
		store:   st,
		manager: mgr,
		logger:  logger.With("component", "automation"),
		vms:     make(map[string]*scriptVM),
	}
}

// Start subscribes to the bus and loads all enabled scripts.
func (e *Engine) Start(bus *bridge.EventBus) {
	e.unsub = bus.OnAll(e.dispatchEvent)

	scripts, err := e.manager.List()
	if err != nil {
		e.logger.Error("load scripts", "err", err)
		return
	}

	for _, s := range scripts {
		if !s.Meta.Enabled {
			continue
		}
		if err := e.startScript(s); err != nil {
			e.logger.Error("start script", "id", s.ID, "err", err)
		}
	}

	e.logger.Info("automation engine started", "scripts", len(e.vms))
}

// Stop cancels all VMs and unsubscribes from the bus.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, vm := range e.vms {
		vm.cancel()
		delete(e.vms, id)
	}

	if e.unsub != nil {
		e.unsub()
	}

	e.logger.Info("automation engine stopped")
}

func (e *Engine) startScript(s *Script) error {
	ctx, cancel := context.WithCancel(context.Background())

	L := newSandboxedState()
	vm := &scriptVM{
		state:    L,
		commands: make(chan func(*lua.LState), 64),
		ctx:      ctx,
		cancel:   cancel,
	}

	registerLockModule(L, vm, e)

	// Execute the script top level, which registers handlers via lock.on.
	if err := L.DoString(s.LuaCode); err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("execute script %s: %w", s.ID, err)
	}

	e.mu.Lock()
	e.vms[s.ID] = vm
	e.mu.Unlock()

	// Command loop, exits when the context is cancelled.
	go func() {
		defer L.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case fn := <-vm.commands:
				fn(L)
			}
		}
	}()

	e.logger.Info("script started", "id", s.ID, "name", s.Meta.Name)
	return nil
}

// newSandboxedState builds a VM with filesystem and process reach stripped
// out.
func newSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: false})
	for _, g := range []string{"os", "io", "loadfile", "dofile", "require", "load", "debug", "package"} {
		L.SetGlobal(g, lua.LNil)
	}
	return L
}

// dispatchEvent routes a bus event to all matching Lua handlers.
func (e *Engine) dispatchEvent(event bridge.Event) {
	e.mu.Lock()
	vmsCopy := make([]*scriptVM, 0, len(e.vms))
	for _, vm := range e.vms {
		vmsCopy = append(vmsCopy, vm)
	}
	e.mu.Unlock()

	for _, vm := range vmsCopy {
		vm.mu.Lock()
		handlers := make([]luaEventHandler, len(vm.handlers))
		copy(handlers, vm.handlers)
		vm.mu.Unlock()

		for _, h := range handlers {
			if !matchesHandler(h, event) {
				continue
			}

			fn := h.fn
			// Hand the call to the VM's command channel; never run Lua on
			// the emitter's goroutine.
			select {
			case <-vm.ctx.Done():
			case vm.commands <- func(L *lua.LState) {
				e.callHandler(L, fn, event)
			}:
			default:
				e.logger.Warn("script command channel full, dropping event")
			}
		}
	}
}

func matchesHandler(h luaEventHandler, event bridge.Event) bool {
	if h.eventType != event.Type {
		return false
	}
	if h.device != "" && eventDevice(event) != h.device {
		return false
	}
	if h.action == "" && h.lockState == "" && h.doorState == "" {
		return true
	}

	// The remaining filter keys describe decoded events; a pinned value can
	// never match a drop notification.
	evt, ok := event.Data.(*decoder.Event)
	if !ok {
		return false
	}
	if h.action != "" && string(evt.Action) != h.action {
		return false
	}
	if h.lockState != "" && string(evt.LockState) != h.lockState {
		return false
	}
	if h.doorState != "" && string(evt.DoorState) != h.doorState {
		return false
	}
	return true
}

// eventDevice extracts the device id from either payload type.
func eventDevice(event bridge.Event) string {
	switch data := event.Data.(type) {
	case *decoder.Event:
		return data.Device
	case bridge.Drop:
		return data.Device
	}
	return ""
}

func (e *Engine) callHandler(L *lua.LState, fn *lua.LFunction, event bridge.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("lua handler panic", "err", r)
		}
	}()

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, eventToLua(L, event)); err != nil {
		e.logger.Error("lua handler error", "err", err)
	}
}

// eventToLua builds the table handed to script callbacks. Optional fields
// that the event does not assert are left out of the table, so scripts see
// nil rather than an empty string.
func eventToLua(L *lua.LState, event bridge.Event) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("type", lua.LString(event.Type))

	switch data := event.Data.(type) {
	case *decoder.Event:
		tbl.RawSetString("device", lua.LString(data.Device))
		tbl.RawSetString("counter", lua.LNumber(data.Counter))
		if data.State != "" {
			tbl.RawSetString("state", lua.LString(data.State))
		}
		if data.LockState != "" {
			tbl.RawSetString("lock_state", lua.LString(data.LockState))
		}
		if data.Action != "" {
			tbl.RawSetString("action", lua.LString(data.Action))
		}
		if data.DoorState != lockwire.DoorNone {
			tbl.RawSetString("door_state", lua.LString(data.DoorState))
		}
		if data.Contact != nil {
			tbl.RawSetString("contact", lua.LBool(*data.Contact))
		}
	case bridge.Drop:
		tbl.RawSetString("device", lua.LString(data.Device))
		tbl.RawSetString("outcome", lua.LString(data.Outcome.String()))
		tbl.RawSetString("counter", lua.LNumber(data.Counter))
		tbl.RawSetString("frame_len", lua.LNumber(data.Len))
	}

	return tbl
}
