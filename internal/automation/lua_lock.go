//go:build !no_automation

package automation

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/chanronson/wlckg1-bridge/internal/store"
)

// registerLockModule registers the `lock` global table in a Lua state.
func registerLockModule(L *lua.LState, vm *scriptVM, e *Engine) {
	mod := L.NewTable()

	mod.RawSetString("on", L.NewFunction(func(L *lua.LState) int {
		return lockOn(L, vm)
	}))

	mod.RawSetString("state", L.NewFunction(func(L *lua.LState) int {
		return lockState(L, e)
	}))

	mod.RawSetString("devices", L.NewFunction(func(L *lua.LState) int {
		return lockDevices(L, e)
	}))

	mod.RawSetString("after", L.NewFunction(func(L *lua.LState) int {
		return lockAfter(L, vm, e)
	}))

	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		return lockLog(L, e)
	}))

	L.SetGlobal("lock", mod)
}

const maxHandlersPerScript = 100

// lock.on(type, filter, callback)
func lockOn(L *lua.LState, vm *scriptVM) int {
	eventType := L.CheckString(1)
	filterTable := L.CheckTable(2)
	fn := L.CheckFunction(3)

	h := luaEventHandler{
		eventType: eventType,
		fn:        fn,
	}

	if v := filterTable.RawGetString("device"); v != lua.LNil {
		h.device = v.String()
	}
	if v := filterTable.RawGetString("action"); v != lua.LNil {
		h.action = v.String()
	}
	if v := filterTable.RawGetString("lock_state"); v != lua.LNil {
		h.lockState = v.String()
	}
	if v := filterTable.RawGetString("door_state"); v != lua.LNil {
		h.doorState = v.String()
	}

	vm.mu.Lock()
	if len(vm.handlers) >= maxHandlersPerScript {
		vm.mu.Unlock()
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
		return 0
	}
	vm.handlers = append(vm.handlers, h)
	vm.mu.Unlock()

	return 0
}

// lock.state(device) returns the stored merged state, or nil for a device
// the bridge has never seen.
func lockState(L *lua.LState, e *Engine) int {
	device := L.CheckString(1)

	st, err := e.store.GetDeviceState(device)
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}

	L.Push(stateToLua(L, st))
	return 1
}

// lock.devices() returns a table of every known device state.
func lockDevices(L *lua.LState, e *Engine) int {
	states, err := e.store.ListDeviceStates()
	if err != nil {
		L.Push(L.NewTable())
		return 1
	}

	tbl := L.NewTable()
	for i, st := range states {
		tbl.RawSetInt(i+1, stateToLua(L, st))
	}
	L.Push(tbl)
	return 1
}

func stateToLua(L *lua.LState, st *store.DeviceState) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("device", lua.LString(st.Device))
	if st.LockState != "" {
		tbl.RawSetString("lock_state", lua.LString(st.LockState))
	}
	if st.DoorState != "" {
		tbl.RawSetString("door_state", lua.LString(st.DoorState))
	}
	if st.Contact != nil {
		tbl.RawSetString("contact", lua.LBool(*st.Contact))
	}
	if st.LastAction != "" {
		tbl.RawSetString("last_action", lua.LString(st.LastAction))
	}
	tbl.RawSetString("last_counter", lua.LNumber(st.LastCounter))
	if !st.LastSeen.IsZero() {
		tbl.RawSetString("last_seen", lua.LString(st.LastSeen.Format(time.RFC3339)))
	}
	tbl.RawSetString("event_count", lua.LNumber(st.EventCount))
	return tbl
}

// lock.after(seconds, callback) runs the callback later, on the script's
// own VM goroutine.
func lockAfter(L *lua.LState, vm *scriptVM, e *Engine) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	go func() {
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}

		select {
		case vm.commands <- func(L *lua.LState) {
			if err := L.CallByParam(lua.P{
				Fn:      fn,
				NRet:    0,
				Protect: true,
			}); err != nil {
				e.logger.Error("after callback error", "err", err)
			}
		}:
		default:
			e.logger.Warn("after: command channel full")
		}
	}()

	return 0
}

// lock.log(msg)
func lockLog(L *lua.LState, e *Engine) int {
	msg := L.CheckString(1)
	e.logger.Info("script log", "msg", msg)
	return 0
}
