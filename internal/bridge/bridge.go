// Package bridge ties the frame sources to the decoder and fans decoded
// lock events out to the rest of the process.
package bridge

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chanronson/wlckg1-bridge/internal/decoder"
	"github.com/chanronson/wlckg1-bridge/internal/lockwire"
	"github.com/chanronson/wlckg1-bridge/internal/source"
	"github.com/chanronson/wlckg1-bridge/internal/store"
)

// Bridge owns the decode path. The decoder keeps per-device counters and
// is not safe for concurrent use, so one mutex serializes every frame
// from every source through decode, persist, and emit.
type Bridge struct {
	mu     sync.Mutex
	dec    *decoder.Decoder
	store  store.Store
	bus    *EventBus
	logger *slog.Logger
}

// New creates a bridge over an already-constructed decoder, store and bus.
func New(dec *decoder.Decoder, st store.Store, bus *EventBus, logger *slog.Logger) *Bridge {
	return &Bridge{
		dec:    dec,
		store:  st,
		bus:    bus,
		logger: logger.With("component", "bridge"),
	}
}

// Events returns the bus subscribers attach to.
func (b *Bridge) Events() *EventBus {
	return b.bus
}

// HandleFrame is the source.Handler every capture source delivers to.
func (b *Bridge) HandleFrame(f source.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	evt, outcome := b.dec.Decode(f.Device, f.Data, f.At)
	if evt == nil {
		b.bus.Emit(Event{Type: EventDrop, Data: Drop{
			Device:  f.Device,
			Outcome: outcome,
			Len:     len(f.Data),
			Counter: frameCounter(f.Data),
		}})
		return
	}

	// Storage trouble must not cost us the event; log and publish anyway.
	if err := b.persist(evt, f.At); err != nil {
		b.logger.Error("persist event", "device", evt.Device, "err", err)
	}

	b.logger.Info("lock event",
		"device", evt.Device,
		"counter", evt.Counter,
		"lock_state", evt.LockState,
		"action", evt.Action,
		"door_state", evt.DoorState)
	b.bus.Emit(Event{Type: EventLock, Data: evt})
}

// persist merges the event into the device's stored state and journals it.
// Door fields are only overwritten when the event actually asserts them,
// so a plain lock frame does not wipe a previously seen door position.
func (b *Bridge) persist(evt *decoder.Event, at time.Time) error {
	err := b.store.UpdateDeviceState(evt.Device, func(st *store.DeviceState) error {
		if evt.LockState != "" {
			st.LockState = string(evt.LockState)
		}
		if evt.DoorState != lockwire.DoorNone {
			st.DoorState = string(evt.DoorState)
		}
		if evt.Contact != nil {
			contact := *evt.Contact
			st.Contact = &contact
		}
		if evt.Action != "" {
			st.LastAction = string(evt.Action)
		}
		st.LastCounter = evt.Counter
		st.LastSeen = at
		st.EventCount++
		return nil
	})
	if err != nil {
		return fmt.Errorf("update device state: %w", err)
	}

	rec := &store.EventRecord{
		Device:    evt.Device,
		Counter:   evt.Counter,
		State:     string(evt.State),
		LockState: string(evt.LockState),
		Action:    string(evt.Action),
		DoorState: string(evt.DoorState),
		Contact:   evt.Contact,
		At:        at,
	}
	if err := b.store.AppendEvent(rec); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// frameCounter reads the sequence counter for drop diagnostics, best
// effort.
func frameCounter(data []byte) uint8 {
	if len(data) > lockwire.OffsetCounter {
		return data[lockwire.OffsetCounter]
	}
	return 0
}
