// Package source supplies raw lock frames from capture transports. A
// source knows how frames arrive (MQTT topic tree, serial line, websocket
// stream) but nothing about what is inside them; decoding happens in the
// bridge.
package source

import "time"

// Frame is one raw radio capture: which lock it came from, the frame
// bytes, and when the capture node saw it.
type Frame struct {
	Device string
	Data   []byte
	At     time.Time
}

// Handler consumes captured frames. It is called from the source's own
// goroutine and may block.
type Handler func(Frame)

// Source is a frame supplier. Start begins delivery to h and returns once
// the source is running; Close stops delivery and releases the transport.
type Source interface {
	Start(h Handler) error
	Close() error
}
