// Package telemetry mirrors decode activity into InfluxDB: one point per
// decoded event, one per refused frame. Dashboards over the drop outcomes
// are how you notice a lock retransmitting garbage or a capture node
// replaying old traffic.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/chanronson/wlckg1-bridge/internal/bridge"
	"github.com/chanronson/wlckg1-bridge/internal/decoder"
	"github.com/chanronson/wlckg1-bridge/internal/lockwire"
)

// Config holds InfluxDB settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

const (
	batchSize     = 50
	flushInterval = 5 * time.Second
	pingTimeout   = 10 * time.Second
)

// Recorder subscribes to the bridge bus and writes points through the
// non-blocking batched API.
type Recorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *slog.Logger
	unsub    func()
}

// NewRecorder connects to InfluxDB and verifies it with a ping.
func NewRecorder(cfg Config, logger *slog.Logger) (*Recorder, error) {
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(batchSize).
			SetFlushInterval(uint(flushInterval.Milliseconds())))

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influx ping: %w", err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("influx ping: server not healthy")
	}

	r := &Recorder{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		logger:   logger.With("component", "telemetry"),
	}
	// Writes are async; errors surface on this channel.
	go r.drainErrors(r.writeAPI.Errors())
	return r, nil
}

// Start subscribes to every bus event.
func (r *Recorder) Start(bus *bridge.EventBus) {
	r.unsub = bus.OnAll(r.handle)
	r.logger.Info("telemetry recorder started")
}

// Stop unsubscribes, flushes pending points, and closes the client.
func (r *Recorder) Stop() {
	if r.unsub != nil {
		r.unsub()
	}
	r.writeAPI.Flush()
	r.client.Close()
	r.logger.Info("telemetry recorder stopped")
}

func (r *Recorder) handle(event bridge.Event) {
	switch event.Type {
	case bridge.EventLock:
		if evt, ok := event.Data.(*decoder.Event); ok {
			r.writeAPI.WritePoint(lockPoint(evt, time.Now()))
		}
	case bridge.EventDrop:
		if d, ok := event.Data.(bridge.Drop); ok {
			r.writeAPI.WritePoint(dropPoint(d, time.Now()))
		}
	}
}

func (r *Recorder) drainErrors(ch <-chan error) {
	for err := range ch {
		r.logger.Warn("influx write error", "err", err)
	}
}

// lockPoint builds the measurement for an accepted event. Absent optional
// fields stay absent rather than writing zero values.
func lockPoint(evt *decoder.Event, at time.Time) *write.Point {
	fields := map[string]interface{}{
		"counter": int64(evt.Counter),
	}
	if evt.LockState != "" {
		fields["lock_state"] = string(evt.LockState)
	}
	if evt.Action != "" {
		fields["action"] = string(evt.Action)
	}
	if evt.DoorState != lockwire.DoorNone {
		fields["door_state"] = string(evt.DoorState)
	}
	if evt.Contact != nil {
		fields["contact"] = *evt.Contact
	}
	return influxdb2.NewPoint("lock_event",
		map[string]string{"device": evt.Device},
		fields, at)
}

// dropPoint builds the measurement for a refused frame. Outcome is a tag
// so dashboards can group by it.
func dropPoint(d bridge.Drop, at time.Time) *write.Point {
	return influxdb2.NewPoint("frame_drop",
		map[string]string{
			"device":  d.Device,
			"outcome": d.Outcome.String(),
		},
		map[string]interface{}{
			"counter":   int64(d.Counter),
			"frame_len": int64(d.Len),
		},
		at)
}
