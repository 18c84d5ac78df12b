package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chanronson/wlckg1-bridge/internal/bridge"
	"github.com/chanronson/wlckg1-bridge/internal/decoder"
	"github.com/chanronson/wlckg1-bridge/internal/lockwire"
	"github.com/chanronson/wlckg1-bridge/internal/source"
	"github.com/chanronson/wlckg1-bridge/internal/store"
	"github.com/chanronson/wlckg1-bridge/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type Config struct {
	Sources struct {
		MQTT struct {
			Enabled  bool   `yaml:"enabled"`
			Broker   string `yaml:"broker"`
			Username string `yaml:"username"`
			Password string `yaml:"password"`
			Topic    string `yaml:"topic"`
		} `yaml:"mqtt"`
		Serial struct {
			Enabled bool   `yaml:"enabled"`
			Port    string `yaml:"port"`
			Baud    int    `yaml:"baud"`
		} `yaml:"serial"`
		WS struct {
			Enabled bool   `yaml:"enabled"`
			URL     string `yaml:"url"`
		} `yaml:"ws"`
	} `yaml:"sources"`
	Decoder struct {
		MinFrameLen   int    `yaml:"min_frame_len"`
		MaxFrameLen   int    `yaml:"max_frame_len"`
		DedupWindow   int    `yaml:"dedup_window"`
		StalePerCount string `yaml:"stale_per_count"`
		StaleFloor    string `yaml:"stale_floor"`
		StaleWake     string `yaml:"stale_wake"`
	} `yaml:"decoder"`
	// Codes overrides individual wire code assignments; unset fields keep
	// the production defaults.
	Codes struct {
		EventManual *int `yaml:"event_type_manual"`
		EventAuto   *int `yaml:"event_type_auto"`
		EventApp    *int `yaml:"event_type_app"`
		EventDoor   *int `yaml:"event_type_door"`
		Locked      *int `yaml:"lock_locked_code"`
		Unlocked    *int `yaml:"lock_unlocked_code"`
		DoorClosed  *int `yaml:"door_closed_code"`
		DoorOpen    *int `yaml:"door_open_code"`
	} `yaml:"codes"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
		Discovery   bool   `yaml:"discovery"`
	} `yaml:"mqtt"`
	Influx struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
		Token   string `yaml:"token"`
		Org     string `yaml:"org"`
		Bucket  string `yaml:"bucket"`
	} `yaml:"influx"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	ScriptsDir string `yaml:"scripts_dir"`
}

func (c *Config) validate() error {
	if !c.Sources.MQTT.Enabled && !c.Sources.Serial.Enabled && !c.Sources.WS.Enabled {
		return fmt.Errorf("no frame source enabled")
	}
	if c.Sources.MQTT.Enabled && c.Sources.MQTT.Broker == "" {
		return fmt.Errorf("sources.mqtt.broker is required")
	}
	if c.Sources.Serial.Enabled && c.Sources.Serial.Port == "" {
		return fmt.Errorf("sources.serial.port is required")
	}
	if c.Sources.WS.Enabled && c.Sources.WS.URL == "" {
		return fmt.Errorf("sources.ws.url is required")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if c.Influx.Enabled && c.Influx.URL == "" {
		return fmt.Errorf("influx.url is required")
	}
	return nil
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	// Create configured logger.
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("wlckg1-bridge starting", "version", version)

	opts, err := buildOptions(cfg)
	if err != nil {
		logger.Error("decoder config", "err", err)
		os.Exit(1)
	}
	dec, err := decoder.New(opts, logger)
	if err != nil {
		logger.Error("create decoder", "err", err)
		os.Exit(1)
	}

	// Open store
	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	events := bridge.NewEventBus(logger)
	br := bridge.New(dec, db, events, logger)

	// Start MQTT publisher (no-op when built with no_mqtt tag).
	pub := initMQTT(db, events, cfg, logger)

	var recorder *telemetry.Recorder
	if cfg.Influx.Enabled {
		recorder, err = telemetry.NewRecorder(telemetry.Config{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		}, logger)
		if err != nil {
			// The bridge is still useful without dashboards.
			logger.Warn("influx unavailable, continuing without telemetry", "err", err)
		} else {
			recorder.Start(events)
		}
	}

	// Start automation engine (no-op when built with no_automation tag).
	auto := initAutomation(db, events, cfg, logger)

	// Sources go last so every subscriber sees the first frame.
	sources, err := startSources(cfg, br, logger)
	if err != nil {
		logger.Error("start sources", "err", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	for _, src := range sources {
		if err := src.Close(); err != nil {
			logger.Error("close source", "err", err)
		}
	}
	auto.Stop()
	pub.Stop()
	if recorder != nil {
		recorder.Stop()
	}

	logger.Info("goodbye")
}

// startSources builds and starts every enabled frame source. On failure the
// already-started sources are closed again so main can exit cleanly.
func startSources(cfg *Config, br *bridge.Bridge, logger *slog.Logger) ([]source.Source, error) {
	var started []source.Source
	start := func(name string, src source.Source) error {
		if err := src.Start(br.HandleFrame); err != nil {
			for _, prev := range started {
				prev.Close()
			}
			return fmt.Errorf("start %s source: %w", name, err)
		}
		started = append(started, src)
		return nil
	}

	if cfg.Sources.MQTT.Enabled {
		src := source.NewMQTTSource(source.MQTTConfig{
			Broker:   cfg.Sources.MQTT.Broker,
			Username: cfg.Sources.MQTT.Username,
			Password: cfg.Sources.MQTT.Password,
			Topic:    cfg.Sources.MQTT.Topic,
		}, logger)
		if err := start("mqtt", src); err != nil {
			return nil, err
		}
	}
	if cfg.Sources.Serial.Enabled {
		src := source.NewSerialSource(source.SerialConfig{
			Port: cfg.Sources.Serial.Port,
			Baud: cfg.Sources.Serial.Baud,
		}, logger)
		if err := start("serial", src); err != nil {
			return nil, err
		}
	}
	if cfg.Sources.WS.Enabled {
		src := source.NewWSSource(source.WSConfig{
			URL: cfg.Sources.WS.URL,
		}, logger)
		if err := start("ws", src); err != nil {
			return nil, err
		}
	}
	return started, nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "wlckg1-bridge.db"
	}
	if cfg.Sources.MQTT.Topic == "" {
		cfg.Sources.MQTT.Topic = "wlckg1/raw"
	}
	if cfg.Sources.Serial.Baud == 0 {
		cfg.Sources.Serial.Baud = 115200
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "wlckg1"
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

// buildOptions merges the decoder section over the production defaults.
func buildOptions(cfg *Config) (decoder.Options, error) {
	opts := decoder.DefaultOptions()
	if cfg.Decoder.MinFrameLen != 0 {
		opts.MinFrameLen = cfg.Decoder.MinFrameLen
	}
	if cfg.Decoder.MaxFrameLen != 0 {
		opts.MaxFrameLen = cfg.Decoder.MaxFrameLen
	}
	if cfg.Decoder.DedupWindow != 0 {
		if cfg.Decoder.DedupWindow < 0 || cfg.Decoder.DedupWindow > 255 {
			return opts, fmt.Errorf("decoder.dedup_window must be 1-255, got %d", cfg.Decoder.DedupWindow)
		}
		opts.DedupWindow = uint8(cfg.Decoder.DedupWindow)
	}
	var err error
	if opts.StalePerCount, err = parseDuration(cfg.Decoder.StalePerCount, opts.StalePerCount, "decoder.stale_per_count"); err != nil {
		return opts, err
	}
	if opts.StaleFloor, err = parseDuration(cfg.Decoder.StaleFloor, opts.StaleFloor, "decoder.stale_floor"); err != nil {
		return opts, err
	}
	if opts.StaleWake, err = parseDuration(cfg.Decoder.StaleWake, opts.StaleWake, "decoder.stale_wake"); err != nil {
		return opts, err
	}
	if err := applyCodes(&opts.Codes, cfg); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseDuration(value string, fallback time.Duration, name string) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func applyCodes(codes *lockwire.Codes, cfg *Config) error {
	overrides := []struct {
		name  string
		value *int
		dst   *uint8
	}{
		{"event_type_manual", cfg.Codes.EventManual, &codes.EventManual},
		{"event_type_auto", cfg.Codes.EventAuto, &codes.EventAuto},
		{"event_type_app", cfg.Codes.EventApp, &codes.EventApp},
		{"event_type_door", cfg.Codes.EventDoor, &codes.EventDoor},
		{"lock_locked_code", cfg.Codes.Locked, &codes.StateLocked},
		{"lock_unlocked_code", cfg.Codes.Unlocked, &codes.StateUnlocked},
		{"door_closed_code", cfg.Codes.DoorClosed, &codes.StateDoorClosed},
		{"door_open_code", cfg.Codes.DoorOpen, &codes.StateDoorOpen},
	}
	for _, o := range overrides {
		if o.value == nil {
			continue
		}
		if *o.value < 0 || *o.value > 255 {
			return fmt.Errorf("codes.%s must be 0-255, got %d", o.name, *o.value)
		}
		*o.dst = uint8(*o.value)
	}
	return nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
