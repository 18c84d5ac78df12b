package source

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// SerialConfig holds the serial capture feed configuration.
type SerialConfig struct {
	Port string
	Baud int
}

// SerialSource reads frames from a capture node attached over a serial
// port. The node writes one frame per line: "<device-id> <hex-bytes>".
type SerialSource struct {
	cfg     SerialConfig
	port    serial.Port
	logger  *slog.Logger
	closing atomic.Bool
	wg      sync.WaitGroup
}

// NewSerialSource prepares a serial reader; the port is opened in Start.
func NewSerialSource(cfg SerialConfig, logger *slog.Logger) *SerialSource {
	return &SerialSource{
		cfg:    cfg,
		logger: logger.With("component", "serial-source"),
	}
}

// Start opens the port and begins reading lines in a background goroutine.
func (s *SerialSource) Start(h Handler) error {
	mode := &serial.Mode{
		BaudRate: s.cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("serial source: open %s: %w", s.cfg.Port, err)
	}
	s.port = port
	s.logger.Info("serial capture feed open", "port", s.cfg.Port, "baud", s.cfg.Baud)

	s.wg.Add(1)
	go s.readLoop(h)
	return nil
}

func (s *SerialSource) readLoop(h Handler) {
	defer s.wg.Done()
	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		device, data, err := parseFrameLine(line)
		if err != nil {
			s.logger.Warn("bad capture line", "err", err)
			continue
		}
		h(Frame{Device: device, Data: data, At: time.Now()})
	}
	if err := scanner.Err(); err != nil && !s.closing.Load() {
		s.logger.Warn("serial read stopped", "err", err)
	}
}

// Close closes the port and waits for the read loop to exit.
func (s *SerialSource) Close() error {
	if s.port == nil {
		return nil
	}
	s.closing.Store(true)
	err := s.port.Close()
	s.wg.Wait()
	return err
}

// parseFrameLine splits "<device-id> <hex-bytes>" into its parts.
func parseFrameLine(line string) (string, []byte, error) {
	device, hexPart, ok := strings.Cut(line, " ")
	if !ok {
		return "", nil, fmt.Errorf("no separator in %q", line)
	}
	if device == "" {
		return "", nil, fmt.Errorf("empty device id in %q", line)
	}
	data, err := hex.DecodeString(strings.TrimSpace(hexPart))
	if err != nil {
		return "", nil, fmt.Errorf("frame hex: %w", err)
	}
	return device, data, nil
}
