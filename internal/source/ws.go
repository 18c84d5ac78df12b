package source

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// WSConfig holds the websocket capture feed configuration.
type WSConfig struct {
	URL string
}

// wsMessage is the wire form used by websocket capture nodes.
type wsMessage struct {
	Device string `json:"device"`
	Frame  string `json:"frame"` // hex-encoded frame bytes
}

// WSSource dials a capture node that streams frames over a websocket. The
// connection is redialed with backoff until Close.
type WSSource struct {
	cfg    WSConfig
	logger *slog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWSSource prepares a websocket reader; dialing starts in Start.
func NewWSSource(cfg WSConfig, logger *slog.Logger) *WSSource {
	return &WSSource{
		cfg:    cfg,
		logger: logger.With("component", "ws-source"),
	}
}

// Start launches the dial-and-read loop in a background goroutine.
func (s *WSSource) Start(h Handler) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx, h)
	return nil
}

func (s *WSSource) run(ctx context.Context, h Handler) {
	defer s.wg.Done()
	backoff := time.Second
	for {
		start := time.Now()
		err := s.readConn(ctx, h)
		if ctx.Err() != nil {
			return
		}
		// A connection that lived for a while resets the backoff.
		if time.Since(start) > 30*time.Second {
			backoff = time.Second
		}
		s.logger.Warn("capture stream disconnected", "url", s.cfg.URL, "err", err, "retry_in", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (s *WSSource) readConn(ctx context.Context, h Handler) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, s.cfg.URL, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(4096)
	s.logger.Info("capture stream connected", "url", s.cfg.URL)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		frame, err := parseWSMessage(data)
		if err != nil {
			s.logger.Warn("bad capture message", "err", err)
			continue
		}
		frame.At = time.Now()
		h(frame)
	}
}

// Close stops the dial loop and waits for it to exit.
func (s *WSSource) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

// parseWSMessage decodes one capture node message into a Frame. The
// timestamp is left for the caller to fill.
func parseWSMessage(data []byte) (Frame, error) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Frame{}, fmt.Errorf("capture json: %w", err)
	}
	if msg.Device == "" {
		return Frame{}, fmt.Errorf("capture message without device")
	}
	raw, err := hex.DecodeString(msg.Frame)
	if err != nil {
		return Frame{}, fmt.Errorf("frame hex: %w", err)
	}
	return Frame{Device: msg.Device, Data: raw}, nil
}
