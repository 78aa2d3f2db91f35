package logstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Frame is the JSON envelope of one WebSocket log event.
type Frame struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data"`
}

type WSDialer struct {
	logger       *zap.Logger
	dialer       *websocket.Dialer
	url          string
	pingInterval time.Duration
}

// NewWSDialer returns a dialer for the WebSocket flavour of the log feed.
func NewWSDialer(logger *zap.Logger, url string) *WSDialer {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WSDialer{
		logger:       logger,
		dialer:       websocket.DefaultDialer,
		url:          url,
		pingInterval: 20 * time.Second,
	}
}

func (d *WSDialer) Dial(ctx context.Context) (Stream, error) {
	conn, _, err := d.dialer.DialContext(ctx, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial log ws: %w", err)
	}

	d.logger.Info("log stream connected", zap.String("transport", "websocket"), zap.String("url", d.url))

	conn.SetCloseHandler(func(code int, text string) error {
		d.logger.Warn("log ws close frame received",
			zap.Int("code", code),
			zap.String("reason", text),
		)
		return nil
	})

	s := &wsStream{
		logger:       d.logger,
		conn:         conn,
		pingInterval: d.pingInterval,
	}
	s.baseStream = newBaseStream(func() error {
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		return conn.Close()
	})

	go s.readLoop()
	go s.pingLoop()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

type wsStream struct {
	*baseStream
	logger       *zap.Logger
	conn         *websocket.Conn
	writeMu      sync.Mutex
	pingInterval time.Duration
}

func (s *wsStream) readLoop() {
	for {
		_, b, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					err = ErrServerClosed
				}
				s.logger.Warn("log ws read loop exiting", zap.Error(err))
			}
			s.finish(err)
			return
		}

		ev, ok := decodeFrame(b)
		if !ok {
			s.logger.Warn("log ws bad frame", zap.ByteString("frame", b))
			continue
		}
		if !s.emit(ev) {
			s.finish(nil)
			return
		}
	}
}

func (s *wsStream) pingLoop() {
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			s.writeMu.Unlock()
			if err != nil {
				s.logger.Debug("log ws ping failed", zap.Error(err))
			}
		case <-s.done:
			return
		}
	}
}

// decodeFrame turns one WebSocket text frame into an Event. A JSON string
// payload is unwrapped so text events look the same as over SSE.
func decodeFrame(b []byte) (Event, bool) {
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil || f.Event == "" {
		return Event{}, false
	}

	data := bytes.TrimSpace(f.Data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err == nil {
			data = []byte(text)
		}
	}

	return Event{Kind: EventKind(f.Event), ID: f.ID, Data: data}, true
}
