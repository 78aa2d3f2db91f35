package logstream

import (
	"botconsole/config"
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// EventKind names a server-push event.
type EventKind string

const (
	EventConnected        EventKind = "connected"
	EventInitialLogs      EventKind = "initial-logs"
	EventNewLog           EventKind = "new-log"
	EventStatisticsUpdate EventKind = "statistics-update"
)

// Event is one decoded server-push event. Data is the raw payload: plain
// text for connected, JSON for everything else.
type Event struct {
	Kind EventKind
	ID   string
	Data []byte
}

var (
	// ErrClosed is reported by a stream the caller closed.
	ErrClosed = errors.New("log stream closed")
	// ErrServerClosed is reported when the server ended the stream.
	ErrServerClosed = errors.New("log stream ended by server")
)

// Stream is one live server-push connection.
type Stream interface {
	// Events yields events in arrival order and is closed when the
	// connection ends for any reason.
	Events() <-chan Event
	// Err returns why the connection ended. Only meaningful once Events is closed.
	Err() error
	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Dialer opens streams.
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// NewDialer returns the dialer for the configured transport.
func NewDialer(logger *zap.Logger, cfg *config.Config) Dialer {
	if cfg.LogStream.Transport == config.TransportWebSocket {
		return NewWSDialer(logger, cfg.WebSocketURL())
	}
	return NewSSEDialer(logger, cfg.SSEURL())
}

// baseStream holds the bookkeeping shared by both transports.
type baseStream struct {
	events chan Event
	done   chan struct{}

	closeOnce sync.Once
	closeFn   func() error

	errMu sync.Mutex
	err   error
}

func newBaseStream(closeFn func() error) *baseStream {
	return &baseStream{
		events:  make(chan Event, 256),
		done:    make(chan struct{}),
		closeFn: closeFn,
	}
}

func (s *baseStream) Events() <-chan Event {
	return s.events
}

func (s *baseStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *baseStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.setErr(ErrClosed)
		close(s.done)
		if s.closeFn != nil {
			err = s.closeFn()
		}
	})
	return err
}

// setErr records the first terminal error only.
func (s *baseStream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// emit delivers ev unless the stream is closing. Returns false once closed.
func (s *baseStream) emit(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// finish is called exactly once by the read loop when it exits.
func (s *baseStream) finish(err error) {
	if err != nil {
		s.setErr(err)
	}
	close(s.events)
}
