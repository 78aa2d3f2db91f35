package logstream

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	gosse "github.com/tmaxmax/go-sse"
	"go.uber.org/zap"
)

type SSEDialer struct {
	logger     *zap.Logger
	httpClient *http.Client
	url        string
}

// NewSSEDialer returns a dialer for a text/event-stream endpoint.
func NewSSEDialer(logger *zap.Logger, url string) *SSEDialer {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SSEDialer{
		logger: logger,
		// No client timeout: the response body lives as long as the stream.
		httpClient: &http.Client{},
		url:        url,
	}
}

func (d *SSEDialer) Dial(ctx context.Context) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create sse request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dial log stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("dial log stream: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err != nil || mt != "text/event-stream" {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("dial log stream: unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	d.logger.Info("log stream connected", zap.String("transport", "sse"), zap.String("url", d.url))

	s := &sseStream{
		logger: d.logger,
		body:   resp.Body,
	}
	s.baseStream = newBaseStream(func() error {
		cancel()
		return resp.Body.Close()
	})

	go s.readLoop()

	return s, nil
}

type sseStream struct {
	*baseStream
	logger *zap.Logger
	body   io.ReadCloser
}

func (s *sseStream) readLoop() {
	err := readEvents(s.body, s.emit)

	select {
	case <-s.done:
		// Closed by us; Close already recorded ErrClosed.
	default:
		if err == nil {
			err = ErrServerClosed
		}
		s.logger.Warn("log stream read loop exiting", zap.Error(err))
	}
	s.finish(err)
}

// readEvents decodes text/event-stream framing from r and calls emit for
// every event that carries data. It returns nil on a clean EOF, the read
// error otherwise, and stops early (returning nil) when emit reports false.
func readEvents(r io.Reader, emit func(Event) bool) error {
	for ev, err := range gosse.Read(r, nil) {
		if err != nil {
			return err
		}
		if ev.Data == "" {
			continue
		}
		kind := ev.Type
		if kind == "" {
			kind = "message"
		}
		if !emit(Event{Kind: EventKind(kind), ID: ev.LastEventID, Data: []byte(ev.Data)}) {
			return nil
		}
	}
	return nil
}
