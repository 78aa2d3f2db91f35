package logstream

import (
	"botconsole/config"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gorilla/websocket"
)

func collect(t *testing.T, input string) []Event {
	t.Helper()
	var got []Event
	err := readEvents(strings.NewReader(input), func(ev Event) bool {
		got = append(got, ev)
		return true
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return got
}

func TestReadEventsFraming(t *testing.T) {
	input := ": keep-alive\n" +
		"event: connected\n" +
		"data: hello\n\n" +
		"retry: 5000\n\n" +
		"event:new-log\r\n" +
		"id: 7\r\n" +
		"data:{\"a\":\r\n" +
		"data: 1}\r\n\r\n" +
		"data: plain\n\n" +
		"event: dangling\n\n"

	got := collect(t, input)

	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(got), got)
	}
	if got[0].Kind != EventConnected || string(got[0].Data) != "hello" {
		t.Errorf("unexpected first event: %+v", got[0])
	}
	if got[1].Kind != EventNewLog || got[1].ID != "7" || string(got[1].Data) != "{\"a\":\n1}" {
		t.Errorf("unexpected second event: kind=%s id=%s data=%q", got[1].Kind, got[1].ID, got[1].Data)
	}
	if got[2].Kind != "message" || string(got[2].Data) != "plain" {
		t.Errorf("unexpected third event: %+v", got[2])
	}
}

func TestReadEventsStopsWhenEmitRefuses(t *testing.T) {
	calls := 0
	err := readEvents(strings.NewReader("data: a\n\ndata: b\n\n"), func(Event) bool {
		calls++
		return false
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected reading to stop after the first event, got %d calls", calls)
	}
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestReadEventsReportsReadError(t *testing.T) {
	want := errors.New("connection reset")
	if err := readEvents(failingReader{err: want}, func(Event) bool { return true }); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

type logLine struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func TestSSEDialerDeliversEncodedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("unexpected accept header: %s", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		sse.Encode(w, sse.Event{Event: "connected", Data: "Подключение установлено"})
		sse.Encode(w, sse.Event{Event: "initial-logs", Data: []logLine{{Level: "INFO", Message: "boot"}}})
		w.(http.Flusher).Flush()
	}))
	defer server.Close()

	stream, err := NewSSEDialer(nil, server.URL).Dial(context.Background())
	if err != nil {
		t.Fatalf("unexpected dial error: %v", err)
	}
	defer stream.Close()

	var got []Event
	for ev := range stream.Events() {
		got = append(got, ev)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Kind != EventConnected || string(got[0].Data) != "Подключение установлено" {
		t.Errorf("unexpected connected event: %+v", got[0])
	}
	if got[1].Kind != EventInitialLogs || !strings.Contains(string(got[1].Data), `"message":"boot"`) {
		t.Errorf("unexpected initial-logs event: %s", got[1].Data)
	}
	if !errors.Is(stream.Err(), ErrServerClosed) {
		t.Errorf("expected server-closed error, got %v", stream.Err())
	}
}

func TestSSEDialerRejectsWrongContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if _, err := NewSSEDialer(nil, server.URL).Dial(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestSSEDialerRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewSSEDialer(nil, server.URL).Dial(context.Background())
	if err == nil || !strings.Contains(err.Error(), "status=503") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestSSECloseEndsStream(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		sse.Encode(w, sse.Event{Event: "connected", Data: "hi"})
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	stream, err := NewSSEDialer(nil, server.URL).Dial(context.Background())
	if err != nil {
		t.Fatalf("unexpected dial error: %v", err)
	}

	select {
	case ev := <-stream.Events():
		if ev.Kind != EventConnected {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connected")
	}

	stream.Close()
	stream.Close()

	select {
	case _, ok := <-stream.Events():
		if ok {
			t.Fatal("expected events channel to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for close")
	}
	if !errors.Is(stream.Err(), ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", stream.Err())
	}
}

func TestWSDialerDecodesFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"connected","data":"hi there"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"statistics-update","data":{"totalEntries":3}}`))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
	defer server.Close()

	cfg := config.Defaults()
	cfg.Dashboard.BaseURL = server.URL
	cfg.LogStream.Transport = config.TransportWebSocket
	cfg.LogStream.WSPath = "/"

	dialer := NewDialer(nil, cfg)
	if _, ok := dialer.(*WSDialer); !ok {
		t.Fatalf("expected WSDialer, got %T", dialer)
	}

	stream, err := dialer.Dial(context.Background())
	if err != nil {
		t.Fatalf("unexpected dial error: %v", err)
	}
	defer stream.Close()

	var got []Event
	for ev := range stream.Events() {
		got = append(got, ev)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(got), got)
	}
	if got[0].Kind != EventConnected || string(got[0].Data) != "hi there" {
		t.Errorf("unexpected first event: %+v", got[0])
	}
	if got[1].Kind != EventStatisticsUpdate || string(got[1].Data) != `{"totalEntries":3}` {
		t.Errorf("unexpected second event: %s", got[1].Data)
	}
	if !errors.Is(stream.Err(), ErrServerClosed) {
		t.Errorf("expected server-closed error, got %v", stream.Err())
	}
}

func TestNewDialerDefaultsToSSE(t *testing.T) {
	if _, ok := NewDialer(nil, config.Defaults()).(*SSEDialer); !ok {
		t.Fatal("expected SSEDialer for the default transport")
	}
}
