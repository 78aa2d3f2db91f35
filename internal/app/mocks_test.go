package app

import (
	"botconsole/clients/dashboardapi"
	"botconsole/clients/logstream"
	"botconsole/clients/notifier"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// MockScheduler records timers and fires them on demand.
type MockScheduler struct {
	mu     sync.Mutex
	timers []*mockTimer
}

type mockTimer struct {
	sched    *MockScheduler
	d        time.Duration
	fn       func()
	periodic bool
	stopped  bool
	fired    bool
}

func (t *mockTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	live := !t.stopped && !(t.fired && !t.periodic)
	t.stopped = true
	return live
}

func NewMockScheduler() *MockScheduler {
	return &MockScheduler{}
}

func (s *MockScheduler) After(d time.Duration, fn func()) Timer {
	return s.add(d, fn, false)
}

func (s *MockScheduler) Every(d time.Duration, fn func()) Timer {
	return s.add(d, fn, true)
}

func (s *MockScheduler) add(d time.Duration, fn func(), periodic bool) *mockTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &mockTimer{sched: s, d: d, fn: fn, periodic: periodic}
	s.timers = append(s.timers, t)
	return t
}

// live returns the timers that can still fire.
func (s *MockScheduler) live(periodic bool, d time.Duration) []*mockTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*mockTimer
	for _, t := range s.timers {
		if t.stopped || t.periodic != periodic || (t.fired && !t.periodic) {
			continue
		}
		if d > 0 && t.d != d {
			continue
		}
		out = append(out, t)
	}
	return out
}

// LiveTickers counts running periodic timers.
func (s *MockScheduler) LiveTickers() int {
	return len(s.live(true, 0))
}

// PendingAfter counts one-shot timers of duration d still waiting.
func (s *MockScheduler) PendingAfter(d time.Duration) int {
	return len(s.live(false, d))
}

// FireAfter runs every waiting one-shot timer of duration d.
func (s *MockScheduler) FireAfter(d time.Duration) int {
	timers := s.live(false, d)
	for _, t := range timers {
		s.mu.Lock()
		t.fired = true
		s.mu.Unlock()
		t.fn()
	}
	return len(timers)
}

// Tick runs every live periodic timer once.
func (s *MockScheduler) Tick() int {
	timers := s.live(true, 0)
	for _, t := range timers {
		t.fn()
	}
	return len(timers)
}

// MockSectionLoader counts section loads.
type MockSectionLoader struct {
	mu    sync.Mutex
	calls map[string]int
}

func NewMockSectionLoader() *MockSectionLoader {
	return &MockSectionLoader{calls: make(map[string]int)}
}

func (m *MockSectionLoader) record(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
	return nil
}

func (m *MockSectionLoader) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockSectionLoader) LoadDashboard(ctx context.Context) error   { return m.record("dashboard") }
func (m *MockSectionLoader) LoadInstruments(ctx context.Context) error { return m.record("instruments") }
func (m *MockSectionLoader) LoadPortfolio(ctx context.Context) error   { return m.record("portfolio") }
func (m *MockSectionLoader) LoadOrders(ctx context.Context) error      { return m.record("orders") }
func (m *MockSectionLoader) LoadBotOverview(ctx context.Context) error { return m.record("bot") }
func (m *MockSectionLoader) LoadSettings(ctx context.Context) error    { return m.record("settings") }
func (m *MockSectionLoader) LoadAccount(ctx context.Context) error     { return m.record("account") }

// MockSectionStream counts the navigator's stream calls. When release is
// set, LoadRecent blocks until it is closed.
type MockSectionStream struct {
	mu                       sync.Mutex
	opens, closes, snapshots int
	release                  chan struct{}
}

func (m *MockSectionStream) LoadRecent(ctx context.Context) error {
	if m.release != nil {
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots++
	return nil
}

func (m *MockSectionStream) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	return nil
}

func (m *MockSectionStream) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
}

func (m *MockSectionStream) Counts() (opens, closes, snapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens, m.closes, m.snapshots
}

// MockStatusRefresher counts status refreshes.
type MockStatusRefresher struct {
	mu    sync.Mutex
	calls int
}

func (m *MockStatusRefresher) RefreshStatus(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return nil
}

func (m *MockStatusRefresher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockDashboardAPI serves canned section payloads.
type MockDashboardAPI struct {
	mu       sync.Mutex
	accounts []dashboardapi.Account
	err      error
	calls    []string
}

func NewMockDashboardAPI(accountID string) *MockDashboardAPI {
	m := &MockDashboardAPI{}
	if accountID != "" {
		m.accounts = []dashboardapi.Account{{ID: accountID, Name: "Test"}}
	}
	return m
}

func (m *MockDashboardAPI) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return m.err
}

func (m *MockDashboardAPI) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockDashboardAPI) raw(call string) (json.RawMessage, error) {
	if err := m.record(call); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"call":"` + call + `"}`), nil
}

func (m *MockDashboardAPI) GetAccounts(ctx context.Context) ([]dashboardapi.Account, error) {
	if err := m.record("accounts"); err != nil {
		return nil, err
	}
	return m.accounts, nil
}

func (m *MockDashboardAPI) GetPortfolio(ctx context.Context, accountID string) (json.RawMessage, error) {
	return m.raw("portfolio:" + accountID)
}

func (m *MockDashboardAPI) GetOrders(ctx context.Context, accountID string) (json.RawMessage, error) {
	return m.raw("orders:" + accountID)
}

func (m *MockDashboardAPI) GetInstruments(ctx context.Context, kind string) (json.RawMessage, error) {
	return m.raw("instruments:" + kind)
}

func (m *MockDashboardAPI) GetBotStatus(ctx context.Context) (json.RawMessage, error) {
	return m.raw("bot-status")
}

func (m *MockDashboardAPI) GetTradingOpportunities(ctx context.Context) (json.RawMessage, error) {
	return m.raw("opportunities")
}

func (m *MockDashboardAPI) GetMarginSettings(ctx context.Context) (json.RawMessage, error) {
	return m.raw("margin")
}

func (m *MockDashboardAPI) GetHardStops(ctx context.Context) (json.RawMessage, error) {
	return m.raw("hard-stops")
}

// MockModeAPI answers mode calls from queued results.
type MockModeAPI struct {
	mu        sync.Mutex
	status    dashboardapi.TradingModeStatus
	statusErr error
	switches  []*dashboardapi.SwitchResult
	confirmed []*dashboardapi.SwitchResult
	resets    []*dashboardapi.SwitchResult
	callErr   error
	calls     []string
}

func NewMockModeAPI(mode dashboardapi.TradingMode) *MockModeAPI {
	return &MockModeAPI{status: dashboardapi.TradingModeStatus{Mode: mode}}
}

func (m *MockModeAPI) SetStatus(mode dashboardapi.TradingMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = dashboardapi.TradingModeStatus{Mode: mode}
}

func (m *MockModeAPI) QueueSwitch(r dashboardapi.SwitchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.switches = append(m.switches, &r)
}

func (m *MockModeAPI) QueueConfirmed(r dashboardapi.SwitchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmed = append(m.confirmed, &r)
}

func (m *MockModeAPI) QueueReset(r dashboardapi.SwitchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, &r)
}

// Calls returns the mutating calls, e.g. "switch-confirmed:production".
func (m *MockModeAPI) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockModeAPI) GetTradingModeStatus(ctx context.Context) (*dashboardapi.TradingModeStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	s := m.status
	return &s, nil
}

func (m *MockModeAPI) pop(call string, queue *[]*dashboardapi.SwitchResult) (*dashboardapi.SwitchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	if m.callErr != nil {
		return nil, m.callErr
	}
	if len(*queue) == 0 {
		return nil, fmt.Errorf("unexpected call %s", call)
	}
	r := (*queue)[0]
	*queue = (*queue)[1:]
	if r.Success && r.CurrentMode.Valid() {
		m.status = dashboardapi.TradingModeStatus{Mode: r.CurrentMode}
	}
	return r, nil
}

func (m *MockModeAPI) SwitchTradingMode(ctx context.Context, mode dashboardapi.TradingMode) (*dashboardapi.SwitchResult, error) {
	return m.pop("switch:"+string(mode), &m.switches)
}

func (m *MockModeAPI) SwitchTradingModeConfirmed(ctx context.Context, mode dashboardapi.TradingMode) (*dashboardapi.SwitchResult, error) {
	return m.pop("switch-confirmed:"+string(mode), &m.confirmed)
}

func (m *MockModeAPI) ResetTradingMode(ctx context.Context) (*dashboardapi.SwitchResult, error) {
	return m.pop("reset", &m.resets)
}

// MockNotifier records mode changes.
type MockNotifier struct {
	mu      sync.Mutex
	changes []notifier.ModeChange
}

func (m *MockNotifier) SendModeChange(c notifier.ModeChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, c)
}

func (m *MockNotifier) Close() error { return nil }

func (m *MockNotifier) Changes() []notifier.ModeChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notifier.ModeChange(nil), m.changes...)
}

// MockStream is a controllable logstream.Stream.
type MockStream struct {
	mu     sync.Mutex
	events chan logstream.Event
	err    error
	closed bool
}

func NewMockStream() *MockStream {
	return &MockStream{events: make(chan logstream.Event, 64)}
}

func (s *MockStream) Events() <-chan logstream.Event { return s.events }

func (s *MockStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *MockStream) Close() error {
	s.end(logstream.ErrClosed)
	return nil
}

// Fail ends the stream with err as if the connection dropped.
func (s *MockStream) Fail(err error) {
	s.end(err)
}

func (s *MockStream) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.events)
}

func (s *MockStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Send delivers one event. Sends after the end are dropped.
func (s *MockStream) Send(kind logstream.EventKind, payload any) {
	var data []byte
	switch p := payload.(type) {
	case string:
		data = []byte(p)
	case []byte:
		data = p
	default:
		data, _ = json.Marshal(p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.events <- logstream.Event{Kind: kind, Data: data}
}

// MockDialer hands out a fresh MockStream per dial.
type MockDialer struct {
	mu      sync.Mutex
	streams []*MockStream
	dialErr error
}

func (d *MockDialer) Dial(ctx context.Context) (logstream.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		d.streams = append(d.streams, nil)
		return nil, d.dialErr
	}
	s := NewMockStream()
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *MockDialer) SetDialErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErr = err
}

func (d *MockDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

// Last returns the most recent successfully dialed stream.
func (d *MockDialer) Last() *MockStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.streams) - 1; i >= 0; i-- {
		if d.streams[i] != nil {
			return d.streams[i]
		}
	}
	return nil
}

// LiveStreams counts dialed streams that have not ended.
func (d *MockDialer) LiveStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.streams {
		if s != nil && !s.Closed() {
			n++
		}
	}
	return n
}

// MockBotLogAPI serves a fixed bot log.
type MockBotLogAPI struct {
	mu      sync.Mutex
	log     dashboardapi.BotLog
	err     error
	filters []dashboardapi.LogFilter
	clears  int
}

func (m *MockBotLogAPI) GetBotLog(ctx context.Context, filter dashboardapi.LogFilter) (*dashboardapi.BotLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filters = append(m.filters, filter)
	if m.err != nil {
		return nil, m.err
	}
	out := m.log
	return &out, nil
}

func (m *MockBotLogAPI) ClearBotLog(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.clears++
	m.log = dashboardapi.BotLog{Statistics: &dashboardapi.LogStatistics{}}
	return nil
}

// MockJournal records archived entries.
type MockJournal struct {
	mu      sync.Mutex
	entries []dashboardapi.LogEntry
}

func (j *MockJournal) Append(ctx context.Context, entries ...dashboardapi.LogEntry) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entries...)
	return len(entries), nil
}

func (j *MockJournal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

var errConnReset = errors.New("connection reset by peer")

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func entry(msg string) dashboardapi.LogEntry {
	return dashboardapi.NewLogEntry(
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local),
		dashboardapi.LevelInfo,
		dashboardapi.CategorySystemStatus,
		msg,
		"",
	)
}
