package app

import (
	"botconsole/clients/dashboardapi"
	"botconsole/clients/logstream"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// ConnState is the log stream connection state.
type ConnState string

const (
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnDisconnected ConnState = "disconnected"
)

// Indicator is the user-visible connection badge. A connected indicator
// dismisses itself; a disconnected one stays until the state changes.
type Indicator struct {
	State   ConnState
	Visible bool
}

// LogLine is a buffered entry plus its display highlight.
type LogLine struct {
	dashboardapi.LogEntry
	Highlighted bool
}

// BotLogAPI is the REST side of the bot log.
type BotLogAPI interface {
	GetBotLog(ctx context.Context, filter dashboardapi.LogFilter) (*dashboardapi.BotLog, error)
	ClearBotLog(ctx context.Context) error
}

// Journal stores received entries. Optional.
type Journal interface {
	Append(ctx context.Context, entries ...dashboardapi.LogEntry) (int, error)
}

// SectionSource reports the active section.
type SectionSource interface {
	CurrentSection() Section
}

// LogStreamOptions carries the stream's tunables.
type LogStreamOptions struct {
	ReconnectDelay     time.Duration
	ReconnectMaxDelay  time.Duration
	ConnectedIndicator time.Duration
	Highlight          time.Duration
	OnChange           func()
}

type bufferedLine struct {
	entry dashboardapi.LogEntry
	id    uint64
}

// LogStream keeps at most one live server-push connection, decodes its
// events into the log buffer and statistics, and reconnects on failure
// while the trading-bot section stays active.
type LogStream struct {
	logger   *zap.Logger
	dialer   logstream.Dialer
	api      BotLogAPI
	journal  Journal
	sched    Scheduler
	toasts   *Toasts
	opts     LogStreamOptions
	sections SectionSource

	mu           sync.Mutex
	ctx          context.Context
	stream       logstream.Stream
	gen          uint64
	state        ConnState
	indicator    Indicator
	indicatorSeq uint64
	retryTimer   Timer
	retryDelay   *backoff.Backoff
	lineSeq      uint64
	buffer       []bufferedLine
	highlighted  map[uint64]bool
	stats        *dashboardapi.LogStatistics
	filter       dashboardapi.LogFilter
}

func NewLogStream(
	logger *zap.Logger,
	dialer logstream.Dialer,
	api BotLogAPI,
	journal Journal,
	sched Scheduler,
	toasts *Toasts,
	opts LogStreamOptions,
) *LogStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.OnChange == nil {
		opts.OnChange = func() {}
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.ReconnectMaxDelay < opts.ReconnectDelay {
		opts.ReconnectMaxDelay = opts.ReconnectDelay
	}
	if opts.ConnectedIndicator <= 0 {
		opts.ConnectedIndicator = 3 * time.Second
	}
	if opts.Highlight <= 0 {
		opts.Highlight = time.Second
	}

	return &LogStream{
		logger:  logger,
		dialer:  dialer,
		api:     api,
		journal: journal,
		sched:   sched,
		toasts:  toasts,
		opts:    opts,
		ctx:     context.Background(),
		state:   ConnDisconnected,
		retryDelay: &backoff.Backoff{
			Min:    opts.ReconnectDelay,
			Max:    opts.ReconnectMaxDelay,
			Factor: 2,
		},
		highlighted: make(map[uint64]bool),
	}
}

// BindSections sets the section source consulted when a retry fires.
func (ls *LogStream) BindSections(s SectionSource) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.sections = s
}

// Open replaces any live connection with a new one.
func (ls *LogStream) Open(ctx context.Context) error {
	ls.mu.Lock()
	ls.gen++
	gen := ls.gen
	old := ls.stream
	ls.stream = nil
	ls.ctx = ctx
	ls.stopRetryLocked()
	ls.state = ConnConnecting
	ls.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	ls.opts.OnChange()

	s, err := ls.dialer.Dial(ctx)

	ls.mu.Lock()
	if gen != ls.gen {
		// A newer Open or Close superseded this one.
		ls.mu.Unlock()
		if s != nil {
			_ = s.Close()
		}
		return nil
	}
	if err != nil {
		ls.mu.Unlock()
		ls.disconnected(gen, err)
		return err
	}
	ls.stream = s
	ls.mu.Unlock()

	go ls.consume(gen, s)
	return nil
}

// Close tears down the live connection without scheduling a retry.
func (ls *LogStream) Close() {
	ls.mu.Lock()
	ls.gen++
	old := ls.stream
	ls.stream = nil
	ls.stopRetryLocked()
	ls.state = ConnDisconnected
	ls.indicator = Indicator{}
	ls.mu.Unlock()

	if old != nil {
		_ = old.Close()
		ls.logger.Info("log stream closed")
	}
	ls.opts.OnChange()
}

func (ls *LogStream) consume(gen uint64, s logstream.Stream) {
	for ev := range s.Events() {
		ls.dispatch(gen, ev)
	}

	err := s.Err()
	if errors.Is(err, logstream.ErrClosed) {
		return
	}
	ls.disconnected(gen, err)
}

func (ls *LogStream) dispatch(gen uint64, ev logstream.Event) {
	ls.mu.Lock()
	if gen != ls.gen {
		ls.mu.Unlock()
		return
	}
	ls.mu.Unlock()

	switch ev.Kind {
	case logstream.EventConnected:
		ls.onConnected(string(ev.Data))

	case logstream.EventInitialLogs:
		var entries []dashboardapi.LogEntry
		if err := json.Unmarshal(ev.Data, &entries); err != nil {
			ls.logger.Warn("skipping malformed initial-logs", zap.Error(err))
			return
		}
		ls.replaceBuffer(entries)
		ls.archive(entries...)

	case logstream.EventNewLog:
		var entry dashboardapi.LogEntry
		if err := json.Unmarshal(ev.Data, &entry); err != nil {
			ls.logger.Warn("skipping malformed new-log", zap.Error(err))
			return
		}
		ls.prepend(entry)
		ls.archive(entry)

	case logstream.EventStatisticsUpdate:
		var stats dashboardapi.LogStatistics
		if err := json.Unmarshal(ev.Data, &stats); err != nil {
			ls.logger.Warn("skipping malformed statistics-update", zap.Error(err))
			return
		}
		ls.mu.Lock()
		ls.stats = &stats
		ls.mu.Unlock()
		ls.opts.OnChange()

	default:
		ls.logger.Debug("ignoring log stream event", zap.String("event", string(ev.Kind)))
	}
}

func (ls *LogStream) onConnected(message string) {
	ls.mu.Lock()
	ls.state = ConnConnected
	ls.retryDelay.Reset()
	ls.indicatorSeq++
	seq := ls.indicatorSeq
	ls.indicator = Indicator{State: ConnConnected, Visible: true}
	ls.mu.Unlock()

	ls.logger.Info("log stream handshake", zap.String("message", message))

	ls.sched.After(ls.opts.ConnectedIndicator, func() {
		ls.mu.Lock()
		if ls.indicatorSeq == seq {
			ls.indicator.Visible = false
		}
		ls.mu.Unlock()
		ls.opts.OnChange()
	})
	ls.opts.OnChange()
}

// disconnected records a failed connection and schedules one retry.
func (ls *LogStream) disconnected(gen uint64, err error) {
	ls.mu.Lock()
	if gen != ls.gen || ls.retryTimer != nil {
		ls.mu.Unlock()
		return
	}
	if ls.ctx.Err() != nil {
		ls.state = ConnDisconnected
		ls.mu.Unlock()
		return
	}

	ls.stream = nil
	ls.state = ConnDisconnected
	ls.indicatorSeq++
	ls.indicator = Indicator{State: ConnDisconnected, Visible: true}
	delay := ls.retryDelay.Duration()
	ls.retryTimer = ls.sched.After(delay, func() { ls.retry(gen) })
	ls.mu.Unlock()

	ls.logger.Warn("log stream disconnected",
		zap.Error(err),
		zap.Duration("retryIn", delay),
	)
	ls.opts.OnChange()
}

func (ls *LogStream) retry(gen uint64) {
	ls.mu.Lock()
	if gen != ls.gen {
		ls.mu.Unlock()
		return
	}
	ls.retryTimer = nil
	ctx := ls.ctx
	sections := ls.sections
	ls.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if sections == nil || sections.CurrentSection() != SectionTradingBot {
		ls.logger.Debug("dropping log stream retry, section not active")
		return
	}

	ls.logger.Info("reconnecting log stream")
	_ = ls.Open(ctx)
}

func (ls *LogStream) stopRetryLocked() {
	if ls.retryTimer != nil {
		ls.retryTimer.Stop()
		ls.retryTimer = nil
	}
}

func (ls *LogStream) replaceBuffer(entries []dashboardapi.LogEntry) {
	ls.mu.Lock()
	ls.buffer = make([]bufferedLine, 0, len(entries))
	for _, e := range entries {
		ls.lineSeq++
		ls.buffer = append(ls.buffer, bufferedLine{entry: e, id: ls.lineSeq})
	}
	ls.highlighted = make(map[uint64]bool)
	ls.mu.Unlock()
	ls.opts.OnChange()
}

func (ls *LogStream) prepend(entry dashboardapi.LogEntry) {
	ls.mu.Lock()
	ls.lineSeq++
	id := ls.lineSeq
	ls.buffer = append([]bufferedLine{{entry: entry, id: id}}, ls.buffer...)
	ls.highlighted[id] = true
	ls.mu.Unlock()

	ls.sched.After(ls.opts.Highlight, func() {
		ls.mu.Lock()
		delete(ls.highlighted, id)
		ls.mu.Unlock()
		ls.opts.OnChange()
	})
	ls.opts.OnChange()
}

func (ls *LogStream) archive(entries ...dashboardapi.LogEntry) {
	if ls.journal == nil || len(entries) == 0 {
		return
	}
	ls.mu.Lock()
	ctx := ls.ctx
	ls.mu.Unlock()
	if _, err := ls.journal.Append(ctx, entries...); err != nil {
		ls.logger.Warn("log archive append failed", zap.Error(err))
	}
}

// SetFilter changes the level/category filter of the REST load.
func (ls *LogStream) SetFilter(level, category string) {
	ls.mu.Lock()
	ls.filter.Level = level
	ls.filter.Category = category
	ls.mu.Unlock()
}

// Filter returns the active REST filter.
func (ls *LogStream) Filter() dashboardapi.LogFilter {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.filter
}

// LoadRecent replaces the buffer and statistics from the REST endpoint.
func (ls *LogStream) LoadRecent(ctx context.Context) error {
	log, err := ls.api.GetBotLog(ctx, ls.Filter())
	if err != nil {
		ls.toasts.Error("load bot log", err)
		return err
	}

	ls.replaceBuffer(log.Entries)
	if log.Statistics != nil {
		ls.mu.Lock()
		stats := *log.Statistics
		ls.stats = &stats
		ls.mu.Unlock()
		ls.opts.OnChange()
	}
	return nil
}

// Clear deletes the server log, then reloads it.
func (ls *LogStream) Clear(ctx context.Context) error {
	if err := ls.api.ClearBotLog(ctx); err != nil {
		ls.toasts.Error("clear bot log", err)
		return err
	}
	ls.toasts.Success("Лог очищен")
	return ls.LoadRecent(ctx)
}

// State returns the connection state.
func (ls *LogStream) State() ConnState {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.state
}

// Indicator returns the connection badge.
func (ls *LogStream) Indicator() Indicator {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.indicator
}

// Entries returns the buffered entries, newest first.
func (ls *LogStream) Entries() []dashboardapi.LogEntry {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	out := make([]dashboardapi.LogEntry, len(ls.buffer))
	for i, l := range ls.buffer {
		out[i] = l.entry
	}
	return out
}

// Lines returns the buffered entries with their highlight marker.
func (ls *LogStream) Lines() []LogLine {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	out := make([]LogLine, len(ls.buffer))
	for i, l := range ls.buffer {
		out[i] = LogLine{LogEntry: l.entry, Highlighted: ls.highlighted[l.id]}
	}
	return out
}

// Statistics returns the last server statistics, nil before any arrived.
func (ls *LogStream) Statistics() *dashboardapi.LogStatistics {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.stats == nil {
		return nil
	}
	stats := *ls.stats
	return &stats
}
