package devserver

import (
	"botconsole/clients/dashboardapi"
	"sync"
	"time"
)

// Broadcast is one event fanned out to live log subscribers.
type Broadcast struct {
	Event string
	Data  any
}

// Store is the in-memory state behind the dev backend.
type Store struct {
	mu          sync.Mutex
	mode        dashboardapi.TradingMode
	lastUpdate  time.Time
	entries     []dashboardapi.LogEntry // newest first
	subscribers map[chan Broadcast]struct{}
	now         func() time.Time
}

// NewStore starts in sandbox with an empty log.
func NewStore() *Store {
	return &Store{
		mode:        dashboardapi.ModeSandbox,
		lastUpdate:  time.Now(),
		subscribers: make(map[chan Broadcast]struct{}),
		now:         time.Now,
	}
}

func (s *Store) Mode() dashboardapi.TradingMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches the mode and records a system log entry.
func (s *Store) SetMode(m dashboardapi.TradingMode) {
	s.mu.Lock()
	from := s.mode
	s.mode = m
	s.lastUpdate = s.now()
	s.mu.Unlock()

	if from != m {
		s.Append(dashboardapi.LevelWarning, dashboardapi.CategorySystemStatus,
			"Режим торговли переключен: "+string(from)+" -> "+string(m), "")
	}
}

// Status builds the /status payload for the current mode.
func (s *Store) Status() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"currentMode":  s.mode,
		"displayName":  displayName(s.mode),
		"badgeClass":   badgeClass(s.mode),
		"modeInfo":     modeInfo(s.mode),
		"isSandbox":    s.mode == dashboardapi.ModeSandbox,
		"isProduction": s.mode == dashboardapi.ModeProduction,
		"lastUpdate":   s.lastUpdate.Format(time.RFC3339),
	}
}

// Append records an entry and pushes it, with fresh statistics, to subscribers.
func (s *Store) Append(level, category, message, details string) dashboardapi.LogEntry {
	e := dashboardapi.NewLogEntry(s.now(), level, category, message, details)

	s.mu.Lock()
	s.entries = append([]dashboardapi.LogEntry{e}, s.entries...)
	stats := s.statsLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	for _, ch := range subs {
		offer(ch, Broadcast{Event: "new-log", Data: e})
		offer(ch, Broadcast{Event: "statistics-update", Data: stats})
	}
	return e
}

// offer drops the event for a subscriber that is not keeping up.
func offer(ch chan Broadcast, b Broadcast) {
	select {
	case ch <- b:
	default:
	}
}

// Recent returns up to limit entries, newest first, optionally filtered.
func (s *Store) Recent(limit int, level, category string) []dashboardapi.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dashboardapi.LogEntry, 0, limit)
	for _, e := range s.entries {
		if len(out) >= limit {
			break
		}
		if level != "" && e.Level != level {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Clear empties the log.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = nil
	stats := s.statsLocked()
	subs := s.subscribersLocked()
	s.mu.Unlock()

	for _, ch := range subs {
		offer(ch, Broadcast{Event: "statistics-update", Data: stats})
	}
}

// Stats counts the entries per level.
func (s *Store) Stats() dashboardapi.LogStatistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Store) statsLocked() dashboardapi.LogStatistics {
	st := dashboardapi.LogStatistics{TotalEntries: int64(len(s.entries))}
	for _, e := range s.entries {
		switch e.Level {
		case dashboardapi.LevelInfo:
			st.InfoCount++
		case dashboardapi.LevelWarning:
			st.WarningCount++
		case dashboardapi.LevelError:
			st.ErrorCount++
		case dashboardapi.LevelSuccess:
			st.SuccessCount++
		case dashboardapi.LevelTrade:
			st.TradeCount++
		}
	}
	return st
}

// Subscribe registers a log listener. Call cancel to unregister.
func (s *Store) Subscribe() (<-chan Broadcast, func()) {
	ch := make(chan Broadcast, 64)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
		})
	}
}

// Subscribers counts live log listeners.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

func (s *Store) subscribersLocked() []chan Broadcast {
	out := make([]chan Broadcast, 0, len(s.subscribers))
	for ch := range s.subscribers {
		out = append(out, ch)
	}
	return out
}

func displayName(m dashboardapi.TradingMode) string {
	if m == dashboardapi.ModeProduction {
		return "Реальная торговля"
	}
	return "Песочница"
}

func badgeClass(m dashboardapi.TradingMode) string {
	if m == dashboardapi.ModeProduction {
		return "bg-danger"
	}
	return "bg-warning"
}

func modeInfo(m dashboardapi.TradingMode) string {
	if m == dashboardapi.ModeProduction {
		return "Режим реальной торговли. Все операции выполняются с реальными деньгами."
	}
	return "Режим песочницы. Операции не влияют на реальный счет."
}
