package notifier

import (
	"time"
)

// ChangeKind indicates what produced a mode change.
type ChangeKind string

const (
	ChangeKindSwitched ChangeKind = "switched"
	ChangeKindReset    ChangeKind = "reset"
)

// ModeChange describes a server-confirmed trading mode transition.
type ModeChange struct {
	AttemptID string     // correlates with the console log
	Kind      ChangeKind // switched or reset
	From      string
	To        string
	Message   string // server message
	Warning   string // server warning, set for production switches
	Timestamp time.Time
}

// IsProduction reports whether the change landed in real-money mode.
func (c ModeChange) IsProduction() bool {
	return c.To == "production"
}

// Notifier is the interface for announcing mode changes on external channels.
type Notifier interface {
	// SendModeChange announces a confirmed mode change.
	SendModeChange(change ModeChange)

	// Close cleans up any resources.
	Close() error
}

// MultiNotifier broadcasts mode changes to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a new MultiNotifier with the given notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	// Filter out nil notifiers
	var active []Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &MultiNotifier{notifiers: active}
}

// SendModeChange sends the change to all registered notifiers.
func (m *MultiNotifier) SendModeChange(change ModeChange) {
	for _, n := range m.notifiers {
		n.SendModeChange(change)
	}
}

// Close closes all registered notifiers.
func (m *MultiNotifier) Close() error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Count returns the number of active notifiers.
func (m *MultiNotifier) Count() int {
	return len(m.notifiers)
}
