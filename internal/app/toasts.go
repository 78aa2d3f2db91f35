package app

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// ToastLevel is the severity of a notification.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastInfo    ToastLevel = "info"
	ToastWarning ToastLevel = "warning"
	ToastError   ToastLevel = "error"
)

// Toast is one dismissible notification.
type Toast struct {
	ID      uint64
	Level   ToastLevel
	Message string
	Created time.Time
}

// Toasts holds the visible notifications. Each one dismisses itself after ttl.
type Toasts struct {
	logger   *zap.Logger
	sched    Scheduler
	ttl      time.Duration
	onChange func()

	mu    sync.Mutex
	seq   uint64
	items []Toast
}

func NewToasts(logger *zap.Logger, sched Scheduler, ttl time.Duration, onChange func()) *Toasts {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &Toasts{
		logger:   logger,
		sched:    sched,
		ttl:      ttl,
		onChange: onChange,
	}
}

// Push shows a notification and returns its id.
func (t *Toasts) Push(level ToastLevel, message string) uint64 {
	t.mu.Lock()
	t.seq++
	id := t.seq
	t.items = append(t.items, Toast{ID: id, Level: level, Message: message, Created: time.Now()})
	t.mu.Unlock()

	t.sched.After(t.ttl, func() { t.Dismiss(id) })
	t.onChange()
	return id
}

func (t *Toasts) Success(message string) uint64 { return t.Push(ToastSuccess, message) }
func (t *Toasts) Info(message string) uint64    { return t.Push(ToastInfo, message) }
func (t *Toasts) Warning(message string) uint64 { return t.Push(ToastWarning, message) }

// Error logs err under op and shows it as an error notification.
func (t *Toasts) Error(op string, err error) uint64 {
	t.logger.Error(op, zap.Error(err))
	return t.Push(ToastError, userMessage(err))
}

// Dismiss removes a notification. Unknown ids are ignored.
func (t *Toasts) Dismiss(id uint64) {
	t.mu.Lock()
	removed := false
	for i, item := range t.items {
		if item.ID == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			removed = true
			break
		}
	}
	t.mu.Unlock()

	if removed {
		t.onChange()
	}
}

// Active returns the visible notifications, oldest first.
func (t *Toasts) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Toast, len(t.items))
	copy(out, t.items)
	return out
}
