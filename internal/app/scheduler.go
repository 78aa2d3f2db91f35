package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents further runs. Reports whether the timer was still live.
	Stop() bool
}

// Scheduler owns every delay and period used by the controllers.
type Scheduler interface {
	// Every runs fn every d until stopped.
	Every(d time.Duration, fn func()) Timer
	// After runs fn once after d unless stopped first.
	After(d time.Duration, fn func()) Timer
}

// RealScheduler schedules on the wall clock.
func RealScheduler() Scheduler {
	return NewClockScheduler(clockwork.NewRealClock())
}

// NewClockScheduler schedules on clock.
func NewClockScheduler(clock clockwork.Clock) Scheduler {
	return clockScheduler{clock: clock}
}

type clockScheduler struct {
	clock clockwork.Clock
}

func (s clockScheduler) After(d time.Duration, fn func()) Timer {
	return s.clock.AfterFunc(d, fn)
}

func (s clockScheduler) Every(d time.Duration, fn func()) Timer {
	t := &ticker{
		ticker: s.clock.NewTicker(d),
		stop:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-t.ticker.Chan():
				fn()
			case <-t.stop:
				return
			}
		}
	}()
	return t
}

type ticker struct {
	ticker clockwork.Ticker
	stop   chan struct{}
	once   sync.Once
}

func (t *ticker) Stop() bool {
	stopped := false
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.stop)
		stopped = true
	})
	return stopped
}
