package app

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func waitFired(t *testing.T, fired <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("%s did not fire", what)
	}
}

func TestClockSchedulerEvery(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sched := NewClockScheduler(clock)

	fired := make(chan struct{}, 4)
	timer := sched.Every(30*time.Second, func() { fired <- struct{}{} })

	clock.Advance(30 * time.Second)
	waitFired(t, fired, "first tick")
	clock.Advance(30 * time.Second)
	waitFired(t, fired, "second tick")

	if !timer.Stop() {
		t.Error("first Stop should report a live timer")
	}
	if timer.Stop() {
		t.Error("second Stop should report a stopped timer")
	}

	clock.Advance(time.Minute)
	select {
	case <-fired:
		t.Error("stopped ticker fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClockSchedulerAfter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sched := NewClockScheduler(clock)

	fired := make(chan struct{}, 1)
	sched.After(5*time.Second, func() { fired <- struct{}{} })

	clock.Advance(4 * time.Second)
	select {
	case <-fired:
		t.Fatal("fired before the delay")
	case <-time.After(20 * time.Millisecond):
	}
	clock.Advance(time.Second)
	waitFired(t, fired, "retry")

	cancelled := make(chan struct{}, 1)
	timer := sched.After(5*time.Second, func() { cancelled <- struct{}{} })
	if !timer.Stop() {
		t.Error("Stop before the delay should report a live timer")
	}
	clock.Advance(10 * time.Second)
	select {
	case <-cancelled:
		t.Error("stopped timer fired")
	case <-time.After(50 * time.Millisecond):
	}
}
