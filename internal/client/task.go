package client

import (
	"sync"
	"time"
)

// TaskHandle is a cancelable scheduled task. Cancel is idempotent and
// safe to call after the task has fired.
type TaskHandle interface {
	Cancel()
}

// Scheduler arms one-shot timers. The engine never uses raw time.AfterFunc
// so tests can substitute a manual clock.
type Scheduler interface {
	After(d time.Duration, fn func()) TaskHandle
}

type timerHandle struct {
	t *time.Timer
}

func (h *timerHandle) Cancel() { h.t.Stop() }

type timerScheduler struct{}

func (timerScheduler) After(d time.Duration, fn func()) TaskHandle {
	return &timerHandle{t: time.AfterFunc(d, fn)}
}

// NewScheduler returns the wall-clock scheduler.
func NewScheduler() Scheduler { return timerScheduler{} }

// ManualScheduler is a test scheduler driven by Advance.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []*manualTask
}

type manualTask struct {
	at       time.Duration
	fn       func()
	canceled bool
}

func (t *manualTask) Cancel() { t.canceled = true }

func NewManualScheduler() *ManualScheduler { return &ManualScheduler{} }

func (s *ManualScheduler) After(d time.Duration, fn func()) TaskHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &manualTask{at: s.now + d, fn: fn}
	s.tasks = append(s.tasks, task)
	return task
}

// Advance moves the manual clock forward, firing due tasks in order.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due, rest []*manualTask
	for _, t := range s.tasks {
		if !t.canceled && t.at <= s.now {
			due = append(due, t)
		} else if !t.canceled {
			rest = append(rest, t)
		}
	}
	s.tasks = rest
	s.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}
