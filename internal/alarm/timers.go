// Package alarm is an in-process implementation of the engine's
// Scheduler collaborator for hosts that have no platform alarm
// primitive: one timer per active record, firing a callback with the
// record id.
package alarm

import (
	"log/slog"
	"sync"
	"time"
)

// FireFunc is invoked on the timer goroutine when a wake-up fires.
type FireFunc func(recordID string)

// Timers schedules one wake-up per record id. Scheduling an id that
// already has a pending wake-up replaces it; cancelling an unknown id is
// a no-op.
type Timers struct {
	fire FireFunc
	log  *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

// New creates a timer set that calls fire when a wake-up comes due.
func New(fire FireFunc, log *slog.Logger) *Timers {
	if log == nil {
		log = slog.Default()
	}
	return &Timers{
		fire:    fire,
		log:     log,
		pending: make(map[string]*time.Timer),
	}
}

// Schedule arms a wake-up for recordID at fireAtEpochMs. A time in the
// past fires immediately.
func (t *Timers) Schedule(recordID string, fireAtEpochMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return nil
	}
	if existing, ok := t.pending[recordID]; ok {
		existing.Stop()
	}

	delay := time.Until(time.UnixMilli(fireAtEpochMs))
	if delay < 0 {
		delay = 0
	}

	t.pending[recordID] = time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.pending, recordID)
		t.mu.Unlock()
		t.fire(recordID)
	})
	t.log.Debug("wake-up armed", "record", recordID, "in", delay)
	return nil
}

// Cancel disarms the pending wake-up for recordID, if any.
func (t *Timers) Cancel(recordID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.pending[recordID]; ok {
		timer.Stop()
		delete(t.pending, recordID)
	}
	return nil
}

// PendingCount returns how many wake-ups are armed.
func (t *Timers) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop disarms everything and rejects further scheduling.
func (t *Timers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	for id, timer := range t.pending {
		timer.Stop()
		delete(t.pending, id)
	}
}
