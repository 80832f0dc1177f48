// Package sweep runs time-based retention against the store: a safety
// net for active rows whose scheduler never fired, and cleanup of
// history past its retention horizon.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/quietdesk/snoozed/internal/engine"
	"github.com/quietdesk/snoozed/internal/store"
)

// defaultCron runs the sweep hourly on the hour.
const defaultCron = "0 * * * *"

// Config holds the sweeper tunables.
type Config struct {
	// Cron is a five-field cron expression for sweep runs. Empty means
	// hourly.
	Cron string

	// HistoryRetention is how long terminal rows are kept past their end
	// time. Default 7 days.
	HistoryRetention time.Duration
}

// Sweeper periodically deletes overdue active rows and old history.
type Sweeper struct {
	store     store.Store
	sched     engine.Scheduler
	log       *slog.Logger
	cron      string
	retention time.Duration

	now func() time.Time

	mu      gosync.Mutex
	running bool
	stopCh  chan struct{}
	wg      gosync.WaitGroup
}

// New creates a Sweeper. sched is consulted to cancel the pending
// wake-up of any overdue active row the sweep removes.
func New(st store.Store, sched engine.Scheduler, cfg Config, log *slog.Logger) (*Sweeper, error) {
	if cfg.Cron == "" {
		cfg.Cron = defaultCron
	}
	if !gronx.IsValid(cfg.Cron) {
		return nil, fmt.Errorf("invalid sweep cron expression: %s", cfg.Cron)
	}
	if cfg.HistoryRetention <= 0 {
		cfg.HistoryRetention = 7 * 24 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		store:     st,
		sched:     sched,
		log:       log,
		cron:      cfg.Cron,
		retention: cfg.HistoryRetention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start launches the sweep loop. It runs once immediately, then on the
// configured cron schedule until Stop is called.
func (s *Sweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
	s.log.Info("sweeper started", "cron", s.cron, "retention", s.retention)
}

// Stop halts the sweep loop and waits for an in-flight run to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	s.RunOnce(context.Background())

	for {
		next, err := gronx.NextTickAfter(s.cron, s.now(), false)
		if err != nil {
			s.log.Error("computing next sweep tick", "cron", s.cron, "error", err)
			next = s.now().Add(time.Hour)
		}

		select {
		case <-s.stopCh:
			return
		case <-time.After(time.Until(next)):
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce performs a single sweep: overdue active rows first (cancelling
// their pending wake-ups), then history past the retention horizon.
func (s *Sweeper) RunOnce(ctx context.Context) {
	now := s.now().UnixMilli()

	sweptIDs, err := s.store.SweepExpiredActive(ctx, now)
	if err != nil {
		s.log.Error("sweeping overdue active rows", "error", err)
	}
	for _, id := range sweptIDs {
		if err := s.sched.Cancel(id); err != nil {
			s.log.Warn("cancelling wake-up for swept row", "record", id, "error", err)
		}
	}

	cutoff := now - s.retention.Milliseconds()
	removed, err := s.store.SweepOldHistory(ctx, cutoff)
	if err != nil {
		s.log.Error("sweeping old history", "error", err)
	}

	if len(sweptIDs) > 0 || removed > 0 {
		s.log.Info("sweep completed",
			"overdue_active", len(sweptIDs), "old_history", removed)
	}
}
