package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/quietdesk/snoozed/internal/alarm"
	"github.com/quietdesk/snoozed/internal/engine"
	"github.com/quietdesk/snoozed/internal/model"
	"github.com/quietdesk/snoozed/internal/store"
	"github.com/quietdesk/snoozed/internal/sweep"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(filepath.Dir(*configPath), "snoozed.db")
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer st.Close()
	logger.Info("store opened", "path", dbPath)

	// The engine and its wake-up timers reference each other; wire the
	// timers' fire callback after the engine exists.
	var eng *engine.Engine
	timers := alarm.New(func(recordID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := eng.OnExpire(ctx, recordID); err != nil {
			logger.Error("expiry failed", "record", recordID, "error", err)
		}
	}, logger)
	defer timers.Stop()

	eng = engine.New(st, timers, noopTray{log: logger}, engine.Config{
		StalenessWindow:     cfg.StalenessWindow(),
		DismissedVisibility: cfg.DismissedVisibility(),
	}, logger)

	ctx := context.Background()
	if err := eng.RefreshIgnored(ctx); err != nil {
		logger.Warn("ignored cache refresh failed", "error", err)
	}

	// Re-arm wake-ups for snoozes that were active when the process last
	// exited.
	active, err := st.ListActive(ctx)
	if err != nil {
		log.Fatalf("listing active snoozes: %v", err)
	}
	for _, rec := range active {
		if err := timers.Schedule(rec.ID, rec.SnoozeEndTime); err != nil {
			logger.Error("re-arming wake-up", "record", rec.ID, "error", err)
		}
	}
	if len(active) > 0 {
		logger.Info("re-armed wake-ups", "count", len(active))
	}

	if cfg.Sweep.Enabled {
		sweeper, err := sweep.New(st, timers, sweep.Config{
			Cron:             cfg.Sweep.Cron,
			HistoryRetention: cfg.HistoryRetention(),
		}, logger)
		if err != nil {
			log.Fatalf("creating sweeper: %v", err)
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: lvl}))
}

// noopTray stands in for the host's notification surface when the
// daemon runs without one attached; suppress and post are logged only.
type noopTray struct {
	log *slog.Logger
}

func (t noopTray) Suppress(key string) error {
	t.log.Debug("tray suppress", "key", key)
	return nil
}

func (t noopTray) Post(summary engine.Summary) error {
	t.log.Info("tray post",
		"thread", summary.ThreadID, "title", summary.Title,
		"messages", len(summary.Messages), "suppressed", summary.SuppressedCount)
	return nil
}
