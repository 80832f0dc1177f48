package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/quietdesk/snoozed/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB

	mu        sync.Mutex
	listeners []ChangeListener
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// AddListener registers a change listener. Listeners are invoked after
// each committed transition, on the goroutine that performed the write.
func (s *SQLiteStore) AddListener(fn ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// notify fans a committed change out to all registered listeners.
func (s *SQLiteStore) notify(change Change) {
	s.mu.Lock()
	listeners := make([]ChangeListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
}

// recordRow is the scan target for snooze_records. Messages live in the
// messages_json column and are decoded separately.
type recordRow struct {
	ID               string `db:"id"`
	ThreadID         string `db:"thread_id"`
	NotificationKey  string `db:"notification_key"`
	PackageName      string `db:"package_name"`
	AppName          string `db:"app_name"`
	Title            string `db:"title"`
	Text             string `db:"text"`
	SnoozeEndTime    int64  `db:"snooze_end_time"`
	CreatedAt        int64  `db:"created_at"`
	SourceType       string `db:"source_type"`
	ShortcutID       string `db:"shortcut_id"`
	GroupKey         string `db:"group_key"`
	ContentType      string `db:"content_type"`
	MessagesJSON     string `db:"messages_json"`
	Status           string `db:"status"`
	SuppressedCount  int    `db:"suppressed_count"`
	ContentIntentRef string `db:"content_intent_ref"`
}

func (r recordRow) toModel() model.SnoozeRecord {
	return model.SnoozeRecord{
		ID:               r.ID,
		ThreadID:         r.ThreadID,
		NotificationKey:  r.NotificationKey,
		PackageName:      r.PackageName,
		AppName:          r.AppName,
		Title:            r.Title,
		Text:             r.Text,
		SnoozeEndTime:    r.SnoozeEndTime,
		CreatedAt:        r.CreatedAt,
		SourceType:       model.Source(r.SourceType),
		ShortcutID:       r.ShortcutID,
		GroupKey:         r.GroupKey,
		ContentType:      model.ContentType(r.ContentType),
		Messages:         decodeMessages(r.MessagesJSON),
		Status:           model.ParseStatus(r.Status),
		SuppressedCount:  r.SuppressedCount,
		ContentIntentRef: r.ContentIntentRef,
	}
}

// decodeMessages parses a serialized message list. Malformed or legacy
// payloads decode to an empty list rather than failing the read; callers
// treat that the same as "no structured messages".
func decodeMessages(raw string) []model.Message {
	if raw == "" || raw == "null" {
		return nil
	}
	var msgs []model.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil
	}
	return msgs
}

// encodeMessages serializes a message list for the messages_json column.
func encodeMessages(msgs []model.Message) string {
	if len(msgs) == 0 {
		return "[]"
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
