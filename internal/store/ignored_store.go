package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/quietdesk/snoozed/internal/model"
)

// IgnoreThread records a suppression scope. Re-ignoring an existing scope
// refreshes its metadata and timestamp.
func (s *SQLiteStore) IgnoreThread(ctx context.Context, ig model.IgnoredThread) error {
	if strings.TrimSpace(ig.ThreadID) == "" {
		return fmt.Errorf("ignored thread id must not be empty")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO ignored_threads (
			thread_id, package_name, app_name, display_title, ignored_at, is_package_level
		) VALUES (?, ?, ?, ?, ?, ?)`,
		ig.ThreadID, ig.PackageName, ig.AppName, ig.DisplayTitle,
		ig.IgnoredAt, ig.IsPackageLevel,
	)
	if err != nil {
		return fmt.Errorf("ignoring thread %s: %w", ig.ThreadID, err)
	}
	return nil
}

// UnignoreThread removes a suppression scope.
func (s *SQLiteStore) UnignoreThread(ctx context.Context, threadID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM ignored_threads WHERE thread_id = ?", threadID)
	if err != nil {
		return fmt.Errorf("unignoring thread %s: %w", threadID, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("unignoring thread %s: %w", threadID, ErrNotFound)
	}
	return nil
}

// ListIgnored returns all suppression scopes, newest first.
func (s *SQLiteStore) ListIgnored(ctx context.Context) ([]model.IgnoredThread, error) {
	var out []model.IgnoredThread
	err := s.db.SelectContext(ctx, &out,
		"SELECT * FROM ignored_threads ORDER BY ignored_at DESC")
	if err != nil {
		return nil, fmt.Errorf("listing ignored threads: %w", err)
	}
	return out, nil
}
