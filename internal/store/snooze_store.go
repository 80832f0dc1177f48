package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/quietdesk/snoozed/internal/aggregate"
	"github.com/quietdesk/snoozed/internal/model"
)

const recordColumns = `
	id, thread_id, notification_key, package_name, app_name, title, text,
	snooze_end_time, created_at, source_type, shortcut_id, group_key,
	content_type, messages_json, status, suppressed_count, content_intent_ref`

const insertRecordSQL = "INSERT INTO snooze_records " + recordValuesSQL

// upsertRecordSQL keeps history consolidation idempotent when the incoming
// record is already a persisted row (the expire path).
const upsertRecordSQL = "INSERT OR REPLACE INTO snooze_records " + recordValuesSQL

const recordValuesSQL = `(
		id, thread_id, notification_key, package_name, app_name, title, text,
		snooze_end_time, created_at, source_type, shortcut_id, group_key,
		content_type, messages_json, status, suppressed_count, content_intent_ref
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertArgs(rec *model.SnoozeRecord) []any {
	return []any{
		rec.ID, rec.ThreadID, rec.NotificationKey, rec.PackageName,
		rec.AppName, rec.Title, rec.Text, rec.SnoozeEndTime, rec.CreatedAt,
		string(rec.SourceType), rec.ShortcutID, rec.GroupKey,
		string(rec.ContentType), encodeMessages(rec.Messages),
		string(rec.Status), rec.SuppressedCount, rec.ContentIntentRef,
	}
}

// prepare fills defaults common to every insert path.
func prepare(rec *model.SnoozeRecord) error {
	if strings.TrimSpace(rec.ThreadID) == "" {
		return fmt.Errorf("record thread id must not be empty")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.SourceType == "" {
		rec.SourceType = model.SourceNotification
	}
	rec.Messages, _ = aggregate.Merge(nil, rec.Messages)
	return nil
}

// CreateActive inserts rec as the thread's one active row. Any existing
// active row for the thread is deleted in the same transaction; the two
// statements must not be separated or a concurrent reader could observe
// two active rows.
func (s *SQLiteStore) CreateActive(ctx context.Context, rec *model.SnoozeRecord) (string, error) {
	if err := prepare(rec); err != nil {
		return "", err
	}
	rec.Status = model.StatusActive

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var replacedID string
	err = tx.GetContext(ctx, &replacedID,
		"SELECT id FROM snooze_records WHERE thread_id = ? AND status = ?",
		rec.ThreadID, string(model.StatusActive))
	if err != nil && !isNoRows(err) {
		return "", fmt.Errorf("finding active row for thread %s: %w", rec.ThreadID, err)
	}

	if replacedID != "" {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM snooze_records WHERE id = ?", replacedID); err != nil {
			return "", fmt.Errorf("replacing active row %s: %w", replacedID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, insertRecordSQL, insertArgs(rec)...); err != nil {
		return "", fmt.Errorf("inserting active record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing active record: %w", err)
	}

	s.notify(Change{Op: OpCreated, RecordID: rec.ID, ThreadID: rec.ThreadID})
	return replacedID, nil
}

// InsertDismissed inserts rec directly in the dismissed state. The end
// time doubles as "when did this enter history" so it sorts correctly
// among expired rows.
func (s *SQLiteStore) InsertDismissed(ctx context.Context, rec *model.SnoozeRecord) error {
	if err := prepare(rec); err != nil {
		return err
	}
	rec.Status = model.StatusDismissed

	if _, err := s.db.ExecContext(ctx, insertRecordSQL, insertArgs(rec)...); err != nil {
		return fmt.Errorf("inserting dismissed record: %w", err)
	}

	s.notify(Change{Op: OpCreated, RecordID: rec.ID, ThreadID: rec.ThreadID})
	return nil
}

// MarkExpired transitions an active row to expired.
func (s *SQLiteStore) MarkExpired(ctx context.Context, id string) error {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE snooze_records SET status = ? WHERE id = ? AND status = ?",
		string(model.StatusExpired), id, string(model.StatusActive))
	if err != nil {
		return fmt.Errorf("expiring record %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("expiring record %s: %w", id, ErrNotFound)
	}

	s.notify(Change{Op: OpUpdated, RecordID: id, ThreadID: rec.ThreadID})
	return nil
}

// UpdateEndTime rewrites the end time of an active row in place.
func (s *SQLiteStore) UpdateEndTime(ctx context.Context, id string, endTime int64) error {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE snooze_records SET snooze_end_time = ? WHERE id = ? AND status = ?",
		endTime, id, string(model.StatusActive))
	if err != nil {
		return fmt.Errorf("extending record %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("extending record %s: %w", id, ErrNotFound)
	}

	s.notify(Change{Op: OpUpdated, RecordID: id, ThreadID: rec.ThreadID})
	return nil
}

// MergeArrival folds msgs into an existing row. Zero new messages means
// zero writes: no timestamp churn and no counter increment, which keeps
// redeliveries from double-counting.
func (s *SQLiteStore) MergeArrival(ctx context.Context, id string, msgs []model.Message, now int64) (MergeResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return MergeResult{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var row recordRow
	err = tx.GetContext(ctx, &row,
		"SELECT"+recordColumns+" FROM snooze_records WHERE id = ?", id)
	if isNoRows(err) {
		return MergeResult{}, fmt.Errorf("merging into record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return MergeResult{}, fmt.Errorf("loading record %s: %w", id, err)
	}

	rec := row.toModel()
	merged, added := aggregate.Merge(rec.Messages, msgs)
	result := MergeResult{Added: added, Status: rec.Status}
	if added == 0 {
		return result, nil
	}

	switch rec.Status {
	case model.StatusActive:
		_, err = tx.ExecContext(ctx,
			"UPDATE snooze_records SET messages_json = ?, suppressed_count = suppressed_count + ? WHERE id = ?",
			encodeMessages(merged), added, id)
	case model.StatusDismissed:
		// Refresh created_at so the entry resurfaces as recently touched;
		// it stays dismissed.
		_, err = tx.ExecContext(ctx,
			"UPDATE snooze_records SET messages_json = ?, created_at = ? WHERE id = ?",
			encodeMessages(merged), now, id)
	default:
		_, err = tx.ExecContext(ctx,
			"UPDATE snooze_records SET messages_json = ? WHERE id = ?",
			encodeMessages(merged), id)
	}
	if err != nil {
		return MergeResult{}, fmt.Errorf("merging into record %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return MergeResult{}, fmt.Errorf("committing merge into %s: %w", id, err)
	}

	s.notify(Change{Op: OpUpdated, RecordID: id, ThreadID: rec.ThreadID})
	return result, nil
}

// DeleteRecord removes a row outright.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, id string) error {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM snooze_records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting record %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("deleting record %s: %w", id, ErrNotFound)
	}

	s.notify(Change{Op: OpDeleted, RecordID: id, ThreadID: rec.ThreadID})
	return nil
}

// InsertOrMergeHistory consolidates history for the record's thread into a
// single row. Duplicate history rows (possible if two expiries raced) are
// folded into the survivor and deleted in the same transaction.
func (s *SQLiteStore) InsertOrMergeHistory(ctx context.Context, rec *model.SnoozeRecord) (string, error) {
	if err := prepare(rec); err != nil {
		return "", err
	}
	if rec.Status != model.StatusExpired && rec.Status != model.StatusDismissed {
		return "", fmt.Errorf("history insert requires a terminal status, got %q", rec.Status)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rows []recordRow
	err = tx.SelectContext(ctx, &rows,
		"SELECT"+recordColumns+` FROM snooze_records
		WHERE thread_id = ? AND status IN (?, ?) AND id != ?
		ORDER BY snooze_end_time DESC`,
		rec.ThreadID, string(model.StatusExpired), string(model.StatusDismissed), rec.ID)
	if err != nil {
		return "", fmt.Errorf("finding history for thread %s: %w", rec.ThreadID, err)
	}

	if len(rows) == 0 {
		if _, err := tx.ExecContext(ctx, upsertRecordSQL, insertArgs(rec)...); err != nil {
			return "", fmt.Errorf("inserting history record: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return "", fmt.Errorf("committing history insert: %w", err)
		}
		s.notify(Change{Op: OpCreated, RecordID: rec.ID, ThreadID: rec.ThreadID})
		return rec.ID, nil
	}

	// Most recent existing row survives; everything else folds into it.
	survivor := rows[0].toModel()
	merged := survivor.Messages
	for _, dup := range rows[1:] {
		merged, _ = aggregate.Merge(merged, dup.toModel().Messages)
	}
	merged, _ = aggregate.Merge(merged, rec.Messages)

	endTime := survivor.SnoozeEndTime
	if rec.SnoozeEndTime > endTime {
		endTime = rec.SnoozeEndTime
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE snooze_records SET messages_json = ?, snooze_end_time = ? WHERE id = ?",
		encodeMessages(merged), endTime, survivor.ID); err != nil {
		return "", fmt.Errorf("merging history into %s: %w", survivor.ID, err)
	}

	for _, dup := range rows[1:] {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM snooze_records WHERE id = ?", dup.ID); err != nil {
			return "", fmt.Errorf("removing duplicate history row %s: %w", dup.ID, err)
		}
	}

	// If rec itself was already persisted (an active row that just
	// expired), the survivor has absorbed it; drop the original.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM snooze_records WHERE id = ?", rec.ID); err != nil {
		return "", fmt.Errorf("removing merged history row %s: %w", rec.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing history merge: %w", err)
	}

	s.notify(Change{Op: OpUpdated, RecordID: survivor.ID, ThreadID: rec.ThreadID})
	return survivor.ID, nil
}

// GetByID retrieves a single record.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*model.SnoozeRecord, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row,
		"SELECT"+recordColumns+" FROM snooze_records WHERE id = ?", id)
	if isNoRows(err) {
		return nil, fmt.Errorf("getting record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting record %s: %w", id, err)
	}
	rec := row.toModel()
	return &rec, nil
}

// GetActiveByThread returns the thread's active row, or nil when no row
// is active for it.
func (s *SQLiteStore) GetActiveByThread(ctx context.Context, threadID string) (*model.SnoozeRecord, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row,
		"SELECT"+recordColumns+" FROM snooze_records WHERE thread_id = ? AND status = ?",
		threadID, string(model.StatusActive))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting active record for thread %s: %w", threadID, err)
	}
	rec := row.toModel()
	return &rec, nil
}

// GetDismissedByThread returns the thread's most recently touched
// dismissed row, or nil when none exists.
func (s *SQLiteStore) GetDismissedByThread(ctx context.Context, threadID string) (*model.SnoozeRecord, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row,
		`SELECT`+recordColumns+` FROM snooze_records
		WHERE thread_id = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1`,
		threadID, string(model.StatusDismissed))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting dismissed record for thread %s: %w", threadID, err)
	}
	rec := row.toModel()
	return &rec, nil
}

// GetHistoryByThread returns the thread's terminal rows, most recent end
// time first.
func (s *SQLiteStore) GetHistoryByThread(ctx context.Context, threadID string) ([]model.SnoozeRecord, error) {
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT`+recordColumns+` FROM snooze_records
		WHERE thread_id = ? AND status IN (?, ?)
		ORDER BY snooze_end_time DESC`,
		threadID, string(model.StatusExpired), string(model.StatusDismissed))
	if err != nil {
		return nil, fmt.Errorf("getting history for thread %s: %w", threadID, err)
	}
	return toModels(rows), nil
}

// ListActive returns active rows soonest expiry first: the next thread to
// fire sits at the top of the snooze list.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]model.SnoozeRecord, error) {
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT"+recordColumns+" FROM snooze_records WHERE status = ? ORDER BY snooze_end_time ASC",
		string(model.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("listing active records: %w", err)
	}
	return toModels(rows), nil
}

// ListHistory returns terminal rows, most recent end time first.
func (s *SQLiteStore) ListHistory(ctx context.Context, limit int) ([]model.SnoozeRecord, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT`+recordColumns+` FROM snooze_records
		WHERE status IN (?, ?)
		ORDER BY snooze_end_time DESC LIMIT ?`,
		string(model.StatusExpired), string(model.StatusDismissed), limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return toModels(rows), nil
}

// ListDismissedRecent returns dismissed rows created at or after cutoff,
// newest first.
func (s *SQLiteStore) ListDismissedRecent(ctx context.Context, cutoff int64) ([]model.SnoozeRecord, error) {
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT`+recordColumns+` FROM snooze_records
		WHERE status = ? AND created_at >= ?
		ORDER BY created_at DESC`,
		string(model.StatusDismissed), cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing recent dismissed records: %w", err)
	}
	return toModels(rows), nil
}

// SweepExpiredActive deletes active rows whose end time has passed. This
// is the safety net for a scheduler that failed to fire; the ids come
// back so callers can cancel any wake-up that is still pending.
func (s *SQLiteStore) SweepExpiredActive(ctx context.Context, now int64) ([]string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var ids []string
	err = tx.SelectContext(ctx, &ids,
		"SELECT id FROM snooze_records WHERE status = ? AND snooze_end_time <= ?",
		string(model.StatusActive), now)
	if err != nil {
		return nil, fmt.Errorf("finding overdue active records: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM snooze_records WHERE status = ? AND snooze_end_time <= ?",
		string(model.StatusActive), now); err != nil {
		return nil, fmt.Errorf("sweeping overdue active records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing active sweep: %w", err)
	}

	for _, id := range ids {
		s.notify(Change{Op: OpDeleted, RecordID: id})
	}
	return ids, nil
}

// SweepOldHistory deletes terminal rows whose end time predates cutoff.
func (s *SQLiteStore) SweepOldHistory(ctx context.Context, cutoff int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM snooze_records WHERE status IN (?, ?) AND snooze_end_time < ?",
		string(model.StatusExpired), string(model.StatusDismissed), cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweeping old history: %w", err)
	}
	count, _ := result.RowsAffected()
	if count > 0 {
		s.notify(Change{Op: OpDeleted})
	}
	return count, nil
}

func toModels(rows []recordRow) []model.SnoozeRecord {
	out := make([]model.SnoozeRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}
