package store

import "context"

// Raw column setters for exercising the defensive read paths.

func (s *SQLiteStore) RawSetStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE snooze_records SET status = ? WHERE id = ?", status, id)
	return err
}

func (s *SQLiteStore) RawSetMessagesJSON(ctx context.Context, id, raw string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE snooze_records SET messages_json = ? WHERE id = ?", raw, id)
	return err
}
