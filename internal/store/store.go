package store

import (
	"context"
	"errors"

	"github.com/quietdesk/snoozed/internal/model"
)

// ErrNotFound is returned when a record lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ChangeOp identifies what kind of committed transition a change
// notification describes.
type ChangeOp string

const (
	OpCreated ChangeOp = "created"
	OpUpdated ChangeOp = "updated"
	OpDeleted ChangeOp = "deleted"
)

// Change describes a committed record transition. Listeners receive it
// after the transaction has committed, never before.
type Change struct {
	Op       ChangeOp
	RecordID string
	ThreadID string
}

// ChangeListener observes committed transitions. Listeners must not
// block; the store invokes them synchronously on the writing goroutine.
type ChangeListener func(Change)

// MergeResult reports what a merge-on-arrival write did.
type MergeResult struct {
	// Added is the number of genuinely new messages absorbed. Zero means
	// no write happened at all.
	Added int

	// Status is the record's status at merge time.
	Status model.Status
}

// Store is the persistence interface for snooze records and ignored
// threads. Implementations must make CreateActive's replace-then-insert a
// single atomic unit so readers never observe two active rows for one
// thread.
type Store interface {
	// === Snooze record lifecycle ===

	// CreateActive inserts rec with active status, atomically deleting any
	// existing active row for the same thread. Returns the id of the
	// replaced row, or empty when none existed. Terminal rows for the
	// thread are left untouched.
	CreateActive(ctx context.Context, rec *model.SnoozeRecord) (replacedID string, err error)

	// InsertDismissed inserts rec directly in the dismissed state with its
	// end time set to the dismissal instant.
	InsertDismissed(ctx context.Context, rec *model.SnoozeRecord) error

	// MarkExpired transitions an active row to expired. The row is
	// retained. Returns ErrNotFound when no active row has that id.
	MarkExpired(ctx context.Context, id string) error

	// UpdateEndTime rewrites the snooze end time of an active row in
	// place; no status change.
	UpdateEndTime(ctx context.Context, id string, endTime int64) error

	// MergeArrival folds msgs into the record's message list under the
	// standard dedup/cap/sort rule. Active rows additionally take a
	// suppressed-count increment equal to the number of new messages;
	// dismissed rows get their created-at refreshed to now so they
	// resurface as recently touched. A merge that adds nothing performs
	// no write.
	MergeArrival(ctx context.Context, id string, msgs []model.Message, now int64) (MergeResult, error)

	// DeleteRecord removes a row outright.
	DeleteRecord(ctx context.Context, id string) error

	// InsertOrMergeHistory ensures at most one history row exists for the
	// record's thread: merges into an existing expired/dismissed row when
	// present (deleting any duplicates) or inserts rec. Returns the id of
	// the surviving row.
	InsertOrMergeHistory(ctx context.Context, rec *model.SnoozeRecord) (string, error)

	// === Lookups ===

	GetByID(ctx context.Context, id string) (*model.SnoozeRecord, error)
	GetActiveByThread(ctx context.Context, threadID string) (*model.SnoozeRecord, error)
	GetDismissedByThread(ctx context.Context, threadID string) (*model.SnoozeRecord, error)
	GetHistoryByThread(ctx context.Context, threadID string) ([]model.SnoozeRecord, error)

	// === Display lists (ordering contracts) ===

	// ListActive returns active rows soonest-expiry first.
	ListActive(ctx context.Context) ([]model.SnoozeRecord, error)

	// ListHistory returns expired and dismissed rows, most recent end
	// time first.
	ListHistory(ctx context.Context, limit int) ([]model.SnoozeRecord, error)

	// ListDismissedRecent returns dismissed rows created at or after
	// cutoff, newest first.
	ListDismissedRecent(ctx context.Context, cutoff int64) ([]model.SnoozeRecord, error)

	// === Retention sweeps ===

	// SweepExpiredActive deletes active rows whose end time has passed,
	// returning their ids so pending wake-ups can be cancelled.
	SweepExpiredActive(ctx context.Context, now int64) ([]string, error)

	// SweepOldHistory deletes terminal rows whose end time predates
	// cutoff, returning the count removed.
	SweepOldHistory(ctx context.Context, cutoff int64) (int64, error)

	// === Ignored threads ===

	IgnoreThread(ctx context.Context, ig model.IgnoredThread) error
	UnignoreThread(ctx context.Context, threadID string) error
	ListIgnored(ctx context.Context) ([]model.IgnoredThread, error)

	// === Change notification ===

	// AddListener registers fn to be invoked after each committed
	// transition.
	AddListener(fn ChangeListener)
}
