package engine

import "github.com/quietdesk/snoozed/internal/model"

// Scheduler is the host's alarm primitive. Schedule replaces any pending
// wake-up for the same record id; Cancel of an unknown id is a no-op.
type Scheduler interface {
	Schedule(recordID string, fireAtEpochMs int64) error
	Cancel(recordID string) error
}

// Summary is the aggregated content posted when a snooze fires.
type Summary struct {
	RecordID        string
	ThreadID        string
	PackageName     string
	AppName         string
	Title           string
	Text            string
	Messages        []model.Message
	SuppressedCount int

	// ContentIntentRef is the opaque relaunch handle carried on the
	// record, passed through for the host to attach.
	ContentIntentRef string
}

// Tray is the host's notification surface. Suppress silences a single
// newly-arrived notification without disturbing already-displayed ones;
// Post re-fires a summary when a snooze expires.
type Tray interface {
	Suppress(notificationKey string) error
	Post(summary Summary) error
}

// AppNameResolver maps a package name to its display name. The host
// provides this; the fallback resolver echoes the package name.
type AppNameResolver func(packageName string) string
