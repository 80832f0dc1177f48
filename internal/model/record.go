package model

// MaxMessages caps the merged message list on any record or group.
// Merges always keep the most recent messages by timestamp.
const MaxMessages = 20

// Status is the lifecycle state of a persisted snooze record.
type Status string

const (
	// StatusActive means the thread is being suppressed and a wake-up is
	// scheduled.
	StatusActive Status = "active"

	// StatusExpired means the scheduled wake-up fired; the record is
	// retained as history.
	StatusExpired Status = "expired"

	// StatusDismissed is terminal and never scheduled. Created when a
	// notification is captured at dismissal time.
	StatusDismissed Status = "dismissed"
)

// ParseStatus maps a persisted status value to a Status. Unrecognized
// values decode as StatusActive rather than failing the read, so a row
// written by a newer schema is still visible.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusExpired:
		return StatusExpired
	case StatusDismissed:
		return StatusDismissed
	default:
		return StatusActive
	}
}

// Source identifies how a record entered the system.
type Source string

const (
	SourceNotification Source = "notification"
	SourceShare        Source = "share"
)

// ContentType classifies shared content stored on a record.
type ContentType string

const (
	ContentTypeURL       ContentType = "url"
	ContentTypePlainText ContentType = "plain_text"
	ContentTypeImage     ContentType = "image"
	ContentTypeUnknown   ContentType = "unknown"
)

// SnoozeRecord is the persisted unit of the snooze lifecycle. One row per
// suppressed (or captured) thread; the engine guarantees at most one row
// with StatusActive per ThreadID at any instant.
type SnoozeRecord struct {
	ID              string      `json:"id" db:"id"`
	ThreadID        string      `json:"thread_id" db:"thread_id"`
	NotificationKey string      `json:"notification_key,omitempty" db:"notification_key"`
	PackageName     string      `json:"package_name" db:"package_name"`
	AppName         string      `json:"app_name" db:"app_name"`
	Title           string      `json:"title" db:"title"`
	Text            string      `json:"text,omitempty" db:"text"`
	SnoozeEndTime   int64       `json:"snooze_end_time" db:"snooze_end_time"`
	CreatedAt       int64       `json:"created_at" db:"created_at"`
	SourceType      Source      `json:"source_type" db:"source_type"`
	ShortcutID      string      `json:"shortcut_id,omitempty" db:"shortcut_id"`
	GroupKey        string      `json:"group_key,omitempty" db:"group_key"`
	ContentType     ContentType `json:"content_type,omitempty" db:"content_type"`
	Status          Status      `json:"status" db:"status"`
	SuppressedCount int         `json:"suppressed_count" db:"suppressed_count"`

	// ContentIntentRef is an opaque handle to the host's relaunch intent,
	// carried through for the repost path.
	ContentIntentRef string `json:"content_intent_ref,omitempty" db:"content_intent_ref"`

	// Messages is stored serialized in the messages_json column.
	Messages []Message `json:"messages,omitempty" db:"-"`
}
