package model

// ThreadGroup is the transient result of aggregating one or more events or
// records that share a thread key. It carries the most recent metadata of
// the group plus the merged message list, ready for display.
type ThreadGroup struct {
	// ThreadID is the canonical thread key shared by all members.
	ThreadID string

	// NotificationKey is the host key of the most recent member, when the
	// group was built from live events.
	NotificationKey string

	PackageName string
	AppName     string
	Title       string
	Text        string

	// PostTime is the most recent member's post time (or created-at for
	// record groups), epoch ms. Groups are listed newest first by this.
	PostTime int64

	// SnoozeEndTime is the effective expiry for record groups: the maximum
	// across members, so a later-arriving suppressed message never shortens
	// the apparent expiry. Zero for live-event groups.
	SnoozeEndTime int64

	// Messages is merged across members, content-deduped, capped at
	// MaxMessages, sorted descending by timestamp.
	Messages []Message

	// MemberCount is how many events or records were folded in.
	MemberCount int

	// Synthesized is true when no member carried structured messages and
	// the message list was built from titles and texts.
	Synthesized bool
}

// IgnoredThread is a persisted suppression scope the user asked to stop
// tracking entirely. Package-level entries ignore everything from the app;
// thread-level entries ignore a single conversation or channel scope.
type IgnoredThread struct {
	ThreadID       string `json:"thread_id" db:"thread_id"`
	PackageName    string `json:"package_name" db:"package_name"`
	AppName        string `json:"app_name" db:"app_name"`
	DisplayTitle   string `json:"display_title" db:"display_title"`
	IgnoredAt      int64  `json:"ignored_at" db:"ignored_at"`
	IsPackageLevel bool   `json:"is_package_level" db:"is_package_level"`
}
