package model

import "strings"

// Notification category values as reported by the host platform.
// Only the two conversation-style categories matter to classification;
// anything else is treated as a non-conversation notification.
const (
	CategoryMessage = "msg"
	CategorySocial  = "social"
)

// Message is a single chat message carried by a notification event.
type Message struct {
	// Sender is the display name of the message author. May be empty for
	// synthesized messages.
	Sender string `json:"sender"`

	// Text is the message body.
	Text string `json:"text"`

	// Timestamp is the message time in epoch milliseconds. Zero when the
	// host did not supply one.
	Timestamp int64 `json:"timestamp"`
}

// ContentKey returns the identity used to deduplicate messages: trimmed
// sender and text. Timestamps are deliberately excluded because redelivered
// content can arrive with fresh timestamps.
func (m Message) ContentKey() string {
	return strings.TrimSpace(m.Sender) + "\x00" + strings.TrimSpace(m.Text)
}

// RawEvent is a flattened view of a notification delivered by the host's
// observation layer. It has no durable identity: it is consumed by the
// thread identifier, the extractor, and the lifecycle engine, then dropped.
type RawEvent struct {
	// Key is the host's notification key, used to suppress or repost
	// this specific notification in the tray.
	Key string

	// PackageName is the posting application's package. Always present.
	PackageName string

	Title             string
	Text              string
	BigText           string
	SubText           string
	ConversationTitle string

	// ShortcutID identifies a per-conversation shortcut when the posting
	// app exposes one. The most precise thread signal available.
	ShortcutID string

	// GroupKey is the app-assigned notification group, a coarser
	// per-app grouping signal.
	GroupKey string

	// PostTime is when the host received the notification, epoch ms.
	PostTime int64

	Category  string
	ChannelID string

	// StructuredMessages holds the messaging-style payload when the
	// notification carried one. Empty for plain notifications.
	StructuredMessages []Message

	// TextLines holds the expanded line payload for inbox-style
	// notifications that have no structured messages.
	TextLines []string
}

// SharedType classifies content shared into the system by the user.
type SharedType string

const (
	SharedTypeURL       SharedType = "url"
	SharedTypePlainText SharedType = "plain_text"
	SharedTypeImage     SharedType = "image"
	SharedTypeUnknown   SharedType = "unknown"
)

// SharedContentEvent is produced when the user explicitly shares content
// into the system rather than snoozing a live notification.
type SharedContentEvent struct {
	Type          SharedType
	Text          string
	URI           string
	SourcePackage string
	Subject       string
}
