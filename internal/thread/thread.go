// Package thread derives stable conversation identity from raw
// notification events. Key resolution never fails: every event carries a
// package name, which is the final fallback for both key kinds.
package thread

import "github.com/quietdesk/snoozed/internal/model"

// Key returns the canonical thread key for an event.
//
// A per-conversation shortcut id is the finest signal available; the
// app-assigned group key is the next-best per-app grouping; the package
// name guarantees a non-empty result and means app-wide suppression.
func Key(ev model.RawEvent) string {
	if ev.ShortcutID != "" {
		return ev.ShortcutID
	}
	if ev.GroupKey != "" {
		return ev.GroupKey
	}
	return ev.PackageName
}

// IsAppWide reports whether key is the package-name fallback for ev,
// meaning the event carried no conversation-precision signal. Merge
// paths that depend on per-conversation precision check this.
func IsAppWide(ev model.RawEvent, key string) bool {
	return ev.ShortcutID == "" && ev.GroupKey == "" && key == ev.PackageName
}

// IgnoreKey returns the suppression-scope key for an event. Conversations
// scope to their shortcut id; non-conversation notifications scope to
// their channel within the app, so unrelated notification types from one
// app are not lumped into a single ignore scope.
func IgnoreKey(ev model.RawEvent) string {
	if IsConversation(ev) && ev.ShortcutID != "" {
		return ev.ShortcutID
	}
	if ev.ChannelID != "" {
		return "channel:" + ev.ChannelID + ":" + ev.PackageName
	}
	return ev.PackageName
}

// IsConversation classifies an event as conversation-style. Events with a
// message or social category qualify; events with no category at all
// (legacy or partial data) qualify iff they carry a shortcut id.
func IsConversation(ev model.RawEvent) bool {
	switch ev.Category {
	case model.CategoryMessage, model.CategorySocial:
		return true
	case "":
		return ev.ShortcutID != ""
	default:
		return false
	}
}
