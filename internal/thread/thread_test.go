package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quietdesk/snoozed/internal/model"
)

func TestKeyFallbackChain(t *testing.T) {
	tests := []struct {
		name string
		ev   model.RawEvent
		want string
	}{
		{
			name: "shortcut id wins over group key",
			ev:   model.RawEvent{ShortcutID: "abc", GroupKey: "xyz", PackageName: "com.app"},
			want: "abc",
		},
		{
			name: "group key when no shortcut",
			ev:   model.RawEvent{GroupKey: "xyz", PackageName: "com.app"},
			want: "xyz",
		},
		{
			name: "package name when neither",
			ev:   model.RawEvent{PackageName: "com.app"},
			want: "com.app",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.ev))
		})
	}
}

func TestIsAppWide(t *testing.T) {
	ev := model.RawEvent{PackageName: "com.app"}
	assert.True(t, IsAppWide(ev, Key(ev)))

	ev.GroupKey = "xyz"
	assert.False(t, IsAppWide(ev, Key(ev)))
}

func TestIgnoreKey(t *testing.T) {
	conv := model.RawEvent{
		Category:    model.CategoryMessage,
		ShortcutID:  "friend-1",
		ChannelID:   "chat",
		PackageName: "com.messenger",
	}
	assert.Equal(t, "friend-1", IgnoreKey(conv))

	status := model.RawEvent{
		Category:    "status",
		ChannelID:   "uploads",
		PackageName: "com.cloud",
	}
	assert.Equal(t, "channel:uploads:com.cloud", IgnoreKey(status))

	bare := model.RawEvent{Category: "status", PackageName: "com.cloud"}
	assert.Equal(t, "com.cloud", IgnoreKey(bare))
}

func TestIsConversation(t *testing.T) {
	assert.True(t, IsConversation(model.RawEvent{Category: model.CategoryMessage}))
	assert.True(t, IsConversation(model.RawEvent{Category: model.CategorySocial}))

	// Absent category: classification falls back to shortcut presence.
	assert.True(t, IsConversation(model.RawEvent{ShortcutID: "abc"}))
	assert.False(t, IsConversation(model.RawEvent{PackageName: "com.app"}))

	// Any other category is not a conversation even with a shortcut.
	assert.False(t, IsConversation(model.RawEvent{Category: "email", ShortcutID: "abc"}))
}
