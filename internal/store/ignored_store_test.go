package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietdesk/snoozed/internal/model"
	"github.com/quietdesk/snoozed/internal/store"
	"github.com/quietdesk/snoozed/tests/testutil"
)

func TestIgnoreThreadRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IgnoreThread(ctx, model.IgnoredThread{
		ThreadID:     "friend-1",
		PackageName:  "com.chat",
		AppName:      "Chat",
		DisplayTitle: "Alice",
		IgnoredAt:    100,
	}))
	require.NoError(t, s.IgnoreThread(ctx, model.IgnoredThread{
		ThreadID:       "com.noisy",
		PackageName:    "com.noisy",
		AppName:        "Noisy",
		IgnoredAt:      200,
		IsPackageLevel: true,
	}))

	ignored, err := s.ListIgnored(ctx)
	require.NoError(t, err)
	require.Len(t, ignored, 2)
	assert.Equal(t, "com.noisy", ignored[0].ThreadID, "newest first")
	assert.True(t, ignored[0].IsPackageLevel)

	require.NoError(t, s.UnignoreThread(ctx, "friend-1"))

	ignored, err = s.ListIgnored(ctx)
	require.NoError(t, err)
	require.Len(t, ignored, 1)

	err = s.UnignoreThread(ctx, "friend-1")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestIgnoreThreadReplaceRefreshes(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IgnoreThread(ctx, model.IgnoredThread{
		ThreadID: "friend-1", PackageName: "com.chat", IgnoredAt: 100,
	}))
	require.NoError(t, s.IgnoreThread(ctx, model.IgnoredThread{
		ThreadID: "friend-1", PackageName: "com.chat", DisplayTitle: "Alice", IgnoredAt: 500,
	}))

	ignored, err := s.ListIgnored(ctx)
	require.NoError(t, err)
	require.Len(t, ignored, 1)
	assert.Equal(t, int64(500), ignored[0].IgnoredAt)
	assert.Equal(t, "Alice", ignored[0].DisplayTitle)
}
