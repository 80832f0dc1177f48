package sweep

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietdesk/snoozed/internal/model"
	"github.com/quietdesk/snoozed/tests/testutil"
)

type recordingScheduler struct {
	mu        sync.Mutex
	cancelled []string
}

func (r *recordingScheduler) Schedule(string, int64) error { return nil }

func (r *recordingScheduler) Cancel(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, id)
	return nil
}

func TestNewRejectsBadCron(t *testing.T) {
	st := testutil.NewTestStore(t)
	_, err := New(st, &recordingScheduler{}, Config{Cron: "not a cron"}, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	overdue := &model.SnoozeRecord{
		ThreadID: "t1", PackageName: "com.app",
		SnoozeEndTime: 4_000, CreatedAt: 1_000,
	}
	_, err := st.CreateActive(ctx, overdue)
	require.NoError(t, err)

	current := &model.SnoozeRecord{
		ThreadID: "t2", PackageName: "com.app",
		SnoozeEndTime: 50_000_000, CreatedAt: 1_000,
	}
	_, err = st.CreateActive(ctx, current)
	require.NoError(t, err)

	oldHist := &model.SnoozeRecord{
		ThreadID: "t3", PackageName: "com.app",
		SnoozeEndTime: 100, CreatedAt: 100, Status: model.StatusExpired,
	}
	_, err = st.InsertOrMergeHistory(ctx, oldHist)
	require.NoError(t, err)

	sched := &recordingScheduler{}
	sw, err := New(st, sched, Config{HistoryRetention: time.Hour}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	now := time.UnixMilli(10_000_000)
	sw.now = func() time.Time { return now }

	sw.RunOnce(ctx)

	// The overdue active row is gone and its wake-up cancelled.
	active, err := st.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, current.ID, active[0].ID)
	assert.Equal(t, []string{overdue.ID}, sched.cancelled)

	// History past the retention horizon is gone.
	hist, err := st.ListHistory(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestStartStop(t *testing.T) {
	st := testutil.NewTestStore(t)
	sw, err := New(st, &recordingScheduler{}, Config{}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	sw.Start()
	sw.Start() // second start is a no-op
	sw.Stop()
	sw.Stop() // second stop is a no-op
}
