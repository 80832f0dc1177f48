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

func record(threadID string, status model.Status) *model.SnoozeRecord {
	return &model.SnoozeRecord{
		ThreadID:      threadID,
		PackageName:   "com.chat",
		AppName:       "Chat",
		Title:         "Alice",
		SnoozeEndTime: 10_000,
		CreatedAt:     1_000,
		Status:        status,
		Messages: []model.Message{
			{Sender: "alice", Text: "hi", Timestamp: 900},
		},
	}
}

func TestCreateActiveReplacesExisting(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	first := record("t1", model.StatusActive)
	replaced, err := s.CreateActive(ctx, first)
	require.NoError(t, err)
	assert.Empty(t, replaced)

	second := record("t1", model.StatusActive)
	replaced, err = s.CreateActive(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, replaced)

	// At most one active row per thread.
	active, err := s.GetActiveByThread(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)

	_, err = s.GetByID(ctx, first.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestCreateActiveLeavesTerminalRows(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	hist := record("t1", model.StatusExpired)
	_, err := s.InsertOrMergeHistory(ctx, hist)
	require.NoError(t, err)

	fresh := record("t1", model.StatusActive)
	replaced, err := s.CreateActive(ctx, fresh)
	require.NoError(t, err)
	assert.Empty(t, replaced, "terminal rows are not replaced")

	got, err := s.GetByID(ctx, hist.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, got.Status)
}

func TestMarkExpired(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	rec := record("t1", model.StatusActive)
	_, err := s.CreateActive(ctx, rec)
	require.NoError(t, err)

	require.NoError(t, s.MarkExpired(ctx, rec.ID))

	got, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, got.Status)

	// Expiring twice fails: the row is no longer active.
	err = s.MarkExpired(ctx, rec.ID)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestMergeArrivalActive(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	rec := record("t1", model.StatusActive)
	_, err := s.CreateActive(ctx, rec)
	require.NoError(t, err)

	// Three batches, each one duplicate plus one new message.
	batches := [][]model.Message{
		{{Sender: "alice", Text: "hi", Timestamp: 950}, {Sender: "bob", Text: "one", Timestamp: 1_100}},
		{{Sender: "bob", Text: "one", Timestamp: 1_200}, {Sender: "bob", Text: "two", Timestamp: 1_300}},
		{{Sender: "bob", Text: "two", Timestamp: 1_400}, {Sender: "bob", Text: "three", Timestamp: 1_500}},
	}
	for _, batch := range batches {
		res, err := s.MergeArrival(ctx, rec.ID, batch, 2_000)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Added)
		assert.Equal(t, model.StatusActive, res.Status)
	}

	got, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.SuppressedCount, "one per batch, never per duplicate")
	assert.Len(t, got.Messages, 4)
	assert.Equal(t, "three", got.Messages[0].Text)
}

func TestMergeArrivalNoNewMessagesIsNoOp(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	rec := record("t1", model.StatusDismissed)
	rec.CreatedAt = 1_000
	require.NoError(t, s.InsertDismissed(ctx, rec))

	res, err := s.MergeArrival(ctx, rec.ID,
		[]model.Message{{Sender: "alice", Text: "hi", Timestamp: 5_000}}, 9_999)
	require.NoError(t, err)
	assert.Zero(t, res.Added)

	got, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), got.CreatedAt, "no timestamp churn on a duplicate-only merge")
}

func TestMergeArrivalDismissedRefreshesCreatedAt(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	rec := record("t1", model.StatusDismissed)
	require.NoError(t, s.InsertDismissed(ctx, rec))

	res, err := s.MergeArrival(ctx, rec.ID,
		[]model.Message{{Sender: "bob", Text: "new", Timestamp: 5_000}}, 9_999)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, model.StatusDismissed, res.Status)

	got, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9_999), got.CreatedAt)
	assert.Equal(t, model.StatusDismissed, got.Status, "merge never reactivates a dismissed row")
	assert.Zero(t, got.SuppressedCount)
}

func TestInsertOrMergeHistoryConsolidates(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	first := record("t1", model.StatusExpired)
	survivorID, err := s.InsertOrMergeHistory(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first.ID, survivorID)

	second := record("t1", model.StatusExpired)
	second.SnoozeEndTime = 20_000
	second.Messages = []model.Message{
		{Sender: "alice", Text: "hi", Timestamp: 950}, // duplicate content
		{Sender: "bob", Text: "later", Timestamp: 1_200},
	}
	survivorID, err = s.InsertOrMergeHistory(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, survivorID, "existing history row survives")

	hist, err := s.GetHistoryByThread(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, hist, 1, "exactly one history row per thread")
	assert.Equal(t, int64(20_000), hist[0].SnoozeEndTime)
	assert.Len(t, hist[0].Messages, 2)
}

func TestListOrderingContracts(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	a := record("t1", model.StatusActive)
	a.SnoozeEndTime = 30_000
	b := record("t2", model.StatusActive)
	b.SnoozeEndTime = 10_000
	c := record("t3", model.StatusActive)
	c.SnoozeEndTime = 20_000
	for _, rec := range []*model.SnoozeRecord{a, b, c} {
		_, err := s.CreateActive(ctx, rec)
		require.NoError(t, err)
	}

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, "t2", active[0].ThreadID, "soonest expiry first")
	assert.Equal(t, "t3", active[1].ThreadID)
	assert.Equal(t, "t1", active[2].ThreadID)

	h1 := record("h1", model.StatusExpired)
	h1.SnoozeEndTime = 100
	h2 := record("h2", model.StatusDismissed)
	h2.SnoozeEndTime = 300
	for _, rec := range []*model.SnoozeRecord{h1, h2} {
		_, err := s.InsertOrMergeHistory(ctx, rec)
		require.NoError(t, err)
	}

	hist, err := s.ListHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "h2", hist[0].ThreadID, "most recent end time first")
}

func TestSweepExpiredActive(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	overdue := record("t1", model.StatusActive)
	overdue.SnoozeEndTime = 5_000
	current := record("t2", model.StatusActive)
	current.SnoozeEndTime = 50_000
	for _, rec := range []*model.SnoozeRecord{overdue, current} {
		_, err := s.CreateActive(ctx, rec)
		require.NoError(t, err)
	}

	ids, err := s.SweepExpiredActive(ctx, 5_000)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, overdue.ID, ids[0])

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, current.ID, active[0].ID)
}

func TestSweepOldHistory(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	old := record("t1", model.StatusExpired)
	old.SnoozeEndTime = 1_000
	recent := record("t2", model.StatusDismissed)
	recent.SnoozeEndTime = 9_000
	for _, rec := range []*model.SnoozeRecord{old, recent} {
		_, err := s.InsertOrMergeHistory(ctx, rec)
		require.NoError(t, err)
	}

	count, err := s.SweepOldHistory(ctx, 5_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	hist, err := s.ListHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, recent.ID, hist[0].ID)
}

func TestChangeListener(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	var changes []store.Change
	s.AddListener(func(c store.Change) {
		changes = append(changes, c)
	})

	rec := record("t1", model.StatusActive)
	_, err := s.CreateActive(ctx, rec)
	require.NoError(t, err)
	require.NoError(t, s.MarkExpired(ctx, rec.ID))
	require.NoError(t, s.DeleteRecord(ctx, rec.ID))

	require.Len(t, changes, 3)
	assert.Equal(t, store.OpCreated, changes[0].Op)
	assert.Equal(t, store.OpUpdated, changes[1].Op)
	assert.Equal(t, store.OpDeleted, changes[2].Op)
	for _, c := range changes {
		assert.Equal(t, rec.ID, c.RecordID)
		assert.Equal(t, "t1", c.ThreadID)
	}
}

func TestUnknownStatusReadsAsActive(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	rec := record("t1", model.StatusActive)
	_, err := s.CreateActive(ctx, rec)
	require.NoError(t, err)

	// A future schema version might write a status this build does not
	// know about; the row must still be readable.
	require.NoError(t, s.RawSetStatus(ctx, rec.ID, "archived"))

	got, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, got.Status)
}

func TestMalformedMessagesJSONDecodesEmpty(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	rec := record("t1", model.StatusActive)
	_, err := s.CreateActive(ctx, rec)
	require.NoError(t, err)

	require.NoError(t, s.RawSetMessagesJSON(ctx, rec.ID, "{not json"))

	got, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
}
