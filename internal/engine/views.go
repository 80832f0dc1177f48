package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/quietdesk/snoozed/internal/aggregate"
	"github.com/quietdesk/snoozed/internal/model"
	"github.com/quietdesk/snoozed/internal/thread"
)

// ActiveSnoozes returns the active snooze list grouped per thread,
// soonest expiry first.
func (e *Engine) ActiveSnoozes(ctx context.Context) ([]model.ThreadGroup, error) {
	records, err := e.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active snoozes: %w", err)
	}

	groups := aggregate.GroupRecords(records)
	// GroupRecords orders newest first; the snooze list orders by
	// urgency instead.
	sortGroupsByEndAsc(groups)
	return groups, nil
}

// History returns the terminal records grouped per thread, most recent
// end time first.
func (e *Engine) History(ctx context.Context, limit int) ([]model.ThreadGroup, error) {
	records, err := e.store.ListHistory(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	groups := aggregate.GroupRecords(records)
	sortGroupsByEndDesc(groups)
	return groups, nil
}

// RecentDismissed returns dismissed entries still inside the live-view
// visibility window, newest first.
func (e *Engine) RecentDismissed(ctx context.Context) ([]model.ThreadGroup, error) {
	cutoff := e.nowMs() - e.dismissedVisible.Milliseconds()
	records, err := e.store.ListDismissedRecent(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing recent dismissed: %w", err)
	}
	return aggregate.GroupRecords(records), nil
}

// LiveGroups aggregates a batch of live events for display, dropping
// ignored scopes and content that already surfaced through an expired
// re-fire of the same thread.
func (e *Engine) LiveGroups(ctx context.Context, events []model.RawEvent) ([]model.ThreadGroup, error) {
	visible := make([]model.RawEvent, 0, len(events))
	threads := make(map[string]struct{})
	for _, ev := range events {
		if e.isIgnored(ev) {
			continue
		}
		visible = append(visible, ev)
		threads[thread.Key(ev)] = struct{}{}
	}

	groups := aggregate.GroupEvents(visible)
	if len(groups) == 0 {
		return groups, nil
	}

	var history []model.SnoozeRecord
	for threadID := range threads {
		recs, err := e.store.GetHistoryByThread(ctx, threadID)
		if err != nil {
			return nil, fmt.Errorf("loading history for live view: %w", err)
		}
		history = append(history, recs...)
	}

	return aggregate.FilterExpiredContent(groups, history), nil
}

func sortGroupsByEndAsc(groups []model.ThreadGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].SnoozeEndTime < groups[j].SnoozeEndTime
	})
}

func sortGroupsByEndDesc(groups []model.ThreadGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].SnoozeEndTime > groups[j].SnoozeEndTime
	})
}
