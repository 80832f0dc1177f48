// Package aggregate folds batches of raw events or persisted records into
// per-thread display groups with merged, deduplicated, capped message
// lists. Everything here is a pure transform over its inputs: applying a
// grouping twice to the same batch yields the same output.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/quietdesk/snoozed/internal/extract"
	"github.com/quietdesk/snoozed/internal/model"
	"github.com/quietdesk/snoozed/internal/thread"
)

// Merge combines incoming messages into existing ones: content duplicates
// are dropped, the result is sorted descending by timestamp and capped at
// model.MaxMessages keeping the most recent. The second return value is
// the number of genuinely new messages absorbed; zero means the merge was
// a no-op and callers must not write.
func Merge(existing, incoming []model.Message) ([]model.Message, int) {
	seen := make(map[string]struct{}, len(existing))
	merged := make([]model.Message, 0, len(existing)+len(incoming))

	for _, m := range existing {
		key := m.ContentKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, m)
	}

	added := 0
	for _, m := range incoming {
		key := m.ContentKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, m)
		added++
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp > merged[j].Timestamp
	})
	if len(merged) > model.MaxMessages {
		merged = merged[:model.MaxMessages]
	}
	return merged, added
}

// GroupEvents partitions a batch of raw events by thread key and folds
// each partition into a single display group. The result is sorted newest
// first by the base event's post time.
func GroupEvents(events []model.RawEvent) []model.ThreadGroup {
	byThread := make(map[string][]model.RawEvent)
	order := make([]string, 0)
	for _, ev := range events {
		key := thread.Key(ev)
		if _, ok := byThread[key]; !ok {
			order = append(order, key)
		}
		byThread[key] = append(byThread[key], ev)
	}

	groups := make([]model.ThreadGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, foldEvents(key, byThread[key]))
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].PostTime > groups[j].PostTime
	})
	return groups
}

func foldEvents(key string, members []model.RawEvent) model.ThreadGroup {
	if len(members) == 1 {
		return singleEvent(key, members[0])
	}

	// The newest member supplies the group's metadata.
	base := members[0]
	for _, ev := range members[1:] {
		if ev.PostTime > base.PostTime {
			base = ev
		}
	}

	group := model.ThreadGroup{
		ThreadID:        key,
		NotificationKey: base.Key,
		PackageName:     base.PackageName,
		Title:           base.Title,
		Text:            base.Text,
		PostTime:        base.PostTime,
		MemberCount:     len(members),
	}

	var merged []model.Message
	for _, ev := range members {
		merged, _ = Merge(merged, extract.Messages(ev))
	}

	if len(merged) == 0 {
		merged = synthesizeFromEvents(members)
		group.Synthesized = true
	}
	group.Messages = merged
	group.Title = groupTitle(group, members)
	return group
}

func singleEvent(key string, ev model.RawEvent) model.ThreadGroup {
	group := model.ThreadGroup{
		ThreadID:        key,
		NotificationKey: ev.Key,
		PackageName:     ev.PackageName,
		Title:           ev.Title,
		Text:            ev.Text,
		PostTime:        ev.PostTime,
		MemberCount:     1,
		Messages:        extract.Messages(ev),
	}
	// Every displayed item needs a title: promote text when the event has
	// none, and let the long-form text take the vacated slot.
	if group.Title == "" && group.Text != "" {
		group.Title = group.Text
		group.Text = ev.BigText
	}
	return group
}

// synthesizeFromEvents builds one message per event from its title or
// text, newest first, for groups whose members carried no structured
// content at all.
func synthesizeFromEvents(members []model.RawEvent) []model.Message {
	sorted := make([]model.RawEvent, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PostTime > sorted[j].PostTime
	})

	msgs := make([]model.Message, 0, len(sorted))
	seen := make(map[string]struct{})
	for _, ev := range sorted {
		text := ev.Title
		if text == "" {
			text = ev.Text
		}
		if text == "" {
			continue
		}
		m := model.Message{Text: text, Timestamp: ev.PostTime}
		if _, dup := seen[m.ContentKey()]; dup {
			continue
		}
		seen[m.ContentKey()] = struct{}{}
		msgs = append(msgs, m)
	}
	if len(msgs) > model.MaxMessages {
		msgs = msgs[:model.MaxMessages]
	}
	return msgs
}

// groupTitle picks the display title for a multi-member group: a count
// label when the content had to be synthesized, otherwise the most recent
// non-blank title found among the members.
func groupTitle(group model.ThreadGroup, members []model.RawEvent) string {
	if group.Synthesized && len(group.Messages) > 1 {
		return fmt.Sprintf("%d items", len(group.Messages))
	}

	title := ""
	best := int64(-1)
	for _, ev := range members {
		if ev.Title != "" && ev.PostTime > best {
			title = ev.Title
			best = ev.PostTime
		}
	}
	if title == "" {
		title = group.Title
	}
	return title
}

// GroupRecords folds persisted records by thread id the same way
// GroupEvents folds events, with two differences: recency is created-at
// rather than post time, and the group's effective snooze end is the
// maximum across members so a later-arriving suppressed message never
// shortens the apparent expiry.
func GroupRecords(records []model.SnoozeRecord) []model.ThreadGroup {
	byThread := make(map[string][]model.SnoozeRecord)
	order := make([]string, 0)
	for _, rec := range records {
		if _, ok := byThread[rec.ThreadID]; !ok {
			order = append(order, rec.ThreadID)
		}
		byThread[rec.ThreadID] = append(byThread[rec.ThreadID], rec)
	}

	groups := make([]model.ThreadGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, foldRecords(key, byThread[key]))
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].PostTime > groups[j].PostTime
	})
	return groups
}

func foldRecords(key string, members []model.SnoozeRecord) model.ThreadGroup {
	base := members[0]
	maxEnd := members[0].SnoozeEndTime
	for _, rec := range members[1:] {
		if rec.CreatedAt > base.CreatedAt {
			base = rec
		}
		if rec.SnoozeEndTime > maxEnd {
			maxEnd = rec.SnoozeEndTime
		}
	}

	group := model.ThreadGroup{
		ThreadID:        key,
		NotificationKey: base.NotificationKey,
		PackageName:     base.PackageName,
		AppName:         base.AppName,
		Title:           base.Title,
		Text:            base.Text,
		PostTime:        base.CreatedAt,
		SnoozeEndTime:   maxEnd,
		MemberCount:     len(members),
	}

	var merged []model.Message
	for _, rec := range members {
		merged, _ = Merge(merged, rec.Messages)
	}

	if len(merged) == 0 {
		merged = synthesizeFromRecords(members)
		group.Synthesized = true
	}
	group.Messages = merged

	if group.Synthesized && len(group.Messages) > 1 {
		group.Title = fmt.Sprintf("%d items", len(group.Messages))
	} else if group.Title == "" {
		for _, rec := range members {
			if rec.Title != "" {
				group.Title = rec.Title
				break
			}
		}
	}
	return group
}

func synthesizeFromRecords(members []model.SnoozeRecord) []model.Message {
	sorted := make([]model.SnoozeRecord, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt > sorted[j].CreatedAt
	})

	msgs := make([]model.Message, 0, len(sorted))
	seen := make(map[string]struct{})
	for _, rec := range sorted {
		text := rec.Title
		if text == "" {
			text = rec.Text
		}
		if text == "" {
			continue
		}
		m := model.Message{Text: text, Timestamp: rec.CreatedAt}
		if _, dup := seen[m.ContentKey()]; dup {
			continue
		}
		seen[m.ContentKey()] = struct{}{}
		msgs = append(msgs, m)
	}
	if len(msgs) > model.MaxMessages {
		msgs = msgs[:model.MaxMessages]
	}
	return msgs
}

// FilterExpiredContent removes from each active group any message whose
// content already surfaced through an expired history record of the same
// thread. Once a thread's content has been re-fired, the host redelivering
// identical content must not make it reappear in the live view; only
// genuinely new content after the last fire shows up.
func FilterExpiredContent(active []model.ThreadGroup, history []model.SnoozeRecord) []model.ThreadGroup {
	delivered := make(map[string]map[string]struct{})
	for _, rec := range history {
		if rec.Status != model.StatusExpired {
			continue
		}
		set, ok := delivered[rec.ThreadID]
		if !ok {
			set = make(map[string]struct{})
			delivered[rec.ThreadID] = set
		}
		for _, m := range rec.Messages {
			set[m.ContentKey()] = struct{}{}
		}
	}

	out := make([]model.ThreadGroup, 0, len(active))
	for _, group := range active {
		set, ok := delivered[group.ThreadID]
		if !ok || len(set) == 0 {
			out = append(out, group)
			continue
		}
		kept := make([]model.Message, 0, len(group.Messages))
		for _, m := range group.Messages {
			if _, dup := set[m.ContentKey()]; dup {
				continue
			}
			kept = append(kept, m)
		}
		group.Messages = kept
		out = append(out, group)
	}
	return out
}
