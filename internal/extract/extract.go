// Package extract turns a raw event's payload into an ordered message
// list. It never synthesizes content itself; an empty result tells the
// aggregation layer to synthesize from event metadata instead.
package extract

import (
	"sort"
	"strings"

	"github.com/quietdesk/snoozed/internal/model"
)

// Messages extracts the message list from a raw event.
//
// Structured messages take priority: each triple missing a sender or text
// is skipped, a missing time defaults to zero. When there are no usable
// structured messages, the expanded text lines are used instead, one
// message per line with an empty sender and zero timestamp. The result is
// sorted descending by timestamp.
func Messages(ev model.RawEvent) []model.Message {
	if msgs := structured(ev); len(msgs) > 0 {
		return msgs
	}
	return fromLines(ev)
}

func structured(ev model.RawEvent) []model.Message {
	if len(ev.StructuredMessages) == 0 {
		return nil
	}

	out := make([]model.Message, 0, len(ev.StructuredMessages))
	for _, m := range ev.StructuredMessages {
		if strings.TrimSpace(m.Sender) == "" || strings.TrimSpace(m.Text) == "" {
			continue
		}
		out = append(out, m)
	}
	sortDesc(out)
	return out
}

func fromLines(ev model.RawEvent) []model.Message {
	if len(ev.TextLines) == 0 {
		return nil
	}

	out := make([]model.Message, 0, len(ev.TextLines))
	for _, line := range ev.TextLines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, model.Message{Text: line})
	}
	return out
}

func sortDesc(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp > msgs[j].Timestamp
	})
}
