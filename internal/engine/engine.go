// Package engine owns the snooze record lifecycle: creation with
// replace-latest-wins semantics, merge-on-arrival for threads that already
// have persisted state, expiry, dismissal capture, and re-snooze. All
// mutating paths are serialized per thread id so concurrent arrivals for
// one conversation cannot lose updates.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quietdesk/snoozed/internal/extract"
	"github.com/quietdesk/snoozed/internal/model"
	"github.com/quietdesk/snoozed/internal/store"
	"github.com/quietdesk/snoozed/internal/thread"
)

// Disposition reports what HandleEvent did with an arriving event.
type Disposition string

const (
	// DispositionIgnored means the event matched an ignored scope and was
	// dropped without touching the store.
	DispositionIgnored Disposition = "ignored"

	// DispositionSuppressed means an active record absorbed the event and
	// the tray was told to silence it.
	DispositionSuppressed Disposition = "suppressed"

	// DispositionMerged means a recent dismissed record absorbed the
	// event's content and stays dismissed.
	DispositionMerged Disposition = "merged"

	// DispositionCaptured means a fresh dismissed entry was created.
	DispositionCaptured Disposition = "captured"

	// DispositionPassed means the engine has no state for the thread and
	// the caller did not ask for capture; delivery proceeds untouched.
	DispositionPassed Disposition = "passed"
)

// Config holds the engine tunables.
type Config struct {
	// StalenessWindow bounds how long a dismissed record stays
	// merge-eligible. Default 4h.
	StalenessWindow time.Duration

	// DismissedVisibility bounds the recent-dismissed live view.
	// Default 4h.
	DismissedVisibility time.Duration

	// ResolveAppName maps package names to display names. Defaults to
	// the identity mapping.
	ResolveAppName AppNameResolver
}

// Engine drives the lifecycle state machine against the store and the
// scheduler/tray collaborators.
type Engine struct {
	store   store.Store
	sched   Scheduler
	tray    Tray
	resolve AppNameResolver
	log     *slog.Logger

	staleness        time.Duration
	dismissedVisible time.Duration

	// now is swapped in tests.
	now func() time.Time

	// locks serializes mutating operations per thread id.
	locks sync.Map

	igMu    sync.RWMutex
	ignored map[string]struct{}
}

// New creates an Engine. The ignored-scope cache starts empty; call
// RefreshIgnored once the store is ready.
func New(st store.Store, sched Scheduler, tray Tray, cfg Config, log *slog.Logger) *Engine {
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = 4 * time.Hour
	}
	if cfg.DismissedVisibility <= 0 {
		cfg.DismissedVisibility = 4 * time.Hour
	}
	if cfg.ResolveAppName == nil {
		cfg.ResolveAppName = func(pkg string) string { return pkg }
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:            st,
		sched:            sched,
		tray:             tray,
		resolve:          cfg.ResolveAppName,
		log:              log,
		staleness:        cfg.StalenessWindow,
		dismissedVisible: cfg.DismissedVisibility,
		now:              time.Now,
		ignored:          make(map[string]struct{}),
	}
}

func (e *Engine) nowMs() int64 {
	return e.now().UnixMilli()
}

// lockThread acquires the per-thread mutex and returns its unlock func.
func (e *Engine) lockThread(threadID string) func() {
	v, _ := e.locks.LoadOrStore(threadID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// recordFromEvent builds a new record for ev. Messages come from the
// extractor; when the event carries none, a single message is synthesized
// from its title or text so the record is never content-free.
func (e *Engine) recordFromEvent(ev model.RawEvent, threadID string, endTime int64) *model.SnoozeRecord {
	title := ev.ConversationTitle
	if title == "" {
		title = ev.Title
	}
	if title == "" {
		title = ev.Text
	}
	return &model.SnoozeRecord{
		ThreadID:        threadID,
		NotificationKey: ev.Key,
		PackageName:     ev.PackageName,
		AppName:         e.resolve(ev.PackageName),
		Title:           title,
		Text:            ev.Text,
		SnoozeEndTime:   endTime,
		CreatedAt:       e.nowMs(),
		SourceType:      model.SourceNotification,
		ShortcutID:      ev.ShortcutID,
		GroupKey:        ev.GroupKey,
		Messages:        e.eventMessages(ev),
	}
}

func (e *Engine) eventMessages(ev model.RawEvent) []model.Message {
	if msgs := extract.Messages(ev); len(msgs) > 0 {
		return msgs
	}
	text := ev.Title
	if text == "" {
		text = ev.Text
	}
	if text == "" {
		return nil
	}
	return []model.Message{{Text: text, Timestamp: ev.PostTime}}
}

// Snooze suppresses ev's thread until endTime. Any existing active record
// for the thread is replaced (latest wins) and its pending wake-up
// cancelled. Scheduler and tray failures are surfaced but never roll back
// the persisted transition.
func (e *Engine) Snooze(ctx context.Context, ev model.RawEvent, endTime int64) (*model.SnoozeRecord, error) {
	threadID := thread.Key(ev)
	defer e.lockThread(threadID)()

	rec := e.recordFromEvent(ev, threadID, endTime)
	replacedID, err := e.store.CreateActive(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("snoozing thread %s: %w", threadID, err)
	}

	var sideErrs []error
	if replacedID != "" {
		if err := e.sched.Cancel(replacedID); err != nil {
			sideErrs = append(sideErrs, fmt.Errorf("cancelling replaced wake-up %s: %w", replacedID, err))
		}
	}
	if err := e.sched.Schedule(rec.ID, endTime); err != nil {
		sideErrs = append(sideErrs, fmt.Errorf("scheduling wake-up %s: %w", rec.ID, err))
	}
	if ev.Key != "" {
		if err := e.tray.Suppress(ev.Key); err != nil {
			sideErrs = append(sideErrs, fmt.Errorf("suppressing notification %s: %w", ev.Key, err))
		}
	}

	e.log.Info("thread snoozed",
		"thread", threadID, "record", rec.ID, "until", endTime, "replaced", replacedID)
	return rec, errors.Join(sideErrs...)
}

// HandleEvent applies the merge-on-arrival policy to a newly observed
// event. capture controls the no-state case: true creates a dismissed
// entry so the thread shows up in the live view, false lets the event
// pass through untouched.
func (e *Engine) HandleEvent(ctx context.Context, ev model.RawEvent, capture bool) (Disposition, error) {
	if e.isIgnored(ev) {
		return DispositionIgnored, nil
	}

	threadID := thread.Key(ev)
	defer e.lockThread(threadID)()

	active, err := e.store.GetActiveByThread(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("handling event for thread %s: %w", threadID, err)
	}
	if active != nil {
		return e.absorbIntoActive(ctx, ev, active)
	}

	dismissed, err := e.store.GetDismissedByThread(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("handling event for thread %s: %w", threadID, err)
	}
	if dismissed != nil {
		age := time.Duration(e.nowMs()-dismissed.CreatedAt) * time.Millisecond
		if age < e.staleness {
			if _, err := e.store.MergeArrival(ctx, dismissed.ID, e.eventMessages(ev), e.nowMs()); err != nil {
				return "", fmt.Errorf("merging arrival into dismissed %s: %w", dismissed.ID, err)
			}
			return DispositionMerged, nil
		}
		// Past the staleness window the old entry is closed; the arrival
		// starts over.
		if err := e.store.DeleteRecord(ctx, dismissed.ID); err != nil {
			return "", fmt.Errorf("deleting stale dismissed %s: %w", dismissed.ID, err)
		}
	}

	if !capture {
		return DispositionPassed, nil
	}
	// Expired history is invisible to arrivals: the capture starts a
	// fresh dismissed entry rather than folding into an expired row,
	// which would hide it from the live view as already delivered.
	rec := e.recordFromEvent(ev, threadID, e.nowMs())
	if err := e.store.InsertDismissed(ctx, rec); err != nil {
		return "", fmt.Errorf("capturing thread %s: %w", threadID, err)
	}
	return DispositionCaptured, nil
}

// absorbIntoActive appends an arriving event's content to the thread's
// active record and silences delivery.
func (e *Engine) absorbIntoActive(ctx context.Context, ev model.RawEvent, active *model.SnoozeRecord) (Disposition, error) {
	res, err := e.store.MergeArrival(ctx, active.ID, e.eventMessages(ev), e.nowMs())
	if err != nil {
		return "", fmt.Errorf("merging arrival into active %s: %w", active.ID, err)
	}

	var sideErr error
	if ev.Key != "" {
		if err := e.tray.Suppress(ev.Key); err != nil {
			sideErr = fmt.Errorf("suppressing notification %s: %w", ev.Key, err)
		}
	}

	if res.Added > 0 {
		e.log.Debug("arrival absorbed",
			"thread", active.ThreadID, "record", active.ID, "new_messages", res.Added)
	}
	return DispositionSuppressed, sideErr
}

// OnExpire is the scheduler-fired callback. The record transitions to
// expired, consolidates into the thread's single history row, and its
// aggregated content is re-posted. A record that vanished before the
// timer fired (cancelled, swept, replaced) is a benign no-op.
func (e *Engine) OnExpire(ctx context.Context, recordID string) error {
	rec, err := e.store.GetByID(ctx, recordID)
	if errors.Is(err, store.ErrNotFound) {
		e.log.Debug("expiry fired for missing record", "record", recordID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("expiring record %s: %w", recordID, err)
	}

	defer e.lockThread(rec.ThreadID)()

	// Re-read under the lock: an arrival absorbed into the row between
	// the first read and the lock must make it into history and the
	// summary.
	rec, err = e.store.GetByID(ctx, recordID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("expiring record %s: %w", recordID, err)
	}

	if err := e.store.MarkExpired(ctx, recordID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("expiring record %s: %w", recordID, err)
	}

	rec.Status = model.StatusExpired
	survivorID, err := e.store.InsertOrMergeHistory(ctx, rec)
	if err != nil {
		return fmt.Errorf("consolidating history for thread %s: %w", rec.ThreadID, err)
	}

	survivor, err := e.store.GetByID(ctx, survivorID)
	if err != nil {
		return fmt.Errorf("loading consolidated history %s: %w", survivorID, err)
	}

	// A pre-existing survivor never saw this snooze's arrivals; its
	// counter understates what was suppressed.
	suppressed := survivor.SuppressedCount
	if rec.SuppressedCount > suppressed {
		suppressed = rec.SuppressedCount
	}

	summary := Summary{
		RecordID:         survivor.ID,
		ThreadID:         survivor.ThreadID,
		PackageName:      survivor.PackageName,
		AppName:          survivor.AppName,
		Title:            survivor.Title,
		Text:             survivor.Text,
		Messages:         survivor.Messages,
		SuppressedCount:  suppressed,
		ContentIntentRef: survivor.ContentIntentRef,
	}
	e.log.Info("snooze expired", "thread", rec.ThreadID, "record", recordID)
	if err := e.tray.Post(summary); err != nil {
		return fmt.Errorf("posting summary for %s: %w", recordID, err)
	}
	return nil
}

// DismissCapture records a dismissal as a dismissed history entry. The
// end time is the dismissal instant so the entry sorts among history by
// when it entered it. A thread that already has a dismissed row absorbs
// the content instead of gaining a second row; expired rows are left
// alone and a fresh entry starts beside them.
func (e *Engine) DismissCapture(ctx context.Context, ev model.RawEvent) (*model.SnoozeRecord, error) {
	threadID := thread.Key(ev)
	defer e.lockThread(threadID)()

	existing, err := e.store.GetDismissedByThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("capturing dismissal for thread %s: %w", threadID, err)
	}
	if existing != nil {
		if _, err := e.store.MergeArrival(ctx, existing.ID, e.eventMessages(ev), e.nowMs()); err != nil {
			return nil, fmt.Errorf("capturing dismissal for thread %s: %w", threadID, err)
		}
		return e.store.GetByID(ctx, existing.ID)
	}

	rec := e.recordFromEvent(ev, threadID, e.nowMs())
	if err := e.store.InsertDismissed(ctx, rec); err != nil {
		return nil, fmt.Errorf("capturing dismissal for thread %s: %w", threadID, err)
	}
	return rec, nil
}

// Cancel hard-deletes a snooze and its pending wake-up. Unlike dismiss,
// a cancelled snooze leaves no history; the asymmetry is intentional.
func (e *Engine) Cancel(ctx context.Context, recordID string) error {
	rec, err := e.store.GetByID(ctx, recordID)
	if err != nil {
		return fmt.Errorf("cancelling record %s: %w", recordID, err)
	}

	defer e.lockThread(rec.ThreadID)()

	if err := e.store.DeleteRecord(ctx, recordID); err != nil {
		return fmt.Errorf("cancelling record %s: %w", recordID, err)
	}
	if err := e.sched.Cancel(recordID); err != nil {
		return fmt.Errorf("cancelling wake-up %s: %w", recordID, err)
	}
	e.log.Info("snooze cancelled", "thread", rec.ThreadID, "record", recordID)
	return nil
}

// Resnooze starts a fresh snooze from a history record's thread and
// content. The history row itself is left untouched; the new record gets
// its own id and a clean suppressed count.
func (e *Engine) Resnooze(ctx context.Context, historyID string, endTime int64) (*model.SnoozeRecord, error) {
	hist, err := e.store.GetByID(ctx, historyID)
	if err != nil {
		return nil, fmt.Errorf("re-snoozing from %s: %w", historyID, err)
	}

	defer e.lockThread(hist.ThreadID)()

	rec := &model.SnoozeRecord{
		ID:               uuid.New().String(),
		ThreadID:         hist.ThreadID,
		NotificationKey:  hist.NotificationKey,
		PackageName:      hist.PackageName,
		AppName:          hist.AppName,
		Title:            hist.Title,
		Text:             hist.Text,
		SnoozeEndTime:    endTime,
		CreatedAt:        e.nowMs(),
		SourceType:       hist.SourceType,
		ShortcutID:       hist.ShortcutID,
		GroupKey:         hist.GroupKey,
		ContentType:      hist.ContentType,
		ContentIntentRef: hist.ContentIntentRef,
		Messages:         hist.Messages,
	}

	replacedID, err := e.store.CreateActive(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("re-snoozing thread %s: %w", hist.ThreadID, err)
	}

	var sideErrs []error
	if replacedID != "" {
		if err := e.sched.Cancel(replacedID); err != nil {
			sideErrs = append(sideErrs, fmt.Errorf("cancelling replaced wake-up %s: %w", replacedID, err))
		}
	}
	if err := e.sched.Schedule(rec.ID, endTime); err != nil {
		sideErrs = append(sideErrs, fmt.Errorf("scheduling wake-up %s: %w", rec.ID, err))
	}

	e.log.Info("thread re-snoozed", "thread", hist.ThreadID, "record", rec.ID, "from", historyID)
	return rec, errors.Join(sideErrs...)
}

// Extend moves an active snooze's end time and reschedules its wake-up.
func (e *Engine) Extend(ctx context.Context, recordID string, endTime int64) error {
	rec, err := e.store.GetByID(ctx, recordID)
	if err != nil {
		return fmt.Errorf("extending record %s: %w", recordID, err)
	}

	defer e.lockThread(rec.ThreadID)()

	if err := e.store.UpdateEndTime(ctx, recordID, endTime); err != nil {
		return fmt.Errorf("extending record %s: %w", recordID, err)
	}
	if err := e.sched.Schedule(recordID, endTime); err != nil {
		return fmt.Errorf("rescheduling wake-up %s: %w", recordID, err)
	}
	return nil
}

// CaptureShared snoozes content the user shared into the system. URL
// shares key on the link itself so re-sharing the same page merges;
// everything else gets a one-off thread.
func (e *Engine) CaptureShared(ctx context.Context, sc model.SharedContentEvent, endTime int64) (*model.SnoozeRecord, error) {
	threadID := sc.URI
	if sc.Type != model.SharedTypeURL || threadID == "" {
		threadID = "share:" + uuid.New().String()
	}

	title := sc.Subject
	if title == "" {
		title = sc.Text
	}
	if title == "" {
		title = sc.URI
	}

	rec := &model.SnoozeRecord{
		ThreadID:      threadID,
		PackageName:   sc.SourcePackage,
		AppName:       e.resolve(sc.SourcePackage),
		Title:         title,
		Text:          sc.Text,
		SnoozeEndTime: endTime,
		CreatedAt:     e.nowMs(),
		SourceType:    model.SourceShare,
		ContentType:   sharedContentType(sc.Type),
	}

	defer e.lockThread(threadID)()

	replacedID, err := e.store.CreateActive(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("capturing shared content: %w", err)
	}

	var sideErrs []error
	if replacedID != "" {
		if err := e.sched.Cancel(replacedID); err != nil {
			sideErrs = append(sideErrs, fmt.Errorf("cancelling replaced wake-up %s: %w", replacedID, err))
		}
	}
	if err := e.sched.Schedule(rec.ID, endTime); err != nil {
		sideErrs = append(sideErrs, fmt.Errorf("scheduling wake-up %s: %w", rec.ID, err))
	}
	return rec, errors.Join(sideErrs...)
}

func sharedContentType(t model.SharedType) model.ContentType {
	switch t {
	case model.SharedTypeURL:
		return model.ContentTypeURL
	case model.SharedTypePlainText:
		return model.ContentTypePlainText
	case model.SharedTypeImage:
		return model.ContentTypeImage
	default:
		return model.ContentTypeUnknown
	}
}
