package engine

import (
	"context"
	"fmt"

	"github.com/quietdesk/snoozed/internal/model"
	"github.com/quietdesk/snoozed/internal/thread"
)

// The ignored-scope cache is refreshed from the store on start and
// updated optimistically on writes. A stale cache lets at most one event
// slip through unfiltered before the next refresh; it never corrupts
// persisted state.

// RefreshIgnored reloads the ignored-scope cache from the store.
func (e *Engine) RefreshIgnored(ctx context.Context) error {
	ignored, err := e.store.ListIgnored(ctx)
	if err != nil {
		return fmt.Errorf("refreshing ignored cache: %w", err)
	}

	fresh := make(map[string]struct{}, len(ignored))
	for _, ig := range ignored {
		fresh[ig.ThreadID] = struct{}{}
	}

	e.igMu.Lock()
	e.ignored = fresh
	e.igMu.Unlock()
	return nil
}

func (e *Engine) isIgnored(ev model.RawEvent) bool {
	e.igMu.RLock()
	defer e.igMu.RUnlock()

	if _, ok := e.ignored[thread.IgnoreKey(ev)]; ok {
		return true
	}
	// Package-level entries use the bare package name as their scope key.
	_, ok := e.ignored[ev.PackageName]
	return ok
}

// Ignore suppresses ev's scope from tracking: the conversation itself for
// conversation events, the notification channel otherwise.
func (e *Engine) Ignore(ctx context.Context, ev model.RawEvent) error {
	key := thread.IgnoreKey(ev)
	title := ev.ConversationTitle
	if title == "" {
		title = ev.Title
	}

	err := e.store.IgnoreThread(ctx, model.IgnoredThread{
		ThreadID:       key,
		PackageName:    ev.PackageName,
		AppName:        e.resolve(ev.PackageName),
		DisplayTitle:   title,
		IgnoredAt:      e.nowMs(),
		IsPackageLevel: key == ev.PackageName,
	})
	if err != nil {
		return err
	}

	e.igMu.Lock()
	e.ignored[key] = struct{}{}
	e.igMu.Unlock()
	return nil
}

// IgnorePackage suppresses everything from a package.
func (e *Engine) IgnorePackage(ctx context.Context, packageName string) error {
	err := e.store.IgnoreThread(ctx, model.IgnoredThread{
		ThreadID:       packageName,
		PackageName:    packageName,
		AppName:        e.resolve(packageName),
		IgnoredAt:      e.nowMs(),
		IsPackageLevel: true,
	})
	if err != nil {
		return err
	}

	e.igMu.Lock()
	e.ignored[packageName] = struct{}{}
	e.igMu.Unlock()
	return nil
}

// Unignore removes a suppression scope.
func (e *Engine) Unignore(ctx context.Context, threadID string) error {
	if err := e.store.UnignoreThread(ctx, threadID); err != nil {
		return err
	}

	e.igMu.Lock()
	delete(e.ignored, threadID)
	e.igMu.Unlock()
	return nil
}

// ListIgnored returns all suppression scopes, newest first.
func (e *Engine) ListIgnored(ctx context.Context) ([]model.IgnoredThread, error) {
	return e.store.ListIgnored(ctx)
}
