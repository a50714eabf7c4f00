package usage

import (
	"sync"
	"sync/atomic"
)

// dirtyTracker holds the paths changed since the last scan and the one-shot
// reconcile flag. Both are drained atomically by Scan so that events arriving
// mid-scan land in the next scan.
type dirtyTracker struct {
	mu        sync.Mutex
	dirty     map[string]struct{}
	reconcile atomic.Bool
}

func newDirtyTracker() *dirtyTracker {
	return &dirtyTracker{dirty: map[string]struct{}{}}
}

func (t *dirtyTracker) markDirty(path string) {
	t.mu.Lock()
	t.dirty[path] = struct{}{}
	t.mu.Unlock()
}

func (t *dirtyTracker) drain() map[string]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.dirty
	t.dirty = map[string]struct{}{}
	return out
}

func (t *dirtyTracker) clear() {
	t.mu.Lock()
	t.dirty = map[string]struct{}{}
	t.mu.Unlock()
}

func (t *dirtyTracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.dirty)
}

func (t *dirtyTracker) requestReconcile() { t.reconcile.Store(true) }

func (t *dirtyTracker) consumeReconcile() bool { return t.reconcile.Swap(false) }
