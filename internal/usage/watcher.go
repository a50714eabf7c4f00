package usage

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/janekbaraniewski/tokenwatch/internal/providers/shared"
)

// dirtyWatcher feeds the dirty tracker from filesystem events and arms the
// reconcile flag every ReconcileInterval regardless of activity.
type dirtyWatcher struct {
	svc *Service

	mu       sync.Mutex
	active   bool
	notifier Notifier
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func (w *dirtyWatcher) running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *dirtyWatcher) start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active {
		return
	}
	s := w.svc

	var events <-chan NotifyEvent
	notifier, err := s.newNotifier()
	if err != nil {
		s.warnf("dirty_watch_unavailable", "error=%v", err)
	} else {
		watched := s.watchTree(notifier)
		events = notifier.Events()
		s.infof("dirty_watch_start", "root=%s dirs=%d reconcile_interval=%s", s.root, watched, ReconcileInterval)
	}

	ticks, stopTicker := s.newTicker(ReconcileInterval)
	ctx, cancel := context.WithCancel(context.Background())
	w.notifier = notifier
	w.cancel = cancel
	w.active = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer stopTicker()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
				s.tracking.requestReconcile()
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				w.handle(notifier, ev)
			}
		}
	}()
}

func (w *dirtyWatcher) handle(notifier Notifier, ev NotifyEvent) {
	s := w.svc
	path := filepath.Clean(ev.Path)
	if s.isUnitDir(path) {
		if ev.Has(OpCreate|OpRename) && isDir(path) {
			if err := notifier.Add(path); err != nil {
				s.warnf("dirty_watch_add_error", "dir=%s error=%v", path, err)
			}
		}
		return
	}
	if !s.isSessionFile(path) || !s.isUnitDir(filepath.Dir(path)) {
		return
	}
	s.tracking.markDirty(path)
}

func (w *dirtyWatcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return
	}
	w.cancel()
	if w.notifier != nil {
		_ = w.notifier.Close()
	}
	w.wg.Wait()
	w.notifier = nil
	w.cancel = nil
	w.active = false
	w.svc.tracking.clear()
	w.svc.infof("dirty_watch_stop", "")
}

// watchTree adds the root and every unit directory to notifier. Directories
// that cannot be watched are skipped; it returns how many were added.
func (s *Service) watchTree(notifier Notifier) int {
	watched := 0
	if err := notifier.Add(s.root); err != nil {
		s.warnf("watch_add_error", "dir=%s error=%v", s.root, err)
	} else {
		watched++
	}
	dirs, err := shared.ListSubdirs(s.root)
	if err != nil {
		return watched
	}
	for _, dir := range dirs {
		if err := notifier.Add(dir); err != nil {
			s.warnf("watch_add_error", "dir=%s error=%v", dir, err)
			continue
		}
		watched++
	}
	return watched
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
