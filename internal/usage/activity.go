package usage

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/janekbaraniewski/tokenwatch/internal/core"
	"github.com/janekbaraniewski/tokenwatch/internal/parsers"
	"github.com/janekbaraniewski/tokenwatch/internal/providers/claude_code"
	"github.com/janekbaraniewski/tokenwatch/internal/providers/shared"
)

// activityEngine tails session files: it remembers how many bytes of each
// file have been consumed and, on append, decodes only the new range.
type activityEngine struct {
	svc *Service

	mu       sync.Mutex
	active   bool
	halted   atomic.Bool
	notifier Notifier
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	handlerMu sync.Mutex
	handler   core.ActivityHandler

	offsetMu sync.Mutex
	offsets  map[string]int64
}

type appendResult struct {
	Gone    bool
	Reset   bool
	Read    int64
	Emitted int
	Err     error
}

func (a *activityEngine) start(fn core.ActivityHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active {
		return
	}
	s := a.svc
	a.halted.Store(false)
	a.setHandler(fn)
	primed := a.prime()

	var events <-chan NotifyEvent
	notifier, err := s.newNotifier()
	if err != nil {
		s.warnf("activity_watch_unavailable", "error=%v", err)
	} else {
		s.watchTree(notifier)
		events = notifier.Events()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.notifier = notifier
	a.cancel = cancel
	a.active = true
	s.infof("activity_start", "root=%s primed=%d", s.root, primed)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				a.handle(notifier, ev)
			}
		}
	}()
}

func (a *activityEngine) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return
	}
	a.halted.Store(true)
	a.cancel()
	if a.notifier != nil {
		_ = a.notifier.Close()
	}
	a.wg.Wait()
	a.notifier = nil
	a.cancel = nil
	a.setHandler(nil)
	a.active = false

	a.offsetMu.Lock()
	a.offsets = map[string]int64{}
	a.offsetMu.Unlock()
	a.svc.infof("activity_stop", "")
}

// prime records the current size of every known session file so that only
// content appended after start is reported.
func (a *activityEngine) prime() int {
	s := a.svc
	dirs, err := shared.ListSubdirs(s.root)
	if err != nil {
		return 0
	}
	a.offsetMu.Lock()
	defer a.offsetMu.Unlock()
	primed := 0
	for _, dir := range dirs {
		files, err := shared.ListFilesByExt(dir, claude_code.SessionFileExt)
		if err != nil {
			continue
		}
		for _, path := range files {
			info, err := s.stat(path)
			if err != nil {
				continue
			}
			a.offsets[path] = info.Size()
			primed++
		}
	}
	return primed
}

func (a *activityEngine) handle(notifier Notifier, ev NotifyEvent) {
	s := a.svc
	path := filepath.Clean(ev.Path)
	if s.isUnitDir(path) {
		if ev.Has(OpCreate|OpRename) && isDir(path) {
			if err := notifier.Add(path); err != nil {
				s.warnf("activity_watch_add_error", "dir=%s error=%v", path, err)
			}
		}
		return
	}
	if !s.isSessionFile(path) || !s.isUnitDir(filepath.Dir(path)) {
		return
	}
	if ev.Has(OpCreate | OpWrite | OpRemove | OpRename) {
		if res := a.handleAppend(path); res.Err != nil {
			s.warnf("activity_read_error", "path=%s error=%v", path, res.Err)
		}
	}
}

// handleAppend reads the bytes appended to path since the last call and emits
// one delta per token-bearing record in them.
func (a *activityEngine) handleAppend(path string) appendResult {
	s := a.svc
	var res appendResult

	info, err := s.stat(path)
	if err != nil {
		a.offsetMu.Lock()
		delete(a.offsets, path)
		a.offsetMu.Unlock()
		res.Gone = true
		return res
	}
	size := info.Size()

	a.offsetMu.Lock()
	from := a.offsets[path]
	if size < from {
		from = 0
		res.Reset = true
	}
	if size == from {
		a.offsets[path] = size
		a.offsetMu.Unlock()
		return res
	}
	a.offsetMu.Unlock()

	chunk, err := s.readRange(path, from, size)
	if err != nil {
		res.Err = err
		return res
	}

	a.offsetMu.Lock()
	a.offsets[path] = size
	a.offsetMu.Unlock()
	res.Read = int64(len(chunk))

	a.handlerMu.Lock()
	fn := a.handler
	a.handlerMu.Unlock()

	records, _ := parsers.DecodeLines(bytes.NewReader(chunk))
	now := s.now()
	for _, raw := range records {
		if a.halted.Load() {
			break
		}
		delta, ok := claude_code.BuildActivityDelta(path, raw, now)
		if !ok {
			continue
		}
		res.Emitted++
		if fn != nil {
			fn(delta)
		}
	}
	return res
}

func (a *activityEngine) setHandler(fn core.ActivityHandler) {
	a.handlerMu.Lock()
	a.handler = fn
	a.handlerMu.Unlock()
}

func (a *activityEngine) offset(path string) (int64, bool) {
	a.offsetMu.Lock()
	defer a.offsetMu.Unlock()
	off, ok := a.offsets[path]
	return off, ok
}
