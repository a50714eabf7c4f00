package usage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeNotifier struct {
	mu      sync.Mutex
	added   []string
	failAdd map[string]bool
	events  chan NotifyEvent
	closed  bool
	once    sync.Once
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{events: make(chan NotifyEvent, 16), failAdd: map[string]bool{}}
}

func (f *fakeNotifier) Add(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd[filepath.Clean(path)] {
		return errors.New("permission denied")
	}
	f.added = append(f.added, filepath.Clean(path))
	return nil
}

func (f *fakeNotifier) Events() <-chan NotifyEvent { return f.events }

func (f *fakeNotifier) Close() error {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.events)
	})
	return nil
}

func (f *fakeNotifier) watched(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.added {
		if p == filepath.Clean(path) {
			return true
		}
	}
	return false
}

func (f *fakeNotifier) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	t         *testing.T
	svc       *Service
	root      string
	clock     *fakeClock
	ticks     chan time.Time
	notifyMu  sync.Mutex
	notifiers []*fakeNotifier
	failAdd   map[string]bool
	statMu    sync.Mutex
	stats     map[string]int
	statErr   map[string]error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := filepath.Join(t.TempDir(), "projects")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	env := &testEnv{
		t:       t,
		root:    root,
		clock:   &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		ticks:   make(chan time.Time),
		failAdd: map[string]bool{},
		stats:   map[string]int{},
		statErr: map[string]error{},
	}
	svc := NewService(Config{ProjectsDir: root})
	svc.now = env.clock.Now
	svc.newTicker = func(time.Duration) (<-chan time.Time, func()) { return env.ticks, func() {} }
	svc.newNotifier = func() (Notifier, error) {
		n := newFakeNotifier()
		for p := range env.failAdd {
			n.failAdd[p] = true
		}
		env.notifyMu.Lock()
		env.notifiers = append(env.notifiers, n)
		env.notifyMu.Unlock()
		return n, nil
	}
	svc.stat = func(path string) (os.FileInfo, error) {
		env.statMu.Lock()
		env.stats[path]++
		err := env.statErr[path]
		env.statMu.Unlock()
		if err != nil {
			return nil, err
		}
		return os.Stat(path)
	}
	env.svc = svc
	t.Cleanup(svc.Close)
	return env
}

func (e *testEnv) notifier(i int) *fakeNotifier {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	if i >= len(e.notifiers) {
		e.t.Fatalf("notifier %d not created (have %d)", i, len(e.notifiers))
	}
	return e.notifiers[i]
}

func (e *testEnv) notifierCount() int {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	return len(e.notifiers)
}

func (e *testEnv) statCount(path string) int {
	e.statMu.Lock()
	defer e.statMu.Unlock()
	return e.stats[path]
}

func (e *testEnv) resetStats() {
	e.statMu.Lock()
	e.stats = map[string]int{}
	e.statMu.Unlock()
}

func (e *testEnv) setStatErr(path string, err error) {
	e.statMu.Lock()
	e.statErr[path] = err
	e.statMu.Unlock()
}

// writeSession writes lines to <root>/<project>/<id>.jsonl and pins its mtime.
func (e *testEnv) writeSession(project, id string, modTime time.Time, lines ...string) string {
	e.t.Helper()
	dir := filepath.Join(e.root, project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		e.t.Fatal(err)
	}
	path := filepath.Join(dir, id+".jsonl")
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		e.t.Fatal(err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		e.t.Fatal(err)
	}
	return path
}

func appendLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		t.Fatal(err)
	}
}

func assistant(id string, input, output int) string {
	return fmt.Sprintf(`{"type":"assistant","timestamp":"2026-03-01T10:00:00Z","message":{"id":%q,"model":"claude-sonnet-4-5","usage":{"input_tokens":%d,"output_tokens":%d,"cache_read_input_tokens":0,"cache_creation_input_tokens":0}}}`, id, input, output)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
