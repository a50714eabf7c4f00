package usage

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/janekbaraniewski/tokenwatch/internal/core"
	"github.com/janekbaraniewski/tokenwatch/internal/parsers"
	"github.com/janekbaraniewski/tokenwatch/internal/providers/claude_code"
)

const (
	ResultCacheTTL         = 5 * time.Second
	AggregateCacheCapacity = 200
	ReconcileInterval      = 30 * time.Second
)

type Config struct {
	ProjectsDir string
	Verbose     bool
}

// Service owns the metadata index, both caches, the dirty tracker and the two
// watchers for one projects root. Create one per root and Close it on exit.
type Service struct {
	cfg  Config
	root string

	now         func() time.Time
	stat        func(string) (os.FileInfo, error)
	readFile    func(string) ([]any, parsers.LineStats, error)
	readRange   func(string, int64, int64) ([]byte, error)
	newNotifier NotifierFactory
	newTicker   tickerFactory

	tracking *dirtyTracker

	scanMu     sync.Mutex
	index      map[string]indexEntry
	aggregates *aggregateCache
	results    resultCache

	watcher  *dirtyWatcher
	activity *activityEngine
}

type indexEntry struct {
	sessionID string
	modTime   time.Time
}

func NewService(cfg Config) *Service {
	root := strings.TrimSpace(cfg.ProjectsDir)
	if root == "" {
		root = claude_code.DefaultProjectsDir()
	}
	if root != "" {
		root = filepath.Clean(root)
	}
	cfg.ProjectsDir = root

	s := &Service{
		cfg:         cfg,
		root:        root,
		now:         time.Now,
		stat:        os.Stat,
		readFile:    parsers.ReadFile,
		readRange:   parsers.ReadRange,
		newNotifier: NewFSNotifier,
		newTicker:   newTimeTicker,
		tracking:    newDirtyTracker(),
		index:       map[string]indexEntry{},
		aggregates:  newAggregateCache(AggregateCacheCapacity),
	}
	s.watcher = &dirtyWatcher{svc: s}
	s.activity = &activityEngine{svc: s, offsets: map[string]int64{}}
	return s
}

func (s *Service) Root() string { return s.root }

// StartWatching begins dirty tracking and the periodic reconcile sweep.
// Calling it while already watching is a no-op.
func (s *Service) StartWatching() { s.watcher.start() }

// StopWatching stops dirty tracking and clears pending dirty paths.
func (s *Service) StopWatching() { s.watcher.stop() }

func (s *Service) Watching() bool { return s.watcher.running() }

// StartActivity starts the activity stream; fn is called once per new
// token-bearing record appended after this call. Dirty tracking is started
// too since both rely on directory-appearance detection.
//
// fn runs on the engine goroutine and StopActivity waits for that goroutine,
// so fn must not call StopActivity or Close directly; start a goroutine for
// that instead. Once a stop has begun no further deltas are delivered.
func (s *Service) StartActivity(fn core.ActivityHandler) {
	s.StartWatching()
	s.activity.start(fn)
}

// StopActivity detaches the callback, releases listeners and offsets, and
// stops dirty tracking.
func (s *Service) StopActivity() {
	s.activity.stop()
	s.StopWatching()
}

func (s *Service) Close() {
	s.StopActivity()
}

func (s *Service) isSessionFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), claude_code.SessionFileExt)
}

// isUnitDir reports whether dir is an immediate child of the root.
func (s *Service) isUnitDir(dir string) bool {
	return filepath.Dir(filepath.Clean(dir)) == s.root
}

// --- Logging ---

func (s *Service) infof(event, format string, args ...any) {
	if s == nil || !s.cfg.Verbose {
		return
	}
	if strings.TrimSpace(format) == "" {
		log.Printf("usage level=info event=%s", event)
		return
	}
	log.Printf("usage level=info event=%s "+format, append([]any{event}, args...)...)
}

func (s *Service) warnf(event, format string, args ...any) {
	if s == nil || !s.cfg.Verbose {
		return
	}
	if strings.TrimSpace(format) == "" {
		log.Printf("usage level=warn event=%s", event)
		return
	}
	log.Printf("usage level=warn event=%s "+format, append([]any{event}, args...)...)
}
