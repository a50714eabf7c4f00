package usage

import (
	"errors"
	"io/fs"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/tokenwatch/internal/core"
	"github.com/janekbaraniewski/tokenwatch/internal/providers/claude_code"
	"github.com/janekbaraniewski/tokenwatch/internal/providers/shared"
)

type SkipReason string

const (
	SkipVanished    SkipReason = "vanished"
	SkipListFailed  SkipReason = "list_failed"
	SkipReadFailed  SkipReason = "read_failed"
	SkipPartialRead SkipReason = "partial_read"
)

// Skip records a path the scan could not fully use. SkipPartialRead paths
// still contribute the rows decoded before the failure.
type Skip struct {
	Path   string
	Reason SkipReason
	Err    error
}

type ScanReport struct {
	ResultCacheHit bool
	RootMissing    bool
	Reconciled     bool
	DirtyPaths     int
	Candidates     int
	Trusted        int
	Stated         int
	Changed        int
	Included       int
	AggregateHits  int
	Parsed         int
	Evicted        []string
	Skips          []Skip
}

type ScanResult struct {
	Rows   []core.UsageRow
	Report ScanReport
}

type scanUnit struct {
	path      string
	sessionID string
	modTime   time.Time
}

// Scan returns the current usage rows, newest sessions first. A global scan
// (no SessionID) may be answered from the whole-result cache without touching
// the filesystem. Failures never abort the scan; they are reported as Skips.
func (s *Service) Scan(q core.ScanQuery) ScanResult {
	q = q.Normalized()

	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	now := s.now()
	global := q.SessionID == ""
	if global {
		if rows, ok := s.results.get(q, now, ResultCacheTTL); ok {
			return ScanResult{Rows: rows, Report: ScanReport{ResultCacheHit: true}}
		}
	}

	var report ScanReport
	dirty := s.tracking.drain()
	report.DirtyPaths = len(dirty)
	report.Reconciled = s.tracking.consumeReconcile()
	// Without live dirty tracking a cached mtime can never be trusted.
	trustIndex := !report.Reconciled && s.watcher.running()

	dirs, err := shared.ListSubdirs(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			report.RootMissing = true
		} else {
			report.Skips = append(report.Skips, Skip{Path: s.root, Reason: SkipListFailed, Err: err})
			s.warnf("scan_root_error", "root=%s error=%v", s.root, err)
		}
		return ScanResult{Report: report}
	}

	seen := map[string]struct{}{}
	applied := map[string]struct{}{}
	var units []scanUnit
	for _, dir := range dirs {
		files, err := shared.ListFilesByExt(dir, claude_code.SessionFileExt)
		if err != nil {
			report.Skips = append(report.Skips, Skip{Path: dir, Reason: SkipListFailed, Err: err})
			continue
		}
		for _, path := range files {
			seen[path] = struct{}{}
			sessionID := claude_code.SessionIDFromPath(path)
			if !global && sessionID != q.SessionID {
				continue
			}
			report.Candidates++
			applied[path] = struct{}{}

			entry, indexed := s.index[path]
			_, isDirty := dirty[path]
			if trustIndex && indexed && !isDirty {
				report.Trusted++
				if inSince(entry.modTime, q.Since) {
					units = append(units, scanUnit{path: path, sessionID: entry.sessionID, modTime: entry.modTime})
				}
				continue
			}

			report.Stated++
			info, err := s.stat(path)
			if err != nil {
				delete(s.index, path)
				report.Skips = append(report.Skips, Skip{Path: path, Reason: SkipVanished, Err: err})
				continue
			}
			modTime := info.ModTime()
			if !indexed || !entry.modTime.Equal(modTime) {
				s.index[path] = indexEntry{sessionID: sessionID, modTime: modTime}
				report.Changed++
			}
			if inSince(modTime, q.Since) {
				units = append(units, scanUnit{path: path, sessionID: sessionID, modTime: modTime})
			}
		}
	}

	if !global {
		s.requeue(dirty, applied, report.Reconciled)
	}

	for _, path := range lo.Keys(s.index) {
		if _, ok := seen[path]; !ok {
			delete(s.index, path)
		}
	}

	sort.SliceStable(units, func(i, j int) bool {
		if !units[i].modTime.Equal(units[j].modTime) {
			return units[i].modTime.After(units[j].modTime)
		}
		return units[i].path < units[j].path
	})
	report.Included = len(units)

	var (
		rows     []core.UsageRow
		inserted bool
	)
	for _, unit := range units {
		if cached, ok := s.aggregates.get(unit.sessionID, unit.modTime, now); ok {
			report.AggregateHits++
			rows = append(rows, cached...)
			continue
		}
		records, stats, err := s.readFile(unit.path)
		if err != nil {
			report.Skips = append(report.Skips, Skip{Path: unit.path, Reason: SkipReadFailed, Err: err})
			continue
		}
		if stats.Err != nil {
			report.Skips = append(report.Skips, Skip{Path: unit.path, Reason: SkipPartialRead, Err: stats.Err})
		}
		report.Parsed++
		unitRows := claude_code.BuildSessionRows(unit.sessionID, unit.modTime, records)
		s.aggregates.put(unit.sessionID, unit.modTime, unitRows, now)
		inserted = true
		rows = append(rows, unitRows...)
	}
	if inserted {
		report.Evicted = s.aggregates.evict()
	}

	if len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	if global {
		s.results.set(q, now, rows)
	}

	if len(report.Skips) > 0 || report.Reconciled {
		s.infof("scan",
			"candidates=%d stated=%d changed=%d parsed=%d aggregate_hits=%d evicted=%d skips=%d reconciled=%t",
			report.Candidates, report.Stated, report.Changed, report.Parsed,
			report.AggregateHits, len(report.Evicted), len(report.Skips), report.Reconciled)
	}
	return ScanResult{Rows: rows, Report: report}
}

// requeue hands back the drained state a session-scoped scan did not apply, so
// the next global scan still restats those paths.
func (s *Service) requeue(dirty, applied map[string]struct{}, reconciled bool) {
	for path := range dirty {
		if _, ok := applied[path]; !ok {
			s.tracking.markDirty(path)
		}
	}
	if reconciled {
		s.tracking.requestReconcile()
	}
}

func inSince(modTime, since time.Time) bool {
	return since.IsZero() || !modTime.Before(since)
}
