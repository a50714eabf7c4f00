package claude_code

import (
	"path/filepath"
	"time"

	"github.com/janekbaraniewski/tokenwatch/internal/core"
	"github.com/janekbaraniewski/tokenwatch/internal/providers/shared"
)

// BuildSessionRows turns the decoded lines of one session file into usage
// rows. Records sharing a message id collapse to the last one seen; rows keep
// the position of the first occurrence of their id.
func BuildSessionRows(sessionID string, modTime time.Time, records []any) []core.UsageRow {
	byID := make(map[string]core.UsageRow)
	var order []string

	for _, raw := range records {
		rec, ok := ParseTokenRecord(raw)
		if !ok {
			continue
		}
		if _, seen := byID[rec.MessageID]; !seen {
			order = append(order, rec.MessageID)
		}
		byID[rec.MessageID] = core.UsageRow{
			SessionID:         sessionID,
			Provider:          core.ProviderClaudeCode,
			Model:             rec.Model,
			MessageID:         rec.MessageID,
			InputTokens:       rec.InputTokens,
			OutputTokens:      rec.OutputTokens,
			CacheReadTokens:   shared.PositiveInt64Ptr(rec.CacheReadTokens),
			CacheWriteTokens:  shared.PositiveInt64Ptr(rec.CacheCreationTokens),
			Timestamp:         recordTime(rec.Timestamp, modTime),
			SessionModifiedAt: modTime,
		}
	}
	if len(order) == 0 {
		return nil
	}

	projectPath := firstProjectPath(records)
	displayName := lastDisplayName(records)

	rows := make([]core.UsageRow, 0, len(order))
	for _, id := range order {
		row := byID[id]
		row.ProjectPath = projectPath
		row.DisplayName = displayName
		rows = append(rows, row)
	}
	return rows
}

// The project path is stable for a session, so the first cwd wins; the slug
// tracks the latest context, so the last one wins.
func firstProjectPath(records []any) string {
	for _, raw := range records {
		if cwd := topLevelString(raw, "cwd"); cwd != "" {
			return cwd
		}
	}
	return ""
}

func lastDisplayName(records []any) string {
	for i := len(records) - 1; i >= 0; i-- {
		if slug := topLevelString(records[i], "slug"); slug != "" {
			return slug
		}
	}
	return ""
}

// BuildActivityDelta converts one decoded line into an activity delta using
// the same validation as BuildSessionRows. now is the fallback timestamp.
func BuildActivityDelta(path string, raw any, now time.Time) (core.ActivityDelta, bool) {
	rec, ok := ParseTokenRecord(raw)
	if !ok {
		return core.ActivityDelta{}, false
	}
	return core.ActivityDelta{
		SessionID:        SessionIDFromPath(path),
		MessageID:        rec.MessageID,
		Model:            rec.Model,
		InputTokens:      rec.InputTokens,
		OutputTokens:     rec.OutputTokens,
		CacheReadTokens:  shared.PositiveInt64Ptr(rec.CacheReadTokens),
		CacheWriteTokens: shared.PositiveInt64Ptr(rec.CacheCreationTokens),
		Timestamp:        recordTime(rec.Timestamp, now),
	}, true
}

func recordTime(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	if ts, err := shared.ParseTimestampString(raw); err == nil {
		return ts
	}
	return fallback
}

// SessionIDFromPath derives the session id from a `<session-id>.jsonl` path.
func SessionIDFromPath(path string) string {
	return shared.FileStem(filepath.Clean(path))
}
