package claude_code

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/janekbaraniewski/tokenwatch/internal/parsers"
)

func assistantLine(id string, input, output, cacheRead, cacheWrite int, extra string) string {
	return fmt.Sprintf(`{"type":"assistant"%s,"timestamp":"2026-02-19T13:56:04Z","message":{"id":%q,"model":"claude-opus-4-6","usage":{"input_tokens":%d,"output_tokens":%d,"cache_read_input_tokens":%d,"cache_creation_input_tokens":%d}}}`,
		extra, id, input, output, cacheRead, cacheWrite)
}

func decodeAll(t *testing.T, lines ...string) []any {
	t.Helper()
	records, stats := parsers.DecodeLines(strings.NewReader(strings.Join(lines, "\n")))
	if stats.Err != nil {
		t.Fatalf("decode: %v", stats.Err)
	}
	return records
}

var modTime = time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)

func TestBuildSessionRows_DedupIdempotent(t *testing.T) {
	line := assistantLine("m1", 3, 9, 10, 20, "")
	once := BuildSessionRows("s1", modTime, decodeAll(t, line))
	many := BuildSessionRows("s1", modTime, decodeAll(t, line, line, line, line))

	if len(once) != 1 {
		t.Fatalf("got %d rows, want 1", len(once))
	}
	if !reflect.DeepEqual(once, many) {
		t.Errorf("repeated record changed result:\nonce=%+v\nmany=%+v", once, many)
	}
}

func TestBuildSessionRows_LastWriteWins(t *testing.T) {
	rows := BuildSessionRows("s1", modTime, decodeAll(t,
		assistantLine("m1", 3, 9, 0, 0, ""),
		assistantLine("m1", 3, 954, 0, 0, ""),
	))
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].OutputTokens != 954 {
		t.Errorf("OutputTokens = %d, want 954", rows[0].OutputTokens)
	}
}

func TestBuildSessionRows_ZeroCacheOmitted(t *testing.T) {
	rows := BuildSessionRows("s1", modTime, decodeAll(t, assistantLine("m1", 3, 9, 0, 0, "")))
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].CacheReadTokens != nil {
		t.Errorf("CacheReadTokens = %d, want absent", *rows[0].CacheReadTokens)
	}
	if rows[0].CacheWriteTokens != nil {
		t.Errorf("CacheWriteTokens = %d, want absent", *rows[0].CacheWriteTokens)
	}
}

func TestBuildSessionRows_ProjectPathFirstDisplayNameLast(t *testing.T) {
	rows := BuildSessionRows("s1", modTime, decodeAll(t,
		`{"type":"user","cwd":"","slug":null}`,
		assistantLine("m1", 3, 9, 0, 0, `,"cwd":"/a","slug":"first"`),
		assistantLine("m2", 3, 9, 0, 0, `,"cwd":"/b","slug":"second"`),
		`{"type":"user","slug":""}`,
	))
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	for _, row := range rows {
		if row.ProjectPath != "/a" {
			t.Errorf("ProjectPath = %q, want /a", row.ProjectPath)
		}
		if row.DisplayName != "second" {
			t.Errorf("DisplayName = %q, want second", row.DisplayName)
		}
	}
}

func TestBuildSessionRows_MetadataFromInvalidRecords(t *testing.T) {
	rows := BuildSessionRows("s1", modTime, decodeAll(t,
		`{"type":"user","cwd":"/from/user","slug":"user-slug"}`,
		assistantLine("m1", 3, 9, 0, 0, ""),
	))
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].ProjectPath != "/from/user" || rows[0].DisplayName != "user-slug" {
		t.Errorf("metadata = %q / %q", rows[0].ProjectPath, rows[0].DisplayName)
	}
}

func TestBuildSessionRows_NoMetadata(t *testing.T) {
	rows := BuildSessionRows("s1", modTime, decodeAll(t, assistantLine("m1", 3, 9, 0, 0, "")))
	if rows[0].ProjectPath != "" || rows[0].DisplayName != "" {
		t.Errorf("expected absent metadata, got %q / %q", rows[0].ProjectPath, rows[0].DisplayName)
	}
}

func TestBuildSessionRows_TimestampFallback(t *testing.T) {
	rows := BuildSessionRows("s1", modTime, decodeAll(t,
		`{"type":"assistant","message":{"id":"a","model":"opus","usage":{"input_tokens":1,"output_tokens":1,"cache_read_input_tokens":0,"cache_creation_input_tokens":0}}}`,
		`{"type":"assistant","timestamp":"garbage","message":{"id":"b","model":"opus","usage":{"input_tokens":1,"output_tokens":1,"cache_read_input_tokens":0,"cache_creation_input_tokens":0}}}`,
		assistantLine("c", 1, 1, 0, 0, ""),
	))
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if !rows[0].Timestamp.Equal(modTime) || !rows[1].Timestamp.Equal(modTime) {
		t.Errorf("fallback timestamps = %v, %v; want %v", rows[0].Timestamp, rows[1].Timestamp, modTime)
	}
	want := time.Date(2026, 2, 19, 13, 56, 4, 0, time.UTC)
	if !rows[2].Timestamp.Equal(want) {
		t.Errorf("parsed timestamp = %v, want %v", rows[2].Timestamp, want)
	}
	for _, row := range rows {
		if !row.SessionModifiedAt.Equal(modTime) {
			t.Errorf("SessionModifiedAt = %v, want %v", row.SessionModifiedAt, modTime)
		}
	}
}

func TestBuildSessionRows_StreamedSession(t *testing.T) {
	rows := BuildSessionRows("sess", modTime, decodeAll(t,
		`{"type":"user","message":{"role":"user","content":"hi"}}`,
		assistantLine("m1", 3, 9, 17890, 1297, ""),
		assistantLine("m1", 3, 9, 17890, 1297, ""),
		assistantLine("m1", 3, 954, 17890, 1297, ""),
		assistantLine("m2", 3, 11, 19464, 1124, ""),
		`{"type":"assistant","message":{"id":"partial"`,
		assistantLine("m2", 3, 500, 19464, 1124, ""),
	))
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	want := []struct {
		id                           string
		input, output, cRead, cWrite int64
	}{
		{"m1", 3, 954, 17890, 1297},
		{"m2", 3, 500, 19464, 1124},
	}
	var totalInput int64
	for i, w := range want {
		row := rows[i]
		totalInput += row.InputTokens
		if row.MessageID != w.id || row.InputTokens != w.input || row.OutputTokens != w.output {
			t.Errorf("row %d = %s in=%d out=%d, want %s in=%d out=%d", i, row.MessageID, row.InputTokens, row.OutputTokens, w.id, w.input, w.output)
		}
		if row.CacheReadTokens == nil || *row.CacheReadTokens != w.cRead {
			t.Errorf("row %d CacheReadTokens = %v, want %d", i, row.CacheReadTokens, w.cRead)
		}
		if row.CacheWriteTokens == nil || *row.CacheWriteTokens != w.cWrite {
			t.Errorf("row %d CacheWriteTokens = %v, want %d", i, row.CacheWriteTokens, w.cWrite)
		}
		if row.SessionID != "sess" || row.Provider != "claude_code" {
			t.Errorf("row %d session/provider = %q/%q", i, row.SessionID, row.Provider)
		}
	}
	if totalInput != 6 {
		t.Errorf("total input = %d, want 6", totalInput)
	}
}

func TestBuildActivityDelta(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	delta, ok := BuildActivityDelta("/root/proj/abc-123.jsonl", decode(t, assistantLine("m9", 4, 8, 0, 12, "")), now)
	if !ok {
		t.Fatal("expected delta")
	}
	if delta.SessionID != "abc-123" || delta.MessageID != "m9" {
		t.Errorf("delta ids = %q/%q", delta.SessionID, delta.MessageID)
	}
	if delta.CacheReadTokens != nil {
		t.Error("zero cache read should be omitted")
	}
	if delta.CacheWriteTokens == nil || *delta.CacheWriteTokens != 12 {
		t.Errorf("CacheWriteTokens = %v, want 12", delta.CacheWriteTokens)
	}

	noTS, ok := BuildActivityDelta("/p/x.jsonl", decode(t, `{"type":"assistant","message":{"id":"a","model":"opus","usage":{"input_tokens":1,"output_tokens":1,"cache_read_input_tokens":0,"cache_creation_input_tokens":0}}}`), now)
	if !ok || !noTS.Timestamp.Equal(now) {
		t.Errorf("fallback timestamp = %v, want %v", noTS.Timestamp, now)
	}
}

func TestBuildSessionRows_NonIntegralCountsRejected(t *testing.T) {
	usageLine := func(id, input string) string {
		return `{"type":"assistant","message":{"id":"` + id + `","model":"claude-opus-4-6","usage":{"input_tokens":` + input +
			`,"output_tokens":5,"cache_read_input_tokens":0,"cache_creation_input_tokens":0}}}`
	}
	records := decodeAll(t,
		usageLine("half", "0.5"),
		usageLine("huge", "1e19"),
		usageLine("ok", "2"),
	)

	rows := BuildSessionRows("s", modTime, records)
	if len(rows) != 1 || rows[0].MessageID != "ok" {
		t.Fatalf("rows = %+v, want only the integral record", rows)
	}
	for _, r := range rows {
		if r.InputTokens <= 0 {
			t.Errorf("row %s InputTokens = %d, want > 0", r.MessageID, r.InputTokens)
		}
	}
	for _, raw := range records[:2] {
		if _, ok := BuildActivityDelta("/p/s.jsonl", raw, modTime); ok {
			t.Errorf("delta accepted %v", raw)
		}
	}
}
