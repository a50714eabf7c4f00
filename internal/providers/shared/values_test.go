package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseTimestampString(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"2026-02-19T13:56:04.070Z", time.Date(2026, 2, 19, 13, 56, 4, 70_000_000, time.UTC), true},
		{"2026-02-19T13:56:04Z", time.Date(2026, 2, 19, 13, 56, 4, 0, time.UTC), true},
		{"1771509364", time.Unix(1771509364, 0).UTC(), true},
		{"1771509364000", time.UnixMilli(1771509364000).UTC(), true},
		{"", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}
	for _, tt := range tests {
		got, err := ParseTimestampString(tt.input)
		if (err == nil) != tt.ok {
			t.Errorf("ParseTimestampString(%q) err = %v, want ok=%v", tt.input, err, tt.ok)
			continue
		}
		if tt.ok && !got.Equal(tt.want) {
			t.Errorf("ParseTimestampString(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPositiveInt64Ptr(t *testing.T) {
	if PositiveInt64Ptr(0) != nil {
		t.Error("zero should be omitted")
	}
	if PositiveInt64Ptr(-3) != nil {
		t.Error("negative should be omitted")
	}
	if p := PositiveInt64Ptr(7); p == nil || *p != 7 {
		t.Errorf("PositiveInt64Ptr(7) = %v, want 7", p)
	}
}

func TestListFilesByExtAndSubdirs(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "-home-me-proj")
	if err := os.MkdirAll(filepath.Join(project, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b.jsonl", "a.JSONL", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(project, name), []byte("{}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "stray.jsonl"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	dirs, err := ListSubdirs(root)
	if err != nil {
		t.Fatalf("ListSubdirs: %v", err)
	}
	if len(dirs) != 1 || dirs[0] != project {
		t.Errorf("ListSubdirs = %v, want [%s]", dirs, project)
	}

	files, err := ListFilesByExt(project, ".jsonl")
	if err != nil {
		t.Fatalf("ListFilesByExt: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("ListFilesByExt = %v, want 2 files", files)
	}
	if FileStem(files[0]) != "a" || FileStem(files[1]) != "b" {
		t.Errorf("stems = %q, %q; want a, b", FileStem(files[0]), FileStem(files[1]))
	}

	if _, err := ListSubdirs(filepath.Join(root, "missing")); err == nil {
		t.Error("expected error for missing root")
	}
}
