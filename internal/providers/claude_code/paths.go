package claude_code

import (
	"os"
	"path/filepath"
	"strings"
)

const SessionFileExt = ".jsonl"

// DefaultProjectsDirs returns the default Claude Code conversation roots.
func DefaultProjectsDirs() (string, string) {
	home, _ := os.UserHomeDir()
	if strings.TrimSpace(home) == "" {
		return "", ""
	}
	return filepath.Join(home, ".claude", "projects"), filepath.Join(home, ".config", "claude", "projects")
}

// DefaultProjectsDir picks the first default root that exists, falling back to
// ~/.claude/projects.
func DefaultProjectsDir() string {
	primary, alt := DefaultProjectsDirs()
	for _, dir := range []string{primary, alt} {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return primary
}
