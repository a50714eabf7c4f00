// Package detect locates the Claude Code CLI and its session log roots on the
// workstation.
package detect

import (
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/janekbaraniewski/tokenwatch/internal/providers/claude_code"
	"github.com/janekbaraniewski/tokenwatch/internal/providers/shared"
)

// ProjectsRoot describes one candidate conversation root.
type ProjectsRoot struct {
	Path         string
	Exists       bool
	Projects     int // unit directories directly under Path
	SessionFiles int
}

// Result holds what was found about the local Claude Code install.
type Result struct {
	BinaryPath string
	ConfigDir  string
	Roots      []ProjectsRoot
}

// Found reports whether any trace of Claude Code exists on this machine.
func (r Result) Found() bool {
	if r.BinaryPath != "" {
		return true
	}
	for _, root := range r.Roots {
		if root.Exists {
			return true
		}
	}
	return false
}

// ActiveRoot returns the first existing root, or "" when none exists.
func (r Result) ActiveRoot() string {
	for _, root := range r.Roots {
		if root.Exists {
			return root.Path
		}
	}
	return ""
}

var lookPath = exec.LookPath

// ClaudeCode inspects the default roots plus any extra roots given (for
// example a configured projects_dir). Duplicate and empty roots are ignored.
func ClaudeCode(extraRoots ...string) Result {
	var result Result
	result.BinaryPath = findBinary("claude")
	if result.BinaryPath != "" {
		log.Printf("[detect] Found Claude Code CLI at %s", result.BinaryPath)
	}
	if home := homeDir(); home != "" {
		result.ConfigDir = filepath.Join(home, ".claude")
	}

	primary, alt := claude_code.DefaultProjectsDirs()
	seen := make(map[string]bool)
	candidates := append(append([]string{}, extraRoots...), primary, alt)
	for _, dir := range candidates {
		dir = strings.TrimSpace(shared.ExpandHome(dir))
		if dir == "" {
			continue
		}
		dir = filepath.Clean(dir)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		result.Roots = append(result.Roots, inspectRoot(dir))
	}
	return result
}

func inspectRoot(dir string) ProjectsRoot {
	root := ProjectsRoot{Path: dir}
	if !dirExists(dir) {
		return root
	}
	root.Exists = true
	projects, err := shared.ListSubdirs(dir)
	if err != nil {
		log.Printf("[detect] list %s: %v", dir, err)
		return root
	}
	root.Projects = len(projects)
	for _, project := range projects {
		files, err := shared.ListFilesByExt(project, claude_code.SessionFileExt)
		if err != nil {
			continue
		}
		root.SessionFiles += len(files)
	}
	return root
}

func homeDir() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return h
}

// findBinary checks if a binary exists on PATH and returns its full path.
func findBinary(name string) string {
	path, err := lookPath(name)
	if err != nil {
		return ""
	}
	return path
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
