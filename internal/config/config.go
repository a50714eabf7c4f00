package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/janekbaraniewski/tokenwatch/internal/providers/shared"
)

type UIConfig struct {
	RefreshIntervalSeconds int `json:"refresh_interval_seconds"`
	MaxActivityRows        int `json:"max_activity_rows"`
}

type Config struct {
	ProjectsDir string   `json:"projects_dir"`
	Verbose     bool     `json:"verbose"`
	UI          UIConfig `json:"ui"`
}

func DefaultConfig() Config {
	return Config{
		UI: UIConfig{
			RefreshIntervalSeconds: 10,
			MaxActivityRows:        20,
		},
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "tokenwatch")
	}
	if base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); base != "" {
		return filepath.Join(base, "tokenwatch")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tokenwatch")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.UI.RefreshIntervalSeconds <= 0 {
		cfg.UI.RefreshIntervalSeconds = DefaultConfig().UI.RefreshIntervalSeconds
	}
	if cfg.UI.MaxActivityRows <= 0 {
		cfg.UI.MaxActivityRows = DefaultConfig().UI.MaxActivityRows
	}
	cfg.ProjectsDir = shared.ExpandHome(cfg.ProjectsDir)

	return cfg, nil
}

// saveMu guards read-modify-write cycles on the config file.
var saveMu sync.Mutex

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SaveProjectsDir persists the projects root into the config file (read-modify-write).
func SaveProjectsDir(dir string) error {
	return SaveProjectsDirTo(ConfigPath(), dir)
}

func SaveProjectsDirTo(path string, dir string) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	cfg, err := LoadFrom(path)
	if err != nil {
		cfg = DefaultConfig()
	}
	cfg.ProjectsDir = dir
	return SaveTo(path, cfg)
}
