package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/janekbaraniewski/tokenwatch/internal/config"
	"github.com/janekbaraniewski/tokenwatch/internal/usage"
	"github.com/janekbaraniewski/tokenwatch/internal/version"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	projectsDir string
	verbose     bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Config path: %s\n", config.ConfigPath())
		os.Exit(1)
	}

	if err := newRootCommand(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(cfg config.Config) *cobra.Command {
	opts := &rootOptions{
		projectsDir: cfg.ProjectsDir,
		verbose:     cfg.Verbose,
	}

	root := &cobra.Command{
		Use:          "tokenwatch",
		Short:        "tokenwatch reports token usage from Claude Code session logs.",
		Version:      version.String(),
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogging(opts.verbose)
		},
	}
	root.PersistentFlags().StringVar(&opts.projectsDir, "projects-dir", opts.projectsDir, "Claude Code projects directory (default ~/.claude/projects)")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", opts.verbose, "log scan and watcher events to stderr")

	root.AddCommand(newScanCommand(opts))
	root.AddCommand(newWatchCommand(opts, cfg.UI))
	root.AddCommand(newDoctorCommand(opts))
	root.AddCommand(newConfigCommand())
	return root
}

func configureLogging(verbose bool) {
	if verbose || os.Getenv("TOKENWATCH_DEBUG") != "" {
		log.SetOutput(os.Stderr)
		return
	}
	log.SetOutput(io.Discard)
}

func (o *rootOptions) newService() *usage.Service {
	return usage.NewService(usage.Config{
		ProjectsDir: strings.TrimSpace(o.projectsDir),
		Verbose:     o.verbose || os.Getenv("TOKENWATCH_DEBUG") != "",
	})
}
