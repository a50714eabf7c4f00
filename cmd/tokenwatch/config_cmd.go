package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/janekbaraniewski/tokenwatch/internal/config"
	"github.com/janekbaraniewski/tokenwatch/internal/providers/shared"
	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change tokenwatch settings",
	}
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetProjectsDirCommand())
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", config.ConfigPath())
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
}

func newConfigSetProjectsDirCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-projects-dir <dir>",
		Short: "Persist the Claude Code projects directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := filepath.Clean(shared.ExpandHome(args[0]))
			if info, err := os.Stat(dir); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			} else if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			if err := config.SaveProjectsDir(dir); err != nil {
				return fmt.Errorf("save projects dir: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "projects_dir = %s\n", dir)
			return nil
		},
	}
}
