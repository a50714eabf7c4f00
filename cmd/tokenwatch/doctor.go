package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/janekbaraniewski/tokenwatch/internal/detect"
	"github.com/spf13/cobra"
)

func newDoctorCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Show where Claude Code session logs are looked for",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result := detect.ClaudeCode(root.projectsDir)
			svc := root.newService()
			defer svc.Close()
			writeDoctor(cmd.OutOrStdout(), result, svc.Root())
			return nil
		},
	}
}

func writeDoctor(w io.Writer, result detect.Result, scanRoot string) {
	binary := result.BinaryPath
	if binary == "" {
		binary = "not found on PATH"
	}
	fmt.Fprintf(w, "claude binary: %s\n", binary)
	fmt.Fprintf(w, "scan root:     %s\n\n", scanRoot)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROOT\tEXISTS\tPROJECTS\tSESSIONS")
	for _, r := range result.Roots {
		fmt.Fprintf(tw, "%s\t%t\t%d\t%d\n", r.Path, r.Exists, r.Projects, r.SessionFiles)
	}
	tw.Flush()

	if !result.Found() {
		fmt.Fprintln(w, "\nNo Claude Code install or session logs found.")
	}
}
