package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/janekbaraniewski/tokenwatch/internal/config"
	"github.com/janekbaraniewski/tokenwatch/internal/core"
	"github.com/janekbaraniewski/tokenwatch/internal/tui"
	"github.com/spf13/cobra"
)

func newWatchCommand(root *rootOptions, ui config.UIConfig) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard of session totals and new assistant turns",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runWatch(root, ui, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5000, "maximum number of rows per refresh; totals cover at most this many rows")
	return cmd
}

func runWatch(root *rootOptions, ui config.UIConfig, limit int) error {
	svc := root.newService()
	defer svc.Close()

	model := tui.NewModel(tui.Options{
		Root: svc.Root(),
		Scan: func() []core.UsageRow {
			return svc.Scan(core.ScanQuery{Limit: limit}).Rows
		},
		RowLimit:        limit,
		RefreshInterval: time.Duration(ui.RefreshIntervalSeconds) * time.Second,
		MaxActivityRows: ui.MaxActivityRows,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())

	svc.StartActivity(func(d core.ActivityDelta) {
		program.Send(tui.DeltaMsg(d))
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		if _, ok := <-sigCh; ok {
			program.Quit()
		}
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
