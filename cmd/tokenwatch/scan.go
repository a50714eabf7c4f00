package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/janekbaraniewski/tokenwatch/internal/core"
	"github.com/janekbaraniewski/tokenwatch/internal/providers/shared"
	"github.com/janekbaraniewski/tokenwatch/internal/tui"
	"github.com/janekbaraniewski/tokenwatch/internal/usage"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	totalsStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#B4BEFE"))
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
)

type scanOptions struct {
	session string
	limit   int
	since   string
	json    bool
	report  bool
}

func newScanCommand(root *rootOptions) *cobra.Command {
	var opts scanOptions
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Print per-message token usage, newest sessions first",
		Example: strings.Join([]string{
			"  tokenwatch scan --since 24h",
			"  tokenwatch scan --session 4f1c2a9e-... --json",
		}, "\n"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			since, err := parseSince(opts.since, time.Now())
			if err != nil {
				return err
			}
			svc := root.newService()
			defer svc.Close()

			res := svc.Scan(core.ScanQuery{
				SessionID: strings.TrimSpace(opts.session),
				Limit:     opts.limit,
				Since:     since,
			})
			if opts.report {
				writeReport(cmd.ErrOrStderr(), svc.Root(), res.Report)
			}
			if opts.json {
				return writeRowsJSON(cmd.OutOrStdout(), res.Rows)
			}
			writeRowsTable(cmd.OutOrStdout(), res.Rows, core.ScanQuery{Limit: opts.limit}.Normalized().Limit)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.session, "session", "", "only report this session id")
	cmd.Flags().IntVar(&opts.limit, "limit", core.DefaultScanLimit, "maximum number of rows")
	cmd.Flags().StringVar(&opts.since, "since", "", "only sessions modified since a duration ago (24h, 7d) or a timestamp")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print rows as JSON")
	cmd.Flags().BoolVar(&opts.report, "report", false, "print scan diagnostics to stderr")
	return cmd
}

// parseSince accepts a Go duration, a day count like "7d", an RFC3339
// timestamp or a plain date. Empty means no lower bound.
func parseSince(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n >= 0 {
			return now.AddDate(0, 0, -n), nil
		}
	}
	if d, err := time.ParseDuration(value); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("--since duration must not be negative: %s", value)
		}
		return now.Add(-d), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, time.Local); err == nil {
		return t, nil
	}
	if t, err := shared.ParseTimestampString(value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --since value %q: want a duration (24h, 7d), a date or an RFC3339 timestamp", value)
}

func writeRowsJSON(w io.Writer, rows []core.UsageRow) error {
	if rows == nil {
		rows = []core.UsageRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// writeRowsTable prints rows and their totals. limit is the row cap the scan
// applied; reaching it means the totals are partial.
func writeRowsTable(w io.Writer, rows []core.UsageRow, limit int) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No token usage found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tMODEL\tMESSAGE\tINPUT\tOUTPUT\tCACHE R\tCACHE W\tTIME")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			lo.Ternary(r.DisplayName != "", r.DisplayName, shortSession(r.SessionID)),
			r.Model,
			r.MessageID,
			r.InputTokens,
			r.OutputTokens,
			optionalCount(r.CacheReadTokens),
			optionalCount(r.CacheWriteTokens),
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
		)
	}
	tw.Flush()

	input := lo.SumBy(rows, func(r core.UsageRow) int64 { return r.InputTokens })
	output := lo.SumBy(rows, func(r core.UsageRow) int64 { return r.OutputTokens })
	total := lo.SumBy(rows, core.UsageRow.TotalTokens)
	sessions := lo.Uniq(lo.Map(rows, func(r core.UsageRow, _ int) string { return r.SessionID }))
	fmt.Fprintln(w)
	fmt.Fprintln(w, totalsStyle.Render(fmt.Sprintf("%d rows across %d sessions: %s input, %s output, %s total incl. cache",
		len(rows), len(sessions), tui.FormatTokens(input), tui.FormatTokens(output), tui.FormatTokens(total))))
	if limit > 0 && len(rows) >= limit {
		fmt.Fprintln(w, skipStyle.Render(fmt.Sprintf("row limit %d reached; raise --limit for complete totals", limit)))
	}
}

func writeReport(w io.Writer, root string, rep usage.ScanReport) {
	fmt.Fprintf(w, "root=%s cache_hit=%t root_missing=%t reconciled=%t dirty=%d candidates=%d trusted=%d stated=%d changed=%d included=%d aggregate_hits=%d parsed=%d evicted=%d\n",
		root, rep.ResultCacheHit, rep.RootMissing, rep.Reconciled, rep.DirtyPaths,
		rep.Candidates, rep.Trusted, rep.Stated, rep.Changed, rep.Included,
		rep.AggregateHits, rep.Parsed, len(rep.Evicted))
	for _, s := range rep.Skips {
		line := fmt.Sprintf("skip %s %s", s.Reason, s.Path)
		if s.Err != nil {
			line += ": " + s.Err.Error()
		}
		fmt.Fprintln(w, skipStyle.Render(line))
	}
}

func shortSession(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func optionalCount(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}
