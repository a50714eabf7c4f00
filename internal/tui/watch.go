package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/janekbaraniewski/tokenwatch/internal/core"
	"github.com/samber/lo"
)

const (
	defaultRefreshInterval = 10 * time.Second
	defaultMaxActivityRows = 20
	maxSessionRows         = 10
)

// ScanFunc returns the current usage rows, newest session first.
type ScanFunc func() []core.UsageRow

// Options configures the live view. RowLimit is the row cap Scan applies;
// when a snapshot reaches it the totals only cover the newest RowLimit rows
// and are labelled as such.
type Options struct {
	Root            string
	Scan            ScanFunc
	RowLimit        int
	RefreshInterval time.Duration
	MaxActivityRows int
	Now             func() time.Time
}

// DeltaMsg carries one live activity delta into the program.
type DeltaMsg core.ActivityDelta

type snapshotMsg struct {
	rows []core.UsageRow
	at   time.Time
}

type tickMsg time.Time

type sessionSummary struct {
	id          string
	displayName string
	model       string
	turns       int
	input       int64
	output      int64
	total       int64
	modifiedAt  time.Time
}

type modelSummary struct {
	model  string
	turns  int
	input  int64
	output int64
}

// Model is the bubbletea model behind `tokenwatch watch`.
type Model struct {
	opts    Options
	keys    keyMap
	spinner spinner.Model

	width  int
	height int

	rows       []core.UsageRow
	scannedAt  time.Time
	scanning   bool
	hasData    bool
	activity   []core.ActivityDelta
	liveInput  int64
	liveOutput int64
}

func NewModel(opts Options) Model {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = defaultRefreshInterval
	}
	if opts.MaxActivityRows <= 0 {
		opts.MaxActivityRows = defaultMaxActivityRows
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = dimStyle
	return Model{opts: opts, keys: defaultKeyMap(), spinner: sp, scanning: true}
}

func (m Model) scanCmd() tea.Cmd {
	scan := m.opts.Scan
	now := m.opts.Now
	return func() tea.Msg {
		var rows []core.UsageRow
		if scan != nil {
			rows = scan()
		}
		return snapshotMsg{rows: rows, at: now()}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.scanCmd(), m.tickCmd(), m.spinner.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		if m.scanning {
			return m, m.tickCmd()
		}
		m.scanning = true
		return m, tea.Batch(m.scanCmd(), m.tickCmd(), m.spinner.Tick)

	case snapshotMsg:
		m.rows = msg.rows
		m.scannedAt = msg.at
		m.scanning = false
		m.hasData = true
		return m, nil

	case spinner.TickMsg:
		if !m.scanning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case DeltaMsg:
		m = m.pushDelta(core.ActivityDelta(msg))
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Refresh):
		if m.scanning {
			return m, nil
		}
		m.scanning = true
		return m, tea.Batch(m.scanCmd(), m.spinner.Tick)
	}
	return m, nil
}

func (m Model) pushDelta(d core.ActivityDelta) Model {
	activity := make([]core.ActivityDelta, 0, len(m.activity)+1)
	activity = append(activity, d)
	activity = append(activity, m.activity...)
	if len(activity) > m.opts.MaxActivityRows {
		activity = activity[:m.opts.MaxActivityRows]
	}
	m.activity = activity
	m.liveInput += d.InputTokens
	m.liveOutput += d.OutputTokens
	return m
}

func (m Model) View() string {
	w := m.width
	if w <= 0 {
		w = 100
	}

	var b strings.Builder
	b.WriteString(m.renderHeader(w))
	b.WriteString("\n\n")
	if !m.hasData {
		b.WriteString("  " + m.spinner.View() + dimStyle.Render(" Scanning session logs…"))
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderTotals())
		b.WriteString("\n\n")
		b.WriteString(m.renderSessions(w))
		b.WriteString("\n")
		b.WriteString(m.renderModels())
	}
	b.WriteString("\n")
	b.WriteString(m.renderActivity())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader(w int) string {
	brand := headerBrandStyle.Render("⚡ tokenwatch")
	root := headerStyle.Render(truncate(m.opts.Root, max(w-24, 10)))
	if m.scanning && m.hasData {
		return brand + "  " + root + "  " + m.spinner.View()
	}
	return brand + "  " + root
}

func (m Model) renderTotals() string {
	input := lo.SumBy(m.rows, func(r core.UsageRow) int64 { return r.InputTokens })
	output := lo.SumBy(m.rows, func(r core.UsageRow) int64 { return r.OutputTokens })
	total := lo.SumBy(m.rows, core.UsageRow.TotalTokens)
	sessions := len(lo.Uniq(lo.Map(m.rows, func(r core.UsageRow, _ int) string { return r.SessionID })))

	parts := []string{
		labelStyle.Render("sessions ") + metricValueStyle.Render(fmt.Sprintf("%d", sessions)),
		labelStyle.Render("turns ") + metricValueStyle.Render(fmt.Sprintf("%d", len(m.rows))),
		labelStyle.Render("input ") + inputStyle.Render(FormatTokens(input)),
		labelStyle.Render("output ") + outputStyle.Render(FormatTokens(output)),
		labelStyle.Render("total ") + metricValueStyle.Render(FormatTokens(total)),
		labelStyle.Render("scanned ") + valueStyle.Render(FormatAge(m.opts.Now(), m.scannedAt)),
	}
	if m.truncated() {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("last %d rows", m.opts.RowLimit)))
	}
	return panelStyle.Render(strings.Join(parts, dimStyle.Render("  │  ")))
}

// truncated reports whether the last snapshot hit the scan row cap.
func (m Model) truncated() bool {
	return m.opts.RowLimit > 0 && len(m.rows) >= m.opts.RowLimit
}

func summarizeSessions(rows []core.UsageRow) []sessionSummary {
	var out []sessionSummary
	index := make(map[string]int)
	for _, r := range rows {
		i, ok := index[r.SessionID]
		if !ok {
			i = len(out)
			index[r.SessionID] = i
			out = append(out, sessionSummary{
				id:          r.SessionID,
				displayName: r.DisplayName,
				modifiedAt:  r.SessionModifiedAt,
			})
		}
		s := &out[i]
		s.turns++
		s.input += r.InputTokens
		s.output += r.OutputTokens
		s.total += r.TotalTokens()
		s.model = r.Model
	}
	return out
}

func summarizeModels(rows []core.UsageRow) []modelSummary {
	groups := lo.GroupBy(rows, func(r core.UsageRow) string { return r.Model })
	out := make([]modelSummary, 0, len(groups))
	for model, group := range groups {
		out = append(out, modelSummary{
			model:  model,
			turns:  len(group),
			input:  lo.SumBy(group, func(r core.UsageRow) int64 { return r.InputTokens }),
			output: lo.SumBy(group, func(r core.UsageRow) int64 { return r.OutputTokens }),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].input+out[i].output, out[j].input+out[j].output
		if ti != tj {
			return ti > tj
		}
		return out[i].model < out[j].model
	})
	return out
}

func (m Model) renderSessions(w int) string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Sessions"))
	if m.truncated() {
		b.WriteString("  " + dimStyle.Render(fmt.Sprintf("(last %d rows)", m.opts.RowLimit)))
	}
	b.WriteString("\n")
	sessions := summarizeSessions(m.rows)
	if len(sessions) == 0 {
		b.WriteString(dimStyle.Render("  no token usage found"))
		b.WriteString("\n")
		return b.String()
	}
	nameWidth := max(w-70, 12)
	now := m.opts.Now()
	for i, s := range sessions {
		if i >= maxSessionRows {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  … %d more", len(sessions)-maxSessionRows)))
			b.WriteString("\n")
			break
		}
		name := lo.Ternary(s.displayName != "", s.displayName, shortID(s.id))
		line := fmt.Sprintf("  %s %s %s %s %s %s",
			valueStyle.Render(lipgloss.NewStyle().Width(nameWidth).Render(truncate(name, nameWidth))),
			modelStyle.Render(fmt.Sprintf("%-24s", truncate(s.model, 24))),
			inputStyle.Render(fmt.Sprintf("%8s", FormatTokens(s.input))),
			outputStyle.Render(fmt.Sprintf("%8s", FormatTokens(s.output))),
			metricValueStyle.Render(fmt.Sprintf("%8s", FormatTokens(s.total))),
			dimStyle.Render(FormatAge(now, s.modifiedAt)),
		)
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderModels() string {
	models := summarizeModels(m.rows)
	if len(models) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Models"))
	b.WriteString("\n")
	for _, s := range models {
		b.WriteString(fmt.Sprintf("  %s %s %s %s\n",
			modelStyle.Render(fmt.Sprintf("%-28s", truncate(s.model, 28))),
			dimStyle.Render(fmt.Sprintf("%5d turns", s.turns)),
			inputStyle.Render(fmt.Sprintf("%8s", FormatTokens(s.input))),
			outputStyle.Render(fmt.Sprintf("%8s", FormatTokens(s.output))),
		))
	}
	return b.String()
}

func (m Model) renderActivity() string {
	var b strings.Builder
	title := sectionHeaderStyle.Render("Live activity")
	if m.liveInput > 0 || m.liveOutput > 0 {
		title += "  " + dimStyle.Render(fmt.Sprintf("+%s in / +%s out since start",
			FormatTokens(m.liveInput), FormatTokens(m.liveOutput)))
	}
	b.WriteString(title)
	b.WriteString("\n")
	if len(m.activity) == 0 {
		b.WriteString(dimStyle.Render("  waiting for new assistant turns…"))
		b.WriteString("\n")
		return b.String()
	}
	for _, d := range m.activity {
		line := fmt.Sprintf("  %s %s %s %s %s %s",
			dimStyle.Render(d.Timestamp.Local().Format("15:04:05")),
			valueStyle.Render(shortID(d.SessionID)),
			modelStyle.Render(fmt.Sprintf("%-24s", truncate(d.Model, 24))),
			inputStyle.Render(fmt.Sprintf("in %7s", FormatTokens(d.InputTokens))),
			outputStyle.Render(fmt.Sprintf("out %7s", FormatTokens(d.OutputTokens))),
			dimStyle.Render("cache "+formatOptionalTokens(d.CacheReadTokens)+"/"+formatOptionalTokens(d.CacheWriteTokens)),
		)
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderFooter() string {
	var keys []string
	for _, b := range m.keys.bindings() {
		h := b.Help()
		keys = append(keys, helpKeyStyle.Render(h.Key)+helpStyle.Render(" "+h.Desc))
	}
	return strings.Join(keys, helpStyle.Render(" · "))
}
