// Package render provides console rendering for the dashboard, the analyzer
// panel, and the auth screen. Tables adapt to the terminal width and cells
// support color and truncation.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/greg-hellings/omnicognitor/pkg/analyzer"
	"github.com/greg-hellings/omnicognitor/pkg/api"
	"github.com/greg-hellings/omnicognitor/pkg/auth"
	"github.com/greg-hellings/omnicognitor/pkg/dashboard"
)

const (
	Title    = "TELsTP OmniCognitor"
	Subtitle = "Unified AI Platform - MMAC Edition"

	PlatformsHeading  = "Connected AI Platforms"
	WorkspacesHeading = "Active Workspaces"
	LoadingText       = "Loading dashboard..."

	NoPlatformsText   = "No platforms configured yet"
	NoWorkspacesText  = "No workspaces created yet"
	NoDescriptionText = "No description"
)

// ConsoleFormatter renders view snapshots as terminal text.
type ConsoleFormatter struct {
	// MaxTextColWidth constrains free-text columns (names, descriptions).
	// If 0, a width is chosen from the terminal width.
	MaxTextColWidth int

	// EnableColors toggles ANSI color output.
	EnableColors bool

	// TimeFormat is used for the last-updated footer.
	TimeFormat string
}

// NewConsoleFormatter creates a formatter with sensible defaults.
func NewConsoleFormatter() *ConsoleFormatter {
	return &ConsoleFormatter{
		EnableColors: true,
		TimeFormat:   time.DateTime,
	}
}

func (f *ConsoleFormatter) newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.DrawBorder = true
	return tw
}

// RenderDashboard writes the header, stat cards, platform grid, workspace
// list, and footer for snap.
func (f *ConsoleFormatter) RenderDashboard(snap dashboard.Snapshot, w io.Writer) error {
	pw := &printer{w: w}

	pw.printf("%s  %s\n", f.color(Title, text.Bold), f.color("● Live", text.FgGreen))
	pw.printf("%s\n\n", f.color(Subtitle, text.FgHiBlack))

	if snap.Loading && snap.Cycles == 0 {
		pw.printf("%s\n", LoadingText)
		return pw.err
	}
	if snap.Error != "" {
		pw.printf("%s %s\n\n", f.color("Error:", text.FgRed), snap.Error)
	}
	if pw.err != nil {
		return pw.err
	}

	stats := f.newTable(w)
	header := table.Row{}
	row := table.Row{}
	for _, field := range api.StatFields {
		header = append(header, field.Label)
		row = append(row, snap.Stats.Value(field.Key))
	}
	stats.AppendHeader(header)
	stats.AppendRow(row)
	stats.Render()

	pw.printf("\n%s\n", PlatformsHeading)
	if platforms := snap.VisiblePlatforms(); len(platforms) == 0 {
		pw.printf("  %s\n", f.color(NoPlatformsText, text.FgHiBlack))
	} else {
		tw := f.newTable(w)
		tw.AppendHeader(table.Row{"Name", "Type", "Status"})
		if cfg := f.textColumns(w, 1, 24); cfg != nil {
			tw.SetColumnConfigs(cfg)
		}
		for _, p := range platforms {
			tw.AppendRow(table.Row{p.Name, p.Type, f.platformStatus(p.Enabled)})
		}
		tw.Render()
	}

	pw.printf("\n%s\n", WorkspacesHeading)
	if workspaces := snap.VisibleWorkspaces(); len(workspaces) == 0 {
		pw.printf("  %s\n", f.color(NoWorkspacesText, text.FgHiBlack))
	} else {
		tw := f.newTable(w)
		tw.AppendHeader(table.Row{"", "Name", "Description", "Visibility"})
		if cfg := f.textColumns(w, 3, 34); cfg != nil {
			tw.SetColumnConfigs(cfg)
		}
		for _, ws := range workspaces {
			marker := ""
			if snap.ActiveWorkspace != "" && ws.ID == snap.ActiveWorkspace {
				marker = f.color("▶", text.FgCyan)
			}
			desc := ws.Description
			if desc == "" {
				desc = f.color(NoDescriptionText, text.FgHiBlack)
			}
			tw.AppendRow(table.Row{marker, ws.Name, desc, f.visibility(ws.Public)})
		}
		tw.Render()
	}

	updated := "never"
	if !snap.LastUpdated.IsZero() {
		updated = snap.LastUpdated.Format(f.timeFormat())
	}
	pw.printf("\nLast updated: %s\n", updated)
	return pw.err
}

// RenderAnalysis writes the analyzer panel state.
func (f *ConsoleFormatter) RenderAnalysis(st analyzer.State, w io.Writer) error {
	pw := &printer{w: w}
	pw.printf("%s\n", f.color("M2-3M Research Analyzer", text.Bold))
	if st.Query != "" {
		pw.printf("Query: %s\n", strings.TrimSpace(st.Query))
	}
	switch {
	case st.Loading:
		pw.printf("Analyzing...\n")
	case st.Error != "":
		pw.printf("%s %s\n", f.color("Error:", text.FgRed), st.Error)
	case st.Result != nil:
		pw.printf("\nSummary\n%s\n", st.Result.Summary)
		if len(st.Result.Publications) > 0 {
			pw.printf("\nReferenced Publications\n")
			for _, pub := range st.Result.Publications {
				pw.printf("  - %s\n", analyzer.ListItem(pub))
			}
		}
	}
	return pw.err
}

// RenderAuth writes the auth screen: title, entered email, status message,
// and the mode toggle prompt.
func (f *ConsoleFormatter) RenderAuth(screen *auth.Screen, w io.Writer) error {
	if screen == nil {
		return fmt.Errorf("nil auth screen")
	}
	st := screen.State()
	pw := &printer{w: w}
	pw.printf("%s\n", f.color(screen.Title(), text.Bold))
	if st.Email != "" {
		pw.printf("Email: %s\n", st.Email)
	}
	if st.Loading {
		pw.printf("Loading...\n")
	}
	if st.Message != "" {
		pw.printf("%s\n", st.Message)
	}
	pw.printf("%s %s\n", f.color(screen.TogglePrompt(), text.FgHiBlack), screen.ToggleLabel())
	return pw.err
}

func (f *ConsoleFormatter) platformStatus(enabled bool) string {
	if enabled {
		return f.color("Enabled", text.FgGreen)
	}
	return f.color("Disabled", text.FgHiBlack)
}

func (f *ConsoleFormatter) visibility(public bool) string {
	if public {
		return f.color("Public", text.FgGreen)
	}
	return f.color("Private", text.FgYellow)
}

func (f *ConsoleFormatter) timeFormat() string {
	if f.TimeFormat == "" {
		return time.DateTime
	}
	return f.TimeFormat
}

// textColumns constrains the free-text column (1-based number col) so the
// table fits the terminal; reserved is the width taken by the other columns.
func (f *ConsoleFormatter) textColumns(w io.Writer, col, reserved int) []table.ColumnConfig {
	width := f.MaxTextColWidth
	if width <= 0 {
		termWidth := detectTerminalWidth(w)
		if termWidth <= 0 {
			// Fallback: do not constrain if width unknown
			return nil
		}
		if termWidth < 60 {
			termWidth = 60
		}
		width = termWidth - reserved
	}
	if width < 10 {
		width = 10
	}
	return []table.ColumnConfig{{
		Number:      col,
		WidthMax:    width,
		WidthMin:    minInt(10, width),
		Transformer: truncTransformer(width),
	}}
}

// printer remembers the first write error so rendering can report it once.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	if _, err := fmt.Fprintf(p.w, format, args...); err != nil {
		p.err = fmt.Errorf("failed writing output: %w", err)
	}
}

// detectTerminalWidth attempts to get terminal width if writer is a file (stdout/stderr).
func detectTerminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	return -1
}

// truncTransformer returns a text.Transformer to ellipsize overly wide cells.
func truncTransformer(max int) text.Transformer {
	return func(val interface{}) string {
		return truncateRunes(fmt.Sprint(val), max)
	}
}

// truncateRunes truncates a string to max runes, ending in an ellipsis.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	var b strings.Builder
	count := 0
	for _, r := range s {
		if count >= max-1 {
			break
		}
		b.WriteRune(r)
		count++
	}
	b.WriteRune('…')
	return b.String()
}

func (f *ConsoleFormatter) color(s string, c text.Color) string {
	if !f.EnableColors {
		return s
	}
	return text.Colors{c}.Sprint(s)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
