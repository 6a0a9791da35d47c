package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/greg-hellings/omnicognitor/pkg/api"
	"github.com/greg-hellings/omnicognitor/pkg/dashboard"
	"github.com/greg-hellings/omnicognitor/pkg/render"
)

// dashboard command flags
type dashboardFlags struct {
	once     bool
	interval time.Duration
	noColor  bool
	selectID string
}

var dashFlags dashboardFlags

func newDashboardCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "dashboard",
		Short: "Show platform statistics, platforms, and workspaces",
		Long: strings.TrimSpace(`
Show the OmniCognitor dashboard. The view fetches statistics, connected
platforms, and workspaces immediately and then every refresh interval until
interrupted.

Examples:
  omnicognitor dashboard
  omnicognitor dashboard --once --no-color
  omnicognitor dashboard --interval 10s --select ws-42
`),
		Args: cobra.NoArgs,
		RunE: runDashboard,
	}

	c.Flags().BoolVar(&dashFlags.once, "once", false, "Fetch and render a single time, then exit")
	c.Flags().DurationVar(&dashFlags.interval, "interval", 0, "Refresh interval (default from config, 30s)")
	c.Flags().BoolVar(&dashFlags.noColor, "no-color", false, "Disable ANSI colors")
	c.Flags().StringVar(&dashFlags.selectID, "select", "", "Mark a workspace as active")

	return c
}

func runDashboard(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	interval := a.cfg.Dashboard.RefreshInterval
	if dashFlags.interval > 0 {
		interval = dashFlags.interval
	}

	view := dashboard.New(a.data, dashboard.Options{RefreshInterval: interval})
	if dashFlags.selectID != "" {
		view.SelectWorkspace(api.ID(dashFlags.selectID))
	}

	formatter := render.NewConsoleFormatter()
	formatter.EnableColors = !dashFlags.noColor
	out := cmd.OutOrStdout()

	if dashFlags.once {
		ctx, cancel := requestContext(cmd.Context())
		defer cancel()
		refreshErr := view.Refresh(ctx)
		if err := formatter.RenderDashboard(view.Snapshot(), out); err != nil {
			return fmt.Errorf("failed to render dashboard: %w", err)
		}
		if refreshErr != nil {
			return fmt.Errorf("dashboard refresh failed: %w", refreshErr)
		}
		return nil
	}

	// Render once per completed cycle; intermediate transitions are skipped.
	cycles := make(chan dashboard.Snapshot, 1)
	unsubscribe := view.OnChange(func(s dashboard.Snapshot) {
		if s.Loading {
			return
		}
		select {
		case cycles <- s:
		default:
			// Drop a stale pending snapshot in favor of the newest.
			select {
			case <-cycles:
			default:
			}
			cycles <- s
		}
	})
	defer unsubscribe()

	ctx := cmd.Context()
	view.Mount(ctx)
	defer view.Unmount()

	clearScreen := isTerminal(out)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Dashboard interrupted")
			return nil
		case snap := <-cycles:
			if clearScreen {
				fmt.Fprint(out, "\x1b[H\x1b[2J")
			}
			if err := formatter.RenderDashboard(snap, out); err != nil {
				return fmt.Errorf("failed to render dashboard: %w", err)
			}
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
