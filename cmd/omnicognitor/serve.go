package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/greg-hellings/omnicognitor/pkg/analyzer"
	"github.com/greg-hellings/omnicognitor/pkg/dashboard"
	"github.com/greg-hellings/omnicognitor/pkg/web"
)

var serveAddr string

func newServeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard as a local web page",
		Long: strings.TrimSpace(`
Mount the dashboard and serve it over HTTP. The page reloads every refresh
interval; JSON endpoints expose the current snapshot and the analyzer.

Examples:
  omnicognitor serve
  omnicognitor serve --addr 127.0.0.1:9090
`),
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	c.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	return c
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	addr := a.cfg.Web.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	view := dashboard.New(a.data, dashboard.Options{RefreshInterval: a.cfg.Dashboard.RefreshInterval})
	srv, err := web.NewServer(view, analyzer.NewPanel(a.analysis))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	view.Mount(ctx)
	defer view.Unmount()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving OmniCognitor dashboard on %s\n", addr)
	return srv.Run(ctx, addr)
}
