package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/greg-hellings/omnicognitor/pkg/analyzer"
	"github.com/greg-hellings/omnicognitor/pkg/render"
)

var analyzeNoColor bool

func newAnalyzeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "analyze <query...>",
		Short: "Submit a research query to the M2-3M analysis service",
		Long: strings.TrimSpace(`
Submit a free-text research query. The service returns a summary and a list of
referenced publications.

Examples:
  omnicognitor analyze quantum entanglement
  omnicognitor analyze "protein folding" --no-color
`),
		Args: cobra.MinimumNArgs(1),
		RunE: runAnalyze,
	}
	c.Flags().BoolVar(&analyzeNoColor, "no-color", false, "Disable ANSI colors")
	return c
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(cmd.Context())
	defer cancel()

	panel := analyzer.NewPanel(a.analysis)
	submitErr := panel.Submit(ctx, strings.Join(args, " "))
	if errors.Is(submitErr, analyzer.ErrEmptyQuery) {
		return submitErr
	}

	formatter := render.NewConsoleFormatter()
	formatter.EnableColors = !analyzeNoColor
	if err := formatter.RenderAnalysis(panel.State(), cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to render analysis: %w", err)
	}
	return submitErr
}
