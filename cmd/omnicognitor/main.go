package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/greg-hellings/omnicognitor/pkg/api"
	"github.com/greg-hellings/omnicognitor/pkg/auth"
	"github.com/greg-hellings/omnicognitor/pkg/config"
	"github.com/greg-hellings/omnicognitor/pkg/session"
)

// build-time override (e.g. -ldflags "-X main.version=1.2.3")
var version = "dev"

// Global (root-level) flag variables
var (
	flagVerbose bool
	flagDebug   bool
	flagConfig  string
	flagTimeout time.Duration
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.ExecuteContext(ctx); err != nil {
		// If Execute() returns an error, logging may or may not be initialized yet.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd creates the root Cobra command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "omnicognitor",
		Short: "TELsTP OmniCognitor CLI",
		Long: strings.TrimSpace(`
TELsTP OmniCognitor - Unified AI Platform dashboard

Polls the backend for aggregate statistics, connected platforms, and
workspaces; signs in against the identity provider; and submits research
queries to the M2-3M analysis service.`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			initLogging()
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (info) logging")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging (overrides --verbose)")
	cmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to a YAML or TOML config file")
	cmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "Abort network requests after this long (0 = no limit)")
	cmd.Version = version

	// Add subcommands
	cmd.AddCommand(newDashboardCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// newVersionCmd prints version info (simple helper).
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "OmniCognitor version: %s\n", version)
		},
	}
}

func initLogging() {
	var level slog.Level
	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	default:
		level = slog.LevelWarn
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	slog.Debug("Logging initialized", "level", level.String())
}

// app bundles the collaborators built from configuration.
type app struct {
	cfg      *config.Config
	store    session.Store
	data     *api.Client
	analysis *api.Client
	identity *auth.GoTrueProvider
}

func newApp() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store := session.NewFileStore(cfg.Session.Path)

	anonKey := ""
	if cfg.API.UseAnonKey {
		anonKey = cfg.Identity.AnonKey
	}
	userAgent := "omnicognitor/" + version

	a := &app{
		cfg:   cfg,
		store: store,
		data: api.NewClient(api.Config{
			BaseURL:     cfg.API.BaseURL,
			Credentials: session.NewBearerSource(cfg.API.Token, store, anonKey),
			UserAgent:   userAgent,
		}),
		analysis: api.NewClient(api.Config{
			BaseURL:   cfg.Analyzer.BaseURL,
			UserAgent: userAgent,
		}),
		identity: auth.NewGoTrueProvider(auth.GoTrueConfig{
			URL:     cfg.Identity.URL,
			AnonKey: cfg.Identity.AnonKey,
		}),
	}
	slog.Debug("Configuration loaded",
		"api", cfg.API.BaseURL,
		"analyzer", cfg.Analyzer.BaseURL,
		"session", store.Path())
	return a, nil
}

// requestContext applies the global --timeout to ctx.
func requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if flagTimeout > 0 {
		return context.WithTimeout(ctx, flagTimeout)
	}
	return context.WithCancel(ctx)
}
