package commands

import (
	"context"
	"fmt"

	"discotrack/internal/cache"
	"discotrack/internal/config"
	"discotrack/internal/eventlog"
	"discotrack/internal/jira"
	"discotrack/internal/logging"
	"discotrack/internal/observability"
	"discotrack/internal/report"
	"discotrack/internal/stats"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose     bool
	outputFlag  string
	sourceFlag  string
	metricsAddr string

	cfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "discotrack",
	Short: "Discotrack measures how long ideas spend in product discovery",
	Long: `Discotrack reads issue histories from Jira, detects each issue's discovery cycle,
separates active from inactive time, and reports cohort statistics.

Derived cycles are cached in SQLite (default), PostgreSQL or MySQL so reports and
the MCP server never have to re-read Jira.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := logging.Init(verbose); err != nil {
			log.Warn().Err(err).Msg("File logging disabled")
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		if sourceFlag != "" {
			cfg.SourceID = sourceFlag
		}

		log.Debug().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("cache", string(cfg.Cache.Backend)).
			Msg("Discotrack starting")
	},
}

// Execute runs the root command with ctx cancelled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", string(report.TextOut), "output format: text, json or csv")
	rootCmd.PersistentFlags().StringVar(&sourceFlag, "source", "", "issue-log partition (default $SOURCE_ID or \"default\")")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(syncCmd, recomputeCmd, cycleCmd, cohortsCmd, stabilityCmd, stateCmd, workloadCmd, cacheCmd, exportCmd, serveCmd, configCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "discotrack %s (commit %s, built %s)\n", Version, Commit, BuildDate)
	},
}

func outputFormat() (report.Format, error) {
	return report.ParseFormat(outputFlag)
}

func openCoordinator(ctx context.Context) (*cache.Coordinator, error) {
	store, err := cache.Open(ctx, cfg.Cache.Backend, cfg.Cache.Connect)
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Cache.Backend, err)
	}
	return cache.NewCoordinator(store), nil
}

func loadPipeline() (*stats.Pipeline, error) {
	p, err := config.LoadPipeline(cfg.PipelineFile)
	if err != nil {
		return nil, fmt.Errorf("load pipeline %s: %w", cfg.PipelineFile, err)
	}
	return p, nil
}

func newProvider() *eventlog.LogProvider {
	p := eventlog.NewLogProvider(jira.NewClient(cfg.Jira), eventlog.NewEventStore(), cfg.CacheDir, cfg.Fields)
	p.SetLocation(cfg.JiraLocation)
	return p
}

// loadLogs reads the stored issue logs of the configured source.
func loadLogs() (*eventlog.EventStore, error) {
	store := eventlog.NewEventStore()
	if err := store.Load(cfg.CacheDir, cfg.SourceID); err != nil {
		return nil, fmt.Errorf("load issue logs: %w", err)
	}
	if store.Count(cfg.SourceID) == 0 {
		log.Warn().Str("source", cfg.SourceID).Msg("No stored issue logs; run `discotrack sync` first")
	}
	return store, nil
}

// startMetrics serves metrics when --metrics-addr is set. The returned stop
// function is always safe to call.
func startMetrics(ctx context.Context) (*observability.Metrics, func(), error) {
	m := observability.NewMetrics()
	if metricsAddr == "" {
		return m, func() {}, nil
	}
	srv, err := observability.Serve(ctx, metricsAddr, m)
	if err != nil {
		return nil, nil, err
	}
	return m, func() {
		if err := srv.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}, nil
}
