package commands

import (
	"errors"
	"fmt"
	"strings"

	"discotrack/internal/ingest"
	"discotrack/internal/report"

	"github.com/spf13/cobra"
)

var (
	syncJQL  string
	syncFull bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch issue histories from Jira and refresh derived discovery cycles",
	Long: `Page every issue matching the JQL, re-read its changelog, derive its discovery
cycle and upsert it into the cache. Only issues updated since the last sync are
fetched unless --full is given. Unchanged cycles are not rewritten.

Examples:
  discotrack sync --jql 'project = DISC'
  discotrack sync --full --metrics-addr :9090`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		jql := strings.TrimSpace(syncJQL)
		if jql == "" {
			jql = cfg.DefaultJQL
		}
		if jql == "" {
			return errors.New("no JQL given: pass --jql or set JIRA_JQL")
		}
		if cfg.Jira.BaseURL == "" {
			return errors.New("JIRA_URL is not configured")
		}
		return runBatch(cmd, func(r *ingest.Runner) (ingest.BatchReport, error) {
			return r.Sync(cmd.Context(), cfg.SourceID, jql)
		})
	},
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Re-derive every cycle from the stored issue logs without contacting Jira",
	Long: `Recompute re-runs cycle detection and interval accounting over the issue logs
saved by the last sync. Use it after changing the pipeline taxonomy.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBatch(cmd, func(r *ingest.Runner) (ingest.BatchReport, error) {
			return r.Recompute(cmd.Context(), cfg.SourceID)
		})
	},
}

func runBatch(cmd *cobra.Command, run func(*ingest.Runner) (ingest.BatchReport, error)) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	pipeline, err := loadPipeline()
	if err != nil {
		return err
	}
	coord, err := openCoordinator(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = coord.Close() }()

	metrics, stopMetrics, err := startMetrics(cmd.Context())
	if err != nil {
		return err
	}
	defer stopMetrics()

	runner := ingest.NewRunner(newProvider(), coord, pipeline, metrics, ingest.Options{
		Workers:         cfg.Ingest.Workers,
		FetchRetries:    cfg.Ingest.FetchRetries,
		RetryBackoff:    cfg.Ingest.RetryBackoff,
		PageSize:        cfg.Ingest.PageSize,
		IncludeArchived: cfg.Ingest.IncludeArchived,
		Full:            syncFull,
	})
	batch, runErr := run(runner)
	if err := report.WriteBatch(cmd.OutOrStdout(), batch, format); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if batch.Failed > 0 {
		return fmt.Errorf("%d issues failed", batch.Failed)
	}
	return nil
}

func init() {
	syncCmd.Flags().StringVar(&syncJQL, "jql", "", "issues to track (default $JIRA_JQL)")
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "ignore the last sync time and re-read every issue")
}
