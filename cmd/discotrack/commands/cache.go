package commands

import (
	"fmt"

	"discotrack/internal/cache"
	"discotrack/internal/eventlog"
	"discotrack/internal/report"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	clearLogs     bool
	targetVersion int
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the derived-cycle cache",
	Long: `Manage the cache of derived discovery cycles.

Supported backends (CACHE_BACKEND): sqlite (default), postgresql, mysql, memory, none.

Subcommands:
  status  - Show backend, entry count and freshness
  clear   - Remove every cached cycle (and optionally the stored issue logs)
  migrate - Move the SQL schema to a given version`,
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display cache statistics and connection details",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := outputFormat()
		if err != nil {
			return err
		}
		coord, err := openCoordinator(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = coord.Close() }()

		status, err := coord.Status(cmd.Context())
		if err != nil {
			return err
		}
		return report.WriteCacheStatus(cmd.OutOrStdout(), status, format)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached cycle",
	Long: `Delete every derived cycle from the cache. With --logs the stored issue logs of
the source are removed too, forcing the next sync to re-read Jira in full.

WARNING: This action cannot be undone. Consider exporting first.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		coord, err := openCoordinator(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = coord.Close() }()

		if err := coord.Clear(cmd.Context()); err != nil {
			return err
		}
		if clearLogs {
			if err := eventlog.DeleteCache(cfg.CacheDir, cfg.SourceID); err != nil {
				return err
			}
			log.Info().Str("source", cfg.SourceID).Msg("Issue logs removed")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared successfully.")
		return nil
	},
}

var cacheMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage the schema version of a SQL cache backend.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  discotrack cache migrate

  # Roll every migration back
  discotrack cache migrate --target-version 0`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cfg.Cache.Backend.IsSQL() {
			return fmt.Errorf("the %s backend has no schema to migrate", cfg.Cache.Backend)
		}
		db, err := cache.OpenDB(cmd.Context(), cfg.Cache.Backend, cfg.Cache.Connect)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		from, to, err := cache.Migrate(db, cfg.Cache.Backend, targetVersion)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema migrated from version %d to %d.\n", from, to)
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().BoolVar(&clearLogs, "logs", false, "also delete the stored issue logs")
	cacheMigrateCmd.Flags().IntVar(&targetVersion, "target-version", -1, "schema version to migrate to (-1 = latest, 0 = empty)")
	cacheCmd.AddCommand(cacheStatusCmd, cacheClearCmd, cacheMigrateCmd)
}
