package commands

import (
	"errors"
	"fmt"

	"discotrack/internal/export"

	"github.com/spf13/cobra"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export cached cycles to Parquet for BI tools and analytics",
	Long: `Write every cached cycle to cycles.parquet and its inactive spans to
inactive_spans.parquet inside the given directory.

Examples:
  discotrack export --dir out
  duckdb -c "SELECT end_classification, avg(active_days) FROM read_parquet('out/cycles.parquet') GROUP BY 1"`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if exportDir == "" {
			return errors.New("--dir is required")
		}
		coord, err := openCoordinator(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = coord.Close() }()

		cycles, err := coord.List(cmd.Context())
		if err != nil {
			return err
		}
		files, err := export.WriteDir(cycles, exportDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d cycles to %s and %s\n", len(cycles), files.Cycles, files.Spans)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory")
}
