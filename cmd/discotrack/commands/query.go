package commands

import (
	"fmt"
	"time"

	"discotrack/internal/eventlog"
	"discotrack/internal/report"
	"discotrack/internal/stats"

	"github.com/spf13/cobra"
)

var (
	cohortGroupBy string
	cohortMetric  string
	cohortStart   string
	cohortEnd     string
	cohortBucket  string
	listCycles    bool

	atFlag string
)

var cycleCmd = &cobra.Command{
	Use:   "cycle [ISSUE-KEY]",
	Short: "Show the cached discovery cycle of one issue, or every cycle with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat()
		if err != nil {
			return err
		}
		coord, err := openCoordinator(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = coord.Close() }()

		if listCycles || len(args) == 0 {
			cycles, err := coord.List(cmd.Context())
			if err != nil {
				return err
			}
			return report.WriteCycles(cmd.OutOrStdout(), cycles, format)
		}

		cycle, err := coord.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if cycle == nil {
			return fmt.Errorf("no cycle cached for %s; run `discotrack sync` first", args[0])
		}
		return report.WriteCycle(cmd.OutOrStdout(), *cycle, format)
	},
}

var cohortsCmd = &cobra.Command{
	Use:   "cohorts",
	Short: "Box-plot statistics of completed discovery cycles per cohort",
	Long: `Group completed cycles by completion quarter, complexity or project and print
min, quartiles, median and max after removing 1.5xIQR outliers.

Examples:
  discotrack cohorts
  discotrack cohorts --group-by complexity --metric calendar
  discotrack cohorts --start 2024-01-01 --end 2024-12-31 -o json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := outputFormat()
		if err != nil {
			return err
		}
		key, err := stats.KeyFuncFor(cohortGroupBy)
		if err != nil {
			return err
		}
		metric, err := stats.ParseMetric(cohortMetric)
		if err != nil {
			return err
		}
		window, err := windowFlags()
		if err != nil {
			return err
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
		return report.WriteCohorts(cmd.OutOrStdout(), stats.Aggregate(window.Filter(cycles), key, metric), metric, format)
	},
}

var stabilityCmd = &cobra.Command{
	Use:   "stability",
	Short: "XmR chart of completed discovery durations in completion order",
	Long: `Plot completed cycle durations on an individuals and moving-range chart and
list the cycles outside the natural process limits, plus runs of 8 cycles on
one side of the average.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := outputFormat()
		if err != nil {
			return err
		}
		metric, err := stats.ParseMetric(cohortMetric)
		if err != nil {
			return err
		}
		window, err := windowFlags()
		if err != nil {
			return err
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
		return report.WriteStability(cmd.OutOrStdout(), stats.CycleStability(window.Filter(cycles), metric), format)
	},
}

var stateCmd = &cobra.Command{
	Use:   "state ISSUE-KEY",
	Short: "Reconstruct the status, health and assignee of an issue at an instant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat()
		if err != nil {
			return err
		}
		at, err := instantFlag()
		if err != nil {
			return err
		}
		logs, err := loadLogs()
		if err != nil {
			return err
		}
		l, ok := logs.Get(cfg.SourceID, args[0])
		if !ok {
			return fmt.Errorf("no issue log stored for %s", args[0])
		}
		return report.WriteState(cmd.OutOrStdout(), report.StateView{
			IssueKey:           args[0],
			At:                 at,
			ReconstructedState: eventlog.StateAt(l.Events, l.Baseline, at),
		}, format)
	},
}

var workloadCmd = &cobra.Command{
	Use:   "workload MEMBER",
	Short: "List the active issues assigned to a team member at an instant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFormat()
		if err != nil {
			return err
		}
		at, err := instantFlag()
		if err != nil {
			return err
		}
		pipeline, err := loadPipeline()
		if err != nil {
			return err
		}
		logs, err := loadLogs()
		if err != nil {
			return err
		}
		issues := stats.ActiveIssuesFor(logs.Logs(cfg.SourceID), args[0], at, pipeline)
		return report.WriteWorkload(cmd.OutOrStdout(), args[0], at, issues, format)
	},
}

func windowFlags() (stats.AnalysisWindow, error) {
	var start, end time.Time
	var err error
	if cohortStart != "" {
		if start, err = stats.ParseInstant(cohortStart); err != nil {
			return stats.AnalysisWindow{}, err
		}
	}
	if cohortEnd != "" {
		if end, err = stats.ParseInstant(cohortEnd); err != nil {
			return stats.AnalysisWindow{}, err
		}
	}
	return stats.NewAnalysisWindow(start, end, cohortBucket), nil
}

func instantFlag() (time.Time, error) {
	if atFlag == "" {
		return time.Now().UTC(), nil
	}
	return stats.ParseInstant(atFlag)
}

func init() {
	cycleCmd.Flags().BoolVar(&listCycles, "all", false, "list every cached cycle")

	cohortsCmd.Flags().StringVar(&cohortGroupBy, "group-by", "period", "cohort key: period, complexity or project")
	cohortsCmd.Flags().StringVar(&cohortMetric, "metric", string(stats.MetricActive), "duration: active or calendar")
	cohortsCmd.Flags().StringVar(&cohortStart, "start", "", "only cycles completed on or after this date")
	cohortsCmd.Flags().StringVar(&cohortEnd, "end", "", "only cycles completed on or before this date")
	cohortsCmd.Flags().StringVar(&cohortBucket, "bucket", "day", "snap --start/--end to day, week, month or quarter")

	stabilityCmd.Flags().StringVar(&cohortMetric, "metric", string(stats.MetricActive), "duration: active or calendar")
	stabilityCmd.Flags().StringVar(&cohortStart, "start", "", "only cycles completed on or after this date")
	stabilityCmd.Flags().StringVar(&cohortEnd, "end", "", "only cycles completed on or before this date")

	for _, c := range []*cobra.Command{stateCmd, workloadCmd} {
		c.Flags().StringVar(&atFlag, "at", "", "instant (YYYY-MM-DD or RFC 3339, default now)")
	}
}
