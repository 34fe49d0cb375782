package commands

import (
	"fmt"

	"discotrack/internal/config"
	"discotrack/internal/stats"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the pipeline taxonomy file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default pipeline taxonomy to PIPELINE_CONFIG",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.WriteDefaultTaxonomy(cfg.PipelineFile); err != nil {
			return fmt.Errorf("write %s: %w", cfg.PipelineFile, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default taxonomy to %s\n", cfg.PipelineFile)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective pipeline taxonomy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		t, err := config.LoadTaxonomy(cfg.PipelineFile)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "discovery: %v\n", t.Discovery)
		for _, fam := range []stats.Family{stats.FamilyBuild, stats.FamilyBeta, stats.FamilyLive, stats.FamilyWontDo} {
			fmt.Fprintf(out, "terminal.%s: %v\n", fam, t.Terminal[fam])
		}
		fmt.Fprintf(out, "inactive: %v\non_hold_health: %v\nactive: %v\n", t.Inactive, t.OnHold, t.Active)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
}
