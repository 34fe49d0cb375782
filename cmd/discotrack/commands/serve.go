package commands

import (
	"discotrack/internal/mcp"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server over stdio",
	Long: `Serve discovery-cycle queries as Model Context Protocol tools on stdin/stdout.
Answers come from the cycle cache and the stored issue logs; run sync first.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		pipeline, err := loadPipeline()
		if err != nil {
			return err
		}
		coord, err := openCoordinator(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = coord.Close() }()

		logs, err := loadLogs()
		if err != nil {
			return err
		}

		server := mcp.NewServer(mcp.ServerDeps{
			Cycles:   coord,
			Logs:     logs,
			SourceID: cfg.SourceID,
			Pipeline: pipeline,
			Version:  Version,
		})
		return server.Run(cmd.Context())
	},
}
