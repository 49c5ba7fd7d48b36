package cmd

import (
	"github.com/spf13/cobra"

	"github.com/reviewloop/reviewloop/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets agent tooling query review state natively. Configure with:

  {
    "mcpServers": {
      "reviewloop": { "command": "reviewloop", "args": ["mcp"] }
    }
  }

Available tools: reviewloop_list_subjects, reviewloop_get_report,
reviewloop_list_findings, reviewloop_dismiss_finding`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, _, err := getController()
		if err != nil {
			return err
		}
		srv := mcp.NewServer(dataStore, ctrl)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
