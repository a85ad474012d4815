package main

import (
	"github.com/spf13/cobra"

	mcpapi "droidflow/orchestrator/api/mcp"
	"droidflow/orchestrator/pkg/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "以 MCP 服务方式暴露编排器（stdio）",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdio 被协议占用，日志只留错误
		if logLevel == "info" {
			logger.SetLevelFromString("error")
		}

		p, err := buildPorts(cmd.Context())
		if err != nil {
			return err
		}
		return mcpapi.NewServer(p, skillRegistry(p)).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
