package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"droidflow/orchestrator/internal/parser"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow.json|workflow.yaml>",
	Short: "检查工作流定义，报告静态问题",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := parser.ParseFile(args[0])
		if err != nil {
			return err
		}
		warnings := parser.Lint(wf)
		if len(warnings) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s 没有发现问题（%d 步）\n", wf.ID, len(wf.Steps))
			return nil
		}
		for _, warning := range warnings {
			fmt.Fprintf(cmd.OutOrStdout(), "警告: %s\n", warning)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d 条警告\n", len(warnings))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
