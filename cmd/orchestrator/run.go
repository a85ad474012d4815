package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"droidflow/orchestrator/internal/engine"
	"droidflow/orchestrator/internal/parser"
	"droidflow/orchestrator/pkg/types"
)

var (
	runDeviceID string
	runInputs   []string
	runOutJSON  string
	runQuiet    bool
)

var runCmd = &cobra.Command{
	Use:   "run <workflow.json|workflow.yaml>",
	Short: "在单台设备上执行工作流",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := parser.ParseFile(args[0])
		if err != nil {
			return err
		}
		for _, warning := range parser.Lint(wf) {
			fmt.Fprintf(os.Stderr, "警告: %s\n", warning)
		}

		inputs, err := parseInputFlags(runInputs)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		p, err := buildPorts(ctx)
		if err != nil {
			return err
		}

		if !runQuiet {
			fmt.Printf(Banner, Version)
			fmt.Printf("  工作流: %s (%d 步)\n", wf.ID, len(wf.Steps))
			fmt.Printf("  设备:   %s\n\n", runDeviceID)
		}

		result := engine.New(p).Run(ctx, wf, inputs, runDeviceID)

		if !runQuiet {
			printResult(result)
		}
		if runOutJSON != "" {
			if err := writeJSON(runOutJSON, result); err != nil {
				return err
			}
		}
		if !result.Success {
			return fmt.Errorf("工作流失败: %s", result.Error)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runDeviceID, "device", "d", "", "目标设备 id")
	runCmd.Flags().StringArrayVarP(&runInputs, "input", "i", nil, "工作流输入，key=value，可多次指定")
	runCmd.Flags().StringVar(&runOutJSON, "out-json", "", "把执行结果写入 JSON 文件")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "静默模式，只输出错误")
	_ = runCmd.MarkFlagRequired("device")
	rootCmd.AddCommand(runCmd)
}

// parseInputFlags 把重复的 key=value flag 转成输入 map
func parseInputFlags(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	inputs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("无效的输入 %q，需要 key=value", pair)
		}
		inputs[key] = value
	}
	return inputs, nil
}

func printResult(result *types.WorkflowResult) {
	for _, entry := range result.Logs {
		fmt.Printf("  %s [%s] %s\n", entry.Timestamp.Format("15:04:05"), entry.Level, entry.Message)
	}
	fmt.Println()
	if result.Success {
		fmt.Printf("✓ 完成，耗时 %dms\n", result.DurationMS)
	} else {
		fmt.Printf("✗ 失败: %s\n", result.Error)
	}
	if len(result.Outputs) > 0 {
		payload, _ := json.MarshalIndent(result.Outputs, "", "  ")
		fmt.Printf("输出:\n%s\n", payload)
	}
}

func writeJSON(path string, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

// signalContext 返回在 SIGINT/SIGTERM 时取消的上下文
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
