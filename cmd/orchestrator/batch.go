package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"droidflow/orchestrator/internal/engine"
	"droidflow/orchestrator/internal/fanout"
	"droidflow/orchestrator/internal/parser"
	"droidflow/orchestrator/pkg/types"
)

var (
	batchDevices     []string
	batchInputs      []string
	batchMaxParallel int
	batchOutJSON     string
)

var batchCmd = &cobra.Command{
	Use:   "batch <workflow.json|workflow.yaml>",
	Short: "在多台设备上并发执行同一工作流",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := parser.ParseFile(args[0])
		if err != nil {
			return err
		}
		for _, warning := range parser.Lint(wf) {
			fmt.Fprintf(os.Stderr, "警告: %s\n", warning)
		}
		if len(batchDevices) == 0 {
			return fmt.Errorf("需要至少一台设备，使用 --devices 指定")
		}

		inputs, err := parseInputFlags(batchInputs)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		p, err := buildPorts(ctx)
		if err != nil {
			return err
		}
		runner := engine.New(p)

		tasks := make([]types.TaskSpec, len(batchDevices))
		for i, deviceID := range batchDevices {
			tasks[i] = types.TaskSpec{
				TaskID:   uuid.NewString(),
				DeviceID: deviceID,
				Workflow: *wf,
				Inputs:   inputs,
			}
		}

		coordinator := fanout.New(func(ctx context.Context, task *types.TaskSpec) (*types.WorkflowResult, error) {
			return runner.Run(ctx, &task.Workflow, task.Inputs, task.DeviceID), nil
		}).WithProgress(func(completed, total int) {
			fmt.Printf("\r  进度 %d/%d", completed, total)
		})

		fmt.Printf(Banner, Version)
		fmt.Printf("  工作流: %s，%d 台设备，并发 %d\n", wf.ID, len(tasks), batchMaxParallel)

		report := coordinator.RunMany(ctx, tasks, batchMaxParallel)
		fmt.Println()
		printReport(report)

		if batchOutJSON != "" {
			if err := writeJSON(batchOutJSON, report); err != nil {
				return err
			}
		}
		if report.Failed > 0 {
			return fmt.Errorf("%d/%d 台设备执行失败", report.Failed, report.Total)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringSliceVar(&batchDevices, "devices", nil, "目标设备 id 列表，逗号分隔")
	batchCmd.Flags().StringArrayVarP(&batchInputs, "input", "i", nil, "工作流输入，key=value，可多次指定")
	batchCmd.Flags().IntVar(&batchMaxParallel, "max-parallel", 4, "最大并发设备数")
	batchCmd.Flags().StringVar(&batchOutJSON, "out-json", "", "把批量报告写入 JSON 文件")
	rootCmd.AddCommand(batchCmd)
}

func printReport(report *types.BatchReport) {
	fmt.Printf("\n  总数 %d  成功 %d  失败 %d  总耗时 %dms\n",
		report.Total, report.Succeeded, report.Failed, report.DurationMS)
	fmt.Printf("  延迟 p50=%dms p95=%dms max=%dms\n",
		report.LatencyP50MS, report.LatencyP95MS, report.LatencyMaxMS)
	for _, r := range report.Results {
		mark := "✓"
		if !r.Success {
			mark = "✗"
		}
		fmt.Printf("  %s %s (%dms)", mark, r.DeviceID, r.DurationMS)
		if r.Error != "" {
			fmt.Printf("  %s", r.Error)
		}
		fmt.Println()
	}
}
