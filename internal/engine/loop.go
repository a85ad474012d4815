package engine

import (
	"context"
	"strconv"
	"strings"

	"droidflow/orchestrator/pkg/types"
)

func (r *Runner) executeLoop(ctx context.Context, wf *types.WorkflowDefinition, ec *ExecutionContext, step *types.WorkflowStep) error {
	resolved := strings.TrimSpace(ec.Resolve(step.Count))
	count, err := strconv.Atoi(resolved)
	if err != nil {
		return newError(ErrCodeInvalidCount, step.ID, "loop count %q is not an integer", resolved)
	}

	variable := step.Variable
	if variable == "" {
		variable = "i"
	}

	r.log(ctx, ec, types.LogInfo, step.ID, "循环 %d 次，计数变量 %s", count, variable)
	for i := 0; i < count; i++ {
		ec.Variables[variable] = i
		if err := r.runSequence(ctx, wf, ec, step.Body); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) executeWhile(ctx context.Context, wf *types.WorkflowDefinition, ec *ExecutionContext, step *types.WorkflowStep) error {
	maxIterations := step.MaxIterations
	if maxIterations <= 0 {
		maxIterations = r.maxWhileIterations
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		// 每轮重新解析条件，循环体内的变量写入会影响下一轮判定
		resolved := ec.Resolve(step.Condition)
		if !isExactlyTrue(resolved) {
			r.log(ctx, ec, types.LogInfo, step.ID, "while 条件 %q 不再满足，结束循环（共 %d 轮）", resolved, iteration)
			return nil
		}
		if err := r.runSequence(ctx, wf, ec, step.Body); err != nil {
			return err
		}
	}

	// 达到上限视为正常结束，防止失控循环卡死整个工作流
	r.log(ctx, ec, types.LogWarning, step.ID, "while 循环达到最大迭代次数 %d，强制结束", maxIterations)
	return nil
}
