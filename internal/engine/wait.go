package engine

import (
	"context"
	"strconv"
	"strings"
	"time"

	"droidflow/orchestrator/pkg/types"
)

const defaultWaitDuration = 1000 * time.Millisecond

// executeWait 等待步骤。waitCondition 存在时轮询条件直到满足或超时，
// 否则睡眠 duration 毫秒。duration 解析失败不报错，回落到默认值。
func (r *Runner) executeWait(ctx context.Context, ec *ExecutionContext, step *types.WorkflowStep) error {
	if step.WaitCondition != "" {
		return r.waitForCondition(ctx, ec, step)
	}

	d := defaultWaitDuration
	if resolved := strings.TrimSpace(ec.Resolve(step.Duration)); resolved != "" {
		if parsed, err := strconv.Atoi(resolved); err == nil && parsed >= 0 {
			d = time.Duration(parsed) * time.Millisecond
		}
	}

	r.log(ctx, ec, types.LogInfo, step.ID, "等待 %s", d)
	if err := r.sleep(ctx, d); err != nil {
		return wrapError(ErrCodeCanceled, step.ID, err, "canceled during wait")
	}
	return nil
}

// waitForCondition 轮询直到条件解析结果恰好为 "true"。
// 这里比条件步骤的真值表更严格：未解析的占位符、"yes"、"1"
// 等非空值都不算满足，只有字面 true 才放行。
func (r *Runner) waitForCondition(ctx context.Context, ec *ExecutionContext, step *types.WorkflowStep) error {
	var waited time.Duration
	for waited < r.waitTimeout {
		if strings.EqualFold(strings.TrimSpace(ec.Resolve(step.WaitCondition)), "true") {
			r.log(ctx, ec, types.LogInfo, step.ID, "等待条件已满足")
			return nil
		}
		if err := r.sleep(ctx, r.waitPoll); err != nil {
			return wrapError(ErrCodeCanceled, step.ID, err, "canceled while polling wait condition")
		}
		waited += r.waitPoll
	}
	return newError(ErrCodeWaitTimeout, step.ID,
		"condition %q not met within %s", step.WaitCondition, r.waitTimeout)
}

// executeExtract 提取步骤目前是占位实现：记录日志并把 saveTo 置空，
// 等状态解析器落地后在这里接上真正的抽取。
func (r *Runner) executeExtract(ctx context.Context, ec *ExecutionContext, step *types.WorkflowStep) error {
	r.log(ctx, ec, types.LogWarning, step.ID, "extract 步骤暂未实现，selector=%s", step.Selector)
	if step.SaveTo != "" {
		ec.Variables[step.SaveTo] = nil
	}
	return nil
}
