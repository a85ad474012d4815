package engine

import (
	"context"
	"strings"

	"droidflow/orchestrator/pkg/types"
)

// Truthy 字符串真值判定：
// "true" / "1" / "yes" 为真，"false" / "0" / "no" / 空串为假，
// 其余非空字符串一律为真。大小写不敏感，首尾空白忽略。
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no", "":
		return false
	default:
		return true
	}
}

// isExactlyTrue while 循环的严格判定，只认 "true"/"1"/"yes"
func isExactlyTrue(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

func (r *Runner) executeCondition(ctx context.Context, wf *types.WorkflowDefinition, ec *ExecutionContext, step *types.WorkflowStep) error {
	resolved := ec.Resolve(step.Condition)
	if Truthy(resolved) {
		r.log(ctx, ec, types.LogInfo, step.ID, "条件 %q 为真，执行 then 分支", resolved)
		return r.runSequence(ctx, wf, ec, step.Then)
	}
	r.log(ctx, ec, types.LogInfo, step.ID, "条件 %q 为假，执行 else 分支", resolved)
	return r.runSequence(ctx, wf, ec, step.Else)
}
