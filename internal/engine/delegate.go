package engine

import (
	"context"

	"droidflow/orchestrator/pkg/types"
)

// executePrompt 自然语言指令步骤，委托给外部代理循环执行。
// 未配置 PromptRunner 时记录警告并视为成功，保证旧定义可以继续跑。
func (r *Runner) executePrompt(ctx context.Context, ec *ExecutionContext, step *types.WorkflowStep) error {
	prompt := ec.Resolve(step.Prompt)
	if r.ports.Prompt == nil {
		r.log(ctx, ec, types.LogWarning, step.ID, "未配置 prompt 执行器，跳过: %s", truncatePrompt(prompt, 100))
		return nil
	}

	result, err := r.ports.Prompt.Run(ctx, prompt, ec.DeviceID)
	if err != nil {
		return wrapError(ErrCodePortError, step.ID, err, "prompt execution failed")
	}
	if step.SaveTo != "" {
		ec.Variables[step.SaveTo] = result
	}
	r.log(ctx, ec, types.LogSuccess, step.ID, "prompt 步骤完成")
	return nil
}

func (r *Runner) executeSkill(ctx context.Context, ec *ExecutionContext, step *types.WorkflowStep) error {
	if step.SkillID == "" {
		return newError(ErrCodeBadDefinition, step.ID, "skill step has no skillId")
	}
	if r.ports.Skills == nil {
		return newError(ErrCodePortError, step.ID, "no skill runner configured")
	}

	result, err := r.ports.Skills.Run(ctx, step.SkillID, ec.DeviceID, ec.Inputs)
	if err != nil {
		return wrapError(ErrCodePortError, step.ID, err, "skill "+step.SkillID+" failed")
	}
	if step.SaveTo != "" {
		ec.Variables[step.SaveTo] = result
	}
	r.log(ctx, ec, types.LogSuccess, step.ID, "技能 %s 执行完成", step.SkillID)
	return nil
}
