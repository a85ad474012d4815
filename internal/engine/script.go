package engine

import (
	"context"
	"time"

	"droidflow/orchestrator/pkg/logger"
	"droidflow/orchestrator/pkg/ports"
	"droidflow/orchestrator/pkg/types"
)

// executeScriptStep 脚本步骤：直接执行内嵌脚本，或者先用 AI 生成再执行。
// script 和 aiPrompt 必须二选一。
func (r *Runner) executeScriptStep(ctx context.Context, ec *ExecutionContext, step *types.WorkflowStep) error {
	hasScript := step.Script != ""
	hasPrompt := step.AIPrompt != ""
	if hasScript == hasPrompt {
		return newError(ErrCodeBadDefinition, step.ID,
			"script step needs exactly one of script or aiPrompt")
	}

	code := step.Script
	if hasPrompt {
		generated, err := r.generateCode(ctx, ec, step.ID, ec.Resolve(step.AIPrompt))
		if err != nil {
			return err
		}
		code = generated
	} else {
		code = ec.Resolve(code)
	}

	result, err := r.runScript(ctx, ec, step.ID, code)
	if err != nil {
		return err
	}
	if step.SaveTo != "" {
		ec.Variables[step.SaveTo] = result.Result
	}
	return nil
}

// executeScripter AI 自主步骤：把执行历史和上一次失败一起交给代码
// 生成器，生成的代码立刻执行。成功与否都会记入历史，失败还会写入
// LastError，让下一个 AI 步骤能够自我修正。
func (r *Runner) executeScripter(ctx context.Context, ec *ExecutionContext, step *types.WorkflowStep) error {
	prompt := ec.Resolve(step.Prompt)
	if prompt == "" {
		return newError(ErrCodeBadDefinition, step.ID, "scripter step has no prompt")
	}

	start := time.Now()
	code, err := r.generateCode(ctx, ec, step.ID, prompt)
	if err != nil {
		return err
	}

	result, err := r.runScript(ctx, ec, step.ID, code)
	action := truncatePrompt(prompt, 100)
	if err != nil {
		ec.recordAction(step, action, nil, false, time.Since(start))
		ec.LastError = &types.ErrorContext{
			StepID:       step.ID,
			ErrorMessage: err.Error(),
		}
		return err
	}

	ec.recordAction(step, action, result.Result, true, time.Since(start))
	ec.LastError = nil
	if step.SaveTo != "" {
		ec.Variables[step.SaveTo] = result.Result
	}
	r.log(ctx, ec, types.LogSuccess, step.ID, "AI 步骤完成: %s", action)
	return nil
}

func (r *Runner) generateCode(ctx context.Context, ec *ExecutionContext, stepID, prompt string) (string, error) {
	if r.ports.Codegen == nil {
		return "", newError(ErrCodePortError, stepID, "no code generator configured")
	}
	if err := r.consumeEntitlement(ctx, stepID, "codegen"); err != nil {
		return "", err
	}

	code, err := r.ports.Codegen.Generate(ctx, prompt, ec.SharedState())
	if err != nil {
		return "", wrapError(ErrCodePortError, stepID, err, "code generation failed")
	}
	return code, nil
}

func (r *Runner) runScript(ctx context.Context, ec *ExecutionContext, stepID, code string) (*ports.ScriptResult, error) {
	if r.ports.Script == nil {
		return nil, newError(ErrCodePortError, stepID, "no script runner configured")
	}

	result, err := r.ports.Script.Run(ctx, code, ec.Inputs, ec.Variables, ec.DeviceID)
	if err != nil {
		return nil, wrapError(ErrCodePortError, stepID, err, "script execution failed")
	}
	if !result.Success {
		return nil, newError(ErrCodePortError, stepID, "script failed: %s", result.Error)
	}
	return result, nil
}

// consumeEntitlement 在每次 AI 调用前扣减额度。未配置配额端口时不限量。
func (r *Runner) consumeEntitlement(ctx context.Context, stepID, operation string) error {
	if r.ports.Entitlements == nil {
		return nil
	}
	remaining, err := r.ports.Entitlements.Consume(ctx, operation)
	if err != nil {
		return wrapError(ErrCodeEntitlementDenied, stepID, err, "AI quota denied")
	}
	if remaining >= 0 {
		logger.Debug("AI 额度剩余 %d 次", remaining)
	}
	return nil
}
