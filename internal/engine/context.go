package engine

import (
	"time"

	"droidflow/orchestrator/internal/template"
	"droidflow/orchestrator/pkg/ports"
	"droidflow/orchestrator/pkg/types"
)

// ExecutionContext 单次工作流执行的全部可变状态。
// 定义本身不可变，步骤之间只通过这里传递数据。
// 单次执行内没有并发访问（并行分支使用各自的分支副本），
// 所以不需要加锁。
type ExecutionContext struct {
	Inputs    map[string]any
	Variables map[string]any
	DeviceID  string

	CurrentStepID string

	Logs    []types.WorkflowLog
	History []types.ActionRecord

	// Plan 和 LastError 是 AI 步骤的共享状态
	Plan      string
	LastError *types.ErrorContext
}

func newExecutionContext(wf *types.WorkflowDefinition, inputs map[string]any, deviceID string) *ExecutionContext {
	merged := make(map[string]any, len(inputs))
	for _, decl := range wf.Inputs {
		if decl.Default != nil {
			merged[decl.Key] = decl.Default
		}
	}
	for k, v := range inputs {
		merged[k] = v
	}

	return &ExecutionContext{
		Inputs:    merged,
		Variables: make(map[string]any),
		DeviceID:  deviceID,
		// 工作流描述作为初始计划，供 AI 步骤的共享状态使用
		Plan: wf.Description,
	}
}

// Resolve expands placeholders against the current inputs and variables.
func (ec *ExecutionContext) Resolve(s string) string {
	return template.Resolve(s, ec.Inputs, ec.Variables)
}

// ResolveParams resolves an action's params map into plain strings.
func (ec *ExecutionContext) ResolveParams(params map[string]any) map[string]string {
	return template.ResolveParams(params, ec.Inputs, ec.Variables)
}

// SharedState 生成传给 AI 端口的状态快照
func (ec *ExecutionContext) SharedState() *ports.SharedState {
	return &ports.SharedState{
		Inputs:    ec.Inputs,
		Variables: ec.Variables,
		DeviceID:  ec.DeviceID,
		History:   ec.History,
		Plan:      ec.Plan,
		LastError: ec.LastError,
	}
}

// branchScope 为并行分支创建隔离副本：变量写入互不可见，
// 日志和历史各自累积，执行完成后按分支声明顺序合并回父上下文。
func (ec *ExecutionContext) branchScope() *ExecutionContext {
	variables := make(map[string]any, len(ec.Variables))
	for k, v := range ec.Variables {
		variables[k] = v
	}
	return &ExecutionContext{
		Inputs:    ec.Inputs,
		Variables: variables,
		DeviceID:  ec.DeviceID,
		Plan:      ec.Plan,
		LastError: ec.LastError,
	}
}

// mergeBranch folds a finished branch scope back into the parent.
// Variable writes land in branch declaration order, so later branches
// win on conflicting keys.
func (ec *ExecutionContext) mergeBranch(branch *ExecutionContext) {
	for k, v := range branch.Variables {
		ec.Variables[k] = v
	}
	ec.Logs = append(ec.Logs, branch.Logs...)
	ec.History = append(ec.History, branch.History...)
	if branch.LastError != nil {
		ec.LastError = branch.LastError
	}
}

// collectOutputs picks the declared output keys out of the final state,
// preferring variables over inputs.
func (ec *ExecutionContext) collectOutputs(keys []string) map[string]any {
	outputs := make(map[string]any, len(keys))
	for _, key := range keys {
		if v, ok := ec.Variables[key]; ok {
			outputs[key] = v
			continue
		}
		if v, ok := ec.Inputs[key]; ok {
			outputs[key] = v
		}
	}
	return outputs
}

func (ec *ExecutionContext) recordAction(step *types.WorkflowStep, action string, result any, success bool, duration time.Duration) {
	ec.History = append(ec.History, types.ActionRecord{
		StepID:     step.ID,
		StepType:   step.Type,
		Action:     action,
		Result:     result,
		Success:    success,
		Timestamp:  time.Now(),
		DurationMS: duration.Milliseconds(),
	})
}

func truncatePrompt(prompt string, limit int) string {
	runes := []rune(prompt)
	if len(runes) <= limit {
		return prompt
	}
	return string(runes[:limit])
}
