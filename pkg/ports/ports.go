// Package ports 定义解释器核心与外部世界之间的抽象边界。
// 核心只依赖这些接口，具体实现（HTTP 控制面、adb、LLM、配额服务）
// 在 internal/ 下，由调用方注入。
package ports

import (
	"context"

	"droidflow/orchestrator/pkg/types"
)

// DeviceController executes a single named device action.
// Params are already template-resolved strings. The returned string is a
// human readable outcome message that ends up in the execution logs.
type DeviceController interface {
	Invoke(ctx context.Context, deviceID, action string, params map[string]string) (string, error)
}

// ScriptResult is what a script run produced. Error is set when the
// script itself raised; a transport-level failure is returned as a Go error.
type ScriptResult struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ScriptRunner runs a piece of user or AI generated script against a device,
// with the execution context exposed as read-only bindings.
type ScriptRunner interface {
	Run(ctx context.Context, code string, inputs, variables map[string]any, deviceID string) (*ScriptResult, error)
}

// SharedState AI 代码生成时可见的执行状态快照
type SharedState struct {
	Inputs    map[string]any       `json:"inputs"`
	Variables map[string]any       `json:"variables"`
	DeviceID  string               `json:"deviceId"`
	History   []types.ActionRecord `json:"history"`
	Plan      string               `json:"plan,omitempty"`
	LastError *types.ErrorContext  `json:"lastError,omitempty"`
}

// CodeGenerator turns a natural language prompt plus the current shared
// state into runnable script code.
type CodeGenerator interface {
	Generate(ctx context.Context, prompt string, state *SharedState) (string, error)
}

// Entitlements 配额接口。每次 AI 步骤执行前消费一次额度，
// remaining < 0 表示不限量。额度耗尽返回错误。
type Entitlements interface {
	Consume(ctx context.Context, operation string) (remaining int, err error)
}

// PromptRunner executes a free-form natural language instruction against
// a device (an external agent loop). Optional: the engine degrades
// gracefully when no runner is configured.
type PromptRunner interface {
	Run(ctx context.Context, prompt, deviceID string) (any, error)
}

// SkillRunner executes a pre-registered reusable sub-workflow by id.
type SkillRunner interface {
	Run(ctx context.Context, skillID, deviceID string, inputs map[string]any) (any, error)
}
