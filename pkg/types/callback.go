package types

import (
	"context"
	"time"
)

// ExecutionCallback 执行过程回调接口，调用方用它接收运行事件
// （CLI 进度输出、WebSocket 推送等）。实现必须是并发安全的：
// 并行分支和批量执行会从多个 goroutine 触发回调。
type ExecutionCallback interface {
	// OnRunStart 工作流开始执行
	OnRunStart(ctx context.Context, workflow *WorkflowDefinition, deviceID string)

	// OnStepStart 步骤开始执行
	OnStepStart(ctx context.Context, step *WorkflowStep)

	// OnStepComplete 步骤成功完成
	OnStepComplete(ctx context.Context, step *WorkflowStep, duration time.Duration)

	// OnStepFailed 步骤执行失败（在错误策略应用之前触发）
	OnStepFailed(ctx context.Context, step *WorkflowStep, err error)

	// OnLog 产生一条执行日志
	OnLog(ctx context.Context, entry WorkflowLog)

	// OnRunComplete 工作流执行结束（无论成功失败）
	OnRunComplete(ctx context.Context, result *WorkflowResult)
}

// NoopCallback 空实现，不关心事件的调用方使用
type NoopCallback struct{}

func (NoopCallback) OnRunStart(context.Context, *WorkflowDefinition, string)      {}
func (NoopCallback) OnStepStart(context.Context, *WorkflowStep)                   {}
func (NoopCallback) OnStepComplete(context.Context, *WorkflowStep, time.Duration) {}
func (NoopCallback) OnStepFailed(context.Context, *WorkflowStep, error)           {}
func (NoopCallback) OnLog(context.Context, WorkflowLog)                           {}
func (NoopCallback) OnRunComplete(context.Context, *WorkflowResult)               {}

var _ ExecutionCallback = (*NoopCallback)(nil)
