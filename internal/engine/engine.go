// Package engine 实现工作流解释器：对步骤树做递归调度，
// 维护执行上下文，应用错误策略，并通过端口接口触达外部世界。
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"droidflow/orchestrator/pkg/logger"
	"droidflow/orchestrator/pkg/ports"
	"droidflow/orchestrator/pkg/types"
)

const (
	// defaultStepDelay 动作步骤之间的默认间隔
	defaultStepDelay = 800 * time.Millisecond
	// jitterRatio 延迟抖动幅度，实际睡眠在 [base*(1-r), base*(1+r)] 内均匀采样
	jitterRatio = 0.15

	defaultRetries    = 3
	defaultRetryDelay = time.Second

	defaultMaxWhileIterations = 100

	waitPollInterval     = 500 * time.Millisecond
	waitConditionTimeout = 30 * time.Second
)

// Ports bundles the external capabilities a Runner needs. Device is
// required for action steps; everything else is optional and the
// corresponding step types fail (or degrade) when the port is absent.
type Ports struct {
	Device       ports.DeviceController
	Script       ports.ScriptRunner
	Codegen      ports.CodeGenerator
	Entitlements ports.Entitlements
	Prompt       ports.PromptRunner
	Skills       ports.SkillRunner
}

// Runner 工作流执行器。一个 Runner 可以被多个 goroutine 并发使用，
// 每次 Run 都有独立的执行上下文。
type Runner struct {
	ports    Ports
	callback types.ExecutionCallback

	sleep func(ctx context.Context, d time.Duration) error

	rngMu sync.Mutex
	rng   *rand.Rand

	maxWhileIterations int
	retryDelay         time.Duration
	waitPoll           time.Duration
	waitTimeout        time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithCallback 设置执行事件回调
func WithCallback(cb types.ExecutionCallback) Option {
	return func(r *Runner) {
		if cb != nil {
			r.callback = cb
		}
	}
}

// WithSleep replaces the sleep function. Tests use this to run
// time-dependent workflows instantly.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = sleep }
}

// WithRandSeed makes jitter deterministic.
func WithRandSeed(seed int64) Option {
	return func(r *Runner) { r.rng = rand.New(rand.NewSource(seed)) }
}

// WithMaxWhileIterations overrides the default while-loop safety cap.
func WithMaxWhileIterations(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxWhileIterations = n
		}
	}
}

// WithWaitLimits overrides the wait-condition poll interval and timeout.
func WithWaitLimits(poll, timeout time.Duration) Option {
	return func(r *Runner) {
		if poll > 0 {
			r.waitPoll = poll
		}
		if timeout > 0 {
			r.waitTimeout = timeout
		}
	}
}

// WithRetryDelay overrides the pause between retry attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Runner) { r.retryDelay = d }
}

// New creates a Runner with the given ports.
func New(p Ports, opts ...Option) *Runner {
	r := &Runner{
		ports:    p,
		callback: types.NoopCallback{},
		sleep:    sleepContext,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),

		maxWhileIterations: defaultMaxWhileIterations,
		retryDelay:         defaultRetryDelay,
		waitPoll:           waitPollInterval,
		waitTimeout:        waitConditionTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a workflow definition against one device and returns the
// final result. The definition is never mutated; all state lives in the
// per-run execution context. Run never returns an error: failures are
// reported through WorkflowResult.
func (r *Runner) Run(ctx context.Context, wf *types.WorkflowDefinition, inputs map[string]any, deviceID string) *types.WorkflowResult {
	start := time.Now()

	if wf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(wf.Timeout)*time.Second)
		defer cancel()
	}

	ec := newExecutionContext(wf, inputs, deviceID)
	r.callback.OnRunStart(ctx, wf, deviceID)
	r.log(ctx, ec, types.LogInfo, "", "开始执行工作流 %q，设备 %s", wf.Name, deviceID)

	err := r.runSequence(ctx, wf, ec, wf.Steps)

	result := &types.WorkflowResult{
		Success:    err == nil,
		WorkflowID: wf.ID,
		DeviceID:   deviceID,
		Outputs:    ec.collectOutputs(wf.Outputs),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = err.Error()
		r.log(ctx, ec, types.LogError, ec.CurrentStepID, "工作流失败: %v", err)
	} else {
		r.log(ctx, ec, types.LogSuccess, "", "工作流执行完成，耗时 %dms", result.DurationMS)
	}
	result.Logs = ec.Logs

	r.callback.OnRunComplete(ctx, result)
	return result
}

// runSequence executes steps strictly in definition order. The same
// entry point serves the top level and every nested list, so nested
// steps get identical delay and on_error semantics.
func (r *Runner) runSequence(ctx context.Context, wf *types.WorkflowDefinition, ec *ExecutionContext, steps []types.WorkflowStep) error {
	for i := range steps {
		if err := r.runStep(ctx, wf, ec, &steps[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, wf *types.WorkflowDefinition, ec *ExecutionContext, step *types.WorkflowStep) error {
	if err := ctx.Err(); err != nil {
		return wrapError(ErrCodeCanceled, step.ID, err, "execution canceled")
	}

	ec.CurrentStepID = step.ID
	r.callback.OnStepStart(ctx, step)
	r.log(ctx, ec, types.LogInfo, step.ID, "执行步骤: %s", step.DisplayName())

	start := time.Now()
	err := r.executeStep(ctx, wf, ec, step)
	if err == nil {
		return r.completeStep(ctx, wf, step, time.Since(start))
	}

	r.callback.OnStepFailed(ctx, step, err)
	return r.applyErrorPolicy(ctx, wf, ec, step, err)
}

// completeStep 上报步骤完成并在动作步骤后插入抖动延迟。
// 正常路径和重试成功路径都从这里收尾。
func (r *Runner) completeStep(ctx context.Context, wf *types.WorkflowDefinition, step *types.WorkflowStep, duration time.Duration) error {
	r.callback.OnStepComplete(ctx, step, duration)
	if step.Type == types.StepAction {
		if derr := r.sleep(ctx, r.jitteredDelay(wf, step)); derr != nil {
			return wrapError(ErrCodeCanceled, step.ID, derr, "canceled during step delay")
		}
	}
	return nil
}

// applyErrorPolicy resolves a step failure according to the step's
// on_error policy. Default is abort.
func (r *Runner) applyErrorPolicy(ctx context.Context, wf *types.WorkflowDefinition, ec *ExecutionContext, step *types.WorkflowStep, cause error) error {
	policy := step.OnError
	if policy == nil {
		return cause
	}

	switch policy.Strategy {
	case types.ErrorStrategySkip:
		r.log(ctx, ec, types.LogWarning, step.ID, "步骤失败，按策略跳过: %v", cause)
		return nil

	case types.ErrorStrategyRetry:
		retries := policy.Retries
		if retries <= 0 {
			retries = defaultRetries
		}
		for attempt := 1; attempt <= retries; attempt++ {
			if err := r.sleep(ctx, r.retryDelay); err != nil {
				return wrapError(ErrCodeCanceled, step.ID, err, "canceled during retry delay")
			}
			r.log(ctx, ec, types.LogWarning, step.ID, "重试 %d/%d", attempt, retries)
			attemptStart := time.Now()
			err := r.executeStep(ctx, wf, ec, step)
			if err == nil {
				return r.completeStep(ctx, wf, step, time.Since(attemptStart))
			}
			cause = err
		}
		return fmt.Errorf("step %s failed after %d retries: %w", step.ID, retries, cause)

	case types.ErrorStrategyFallback:
		r.log(ctx, ec, types.LogWarning, step.ID, "步骤失败，执行降级分支: %v", cause)
		if err := r.runSequence(ctx, wf, ec, policy.Fallback); err != nil {
			r.log(ctx, ec, types.LogWarning, step.ID, "降级分支也失败: %v", err)
		}
		// 降级分支的结果不决定成败，主流程继续
		return nil

	default: // abort
		return cause
	}
}

// executeStep 按步骤类型递归调度
func (r *Runner) executeStep(ctx context.Context, wf *types.WorkflowDefinition, ec *ExecutionContext, step *types.WorkflowStep) error {
	switch step.Type {
	case types.StepAction:
		return r.executeAction(ctx, ec, step)
	case types.StepCondition:
		return r.executeCondition(ctx, wf, ec, step)
	case types.StepLoop:
		return r.executeLoop(ctx, wf, ec, step)
	case types.StepWhile:
		return r.executeWhile(ctx, wf, ec, step)
	case types.StepParallel:
		return r.executeParallel(ctx, wf, ec, step)
	case types.StepPython:
		return r.executeScriptStep(ctx, ec, step)
	case types.StepScripter:
		return r.executeScripter(ctx, ec, step)
	case types.StepPrompt:
		return r.executePrompt(ctx, ec, step)
	case types.StepWait:
		return r.executeWait(ctx, ec, step)
	case types.StepExtract:
		return r.executeExtract(ctx, ec, step)
	case types.StepSkill:
		return r.executeSkill(ctx, ec, step)
	default:
		return newError(ErrCodeBadDefinition, step.ID, "unknown step type %q", step.Type)
	}
}

// jitteredDelay 计算动作步骤之后的抖动延迟。
// 基准值优先级：步骤 delayAfter > 工作流 stepDelay > 引擎默认值。
func (r *Runner) jitteredDelay(wf *types.WorkflowDefinition, step *types.WorkflowStep) time.Duration {
	base := defaultStepDelay
	if wf.StepDelay > 0 {
		base = time.Duration(wf.StepDelay) * time.Millisecond
	}
	if step.DelayAfter > 0 {
		base = time.Duration(step.DelayAfter) * time.Millisecond
	}
	return r.jitter(base)
}

func (r *Runner) jitter(base time.Duration) time.Duration {
	variance := float64(base) * jitterRatio
	r.rngMu.Lock()
	offset := (r.rng.Float64()*2 - 1) * variance
	r.rngMu.Unlock()
	return time.Duration(float64(base) + offset)
}

// log appends to the run log and mirrors the entry to the process logger
// and the callback.
func (r *Runner) log(ctx context.Context, ec *ExecutionContext, level types.LogLevel, stepID, format string, args ...any) {
	entry := types.WorkflowLog{
		Timestamp: time.Now(),
		Level:     level,
		StepID:    stepID,
		Message:   fmt.Sprintf(format, args...),
	}
	ec.Logs = append(ec.Logs, entry)

	switch level {
	case types.LogError:
		logger.Error("%s", entry.Message)
	case types.LogWarning:
		logger.Warn("%s", entry.Message)
	default:
		logger.Debug("%s", entry.Message)
	}
	r.callback.OnLog(ctx, entry)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
