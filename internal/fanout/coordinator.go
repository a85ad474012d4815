// Package fanout 把同一批任务并发分发到多台设备，
// 用带权信号量限制并发度，并汇总延迟分布。
package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"golang.org/x/sync/semaphore"

	"droidflow/orchestrator/pkg/logger"
	"droidflow/orchestrator/pkg/types"
)

// TaskFunc executes one task and returns its workflow result.
type TaskFunc func(ctx context.Context, task *types.TaskSpec) (*types.WorkflowResult, error)

// ProgressFunc is invoked after each task finishes, with completed and
// total counts. May be nil.
type ProgressFunc func(completed, total int)

// Coordinator 并发任务协调器。每个任务独享自己的执行上下文，
// 任务之间没有共享可变状态，失败互不影响。
type Coordinator struct {
	run      TaskFunc
	progress ProgressFunc
}

// New creates a Coordinator around a task function.
func New(run TaskFunc) *Coordinator {
	return &Coordinator{run: run}
}

// WithProgress sets a progress callback and returns the coordinator.
func (c *Coordinator) WithProgress(fn ProgressFunc) *Coordinator {
	c.progress = fn
	return c
}

// RunMany executes all tasks with at most maxParallel running at once.
// Every task runs to completion; a panicking task becomes a failed
// TaskResult instead of tearing down the batch. Results keep the order
// of the input tasks.
func (c *Coordinator) RunMany(ctx context.Context, tasks []types.TaskSpec, maxParallel int) *types.BatchReport {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	start := time.Now()

	sem := semaphore.NewWeighted(int64(maxParallel))
	results := make([]types.TaskResult, len(tasks))

	// 1ms..10min，3 位有效数字足够报表用
	hist := hdrhistogram.New(1, int64(10*time.Minute/time.Millisecond), 3)
	var histMu sync.Mutex
	var completed int

	var wg sync.WaitGroup
	for i := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = canceledResult(&tasks[i], err)
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)

			results[i] = c.runOne(ctx, &tasks[i])

			histMu.Lock()
			_ = hist.RecordValue(results[i].DurationMS)
			completed++
			done := completed
			histMu.Unlock()
			if c.progress != nil {
				c.progress(done, len(tasks))
			}
		}(i)
	}
	wg.Wait()

	report := &types.BatchReport{
		Total:        len(tasks),
		Results:      results,
		DurationMS:   time.Since(start).Milliseconds(),
		LatencyP50MS: hist.ValueAtQuantile(50),
		LatencyP95MS: hist.ValueAtQuantile(95),
		LatencyMaxMS: hist.Max(),
	}
	for _, r := range results {
		if r.Success {
			report.Succeeded++
		}
	}
	report.Failed = report.Total - report.Succeeded

	logger.Info("批量执行完成: %d/%d 成功，耗时 %dms", report.Succeeded, report.Total, report.DurationMS)
	return report
}

// runOne 执行单个任务并兜住 panic
func (c *Coordinator) runOne(ctx context.Context, task *types.TaskSpec) (result types.TaskResult) {
	start := time.Now()
	result = types.TaskResult{TaskID: task.TaskID, DeviceID: task.DeviceID}

	defer func() {
		if p := recover(); p != nil {
			result.Success = false
			result.Error = fmt.Sprintf("task panicked: %v", p)
			result.DurationMS = time.Since(start).Milliseconds()
			logger.Error("任务 %s 发生 panic: %v", task.TaskID, p)
		}
	}()

	wr, err := c.run(ctx, task)
	result.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Result = wr
	result.Success = wr != nil && wr.Success
	if wr != nil && !wr.Success {
		result.Error = wr.Error
	}
	return result
}

func canceledResult(task *types.TaskSpec, err error) types.TaskResult {
	return types.TaskResult{
		TaskID:   task.TaskID,
		DeviceID: task.DeviceID,
		Success:  false,
		Error:    "not started: " + err.Error(),
	}
}
