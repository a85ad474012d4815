package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"droidflow/orchestrator/pkg/types"
)

func makeTasks(n int) []types.TaskSpec {
	tasks := make([]types.TaskSpec, n)
	for i := range tasks {
		tasks[i] = types.TaskSpec{
			TaskID:   fmt.Sprintf("task-%d", i),
			DeviceID: fmt.Sprintf("device-%d", i),
		}
	}
	return tasks
}

func TestRunManyCountsSuccesses(t *testing.T) {
	coord := New(func(_ context.Context, task *types.TaskSpec) (*types.WorkflowResult, error) {
		ok := task.DeviceID != "device-1"
		return &types.WorkflowResult{Success: ok, DeviceID: task.DeviceID, Error: "boom"}, nil
	})

	report := coord.RunMany(context.Background(), makeTasks(4), 2)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 4)
	// 结果保持任务顺序
	for i, r := range report.Results {
		assert.Equal(t, fmt.Sprintf("task-%d", i), r.TaskID)
	}
	assert.False(t, report.Results[1].Success)
}

func TestRunManyRespectsConcurrencyLimit(t *testing.T) {
	var current, peak int64
	coord := New(func(context.Context, *types.TaskSpec) (*types.WorkflowResult, error) {
		n := atomic.AddInt64(&current, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&current, -1)
		return &types.WorkflowResult{Success: true}, nil
	})

	report := coord.RunMany(context.Background(), makeTasks(12), 3)

	assert.Equal(t, 12, report.Succeeded)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))
}

func TestRunManyPanicBecomesFailedResult(t *testing.T) {
	coord := New(func(_ context.Context, task *types.TaskSpec) (*types.WorkflowResult, error) {
		if task.TaskID == "task-1" {
			panic("device exploded")
		}
		return &types.WorkflowResult{Success: true}, nil
	})

	report := coord.RunMany(context.Background(), makeTasks(3), 3)

	assert.Equal(t, 2, report.Succeeded)
	assert.False(t, report.Results[1].Success)
	assert.Contains(t, report.Results[1].Error, "panicked")
	// 其他任务不受影响
	assert.True(t, report.Results[0].Success)
	assert.True(t, report.Results[2].Success)
}

// 任务之间互不共享状态：一台设备失败不影响其他设备
func TestRunManyTaskIsolation(t *testing.T) {
	coord := New(func(_ context.Context, task *types.TaskSpec) (*types.WorkflowResult, error) {
		if task.DeviceID == "device-0" {
			return nil, errors.New("connection refused")
		}
		return &types.WorkflowResult{Success: true, DeviceID: task.DeviceID}, nil
	})

	report := coord.RunMany(context.Background(), makeTasks(5), 2)

	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Results[0].Error, "connection refused")
}

func TestRunManyProgressCallback(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	coord := New(func(context.Context, *types.TaskSpec) (*types.WorkflowResult, error) {
		return &types.WorkflowResult{Success: true}, nil
	}).WithProgress(func(completed, total int) {
		mu.Lock()
		seen = append(seen, completed)
		mu.Unlock()
		assert.Equal(t, 6, total)
	})

	coord.RunMany(context.Background(), makeTasks(6), 2)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 6)
	assert.Contains(t, seen, 6)
}

func TestRunManyLatencyReport(t *testing.T) {
	coord := New(func(context.Context, *types.TaskSpec) (*types.WorkflowResult, error) {
		time.Sleep(5 * time.Millisecond)
		return &types.WorkflowResult{Success: true}, nil
	})

	report := coord.RunMany(context.Background(), makeTasks(4), 4)

	assert.GreaterOrEqual(t, report.LatencyMaxMS, int64(5))
	assert.GreaterOrEqual(t, report.LatencyP95MS, report.LatencyP50MS)
}

func TestRunManyZeroParallelismDefaultsToSerial(t *testing.T) {
	var current, peak int64
	coord := New(func(context.Context, *types.TaskSpec) (*types.WorkflowResult, error) {
		n := atomic.AddInt64(&current, 1)
		if n > atomic.LoadInt64(&peak) {
			atomic.StoreInt64(&peak, n)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt64(&current, -1)
		return &types.WorkflowResult{Success: true}, nil
	})

	report := coord.RunMany(context.Background(), makeTasks(4), 0)

	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, int64(1), atomic.LoadInt64(&peak))
}
