package engine

import (
	"context"
	"fmt"
	"sync"

	"droidflow/orchestrator/pkg/types"
)

// executeParallel runs every branch concurrently on an isolated variable
// scope, waits for all of them, then merges scopes back in branch
// declaration order. The step fails with the first failing branch's error
// (by declaration order), but only after every branch has finished.
func (r *Runner) executeParallel(ctx context.Context, wf *types.WorkflowDefinition, ec *ExecutionContext, step *types.WorkflowStep) error {
	if len(step.Branches) == 0 {
		return nil
	}

	r.log(ctx, ec, types.LogInfo, step.ID, "并行执行 %d 个分支", len(step.Branches))

	scopes := make([]*ExecutionContext, len(step.Branches))
	errs := make([]error, len(step.Branches))

	var wg sync.WaitGroup
	for i := range step.Branches {
		scopes[i] = ec.branchScope()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() {
				if p := recover(); p != nil {
					errs[i] = newError(ErrCodePortError, step.ID, "branch %d panicked: %v", i, p)
				}
			}()
			errs[i] = r.runSequence(ctx, wf, scopes[i], step.Branches[i])
		}(i)
	}
	wg.Wait()

	for i := range scopes {
		ec.mergeBranch(scopes[i])
	}
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("parallel branch %d failed: %w", i, err)
		}
	}
	return nil
}
