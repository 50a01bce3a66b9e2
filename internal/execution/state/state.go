package state

import (
	"github.com/gamelog-labs/gamelog-go/internal/domain"
)

// DeriveRunState recomputes the canonical run state from persisted step
// executions. stepCount is the number of steps the pipeline spec declares.
// It is the read-side counterpart of the forward-only transition rules: a
// run with no recorded executions has not started, any failed step fails the
// whole run, and a run only succeeds once every declared step has succeeded.
func DeriveRunState(steps []domain.StepExecution, stepCount int) domain.RunState {
	if len(steps) == 0 {
		return domain.RunStatePending
	}

	succeeded := 0
	for _, step := range steps {
		switch step.Status {
		case domain.StepStatusFailed:
			return domain.RunStateFailed
		case domain.StepStatusSucceeded:
			succeeded++
		}
	}
	if stepCount > 0 && succeeded == stepCount {
		return domain.RunStateSucceeded
	}
	return domain.RunStateRunning
}

// FailedStep returns the first failed execution, if any. Step executions are
// ordered by index, so the first failure is the one that aborted the run.
func FailedStep(steps []domain.StepExecution) (domain.StepExecution, bool) {
	for _, step := range steps {
		if step.Status == domain.StepStatusFailed {
			return step, true
		}
	}
	return domain.StepExecution{}, false
}
