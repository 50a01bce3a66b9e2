package domain

import "strings"

// TriggerEvent is the repository event that starts a pipeline run.
type TriggerEvent string

const (
	TriggerPush        TriggerEvent = "push"
	TriggerPullRequest TriggerEvent = "pull_request"
)

func ParseTriggerEvent(value string) (TriggerEvent, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(TriggerPush):
		return TriggerPush, true
	case string(TriggerPullRequest):
		return TriggerPullRequest, true
	default:
		return "", false
	}
}

func (e TriggerEvent) Valid() bool {
	_, ok := ParseTriggerEvent(string(e))
	return ok
}

// RunState is the lifecycle state of a pipeline run.
type RunState string

const (
	RunStatePending   RunState = "pending"
	RunStateRunning   RunState = "running"
	RunStateSucceeded RunState = "succeeded"
	RunStateFailed    RunState = "failed"
)

func ParseRunState(value string) (RunState, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(RunStatePending):
		return RunStatePending, true
	case string(RunStateRunning):
		return RunStateRunning, true
	case string(RunStateSucceeded):
		return RunStateSucceeded, true
	case string(RunStateFailed):
		return RunStateFailed, true
	default:
		return "", false
	}
}

func (s RunState) Valid() bool {
	_, ok := ParseRunState(string(s))
	return ok
}

func (s RunState) Terminal() bool {
	return s == RunStateSucceeded || s == RunStateFailed
}

// CanTransitionRunState enforces forward-only state progression. Terminal
// states accept no further transitions.
func CanTransitionRunState(current, next RunState) bool {
	if !current.Valid() || !next.Valid() {
		return false
	}
	if current == next {
		return true
	}
	if current.Terminal() {
		return false
	}
	return runStateOrder(current) < runStateOrder(next)
}

func runStateOrder(state RunState) int {
	switch state {
	case RunStatePending:
		return 1
	case RunStateRunning:
		return 2
	case RunStateSucceeded, RunStateFailed:
		return 3
	default:
		return 0
	}
}

// StepStatus is the lifecycle state of a single step execution.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
)

func ParseStepStatus(value string) (StepStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(StepStatusPending):
		return StepStatusPending, true
	case string(StepStatusRunning):
		return StepStatusRunning, true
	case string(StepStatusSucceeded):
		return StepStatusSucceeded, true
	case string(StepStatusFailed):
		return StepStatusFailed, true
	default:
		return "", false
	}
}

func (s StepStatus) Valid() bool {
	_, ok := ParseStepStatus(string(s))
	return ok
}

func (s StepStatus) Terminal() bool {
	return s == StepStatusSucceeded || s == StepStatusFailed
}
