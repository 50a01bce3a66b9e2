package domain

import (
	"errors"
	"strings"
	"time"
)

// PipelineRun represents one execution of the configured pipeline, created
// when a trigger event matches the branch filter.
type PipelineRun struct {
	ID              string
	Event           TriggerEvent
	Branch          string
	Commit          string
	Status          RunState
	StartedAt       time.Time
	EndedAt         *time.Time
	FailedStep      string
	FailedStepIndex *int
	FailedExitCode  *int
	Metadata        Metadata
	CreatedBy       string
	IntegritySHA256 string
}

// StepExecution records the outcome of one step within a run. Steps execute
// strictly in index order; nothing after a failed step is recorded.
type StepExecution struct {
	ID         string
	RunID      string
	Index      int
	Name       string
	Status     StepStatus
	ExitCode   int
	OutputTail string
	StartedAt  time.Time
	FinishedAt *time.Time
}

func (r PipelineRun) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("run id is required")
	}
	if !r.Event.Valid() {
		return errors.New("trigger event is required")
	}
	if strings.TrimSpace(r.Branch) == "" {
		return errors.New("branch is required")
	}
	if !r.Status.Valid() {
		return errors.New("status is required")
	}
	return nil
}

func (s StepExecution) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("step execution id is required")
	}
	if strings.TrimSpace(s.RunID) == "" {
		return errors.New("run id is required")
	}
	if s.Index < 0 {
		return errors.New("step index must be >= 0")
	}
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("step name is required")
	}
	if !s.Status.Valid() {
		return errors.New("step status is required")
	}
	return nil
}
