package repo

import (
	"context"
	"errors"
	"time"

	"github.com/gamelog-labs/gamelog-go/internal/domain"
)

// ErrNotFound is returned when a record does not exist. Stores translate
// driver-level sentinel errors into this one so handlers can map it to 404.
var ErrNotFound = errors.New("record not found")

// ErrInvalidTransition is returned when a run status write would move the
// run backward, or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid run state transition")

type DatasetFilter struct {
	Name  string
	Limit int
}

type DatasetVersionFilter struct {
	DatasetID string
	Limit     int
}

type RunFilter struct {
	Event  string
	Branch string
	Status string
	Limit  int
}

// RunFailure carries the failing step details recorded when a run ends in
// the failed state.
type RunFailure struct {
	StepName  string
	StepIndex int
	ExitCode  int
}

// DatasetRepository manages datasets and their immutable versions.
type DatasetRepository interface {
	CreateDataset(ctx context.Context, dataset domain.Dataset) error
	GetDataset(ctx context.Context, id string) (domain.Dataset, error)
	ListDatasets(ctx context.Context, filter DatasetFilter) ([]domain.Dataset, error)

	CreateDatasetVersion(ctx context.Context, version domain.DatasetVersion) error
	GetDatasetVersion(ctx context.Context, id string) (domain.DatasetVersion, error)
	ListDatasetVersions(ctx context.Context, filter DatasetVersionFilter) ([]domain.DatasetVersion, error)
	NextDatasetVersionOrdinal(ctx context.Context, datasetID string) (int64, error)
}

// RunRepository manages pipeline run state with immutable identity.
type RunRepository interface {
	CreateRun(ctx context.Context, run domain.PipelineRun) error
	GetRun(ctx context.Context, id string) (domain.PipelineRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]domain.PipelineRun, error)
	UpdateRunStatus(ctx context.Context, id string, status domain.RunState, endedAt *time.Time, failure *RunFailure) error
}

// StepExecutionRepository records step outcomes as a run progresses. Inserts
// are idempotent on (run_id, step_index).
type StepExecutionRepository interface {
	InsertStep(ctx context.Context, step domain.StepExecution) (domain.StepExecution, bool, error)
	FinishStep(ctx context.Context, runID string, index int, status domain.StepStatus, exitCode int, outputTail string, finishedAt time.Time) error
	ListByRun(ctx context.Context, runID string) ([]domain.StepExecution, error)
}
