package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gamelog-labs/gamelog-go/internal/domain"
	"github.com/gamelog-labs/gamelog-go/internal/execution/state"
	"github.com/gamelog-labs/gamelog-go/internal/integrity"
	"github.com/gamelog-labs/gamelog-go/internal/pipeline"
	"github.com/gamelog-labs/gamelog-go/internal/platform/auditlog"
	"github.com/gamelog-labs/gamelog-go/internal/repo"
)

type auditContext struct {
	Actor     string
	RequestID string
	IP        net.IP
	UserAgent string
	Path      string
	Service   string
}

type pipelineService struct {
	logger   *slog.Logger
	spec     pipeline.Spec
	runner   *pipeline.Runner
	runs     repo.RunRepository
	steps    repo.StepExecutionRepository
	audit    auditlog.QueryRower
	reporter *statusReporter
	now      func() time.Time

	// wg tracks in-flight run goroutines so shutdown can drain them.
	wg sync.WaitGroup
}

func newPipelineService(logger *slog.Logger, spec pipeline.Spec, runner *pipeline.Runner, runs repo.RunRepository, steps repo.StepExecutionRepository, audit auditlog.QueryRower, reporter *statusReporter) *pipelineService {
	return &pipelineService{
		logger:   logger,
		spec:     spec,
		runner:   runner,
		runs:     runs,
		steps:    steps,
		audit:    audit,
		reporter: reporter,
		now:      time.Now,
	}
}

// HandleEvent records a run for a matching trigger and starts it in its own
// goroutine. Non-matching events are acknowledged without a run.
func (s *pipelineService) HandleEvent(ctx context.Context, event domain.TriggerEvent, branch, commit string, auditCtx auditContext) (domain.PipelineRun, bool, error) {
	if s == nil || s.runs == nil {
		return domain.PipelineRun{}, false, fmt.Errorf("pipeline service not initialized")
	}
	branch = strings.TrimSpace(branch)
	if !s.spec.Matches(event, branch) {
		s.logger.Info("event ignored", "event", string(event), "branch", branch)
		return domain.PipelineRun{}, false, nil
	}

	now := s.now().UTC()
	runID := uuid.NewString()

	type integrityInput struct {
		RunID     string    `json:"run_id"`
		Event     string    `json:"event"`
		Branch    string    `json:"branch"`
		Commit    string    `json:"commit,omitempty"`
		Status    string    `json:"status"`
		StartedAt time.Time `json:"started_at"`
		CreatedBy string    `json:"created_by"`
	}
	integritySum, err := integrity.RecordSHA256(integrityInput{
		RunID:     runID,
		Event:     string(event),
		Branch:    branch,
		Commit:    commit,
		Status:    string(domain.RunStatePending),
		StartedAt: now,
		CreatedBy: auditCtx.Actor,
	})
	if err != nil {
		return domain.PipelineRun{}, false, fmt.Errorf("integrity: %w", err)
	}

	run := domain.PipelineRun{
		ID:              runID,
		Event:           event,
		Branch:          branch,
		Commit:          strings.TrimSpace(commit),
		Status:          domain.RunStatePending,
		StartedAt:       now,
		Metadata:        domain.Metadata{"pipeline": s.spec.Name},
		CreatedBy:       auditCtx.Actor,
		IntegritySHA256: integritySum,
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return domain.PipelineRun{}, false, err
	}
	s.appendAudit(ctx, "pipeline_run.create", runID, auditCtx, map[string]any{
		"run_id": runID,
		"event":  string(event),
		"branch": branch,
		"commit": commit,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// The run outlives the webhook request.
		s.execute(context.WithoutCancel(ctx), run)
	}()
	return run, true, nil
}

func (s *pipelineService) execute(ctx context.Context, run domain.PipelineRun) {
	if err := s.runs.UpdateRunStatus(ctx, run.ID, domain.RunStateRunning, nil, nil); err != nil {
		s.logger.Error("run transition to running failed", "run_id", run.ID, "error", err)
		return
	}

	hooks := pipeline.Hooks{
		StepStarted: func(ctx context.Context, index int, step pipeline.Step) {
			_, _, err := s.steps.InsertStep(ctx, domain.StepExecution{
				RunID:     run.ID,
				Index:     index,
				Name:      step.Name,
				Status:    domain.StepStatusRunning,
				StartedAt: s.now().UTC(),
			})
			if err != nil {
				s.logger.Error("step execution insert failed", "run_id", run.ID, "step_index", index, "error", err)
			}
		},
		StepFinished: func(ctx context.Context, result pipeline.StepResult) {
			status := domain.StepStatusSucceeded
			if !result.Succeeded() {
				status = domain.StepStatusFailed
			}
			if err := s.steps.FinishStep(ctx, run.ID, result.Index, status, result.ExitCode, result.OutputTail, result.FinishedAt); err != nil {
				s.logger.Error("step execution finish failed", "run_id", run.ID, "step_index", result.Index, "error", err)
			}
		},
	}

	result, err := s.runner.Run(ctx, s.spec, hooks)
	ended := s.now().UTC()
	if err != nil {
		s.logger.Error("run aborted", "run_id", run.ID, "error", err)
		failure := &repo.RunFailure{StepName: "", StepIndex: 0, ExitCode: -1}
		if updateErr := s.runs.UpdateRunStatus(ctx, run.ID, domain.RunStateFailed, &ended, failure); updateErr != nil {
			s.logger.Error("run transition to failed failed", "run_id", run.ID, "error", updateErr)
		}
		return
	}

	var failure *repo.RunFailure
	if result.State == domain.RunStateFailed && result.FailedStepIndex != nil {
		failure = &repo.RunFailure{
			StepName:  s.spec.Steps[*result.FailedStepIndex].Name,
			StepIndex: *result.FailedStepIndex,
			ExitCode:  exitCodeOrZero(result.FailedExitCode),
		}
	}
	if err := s.runs.UpdateRunStatus(ctx, run.ID, result.State, &ended, failure); err != nil {
		s.logger.Error("run terminal transition failed", "run_id", run.ID, "error", err)
		return
	}

	run.Status = result.State
	run.EndedAt = &ended
	if failure != nil {
		run.FailedStep = failure.StepName
		run.FailedStepIndex = result.FailedStepIndex
		run.FailedExitCode = result.FailedExitCode
	}
	s.reporter.Report(ctx, run)
	s.logger.Info("run finished", "run_id", run.ID, "status", string(result.State))
}

// Drain waits for in-flight runs during shutdown.
func (s *pipelineService) Drain() {
	s.wg.Wait()
}

// GetRun returns a run with its step records and the state derived from
// them. The derived state guards against a run row that lags its steps.
func (s *pipelineService) GetRun(ctx context.Context, runID string) (domain.PipelineRun, []domain.StepExecution, domain.RunState, error) {
	if s == nil || s.runs == nil || s.steps == nil {
		return domain.PipelineRun{}, nil, "", fmt.Errorf("pipeline service not initialized")
	}
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return domain.PipelineRun{}, nil, "", err
	}
	steps, err := s.steps.ListByRun(ctx, runID)
	if err != nil {
		return domain.PipelineRun{}, nil, "", err
	}
	derived := state.DeriveRunState(steps, len(s.spec.Steps))
	return run, steps, derived, nil
}

func (s *pipelineService) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.PipelineRun, error) {
	if s == nil || s.runs == nil {
		return nil, fmt.Errorf("pipeline service not initialized")
	}
	return s.runs.ListRuns(ctx, filter)
}

func (s *pipelineService) appendAudit(ctx context.Context, action, runID string, auditCtx auditContext, payload map[string]any) {
	if s.audit == nil {
		return
	}
	payload["service"] = auditCtx.Service
	payload["request_path"] = auditCtx.Path
	_, _ = auditlog.Insert(ctx, s.audit, auditlog.Event{
		OccurredAt:   s.now().UTC(),
		Actor:        auditCtx.Actor,
		Action:       action,
		ResourceType: "pipeline_run",
		ResourceID:   runID,
		RequestID:    auditCtx.RequestID,
		IP:           auditCtx.IP,
		UserAgent:    auditCtx.UserAgent,
		Payload:      payload,
	})
}

func exitCodeOrZero(code *int) int {
	if code == nil {
		return 0
	}
	return *code
}
