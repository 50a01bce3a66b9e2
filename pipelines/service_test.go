package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gamelog-labs/gamelog-go/internal/domain"
	"github.com/gamelog-labs/gamelog-go/internal/pipeline"
	"github.com/gamelog-labs/gamelog-go/internal/repo"
)

type stubRunRepo struct {
	mu   sync.Mutex
	runs map[string]domain.PipelineRun
}

func newStubRunRepo() *stubRunRepo {
	return &stubRunRepo{runs: map[string]domain.PipelineRun{}}
}

func (s *stubRunRepo) CreateRun(_ context.Context, run domain.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("duplicate run %s", run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

func (s *stubRunRepo) GetRun(_ context.Context, id string) (domain.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.PipelineRun{}, repo.ErrNotFound
	}
	return run, nil
}

func (s *stubRunRepo) ListRuns(_ context.Context, filter repo.RunFilter) ([]domain.PipelineRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PipelineRun, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.Status != "" && string(run.Status) != filter.Status {
			continue
		}
		if filter.Branch != "" && run.Branch != filter.Branch {
			continue
		}
		out = append(out, run)
	}
	return out, nil
}

func (s *stubRunRepo) UpdateRunStatus(_ context.Context, id string, status domain.RunState, endedAt *time.Time, failure *repo.RunFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return repo.ErrNotFound
	}
	if !domain.CanTransitionRunState(run.Status, status) {
		return fmt.Errorf("run %s is %s, cannot become %s: %w", id, run.Status, status, repo.ErrInvalidTransition)
	}
	run.Status = status
	run.EndedAt = endedAt
	if failure != nil {
		run.FailedStep = failure.StepName
		index := failure.StepIndex
		code := failure.ExitCode
		run.FailedStepIndex = &index
		run.FailedExitCode = &code
	}
	s.runs[id] = run
	return nil
}

type stubStepRepo struct {
	mu    sync.Mutex
	steps map[string][]domain.StepExecution
}

func newStubStepRepo() *stubStepRepo {
	return &stubStepRepo{steps: map[string][]domain.StepExecution{}}
}

func (s *stubStepRepo) InsertStep(_ context.Context, step domain.StepExecution) (domain.StepExecution, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if step.ID == "" {
		step.ID = fmt.Sprintf("step-%s-%d", step.RunID, step.Index)
	}
	for _, existing := range s.steps[step.RunID] {
		if existing.Index == step.Index {
			return existing, false, nil
		}
	}
	s.steps[step.RunID] = append(s.steps[step.RunID], step)
	return step, true, nil
}

func (s *stubStepRepo) FinishStep(_ context.Context, runID string, index int, status domain.StepStatus, exitCode int, outputTail string, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.steps[runID] {
		if existing.Index == index {
			existing.Status = status
			existing.ExitCode = exitCode
			existing.OutputTail = outputTail
			existing.FinishedAt = &finishedAt
			s.steps[runID][i] = existing
			return nil
		}
	}
	return repo.ErrNotFound
}

func (s *stubStepRepo) ListByRun(_ context.Context, runID string) ([]domain.StepExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.StepExecution, len(s.steps[runID]))
	copy(out, s.steps[runID])
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSpec(steps ...pipeline.Step) pipeline.Spec {
	return pipeline.Spec{
		Schema: pipeline.SpecSchemaV1,
		Name:   "gamelog-ci",
		Triggers: pipeline.Triggers{
			Events:   []string{"push", "pull_request"},
			Branches: []string{"main"},
		},
		Steps: steps,
	}
}

func testService(t *testing.T, spec pipeline.Spec, runs *stubRunRepo, steps *stubStepRepo, reporter *statusReporter) *pipelineService {
	t.Helper()
	runner := &pipeline.Runner{
		Logger:      testLogger(),
		WorkDir:     t.TempDir(),
		StepTimeout: 30 * time.Second,
	}
	return newPipelineService(testLogger(), spec, runner, runs, steps, nil, reporter)
}

func TestHandleEventIgnoresNonMatchingBranch(t *testing.T) {
	runs := newStubRunRepo()
	svc := testService(t, testSpec(pipeline.Step{Name: "noop", Command: "true"}), runs, newStubStepRepo(), nil)

	_, accepted, err := svc.HandleEvent(context.Background(), domain.TriggerPush, "feature/x", "abc123", auditContext{Actor: "webhook"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accepted {
		t.Fatalf("non-main branch must be ignored")
	}
	if len(runs.runs) != 0 {
		t.Fatalf("ignored event must not create a run")
	}
}

func TestHandleEventRunsPipelineToSuccess(t *testing.T) {
	runs := newStubRunRepo()
	steps := newStubStepRepo()
	spec := testSpec(
		pipeline.Step{Name: "install", Command: "/bin/sh", Args: []string{"-c", "echo ok"}},
		pipeline.Step{Name: "test", Command: "/bin/sh", Args: []string{"-c", "echo ok"}},
	)
	svc := testService(t, spec, runs, steps, nil)

	run, accepted, err := svc.HandleEvent(context.Background(), domain.TriggerPush, "main", "abc123", auditContext{Actor: "webhook"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !accepted {
		t.Fatalf("push on main must be accepted")
	}
	svc.Drain()

	final, _, derived, err := svc.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Status != domain.RunStateSucceeded {
		t.Fatalf("expected succeeded, got %s", final.Status)
	}
	if derived != domain.RunStateSucceeded {
		t.Fatalf("expected derived succeeded, got %s", derived)
	}
	if final.EndedAt == nil {
		t.Fatalf("terminal run must carry ended_at")
	}
	recorded, _ := steps.ListByRun(context.Background(), run.ID)
	if len(recorded) != 2 {
		t.Fatalf("expected 2 step records, got %d", len(recorded))
	}
}

func TestHandleEventFailureRecordsFailedStep(t *testing.T) {
	runs := newStubRunRepo()
	steps := newStubStepRepo()
	spec := testSpec(
		pipeline.Step{Name: "install", Command: "/bin/sh", Args: []string{"-c", "echo ok"}},
		pipeline.Step{Name: "test", Command: "/bin/sh", Args: []string{"-c", "exit 3"}},
		pipeline.Step{Name: "publish", Command: "/bin/sh", Args: []string{"-c", "echo never"}},
	)
	svc := testService(t, spec, runs, steps, nil)

	run, accepted, err := svc.HandleEvent(context.Background(), domain.TriggerPullRequest, "main", "def456", auditContext{Actor: "webhook"})
	if err != nil || !accepted {
		t.Fatalf("unexpected: accepted=%v err=%v", accepted, err)
	}
	svc.Drain()

	final, recorded, derived, err := svc.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Status != domain.RunStateFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if derived != domain.RunStateFailed {
		t.Fatalf("expected derived failed, got %s", derived)
	}
	if final.FailedStep != "test" {
		t.Fatalf("expected failed step test, got %q", final.FailedStep)
	}
	if final.FailedStepIndex == nil || *final.FailedStepIndex != 1 {
		t.Fatalf("expected failed step index 1, got %v", final.FailedStepIndex)
	}
	if final.FailedExitCode == nil || *final.FailedExitCode != 3 {
		t.Fatalf("expected exit code 3, got %v", final.FailedExitCode)
	}
	if len(recorded) != 2 {
		t.Fatalf("steps after the failure must not execute, got %d records", len(recorded))
	}
}

func TestTerminalRunRejectsLateStatusWrite(t *testing.T) {
	runs := newStubRunRepo()
	steps := newStubStepRepo()
	spec := testSpec(pipeline.Step{Name: "test", Command: "/bin/sh", Args: []string{"-c", "exit 1"}})
	svc := testService(t, spec, runs, steps, nil)

	run, _, err := svc.HandleEvent(context.Background(), domain.TriggerPush, "main", "abc123", auditContext{Actor: "webhook"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Drain()

	err = runs.UpdateRunStatus(context.Background(), run.ID, domain.RunStateRunning, nil, nil)
	if !errors.Is(err, repo.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	final, err := runs.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.Status != domain.RunStateFailed {
		t.Fatalf("stray write must not regress the run, got %s", final.Status)
	}
}

func TestHandleEventReportsStatus(t *testing.T) {
	received := make(chan runStatusPayload, 1)
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload runStatusPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode callback payload: %v", err)
		}
		received <- payload
		w.WriteHeader(http.StatusNoContent)
	}))
	defer callback.Close()

	reporter := newStatusReporter(context.Background(), testLogger(), reporterConfig{CallbackURL: callback.URL})
	runs := newStubRunRepo()
	spec := testSpec(pipeline.Step{Name: "test", Command: "/bin/sh", Args: []string{"-c", "exit 2"}})
	svc := testService(t, spec, runs, newStubStepRepo(), reporter)

	run, _, err := svc.HandleEvent(context.Background(), domain.TriggerPush, "main", "abc123", auditContext{Actor: "webhook"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Drain()

	select {
	case payload := <-received:
		if payload.RunID != run.ID {
			t.Fatalf("unexpected run id %q", payload.RunID)
		}
		if payload.Status != string(domain.RunStateFailed) {
			t.Fatalf("expected failed status, got %q", payload.Status)
		}
		if payload.FailedExitCode == nil || *payload.FailedExitCode != 2 {
			t.Fatalf("expected exit code 2, got %v", payload.FailedExitCode)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("status callback never delivered")
	}
}

func TestNewStatusReporterDisabledWithoutURL(t *testing.T) {
	if rep := newStatusReporter(context.Background(), testLogger(), reporterConfig{}); rep != nil {
		t.Fatalf("expected nil reporter without callback url")
	}
}

func TestReporterConfigFromEnv(t *testing.T) {
	getenv := func(values map[string]string) func(string, string) string {
		return func(key, def string) string {
			if v, ok := values[key]; ok {
				return v
			}
			return def
		}
	}

	cfg, err := reporterConfigFromEnv(getenv(map[string]string{
		"GAMELOG_STATUS_CALLBACK_URL":    "https://git.example.test/status",
		"GAMELOG_STATUS_OAUTH_TOKEN_URL": "https://auth.example.test/token",
		"GAMELOG_STATUS_OAUTH_CLIENT_ID": "pipelines",
		"GAMELOG_STATUS_OAUTH_SCOPES":    "status:write, repo",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Scopes) != 2 || cfg.Scopes[0] != "status:write" {
		t.Fatalf("unexpected scopes: %v", cfg.Scopes)
	}

	if _, err := reporterConfigFromEnv(getenv(map[string]string{
		"GAMELOG_STATUS_CALLBACK_URL":    "https://git.example.test/status",
		"GAMELOG_STATUS_OAUTH_TOKEN_URL": "https://auth.example.test/token",
	})); err == nil {
		t.Fatalf("expected error when token url set without client id")
	}
}
