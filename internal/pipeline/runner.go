package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/gamelog-labs/gamelog-go/internal/domain"
)

const (
	// outputTailBytes bounds how much combined step output is retained.
	outputTailBytes = 8 << 10

	defaultStepTimeout = 15 * time.Minute
)

// StepResult captures one completed step.
type StepResult struct {
	Index      int
	Name       string
	ExitCode   int
	OutputTail string
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r StepResult) Succeeded() bool { return r.ExitCode == 0 }

// Hooks lets the caller observe step lifecycle while a run is in flight.
// Either hook may be nil.
type Hooks struct {
	StepStarted  func(ctx context.Context, index int, step Step)
	StepFinished func(ctx context.Context, result StepResult)
}

// RunResult is the terminal outcome of a pipeline run.
type RunResult struct {
	State           domain.RunState
	Steps           []StepResult
	FailedStepIndex *int
	FailedExitCode  *int
}

// Runner executes pipeline steps sequentially. The first non-zero exit
// aborts the run; later steps never start.
type Runner struct {
	Logger      *slog.Logger
	WorkDir     string
	StepTimeout time.Duration
}

func (r *Runner) Run(ctx context.Context, spec Spec, hooks Hooks) (RunResult, error) {
	if err := spec.Validate(); err != nil {
		return RunResult{}, err
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := r.StepTimeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}

	result := RunResult{
		State: domain.RunStateRunning,
		Steps: make([]StepResult, 0, len(spec.Steps)),
	}
	for i, step := range spec.Steps {
		if err := ctx.Err(); err != nil {
			return RunResult{}, fmt.Errorf("run canceled before step %d: %w", i, err)
		}
		if hooks.StepStarted != nil {
			hooks.StepStarted(ctx, i, step)
		}
		logger.Info("pipeline step started", "pipeline", spec.Name, "step", step.Name, "step_index", i)

		stepResult := r.runStep(ctx, timeout, i, step)
		result.Steps = append(result.Steps, stepResult)
		if hooks.StepFinished != nil {
			hooks.StepFinished(ctx, stepResult)
		}

		if !stepResult.Succeeded() {
			logger.Warn("pipeline step failed",
				"pipeline", spec.Name,
				"step", step.Name,
				"step_index", i,
				"exit_code", stepResult.ExitCode)
			index := i
			code := stepResult.ExitCode
			result.State = domain.RunStateFailed
			result.FailedStepIndex = &index
			result.FailedExitCode = &code
			return result, nil
		}
		logger.Info("pipeline step succeeded", "pipeline", spec.Name, "step", step.Name, "step_index", i)
	}

	result.State = domain.RunStateSucceeded
	return result, nil
}

func (r *Runner) runStep(ctx context.Context, timeout time.Duration, index int, step Step) StepResult {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tail := newTailBuffer(outputTailBytes)
	cmd := exec.CommandContext(stepCtx, step.Command, step.Args...)
	cmd.Dir = r.WorkDir
	cmd.Stdout = tail
	cmd.Stderr = tail
	cmd.Env = os.Environ()
	for key, value := range step.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	started := time.Now().UTC()
	err := cmd.Run()
	finished := time.Now().UTC()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
		default:
			// Command could not start at all (missing binary, bad workdir).
			exitCode = -1
			fmt.Fprintf(tail, "step did not start: %v\n", err)
		}
	}

	return StepResult{
		Index:      index,
		Name:       step.Name,
		ExitCode:   exitCode,
		OutputTail: tail.String(),
		StartedAt:  started,
		FinishedAt: finished,
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
