package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gamelog-labs/gamelog-go/internal/domain"
	"github.com/gamelog-labs/gamelog-go/internal/repo"
)

type StepExecutionStore struct {
	db DB
}

const (
	insertStepExecutionQuery = `INSERT INTO step_executions (
		step_execution_id,
		run_id,
		step_index,
		step_name,
		status,
		exit_code,
		output_tail,
		started_at,
		finished_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	ON CONFLICT (run_id, step_index) DO NOTHING
	RETURNING step_execution_id, run_id, step_index, step_name, status, exit_code, output_tail, started_at, finished_at`

	selectStepExecutionQuery = `SELECT step_execution_id, run_id, step_index, step_name, status, exit_code, output_tail, started_at, finished_at
	 FROM step_executions
	 WHERE run_id = $1 AND step_index = $2`

	listStepExecutionsByRunQuery = `SELECT step_execution_id, run_id, step_index, step_name, status, exit_code, output_tail, started_at, finished_at
	 FROM step_executions
	 WHERE run_id = $1
	 ORDER BY step_index ASC`

	finishStepExecutionQuery = `UPDATE step_executions
	 SET status = $1, exit_code = $2, output_tail = $3, finished_at = $4
	 WHERE run_id = $5 AND step_index = $6`
)

func NewStepExecutionStore(db DB) *StepExecutionStore {
	if db == nil {
		return nil
	}
	return &StepExecutionStore{db: db}
}

// InsertStep records a step execution. The insert is idempotent on
// (run_id, step_index): a second insert for the same slot returns the
// existing record and reports inserted=false.
func (s *StepExecutionStore) InsertStep(ctx context.Context, step domain.StepExecution) (domain.StepExecution, bool, error) {
	if s == nil || s.db == nil {
		return domain.StepExecution{}, false, fmt.Errorf("step execution store not initialized")
	}
	if strings.TrimSpace(step.ID) == "" {
		step.ID = uuid.NewString()
	}
	if err := step.Validate(); err != nil {
		return domain.StepExecution{}, false, err
	}

	startedAt := normalizeTime(step.StartedAt)
	var finishedAt sql.NullTime
	if step.FinishedAt != nil && !step.FinishedAt.IsZero() {
		finishedAt = sql.NullTime{Time: step.FinishedAt.UTC(), Valid: true}
	}

	row := s.db.QueryRowContext(
		ctx,
		insertStepExecutionQuery,
		strings.TrimSpace(step.ID),
		strings.TrimSpace(step.RunID),
		step.Index,
		strings.TrimSpace(step.Name),
		string(step.Status),
		step.ExitCode,
		step.OutputTail,
		startedAt,
		finishedAt,
	)
	inserted, err := scanStepExecution(row)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return domain.StepExecution{}, false, fmt.Errorf("insert step execution: %w", err)
		}
		existing, err := s.getStep(ctx, step.RunID, step.Index)
		if err != nil {
			return domain.StepExecution{}, false, err
		}
		return existing, false, nil
	}
	return inserted, true, nil
}

// FinishStep records the terminal status and exit code of a step that was
// inserted as running.
func (s *StepExecutionStore) FinishStep(ctx context.Context, runID string, index int, status domain.StepStatus, exitCode int, outputTail string, finishedAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("step execution store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if index < 0 {
		return fmt.Errorf("step index must be >= 0")
	}
	if !status.Valid() || !status.Terminal() {
		return fmt.Errorf("status must be terminal")
	}
	res, err := s.db.ExecContext(
		ctx,
		finishStepExecutionQuery,
		string(status),
		exitCode,
		outputTail,
		normalizeTime(finishedAt),
		runID,
		index,
	)
	if err != nil {
		return fmt.Errorf("finish step execution: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish step execution: %w", err)
	}
	if rows == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *StepExecutionStore) ListByRun(ctx context.Context, runID string) ([]domain.StepExecution, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("step execution store not initialized")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}

	rows, err := s.db.QueryContext(ctx, listStepExecutionsByRunQuery, runID)
	if err != nil {
		return nil, fmt.Errorf("list step executions: %w", err)
	}
	defer rows.Close()

	steps := make([]domain.StepExecution, 0)
	for rows.Next() {
		step, err := scanStepExecution(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list step executions: %w", err)
	}
	return steps, nil
}

func (s *StepExecutionStore) getStep(ctx context.Context, runID string, index int) (domain.StepExecution, error) {
	row := s.db.QueryRowContext(ctx, selectStepExecutionQuery, strings.TrimSpace(runID), index)
	return scanStepExecution(row)
}

func scanStepExecution(scanner rowScanner) (domain.StepExecution, error) {
	var step domain.StepExecution
	var status string
	var outputTail sql.NullString
	var finishedAt sql.NullTime
	if err := scanner.Scan(
		&step.ID,
		&step.RunID,
		&step.Index,
		&step.Name,
		&status,
		&step.ExitCode,
		&outputTail,
		&step.StartedAt,
		&finishedAt,
	); err != nil {
		return domain.StepExecution{}, handleNotFound(err)
	}
	step.Status = domain.StepStatus(status)
	step.OutputTail = outputTail.String
	step.StartedAt = step.StartedAt.UTC()
	if finishedAt.Valid {
		t := finishedAt.Time.UTC()
		step.FinishedAt = &t
	}
	return step, nil
}
