package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gamelog-labs/gamelog-go/internal/domain"
	"github.com/gamelog-labs/gamelog-go/internal/repo"
)

type RunStore struct {
	db DB
}

func NewRunStore(db DB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

func (s *RunStore) CreateRun(ctx context.Context, run domain.PipelineRun) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	if err := run.Validate(); err != nil {
		return err
	}
	if err := requireIntegrity(run.IntegritySHA256); err != nil {
		return err
	}
	metadataJSON, err := encodeMetadata(run.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	startedAt := normalizeTime(run.StartedAt)
	var endedAt sql.NullTime
	if run.EndedAt != nil {
		endedAt = sql.NullTime{Time: run.EndedAt.UTC(), Valid: true}
	}
	var failedStepIndex sql.NullInt64
	if run.FailedStepIndex != nil {
		failedStepIndex = sql.NullInt64{Int64: int64(*run.FailedStepIndex), Valid: true}
	}
	var failedExitCode sql.NullInt64
	if run.FailedExitCode != nil {
		failedExitCode = sql.NullInt64{Int64: int64(*run.FailedExitCode), Valid: true}
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO pipeline_runs (
			run_id,
			event,
			branch,
			commit_sha,
			status,
			started_at,
			ended_at,
			failed_step,
			failed_step_index,
			failed_exit_code,
			metadata,
			created_by,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		strings.TrimSpace(run.ID),
		string(run.Event),
		strings.TrimSpace(run.Branch),
		nullIfEmpty(run.Commit),
		string(run.Status),
		startedAt,
		endedAt,
		nullIfEmpty(run.FailedStep),
		failedStepIndex,
		failedExitCode,
		metadataJSON,
		nullIfEmpty(run.CreatedBy),
		strings.TrimSpace(run.IntegritySHA256),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const selectRunColumns = `run_id, event, branch, commit_sha, status, started_at, ended_at,
	failed_step, failed_step_index, failed_exit_code, metadata, created_by, integrity_sha256`

func (s *RunStore) GetRun(ctx context.Context, id string) (domain.PipelineRun, error) {
	if s == nil || s.db == nil {
		return domain.PipelineRun{}, fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.PipelineRun{}, fmt.Errorf("run id is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+selectRunColumns+` FROM pipeline_runs WHERE run_id = $1`,
		id,
	)
	return scanRun(row)
}

func (s *RunStore) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.PipelineRun, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store not initialized")
	}
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if strings.TrimSpace(filter.Event) != "" {
		args = append(args, strings.TrimSpace(filter.Event))
		clauses = append(clauses, fmt.Sprintf("event = $%d", len(args)))
	}
	if strings.TrimSpace(filter.Branch) != "" {
		args = append(args, strings.TrimSpace(filter.Branch))
		clauses = append(clauses, fmt.Sprintf("branch = $%d", len(args)))
	}
	if strings.TrimSpace(filter.Status) != "" {
		args = append(args, strings.TrimSpace(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + selectRunColumns + ` FROM pipeline_runs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.PipelineRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

func (s *RunStore) UpdateRunStatus(ctx context.Context, id string, status domain.RunState, endedAt *time.Time, failure *repo.RunFailure) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("run id is required")
	}
	if !status.Valid() {
		return fmt.Errorf("status is required")
	}
	var ended sql.NullTime
	if endedAt != nil {
		ended = sql.NullTime{Time: endedAt.UTC(), Valid: true}
	}
	var failedStep sql.NullString
	var failedStepIndex sql.NullInt64
	var failedExitCode sql.NullInt64
	if failure != nil {
		failedStep = nullIfEmpty(failure.StepName)
		failedStepIndex = sql.NullInt64{Int64: int64(failure.StepIndex), Valid: true}
		failedExitCode = sql.NullInt64{Int64: int64(failure.ExitCode), Valid: true}
	}
	args := []any{string(status), ended, failedStep, failedStepIndex, failedExitCode, id}
	allowed := allowedPriorStates(status)
	placeholders := make([]string, 0, len(allowed))
	for _, state := range allowed {
		args = append(args, state)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	res, err := s.db.ExecContext(
		ctx,
		fmt.Sprintf(updateRunStatusQuery, strings.Join(placeholders, ",")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if rows == 0 {
		row := s.db.QueryRowContext(ctx, `SELECT status FROM pipeline_runs WHERE run_id = $1`, id)
		var current string
		if err := row.Scan(&current); err != nil {
			return handleNotFound(err)
		}
		return fmt.Errorf("run %s is %s, cannot become %s: %w", id, current, status, repo.ErrInvalidTransition)
	}
	return nil
}

const updateRunStatusQuery = `UPDATE pipeline_runs
	 SET status = $1, ended_at = $2, failed_step = $3, failed_step_index = $4, failed_exit_code = $5
	 WHERE run_id = $6 AND status IN (%s)`

// allowedPriorStates lists the statuses a run row may currently hold for a
// write of next to go through. The status predicate in the UPDATE keeps a
// late or duplicate write from regressing a terminal run.
func allowedPriorStates(next domain.RunState) []string {
	all := []domain.RunState{domain.RunStatePending, domain.RunStateRunning, domain.RunStateSucceeded, domain.RunStateFailed}
	out := make([]string, 0, len(all))
	for _, current := range all {
		if domain.CanTransitionRunState(current, next) {
			out = append(out, string(current))
		}
	}
	return out
}

func scanRun(scanner rowScanner) (domain.PipelineRun, error) {
	var run domain.PipelineRun
	var event string
	var status string
	var commit sql.NullString
	var endedAt sql.NullTime
	var failedStep sql.NullString
	var failedStepIndex sql.NullInt64
	var failedExitCode sql.NullInt64
	var createdBy sql.NullString
	var metadataJSON []byte
	if err := scanner.Scan(
		&run.ID,
		&event,
		&run.Branch,
		&commit,
		&status,
		&run.StartedAt,
		&endedAt,
		&failedStep,
		&failedStepIndex,
		&failedExitCode,
		&metadataJSON,
		&createdBy,
		&run.IntegritySHA256,
	); err != nil {
		return domain.PipelineRun{}, handleNotFound(err)
	}
	run.Event = domain.TriggerEvent(event)
	run.Status = domain.RunState(status)
	run.Commit = commit.String
	run.CreatedBy = createdBy.String
	run.FailedStep = failedStep.String
	run.StartedAt = run.StartedAt.UTC()
	if endedAt.Valid {
		ended := endedAt.Time.UTC()
		run.EndedAt = &ended
	}
	if failedStepIndex.Valid {
		index := int(failedStepIndex.Int64)
		run.FailedStepIndex = &index
	}
	if failedExitCode.Valid {
		code := int(failedExitCode.Int64)
		run.FailedExitCode = &code
	}
	metadata, err := decodeMetadata(metadataJSON)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("decode metadata: %w", err)
	}
	run.Metadata = metadata
	return run, nil
}
