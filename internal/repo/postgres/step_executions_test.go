package postgres

import (
	"strings"
	"testing"
)

func TestStepExecutionQueries(t *testing.T) {
	if !strings.Contains(insertStepExecutionQuery, "ON CONFLICT (run_id, step_index) DO NOTHING") {
		t.Fatalf("expected idempotency conflict clause in insert query")
	}
	if !strings.Contains(selectStepExecutionQuery, "run_id = $1 AND step_index = $2") {
		t.Fatalf("expected run and index predicates in select query")
	}
	if !strings.Contains(listStepExecutionsByRunQuery, "ORDER BY step_index ASC") {
		t.Fatalf("expected index ordering in list query")
	}
	if !strings.Contains(finishStepExecutionQuery, "WHERE run_id = $5 AND step_index = $6") {
		t.Fatalf("expected run and index predicates in finish query")
	}
}
