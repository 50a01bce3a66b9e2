package domain

import "testing"

func TestCanTransitionRunState(t *testing.T) {
	tests := []struct {
		name    string
		current RunState
		next    RunState
		want    bool
	}{
		{name: "pending to running", current: RunStatePending, next: RunStateRunning, want: true},
		{name: "running to succeeded", current: RunStateRunning, next: RunStateSucceeded, want: true},
		{name: "running to failed", current: RunStateRunning, next: RunStateFailed, want: true},
		{name: "pending to failed", current: RunStatePending, next: RunStateFailed, want: true},
		{name: "same state", current: RunStateRunning, next: RunStateRunning, want: true},
		{name: "backwards", current: RunStateRunning, next: RunStatePending, want: false},
		{name: "succeeded is terminal", current: RunStateSucceeded, next: RunStateFailed, want: false},
		{name: "failed is terminal", current: RunStateFailed, next: RunStateRunning, want: false},
		{name: "invalid current", current: RunState("weird"), next: RunStateRunning, want: false},
		{name: "invalid next", current: RunStatePending, next: RunState(""), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransitionRunState(tt.current, tt.next); got != tt.want {
				t.Fatalf("CanTransitionRunState(%s, %s) = %v, want %v", tt.current, tt.next, got, tt.want)
			}
		})
	}
}

func TestParseTriggerEvent(t *testing.T) {
	if ev, ok := ParseTriggerEvent(" Push "); !ok || ev != TriggerPush {
		t.Fatalf("expected push, got %q ok=%v", ev, ok)
	}
	if ev, ok := ParseTriggerEvent("pull_request"); !ok || ev != TriggerPullRequest {
		t.Fatalf("expected pull_request, got %q ok=%v", ev, ok)
	}
	if _, ok := ParseTriggerEvent("merge"); ok {
		t.Fatalf("expected merge to be rejected")
	}
}

func TestPipelineRunValidate(t *testing.T) {
	run := PipelineRun{
		ID:     "run-1",
		Event:  TriggerPush,
		Branch: "main",
		Status: RunStatePending,
	}
	if err := run.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	noBranch := run
	noBranch.Branch = ""
	if err := noBranch.Validate(); err == nil {
		t.Fatalf("expected error for missing branch")
	}

	badEvent := run
	badEvent.Event = "merge"
	if err := badEvent.Validate(); err == nil {
		t.Fatalf("expected error for bad event")
	}
}
