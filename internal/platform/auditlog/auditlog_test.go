package auditlog

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventValidate(t *testing.T) {
	valid := Event{
		OccurredAt:   time.Now().UTC(),
		Actor:        "user-1",
		Action:       "dataset.create",
		ResourceType: "dataset",
		ResourceID:   "ds-1",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	missingActor := valid
	missingActor.Actor = " "
	if err := missingActor.Validate(); err == nil {
		t.Fatalf("expected error for missing actor")
	}

	missingAction := valid
	missingAction.Action = ""
	if err := missingAction.Validate(); err == nil {
		t.Fatalf("expected error for missing action")
	}
}

func TestComputeIntegritySHA256IsDeterministic(t *testing.T) {
	event := Event{
		OccurredAt:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Actor:        "user-1",
		Action:       "dataset.create",
		ResourceType: "dataset",
		ResourceID:   "ds-1",
		RequestID:    "req-1",
	}
	payload, _ := json.Marshal(map[string]any{"name": "player_gamelog_2024"})

	first, err := ComputeIntegritySHA256(event, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ComputeIntegritySHA256(event, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("integrity must be deterministic: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}

	other, err := ComputeIntegritySHA256(event, []byte(`{"name":"other"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other == first {
		t.Fatalf("different payloads must produce different integrity values")
	}
}
