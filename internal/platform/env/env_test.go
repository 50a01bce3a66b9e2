package env

import (
	"testing"
	"time"
)

func TestStringFallsBackToDefault(t *testing.T) {
	if got := String("GAMELOG_ENV_TEST_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("GAMELOG_ENV_TEST_SET", "value")
	if got := String("GAMELOG_ENV_TEST_SET", "fallback"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
}

func TestDuration(t *testing.T) {
	got, err := Duration("GAMELOG_ENV_TEST_UNSET", 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 5*time.Second {
		t.Fatalf("expected default, got %v", got)
	}

	t.Setenv("GAMELOG_ENV_TEST_DURATION", "250ms")
	got, err = Duration("GAMELOG_ENV_TEST_DURATION", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}

	t.Setenv("GAMELOG_ENV_TEST_DURATION", "not-a-duration")
	if _, err := Duration("GAMELOG_ENV_TEST_DURATION", time.Second); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestIntAndBool(t *testing.T) {
	t.Setenv("GAMELOG_ENV_TEST_INT", "42")
	got, err := Int("GAMELOG_ENV_TEST_INT", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}

	t.Setenv("GAMELOG_ENV_TEST_INT", "nope")
	if _, err := Int("GAMELOG_ENV_TEST_INT", 7); err == nil {
		t.Fatalf("expected parse error")
	}

	t.Setenv("GAMELOG_ENV_TEST_BOOL", "true")
	b, err := Bool("GAMELOG_ENV_TEST_BOOL", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b {
		t.Fatalf("expected true")
	}
}
