package main

import (
	"os"
	"testing"
	"time"
)

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("SCRIBE_TEST_STR", "  /data/tasks  ")
	if got := envOrDefault("SCRIBE_TEST_STR", "/tasks"); got != "/data/tasks" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	_ = os.Unsetenv("SCRIBE_TEST_STR_UNSET")
	if got := envOrDefault("SCRIBE_TEST_STR_UNSET", "/tasks"); got != "/tasks" {
		t.Fatalf("expected fallback /tasks, got %q", got)
	}
}

func TestDurationEnvParsesValue(t *testing.T) {
	t.Setenv("SCRIBE_TEST_DURATION", "250ms")
	got := durationEnv("SCRIBE_TEST_DURATION", time.Second)
	if got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", got)
	}
}

func TestDurationEnvFallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("SCRIBE_TEST_DURATION_BAD", "soon")
	got := durationEnv("SCRIBE_TEST_DURATION_BAD", 2*time.Second)
	if got != 2*time.Second {
		t.Fatalf("expected fallback 2s, got %s", got)
	}
}

func TestIntEnvParsesValue(t *testing.T) {
	t.Setenv("SCRIBE_TEST_INT", "1500")
	if got := intEnv("SCRIBE_TEST_INT", 2000); got != 1500 {
		t.Fatalf("expected 1500, got %d", got)
	}
}

func TestIntEnvFallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("SCRIBE_TEST_INT_BAD", "lots")
	if got := intEnv("SCRIBE_TEST_INT_BAD", 2000); got != 2000 {
		t.Fatalf("expected fallback 2000, got %d", got)
	}
}
