package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("TEST_BOOL", "yes")
	if !ParseBoolEnv("TEST_BOOL", false) {
		t.Error("expected true for yes")
	}
	t.Setenv("TEST_BOOL", "off")
	if ParseBoolEnv("TEST_BOOL", true) {
		t.Error("expected false for off")
	}
	t.Setenv("TEST_BOOL", "maybe")
	if !ParseBoolEnv("TEST_BOOL", true) {
		t.Error("expected default for invalid value")
	}
	if ParseBoolEnv("TEST_BOOL_UNSET", false) {
		t.Error("expected default for unset value")
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := ParseIntEnv("TEST_INT", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	t.Setenv("TEST_INT", "not-a-number")
	if got := ParseIntEnv("TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7, got %d", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("TEST_DUR", "45s")
	if got := ParseDurationEnv("TEST_DUR", time.Minute); got != 45*time.Second {
		t.Errorf("expected 45s, got %v", got)
	}
	t.Setenv("TEST_DUR", "soon")
	if got := ParseDurationEnv("TEST_DUR", time.Minute); got != time.Minute {
		t.Errorf("expected default 1m, got %v", got)
	}
}
