package main

import (
	"path/filepath"
	"testing"
)

func TestDefaultDSN(t *testing.T) {
	if got := defaultDSN("postgres://localhost/hvac", "/custom/state"); got != "postgres://localhost/hvac" {
		t.Errorf("explicit DSN must win, got %q", got)
	}
	want := filepath.Join("/custom/state", DefaultDBFileName)
	if got := defaultDSN("", "/custom/state"); got != want {
		t.Errorf("expected SQLite default under the state dir, got %q want %q", got, want)
	}
}
