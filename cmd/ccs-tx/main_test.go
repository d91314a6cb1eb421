package main

import (
	"strings"
	"testing"
)

// --u sets the per-event uncertainty u = 1 - max(p), not an entropy.
func TestRootCmd_UncertaintyFlag(t *testing.T) {
	f := newRootCmd().Flags().Lookup("u")
	if f == nil {
		t.Fatal("missing --u flag")
	}
	if !strings.Contains(f.Usage, "1 - max(p)") || strings.Contains(f.Usage, "entropy") {
		t.Errorf("unexpected --u help %q", f.Usage)
	}
	if f.DefValue != "0.1" {
		t.Errorf("expected default 0.1, got %s", f.DefValue)
	}
}
