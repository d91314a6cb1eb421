package main

import (
	"strings"
	"testing"
)

func TestReplayCmd_UncertaintyFlag(t *testing.T) {
	f := newReplayCmd().Flags().Lookup("u")
	if f == nil {
		t.Fatal("missing --u flag")
	}
	if !strings.Contains(f.Usage, "1 - max(p)") || strings.Contains(f.Usage, "entropy") {
		t.Errorf("unexpected --u help %q", f.Usage)
	}
}
