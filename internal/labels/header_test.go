package labels

import (
	"strings"
	"testing"
)

func TestWriteHeader(t *testing.T) {
	var b strings.Builder
	if err := WriteHeader(&b); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	out := b.String()

	for _, want := range []string{
		"#pragma once",
		"static const uint8_t labels_01[] = {0,0,1,1,2,2,0,1,2,0};",
		"static const uint8_t labels_10[] = {2,0,2,0,1,1,0,2,1,0};",
		`{"05", labels_05, nLabels_05},`,
		"static const uint8_t NUM_SESSIONS",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("header missing %q", want)
		}
	}

	// Every session is declared exactly once.
	for _, s := range Sessions() {
		decl := "static const uint8_t labels_" + s.ID() + "[]"
		if n := strings.Count(out, decl); n != 1 {
			t.Errorf("session %s declared %d times", s.ID(), n)
		}
	}
}
