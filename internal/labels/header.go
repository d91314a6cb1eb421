package labels

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// #region header

// WriteHeader renders the registry as a C header for firmware builds: one
// uint8_t array plus length per session and a SESSIONS table in registry
// order.
func WriteHeader(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "// Auto-generated labels header. Do not edit.")
	fmt.Fprintln(bw, "// Each session's label sequence (0/1/2) is replayed cyclically.")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "#pragma once")
	fmt.Fprintln(bw, "#include <stdint.h>")
	fmt.Fprintln(bw)

	for i := range registry {
		s := &registry[i]
		vals := make([]string, len(s.seq))
		for j, l := range s.seq {
			vals[j] = fmt.Sprintf("%d", l)
		}
		fmt.Fprintf(bw, "static const uint8_t labels_%s[] = {%s};\n", s.id, strings.Join(vals, ","))
		fmt.Fprintf(bw, "static const uint16_t nLabels_%s = sizeof(labels_%s)/sizeof(labels_%s[0]);\n\n", s.id, s.id, s.id)
	}

	fmt.Fprintln(bw, "struct SessionLabels {")
	fmt.Fprintln(bw, "  const char* id;")
	fmt.Fprintln(bw, "  const uint8_t* seq;")
	fmt.Fprintln(bw, "  uint16_t len;")
	fmt.Fprintln(bw, "};")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "static const SessionLabels SESSIONS[] = {")
	for i := range registry {
		id := registry[i].id
		fmt.Fprintf(bw, "  {\"%s\", labels_%s, nLabels_%s},\n", id, id, id)
	}
	fmt.Fprintln(bw, "};")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "static const uint8_t NUM_SESSIONS = sizeof(SESSIONS)/sizeof(SESSIONS[0]);")

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// #endregion header
