package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/khanhnv2901/seca-probe/internal/checks"
)

func TestPrintCatalog(t *testing.T) {
	var buf bytes.Buffer
	if err := printCatalog(&buf, checks.NewRegistry()); err != nil {
		t.Fatalf("printCatalog: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(checks.NewRegistry().Names())+1 {
		t.Fatalf("expected header plus one line per check, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "NAME") {
		t.Fatalf("missing header: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "csrf ") || !strings.Contains(lines[1], "yes") {
		t.Fatalf("csrf should be listed first and require login: %q", lines[1])
	}
}
