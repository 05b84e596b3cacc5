package deps_test

import (
	"os"
	"path/filepath"
	"testing"

	"slidecast/internal/deps"
)

func TestCheckBinariesReportsMissing(t *testing.T) {
	statuses := deps.CheckBinaries([]deps.Requirement{
		{Name: "converter", Command: "definitely-not-a-binary-xyz"},
	})
	if len(statuses) != 1 {
		t.Fatalf("expected one status, got %d", len(statuses))
	}
	if statuses[0].Available {
		t.Fatal("expected missing binary to report unavailable")
	}
	if statuses[0].Detail == "" {
		t.Fatal("expected detail for missing binary")
	}
}

func TestCheckBinariesFindsStub(t *testing.T) {
	binDir := t.TempDir()
	stub := filepath.Join(binDir, "soffice")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	statuses := deps.CheckBinaries([]deps.Requirement{
		{Name: "converter", Command: "soffice"},
	})
	if !statuses[0].Available {
		t.Fatalf("expected stub binary to be found: %+v", statuses[0])
	}
}

func TestCheckBinariesEmptyCommand(t *testing.T) {
	statuses := deps.CheckBinaries([]deps.Requirement{{Name: "converter"}})
	if statuses[0].Available {
		t.Fatal("expected unconfigured command to be unavailable")
	}
	if statuses[0].Detail != "command not configured" {
		t.Fatalf("unexpected detail %q", statuses[0].Detail)
	}
}

func TestRequirementsUsesConfiguredBinaries(t *testing.T) {
	reqs := deps.Requirements(nil)
	if len(reqs) != 2 {
		t.Fatalf("expected converter and rasterizer requirements, got %d", len(reqs))
	}
	if reqs[0].Name != deps.ConverterName || reqs[1].Name != deps.RasterizerName {
		t.Fatalf("unexpected requirement names: %+v", reqs)
	}
}
