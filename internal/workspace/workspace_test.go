package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"slidecast/internal/workspace"
)

func TestAcquireCreatesFreshDirectory(t *testing.T) {
	mgr, err := workspace.NewManager(filepath.Join(t.TempDir(), "work"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	dir, err := mgr.Acquire("job-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected workspace directory, got %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read workspace: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty workspace, found %d entries", len(entries))
	}
}

func TestAcquireClearsStaleContents(t *testing.T) {
	mgr, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	dir, err := mgr.Acquire("job-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "leftover.pdf"), []byte("stale"), 0o644); err != nil {
		t.Fatalf("write leftover: %v", err)
	}

	dir, err = mgr.Acquire("job-1")
	if err != nil {
		t.Fatalf("re-Acquire failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read workspace: %v", err)
	}
	if len(entries) != 0 {
		t.Fatal("expected stale contents removed")
	}
}

func TestReleaseRemovesTree(t *testing.T) {
	mgr, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	dir, err := mgr.Acquire("job-1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nested", "page-1.png"), []byte("img"), 0o644); err != nil {
		t.Fatalf("write nested file: %v", err)
	}

	if err := mgr.Release("job-1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("expected workspace removed")
	}
}

func TestReleaseMissingWorkspaceIsNoError(t *testing.T) {
	mgr, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if err := mgr.Release("never-acquired"); err != nil {
		t.Fatalf("Release of missing workspace should succeed: %v", err)
	}
}

func TestAcquireRequiresJobID(t *testing.T) {
	mgr, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := mgr.Acquire(""); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

func TestWorkspacesAreIndependent(t *testing.T) {
	mgr, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	dirA, err := mgr.Acquire("job-a")
	if err != nil {
		t.Fatalf("Acquire job-a: %v", err)
	}
	dirB, err := mgr.Acquire("job-b")
	if err != nil {
		t.Fatalf("Acquire job-b: %v", err)
	}
	if dirA == dirB {
		t.Fatal("expected distinct workspaces per job")
	}

	if err := os.WriteFile(filepath.Join(dirA, "page-1.png"), []byte("a"), 0o644); err != nil {
		t.Fatalf("write to job-a: %v", err)
	}
	if err := mgr.Release("job-b"); err != nil {
		t.Fatalf("Release job-b: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dirA, "page-1.png")); err != nil {
		t.Fatal("releasing job-b must not touch job-a artifacts")
	}
}
