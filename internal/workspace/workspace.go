// Package workspace manages per-job scratch directories with guaranteed
// cleanup on every exit path.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"slidecast/internal/services"
)

// minFreeBytes is the workspace root headroom required before a job is
// admitted. Rasterizing a large deck at high DPI can need hundreds of
// megabytes of scratch space.
const minFreeBytes = 256 << 20

// Manager allocates and tears down isolated job workspaces under a single
// configured root. Every workspace belongs to exactly one job.
type Manager struct {
	root string
}

// NewManager prepares the workspace root and verifies it is usable.
func NewManager(root string) (*Manager, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("workspace root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrResource, "workspace", "init", fmt.Sprintf("create root %q", root), err)
	}
	if err := unix.Access(root, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return nil, services.Wrap(services.ErrResource, "workspace", "init", fmt.Sprintf("root %q not writable", root), err)
	}
	return &Manager{root: root}, nil
}

// Root returns the configured workspace root.
func (m *Manager) Root() string {
	return m.root
}

// Path returns the workspace directory for a job without creating it.
func (m *Manager) Path(jobID string) string {
	return filepath.Join(m.root, jobID)
}

// Acquire creates a fresh, empty directory scoped to the job. Any leftover
// directory from a recycled identifier is removed first so the workspace
// always starts empty.
func (m *Manager) Acquire(jobID string) (string, error) {
	if strings.TrimSpace(jobID) == "" {
		return "", services.Wrap(services.ErrResource, "workspace", "acquire", "job id required", nil)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(m.root, &stat); err != nil {
		return "", services.Wrap(services.ErrResource, "workspace", "acquire", "inspect free space", err)
	}
	if free := stat.Bavail * uint64(stat.Bsize); free < minFreeBytes {
		return "", services.Wrap(services.ErrResource, "workspace", "acquire",
			fmt.Sprintf("insufficient free space: %d bytes available", free), nil)
	}

	dir := m.Path(jobID)
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", services.Wrap(services.ErrResource, "workspace", "acquire", "clear stale workspace", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrResource, "workspace", "acquire", "create workspace", err)
	}
	return dir, nil
}

// Release removes the workspace tree unconditionally. Partial writes left by
// killed subprocesses are tolerated; a missing directory is not an error.
func (m *Manager) Release(jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return nil
	}
	if err := os.RemoveAll(m.Path(jobID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return services.Wrap(services.ErrResource, "workspace", "release", "remove workspace", err)
	}
	return nil
}
