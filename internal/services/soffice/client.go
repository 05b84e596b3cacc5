package soffice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"slidecast/internal/services"
)

// Converter defines the behaviour required by the conversion pipeline.
type Converter interface {
	Convert(ctx context.Context, sourcePath, outDir string) (string, error)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, env []string) (output string, err error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps headless LibreOffice invocations.
//
// LibreOffice keeps a single lock on its user profile, so only one conversion
// can run against a profile at a time. The pipeline serializes calls within
// the process; the flock below extends that guarantee across processes
// sharing the same profile directory.
type Client struct {
	binary     string
	profileDir string
	timeout    time.Duration
	lock       *flock.Flock
	exec       Executor
}

// New constructs a LibreOffice client.
func New(binary, profileDir string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("soffice binary required")
	}
	profileDir = strings.TrimSpace(profileDir)
	if profileDir == "" {
		return nil, errors.New("soffice profile directory required")
	}
	client := &Client{
		binary:     binary,
		profileDir: profileDir,
		timeout:    time.Duration(timeoutSeconds) * time.Second,
		lock:       flock.New(profileDir + ".lock"),
		exec:       commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Convert renders sourcePath into a PDF inside outDir and returns the PDF path.
func (c *Client) Convert(ctx context.Context, sourcePath, outDir string) (string, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return "", services.Wrap(services.ErrConversionFailed, "convert", "soffice", "source file unreadable", err)
	}
	if info.Size() == 0 {
		return "", services.Wrap(services.ErrConversionFailed, "convert", "soffice", "source file is empty", nil)
	}

	locked, err := c.lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return "", services.Wrap(services.ErrResource, "convert", "soffice", "acquire profile lock", err)
	}
	if !locked {
		return "", services.Wrap(services.ErrResource, "convert", "soffice", "profile lock unavailable", nil)
	}
	defer func() { _ = c.lock.Unlock() }()

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"--headless",
		"--norestore",
		fmt.Sprintf("-env:UserInstallation=file://%s", c.profileDir),
		"--convert-to", "pdf",
		"--outdir", outDir,
		sourcePath,
	}
	env := append(os.Environ(), "SAL_USE_VCLPLUGIN=svp")

	output, err := c.exec.Run(runCtx, c.binary, args, env)
	if err != nil {
		if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "convert", "soffice",
				fmt.Sprintf("renderer exceeded %s budget", c.timeout), err)
		}
		return "", services.Wrap(services.ErrConversionFailed, "convert", "soffice", diagnostic(output), err)
	}

	pdfPath, err := locatePDF(outDir, sourcePath)
	if err != nil {
		return "", services.Wrap(services.ErrConversionFailed, "convert", "soffice", diagnostic(output), err)
	}
	return pdfPath, nil
}

// locatePDF finds the converted document. soffice derives the output name
// from the source stem; fall back to scanning when it normalizes the name
// differently.
func locatePDF(outDir, sourcePath string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	expected := filepath.Join(outDir, stem+".pdf")
	if ok, err := usablePDF(expected); err != nil {
		return "", err
	} else if ok {
		return expected, nil
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("inspect converter output: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			continue
		}
		candidate := filepath.Join(outDir, entry.Name())
		if ok, err := usablePDF(candidate); err != nil {
			return "", err
		} else if ok {
			return candidate, nil
		}
	}
	return "", errors.New("renderer produced no PDF output")
}

// usablePDF reports whether path exists with non-zero size. A zero-length
// PDF is treated identically to converter failure.
func usablePDF(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat converter output: %w", err)
	}
	if info.Size() == 0 {
		return false, errors.New("renderer produced an empty PDF")
	}
	return true, nil
}

// diagnostic trims captured tool output to a short, single-line tail for
// error reporting.
func diagnostic(output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return "renderer error"
	}
	lines := strings.Split(output, "\n")
	if len(lines) > 4 {
		lines = lines[len(lines)-4:]
	}
	joined := strings.Join(lines, "; ")
	if len(joined) > 500 {
		joined = joined[len(joined)-500:]
	}
	return joined
}

type commandExecutor struct{}

// Run executes the binary with stdout/stderr captured. On context
// cancellation the whole process group is killed so soffice helper
// processes do not outlive the job.
func (commandExecutor) Run(ctx context.Context, binary string, args []string, env []string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	err := cmd.Run()
	return combined.String(), err
}
