package poppler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ledongthuc/pdf"

	"slidecast/internal/services"
)

// Page describes one rasterized page image inside the workspace.
type Page struct {
	Index  int
	Path   string
	Format string
	DPI    int
	Bytes  int64
}

// Options controls a single rasterization run.
type Options struct {
	DPI         int
	Format      string
	JPEGQuality int
}

// Rasterizer defines the behaviour required by the conversion pipeline.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath, outDir string, opts Options) ([]Page, error)
	PageCount(pdfPath string) (int, error)
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

// Client wraps pdftoppm. One invocation rasterizes the whole document; the
// produced files are enumerated afterwards and ordered by the page index
// embedded in their names.
type Client struct {
	binary  string
	timeout time.Duration
	maxDPI  int
	exec    Executor
}

// New constructs a Poppler client. maxDPI bounds per-page memory and time;
// requested values above it are clamped rather than rejected.
func New(binary string, timeoutSeconds, maxDPI int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("pdftoppm binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		maxDPI:  maxDPI,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

var pageNamePattern = regexp.MustCompile(`^page-(\d+)\.(png|jpg|jpeg)$`)

// Rasterize renders every page of pdfPath into outDir as page-<index> images.
func (c *Client) Rasterize(ctx context.Context, pdfPath, outDir string, opts Options) ([]Page, error) {
	dpi := opts.DPI
	if dpi <= 0 {
		return nil, services.Wrap(services.ErrValidation, "rasterize", "pdftoppm", fmt.Sprintf("invalid dpi %d", dpi), nil)
	}
	if c.maxDPI > 0 && dpi > c.maxDPI {
		dpi = c.maxDPI
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "jpeg" {
		format = "jpg"
	}

	args := []string{"-r", strconv.Itoa(dpi)}
	switch format {
	case "", "png":
		format = "png"
		args = append(args, "-png")
	case "jpg":
		quality := opts.JPEGQuality
		if quality <= 0 || quality > 100 {
			quality = 95
		}
		args = append(args, "-jpeg", "-jpegopt", fmt.Sprintf("quality=%d", quality))
	default:
		return nil, services.Wrap(services.ErrValidation, "rasterize", "pdftoppm", fmt.Sprintf("unsupported format %q", opts.Format), nil)
	}
	args = append(args, pdfPath, filepath.Join(outDir, "page"))

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	output, err := c.exec.Run(runCtx, c.binary, args, os.Environ())
	if err != nil {
		if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "rasterize", "pdftoppm",
				fmt.Sprintf("rasterizer exceeded %s budget", c.timeout), err)
		}
		return nil, services.Wrap(services.ErrRasterizationFailed, "rasterize", "pdftoppm", diagnostic(output), err)
	}

	pages, err := collectPages(outDir, format, dpi)
	if err != nil {
		return nil, services.Wrap(services.ErrRasterizationFailed, "rasterize", "pdftoppm", err.Error(), nil)
	}
	return pages, nil
}

// PageCount reads the PDF page count in-process. Used for progress reporting
// and to cross-check rasterizer output. The pdf reader panics on some
// malformed files; that surfaces here as an error, not a crashed worker.
func (c *Client) PageCount(pdfPath string) (count int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			count = 0
			err = fmt.Errorf("read pdf: %v", rec)
		}
	}()

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

// collectPages enumerates produced images and orders them by the embedded
// page index. Filesystem listing order is never trusted; pdftoppm zero-pads
// indices on longer documents so lexical order would still hold, but parsing
// keeps the contract explicit.
func collectPages(outDir, format string, dpi int) ([]Page, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("inspect rasterizer output: %w", err)
	}

	pages := make([]Page, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := pageNamePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		index, err := strconv.Atoi(match[1])
		if err != nil || index < 1 {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat page image: %w", err)
		}
		if info.Size() == 0 {
			return nil, fmt.Errorf("page %d image is empty", index)
		}
		pages = append(pages, Page{
			Index:  index,
			Path:   filepath.Join(outDir, entry.Name()),
			Format: format,
			DPI:    dpi,
			Bytes:  info.Size(),
		})
	}

	if len(pages) == 0 {
		return nil, errors.New("rasterizer produced no pages")
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	for i, page := range pages {
		if page.Index != i+1 {
			return nil, fmt.Errorf("page indices not contiguous: expected %d, found %d", i+1, page.Index)
		}
	}
	return pages, nil
}

func diagnostic(output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return "rasterizer error"
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
