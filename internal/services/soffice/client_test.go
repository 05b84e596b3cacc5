package soffice_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"slidecast/internal/services"
	"slidecast/internal/services/soffice"
)

type fakeExecutor struct {
	output string
	err    error
	run    func(ctx context.Context, outDir string) error

	lastBinary string
	lastArgs   []string
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, env []string) (string, error) {
	f.lastBinary = binary
	f.lastArgs = args
	if f.run != nil {
		if err := f.run(ctx, outDirFromArgs(args)); err != nil {
			return f.output, err
		}
	}
	return f.output, f.err
}

func outDirFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--outdir" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func newClient(t *testing.T, exec soffice.Executor, timeoutSeconds int) *soffice.Client {
	t.Helper()
	profile := filepath.Join(t.TempDir(), "profile")
	if err := os.MkdirAll(profile, 0o755); err != nil {
		t.Fatalf("mkdir profile: %v", err)
	}
	client, err := soffice.New("soffice", profile, timeoutSeconds, soffice.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestConvertReturnsProducedPDF(t *testing.T) {
	exec := &fakeExecutor{
		run: func(_ context.Context, outDir string) error {
			return os.WriteFile(filepath.Join(outDir, "deck.pdf"), []byte("%PDF-1.4"), 0o644)
		},
	}
	client := newClient(t, exec, 30)

	source := newSource(t, "deck.pptx", "fake presentation bytes")
	outDir := t.TempDir()

	pdfPath, err := client.Convert(context.Background(), source, outDir)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if pdfPath != filepath.Join(outDir, "deck.pdf") {
		t.Fatalf("unexpected pdf path %q", pdfPath)
	}
	if exec.lastBinary != "soffice" {
		t.Fatalf("unexpected binary %q", exec.lastBinary)
	}
	joined := strings.Join(exec.lastArgs, " ")
	if !strings.Contains(joined, "--headless") || !strings.Contains(joined, "--convert-to pdf") {
		t.Fatalf("unexpected args: %v", exec.lastArgs)
	}
}

func TestConvertEmptySourceFails(t *testing.T) {
	client := newClient(t, &fakeExecutor{}, 30)
	source := newSource(t, "empty.pptx", "")

	_, err := client.Convert(context.Background(), source, t.TempDir())
	if !errors.Is(err, services.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty-source diagnostic, got %v", err)
	}
}

func TestConvertToolFailureCarriesStderr(t *testing.T) {
	exec := &fakeExecutor{
		output: "Error: source file could not be loaded",
		err:    errors.New("exit status 1"),
	}
	client := newClient(t, exec, 30)
	source := newSource(t, "broken.pptx", "not really a presentation")

	_, err := client.Convert(context.Background(), source, t.TempDir())
	if !errors.Is(err, services.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "could not be loaded") {
		t.Fatalf("expected captured diagnostics in error, got %v", err)
	}
}

func TestConvertTimeout(t *testing.T) {
	exec := &fakeExecutor{
		run: func(ctx context.Context, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	client := newClient(t, exec, 1)
	source := newSource(t, "slow.pptx", "content")

	start := time.Now()
	_, err := client.Convert(context.Background(), source, t.TempDir())
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took too long: %s", elapsed)
	}
}

func TestConvertMissingBinary(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile")
	if err := os.MkdirAll(profile, 0o755); err != nil {
		t.Fatalf("mkdir profile: %v", err)
	}
	client, err := soffice.New("soffice-not-installed-anywhere", profile, 30)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	source := newSource(t, "deck.pptx", "content")

	_, err = client.Convert(context.Background(), source, t.TempDir())
	if !errors.Is(err, services.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "soffice-not-installed-anywhere") {
		t.Fatalf("expected error to name the missing binary, got %v", err)
	}
}

func TestConvertNoOutputFails(t *testing.T) {
	client := newClient(t, &fakeExecutor{}, 30)
	source := newSource(t, "deck.pptx", "content")

	_, err := client.Convert(context.Background(), source, t.TempDir())
	if !errors.Is(err, services.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}
}

func TestConvertZeroLengthOutputFails(t *testing.T) {
	exec := &fakeExecutor{
		run: func(_ context.Context, outDir string) error {
			return os.WriteFile(filepath.Join(outDir, "deck.pdf"), nil, 0o644)
		},
	}
	client := newClient(t, exec, 30)
	source := newSource(t, "deck.pptx", "content")

	_, err := client.Convert(context.Background(), source, t.TempDir())
	if !errors.Is(err, services.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed for empty PDF, got %v", err)
	}
}

func TestNewRequiresBinaryAndProfile(t *testing.T) {
	if _, err := soffice.New("", "/tmp/profile", 30); err == nil {
		t.Fatal("expected error for missing binary")
	}
	if _, err := soffice.New("soffice", "", 30); err == nil {
		t.Fatal("expected error for missing profile dir")
	}
}
