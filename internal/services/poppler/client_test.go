package poppler_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slidecast/internal/services"
	"slidecast/internal/services/poppler"
	"slidecast/internal/testsupport"
)

type fakeExecutor struct {
	files map[string][]byte
	err   error

	lastArgs []string
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, env []string) (string, error) {
	f.lastArgs = args
	outPrefix := args[len(args)-1]
	outDir := filepath.Dir(outPrefix)
	for name, content := range f.files {
		if err := os.WriteFile(filepath.Join(outDir, name), content, 0o644); err != nil {
			return "", err
		}
	}
	return "", f.err
}

func newClient(t *testing.T, exec poppler.Executor) *poppler.Client {
	t.Helper()
	client, err := poppler.New("pdftoppm", 30, 600, poppler.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return client
}

func TestRasterizeOrdersByEmbeddedIndex(t *testing.T) {
	exec := &fakeExecutor{files: map[string][]byte{
		"page-10.png": []byte("ten"),
		"page-2.png":  []byte("two"),
		"page-1.png":  []byte("one"),
		"page-3.png":  []byte("three"),
		"page-4.png":  []byte("four"),
		"page-5.png":  []byte("five"),
		"page-6.png":  []byte("six"),
		"page-7.png":  []byte("seven"),
		"page-8.png":  []byte("eight"),
		"page-9.png":  []byte("nine"),
		"notes.txt":   []byte("ignored"),
	}}
	client := newClient(t, exec)

	pages, err := client.Rasterize(context.Background(), "doc.pdf", t.TempDir(), poppler.Options{DPI: 150, Format: "png"})
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	if len(pages) != 10 {
		t.Fatalf("expected 10 pages, got %d", len(pages))
	}
	for i, page := range pages {
		if page.Index != i+1 {
			t.Fatalf("expected page %d at position %d, got %d", i+1, i, page.Index)
		}
		if page.Bytes == 0 {
			t.Fatalf("page %d reported zero bytes", page.Index)
		}
	}
}

func TestRasterizeZeroPadding(t *testing.T) {
	exec := &fakeExecutor{files: map[string][]byte{
		"page-01.png": []byte("one"),
		"page-02.png": []byte("two"),
	}}
	client := newClient(t, exec)

	pages, err := client.Rasterize(context.Background(), "doc.pdf", t.TempDir(), poppler.Options{DPI: 150})
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	if len(pages) != 2 || pages[0].Index != 1 || pages[1].Index != 2 {
		t.Fatalf("expected padded names parsed as 1,2: %+v", pages)
	}
}

func TestRasterizeNoOutputFails(t *testing.T) {
	client := newClient(t, &fakeExecutor{})

	_, err := client.Rasterize(context.Background(), "doc.pdf", t.TempDir(), poppler.Options{DPI: 150})
	if !errors.Is(err, services.ErrRasterizationFailed) {
		t.Fatalf("expected ErrRasterizationFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "no pages") {
		t.Fatalf("unexpected diagnostic: %v", err)
	}
}

func TestRasterizeGapInIndicesFails(t *testing.T) {
	exec := &fakeExecutor{files: map[string][]byte{
		"page-1.png": []byte("one"),
		"page-3.png": []byte("three"),
	}}
	client := newClient(t, exec)

	_, err := client.Rasterize(context.Background(), "doc.pdf", t.TempDir(), poppler.Options{DPI: 150})
	if !errors.Is(err, services.ErrRasterizationFailed) {
		t.Fatalf("expected ErrRasterizationFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "contiguous") {
		t.Fatalf("unexpected diagnostic: %v", err)
	}
}

func TestRasterizeEmptyPageFails(t *testing.T) {
	exec := &fakeExecutor{files: map[string][]byte{
		"page-1.png": nil,
	}}
	client := newClient(t, exec)

	_, err := client.Rasterize(context.Background(), "doc.pdf", t.TempDir(), poppler.Options{DPI: 150})
	if !errors.Is(err, services.ErrRasterizationFailed) {
		t.Fatalf("expected ErrRasterizationFailed for empty image, got %v", err)
	}
}

func TestRasterizeClampsDPI(t *testing.T) {
	exec := &fakeExecutor{files: map[string][]byte{
		"page-1.png": []byte("one"),
	}}
	client := newClient(t, exec)

	pages, err := client.Rasterize(context.Background(), "doc.pdf", t.TempDir(), poppler.Options{DPI: 5000})
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	if pages[0].DPI != 600 {
		t.Fatalf("expected dpi clamped to 600, got %d", pages[0].DPI)
	}
	joined := strings.Join(exec.lastArgs, " ")
	if !strings.Contains(joined, "-r 600") {
		t.Fatalf("expected clamped -r arg, got %v", exec.lastArgs)
	}
}

func TestRasterizeRejectsBadOptions(t *testing.T) {
	client := newClient(t, &fakeExecutor{})

	if _, err := client.Rasterize(context.Background(), "doc.pdf", t.TempDir(), poppler.Options{DPI: 0}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for zero dpi, got %v", err)
	}
	if _, err := client.Rasterize(context.Background(), "doc.pdf", t.TempDir(), poppler.Options{DPI: 150, Format: "tiff"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for bad format, got %v", err)
	}
}

func TestRasterizeJPEGArgs(t *testing.T) {
	exec := &fakeExecutor{files: map[string][]byte{
		"page-1.jpg": []byte("one"),
	}}
	client := newClient(t, exec)

	pages, err := client.Rasterize(context.Background(), "doc.pdf", t.TempDir(), poppler.Options{DPI: 150, Format: "jpeg", JPEGQuality: 80})
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	if pages[0].Format != "jpg" {
		t.Fatalf("expected jpeg normalized to jpg, got %q", pages[0].Format)
	}
	joined := strings.Join(exec.lastArgs, " ")
	if !strings.Contains(joined, "-jpeg") || !strings.Contains(joined, "quality=80") {
		t.Fatalf("unexpected args: %v", exec.lastArgs)
	}
}

func TestPageCount(t *testing.T) {
	pdfPath := filepath.Join(t.TempDir(), "deck.pdf")
	testsupport.WritePDF(t, pdfPath, 4)

	client := newClient(t, &fakeExecutor{})
	count, err := client.PageCount(pdfPath)
	if err != nil {
		t.Fatalf("PageCount failed: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 pages, got %d", count)
	}
}

func TestPageCountRejectsGarbage(t *testing.T) {
	pdfPath := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(pdfPath, []byte("not a pdf"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	client := newClient(t, &fakeExecutor{})
	if _, err := client.PageCount(pdfPath); err == nil {
		t.Fatal("expected error for malformed pdf")
	}
}

func TestPageCountSurvivesBrokenXref(t *testing.T) {
	// Valid header with a startxref offset pointing into the header instead
	// of a cross-reference table. The converter can emit such a file when it
	// is killed mid-write.
	pdfPath := filepath.Join(t.TempDir(), "truncated.pdf")
	content := "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\nstartxref\n3\n%%EOF\n"
	if err := os.WriteFile(pdfPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	client := newClient(t, &fakeExecutor{})
	count, err := client.PageCount(pdfPath)
	if err == nil {
		t.Fatal("expected error for broken xref")
	}
	if count != 0 {
		t.Fatalf("expected zero count on failure, got %d", count)
	}
}
