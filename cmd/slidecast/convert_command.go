package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"slidecast/internal/fileutil"
	"slidecast/internal/services/poppler"
	"slidecast/internal/services/soffice"
	"slidecast/internal/workspace"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var dpi int
	var format string

	cmd := &cobra.Command{
		Use:   "convert <file.pptx>",
		Short: "Convert a presentation to page images synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, ctx, args[0], outputDir, dpi, format)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to write page images into (default: <file>-pages)")
	cmd.Flags().IntVar(&dpi, "dpi", 0, "Rasterization DPI (default from config)")
	cmd.Flags().StringVar(&format, "format", "", "Image format, png or jpg (default from config)")
	return cmd
}

func runConvert(cmd *cobra.Command, ctx *commandContext, sourceArg, outputDir string, dpi int, format string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sourcePath, err := filepath.Abs(sourceArg)
	if err != nil {
		return fmt.Errorf("resolve source path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(sourcePath))
	if ext != ".ppt" && ext != ".pptx" {
		return fmt.Errorf("unsupported file type %q, expected .ppt or .pptx", ext)
	}
	if outputDir == "" {
		stem := strings.TrimSuffix(filepath.Base(sourcePath), ext)
		outputDir = filepath.Join(filepath.Dir(sourcePath), stem+"-pages")
	}

	workspaces, err := workspace.NewManager(cfg.Paths.WorkRoot)
	if err != nil {
		return fmt.Errorf("init workspace manager: %w", err)
	}
	converter, err := soffice.New(cfg.Converter.Binary, cfg.Paths.ProfileDir, cfg.Converter.TimeoutSeconds)
	if err != nil {
		return fmt.Errorf("init converter: %w", err)
	}
	rasterizer, err := poppler.New(cfg.Rasterizer.Binary, cfg.Rasterizer.TimeoutSeconds, cfg.Rasterizer.MaxDPI)
	if err != nil {
		return fmt.Errorf("init rasterizer: %w", err)
	}

	jobID := uuid.NewString()
	workDir, err := workspaces.Acquire(jobID)
	if err != nil {
		return err
	}
	defer func() { _ = workspaces.Release(jobID) }()

	pdfPath, err := converter.Convert(cmd.Context(), sourcePath, workDir)
	if err != nil {
		return err
	}

	opts := poppler.Options{
		DPI:         cfg.Rasterizer.DPI,
		Format:      cfg.Rasterizer.Format,
		JPEGQuality: cfg.Rasterizer.JPEGQuality,
	}
	if dpi > 0 {
		opts.DPI = dpi
	}
	if format != "" {
		opts.Format = format
	}

	pages, err := rasterizer.Rasterize(cmd.Context(), pdfPath, workDir, opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	rows := make([][]string, 0, len(pages))
	for _, page := range pages {
		name := fmt.Sprintf("page-%d.%s", page.Index, page.Format)
		target := filepath.Join(outputDir, name)
		if err := fileutil.MoveFile(page.Path, target); err != nil {
			return fmt.Errorf("write page %d: %w", page.Index, err)
		}
		rows = append(rows, []string{
			strconv.Itoa(page.Index),
			name,
			strconv.Itoa(page.DPI),
			fmt.Sprintf("%d B", page.Bytes),
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Converted %s (%d pages) into %s\n",
		filepath.Base(sourcePath), len(pages), outputDir)
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Page", "File", "DPI", "Size"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
	))
	return nil
}
