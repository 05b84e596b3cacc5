package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/fileutil"
	"slidecast/internal/logging"
	"slidecast/internal/registry"
	"slidecast/internal/services"
	"slidecast/internal/services/poppler"
	"slidecast/internal/services/soffice"
	"slidecast/internal/workspace"
)

// Request carries the per-job rasterization overrides accepted at submit
// time. Zero values fall back to configuration defaults.
type Request struct {
	DPI    int
	Format string
}

// Orchestrator drives uploads through the conversion stages. A bounded
// worker pool limits concurrent jobs; the PDF rendering step is additionally
// serialized because LibreOffice tolerates only one conversion per profile.
type Orchestrator struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *registry.Registry
	history    *registry.History
	workspaces *workspace.Manager
	converter  soffice.Converter
	rasterizer poppler.Rasterizer

	workers     chan struct{}
	convertSlot chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an orchestrator. history may be nil when persistence is
// disabled.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	reg *registry.Registry,
	history *registry.History,
	workspaces *workspace.Manager,
	converter soffice.Converter,
	rasterizer poppler.Rasterizer,
) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Pipeline.Workers
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
		registry:    reg,
		history:     history,
		workspaces:  workspaces,
		converter:   converter,
		rasterizer:  rasterizer,
		workers:     make(chan struct{}, workers),
		convertSlot: make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Submit schedules a queued job for processing. uploadPath must point at the
// staged upload; the orchestrator takes ownership of the file.
func (o *Orchestrator) Submit(jobID, uploadPath string, req Request) error {
	if o.ctx.Err() != nil {
		return services.Wrap(services.ErrResource, "submit", "pipeline", "pipeline is shutting down", o.ctx.Err())
	}
	if _, err := o.registry.Get(jobID); err != nil {
		return err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.process(jobID, uploadPath, req)
	}()
	return nil
}

// Shutdown stops accepting jobs and waits for in-flight work to drain or ctx
// to expire, whichever comes first.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline shutdown: %w", ctx.Err())
	}
}

func (o *Orchestrator) process(jobID, uploadPath string, req Request) {
	ctx := services.WithJobID(o.ctx, jobID)
	log := o.logger.With(logging.String(logging.FieldJobID, jobID))
	started := time.Now()

	select {
	case o.workers <- struct{}{}:
		defer func() { <-o.workers }()
	case <-o.ctx.Done():
		o.markFailed(jobID, uploadPath, o.ctx.Err())
		return
	}

	workDir, err := o.workspaces.Acquire(jobID)
	if err != nil {
		o.markFailed(jobID, uploadPath, err)
		return
	}
	defer func() {
		if err := o.workspaces.Release(jobID); err != nil {
			log.Warn("workspace cleanup failed", logging.Error(err))
		}
	}()

	sourcePath := filepath.Join(workDir, filepath.Base(uploadPath))
	if err := fileutil.MoveFile(uploadPath, sourcePath); err != nil {
		o.markFailed(jobID, uploadPath,
			services.Wrap(services.ErrResource, "stage", "workspace", "stage upload", err))
		return
	}

	if _, err := o.registry.Update(jobID, func(j *registry.Job) {
		j.Status = registry.StatusConverting
		j.SetProgress("rendering document to PDF", 15)
	}); err != nil {
		log.Error("status update failed", logging.Error(err))
		return
	}
	log.Info("converting document", logging.String("source", filepath.Base(sourcePath)))

	pdfPath, err := o.convertSerialized(ctx, sourcePath, workDir)
	if err != nil {
		o.markFailed(jobID, "", err)
		return
	}

	pageCount, err := o.rasterizer.PageCount(pdfPath)
	if err != nil {
		// Progress totals are cosmetic; rasterization still decides the
		// real page set.
		log.Warn("page count unavailable", logging.Error(err))
		pageCount = 0
	}

	if _, err := o.registry.Update(jobID, func(j *registry.Job) {
		j.Status = registry.StatusRasterizing
		j.PageCount = pageCount
		if pageCount > 0 {
			j.SetProgress(fmt.Sprintf("rasterizing %d pages", pageCount), 55)
		} else {
			j.SetProgress("rasterizing pages", 55)
		}
	}); err != nil {
		log.Error("status update failed", logging.Error(err))
		return
	}

	imagesDir := filepath.Join(workDir, "images")
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		o.markFailed(jobID, "",
			services.Wrap(services.ErrResource, "rasterize", "workspace", "create image directory", err))
		return
	}

	pages, err := o.rasterizer.Rasterize(ctx, pdfPath, imagesDir, o.rasterizeOptions(req))
	if err != nil {
		o.markFailed(jobID, "", err)
		return
	}

	published, err := o.publish(jobID, pages)
	if err != nil {
		o.markFailed(jobID, "", err)
		return
	}

	job, err := o.registry.Update(jobID, func(j *registry.Job) {
		j.Status = registry.StatusCompleted
		j.Pages = published
		j.PageCount = len(published)
		j.SetProgress("completed", 100)
	})
	if err != nil {
		log.Error("status update failed", logging.Error(err))
		return
	}

	o.record(job)
	log.Info("conversion completed",
		logging.Int("pages", len(published)),
		logging.Duration("elapsed", time.Since(started)))
}

// convertSerialized funnels all LibreOffice invocations through a single
// slot regardless of worker pool size.
func (o *Orchestrator) convertSerialized(ctx context.Context, sourcePath, outDir string) (string, error) {
	select {
	case o.convertSlot <- struct{}{}:
		defer func() { <-o.convertSlot }()
	case <-ctx.Done():
		return "", services.Wrap(services.ErrResource, "convert", "pipeline", "wait for renderer slot", ctx.Err())
	}
	return o.converter.Convert(ctx, sourcePath, outDir)
}

func (o *Orchestrator) rasterizeOptions(req Request) poppler.Options {
	opts := poppler.Options{
		DPI:         o.cfg.Rasterizer.DPI,
		Format:      o.cfg.Rasterizer.Format,
		JPEGQuality: o.cfg.Rasterizer.JPEGQuality,
	}
	if req.DPI > 0 {
		opts.DPI = req.DPI
	}
	if format := strings.TrimSpace(req.Format); format != "" {
		opts.Format = format
	}
	return opts
}

// publish moves rendered pages out of the workspace into the served output
// directory under canonical page-<index> names and returns the public page
// records.
func (o *Orchestrator) publish(jobID string, pages []poppler.Page) ([]registry.PageImage, error) {
	destDir := o.OutputPath(jobID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrResource, "publish", "output", "create output directory", err)
	}

	published := make([]registry.PageImage, 0, len(pages))
	for _, page := range pages {
		name := fmt.Sprintf("page-%d.%s", page.Index, page.Format)
		if err := fileutil.MoveFile(page.Path, filepath.Join(destDir, name)); err != nil {
			os.RemoveAll(destDir)
			return nil, services.Wrap(services.ErrResource, "publish", "output",
				fmt.Sprintf("publish page %d", page.Index), err)
		}
		published = append(published, registry.PageImage{
			Index:    page.Index,
			Filename: name,
			URL:      o.imageURL(jobID, name),
			Format:   page.Format,
			DPI:      page.DPI,
			Bytes:    page.Bytes,
		})
	}
	return published, nil
}

// OutputPath returns the directory that holds a job's published images.
func (o *Orchestrator) OutputPath(jobID string) string {
	return filepath.Join(o.cfg.Paths.OutputDir, jobID)
}

func (o *Orchestrator) imageURL(jobID, filename string) string {
	return fmt.Sprintf("%s/images/%s/%s", strings.TrimRight(o.cfg.Server.BaseURL, "/"), jobID, filename)
}

// markFailed records the failure on the job, discards any partially
// published output, and drops the staged upload when it never reached the
// workspace.
func (o *Orchestrator) markFailed(jobID, uploadPath string, cause error) {
	kind := services.Kind(cause)
	detail := services.Detail(cause)
	if errors.Is(cause, context.Canceled) {
		kind = "ResourceError"
		detail = registry.ShutdownReason
	}
	if kind == "" {
		kind = "ConversionFailed"
	}
	if detail == "" {
		detail = "conversion failed"
	}

	if uploadPath != "" {
		os.Remove(uploadPath)
	}
	os.RemoveAll(o.OutputPath(jobID))

	job, err := o.registry.Update(jobID, func(j *registry.Job) {
		j.SetFailed(kind, detail)
	})
	if err != nil {
		o.logger.Error("failure update lost",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
		return
	}
	o.record(job)
	o.logger.Error("conversion failed",
		logging.String(logging.FieldJobID, jobID),
		logging.String("kind", kind),
		logging.String("detail", detail))
}

func (o *Orchestrator) record(job *registry.Job) {
	if o.history == nil || job == nil {
		return
	}
	recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.history.Record(recordCtx, job); err != nil {
		o.logger.Warn("history record failed",
			logging.String(logging.FieldJobID, job.ID), logging.Error(err))
	}
}

// Delete removes a terminal job and its published images. Active jobs are
// rejected so workers never race deletion.
func (o *Orchestrator) Delete(ctx context.Context, jobID string) error {
	job, err := o.registry.Get(jobID)
	if err == nil {
		if !job.Status.Terminal() {
			return services.Wrap(services.ErrValidation, "delete", "pipeline",
				fmt.Sprintf("job is still %s", job.Status), nil)
		}
		if err := o.registry.Remove(jobID); err != nil && !errors.Is(err, services.ErrNotFound) {
			return err
		}
	} else if !errors.Is(err, services.ErrNotFound) {
		return err
	} else if o.history == nil {
		return err
	} else if _, histErr := o.history.Get(ctx, jobID); histErr != nil {
		return histErr
	}

	if o.history != nil {
		if err := o.history.Delete(ctx, jobID); err != nil {
			return err
		}
	}
	if err := os.RemoveAll(o.OutputPath(jobID)); err != nil {
		return services.Wrap(services.ErrResource, "delete", "output", "remove published images", err)
	}
	return nil
}
