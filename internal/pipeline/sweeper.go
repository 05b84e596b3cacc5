package pipeline

import (
	"context"
	"errors"
	"os"
	"time"

	"slidecast/internal/logging"
	"slidecast/internal/services"
)

// RunSweeper evicts terminal jobs whose artifacts have outlived the
// configured retention window. It blocks until ctx is cancelled and is a
// no-op when retention is disabled.
func (o *Orchestrator) RunSweeper(ctx context.Context) {
	if !o.cfg.Retention.Enabled || o.cfg.Retention.MaxAgeHours <= 0 {
		return
	}
	interval := time.Duration(o.cfg.Retention.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.SweepOnce(ctx, time.Now().Add(-time.Duration(o.cfg.Retention.MaxAgeHours)*time.Hour))
		}
	}
}

// SweepOnce removes every terminal job completed before cutoff, from the
// in-memory table, the history database, and the output directory.
func (o *Orchestrator) SweepOnce(ctx context.Context, cutoff time.Time) int {
	removed := 0

	for _, job := range o.registry.List() {
		if !job.Status.Terminal() || job.CompletedAt == nil || !job.CompletedAt.Before(cutoff) {
			continue
		}
		if err := o.registry.Remove(job.ID); err != nil && !errors.Is(err, services.ErrNotFound) {
			continue
		}
		os.RemoveAll(o.OutputPath(job.ID))
		removed++
	}

	if o.history != nil {
		ids, err := o.history.Prune(ctx, cutoff)
		if err != nil {
			o.logger.Warn("history prune failed", logging.Error(err))
		}
		for _, id := range ids {
			if err := o.registry.Remove(id); err == nil {
				removed++
			}
			os.RemoveAll(o.OutputPath(id))
		}
	}

	if removed > 0 {
		o.logger.Info("retention sweep evicted jobs", logging.Int("count", removed))
	}
	return removed
}
