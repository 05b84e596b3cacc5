package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"slidecast/internal/registry"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recorded conversion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobs(cmd, ctx, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to show (0 for all)")
	return cmd
}

func runJobs(cmd *cobra.Command, ctx *commandContext, limit int) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("job history is disabled; enable [history] in the configuration")
	}

	history, err := registry.OpenHistory(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer history.Close()

	jobs, err := history.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No recorded jobs.")
		return nil
	}

	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		completed := ""
		if job.CompletedAt != nil {
			completed = job.CompletedAt.Local().Format(time.RFC3339)
		}
		detail := job.ErrorDetail
		if job.Status == registry.StatusCompleted {
			detail = ""
		}
		rows = append(rows, []string{
			job.ID,
			job.DisplayTitle,
			string(job.Status),
			strconv.Itoa(job.PageCount),
			completed,
			detail,
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "Title", "Status", "Pages", "Completed", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
	return nil
}
