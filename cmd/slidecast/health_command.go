package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"slidecast/internal/deps"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check availability of external conversion tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd, ctx)
		},
	}
}

func runHealth(cmd *cobra.Command, ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	statuses := deps.CheckBinaries(deps.Requirements(cfg))
	rows := make([][]string, 0, len(statuses))
	healthy := true
	for _, status := range statuses {
		detail := status.Detail
		if status.Available {
			detail = ""
		} else if !status.Optional {
			healthy = false
		}
		rows = append(rows, []string{
			status.Name,
			status.Command,
			yesNo(status.Available),
			status.Description,
			detail,
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Tool", "Command", "Available", "Description", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))

	if !healthy {
		return fmt.Errorf("required tools are missing")
	}
	return nil
}
