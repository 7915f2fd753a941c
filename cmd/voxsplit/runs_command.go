package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"voxsplit/internal/runs"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded extraction runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := runs.Open(cfg.Paths.DBPath)
			if err != nil {
				return fmt.Errorf("open run ledger: %w", err)
			}
			defer store.Close()

			list, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, run := range list {
				detail := run.ProgressMessage
				if run.Status == runs.StatusFailed && run.ErrorMessage != "" {
					detail = run.ErrorMessage
				}
				rows = append(rows, []string{
					shortID(run.ID),
					run.SourcePath,
					string(run.Status),
					fmt.Sprintf("%.0f%%", run.ProgressPercent),
					yesNo(run.FallbackUsed),
					run.CreatedAt.Local().Format(time.DateTime),
					detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Run", "Source", "Status", "Progress", "Fallback", "Started", "Detail"},
				rows,
				3,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
