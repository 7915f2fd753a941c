package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voxsplit/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check collaborator binaries, directories, and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.Run(cfg)

			if jsonOutput {
				return writeJSON(cmd, results)
			}

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				state := "FAIL"
				if r.Passed {
					state = "OK"
				} else if r.Optional {
					state = "WARN"
				}
				rows = append(rows, []string{r.Name, state, r.Detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Check", "State", "Detail"},
				rows,
			))
			if !preflight.Ready(results) {
				return fmt.Errorf("host is not ready to run extractions")
			}
			fmt.Fprintln(out, "Ready")
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print check results as JSON")
	return cmd
}
