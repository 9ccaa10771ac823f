package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gazettemachine/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check pdftotext, Ghostscript, Tesseract and work_dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			statuses := deps.Check(cfg)

			if ctx.wantJSON(cmd.OutOrStdout()) {
				if err := writeJSON(cmd, statuses); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(statuses))
				for _, s := range statuses {
					available := yesNo(s.Available)
					if !s.Available && s.Optional {
						available = "no (optional)"
					}
					rows = append(rows, []string{s.Name, s.Command, available, s.Detail})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Dependency", "Command", "Available", "Detail"}, rows, nil))
			}

			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required dependencies unavailable", len(missing))
			}
			return nil
		},
	}
}
