package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gazettemachine/internal/workdir"
)

func newWorkdirCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workdir",
		Short: "Inspect and sweep scoped temp directories",
	}
	cmd.AddCommand(newWorkdirListCommand(ctx))
	cmd.AddCommand(newWorkdirCleanCommand(ctx))
	return cmd
}

func newWorkdirListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scoped directories left in work_dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			entries, err := workdir.List(cfg.Paths.WorkDir)
			if err != nil {
				return err
			}
			if ctx.wantJSON(cmd.OutOrStdout()) {
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scoped directories in", cfg.Paths.WorkDir)
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Name,
					time.Since(e.ModTime).Round(time.Second).String(),
					fmt.Sprintf("%d", e.Size),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Directory", "Age", "Bytes"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
			return nil
		},
	}
}

func newWorkdirCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove scoped directories older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			result := workdir.CleanStale(cmd.Context(), cfg.Paths.WorkDir, olderThan, logger)
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d directories\n", len(result.Removed))
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d directories could not be removed", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "Minimum age of directories to remove")
	return cmd
}
