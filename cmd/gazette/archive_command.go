package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"gazettemachine/internal/archive"
	"gazettemachine/internal/config"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/pipeline"
)

type archiveReport struct {
	Result        archive.Result   `json:"result"`
	Record        *gazette.Record  `json:"record"`
	Archived      gazette.Location `json:"archived"`
	CleanupErrors []string         `json:"cleanup_errors,omitempty"`
}

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	var info string

	cmd := &cobra.Command{
		Use:   "archive --info '<record json>'",
		Short: "Archive a record that was already identified",
		Long: `Save an identified record, copy its working copy and source artifacts into
the archive bucket, and remove the staged copies. The record is the JSON
printed by "gazette identify --json" or built by hand; key fields are
derived when missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := parseInfo(info)
			if err != nil {
				return err
			}
			if !rec.Identified {
				return fmt.Errorf("record is not identified; run gazette identify instead")
			}
			if rec.Key == "" {
				if err := rec.AssignKeys(); err != nil {
					return err
				}
			}
			localPath := ""
			if rec.WorkingLocation.IsZero() {
				if rec.Source.Kind != gazette.SourceFile {
					return fmt.Errorf("record has no working location to archive from")
				}
				localPath = rec.Source.Path
			}

			return ctx.withStack(cmd, func(runCtx context.Context, _ *config.Config, stack *pipeline.Stack, _ *slog.Logger) error {
				result, err := stack.Archiver.Archive(runCtx, rec, localPath)
				if err != nil {
					return err
				}
				cleaned := stack.Archiver.Cleanup(runCtx, rec)
				report := archiveReport{
					Result:   result,
					Record:   rec,
					Archived: stack.Archiver.Location(rec),
				}
				for _, e := range cleaned.Errors {
					report.CleanupErrors = append(report.CleanupErrors, fmt.Sprintf("%s: %v", e.Location, e.Error))
				}
				if ctx.wantJSON(cmd.OutOrStdout()) {
					return writeJSON(cmd, report)
				}
				rows := append([][]string{
					{"Result", string(report.Result)},
					{"Archived at", report.Archived.String()},
					{"Cleanup errors", fmt.Sprint(len(report.CleanupErrors))},
				}, recordRows(rec)...)
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&info, "info", "", "Record JSON")
	_ = cmd.MarkFlagRequired("info")
	return cmd
}
