package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"gazettemachine/internal/config"
	"gazettemachine/internal/gazette"
	"gazettemachine/internal/pipeline"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var jurisdiction string
	var info string

	cmd := &cobra.Command{
		Use:   "identify [source]",
		Short: "Identify a gazette and archive it",
		Long: `Run the full pipeline on one document: fetch, extract the coverpage,
OCR once if needed, identify, archive and clean up staged copies.

A source is a local path, an s3://bucket/key reference inside the incoming
bucket, or an http(s) URL. Documents that cannot be identified get a manual
review task instead of an error.

Examples:
  gazette identify --jurisdiction na ./na-2018-31.pdf
  gazette identify --jurisdiction bw https://example.org/bw-17.pdf
  gazette identify --info '{"jurisdiction":"na","source":"s3://incoming/upload/31.pdf"}'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := identifyInput(jurisdiction, info, args)
			if err != nil {
				return err
			}
			return ctx.withStack(cmd, func(runCtx context.Context, _ *config.Config, stack *pipeline.Stack, _ *slog.Logger) error {
				outcome, err := stack.Controller.IdentifyAndArchive(runCtx, rec)
				if err != nil {
					return fmt.Errorf("identify stopped at %s: %w", outcome.Final, err)
				}
				return printOutcome(cmd, ctx, outcome)
			})
		},
	}

	cmd.Flags().StringVarP(&jurisdiction, "jurisdiction", "j", "", "Jurisdiction code (na, bw, ...)")
	cmd.Flags().StringVar(&info, "info", "", "Job or record JSON instead of a positional source")
	return cmd
}

func identifyInput(jurisdiction, info string, args []string) (*gazette.Record, error) {
	if strings.TrimSpace(info) != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("pass either a source or --info, not both")
		}
		return parseInfo(info)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("a source or --info is required")
	}
	if strings.TrimSpace(jurisdiction) == "" {
		return nil, fmt.Errorf("--jurisdiction is required with a positional source")
	}
	src, err := gazette.ParseSource(args[0])
	if err != nil {
		return nil, err
	}
	return gazette.NewRecord(jurisdiction, src), nil
}

func printOutcome(cmd *cobra.Command, ctx *commandContext, outcome pipeline.Outcome) error {
	if ctx.wantJSON(cmd.OutOrStdout()) {
		return writeJSON(cmd, outcome)
	}
	trail := make([]string, 0, len(outcome.Trail))
	for _, s := range outcome.Trail {
		trail = append(trail, string(s))
	}
	rows := append([][]string{
		{"Result", string(outcome.Final)},
		{"Trail", strings.Join(trail, " > ")},
	}, recordRows(outcome.Record)...)
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
	return nil
}
