package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"gazettemachine/internal/config"
	"gazettemachine/internal/ingest"
	"gazettemachine/internal/jobs"
	"gazettemachine/internal/pipeline"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var jurisdiction string
	var indexes []string
	var local bool

	cmd := &cobra.Command{
		Use:   "ingest --jurisdiction <code> --index <url>",
		Short: "Queue unseen gazette PDFs linked from index pages",
		Long: `Scrape each index page for PDF links, drop the ones the metadata store has
already seen, and publish the rest as jobs for gazetted workers. With --local
the pipeline runs in this process instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(cmd, func(runCtx context.Context, cfg *config.Config, stack *pipeline.Stack, logger *slog.Logger) error {
				var dispatcher ingest.Dispatcher
				if local {
					dispatcher = ingest.RunLocally(stack.Controller)
				} else {
					client, err := jobs.Connect(cfg.Jobs, logger)
					if err != nil {
						return err
					}
					defer client.Close()
					defer func() { _ = client.Flush(context.WithoutCancel(runCtx)) }()
					dispatcher = ingest.PublishTo(client)
				}

				ingester := ingest.New(cfg, stack.Meta, dispatcher, logger)
				reports := make([]ingest.Report, 0, len(indexes))
				failed := 0
				for _, index := range indexes {
					report, err := ingester.Run(runCtx, jurisdiction, index)
					if err != nil {
						return fmt.Errorf("ingest %s: %w", index, err)
					}
					failed += report.Failed()
					reports = append(reports, report)
				}

				if ctx.wantJSON(cmd.OutOrStdout()) {
					if err := writeJSON(cmd, reports); err != nil {
						return err
					}
				} else {
					rows := make([][]string, 0)
					for _, report := range reports {
						for _, item := range report.Items {
							result := item.Result
							if item.Error != "" {
								result = "error: " + item.Error
							}
							rows = append(rows, []string{item.URL, result})
						}
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %d links, %d already seen\n", report.Index, report.Found, report.Seen)
					}
					if len(rows) > 0 {
						fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"URL", "Result"}, rows, nil))
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d links could not be dispatched", failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&jurisdiction, "jurisdiction", "j", "", "Jurisdiction code for every discovered link")
	cmd.Flags().StringArrayVar(&indexes, "index", nil, "Index page URL (repeatable)")
	cmd.Flags().BoolVar(&local, "local", false, "Run the pipeline in-process instead of publishing jobs")
	_ = cmd.MarkFlagRequired("jurisdiction")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}
