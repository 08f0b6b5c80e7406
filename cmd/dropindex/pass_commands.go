package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dropindex/internal/pipeline"
	"dropindex/internal/services"
)

func newPassCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newIngestCommand(ctx),
		newStageCommand(ctx, pipeline.StageFingerprint, "fingerprint", "Compute perceptual fingerprints for listing images"),
		newStageCommand(ctx, pipeline.StageCluster, "cluster", "Group listings that sell the same product"),
		newEnrichCommand(ctx),
		newRunCommand(ctx),
	}
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [feed.jsonl...]",
		Short: "Load supplier feed files into the catalog",
		Long:  "Load the given JSONL feed files, or every raw_products_*.jsonl file in the configured feed directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := ctx.runner()
			if err != nil {
				return err
			}
			summary, runErr := runner.Ingest(cmd.Context(), args)
			return printSummaries(cmd, ctx, []*services.Summary{summary}, runErr)
		},
	}
}

func newStageCommand(ctx *commandContext, stage pipeline.Stage, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := ctx.runner()
			if err != nil {
				return err
			}
			summaries, runErr := runner.Run(cmd.Context(), stage)
			return printSummaries(cmd, ctx, summaries, runErr)
		},
	}
}

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	enrichCmd := &cobra.Command{
		Use:   "enrich",
		Short: "Enrich canonical listings from external sources",
	}
	enrichCmd.AddCommand(newStageCommand(ctx, pipeline.StageImages, "images", "Select canonical images for clusters"))
	enrichCmd.AddCommand(newStageCommand(ctx, pipeline.StagePrices, "prices", "Collect and consolidate external prices"))
	return enrichCmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var stagesFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stages, err := parseStages(stagesFlag)
			if err != nil {
				return err
			}
			runner, err := ctx.runner()
			if err != nil {
				return err
			}
			summaries, runErr := runner.Run(cmd.Context(), stages...)
			return printSummaries(cmd, ctx, summaries, runErr)
		},
	}
	cmd.Flags().StringVar(&stagesFlag, "stages", "", "Comma-separated stages to run (default: all)")
	return cmd
}

func parseStages(value string) ([]pipeline.Stage, error) {
	var stages []pipeline.Stage
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		stage, err := pipeline.ParseStage(part)
		if err != nil {
			return nil, fmt.Errorf("--stages: %w", err)
		}
		stages = append(stages, stage)
	}
	return stages, nil
}
