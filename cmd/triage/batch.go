package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/triage/internal/batch"
	"github.com/MikeSquared-Agency/triage/internal/kafka"
	"github.com/MikeSquared-Agency/triage/internal/processor"
	"github.com/MikeSquared-Agency/triage/internal/store"
)

var batchFlags struct {
	in     string
	out    string
	state  string
	dryRun bool
	limit  int
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Triage a JSON or JSONL file of tickets, resuming where the last run stopped",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(cfg.LogLevel, os.Stderr)
		ctx := cmd.Context()

		bcfg := batch.Config{
			InPath:    batchFlags.in,
			OutPath:   batchFlags.out,
			StatePath: batchFlags.state,
			DryRun:    batchFlags.dryRun,
			Limit:     batchFlags.limit,
			Pipeline:  pipelineOptions(cfg, nil),
		}

		var live batch.Triager
		if !bcfg.DryRun {
			deps := processor.Deps{Model: cfg.Model()}
			if cfg.DatabaseURL != "" {
				db, err := store.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer db.Close()
				deps.Recorder = db
			}
			if len(cfg.KafkaBrokers) > 0 {
				producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, slog.Default())
				defer producer.Close()
				deps.Sink = producer
			}
			live = processor.New(newPipeline(cfg, nil), deps, slog.Default())
		}

		stats, err := batch.NewRunner(bcfg, live, slog.Default()).Run(ctx)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "tickets: %d  triaged: %d  skipped: %d  failed: %d\n",
			stats.Total, stats.Triaged, stats.Skipped, stats.Failed)
		for _, team := range stats.Teams() {
			fmt.Fprintf(w, "  %-12s %d\n", team, stats.ByTeam[team])
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFlags.in, "in", "", "input file (JSON array or JSONL)")
	batchCmd.Flags().StringVar(&batchFlags.out, "out", "triaged.jsonl", "output JSONL file, appended to")
	batchCmd.Flags().StringVar(&batchFlags.state, "state", "", "state file (default <out>.state.json)")
	batchCmd.Flags().BoolVar(&batchFlags.dryRun, "dry-run", false, "heuristics only; no completion calls, recording or state")
	batchCmd.Flags().IntVar(&batchFlags.limit, "limit", 0, "stop after this many tickets (0 = all)")
	_ = batchCmd.MarkFlagRequired("in")
}
