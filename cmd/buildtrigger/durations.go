package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Cloudsky01/gh-buildtrigger/internal/config"
	"github.com/Cloudsky01/gh-buildtrigger/internal/console"
	"github.com/Cloudsky01/gh-buildtrigger/internal/durations"
)

var durationsCmd = &cobra.Command{
	Use:   "durations",
	Short: "Export start minute and duration of every successful build",
	Long: `Page through all successful runs of the build workflow and write one
tab-separated row per run: the minute of the hour the run started, and how
many seconds it took. The table is written to the output file and echoed
to stdout.`,
	RunE: runDurations,
}

func init() {
	durationsCmd.Flags().StringP("output", "o", "", "Output file (default: "+config.DefaultOutput+")")
	rootCmd.AddCommand(durationsCmd)
}

func runDurations(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigWith(cmd, flagBinding{key: "durations.output", name: "output"})
	if err != nil {
		return err
	}

	if err := requireToken(cmd.OutOrStdout(), cfg); err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}

	client, err := newGitHubClient(cfg)
	if err != nil {
		return err
	}

	interactive := console.IsTTY()
	extractorLogger := logger
	if interactive {
		// page progress would tear the spinner line
		extractorLogger = slog.New(slog.DiscardHandler)
	}
	extractor := durations.NewExtractor(client, cfg.GitHub.Workflow, cfg.Durations.PageSize, extractorLogger)

	samples, err := console.RunWithSpinner(cmd.Context(), os.Stderr, interactive, "Collecting successful runs", func(ctx context.Context) ([]durations.Sample, error) {
		return extractor.Collect(ctx)
	})
	if err != nil {
		return err
	}

	out, err := durations.Save(cfg.Durations.Output, samples)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), out)
	printDurationsSummary(cmd.ErrOrStderr(), cfg.Durations.Output, len(samples))
	return nil
}
