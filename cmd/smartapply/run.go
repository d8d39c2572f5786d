package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/smartapply/internal/config"
	"github.com/jonathan/smartapply/internal/observability"
	"github.com/jonathan/smartapply/internal/pipeline"
	"github.com/spf13/cobra"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the job-alert pipeline once",
	Long: `Scrapes every enabled source, deduplicates the listings, matches them against
every user with a CV and emails the new matches. Prints the run summary.`,
	RunE: runPipelineCmd,
}

var (
	runMaxPagesGoZambia    int
	runMaxPagesGreatZambia int
)

func init() {
	runCommand.Flags().IntVar(&runMaxPagesGoZambia, "max-pages-gozambia", 0, "Page limit for GoZambia (0 uses the config)")
	runCommand.Flags().IntVar(&runMaxPagesGreatZambia, "max-pages-greatzambia", 0, "Page limit for GreatZambiaJobs (0 uses the config)")
	rootCmd.AddCommand(runCommand)
}

// maxPagesOverrides turns the page flags into RunOptions.MaxPages.
func maxPagesOverrides(goZambia, greatZambia int) map[string]int {
	out := make(map[string]int)
	if goZambia > 0 {
		out[config.SourceGoZambia] = goZambia
	}
	if greatZambia > 0 {
		out[config.SourceGreatZambiaJobs] = greatZambia
	}
	return out
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.orchestrator.RunPipeline(ctx, pipeline.RunOptions{
		MaxPages: maxPagesOverrides(runMaxPagesGoZambia, runMaxPagesGreatZambia),
		Trigger:  "cli",
	})
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}
	return writeSummary(cmd.OutOrStdout(), summary)
}

func writeSummary(out io.Writer, summary *pipeline.Summary) error {
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	observability.NewPrinter(out).PrintRunSummary(summary.Report())
	return nil
}
