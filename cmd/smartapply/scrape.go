package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jonathan/smartapply/internal/observability"
	"github.com/jonathan/smartapply/internal/schemas"
	"github.com/jonathan/smartapply/internal/scraper"
	"github.com/spf13/cobra"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape and deduplicate job listings without matching",
	Long: `Runs every enabled scraper, merges the results by URL and writes them as a JSON
array. No database, embedding provider or email account is needed.`,
	RunE: runScrape,
}

var (
	scrapeOutput              string
	scrapeMaxPagesGoZambia    int
	scrapeMaxPagesGreatZambia int
	scrapeSourceURLs          map[string]string
)

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "Write jobs to this file instead of stdout")
	scrapeCmd.Flags().IntVar(&scrapeMaxPagesGoZambia, "max-pages-gozambia", 0, "Page limit for GoZambia (0 uses the config)")
	scrapeCmd.Flags().IntVar(&scrapeMaxPagesGreatZambia, "max-pages-greatzambia", 0, "Page limit for GreatZambiaJobs (0 uses the config)")
	scrapeCmd.Flags().StringToStringVar(&scrapeSourceURLs, "source-url", nil, "Override a source listing URL, e.g. gozambia=https://mirror/jobs")
	_ = scrapeCmd.Flags().MarkHidden("source-url")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
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

	scrapers := scraper.FromConfig(cfg, scraper.BaseURLs(scrapeSourceURLs), logger, nil)
	if len(scrapers) == 0 {
		return fmt.Errorf("no sources enabled")
	}

	res := scraper.ScrapeAll(ctx, scrapers, maxPagesOverrides(scrapeMaxPagesGoZambia, scrapeMaxPagesGreatZambia), logger, nil)
	batches := make([][]scraper.RawJob, 0, len(res.Sources))
	for _, s := range res.Sources {
		batches = append(batches, s.Jobs)
	}
	jobs := scraper.Merge(batches...)

	var out io.Writer = cmd.OutOrStdout()
	if scrapeOutput != "" {
		f, err := os.Create(scrapeOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := writeJobs(out, jobs); err != nil {
		return err
	}

	if !jsonOutput {
		observability.NewPrinter(cmd.ErrOrStderr()).PrintScrapeReport(res.CountBySource(), res.Errors(), len(jobs))
	}
	return nil
}

// writeJobs writes jobs as an indented JSON array after checking it
// against the embedded jobs schema.
func writeJobs(out io.Writer, jobs []scraper.RawJob) error {
	if jobs == nil {
		jobs = []scraper.RawJob{}
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode jobs: %w", err)
	}
	if err := schemas.ValidateJobs(data); err != nil {
		return err
	}
	if _, err := out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write jobs: %w", err)
	}
	return nil
}
