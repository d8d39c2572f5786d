// Package main provides the SmartApply command line: job scraping, CV
// matching and alert emails, run once, on a schedule or over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debugLogs  bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "smartapply",
	Short: "SmartApply job alert pipeline",
	Long: `SmartApply scrapes Zambian job boards, matches the listings against each user's CV
using text embeddings and emails every user the jobs that fit.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML or JSON config file (environment variables override it)")
	rootCmd.PersistentFlags().BoolVar(&debugLogs, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "JSON logs and machine-readable command output")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
