package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateEmbeddingsCmd = &cobra.Command{
	Use:   "migrate-embeddings",
	Short: "Convert JSON text embedding columns to pgvector",
	Long: `Converts cv_embeddings.embedding and jobs.embedding from the JSON text
format used by earlier deployments into pgvector columns. Values that cannot
be decoded or do not match the configured dimension are dropped and
recomputed on the next run. Tables already using vector are skipped.`,
	RunE: runMigrateEmbeddings,
}

func init() {
	rootCmd.AddCommand(migrateEmbeddingsCmd)
}

func runMigrateEmbeddings(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	database, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	results, err := database.MigrateLegacyEmbeddings(ctx)
	out := cmd.OutOrStdout()
	for _, r := range results {
		if r.AlreadyVector {
			fmt.Fprintf(out, "%s: already vector\n", r.Table)
			continue
		}
		fmt.Fprintf(out, "%s: converted %d, dropped %d\n", r.Table, r.Converted, r.Dropped)
	}
	if err != nil {
		return fmt.Errorf("failed to migrate embeddings: %w", err)
	}
	return nil
}
