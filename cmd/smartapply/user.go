package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/smartapply/internal/db"
	"github.com/jonathan/smartapply/internal/ingestion"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage alert recipients",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a user, optionally with a CV",
	RunE:  runUserAdd,
}

var userSetCVCmd = &cobra.Command{
	Use:   "set-cv",
	Short: "Replace a user's CV text",
	Long:  `Replaces the CV text of a user. The stored CV embedding is discarded and recomputed on the next run.`,
	RunE:  runUserSetCV,
}

var (
	userName   string
	userEmail  string
	userCVPath string
)

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "Full name (required)")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Email address (required)")
	userAddCmd.Flags().StringVar(&userCVPath, "cv", "", "Path to a plain-text CV")
	_ = userAddCmd.MarkFlagRequired("name")
	_ = userAddCmd.MarkFlagRequired("email")

	userSetCVCmd.Flags().StringVar(&userEmail, "email", "", "Email address of the user (required)")
	userSetCVCmd.Flags().StringVar(&userCVPath, "cv", "", "Path to a plain-text CV (required)")
	_ = userSetCVCmd.MarkFlagRequired("email")
	_ = userSetCVCmd.MarkFlagRequired("cv")

	userCmd.AddCommand(userAddCmd, userSetCVCmd)
	rootCmd.AddCommand(userCmd)
}

// connectDB opens the database without the rest of the pipeline.
func connectDB(ctx context.Context) (*db.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL, cfg.Embedding.Dims())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return database, nil
}

func runUserAdd(cmd *cobra.Command, _ []string) error {
	email := strings.TrimSpace(userEmail)
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address %q", userEmail)
	}

	var cvText *string
	if userCVPath != "" {
		text, err := ingestion.ReadCVFile(userCVPath)
		if err != nil {
			return err
		}
		cvText = &text
	}

	ctx := cmd.Context()
	database, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	user, err := database.CreateUser(ctx, strings.TrimSpace(userName), email, cvText)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s), CV on file: %t\n", user.ID, user.Email, user.HasCV())
	return nil
}

func runUserSetCV(cmd *cobra.Command, _ []string) error {
	text, err := ingestion.ReadCVFile(userCVPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("CV file %s is empty", userCVPath)
	}

	ctx := cmd.Context()
	database, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	user, err := database.GetUserByEmail(ctx, strings.TrimSpace(userEmail))
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("no user with email %s", userEmail)
	}
	if err := database.UpdateCV(ctx, user.ID, text); err != nil {
		return fmt.Errorf("failed to update CV: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated CV for user %d (%s)\n", user.ID, user.Email)
	return nil
}
