package main

import (
	"fmt"
	"time"

	"github.com/jonathan/smartapply/internal/server"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the HTTP trigger endpoints",
	RunE:  runToken,
}

var (
	tokenSubject string
	tokenTTL     time.Duration
)

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "Caller identity recorded in the token (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is not set; the server accepts unauthenticated requests")
	}
	if tokenTTL <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}

	token, err := server.NewJWTService(cfg.Server.JWTSecret).GenerateToken(tokenSubject, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
