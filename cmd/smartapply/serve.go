package main

import (
	"github.com/jonathan/smartapply/internal/server"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger server",
	Long:  `Start an HTTP server exposing POST /run_pipeline, GET /runs, GET /health and GET /metrics.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (0 uses the config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
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

	deps := server.Deps{
		Runner:   a.orchestrator,
		Store:    a.db,
		Gatherer: a.registry,
		Logger:   logger,
	}
	if r, ok := a.provider.(server.StateReporter); ok {
		deps.Embedding = r
	}
	srv := server.New(cfg.Server, deps)
	return srv.Start(ctx)
}
