package main

import (
	"fmt"
	"time"

	"github.com/jonathan/smartapply/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scheduleInterval string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline periodically",
	Long: `Runs the pipeline once at startup and then on every interval until interrupted.
Overlapping runs are skipped when redis_url is configured.`,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleInterval, "every", "", "Interval between runs, e.g. 6h (empty uses the config)")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(_ *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	interval := cfg.Schedule.Interval
	if scheduleInterval != "" {
		interval, err = parseInterval(scheduleInterval)
		if err != nil {
			return err
		}
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

	s := scheduler.New(a.orchestrator, interval, cfg.MaxPages(), logger)
	if err := s.Start(ctx); err != nil {
		return err
	}
	logger.Info("scheduler running", zap.String("spec", s.Spec()))

	<-ctx.Done()
	s.Stop()
	return nil
}

// parseInterval parses a run interval of at least one minute.
func parseInterval(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", raw, err)
	}
	if d < time.Minute {
		return 0, fmt.Errorf("invalid interval %q: must be at least 1m", raw)
	}
	return d, nil
}
