package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sprint-service/internal/app"
	"sprint-service/internal/config"
	"sprint-service/internal/logger"

	"github.com/spf13/cobra"
)

// NewSweepCmd marks overdue sprints as EXPIRED, once or on an interval.
func NewSweepCmd(configPath *string) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire sprints whose time limit has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), *configPath, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat every interval until interrupted (0 runs once)")
	return cmd
}

func runSweep(ctx context.Context, configPath string, interval time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	d, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.Close()

	grace := config.TTLDuration(cfg.Sprint.ExpiryGrace, 5*time.Minute)
	if interval <= 0 {
		_, err := d.service.ExpireStale(ctx, grace)
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return sweepLoop(ctx, d.service, log, grace, interval)
}

func sweepLoop(ctx context.Context, service *app.SprintService, log *logger.Logger, grace, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := service.ExpireStale(ctx, grace); err != nil {
			log.Error("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
