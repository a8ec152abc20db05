package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veralis-labs/kbindex/internal/core/services"
	"github.com/veralis-labs/kbindex/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background maintenance scheduler",
	Long: `Runs the scheduler loop in the foreground until interrupted. The only
scheduled task is the periodic integrity check.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if kb == nil {
		return errors.New("knowledge base not configured")
	}

	schedulerCfg := cfg.Scheduler
	schedulerCfg.Enabled = true

	scheduler := services.NewScheduler(schedulerCfg, store.SchedulerStore(), kb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutting down scheduler")
		cancel()
	}()

	cmd.Printf("Scheduler running (integrity check every %s). Ctrl-C to stop.\n",
		schedulerCfg.IntegrityInterval)

	err := scheduler.Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
