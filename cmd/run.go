package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rkiskaupas/roadrisk/app"
	"github.com/rkiskaupas/roadrisk/config"
	"github.com/rkiskaupas/roadrisk/infra/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the refresh and allocation loop",
	RunE:  runService,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runService(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	log := logger.New("run")
	plans, unsubscribe := svc.Bus.Subscribe()
	defer unsubscribe()
	go func() {
		for plan := range plans {
			log.Debugw("plan published", map[string]any{
				"plan_id":        plan.ID,
				"segments":       plan.SegmentCount(),
				"risk_reduction": plan.RiskReduction,
			})
		}
	}()

	return svc.Run(ctx)
}
