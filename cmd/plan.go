package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rkiskaupas/roadrisk/config"
	"github.com/rkiskaupas/roadrisk/core/alloc"
	"github.com/rkiskaupas/roadrisk/core/graph"
	"github.com/rkiskaupas/roadrisk/core/model"
	"github.com/rkiskaupas/roadrisk/core/registry"
	"github.com/rkiskaupas/roadrisk/infra/logger"
)

var planClasses []string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute a one-shot allocation plan from the configured topology and resources",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringSliceVar(&planClasses, "classes", nil,
		"restrict planning to the given road classes (e.g. arterial,collector)")
	rootCmd.AddCommand(planCmd)
}

// runPlan allocates against the neutral-prior graph: useful to sanity-check
// topology and resource files before wiring live observations.
func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.ResourcesPath == "" {
		return fmt.Errorf("resources_path is required for one-shot planning")
	}

	topo, err := registry.LoadTopology(cfg.TopologyPath)
	if err != nil {
		return fmt.Errorf("topology: %w", err)
	}
	if len(planClasses) > 0 {
		classes := make([]model.RoadClass, 0, len(planClasses))
		for _, name := range planClasses {
			c, err := model.ParseRoadClass(name)
			if err != nil {
				return err
			}
			classes = append(classes, c)
		}
		topo = topo.FilterByClass(classes...)
	}
	resources, err := registry.LoadResources(cfg.ResourcesPath)
	if err != nil {
		return fmt.Errorf("resources: %w", err)
	}
	resources, err = registry.ResolveLocations(topo, resources)
	if err != nil {
		return fmt.Errorf("resources: %w", err)
	}

	g, err := graph.New(cfg.Graph, topo)
	if err != nil {
		return err
	}
	engine, err := alloc.New(cfg.Alloc, logger.New("alloc"))
	if err != nil {
		return err
	}

	result, err := engine.Allocate(context.Background(), g.Snapshot(), resources, time.Now())
	if err != nil {
		return err
	}
	for id, serr := range result.Skipped {
		fmt.Fprintf(os.Stderr, "resource %s skipped: %v\n", id, serr)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Plan)
}
