package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/engine"
	"github.com/mnemo-ai/mnemo/internal/extract"
	"github.com/mnemo-ai/mnemo/internal/logger"
	"github.com/mnemo-ai/mnemo/internal/memory"
	"github.com/mnemo-ai/mnemo/internal/store"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep [userID]",
	Short: "Run a lifecycle sweep (all users, or one)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSweep,
}

var consolidateCmd = &cobra.Command{
	Use:   "consolidate [userID]",
	Short: "Merge similar memories (all users, or one)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConsolidate,
}

var statsCmd = &cobra.Command{
	Use:   "stats <userID>",
	Short: "Show a user's memory counts by lifecycle state",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

// offlineEngine builds an engine without an LLM for one-shot maintenance
// commands; extraction never runs on these paths.
func offlineEngine(cfg config.Config, db *store.DB) (*engine.Engine, *memory.JaccardSimilarity, error) {
	sim, err := memory.NewJaccardSimilarity()
	if err != nil {
		return nil, nil, fmt.Errorf("similarity provider: %w", err)
	}
	log := logger.New("mnemo")
	eng := engine.New(db, cfg, extract.NewRuleExtractor(cfg), sim, nil, log)
	return eng, sim, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng, sim, err := offlineEngine(cfg, db)
	if err != nil {
		return err
	}
	defer sim.Close()

	ctx := cmd.Context()
	now := time.Now().UTC()

	if len(args) == 1 {
		transitions, err := eng.Sweep(ctx, args[0], now)
		if err != nil {
			return err
		}
		fmt.Printf("applied %d transitions for %s\n", len(transitions), args[0])
		return nil
	}

	n, err := eng.SweepAll(ctx, now)
	if err != nil {
		return err
	}
	fmt.Printf("applied %d transitions\n", n)
	return nil
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng, sim, err := offlineEngine(cfg, db)
	if err != nil {
		return err
	}
	defer sim.Close()

	ctx := cmd.Context()

	if len(args) == 1 {
		merged, err := eng.Consolidate(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("merged %d groups for %s\n", len(merged), args[0])
		return nil
	}

	n, err := eng.ConsolidateAll(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("merged %d groups\n", n)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.UserStats(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("active: %d\naging: %d\narchived: %d\n", stats.Active, stats.Aging, stats.Archived)
	return nil
}
