package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.uber.org/zap"
)

var (
	pruneMinConfidence   float64
	pruneMinApplications int
	pruneDryRun          bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove learned patterns that keep failing",
	Long: `Deletes learned patterns whose confidence fell below the threshold
after enough applications to judge them. Young patterns are kept regardless
of confidence: a pattern that hasn't been exercised yet deserves its grace
period.`,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().Float64Var(&pruneMinConfidence, "min-confidence", 0, "Prune below this confidence (default from config)")
	pruneCmd.Flags().IntVar(&pruneMinApplications, "min-applications", 0, "Only prune patterns applied at least this often (default from config)")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "List what would be pruned without removing anything")
}

func runPrune(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	minConf := pruneMinConfidence
	if minConf <= 0 {
		minConf = cfg.LLKB.PruneMinConfidence
	}
	minApps := pruneMinApplications
	if minApps <= 0 {
		minApps = cfg.LLKB.PruneMinApplications
	}

	if pruneDryRun {
		var candidates int
		for _, p := range store.All() {
			if p.Applications() >= minApps && p.Confidence < minConf {
				fmt.Printf("would remove %.2f %q (%d applications)\n", p.Confidence, p.NormalizedText, p.Applications())
				candidates++
			}
		}
		fmt.Printf("%d of %d patterns would be pruned\n", candidates, store.Len())
		return nil
	}

	removed, err := store.Prune(minConf, minApps)
	if err != nil {
		return err
	}
	logger.Info("pruned learned patterns",
		zap.Int("removed", len(removed)),
		zap.Int("remaining", store.Len()))

	if len(removed) == 0 {
		fmt.Println("nothing to prune")
		return nil
	}
	for _, p := range removed {
		fmt.Printf("removed %.2f %q (%d applications)\n", p.Confidence, p.NormalizedText, p.Applications())
	}
	fmt.Printf("%d removed, %d remain\n", len(removed), store.Len())
	return nil
}
