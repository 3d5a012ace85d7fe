package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stepwright/internal/journey"
	"stepwright/internal/mapper"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-map journeys as their files change",
	Long: `Watches the configured journeys directory and re-maps a journey
whenever its file settles after editing. Blocked steps are printed as they
appear, giving authors an immediate mapping feedback loop.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	m, _, err := buildMapper()
	if err != nil {
		return err
	}
	opts := mapper.Options{
		MinConfidence: cfg.Mapper.MinConfidence,
		DisableLLKB:   cfg.Mapper.DisableLLKB,
	}

	remap := func(ctx context.Context, path string) {
		j, err := journey.Load(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "warning:", err)
			return
		}
		jopts := opts
		jopts.JourneyID = j.ID
		results, err := m.MapSteps(ctx, j.Steps, jopts)
		if err != nil {
			fmt.Fprintln(os.Stderr, "warning:", err)
			return
		}

		blocked := 0
		for _, r := range results {
			if r.MatchSource == mapper.SourceNone {
				blocked++
				fmt.Println(blockedStyle.Render("  blocked: ") + r.SourceText)
				fmt.Println("    " + r.Diagnostic)
			}
		}
		fmt.Printf("%s: %d steps, %d blocked\n", j.ID, len(results), blocked)
	}

	w, err := journey.NewWatcher(cfg.Journeys.Dir, remap)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	logger.Info("watching journeys", zap.String("dir", cfg.Journeys.Dir))
	fmt.Printf("watching %s (ctrl-c to stop)\n", cfg.Journeys.Dir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	return nil
}
