package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stepwright/internal/classify"
	"stepwright/internal/healing"
	"stepwright/internal/probe"
	"stepwright/internal/runner"
)

var (
	healStepText    string
	healDryRun      bool
	healMaxAttempts int
)

var healCmd = &cobra.Command{
	Use:   "heal <journey-id> <test-file>",
	Short: "Run a generated test and heal it if it fails",
	Long: `Runs the test file through the configured runner. On failure the
error output is classified and a bounded healing session tries the safe
fixes allowed for that category, re-running the test after each one. The
session document is persisted incrementally under the healing log
directory, so a crash mid-session still leaves a record.`,
	Args: cobra.ExactArgs(2),
	RunE: runHeal,
}

func init() {
	healCmd.Flags().StringVar(&healStepText, "step", "", "Failing step text, enables learned-pattern substitution")
	healCmd.Flags().BoolVar(&healDryRun, "dry-run", false, "Heal without persisting the session or recording learning")
	healCmd.Flags().IntVar(&healMaxAttempts, "max-attempts", 0, "Attempt budget for this session (default from config)")
}

func runHeal(cmd *cobra.Command, args []string) error {
	journeyID, testFile := args[0], args[1]

	invoker := &runner.CLIRunner{
		Binary:   cfg.Runner.Binary,
		BaseArgs: cfg.Runner.Args,
		Dir:      cfg.Runner.Dir,
	}
	runOpts := runner.Options{
		Workers:  cfg.Runner.Workers,
		Retries:  cfg.Runner.Retries,
		Timeout:  cfg.Runner.TimeoutDuration(),
		Reporter: cfg.Runner.Reporter,
	}

	// Baseline run. A passing test needs no healing.
	res, err := invoker.Run(cmd.Context(), testFile, runOpts)
	if err != nil {
		return err
	}
	if res.Success {
		fmt.Printf("%s passes, nothing to heal\n", testFile)
		return nil
	}

	failureText := res.ErrorText()
	cls := classify.Error(failureText, "")
	logger.Info("test failed, starting healing",
		zap.String("journey", journeyID),
		zap.String("category", string(cls.Category)),
		zap.Float64("confidence", cls.Confidence))

	store, err := openStore()
	if err != nil {
		return err
	}

	var prober healing.LocatorProber
	if cfg.Probe.Enabled && cfg.Probe.BaseURL != "" {
		p, err := probe.New(cfg.Probe.ControlURL, cfg.Probe.TimeoutDuration())
		if err != nil {
			// The probe is an aid, not a dependency.
			logger.Warn("probe unavailable, healing without it", zap.Error(err))
		} else {
			defer p.Close()
			prober = p
		}
	}

	maxAttempts := cfg.Healing.MaxAttempts
	if healMaxAttempts > 0 {
		maxAttempts = healMaxAttempts
	}
	healCfg := healing.Config{
		Enabled:      cfg.Healing.Enabled,
		MaxAttempts:  maxAttempts,
		AllowedFixes: allowedFixes(),
	}
	fixer := healing.NewFileFixer(store, prober, cfg.Probe.BaseURL)

	var recorder healing.LearningRecorder
	var log healing.SessionLog
	if !healDryRun {
		recorder = store
		log = healing.NewLog(cfg.Healing.LogDir)
	}

	ctrl := healing.NewController(healCfg, fixer, invoker, recorder, log, runOpts)
	session, err := ctrl.Heal(cmd.Context(), journeyID, testFile, healStepText, failureText)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(session)
	}
	printSession(session)
	if session.Status != healing.StatusHealed {
		os.Exit(1)
	}
	return nil
}

func allowedFixes() []healing.FixType {
	if len(cfg.Healing.AllowedFixes) == 0 {
		return healing.DefaultAllowedFixes()
	}
	out := make([]healing.FixType, 0, len(cfg.Healing.AllowedFixes))
	for _, f := range cfg.Healing.AllowedFixes {
		out = append(out, healing.FixType(f))
	}
	return out
}

func printSession(s *healing.Session) {
	switch s.Status {
	case healing.StatusHealed:
		fmt.Println(headerStyle.Render(fmt.Sprintf("Healed in %d attempt(s)", len(s.Attempts))))
	default:
		fmt.Println(blockedStyle.Render(fmt.Sprintf("Healing %s after %d attempt(s)", s.Status, len(s.Attempts))))
	}
	for _, a := range s.Attempts {
		fmt.Printf("  %d. %s [%s] -> %s (%dms)\n", a.Attempt, a.FixType, a.FailureType, a.Result, a.DurationMs)
		if a.Change != "" {
			fmt.Println("     " + sourceStyle.Render(a.Change))
		}
	}
	if s.Recommendation != "" {
		fmt.Println("Recommendation: " + s.Recommendation)
	}
}
