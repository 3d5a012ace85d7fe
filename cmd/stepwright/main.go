package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"stepwright/internal/config"
	"stepwright/internal/glossary"
	"stepwright/internal/llkb"
	"stepwright/internal/logging"
	"stepwright/internal/mapper"
	"stepwright/internal/patterns"
)

var (
	// Global flags
	verbose   bool
	workspace string
	jsonOut   bool

	cfg    config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "stepwright",
	Short: "stepwright - journey step mapping and self-healing for browser tests",
	Long: `stepwright turns natural-language journey steps into browser-test
actions and repairs generated tests that break for superficial reasons.

Steps resolve through three tiers in strict order: explicit hints, the
fixed pattern library, then learned patterns. Failing tests are classified
and healed through a bounded set of safe fixes; anything that would hide a
real defect (sleeps, weakened assertions, skipped tests) is never applied.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if workspace == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve workspace: %w", err)
			}
			workspace = wd
		}

		var err error
		cfg, err = config.Load(workspace)
		if err != nil {
			return err
		}
		if err := logging.Initialize(workspace); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}

		zcfg := zap.NewProductionConfig()
		if verbose || cfg.Logging.DebugMode {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// buildGlossary loads the default glossary merged with the user file, when
// one is configured and present.
func buildGlossary() (*glossary.Glossary, error) {
	g := glossary.Default()
	path := cfg.Journeys.Glossary
	if path == "" {
		return g, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workspace, path)
	}
	user, err := glossary.LoadUserFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return g, nil
		}
		return nil, err
	}
	return g.Merge(user), nil
}

// openStore loads the learned pattern store. A missing or corrupt file is a
// warning inside Load, not an error here.
func openStore() (*llkb.Store, error) {
	store := llkb.New(cfg.LLKB.StorePath)
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

// buildMapper assembles the three-tier mapper from configuration.
func buildMapper() (*mapper.Mapper, *llkb.Store, error) {
	g, err := buildGlossary()
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	return mapper.New(g, patterns.NewLibrary(g), store), store, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of human-readable output")

	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(healCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
