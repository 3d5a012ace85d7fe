package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportTop  int
	exportFile string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export high-confidence learned patterns",
	Long: `Writes the top learned patterns at or above the publish threshold
as a JSON document, confidence-descending. The export is read-only: store
state is untouched, so it can feed another workspace's review without risk.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().IntVar(&exportTop, "top", 0, "Number of patterns to export (default from config)")
	exportCmd.Flags().StringVarP(&exportFile, "output", "o", "", "Write to file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	top := exportTop
	if top <= 0 {
		top = cfg.LLKB.ExportTop
	}
	patterns := store.Export(top)

	out := os.Stdout
	if exportFile != "" {
		f, err := os.Create(exportFile)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(patterns); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	if exportFile != "" {
		fmt.Fprintf(os.Stderr, "exported %d patterns to %s\n", len(patterns), exportFile)
	}
	return nil
}
