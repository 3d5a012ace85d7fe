package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"stepwright/internal/healing"
	"stepwright/internal/report"
)

var statsReindex bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize healing sessions and the learned pattern store",
	Long: `Aggregates all persisted healing session documents into suite
totals and reports the state of the learned pattern store. With --reindex
the session documents are also written into the SQLite index so later
stats runs can query it instead of re-parsing every log file.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsReindex, "reindex", false, "Rebuild the SQLite session index")
}

type statsDoc struct {
	Healing  report.Totals `json:"healing"`
	Patterns int           `json:"learnedPatterns"`
}

var labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Width(14)

func runStats(cmd *cobra.Command, args []string) error {
	log := healing.NewLog(cfg.Healing.LogDir)
	sessions, err := log.ReadAll()
	if err != nil {
		return err
	}
	totals := report.Aggregate(sessions)

	if statsReindex && cfg.Report.IndexPath != "" {
		ix, err := report.OpenIndex(cfg.Report.IndexPath)
		if err != nil {
			return err
		}
		defer ix.Close()
		for _, s := range sessions {
			if err := ix.Upsert(s); err != nil {
				return err
			}
		}
		fmt.Fprintf(os.Stderr, "indexed %d sessions into %s\n", len(sessions), cfg.Report.IndexPath)
	}

	store, err := openStore()
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statsDoc{Healing: totals, Patterns: store.Len()})
	}

	fmt.Println(headerStyle.Render("Healing"))
	fmt.Printf("%s %d\n", labelStyle.Render("sessions"), totals.Sessions)
	fmt.Printf("%s %d healed, %d failed, %d exhausted\n",
		labelStyle.Render("outcomes"), totals.Healed, totals.Failed, totals.Exhausted)
	fmt.Printf("%s %d\n", labelStyle.Render("attempts"), totals.Attempts)
	for _, e := range totals.TopFixes {
		fmt.Printf("%s %s (%d)\n", labelStyle.Render("fix"), e.Name, e.Count)
	}
	for _, e := range totals.TopCategories {
		fmt.Printf("%s %s (%d)\n", labelStyle.Render("category"), e.Name, e.Count)
	}

	fmt.Println(headerStyle.Render("Learned patterns"))
	fmt.Printf("%s %d\n", labelStyle.Render("stored"), store.Len())
	for _, p := range store.Export(5) {
		fmt.Printf("%s %.2f %s -> %s\n", labelStyle.Render("top"), p.Confidence, p.NormalizedText, p.MappedPrimitive.Kind)
	}
	return nil
}
