package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stepwright/internal/ir"
	"stepwright/internal/journey"
	"stepwright/internal/mapper"
)

var (
	mapMinConfidence float64
	mapNoLLKB        bool
)

var mapCmd = &cobra.Command{
	Use:   "map [journey-file...]",
	Short: "Map journey steps to browser-test primitives",
	Long: `Resolves every step of the given journey files (or all journeys in
the configured directory) through hints, the fixed pattern library, and the
learned pattern store. Unresolvable steps are emitted as blocked markers
with a diagnostic, so a partially-mappable journey still produces output.`,
	RunE: runMap,
}

func init() {
	mapCmd.Flags().Float64Var(&mapMinConfidence, "min-confidence", 0, "Learned-pattern confidence threshold (default from config)")
	mapCmd.Flags().BoolVar(&mapNoLLKB, "no-llkb", false, "Disable the learned pattern tier")
}

// mappedStep is the per-step output document.
type mappedStep struct {
	SourceText  string             `json:"sourceText"`
	MatchSource mapper.MatchSource `json:"matchSource"`
	Primitive   ir.Primitive       `json:"primitive"`
	IsAssertion bool               `json:"isAssertion"`
	Confidence  float64            `json:"confidence,omitempty"`
	PatternID   string             `json:"patternId,omitempty"`
	Diagnostic  string             `json:"diagnostic,omitempty"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// mappedJourney is the per-journey output document.
type mappedJourney struct {
	JourneyID string       `json:"journeyId"`
	Title     string       `json:"title,omitempty"`
	Steps     []mappedStep `json:"steps"`
	Blocked   int          `json:"blocked"`
}

var (
	sourceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)

func runMap(cmd *cobra.Command, args []string) error {
	journeys, err := loadJourneys(args)
	if err != nil {
		return err
	}

	m, _, err := buildMapper()
	if err != nil {
		return err
	}
	opts := mapper.Options{
		MinConfidence: mapMinConfidence,
		DisableLLKB:   mapNoLLKB || cfg.Mapper.DisableLLKB,
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = cfg.Mapper.MinConfidence
	}

	var docs []mappedJourney
	for _, j := range journeys {
		opts.JourneyID = j.ID
		results, err := m.MapSteps(cmd.Context(), j.Steps, opts)
		if err != nil {
			return fmt.Errorf("map journey %s: %w", j.ID, err)
		}

		doc := mappedJourney{JourneyID: j.ID, Title: j.Title}
		for _, r := range results {
			step := mappedStep{
				SourceText:  r.SourceText,
				MatchSource: r.MatchSource,
				IsAssertion: r.IsAssertion,
				Confidence:  r.Confidence,
				PatternID:   r.MatchedPatternID,
				Diagnostic:  r.Diagnostic,
				Warnings:    r.Warnings,
			}
			if r.Primitive != nil {
				step.Primitive = *r.Primitive
			} else {
				step.Primitive = r.BlockedPrimitive()
				doc.Blocked++
			}
			doc.Steps = append(doc.Steps, step)
		}
		docs = append(docs, doc)
		logger.Debug("mapped journey",
			zap.String("journey", j.ID),
			zap.Int("steps", len(doc.Steps)),
			zap.Int("blocked", doc.Blocked))
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	}
	printMapped(docs, m.Stats())
	return nil
}

func printMapped(docs []mappedJourney, stats mapper.Stats) {
	for _, doc := range docs {
		fmt.Println(headerStyle.Render(fmt.Sprintf("Journey %s (%d steps, %d blocked)", doc.JourneyID, len(doc.Steps), doc.Blocked)))
		for _, s := range doc.Steps {
			line := fmt.Sprintf("  [%s] %s", s.MatchSource, s.Primitive.Kind)
			if s.Confidence > 0 {
				line += fmt.Sprintf(" (%.2f)", s.Confidence)
			}
			fmt.Println(line + " " + sourceStyle.Render(s.SourceText))
			if s.Diagnostic != "" {
				fmt.Println("    " + blockedStyle.Render(s.Diagnostic))
			}
			for _, w := range s.Warnings {
				fmt.Println("    warning: " + w)
			}
		}
	}
	fmt.Printf("\n%d steps: %d hints, %d patterns, %d learned, %d blocked\n",
		stats.Total,
		stats.BySource[mapper.SourceHints],
		stats.BySource[mapper.SourcePattern],
		stats.BySource[mapper.SourceLLKB],
		stats.Blocked)
}

// loadJourneys resolves the journey set: explicit files when given,
// otherwise everything under the configured journeys directory.
func loadJourneys(args []string) ([]*journey.Journey, error) {
	if len(args) > 0 {
		var out []*journey.Journey
		for _, path := range args {
			j, err := journey.Load(path)
			if err != nil {
				return nil, err
			}
			out = append(out, j)
		}
		return out, nil
	}

	journeys, errs := journey.LoadDir(cfg.Journeys.Dir)
	for _, err := range errs {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}
	if len(journeys) == 0 {
		return nil, fmt.Errorf("no journeys found in %s", cfg.Journeys.Dir)
	}
	return journeys, nil
}
