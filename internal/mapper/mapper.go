// Package mapper orchestrates step-text resolution: explicit hints, then
// the fixed pattern library, then the learned pattern store. The order is
// strict and is not a confidence comparison: hints are authored intent and
// always win; fixed patterns are vetted and always beat learned entries, so
// pattern drift can never silently override them.
package mapper

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"stepwright/internal/glossary"
	"stepwright/internal/hints"
	"stepwright/internal/ir"
	"stepwright/internal/llkb"
	"stepwright/internal/logging"
	"stepwright/internal/patterns"
)

// MatchSource identifies which tier resolved a step.
type MatchSource string

const (
	SourceHints   MatchSource = "hints"
	SourcePattern MatchSource = "pattern"
	SourceLLKB    MatchSource = "llkb"
	SourceNone    MatchSource = "none"
)

// DefaultMinConfidence is the learned-pattern threshold when the caller
// doesn't set one.
const DefaultMinConfidence = 0.7

// Options control one mapping call.
type Options struct {
	JourneyID     string
	MinConfidence float64 // 0 means DefaultMinConfidence
	DisableLLKB   bool
}

func (o Options) minConfidence() float64 {
	if o.MinConfidence <= 0 {
		return DefaultMinConfidence
	}
	return o.MinConfidence
}

// Result is the outcome of mapping one step line.
// Invariant: Primitive == nil exactly when MatchSource == SourceNone.
type Result struct {
	Primitive        *ir.Primitive    `json:"primitive"`
	SourceText       string           `json:"sourceText"`
	IsAssertion      bool             `json:"isAssertion"`
	MatchSource      MatchSource      `json:"matchSource"`
	Confidence       float64          `json:"confidence,omitempty"`
	MatchedPatternID string           `json:"matchedPatternId,omitempty"`
	Diagnostic       string           `json:"diagnostic,omitempty"`
	Warnings         []string         `json:"warnings,omitempty"`
	Hints            *hints.Extracted `json:"-"`
}

// BlockedPrimitive renders a miss as the non-executable blocked marker so a
// whole journey can still produce partial output.
func (r Result) BlockedPrimitive() ir.Primitive {
	return ir.Blocked(r.Diagnostic, r.SourceText)
}

// Stats aggregates mapping outcomes.
type Stats struct {
	Total     int                 `json:"total"`
	BySource  map[MatchSource]int `json:"bySource"`
	Blocked   int                 `json:"blocked"`
	Assertion int                 `json:"assertions"`
}

// Mapper resolves step text to primitives.
type Mapper struct {
	gloss *glossary.Glossary
	lib   *patterns.Library
	store *llkb.Store // nil disables the learned tier

	mu    sync.Mutex
	stats Stats
}

// New builds a mapper. store may be nil.
func New(g *glossary.Glossary, lib *patterns.Library, store *llkb.Store) *Mapper {
	return &Mapper{
		gloss: g,
		lib:   lib,
		store: store,
		stats: Stats{BySource: make(map[MatchSource]int)},
	}
}

// MapStepText resolves one step line. It is a pure function of the text and
// current store state: mapping alone never mutates the store, so calling it
// twice without recording success produces identical results.
func (m *Mapper) MapStepText(text string, opts Options) Result {
	parsed := hints.Parse(text)
	normalized := m.gloss.NormalizeStepText(parsed.CleanText)

	// Tier 1: explicit hints. Authored intent wins over everything,
	// including a higher-confidence learned pattern.
	if len(parsed.Hints) > 0 {
		ex := hints.Extract(parsed.Hints)
		warnings := append([]string(nil), parsed.Warnings...)
		for _, issue := range ex.Issues {
			warnings = append(warnings, fmt.Sprintf("%s: %s", issue.Severity, issue.Message))
		}
		if p, ok := m.buildFromHints(ex, normalized); ok {
			return m.record(Result{
				Primitive:   &p,
				SourceText:  text,
				IsAssertion: p.IsAssertion(),
				MatchSource: SourceHints,
				Warnings:    warnings,
				Hints:       &ex,
			})
		}
		// Hints that resolve to nothing usable fall through to the next
		// tiers, keeping their warnings.
		if r, ok := m.matchLower(text, normalized, opts); ok {
			r.Warnings = append(warnings, r.Warnings...)
			return m.record(r)
		}
		return m.record(m.miss(text, normalized, warnings))
	}

	if r, ok := m.matchLower(text, normalized, opts); ok {
		r.Warnings = append(parsed.Warnings, r.Warnings...)
		return m.record(r)
	}
	return m.record(m.miss(text, normalized, parsed.Warnings))
}

// matchLower runs tiers 2 and 3.
func (m *Mapper) matchLower(text, normalized string, opts Options) (Result, bool) {
	// Tier 2: fixed pattern library. Vetted rules beat learned entries
	// unconditionally.
	if p, ok := m.lib.Match(normalized); ok {
		return Result{
			Primitive:   &p,
			SourceText:  text,
			IsAssertion: p.IsAssertion(),
			MatchSource: SourcePattern,
		}, true
	}

	// Tier 3: learned pattern store at the caller's threshold.
	if m.store != nil && !opts.DisableLLKB {
		if lp := m.store.Match(normalized, opts.minConfidence()); lp != nil {
			p := lp.MappedPrimitive
			logging.MapDebug("LLKB matched %q -> %s (confidence=%.2f)", normalized, p.Kind, lp.Confidence)
			return Result{
				Primitive:        &p,
				SourceText:       text,
				IsAssertion:      p.IsAssertion(),
				MatchSource:      SourceLLKB,
				Confidence:       lp.Confidence,
				MatchedPatternID: lp.ID,
			}, true
		}
	}
	return Result{}, false
}

func (m *Mapper) miss(text, normalized string, warnings []string) Result {
	diag := fmt.Sprintf("no hint, fixed pattern, or learned pattern matched %q", normalized)
	logging.Map("Step blocked: %s", diag)
	return Result{
		SourceText:  text,
		MatchSource: SourceNone,
		Diagnostic:  diag,
		Warnings:    warnings,
	}
}

func (m *Mapper) record(r Result) Result {
	m.mu.Lock()
	m.stats.Total++
	m.stats.BySource[r.MatchSource]++
	if r.MatchSource == SourceNone {
		m.stats.Blocked++
	}
	if r.IsAssertion {
		m.stats.Assertion++
	}
	m.mu.Unlock()
	return r
}

// Stats returns a snapshot of aggregated mapping statistics.
func (m *Mapper) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Stats{
		Total:     m.stats.Total,
		Blocked:   m.stats.Blocked,
		Assertion: m.stats.Assertion,
		BySource:  make(map[MatchSource]int, len(m.stats.BySource)),
	}
	for k, v := range m.stats.BySource {
		snap.BySource[k] = v
	}
	return snap
}

// buildFromHints constructs a primitive directly from extracted hints plus
// the verb read from the normalized clean text.
func (m *Mapper) buildFromHints(ex hints.Extracted, normalized string) (ir.Primitive, bool) {
	// A module hint is a complete behavior on its own.
	if ex.Module != "" {
		parts := strings.SplitN(ex.Module, ".", 2)
		if len(parts) == 2 {
			if p, err := ir.CallModule(parts[0], parts[1]); err == nil {
				return p, true
			}
		}
	}

	loc, hasLoc := ex.Locator()
	if !hasLoc {
		return ir.Primitive{}, false
	}

	lower := " " + strings.ToLower(normalized) + " "
	quoted := firstQuoted(normalized)

	// Role locators without an accessible name take the remaining text as
	// the name, so "(role=heading, level=2)Welcome" asserts the Welcome
	// heading.
	if loc.Strategy == ir.StrategyRole && (loc.Options == nil || loc.Options.Name == "") && normalized != "" && !hasVerb(lower) {
		name := strings.Trim(normalized, `"' `)
		if loc.Options == nil {
			loc.Options = &ir.LocatorOptions{}
		}
		loc.Options.Name = name
	}

	var (
		p   ir.Primitive
		err error
	)
	switch {
	case strings.Contains(lower, " fills "):
		p, err = ir.Fill(loc, ir.ValueSpec{Literal: quoted})
	case strings.Contains(lower, " selects "):
		p, err = ir.Select(loc, ir.ValueSpec{Literal: quoted})
	case strings.Contains(lower, " unchecks "):
		p, err = ir.Uncheck(loc)
	case strings.Contains(lower, " checks "):
		p, err = ir.Check(loc)
	case strings.Contains(lower, " clicks "):
		p, err = ir.Click(loc)
	case strings.Contains(lower, " sees "):
		p, err = ir.ExpectVisible(loc)
	default:
		// No verb: headings and status surfaces read as assertions,
		// anything else as a click target.
		if loc.Strategy == ir.StrategyRole && assertionRole(loc.Value) {
			p, err = ir.ExpectVisible(loc)
		} else {
			p, err = ir.Click(loc)
		}
	}
	if err != nil {
		logging.MapDebug("Hint primitive construction failed: %v", err)
		return ir.Primitive{}, false
	}
	return p, true
}

func hasVerb(padded string) bool {
	for _, v := range []string{" clicks ", " fills ", " selects ", " checks ", " unchecks ", " presses ", " sees ", " navigates "} {
		if strings.Contains(padded, v) {
			return true
		}
	}
	return false
}

func assertionRole(role string) bool {
	switch role {
	case "heading", "alert", "status", "banner", "main", "dialog":
		return true
	}
	return false
}

func firstQuoted(s string) string {
	for _, q := range []byte{'"', '\''} {
		start := strings.IndexByte(s, q)
		if start < 0 {
			continue
		}
		end := strings.IndexByte(s[start+1:], q)
		if end < 0 {
			continue
		}
		return s[start+1 : start+1+end]
	}
	return ""
}

// =============================================================================
// LEARNING LOOP
// =============================================================================
// Learning is confirmed, not automatic: mapping never records success. The
// caller confirms after the generated test passes downstream.

// ConfirmSuccess records a passing downstream run for a learned-pattern
// result. No-op for results from other tiers.
func (m *Mapper) ConfirmSuccess(r Result, journeyID string) error {
	if r.MatchSource != SourceLLKB || m.store == nil {
		return nil
	}
	if journeyID == "" {
		return fmt.Errorf("journey id required to confirm success")
	}
	return m.store.RecordSuccess(r.MatchedPatternID, journeyID)
}

// ConfirmFailure records a failing downstream run for a learned-pattern
// result. No-op for results from other tiers.
func (m *Mapper) ConfirmFailure(r Result) error {
	if r.MatchSource != SourceLLKB || m.store == nil {
		return nil
	}
	return m.store.RecordFailure(r.MatchedPatternID)
}

// Learn stores a mapping that proved itself downstream, making it available
// to the learned tier for future journeys.
func (m *Mapper) Learn(sourceText string, p ir.Primitive, journeyID string) (*llkb.LearnedPattern, error) {
	if m.store == nil {
		return nil, fmt.Errorf("no learned pattern store configured")
	}
	normalized := m.gloss.NormalizeStepText(sourceText)
	return m.store.Learn(normalized, p, journeyID)
}

// =============================================================================
// BATCH MAPPING
// =============================================================================

// MapSteps maps a whole journey's steps, bounded-parallel. Step order is
// preserved in the returned slice.
func (m *Mapper) MapSteps(ctx context.Context, steps []string, opts Options) ([]Result, error) {
	results := make([]Result, len(steps))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, step := range steps {
		g.Go(func() error {
			results[i] = m.MapStepText(step, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
