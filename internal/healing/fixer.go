package healing

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"stepwright/internal/ir"
	"stepwright/internal/llkb"
	"stepwright/internal/logging"
	"stepwright/internal/patterns"
)

// LearnedMatcher is the slice of the learned pattern store the fixer needs.
type LearnedMatcher interface {
	Match(text string, minConfidence float64) *llkb.LearnedPattern
}

// LocatorProber checks whether a locator resolves on a live page. Optional;
// without it the locator-swap fix proposes the best-scored candidate
// blindly.
type LocatorProber interface {
	Resolves(ctx context.Context, loc ir.LocatorSpec, pageURL string) (bool, error)
}

// FileFixer applies repair strategies as textual transforms over the
// generated test source. It never weakens assertions or adds sleeps; those
// strategies are forbidden at the rule-engine level and have no
// implementation here by design intent.
type FileFixer struct {
	Selector patterns.SelectorConfig
	Learned  LearnedMatcher
	Probe    LocatorProber
	BaseURL  string // page the probe navigates to; empty disables probing

	// SubstitutionThreshold is the minimum learned-pattern confidence the
	// substitution fix will accept. Healing context tolerates a lower bar
	// than first-time mapping: the fixed pattern already failed.
	SubstitutionThreshold float64
}

// NewFileFixer builds a fixer with the default selector config.
func NewFileFixer(learned LearnedMatcher, probe LocatorProber, baseURL string) *FileFixer {
	return &FileFixer{
		Selector:              patterns.DefaultSelectorConfig(),
		Learned:               learned,
		Probe:                 probe,
		BaseURL:               baseURL,
		SubstitutionThreshold: 0.5,
	}
}

// Apply dispatches one fix strategy.
func (f *FileFixer) Apply(ctx context.Context, fix FixType, req FixRequest) (FixOutcome, error) {
	if IsFixForbidden(fix) {
		// Rejected locally; the rule engine should never hand one down.
		return FixOutcome{}, fmt.Errorf("fix %s is forbidden", fix)
	}
	switch fix {
	case FixLocatorSwap:
		return f.locatorSwap(ctx, req)
	case FixLearnedSubstitution:
		return f.learnedSubstitution(req)
	case FixWaitForSignal:
		return f.waitForSignal(req)
	case FixIncreaseTimeout:
		return f.increaseTimeout(req)
	default:
		return FixOutcome{}, fmt.Errorf("no implementation for fix %s", fix)
	}
}

var failingLocatorRe = regexp.MustCompile(`(?:locator|getByTestId|getByText|getByLabel|getByPlaceholder)\((['"])([^'"]+)['"]\)`)

// locatorSwap replaces the failing locator with a sturdier candidate.
func (f *FileFixer) locatorSwap(ctx context.Context, req FixRequest) (FixOutcome, error) {
	call, value, err := failingLocator(req.ErrorText)
	if err != nil {
		return FixOutcome{}, err
	}

	candidates := deriveCandidates(value)
	if f.Probe != nil && f.BaseURL != "" {
		candidates = f.probeFilter(ctx, candidates)
	}
	best, fallback := patterns.SelectBest(candidates, f.Selector)
	if fallback {
		logging.HealingWarn("locator_swap: all candidates forbidden, using last resort %s", best)
	}
	replacement := locatorExpr(best)
	if replacement == call {
		return FixOutcome{}, fmt.Errorf("no better locator than %s", call)
	}

	changed, err := replaceInFile(req.TestFile, call, replacement)
	if err != nil {
		return FixOutcome{}, err
	}
	return FixOutcome{
		File:     req.TestFile,
		Change:   fmt.Sprintf("replaced %s with %s (%d occurrence(s))", call, replacement, changed),
		Evidence: fmt.Sprintf("failing locator %q extracted from runner error", value),
	}, nil
}

// learnedSubstitution swaps in the locator of a learned pattern for the
// failing step, carrying the pattern id as provenance for write-back.
func (f *FileFixer) learnedSubstitution(req FixRequest) (FixOutcome, error) {
	if f.Learned == nil {
		return FixOutcome{}, fmt.Errorf("no learned pattern store configured")
	}
	if req.StepText == "" {
		return FixOutcome{}, fmt.Errorf("failing step text unknown")
	}
	p := f.Learned.Match(req.StepText, f.SubstitutionThreshold)
	if p == nil {
		return FixOutcome{}, fmt.Errorf("no learned pattern for %q", req.StepText)
	}
	if p.MappedPrimitive.Locator == nil {
		return FixOutcome{}, fmt.Errorf("learned pattern %s carries no locator", p.ID)
	}

	call, value, err := failingLocator(req.ErrorText)
	if err != nil {
		return FixOutcome{}, err
	}
	replacement := locatorExpr(*p.MappedPrimitive.Locator)
	if replacement == call {
		return FixOutcome{}, fmt.Errorf("learned locator is identical to the failing one")
	}
	changed, err := replaceInFile(req.TestFile, call, replacement)
	if err != nil {
		return FixOutcome{}, err
	}
	return FixOutcome{
		File:      req.TestFile,
		Change:    fmt.Sprintf("substituted learned locator %s for %s (%d occurrence(s))", replacement, call, changed),
		Evidence:  fmt.Sprintf("learned pattern %s (confidence %.2f) for step %q; failing value %q", p.ID, p.Confidence, req.StepText, value),
		PatternID: p.ID,
	}, nil
}

var waitForTimeoutRe = regexp.MustCompile(`page\.waitForTimeout\(\s*\d+\s*\)`)

// waitForSignal replaces blind fixed waits with a load-state wait. It does
// NOT add waits that were not there; that would be the forbidden add_sleep
// in reverse.
func (f *FileFixer) waitForSignal(req FixRequest) (FixOutcome, error) {
	data, err := os.ReadFile(req.TestFile)
	if err != nil {
		return FixOutcome{}, fmt.Errorf("read test file: %w", err)
	}
	src := string(data)
	count := len(waitForTimeoutRe.FindAllString(src, -1))
	if count == 0 {
		return FixOutcome{}, fmt.Errorf("no fixed waits to convert in %s", req.TestFile)
	}
	out := waitForTimeoutRe.ReplaceAllString(src, `page.waitForLoadState('networkidle')`)
	if err := os.WriteFile(req.TestFile, []byte(out), 0644); err != nil {
		return FixOutcome{}, fmt.Errorf("write test file: %w", err)
	}
	return FixOutcome{
		File:     req.TestFile,
		Change:   fmt.Sprintf("converted %d fixed wait(s) to waitForLoadState('networkidle')", count),
		Evidence: "timing failure with waitForTimeout present",
	}, nil
}

var timeoutOptRe = regexp.MustCompile(`timeout:\s*(\d+)`)

// increaseTimeout doubles explicit timeout options in the test file, capped
// at two minutes. This raises a declared budget; it never inserts sleeps.
func (f *FileFixer) increaseTimeout(req FixRequest) (FixOutcome, error) {
	data, err := os.ReadFile(req.TestFile)
	if err != nil {
		return FixOutcome{}, fmt.Errorf("read test file: %w", err)
	}
	src := string(data)
	count := 0
	out := timeoutOptRe.ReplaceAllStringFunc(src, func(m string) string {
		sub := timeoutOptRe.FindStringSubmatch(m)
		n, err := strconv.Atoi(sub[1])
		if err != nil {
			return m
		}
		doubled := n * 2
		if doubled > 120000 {
			doubled = 120000
		}
		if doubled == n {
			return m
		}
		count++
		return fmt.Sprintf("timeout: %d", doubled)
	})
	if count == 0 {
		return FixOutcome{}, fmt.Errorf("no timeout options to raise in %s", req.TestFile)
	}
	if err := os.WriteFile(req.TestFile, []byte(out), 0644); err != nil {
		return FixOutcome{}, fmt.Errorf("write test file: %w", err)
	}
	return FixOutcome{
		File:     req.TestFile,
		Change:   fmt.Sprintf("doubled %d explicit timeout option(s)", count),
		Evidence: "timing failure with explicit timeouts present",
	}, nil
}

func (f *FileFixer) probeFilter(ctx context.Context, candidates []ir.LocatorSpec) []ir.LocatorSpec {
	var live []ir.LocatorSpec
	for _, c := range candidates {
		ok, err := f.Probe.Resolves(ctx, c, f.BaseURL)
		if err != nil {
			logging.Probe("Probe failed for %s: %v", c, err)
			continue
		}
		if ok {
			live = append(live, c)
		}
	}
	if len(live) == 0 {
		// Probe is advisory: an unreachable page must not block healing.
		return candidates
	}
	return live
}

// failingLocator extracts the first locator call from runner error text.
func failingLocator(errorText string) (call, value string, err error) {
	m := failingLocatorRe.FindStringSubmatch(errorText)
	if m == nil {
		return "", "", fmt.Errorf("no locator found in error text")
	}
	return m[0], m[2], nil
}

// deriveCandidates proposes alternative locators for a failing raw
// selector. The original stays in the list so selection can still fall back
// to it.
func deriveCandidates(failing string) []ir.LocatorSpec {
	var out []ir.LocatorSpec

	if m := regexp.MustCompile(`\[data-testid=["']?([^"'\]]+)["']?\]`).FindStringSubmatch(failing); m != nil {
		out = append(out, ir.LocatorSpec{Strategy: ir.StrategyTestID, Value: m[1]})
	}
	if strings.HasPrefix(failing, "#") {
		id := strings.TrimPrefix(failing, "#")
		out = append(out,
			ir.LocatorSpec{Strategy: ir.StrategyTestID, Value: id},
			ir.LocatorSpec{Strategy: ir.StrategyText, Value: humanize(id)},
		)
	} else if strings.HasPrefix(failing, ".") {
		token := lastToken(failing)
		if token != "" {
			out = append(out, ir.LocatorSpec{Strategy: ir.StrategyText, Value: humanize(token)})
		}
	} else if !strings.ContainsAny(failing, "#.[>") {
		// Bare value: likely a testid or visible text already.
		out = append(out,
			ir.LocatorSpec{Strategy: ir.StrategyTestID, Value: failing},
			ir.LocatorSpec{Strategy: ir.StrategyText, Value: humanize(failing)},
		)
	}
	return append(out, ir.LocatorSpec{Strategy: ir.StrategyCSS, Value: failing})
}

// humanize turns kebab/snake identifiers into title-cased visible text.
func humanize(ident string) string {
	words := strings.FieldsFunc(ident, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func lastToken(selector string) string {
	parts := strings.FieldsFunc(selector, func(r rune) bool { return r == '.' || r == ' ' || r == '>' })
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// locatorExpr renders the runner-side locator call for a spec.
func locatorExpr(loc ir.LocatorSpec) string {
	switch loc.Strategy {
	case ir.StrategyRole:
		if o := loc.Options; o != nil {
			var opts []string
			if o.Name != "" {
				opts = append(opts, fmt.Sprintf("name: '%s'", o.Name))
			}
			if o.Exact {
				opts = append(opts, "exact: true")
			}
			if o.Level > 0 {
				opts = append(opts, fmt.Sprintf("level: %d", o.Level))
			}
			if len(opts) > 0 {
				return fmt.Sprintf("getByRole('%s', { %s })", loc.Value, strings.Join(opts, ", "))
			}
		}
		return fmt.Sprintf("getByRole('%s')", loc.Value)
	case ir.StrategyLabel:
		return fmt.Sprintf("getByLabel('%s')", loc.Value)
	case ir.StrategyPlaceholder:
		return fmt.Sprintf("getByPlaceholder('%s')", loc.Value)
	case ir.StrategyText:
		return fmt.Sprintf("getByText('%s')", loc.Value)
	case ir.StrategyTestID:
		return fmt.Sprintf("getByTestId('%s')", loc.Value)
	default:
		return fmt.Sprintf("locator('%s')", loc.Value)
	}
}

// replaceInFile swaps every occurrence of old for new and reports the count.
func replaceInFile(path, oldCall, newCall string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read test file: %w", err)
	}
	src := string(data)
	count := strings.Count(src, oldCall)
	if count == 0 {
		return 0, fmt.Errorf("locator %s not present in %s", oldCall, path)
	}
	out := strings.ReplaceAll(src, oldCall, newCall)
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return 0, fmt.Errorf("write test file: %w", err)
	}
	return count, nil
}
