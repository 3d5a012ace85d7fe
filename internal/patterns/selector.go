package patterns

import (
	"regexp"

	"stepwright/internal/ir"
	"stepwright/internal/logging"
)

// SelectorConfig controls candidate locator selection.
type SelectorConfig struct {
	// Priority orders strategies best-first. A strategy absent from the
	// list scores worst.
	Priority []ir.LocatorStrategy
	// Forbidden patterns are matched against the raw selector value; a
	// matching candidate is filtered out before scoring.
	Forbidden []*regexp.Regexp
}

// DefaultSelectorConfig mirrors the vetted strategy order.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		Priority: []ir.LocatorStrategy{
			ir.StrategyRole,
			ir.StrategyLabel,
			ir.StrategyPlaceholder,
			ir.StrategyText,
			ir.StrategyTestID,
			ir.StrategyCSS,
		},
		Forbidden: []*regexp.Regexp{
			// Auto-generated and positional selectors break on every
			// rebuild or reorder.
			regexp.MustCompile(`nth-child|nth-of-type`),
			regexp.MustCompile(`css-[a-z0-9]{5,}`),
			regexp.MustCompile(`^\.sc-[a-zA-Z]`),
			regexp.MustCompile(`^#?ember\d+`),
			regexp.MustCompile(`>\s*div\s*>\s*div`),
		},
	}
}

// ScoreLocator returns the index of the spec's strategy in the priority
// list; lower is better. Strategies not in the list score len(priority).
func ScoreLocator(spec ir.LocatorSpec, priority []ir.LocatorStrategy) int {
	for i, s := range priority {
		if spec.Strategy == s {
			return i
		}
	}
	return len(priority)
}

// SelectBest filters forbidden candidates then picks the lowest-scoring
// one, ties going to the earlier candidate. When every candidate is
// forbidden the first original candidate is returned as a last resort and
// fallback is true; the caller is responsible for surfacing a warning.
func SelectBest(candidates []ir.LocatorSpec, cfg SelectorConfig) (best ir.LocatorSpec, fallback bool) {
	if len(candidates) == 0 {
		return ir.LocatorSpec{}, false
	}

	allowed := make([]ir.LocatorSpec, 0, len(candidates))
	for _, c := range candidates {
		if isForbidden(c.Value, cfg.Forbidden) {
			logging.Patterns("Candidate %s filtered by forbidden pattern", c)
			continue
		}
		allowed = append(allowed, c)
	}
	if len(allowed) == 0 {
		logging.Patterns("All %d candidates forbidden; falling back to first", len(candidates))
		return candidates[0], true
	}

	best = allowed[0]
	bestScore := ScoreLocator(best, cfg.Priority)
	for _, c := range allowed[1:] {
		if s := ScoreLocator(c, cfg.Priority); s < bestScore {
			best, bestScore = c, s
		}
	}
	return best, false
}

func isForbidden(value string, forbidden []*regexp.Regexp) bool {
	for _, re := range forbidden {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}
