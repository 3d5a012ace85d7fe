// Package healing repairs generated tests that failed for superficial
// reasons. It contains the rule engine (which fixes may be tried for a
// classified failure) and the bounded-retry session controller.
package healing

import (
	"sort"

	"stepwright/internal/classify"
)

// FixType identifies one repair strategy.
type FixType string

const (
	FixLocatorSwap         FixType = "locator_swap"
	FixLearnedSubstitution FixType = "learned_pattern_substitution"
	FixWaitForSignal       FixType = "wait_for_signal"
	FixIncreaseTimeout     FixType = "increase_timeout"

	// Forbidden strategies, listed so the safety check can name them.
	FixAddSleep        FixType = "add_sleep"
	FixRemoveAssertion FixType = "remove_assertion"
	FixWeakenAssertion FixType = "weaken_assertion"
	FixForceClick      FixType = "force_click"
	FixBypassAuth      FixType = "bypass_auth"
	FixSkipTest        FixType = "skip_test"
)

// Rule declares one repair strategy: which categories it applies to and the
// order it is tried in (ascending priority = tried first).
type Rule struct {
	FixType          FixType             `json:"fixType"`
	AppliesTo        []classify.Category `json:"appliesTo"`
	Priority         int                 `json:"priority"`
	EnabledByDefault bool                `json:"enabledByDefault"`
}

func (r Rule) appliesTo(cat classify.Category) bool {
	for _, c := range r.AppliesTo {
		if c == cat {
			return true
		}
	}
	return false
}

// defaultRules is the built-in rule set.
var defaultRules = []Rule{
	{FixType: FixLocatorSwap, AppliesTo: []classify.Category{classify.CategorySelector}, Priority: 10, EnabledByDefault: true},
	{FixType: FixLearnedSubstitution, AppliesTo: []classify.Category{classify.CategorySelector}, Priority: 20, EnabledByDefault: true},
	{FixType: FixWaitForSignal, AppliesTo: []classify.Category{classify.CategoryTiming}, Priority: 10, EnabledByDefault: true},
	{FixType: FixIncreaseTimeout, AppliesTo: []classify.Category{classify.CategoryTiming}, Priority: 20, EnabledByDefault: true},
}

// DefaultRules returns a copy of the built-in rule set.
func DefaultRules() []Rule {
	return append([]Rule(nil), defaultRules...)
}

// DefaultAllowedFixes lists the fix types enabled by default.
func DefaultAllowedFixes() []FixType {
	var out []FixType
	for _, r := range defaultRules {
		if r.EnabledByDefault {
			out = append(out, r.FixType)
		}
	}
	return out
}

// forbiddenFixes is the hard, non-configurable safety list. These
// strategies hide defects instead of repairing brittleness, so they are
// never offered even when present in an allow list.
var forbiddenFixes = map[FixType]bool{
	FixAddSleep:        true,
	FixRemoveAssertion: true,
	FixWeakenAssertion: true,
	FixForceClick:      true,
	FixBypassAuth:      true,
	FixSkipTest:        true,
}

// IsFixForbidden checks the hard safety list, independent of configuration.
func IsFixForbidden(fix FixType) bool {
	return forbiddenFixes[fix]
}

// Config controls the rule engine and session controller.
type Config struct {
	Enabled      bool
	AllowedFixes []FixType
	MaxAttempts  int
	Rules        []Rule // nil means DefaultRules
}

// DefaultConfig enables healing with the built-in rules.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		AllowedFixes: DefaultAllowedFixes(),
		MaxAttempts:  3,
	}
}

func (c Config) rules() []Rule {
	if c.Rules != nil {
		return c.Rules
	}
	return defaultRules
}

func (c Config) allows(fix FixType) bool {
	for _, f := range c.AllowedFixes {
		if f == fix {
			return true
		}
	}
	return false
}

// Evaluation is the rule engine verdict for one classification.
type Evaluation struct {
	CanHeal         bool
	ApplicableFixes []Rule
	Reason          string
}

// Evaluate selects the candidate repair strategies for a classification.
// The result is the subset of rules that apply to the category, are in the
// allow list, and are not forbidden, sorted ascending by priority.
func Evaluate(c classify.Classification, cfg Config) Evaluation {
	if !cfg.Enabled {
		return Evaluation{Reason: "healing is disabled"}
	}
	if !classify.IsHealable(c) {
		return Evaluation{Reason: "category " + string(c.Category) + " is not healable"}
	}

	var fixes []Rule
	for _, r := range cfg.rules() {
		if !r.appliesTo(c.Category) {
			continue
		}
		if IsFixForbidden(r.FixType) {
			// Checked independently of the allow list: a forbidden fix is
			// never offered even if mistakenly allowed.
			continue
		}
		if !cfg.allows(r.FixType) {
			continue
		}
		fixes = append(fixes, r)
	}
	if len(fixes) == 0 {
		return Evaluation{Reason: "no configured rule applies to category " + string(c.Category)}
	}
	sort.SliceStable(fixes, func(i, j int) bool { return fixes[i].Priority < fixes[j].Priority })
	return Evaluation{CanHeal: true, ApplicableFixes: fixes}
}

// NextFix returns the first applicable fix not yet attempted, or nil when
// exhausted. The controller therefore never repeats a fix within a session.
func NextFix(c classify.Classification, attempted []FixType, cfg Config) *Rule {
	eval := Evaluate(c, cfg)
	if !eval.CanHeal {
		return nil
	}
	tried := make(map[FixType]bool, len(attempted))
	for _, f := range attempted {
		tried[f] = true
	}
	for _, r := range eval.ApplicableFixes {
		if !tried[r.FixType] {
			rule := r
			return &rule
		}
	}
	return nil
}

// Recommendation suggests the manual followup for a failure category when
// healing could not (or may not) fix it.
func Recommendation(cat classify.Category) string {
	switch cat {
	case classify.CategorySelector:
		return "Add a stable test id to the target element and regenerate the step."
	case classify.CategoryTiming:
		return "Investigate a real performance issue; healing only masks slowness up to a point."
	case classify.CategoryNavigation:
		return "Verify the route exists and redirects are intentional."
	case classify.CategoryData:
		return "Isolate test data per run; this failure is stateful, not brittle."
	case classify.CategoryAuth:
		return "Fix the journey's auth setup; healing never touches credentials."
	case classify.CategoryEnv:
		return "Stabilize the test environment before rerunning the suite."
	case classify.CategoryScript:
		return "Likely an application defect; file a bug instead of editing the test."
	default:
		return "Inspect the raw failure output; no known signature matched."
	}
}
