// Package classify maps raw runner error text to a failure category with
// confidence and actionability. Classification is pure: no state, no I/O
// beyond debug logging.
package classify

import (
	"regexp"
	"strings"

	"stepwright/internal/logging"
)

// Category is the failure taxonomy. Exactly one category per classified
// error.
type Category string

const (
	CategorySelector   Category = "selector"
	CategoryTiming     Category = "timing"
	CategoryNavigation Category = "navigation"
	CategoryData       Category = "data"
	CategoryAuth       Category = "auth"
	CategoryEnv        Category = "env"
	CategoryScript     Category = "script"
	CategoryUnknown    Category = "unknown"
)

// Classification is the classifier verdict for one error.
type Classification struct {
	Category        Category `json:"category"`
	Confidence      float64  `json:"confidence"`
	Explanation     string   `json:"explanation"`
	Suggestion      string   `json:"suggestion"`
	IsTestIssue     bool     `json:"isTestIssue"`
	MatchedKeywords []string `json:"matchedKeywords,omitempty"`
}

type categoryRule struct {
	category    Category
	detectors   []*regexp.Regexp
	explanation string
	suggestion  string
	isTestIssue bool
}

// detectorSaturation is the match count at which confidence reaches 1.0.
// Tunable constant kept at its original value for behavioral parity.
const detectorSaturation = 3

// categoryTable is evaluated in order and the order is load-bearing: when
// two categories tie on match count, the earlier entry wins. Do not
// reorder.
var categoryTable = []categoryRule{
	{
		category: CategorySelector,
		detectors: []*regexp.Regexp{
			regexp.MustCompile(`(?i)no element matches`),
			regexp.MustCompile(`(?i)element(?:\(s\))? not found`),
			regexp.MustCompile(`(?i)waiting for (?:locator|selector|getBy)`),
			regexp.MustCompile(`(?i)strict mode violation`),
			regexp.MustCompile(`(?i)resolved to \d+ elements`),
			regexp.MustCompile(`(?i)locator`),
			regexp.MustCompile(`(?i)selector`),
			regexp.MustCompile(`(?i)not attached to the dom`),
			regexp.MustCompile(`(?i)element is not visible`),
			regexp.MustCompile(`(?i)intercepts pointer events`),
		},
		explanation: "The test could not find or interact with the target element.",
		suggestion:  "Prefer role/label locators or add a stable test id to the element.",
		isTestIssue: true,
	},
	{
		category: CategoryTiming,
		detectors: []*regexp.Regexp{
			regexp.MustCompile(`(?i)timeout`),
			regexp.MustCompile(`(?i)timed out`),
			regexp.MustCompile(`(?i)exceeded`),
			regexp.MustCompile(`(?i)waiting for`),
			regexp.MustCompile(`(?i)deadline`),
			regexp.MustCompile(`(?i)still (?:loading|pending)`),
		},
		explanation: "The page or element did not reach the expected state in time.",
		suggestion:  "Wait for a concrete signal (network idle, element state) instead of racing the page.",
		isTestIssue: true,
	},
	{
		category: CategoryNavigation,
		detectors: []*regexp.Regexp{
			regexp.MustCompile(`(?i)navigation (?:failed|timeout|interrupted)`),
			regexp.MustCompile(`(?i)net::err_(?:aborted|name_not_resolved|connection_refused)`),
			regexp.MustCompile(`(?i)page\.goto`),
			regexp.MustCompile(`(?i)\b404\b`),
			regexp.MustCompile(`(?i)page not found`),
			regexp.MustCompile(`(?i)frame was detached`),
		},
		explanation: "The browser failed to reach or stay on the expected page.",
		suggestion:  "Check the route and any redirects the app performs on load.",
		isTestIssue: false,
	},
	{
		category: CategoryData,
		detectors: []*regexp.Regexp{
			regexp.MustCompile(`(?i)validation (?:error|failed)`),
			regexp.MustCompile(`(?i)duplicate (?:key|entry|record)`),
			regexp.MustCompile(`(?i)constraint (?:violation|failed)`),
			regexp.MustCompile(`(?i)already exists`),
			regexp.MustCompile(`(?i)invalid (?:input|value|format)`),
			regexp.MustCompile(`(?i)required field`),
		},
		explanation: "The application rejected the test data.",
		suggestion:  "Seed unique fixtures per run or reset state between journeys.",
		isTestIssue: false,
	},
	{
		category: CategoryAuth,
		detectors: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b401\b`),
			regexp.MustCompile(`(?i)unauthorized`),
			regexp.MustCompile(`(?i)\b403\b`),
			regexp.MustCompile(`(?i)forbidden`),
			regexp.MustCompile(`(?i)session (?:expired|invalid)`),
			regexp.MustCompile(`(?i)csrf`),
			regexp.MustCompile(`(?i)login required`),
		},
		explanation: "The session was not authenticated or lacked permission.",
		suggestion:  "Verify the auth setup module and credential fixtures for this journey.",
		isTestIssue: false,
	},
	{
		category: CategoryEnv,
		detectors: []*regexp.Regexp{
			regexp.MustCompile(`(?i)econnrefused`),
			regexp.MustCompile(`(?i)enotfound`),
			regexp.MustCompile(`(?i)\b50[23]\b`),
			regexp.MustCompile(`(?i)certificate`),
			regexp.MustCompile(`(?i)dns`),
			regexp.MustCompile(`(?i)browser has been closed`),
			regexp.MustCompile(`(?i)out of memory`),
			regexp.MustCompile(`(?i)no space left`),
		},
		explanation: "The test environment or its services were unavailable.",
		suggestion:  "Check that the app under test and its dependencies are up before the run.",
		isTestIssue: false,
	},
	{
		category: CategoryScript,
		detectors: []*regexp.Regexp{
			regexp.MustCompile(`(?i)referenceerror`),
			regexp.MustCompile(`(?i)typeerror`),
			regexp.MustCompile(`(?i)syntaxerror`),
			regexp.MustCompile(`(?i)undefined is not`),
			regexp.MustCompile(`(?i)cannot read propert`),
			regexp.MustCompile(`(?i)is not a function`),
		},
		explanation: "A script error occurred in the page or the generated test.",
		suggestion:  "This usually indicates an application defect; file it rather than patching the test.",
		isTestIssue: false,
	},
}

// Error classifies runner error content. Message and optional stack are
// concatenated; every category's detectors are counted and the strictly
// greatest count wins, ties keeping the earliest table entry. Zero matches
// across all categories yields unknown with confidence 0.
func Error(message, stack string) Classification {
	text := message
	if stack != "" {
		text += "\n" + stack
	}

	best := Classification{
		Category:    CategoryUnknown,
		Confidence:  0,
		Explanation: "No known failure signature matched.",
		Suggestion:  "Inspect the raw runner output manually.",
	}
	bestCount := 0

	for _, rule := range categoryTable {
		var matched []string
		for _, det := range rule.detectors {
			if m := det.FindString(text); m != "" {
				matched = append(matched, strings.ToLower(m))
			}
		}
		if len(matched) > bestCount {
			bestCount = len(matched)
			best = Classification{
				Category:        rule.category,
				Confidence:      confidenceFor(len(matched)),
				Explanation:     rule.explanation,
				Suggestion:      rule.suggestion,
				IsTestIssue:     rule.isTestIssue,
				MatchedKeywords: matched,
			}
		}
	}

	logging.Classify("Classified error as %s (confidence=%.2f, keywords=%v)",
		best.Category, best.Confidence, best.MatchedKeywords)
	return best
}

func confidenceFor(matches int) float64 {
	c := float64(matches) / detectorSaturation
	if c > 1 {
		return 1
	}
	return c
}

// IsHealable reports whether automatic repair may be attempted. Only
// selector and timing failures are healable; every other category is
// structurally excluded regardless of confidence because it usually
// reflects a real application or environment problem.
func IsHealable(c Classification) bool {
	return c.Category == CategorySelector || c.Category == CategoryTiming
}

// Stats counts classifications per category.
type Stats map[Category]int

// FailureStats aggregates classifications; the counts always sum to
// len(classifications).
func FailureStats(classifications []Classification) Stats {
	stats := make(Stats)
	for _, c := range classifications {
		stats[c.Category]++
	}
	return stats
}

// Categories returns the table's category order plus unknown, for
// deterministic reporting.
func Categories() []Category {
	out := make([]Category, 0, len(categoryTable)+1)
	for _, r := range categoryTable {
		out = append(out, r.category)
	}
	return append(out, CategoryUnknown)
}
