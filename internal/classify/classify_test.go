package classify

import (
	"testing"
)

func TestErrorScenarios(t *testing.T) {
	tests := []struct {
		name         string
		message      string
		wantCategory Category
	}{
		{
			name:         "unresolvable locator",
			message:      `waiting for locator('button[name="Save"]'): element is not visible`,
			wantCategory: CategorySelector,
		},
		{
			name:         "plain timeout",
			message:      "Test timeout of 30000ms exceeded",
			wantCategory: CategoryTiming,
		},
		{
			name:         "strict mode violation",
			message:      `strict mode violation: locator('.btn') resolved to 3 elements`,
			wantCategory: CategorySelector,
		},
		{
			name:         "navigation refused",
			message:      "page.goto: net::ERR_CONNECTION_REFUSED at http://localhost:3000/",
			wantCategory: CategoryNavigation,
		},
		{
			name:         "missing route",
			message:      "Expected 200 but got 404: page not found",
			wantCategory: CategoryNavigation,
		},
		{
			name:         "duplicate fixture",
			message:      "validation error: duplicate key value violates constraint, record already exists",
			wantCategory: CategoryData,
		},
		{
			name:         "unauthorized",
			message:      "Request failed with status 401 Unauthorized",
			wantCategory: CategoryAuth,
		},
		{
			name:         "expired session",
			message:      "403 Forbidden: session expired, login required",
			wantCategory: CategoryAuth,
		},
		{
			name:         "service down",
			message:      "connect ECONNREFUSED 127.0.0.1:5432, dns lookup also failed",
			wantCategory: CategoryEnv,
		},
		{
			name:         "page script crash",
			message:      "TypeError: undefined is not an object; cannot read properties of null",
			wantCategory: CategoryScript,
		},
		{
			name:         "nothing recognizable",
			message:      "segmentation fault in the coffee machine",
			wantCategory: CategoryUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Error(tt.message, "")
			if got.Category != tt.wantCategory {
				t.Errorf("Error(%q) = %s (keywords %v), want %s",
					tt.message, got.Category, got.MatchedKeywords, tt.wantCategory)
			}
		})
	}
}

func TestStackContributes(t *testing.T) {
	got := Error("assertion failed", "at waiting for locator('x') element is not visible")
	if got.Category != CategorySelector {
		t.Errorf("category = %s, stack text should feed detectors", got.Category)
	}
}

func TestConfidenceSaturation(t *testing.T) {
	// One detector match.
	one := Error("something something selector", "")
	if one.Confidence <= 0 || one.Confidence >= 0.5 {
		t.Errorf("one match confidence = %v, want 1/3", one.Confidence)
	}

	// Three or more matches saturate at 1.0.
	many := Error(`waiting for locator('x'): element not found, strict mode violation, selector resolved to 2 elements, not attached to the DOM`, "")
	if many.Confidence != 1.0 {
		t.Errorf("saturated confidence = %v, want 1.0", many.Confidence)
	}
}

func TestUnknownHasZeroConfidence(t *testing.T) {
	got := Error("completely novel failure mode", "")
	if got.Category != CategoryUnknown {
		t.Fatalf("category = %s", got.Category)
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", got.Confidence)
	}
	if len(got.MatchedKeywords) != 0 {
		t.Errorf("keywords = %v", got.MatchedKeywords)
	}
}

func TestTieGoesToEarlierCategory(t *testing.T) {
	// One selector detector ("locator") and one timing detector ("timeout"):
	// the tie must keep selector, the earlier table entry.
	got := Error("locator timeout", "")
	if got.Category != CategorySelector {
		t.Errorf("category = %s, want selector on tie", got.Category)
	}
}

func TestExactlyOneCategory(t *testing.T) {
	// A messy real-world error that brushes several categories still yields
	// exactly one verdict.
	got := Error(`Timeout 30000ms exceeded waiting for locator('a'); page.goto followed a redirect`, "")
	found := false
	for _, c := range Categories() {
		if c == got.Category {
			found = true
		}
	}
	if !found {
		t.Errorf("category %s not in taxonomy", got.Category)
	}
}

func TestIsHealable(t *testing.T) {
	tests := []struct {
		cat  Category
		want bool
	}{
		{CategorySelector, true},
		{CategoryTiming, true},
		{CategoryNavigation, false},
		{CategoryData, false},
		{CategoryAuth, false},
		{CategoryEnv, false},
		{CategoryScript, false},
		{CategoryUnknown, false},
	}
	for _, tt := range tests {
		if got := IsHealable(Classification{Category: tt.cat, Confidence: 1}); got != tt.want {
			t.Errorf("IsHealable(%s) = %v, want %v", tt.cat, got, tt.want)
		}
	}
}

func TestFailureStats(t *testing.T) {
	in := []Classification{
		{Category: CategorySelector},
		{Category: CategorySelector},
		{Category: CategoryAuth},
		{Category: CategoryUnknown},
	}
	stats := FailureStats(in)
	if stats[CategorySelector] != 2 || stats[CategoryAuth] != 1 || stats[CategoryUnknown] != 1 {
		t.Errorf("stats = %v", stats)
	}
	total := 0
	for _, n := range stats {
		total += n
	}
	if total != len(in) {
		t.Errorf("stats sum %d != %d classifications", total, len(in))
	}
}
