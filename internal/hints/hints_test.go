package hints

import (
	"testing"

	"stepwright/internal/ir"
)

func TestParseSingleBlock(t *testing.T) {
	res := Parse("User clicks (testid=submit-btn)the submit button")
	if len(res.Hints) != 1 {
		t.Fatalf("hints = %+v", res.Hints)
	}
	if res.Hints[0].Key != "testid" || res.Hints[0].Value != "submit-btn" {
		t.Errorf("hint = %+v", res.Hints[0])
	}
	if res.CleanText != "User clicks the submit button" {
		t.Errorf("CleanText = %q", res.CleanText)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestParseMultiPairBlock(t *testing.T) {
	res := Parse("(role=heading, level=2)Welcome")
	if len(res.Hints) != 2 {
		t.Fatalf("hints = %+v", res.Hints)
	}
	if res.CleanText != "Welcome" {
		t.Errorf("CleanText = %q", res.CleanText)
	}
}

func TestParseProseParenthesesLeftAlone(t *testing.T) {
	tests := []string{
		"User clicks the button (the big one)",
		"User waits (about 2 seconds) for the page",
		"User opens settings (advanced, hidden by default)",
	}
	for _, in := range tests {
		res := Parse(in)
		if len(res.Hints) != 0 {
			t.Errorf("Parse(%q) produced hints %+v from prose", in, res.Hints)
		}
		if res.CleanText != in {
			t.Errorf("Parse(%q) altered clean text to %q", in, res.CleanText)
		}
	}
}

func TestParseMixedBlockAndProse(t *testing.T) {
	res := Parse("User clicks (testid=go)the button (the green one)")
	if len(res.Hints) != 1 {
		t.Fatalf("hints = %+v", res.Hints)
	}
	if res.CleanText != "User clicks the button (the green one)" {
		t.Errorf("CleanText = %q", res.CleanText)
	}
}

func TestParseQuotedCommaInValue(t *testing.T) {
	res := Parse(`(label="Name, Full", exact)ignored`)
	// exact with no value is not key=value, so this whole span is prose.
	if len(res.Hints) != 0 {
		t.Fatalf("hints = %+v", res.Hints)
	}

	res = Parse(`(label="Name, Full", exact=true)x`)
	if len(res.Hints) != 2 {
		t.Fatalf("hints = %+v", res.Hints)
	}
	if res.Hints[0].Value != "Name, Full" {
		t.Errorf("quoted value = %q", res.Hints[0].Value)
	}
}

func TestParseWarnsOnUnknownKeyAndBadRole(t *testing.T) {
	res := Parse("(frobnicate=yes)step")
	if len(res.Hints) != 1 || len(res.Warnings) != 1 {
		t.Fatalf("hints=%+v warnings=%v", res.Hints, res.Warnings)
	}

	res = Parse("(role=clickable)step")
	if len(res.Warnings) != 1 {
		t.Errorf("warnings = %v, want invalid-role warning", res.Warnings)
	}
}

func TestExtractValidation(t *testing.T) {
	tests := []struct {
		name       string
		hints      []Hint
		wantErrors int
	}{
		{
			name:       "two locators is an error",
			hints:      []Hint{{"testid", "a"}, {"text", "b"}},
			wantErrors: 1,
		},
		{
			name:       "label with role is a refinement, not a second locator",
			hints:      []Hint{{"role", "button"}, {"label", "Save"}},
			wantErrors: 0,
		},
		{
			name:       "level without heading role",
			hints:      []Hint{{"role", "button"}, {"level", "2"}},
			wantErrors: 1,
		},
		{
			name:       "level with heading role",
			hints:      []Hint{{"role", "heading"}, {"level", "2"}},
			wantErrors: 0,
		},
		{
			name:       "malformed module",
			hints:      []Hint{{"module", "authlogin"}},
			wantErrors: 1,
		},
		{
			name:       "well-formed module",
			hints:      []Hint{{"module", "auth.login"}},
			wantErrors: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := Extract(tt.hints)
			errs := 0
			for _, i := range ex.Issues {
				if i.Severity == SeverityError {
					errs++
				}
			}
			if errs != tt.wantErrors {
				t.Errorf("errors = %d (%+v), want %d", errs, ex.Issues, tt.wantErrors)
			}
		})
	}
}

func TestLocatorPriority(t *testing.T) {
	ex := Extract([]Hint{{"testid", "go"}, {"role", "button"}, {"text", "Go"}})
	loc, ok := ex.Locator()
	if !ok {
		t.Fatal("expected a locator")
	}
	if loc.Strategy != ir.StrategyTestID || loc.Value != "go" {
		t.Errorf("locator = %+v, testid must win", loc)
	}
}

func TestLocatorRoleWithRefinements(t *testing.T) {
	ex := Extract([]Hint{{"role", "heading"}, {"label", "Welcome"}, {"level", "2"}, {"exact", "true"}})
	loc, ok := ex.Locator()
	if !ok {
		t.Fatal("expected a locator")
	}
	if loc.Strategy != ir.StrategyRole || loc.Value != "heading" {
		t.Fatalf("locator = %+v", loc)
	}
	if loc.Options == nil || loc.Options.Name != "Welcome" || loc.Options.Level != 2 || !loc.Options.Exact {
		t.Errorf("options = %+v", loc.Options)
	}
}

func TestExtractBehaviorHints(t *testing.T) {
	ex := Extract([]Hint{
		{"signal", "networkidle"},
		{"module", "auth.login"},
		{"wait", "toast"},
		{"timeout", "45000"},
	})
	if ex.Signal != "networkidle" || ex.Module != "auth.login" || ex.Wait != "toast" || ex.TimeoutMs != 45000 {
		t.Errorf("extracted = %+v", ex)
	}
	if ex.HasLocator() {
		t.Error("behavior hints must not count as locators")
	}
}

func TestExtractNonNumericLevelWarns(t *testing.T) {
	ex := Extract([]Hint{{"role", "heading"}, {"level", "two"}})
	if len(ex.Issues) != 1 || ex.Issues[0].Severity != SeverityWarning {
		t.Errorf("issues = %+v", ex.Issues)
	}
	if ex.Level != 0 {
		t.Errorf("level = %d, want 0", ex.Level)
	}
}
