package probe

import (
	"strings"
	"testing"

	"stepwright/internal/ir"
)

func TestXPathString(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Save", "'Save'"},
		{"Don't save", `"Don't save"`},
		{`say "hi"`, `'say "hi"'`},
		{`Don't say "hi"`, `concat('Don', "'", 't say "hi"')`},
	}
	for _, tt := range tests {
		if got := xpathString(tt.in); got != tt.want {
			t.Errorf("xpathString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSelectorFor(t *testing.T) {
	tests := []struct {
		loc       ir.LocatorSpec
		wantCSS   string
		wantXPath string
	}{
		{ir.LocatorSpec{Strategy: ir.StrategyTestID, Value: "submit-btn"}, `[data-testid="submit-btn"]`, ""},
		{ir.LocatorSpec{Strategy: ir.StrategyPlaceholder, Value: "Email"}, `[placeholder="Email"]`, ""},
		{ir.LocatorSpec{Strategy: ir.StrategyCSS, Value: "#login"}, "#login", ""},
		{ir.LocatorSpec{Strategy: ir.StrategyText, Value: "Pay now"}, "", `//*[contains(normalize-space(.), 'Pay now')]`},
		{ir.LocatorSpec{Strategy: ir.StrategyLabel, Value: "Password"}, "", `//label[contains(normalize-space(.), 'Password')]`},
	}
	for _, tt := range tests {
		css, xpath := selectorFor(tt.loc)
		if css != tt.wantCSS || xpath != tt.wantXPath {
			t.Errorf("selectorFor(%+v) = (%q, %q), want (%q, %q)", tt.loc, css, xpath, tt.wantCSS, tt.wantXPath)
		}
	}
}

func TestRoleXPathImplicitTags(t *testing.T) {
	got := roleXPath("button", "Save")
	for _, want := range []string{"//button", `@role='button'`, "'Save'"} {
		if !strings.Contains(got, want) {
			t.Errorf("roleXPath(button, Save) = %s, missing %s", got, want)
		}
	}

	// Roles without an implicit tag match the role attribute only.
	got = roleXPath("tabpanel", "")
	if got != `//*[@role='tabpanel']` {
		t.Errorf("roleXPath(tabpanel) = %s", got)
	}
}

func TestRoleXPathHeadingSpansLevels(t *testing.T) {
	got := roleXPath("heading", "Welcome")
	for _, want := range []string{"//h1", "//h2", "//h6", "'Welcome'"} {
		if !strings.Contains(got, want) {
			t.Errorf("heading xpath missing %s: %s", want, got)
		}
	}
}
