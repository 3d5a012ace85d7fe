// Package hints extracts explicit machine-readable directives embedded in
// Journey step text. A hint block is a parenthesized group of key=value
// pairs, e.g.:
//
//	(role=heading, level=2)Welcome
//	User clicks (testid=submit-btn)the submit button
//
// Hints are authored intent and always win over pattern or learned-pattern
// mapping. Malformed hints produce warnings, never hard failures.
package hints

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"stepwright/internal/ir"
	"stepwright/internal/logging"
)

// Hint is one key=value directive.
type Hint struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Severity distinguishes advisory warnings from error-level inconsistencies.
// Both are reported, neither aborts parsing or generation.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue is a reported hint problem.
type Issue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// ParseResult is the output of Parse.
type ParseResult struct {
	Hints     []Hint
	CleanText string
	Warnings  []string
}

// Extracted groups recognized hints into locator-relevant and
// behavior-relevant fields.
type Extracted struct {
	// Locator-relevant.
	Role   string
	TestID string
	Label  string
	Text   string
	Exact  bool
	Level  int

	// Behavior-relevant.
	Signal    string
	Module    string // module.method
	Wait      string
	TimeoutMs int

	Issues []Issue
}

// Recognized hint keys. Unknown keys are kept but warned about.
var knownKeys = map[string]bool{
	"role": true, "testid": true, "label": true, "text": true,
	"exact": true, "level": true,
	"signal": true, "module": true, "wait": true, "timeout": true,
}

// Fixed ARIA role vocabulary accepted by the role hint.
var validRoles = map[string]bool{
	"alert": true, "banner": true, "button": true, "cell": true,
	"checkbox": true, "combobox": true, "dialog": true, "form": true,
	"heading": true, "img": true, "link": true, "list": true,
	"listbox": true, "listitem": true, "main": true, "menu": true,
	"menuitem": true, "navigation": true, "option": true,
	"progressbar": true, "radio": true, "row": true, "searchbox": true,
	"slider": true, "spinbutton": true, "status": true, "switch": true,
	"tab": true, "table": true, "tabpanel": true, "textbox": true,
	"toolbar": true, "tooltip": true,
}

var (
	blockRe  = regexp.MustCompile(`\(([^)]*)\)`)
	pairRe   = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9_-]*)\s*=\s*(.*)$`)
	moduleRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*\.[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// Parse scans text for hint blocks and returns the hints, the text with the
// blocks removed, and any warnings. A parenthesized span only counts as a
// hint block when every comma-separated item inside it parses as key=value;
// ordinary parenthetical prose passes through untouched.
func Parse(text string) ParseResult {
	res := ParseResult{CleanText: text}

	matches := blockRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return res
	}

	var clean strings.Builder
	last := 0
	for _, m := range matches {
		inner := text[m[2]:m[3]]
		hints, ok, warns := parseBlock(inner)
		if !ok {
			continue // prose parentheses, leave in place
		}
		res.Hints = append(res.Hints, hints...)
		res.Warnings = append(res.Warnings, warns...)
		clean.WriteString(text[last:m[0]])
		last = m[1]
	}
	if last > 0 {
		clean.WriteString(text[last:])
		res.CleanText = strings.TrimSpace(collapseSpaces(clean.String()))
	}

	if len(res.Hints) > 0 {
		logging.Hints("Parsed %d hint(s) from %q (%d warnings)", len(res.Hints), text, len(res.Warnings))
	}
	return res
}

// parseBlock parses the interior of a parenthesized span. ok is false when
// the span does not look like a hint block at all.
func parseBlock(inner string) (hints []Hint, ok bool, warnings []string) {
	items := splitItems(inner)
	if len(items) == 0 {
		return nil, false, nil
	}
	for _, item := range items {
		m := pairRe.FindStringSubmatch(strings.TrimSpace(item))
		if m == nil {
			return nil, false, nil
		}
		key := strings.ToLower(m[1])
		value := unquote(strings.TrimSpace(m[2]))
		if !knownKeys[key] {
			warnings = append(warnings, fmt.Sprintf("unknown hint key %q", key))
		}
		if key == "role" && !validRoles[strings.ToLower(value)] {
			warnings = append(warnings, fmt.Sprintf("invalid ARIA role %q", value))
		}
		hints = append(hints, Hint{Key: key, Value: value})
	}
	return hints, true, warnings
}

// splitItems splits on commas that are not inside quotes.
func splitItems(s string) []string {
	var items []string
	var cur strings.Builder
	var quote rune
	for _, r := range s {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
		case r == ',':
			items = append(items, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if strings.TrimSpace(cur.String()) != "" {
		items = append(items, cur.String())
	}
	return items
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Extract groups parsed hints into structured fields and validates their
// consistency. Inconsistencies are reported in Issues, never corrected.
func Extract(hints []Hint) Extracted {
	var ex Extracted
	for _, h := range hints {
		switch h.Key {
		case "role":
			ex.Role = strings.ToLower(h.Value)
		case "testid":
			ex.TestID = h.Value
		case "label":
			ex.Label = h.Value
		case "text":
			ex.Text = h.Value
		case "exact":
			ex.Exact = h.Value == "" || strings.EqualFold(h.Value, "true")
		case "level":
			if n, err := strconv.Atoi(h.Value); err == nil {
				ex.Level = n
			} else {
				ex.Issues = append(ex.Issues, Issue{SeverityWarning,
					fmt.Sprintf("level hint %q is not a number", h.Value)})
			}
		case "signal":
			ex.Signal = h.Value
		case "module":
			ex.Module = h.Value
		case "wait":
			ex.Wait = h.Value
		case "timeout":
			if n, err := strconv.Atoi(h.Value); err == nil {
				ex.TimeoutMs = n
			} else {
				ex.Issues = append(ex.Issues, Issue{SeverityWarning,
					fmt.Sprintf("timeout hint %q is not a number", h.Value)})
			}
		}
	}

	// A label alongside a role is an accessible-name refinement, not a
	// second locator.
	locators := 0
	if ex.TestID != "" {
		locators++
	}
	if ex.Role != "" {
		locators++
	}
	if ex.Text != "" {
		locators++
	}
	if ex.Label != "" && ex.Role == "" {
		locators++
	}
	if locators > 1 {
		ex.Issues = append(ex.Issues, Issue{SeverityError,
			"more than one locator-style hint present; resolution follows testid > role > label > text"})
	}
	if ex.Level > 0 && ex.Role != "heading" {
		ex.Issues = append(ex.Issues, Issue{SeverityError,
			"level hint requires role=heading"})
	}
	if ex.Module != "" && !moduleRe.MatchString(ex.Module) {
		ex.Issues = append(ex.Issues, Issue{SeverityError,
			fmt.Sprintf("module hint %q must be module.method", ex.Module)})
	}
	return ex
}

// HasLocator reports whether any locator-relevant hint is present.
func (ex Extracted) HasLocator() bool {
	return ex.TestID != "" || ex.Role != "" || ex.Label != "" || ex.Text != ""
}

// Locator resolves the locator hints into a single LocatorSpec following
// the fixed priority testid > role(+label/exact/level) > label > text.
func (ex Extracted) Locator() (ir.LocatorSpec, bool) {
	switch {
	case ex.TestID != "":
		return ir.LocatorSpec{Strategy: ir.StrategyTestID, Value: ex.TestID}, true
	case ex.Role != "":
		var opts *ir.LocatorOptions
		if ex.Label != "" || ex.Exact || ex.Level > 0 {
			opts = &ir.LocatorOptions{Name: ex.Label, Exact: ex.Exact, Level: ex.Level}
		}
		return ir.LocatorSpec{Strategy: ir.StrategyRole, Value: ex.Role, Options: opts}, true
	case ex.Label != "":
		var opts *ir.LocatorOptions
		if ex.Exact {
			opts = &ir.LocatorOptions{Exact: true}
		}
		return ir.LocatorSpec{Strategy: ir.StrategyLabel, Value: ex.Label, Options: opts}, true
	case ex.Text != "":
		var opts *ir.LocatorOptions
		if ex.Exact {
			opts = &ir.LocatorOptions{Exact: true}
		}
		return ir.LocatorSpec{Strategy: ir.StrategyText, Value: ex.Text, Options: opts}, true
	}
	return ir.LocatorSpec{}, false
}
