// Package patterns holds the fixed text-to-primitive rule library. Rules
// are an explicit ordered list evaluated top to bottom; the first match
// wins, so order encodes precedence (navigation before generic clicks,
// specific assertions before the catch-all visibility check).
package patterns

import (
	"regexp"
	"strings"

	"stepwright/internal/glossary"
	"stepwright/internal/ir"
	"stepwright/internal/logging"
)

// Rule pairs a matcher with an extractor that builds a complete primitive
// from the match groups.
type Rule struct {
	Name    string
	re      *regexp.Regexp
	extract func(m []string) (ir.Primitive, error)
}

// Library is the ordered fixed rule set.
type Library struct {
	rules []Rule
	gloss *glossary.Glossary
}

// NewLibrary builds the default library bound to a glossary. The glossary
// supplies label aliases and phrase-to-module mappings consumed by rules.
func NewLibrary(g *glossary.Glossary) *Library {
	l := &Library{gloss: g}
	l.rules = l.defaultRules()
	return l
}

// Match evaluates rules in order against normalized step text and returns
// the first extracted primitive. A nil extractor result (constructor error)
// is treated as no match and evaluation continues.
func (l *Library) Match(normalized string) (ir.Primitive, bool) {
	for _, r := range l.rules {
		m := r.re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		p, err := r.extract(m)
		if err != nil {
			logging.Patterns("Rule %s matched %q but extraction failed: %v", r.Name, normalized, err)
			continue
		}
		logging.Patterns("Rule %s matched %q -> %s", r.Name, normalized, p.Kind)
		return p, true
	}

	// Module phrases from the glossary act as a final full-line rule.
	if p, ok := l.matchModulePhrase(normalized); ok {
		return p, true
	}
	return ir.Primitive{}, false
}

// RuleNames returns the rule names in evaluation order.
func (l *Library) RuleNames() []string {
	names := make([]string, len(l.rules))
	for i, r := range l.rules {
		names[i] = r.Name
	}
	return names
}

func (l *Library) matchModulePhrase(normalized string) (ir.Primitive, bool) {
	phrase := strings.ToLower(strings.TrimSpace(normalized))
	for _, candidate := range []string{phrase, strings.TrimPrefix(phrase, "user ")} {
		if target, ok := l.gloss.PhraseModule(candidate); ok {
			parts := strings.SplitN(target, ".", 2)
			if len(parts) != 2 {
				continue
			}
			p, err := ir.CallModule(parts[0], parts[1])
			if err != nil {
				continue
			}
			logging.Patterns("Module phrase %q -> %s.%s", candidate, parts[0], parts[1])
			return p, true
		}
	}
	return ir.Primitive{}, false
}

// labelFor resolves a spoken label phrase through glossary label aliases,
// falling back to the phrase itself.
func (l *Library) labelFor(phrase string) string {
	if label, ok := l.gloss.LabelAlias(phrase); ok {
		return label
	}
	return phrase
}

// defaultRules is the vetted rule set. Order is load-bearing.
func (l *Library) defaultRules() []Rule {
	return []Rule{
		{
			Name: "goto",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+navigates\s+(?:to\s+)?["']([^"']+)["']$`),
			extract: func(m []string) (ir.Primitive, error) {
				return ir.Goto(m[1])
			},
		},
		{
			Name: "goto-page",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+navigates\s+(?:to\s+)?(?:the\s+)?(\S+)\s+page$`),
			extract: func(m []string) (ir.Primitive, error) {
				return ir.Goto("/" + strings.ToLower(m[1]))
			},
		},
		{
			Name: "expect-url",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?(?:user\s+sees\s+|page\s+)?url\s+(?:is|contains|matches)\s+["']([^"']+)["']$`),
			extract: func(m []string) (ir.Primitive, error) {
				return ir.ExpectURL(m[1])
			},
		},
		{
			Name: "expect-toast",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+sees\s+(?:a\s+|the\s+)?toast\s+["']([^"']+)["']$`),
			extract: func(m []string) (ir.Primitive, error) {
				return ir.ExpectToast(m[1])
			},
		},
		{
			Name: "expect-heading",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+sees\s+(?:the\s+)?(?:["']([^"']+)["']\s+heading|heading\s+["']([^"']+)["'])$`),
			extract: func(m []string) (ir.Primitive, error) {
				name := m[1]
				if name == "" {
					name = m[2]
				}
				return ir.ExpectVisible(ir.LocatorSpec{
					Strategy: ir.StrategyRole,
					Value:    "heading",
					Options:  &ir.LocatorOptions{Name: name},
				})
			},
		},
		{
			Name: "expect-control",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+sees\s+(?:the\s+)?["']([^"']+)["']\s+(button|link|checkbox|field|dropdown)$`),
			extract: func(m []string) (ir.Primitive, error) {
				return ir.ExpectVisible(controlLocator(m[2], l.labelFor(m[1])))
			},
		},
		{
			Name: "expect-text-in",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+sees\s+["']([^"']+)["']\s+in\s+(?:the\s+)?["']([^"']+)["']\s+(field|dropdown)$`),
			extract: func(m []string) (ir.Primitive, error) {
				return ir.ExpectText(controlLocator(m[3], l.labelFor(m[2])), m[1])
			},
		},
		{
			Name: "expect-visible-text",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+sees\s+["']([^"']+)["']$`),
			extract: func(m []string) (ir.Primitive, error) {
				return ir.ExpectVisible(ir.LocatorSpec{Strategy: ir.StrategyText, Value: m[1]})
			},
		},
		{
			Name: "click-control",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+clicks\s+(?:on\s+)?(?:the\s+)?["']([^"']+)["']\s+(button|link)$`),
			extract: func(m []string) (ir.Primitive, error) {
				return ir.Click(controlLocator(m[2], l.labelFor(m[1])))
			},
		},
		{
			Name: "click-generic",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+clicks\s+(?:on\s+)?(?:the\s+)?["']([^"']+)["']$`),
			extract: func(m []string) (ir.Primitive, error) {
				// Bare quoted target: assume a button, the most common
				// click target by far.
				return ir.Click(ir.LocatorSpec{
					Strategy: ir.StrategyRole,
					Value:    "button",
					Options:  &ir.LocatorOptions{Name: l.labelFor(m[1])},
				})
			},
		},
		{
			Name: "fill-into",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+fills\s+["']([^"']*)["']\s+(?:into|in)\s+(?:the\s+)?["']([^"']+)["']\s*(?:field)?$`),
			extract: func(m []string) (ir.Primitive, error) {
				return ir.Fill(
					ir.LocatorSpec{Strategy: ir.StrategyLabel, Value: l.labelFor(m[2])},
					ir.ValueSpec{Literal: m[1], Sensitive: sensitiveLabel(m[2])},
				)
			},
		},
		{
			Name: "fill-with",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+fills\s+(?:the\s+)?["']([^"']+)["']\s+(?:field\s+)?with\s+["']([^"']*)["']$`),
			extract: func(m []string) (ir.Primitive, error) {
				return ir.Fill(
					ir.LocatorSpec{Strategy: ir.StrategyLabel, Value: l.labelFor(m[1])},
					ir.ValueSpec{Literal: m[2], Sensitive: sensitiveLabel(m[1])},
				)
			},
		},
		{
			Name: "select-from",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+selects\s+["']([^"']+)["']\s+from\s+(?:the\s+)?["']([^"']+)["']\s*(?:dropdown)?$`),
			extract: func(m []string) (ir.Primitive, error) {
				return ir.Select(
					ir.LocatorSpec{Strategy: ir.StrategyLabel, Value: l.labelFor(m[2])},
					ir.ValueSpec{Literal: m[1]},
				)
			},
		},
		{
			Name: "check",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+checks\s+(?:the\s+)?["']([^"']+)["']\s*(?:checkbox)?$`),
			extract: func(m []string) (ir.Primitive, error) {
				return ir.Check(ir.LocatorSpec{Strategy: ir.StrategyLabel, Value: l.labelFor(m[1])})
			},
		},
		{
			Name: "uncheck",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+unchecks\s+(?:the\s+)?["']([^"']+)["']\s*(?:checkbox)?$`),
			extract: func(m []string) (ir.Primitive, error) {
				return ir.Uncheck(ir.LocatorSpec{Strategy: ir.StrategyLabel, Value: l.labelFor(m[1])})
			},
		},
		{
			Name: "press",
			re:   regexp.MustCompile(`(?i)^(?:the\s+)?user\s+presses\s+(?:the\s+)?["']?([a-zA-Z0-9+]+)["']?\s*(?:key)?$`),
			extract: func(m []string) (ir.Primitive, error) {
				return ir.Press(m[1])
			},
		},
	}
}

// controlLocator maps a control noun plus label to a locator.
func controlLocator(noun, label string) ir.LocatorSpec {
	switch strings.ToLower(noun) {
	case "button":
		return ir.LocatorSpec{Strategy: ir.StrategyRole, Value: "button", Options: &ir.LocatorOptions{Name: label}}
	case "link":
		return ir.LocatorSpec{Strategy: ir.StrategyRole, Value: "link", Options: &ir.LocatorOptions{Name: label}}
	case "checkbox":
		return ir.LocatorSpec{Strategy: ir.StrategyRole, Value: "checkbox", Options: &ir.LocatorOptions{Name: label}}
	case "dropdown":
		return ir.LocatorSpec{Strategy: ir.StrategyRole, Value: "combobox", Options: &ir.LocatorOptions{Name: label}}
	default: // field and anything field-like
		return ir.LocatorSpec{Strategy: ir.StrategyLabel, Value: label}
	}
}

var sensitiveLabelRe = regexp.MustCompile(`(?i)password|passphrase|secret|token|pin\b`)

func sensitiveLabel(label string) bool {
	return sensitiveLabelRe.MatchString(label)
}
