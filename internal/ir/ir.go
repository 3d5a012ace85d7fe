// Package ir defines the intermediate representation for browser-test
// actions and assertions. A Journey step maps to exactly one Primitive;
// a Primitive is the unit consumed by code emission and by healing.
package ir

import (
	"fmt"
	"strings"
)

// =============================================================================
// LOCATORS
// =============================================================================

// LocatorStrategy identifies how an element is located on the page.
type LocatorStrategy string

const (
	StrategyRole        LocatorStrategy = "role"
	StrategyLabel       LocatorStrategy = "label"
	StrategyPlaceholder LocatorStrategy = "placeholder"
	StrategyText        LocatorStrategy = "text"
	StrategyTestID      LocatorStrategy = "testid"
	StrategyCSS         LocatorStrategy = "css"
)

// LocatorOptions carries strategy-specific refinements. Which fields are
// meaningful depends on the strategy: Name/Exact/Level only apply to role
// locators, Exact also applies to text and label locators.
type LocatorOptions struct {
	Name  string `json:"name,omitempty"`
	Exact bool   `json:"exact,omitempty"`
	Level int    `json:"level,omitempty"`
}

// LocatorSpec describes one way to find a target element.
type LocatorSpec struct {
	Strategy LocatorStrategy `json:"strategy"`
	Value    string          `json:"value"`
	Options  *LocatorOptions `json:"options,omitempty"`
}

// Validate reports whether the spec is structurally usable.
func (l LocatorSpec) Validate() error {
	if l.Value == "" {
		return fmt.Errorf("locator value must be non-empty (strategy=%s)", l.Strategy)
	}
	switch l.Strategy {
	case StrategyRole, StrategyLabel, StrategyPlaceholder, StrategyText, StrategyTestID, StrategyCSS:
		return nil
	default:
		return fmt.Errorf("unknown locator strategy %q", l.Strategy)
	}
}

// String renders a compact human-readable form used in diagnostics and logs.
func (l LocatorSpec) String() string {
	var b strings.Builder
	b.WriteString(string(l.Strategy))
	b.WriteString("=")
	b.WriteString(l.Value)
	if o := l.Options; o != nil {
		if o.Name != "" {
			fmt.Fprintf(&b, " name=%q", o.Name)
		}
		if o.Exact {
			b.WriteString(" exact")
		}
		if o.Level > 0 {
			fmt.Fprintf(&b, " level=%d", o.Level)
		}
	}
	return b.String()
}

// ValueSpec carries the value side of a fill/select action. Sensitive values
// are masked in logs and healing evidence but emitted verbatim.
type ValueSpec struct {
	Literal   string `json:"literal"`
	Sensitive bool   `json:"sensitive,omitempty"`
}

// Display returns the loggable form of the value.
func (v ValueSpec) Display() string {
	if v.Sensitive {
		return "••••••"
	}
	return v.Literal
}

// =============================================================================
// PRIMITIVES
// =============================================================================

// Kind enumerates the primitive variants.
type Kind string

const (
	KindGoto          Kind = "goto"
	KindClick         Kind = "click"
	KindFill          Kind = "fill"
	KindSelect        Kind = "select"
	KindCheck         Kind = "check"
	KindUncheck       Kind = "uncheck"
	KindPress         Kind = "press"
	KindExpectVisible Kind = "expectVisible"
	KindExpectText    Kind = "expectText"
	KindExpectURL     Kind = "expectURL"
	KindExpectToast   Kind = "expectToast"
	KindCallModule    Kind = "callModule"
	KindBlocked       Kind = "blocked"
)

// Primitive is a tagged variant over action/assertion kinds. Only the fields
// meaningful to the Kind are set; the constructors below are the supported
// way to build one, and enforce completeness.
type Primitive struct {
	Kind Kind `json:"kind"`

	Locator *LocatorSpec `json:"locator,omitempty"`
	Value   *ValueSpec   `json:"value,omitempty"`
	URL     string       `json:"url,omitempty"`
	Key     string       `json:"key,omitempty"`
	Text    string       `json:"text,omitempty"`

	// callModule fields.
	Module string   `json:"module,omitempty"`
	Method string   `json:"method,omitempty"`
	Args   []string `json:"args,omitempty"`

	// blocked fields. A blocked primitive is never executable; it records
	// why a step could not be mapped so the rest of the Journey can still
	// produce output.
	Reason     string `json:"reason,omitempty"`
	SourceText string `json:"sourceText,omitempty"`
}

// IsAssertion reports whether the primitive asserts rather than acts.
func (p Primitive) IsAssertion() bool {
	switch p.Kind {
	case KindExpectVisible, KindExpectText, KindExpectURL, KindExpectToast:
		return true
	}
	return false
}

// IsExecutable reports whether the primitive can be emitted as test code.
func (p Primitive) IsExecutable() bool {
	return p.Kind != KindBlocked
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================
// An incomplete primitive indicates a defect in the caller, so constructors
// fail loudly instead of degrading.

func Goto(url string) (Primitive, error) {
	if url == "" {
		return Primitive{}, fmt.Errorf("goto requires a URL")
	}
	return Primitive{Kind: KindGoto, URL: url}, nil
}

func Click(loc LocatorSpec) (Primitive, error) {
	if err := loc.Validate(); err != nil {
		return Primitive{}, fmt.Errorf("click: %w", err)
	}
	return Primitive{Kind: KindClick, Locator: &loc}, nil
}

func Fill(loc LocatorSpec, val ValueSpec) (Primitive, error) {
	if err := loc.Validate(); err != nil {
		return Primitive{}, fmt.Errorf("fill: %w", err)
	}
	return Primitive{Kind: KindFill, Locator: &loc, Value: &val}, nil
}

func Select(loc LocatorSpec, val ValueSpec) (Primitive, error) {
	if err := loc.Validate(); err != nil {
		return Primitive{}, fmt.Errorf("select: %w", err)
	}
	return Primitive{Kind: KindSelect, Locator: &loc, Value: &val}, nil
}

func Check(loc LocatorSpec) (Primitive, error) {
	if err := loc.Validate(); err != nil {
		return Primitive{}, fmt.Errorf("check: %w", err)
	}
	return Primitive{Kind: KindCheck, Locator: &loc}, nil
}

func Uncheck(loc LocatorSpec) (Primitive, error) {
	if err := loc.Validate(); err != nil {
		return Primitive{}, fmt.Errorf("uncheck: %w", err)
	}
	return Primitive{Kind: KindUncheck, Locator: &loc}, nil
}

func Press(key string) (Primitive, error) {
	if key == "" {
		return Primitive{}, fmt.Errorf("press requires a key")
	}
	return Primitive{Kind: KindPress, Key: key}, nil
}

func ExpectVisible(loc LocatorSpec) (Primitive, error) {
	if err := loc.Validate(); err != nil {
		return Primitive{}, fmt.Errorf("expectVisible: %w", err)
	}
	return Primitive{Kind: KindExpectVisible, Locator: &loc}, nil
}

func ExpectText(loc LocatorSpec, text string) (Primitive, error) {
	if err := loc.Validate(); err != nil {
		return Primitive{}, fmt.Errorf("expectText: %w", err)
	}
	if text == "" {
		return Primitive{}, fmt.Errorf("expectText requires expected text")
	}
	return Primitive{Kind: KindExpectText, Locator: &loc, Text: text}, nil
}

func ExpectURL(url string) (Primitive, error) {
	if url == "" {
		return Primitive{}, fmt.Errorf("expectURL requires a URL or pattern")
	}
	return Primitive{Kind: KindExpectURL, URL: url}, nil
}

func ExpectToast(text string) (Primitive, error) {
	if text == "" {
		return Primitive{}, fmt.Errorf("expectToast requires toast text")
	}
	return Primitive{Kind: KindExpectToast, Text: text}, nil
}

func CallModule(module, method string, args ...string) (Primitive, error) {
	if module == "" || method == "" {
		return Primitive{}, fmt.Errorf("callModule requires module and method (got %q.%q)", module, method)
	}
	return Primitive{Kind: KindCallModule, Module: module, Method: method, Args: args}, nil
}

// Blocked builds the non-executable marker for a step that could not be
// mapped. Unlike the other constructors it cannot fail: a miss must always
// be representable.
func Blocked(reason, sourceText string) Primitive {
	if reason == "" {
		reason = "no mapping found"
	}
	return Primitive{Kind: KindBlocked, Reason: reason, SourceText: sourceText}
}
