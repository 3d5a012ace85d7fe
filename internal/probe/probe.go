// Package probe checks locator candidates against a live page with a
// headless browser. It is an optional aid to the selector healing path:
// healing works without it, but with it the locator-swap fix only proposes
// selectors that actually resolve.
package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"stepwright/internal/ir"
	"stepwright/internal/logging"
)

// Prober holds one browser for the lifetime of a healing session.
type Prober struct {
	browser  *rod.Browser
	launched *launcher.Launcher // nil when attached to an external browser
	timeout  time.Duration
}

// New connects to a browser. With an empty controlURL a headless instance
// is launched and owned by the prober.
func New(controlURL string, timeout time.Duration) (*Prober, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &Prober{timeout: timeout}

	if controlURL == "" {
		l := launcher.New().Headless(true)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		p.launched = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if p.launched != nil {
			p.launched.Cleanup()
		}
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	p.browser = browser
	logging.Probe("Prober connected (timeout=%s)", timeout)
	return p, nil
}

// Close disconnects and, when the prober launched the browser, kills it.
func (p *Prober) Close() error {
	err := p.browser.Close()
	if p.launched != nil {
		p.launched.Cleanup()
	}
	return err
}

// Resolves reports whether the locator finds at least one element on the
// page at pageURL.
func (p *Prober) Resolves(ctx context.Context, loc ir.LocatorSpec, pageURL string) (bool, error) {
	page, err := p.browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return false, fmt.Errorf("open page %s: %w", pageURL, err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(p.timeout)
	if err := page.WaitLoad(); err != nil {
		return false, fmt.Errorf("load page %s: %w", pageURL, err)
	}

	css, xpath := selectorFor(loc)
	var found bool
	if xpath != "" {
		found, _, err = page.HasX(xpath)
	} else {
		found, _, err = page.Has(css)
	}
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", loc, err)
	}
	logging.Probe("Probe %s on %s: found=%v", loc, pageURL, found)
	return found, nil
}

// selectorFor maps a locator spec to a CSS selector or an XPath expression.
// Role mapping is approximate: implicit roles for the common elements, the
// role attribute for the rest.
func selectorFor(loc ir.LocatorSpec) (css, xpath string) {
	switch loc.Strategy {
	case ir.StrategyTestID:
		return fmt.Sprintf(`[data-testid=%q]`, loc.Value), ""
	case ir.StrategyPlaceholder:
		return fmt.Sprintf(`[placeholder=%q]`, loc.Value), ""
	case ir.StrategyCSS:
		return loc.Value, ""
	case ir.StrategyText:
		return "", fmt.Sprintf(`//*[contains(normalize-space(.), %s)]`, xpathString(loc.Value))
	case ir.StrategyLabel:
		return "", fmt.Sprintf(`//label[contains(normalize-space(.), %s)]`, xpathString(loc.Value))
	case ir.StrategyRole:
		name := ""
		if loc.Options != nil {
			name = loc.Options.Name
		}
		return "", roleXPath(loc.Value, name)
	}
	return loc.Value, ""
}

var implicitRoleTags = map[string]string{
	"button":   "button",
	"link":     "a",
	"textbox":  "input",
	"checkbox": "input",
	"combobox": "select",
	"heading":  "h1 | //h2 | //h3 | //h4 | //h5 | //h6",
	"list":     "ul",
	"img":      "img",
}

func roleXPath(role, name string) string {
	cond := ""
	if name != "" {
		cond = fmt.Sprintf(`[contains(normalize-space(.), %s)]`, xpathString(name))
	}
	if tag, ok := implicitRoleTags[role]; ok {
		return fmt.Sprintf(`//%s%s | //*[@role=%s]%s`, tag, cond, xpathString(role), cond)
	}
	return fmt.Sprintf(`//*[@role=%s]%s`, xpathString(role), cond)
}

// xpathString quotes a literal for XPath 1.0, which has no escape syntax.
func xpathString(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	for i, p := range parts {
		parts[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(parts, `, "'", `) + ")"
}
