// Package glossary provides canonical-term resolution and step-text
// normalization. The mapper normalizes every step line before pattern and
// learned-pattern lookup so that synonym choice ("taps" vs "clicks") does
// not fragment the learned store.
package glossary

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"stepwright/internal/logging"
)

// Entry maps a canonical term to its accepted synonyms.
type Entry struct {
	Canonical string   `yaml:"canonical"`
	Synonyms  []string `yaml:"synonyms"`
}

// File is the on-disk shape of a user glossary.
type File struct {
	Terms []Entry `yaml:"terms"`
	// Labels maps a spoken label phrase to the exact UI label text.
	Labels map[string]string `yaml:"labels"`
	// Modules maps a step phrase to a module.method call target.
	Modules map[string]string `yaml:"modules"`
}

// Glossary resolves terms and normalizes step text. Entry order matters:
// the first entry claiming a synonym wins.
type Glossary struct {
	entries []Entry
	// canon maps lowercase synonym (and canonical) to canonical form,
	// first claim wins.
	canon map[string]string

	labelAliases  map[string]string // lowercase phrase -> label text
	phraseModules map[string]string // lowercase phrase -> module.method
}

// New builds a glossary from ordered entries plus alias/module maps.
func New(entries []Entry, labels, modules map[string]string) *Glossary {
	g := &Glossary{
		entries:       entries,
		canon:         make(map[string]string),
		labelAliases:  make(map[string]string),
		phraseModules: make(map[string]string),
	}
	for _, e := range entries {
		key := strings.ToLower(e.Canonical)
		if _, taken := g.canon[key]; !taken {
			g.canon[key] = e.Canonical
		}
		for _, syn := range e.Synonyms {
			sk := strings.ToLower(syn)
			if _, taken := g.canon[sk]; !taken {
				g.canon[sk] = e.Canonical
			}
		}
	}
	for k, v := range labels {
		g.labelAliases[strings.ToLower(k)] = v
	}
	for k, v := range modules {
		g.phraseModules[strings.ToLower(k)] = v
	}
	return g
}

// Default returns the built-in glossary.
func Default() *Glossary {
	return New(defaultEntries, defaultLabels, defaultModules)
}

// ResolveCanonical maps a lowercase term to its canonical form. Unknown
// terms pass through unchanged.
func (g *Glossary) ResolveCanonical(term string) string {
	if c, ok := g.canon[strings.ToLower(term)]; ok {
		return c
	}
	return term
}

// LabelAlias returns the exact UI label for a phrase, if one is registered.
func (g *Glossary) LabelAlias(phrase string) (string, bool) {
	v, ok := g.labelAliases[strings.ToLower(phrase)]
	return v, ok
}

// PhraseModule returns the module.method target for a phrase, if registered.
func (g *Glossary) PhraseModule(phrase string) (string, bool) {
	v, ok := g.phraseModules[strings.ToLower(phrase)]
	return v, ok
}

// NormalizeStepText tokenizes on whitespace, leaving single- or
// double-quoted spans verbatim, and replaces every unquoted token with its
// canonical form when one exists. Whitespace runs collapse to single spaces.
func (g *Glossary) NormalizeStepText(text string) string {
	var out []string
	runes := []rune(text)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t':
			i++
		case r == '"' || r == '\'':
			// Quoted span: copied verbatim, including the quotes. An
			// unterminated quote runs to end of line.
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j < len(runes) {
				j++ // include closing quote
			}
			out = append(out, string(runes[i:j]))
			i = j
		default:
			j := i
			for j < len(runes) && runes[j] != ' ' && runes[j] != '\t' &&
				runes[j] != '"' && runes[j] != '\'' {
				j++
			}
			out = append(out, g.ResolveCanonical(string(runes[i:j])))
			i = j
		}
	}
	return strings.Join(out, " ")
}

// Merge layers a user glossary over this one and returns the result.
// Matching canonical entries have their synonym sets unioned; new entries
// are appended after the built-ins. Label and module maps merge by exact
// case-insensitive key with the user's value winning.
func (g *Glossary) Merge(user File) *Glossary {
	merged := make([]Entry, 0, len(g.entries)+len(user.Terms))
	byCanon := make(map[string]int)
	for _, e := range g.entries {
		byCanon[strings.ToLower(e.Canonical)] = len(merged)
		merged = append(merged, Entry{Canonical: e.Canonical, Synonyms: append([]string(nil), e.Synonyms...)})
	}
	for _, ue := range user.Terms {
		if idx, ok := byCanon[strings.ToLower(ue.Canonical)]; ok {
			merged[idx].Synonyms = unionSynonyms(merged[idx].Synonyms, ue.Synonyms)
			continue
		}
		byCanon[strings.ToLower(ue.Canonical)] = len(merged)
		merged = append(merged, ue)
	}

	labels := make(map[string]string, len(g.labelAliases)+len(user.Labels))
	for k, v := range g.labelAliases {
		labels[k] = v
	}
	for k, v := range user.Labels {
		labels[strings.ToLower(k)] = v
	}
	modules := make(map[string]string, len(g.phraseModules)+len(user.Modules))
	for k, v := range g.phraseModules {
		modules[k] = v
	}
	for k, v := range user.Modules {
		modules[strings.ToLower(k)] = v
	}
	return New(merged, labels, modules)
}

func unionSynonyms(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range extra {
		if !seen[strings.ToLower(s)] {
			seen[strings.ToLower(s)] = true
			base = append(base, s)
		}
	}
	return base
}

// LoadUserFile reads a user glossary from a YAML file.
func LoadUserFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read glossary: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse glossary %s: %w", path, err)
	}
	logging.Glossary("Loaded user glossary: %s (%d terms, %d labels, %d modules)",
		path, len(f.Terms), len(f.Labels), len(f.Modules))
	return f, nil
}
