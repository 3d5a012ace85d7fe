// Package journey carries Journey identity and step text into the mapper.
// Document authoring conventions beyond the front-matter block and the
// Steps section are out of scope here; richer parsing lives with the
// authoring tooling.
package journey

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Journey is one human-authored flow specification.
type Journey struct {
	ID      string   `yaml:"id"`
	Title   string   `yaml:"title"`
	Modules []string `yaml:"modules"`
	Tags    []string `yaml:"tags"`
	BaseURL string   `yaml:"baseUrl"`
	Steps   []string `yaml:"-"`
	Path    string   `yaml:"-"`
}

var stepLineRe = regexp.MustCompile(`^(?:[-*]|\d+[.)])\s+(.*\S)\s*$`)

// Load reads a journey file: a YAML front-matter block between --- fences
// followed by markdown with step lines ("- ..." or "1. ...") under a
// "## Steps" heading. Files without a Steps heading treat every list line
// as a step.
func Load(path string) (*Journey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read journey: %w", err)
	}

	front, body := splitFrontMatter(string(data))
	var j Journey
	if front != "" {
		if err := yaml.Unmarshal([]byte(front), &j); err != nil {
			return nil, fmt.Errorf("parse journey front matter %s: %w", path, err)
		}
	}
	if j.ID == "" {
		j.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	j.Path = path
	j.Steps = extractSteps(body)
	if len(j.Steps) == 0 {
		return nil, fmt.Errorf("journey %s has no steps", path)
	}
	return &j, nil
}

// LoadDir loads every .md and .journey file under dir. Per-file errors are
// collected, not fatal: one broken journey must not block the rest.
func LoadDir(dir string) ([]*Journey, []error) {
	var journeys []*Journey
	var errs []error

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read journeys dir: %w", err)}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".md" && ext != ".journey" {
			continue
		}
		j, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		journeys = append(journeys, j)
	}
	sort.Slice(journeys, func(i, k int) bool { return journeys[i].ID < journeys[k].ID })
	return journeys, errs
}

func splitFrontMatter(doc string) (front, body string) {
	trimmed := strings.TrimLeft(doc, "\ufeff\n\r ")
	if !strings.HasPrefix(trimmed, "---") {
		return "", doc
	}
	rest := trimmed[3:]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return "", doc
	}
	front = rest[:idx]
	body = rest[idx+4:]
	return front, body
}

func extractSteps(body string) []string {
	var steps []string
	inSteps := !strings.Contains(body, "## Steps")

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "## ") {
			inSteps = strings.EqualFold(strings.TrimSpace(line[3:]), "steps")
			continue
		}
		if !inSteps {
			continue
		}
		if m := stepLineRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			steps = append(steps, m[1])
		}
	}
	return steps
}
