// Package report aggregates healing session logs across journeys into
// suite-level totals, optionally persisting them in a SQLite index so
// repeated stats runs don't re-parse every log document.
package report

import (
	"sort"

	"stepwright/internal/healing"
)

// CountEntry is one name/count pair in a ranked list.
type CountEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Totals summarizes healing activity across journeys.
type Totals struct {
	Sessions      int          `json:"sessions"`
	Healed        int          `json:"healed"`
	Failed        int          `json:"failed"`
	Exhausted     int          `json:"exhausted"`
	Attempts      int          `json:"attempts"`
	TopFixes      []CountEntry `json:"topFixes"`
	TopCategories []CountEntry `json:"topCategories"`
}

// Aggregate computes totals from session documents.
func Aggregate(sessions []*healing.Session) Totals {
	t := Totals{Sessions: len(sessions)}
	fixes := make(map[string]int)
	categories := make(map[string]int)

	for _, s := range sessions {
		switch s.Status {
		case healing.StatusHealed:
			t.Healed++
		case healing.StatusFailed:
			t.Failed++
		case healing.StatusExhausted:
			t.Exhausted++
		}
		t.Attempts += len(s.Attempts)
		for _, a := range s.Attempts {
			fixes[string(a.FixType)]++
			categories[string(a.FailureType)]++
		}
	}

	t.TopFixes = ranked(fixes)
	t.TopCategories = ranked(categories)
	return t
}

func ranked(counts map[string]int) []CountEntry {
	out := make([]CountEntry, 0, len(counts))
	for name, count := range counts {
		out = append(out, CountEntry{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
