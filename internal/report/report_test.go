package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepwright/internal/classify"
	"stepwright/internal/healing"
)

func session(id, journeyID string, status healing.SessionStatus, attempts ...healing.Attempt) *healing.Session {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ended := started.Add(time.Minute)
	return &healing.Session{
		ID:          id,
		JourneyID:   journeyID,
		StartedAt:   started,
		EndedAt:     &ended,
		MaxAttempts: 3,
		Status:      status,
		Attempts:    attempts,
	}
}

func attempt(n int, fix healing.FixType, cat classify.Category, result healing.AttemptResult) healing.Attempt {
	return healing.Attempt{
		Attempt:     n,
		Timestamp:   time.Date(2026, 3, 1, 12, 0, n, 0, time.UTC),
		FailureType: cat,
		FixType:     fix,
		Result:      result,
		DurationMs:  1000,
	}
}

func sampleSessions() []*healing.Session {
	return []*healing.Session{
		session("s-1", "checkout", healing.StatusHealed,
			attempt(1, healing.FixLocatorSwap, classify.CategorySelector, healing.ResultPass)),
		session("s-2", "login", healing.StatusExhausted,
			attempt(1, healing.FixLocatorSwap, classify.CategorySelector, healing.ResultFail),
			attempt(2, healing.FixLearnedSubstitution, classify.CategorySelector, healing.ResultFail)),
		session("s-3", "search", healing.StatusFailed),
		session("s-4", "profile", healing.StatusHealed,
			attempt(1, healing.FixWaitForSignal, classify.CategoryTiming, healing.ResultPass)),
	}
}

func TestAggregateTotals(t *testing.T) {
	got := Aggregate(sampleSessions())

	assert.Equal(t, 4, got.Sessions)
	assert.Equal(t, 2, got.Healed)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 1, got.Exhausted)
	assert.Equal(t, 4, got.Attempts)
}

func TestAggregateRanking(t *testing.T) {
	got := Aggregate(sampleSessions())

	require.Len(t, got.TopFixes, 3)
	assert.Equal(t, CountEntry{Name: string(healing.FixLocatorSwap), Count: 2}, got.TopFixes[0])
	// Equal counts rank by name.
	assert.Equal(t, string(healing.FixLearnedSubstitution), got.TopFixes[1].Name)
	assert.Equal(t, string(healing.FixWaitForSignal), got.TopFixes[2].Name)

	require.Len(t, got.TopCategories, 2)
	assert.Equal(t, CountEntry{Name: string(classify.CategorySelector), Count: 3}, got.TopCategories[0])
	assert.Equal(t, CountEntry{Name: string(classify.CategoryTiming), Count: 1}, got.TopCategories[1])
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil)
	assert.Equal(t, Totals{Sessions: 0, TopFixes: []CountEntry{}, TopCategories: []CountEntry{}}, got)
}
