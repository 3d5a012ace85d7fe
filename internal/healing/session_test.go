package healing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepwright/internal/runner"
)

// fakeFixer scripts per-fix outcomes.
type fakeFixer struct {
	outcomes map[FixType]FixOutcome
	errs     map[FixType]error
	applied  []FixType
}

func (f *fakeFixer) Apply(ctx context.Context, fix FixType, req FixRequest) (FixOutcome, error) {
	f.applied = append(f.applied, fix)
	if err := f.errs[fix]; err != nil {
		return FixOutcome{}, err
	}
	return f.outcomes[fix], nil
}

// fakeInvoker returns scripted run results in sequence, repeating the last.
type fakeInvoker struct {
	results []runner.RunResult
	calls   int
}

func (f *fakeInvoker) Run(ctx context.Context, testFile string, opts runner.Options) (runner.RunResult, error) {
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i], nil
}

// fakeRecorder captures write-backs.
type fakeRecorder struct {
	patternIDs []string
	journeyIDs []string
}

func (f *fakeRecorder) RecordSuccess(patternID, journeyID string) error {
	f.patternIDs = append(f.patternIDs, patternID)
	f.journeyIDs = append(f.journeyIDs, journeyID)
	return nil
}

// memLog captures every persisted snapshot.
type memLog struct {
	snapshots []Session
}

func (m *memLog) Persist(s *Session) error {
	cp := *s
	cp.Attempts = append([]Attempt(nil), s.Attempts...)
	m.snapshots = append(m.snapshots, cp)
	return nil
}

const selectorError = `waiting for locator('#old-btn'): element is not visible`

func TestHealFirstAttemptSucceeds(t *testing.T) {
	fixer := &fakeFixer{outcomes: map[FixType]FixOutcome{
		FixLocatorSwap: {File: "t.spec.ts", Change: "swapped"},
	}}
	invoker := &fakeInvoker{results: []runner.RunResult{{Success: true}}}
	log := &memLog{}

	ctrl := NewController(DefaultConfig(), fixer, invoker, nil, log, runner.Options{})
	s, err := ctrl.Heal(context.Background(), "j-1", "t.spec.ts", "", selectorError)
	require.NoError(t, err)

	assert.Equal(t, StatusHealed, s.Status)
	require.Len(t, s.Attempts, 1)
	assert.Equal(t, 1, s.Attempts[0].Attempt)
	assert.Equal(t, ResultPass, s.Attempts[0].Result)
	assert.NotNil(t, s.EndedAt)
}

func TestHealExhaustsBudget(t *testing.T) {
	fixer := &fakeFixer{outcomes: map[FixType]FixOutcome{
		FixLocatorSwap:         {Change: "swap"},
		FixLearnedSubstitution: {Change: "sub"},
	}}
	// Every rerun keeps failing with the same selector error.
	invoker := &fakeInvoker{results: []runner.RunResult{
		{Success: false, Stderr: selectorError},
	}}
	cfg := DefaultConfig()
	cfg.MaxAttempts = 2

	ctrl := NewController(cfg, fixer, invoker, nil, nil, runner.Options{})
	s, err := ctrl.Heal(context.Background(), "j-1", "t.spec.ts", "", selectorError)
	require.NoError(t, err)

	assert.Equal(t, StatusExhausted, s.Status)
	assert.Len(t, s.Attempts, 2)
	assert.NotEmpty(t, s.Recommendation)
	// The two selector fixes were tried in priority order, never repeated.
	assert.Equal(t, []FixType{FixLocatorSwap, FixLearnedSubstitution}, fixer.applied)
}

func TestHealNeverExceedsMaxAttempts(t *testing.T) {
	for _, max := range []int{1, 2, 3, 5} {
		fixer := &fakeFixer{outcomes: map[FixType]FixOutcome{
			FixLocatorSwap:         {Change: "a"},
			FixLearnedSubstitution: {Change: "b"},
		}}
		invoker := &fakeInvoker{results: []runner.RunResult{{Success: false, Stderr: selectorError}}}
		cfg := DefaultConfig()
		cfg.MaxAttempts = max

		ctrl := NewController(cfg, fixer, invoker, nil, nil, runner.Options{})
		s, err := ctrl.Heal(context.Background(), "j-1", "t.spec.ts", "", selectorError)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(s.Attempts), max, "maxAttempts=%d", max)
		assert.Contains(t, []SessionStatus{StatusHealed, StatusFailed, StatusExhausted}, s.Status)
	}
}

func TestHealAuthFailureFailsWithoutAttempts(t *testing.T) {
	fixer := &fakeFixer{}
	invoker := &fakeInvoker{results: []runner.RunResult{{Success: false}}}

	ctrl := NewController(DefaultConfig(), fixer, invoker, nil, nil, runner.Options{})
	s, err := ctrl.Heal(context.Background(), "j-1", "t.spec.ts", "", "401 Unauthorized: login required")
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, s.Status)
	assert.Empty(t, s.Attempts)
	assert.Empty(t, fixer.applied, "no fix may be applied to an auth failure")
	assert.NotEmpty(t, s.Recommendation)
	assert.NotNil(t, s.EndedAt)
}

func TestHealFixErrorRecordedAndNextTried(t *testing.T) {
	fixer := &fakeFixer{
		errs:     map[FixType]error{FixLocatorSwap: fmt.Errorf("no locator found in error text")},
		outcomes: map[FixType]FixOutcome{FixLearnedSubstitution: {Change: "sub"}},
	}
	invoker := &fakeInvoker{results: []runner.RunResult{{Success: true}}}

	ctrl := NewController(DefaultConfig(), fixer, invoker, nil, nil, runner.Options{})
	s, err := ctrl.Heal(context.Background(), "j-1", "t.spec.ts", "", selectorError)
	require.NoError(t, err)

	assert.Equal(t, StatusHealed, s.Status)
	require.Len(t, s.Attempts, 2)
	assert.Equal(t, ResultError, s.Attempts[0].Result)
	assert.Equal(t, ResultPass, s.Attempts[1].Result)
	// The runner must not run for an attempt whose fix was not applied.
	assert.Equal(t, 1, invoker.calls)
}

func TestHealWriteBackOnLearnedSubstitution(t *testing.T) {
	fixer := &fakeFixer{outcomes: map[FixType]FixOutcome{
		FixLocatorSwap:         {Change: "swap"},
		FixLearnedSubstitution: {Change: "sub", PatternID: "pat-42"},
	}}
	invoker := &fakeInvoker{results: []runner.RunResult{
		{Success: false, Stderr: selectorError},
		{Success: true},
	}}
	rec := &fakeRecorder{}

	ctrl := NewController(DefaultConfig(), fixer, invoker, rec, nil, runner.Options{})
	s, err := ctrl.Heal(context.Background(), "j-9", "t.spec.ts", "", selectorError)
	require.NoError(t, err)

	assert.Equal(t, StatusHealed, s.Status)
	assert.Equal(t, []string{"pat-42"}, rec.patternIDs)
	assert.Equal(t, []string{"j-9"}, rec.journeyIDs)
}

func TestHealNoWriteBackWithoutPatternID(t *testing.T) {
	fixer := &fakeFixer{outcomes: map[FixType]FixOutcome{
		FixLocatorSwap: {Change: "swap"},
	}}
	invoker := &fakeInvoker{results: []runner.RunResult{{Success: true}}}
	rec := &fakeRecorder{}

	ctrl := NewController(DefaultConfig(), fixer, invoker, rec, nil, runner.Options{})
	_, err := ctrl.Heal(context.Background(), "j-1", "t.spec.ts", "", selectorError)
	require.NoError(t, err)
	assert.Empty(t, rec.patternIDs)
}

func TestHealPersistsIncrementally(t *testing.T) {
	fixer := &fakeFixer{outcomes: map[FixType]FixOutcome{
		FixLocatorSwap:         {Change: "swap"},
		FixLearnedSubstitution: {Change: "sub"},
	}}
	invoker := &fakeInvoker{results: []runner.RunResult{
		{Success: false, Stderr: selectorError},
		{Success: true},
	}}
	log := &memLog{}

	ctrl := NewController(DefaultConfig(), fixer, invoker, nil, log, runner.Options{})
	s, err := ctrl.Heal(context.Background(), "j-1", "t.spec.ts", "", selectorError)
	require.NoError(t, err)
	assert.Equal(t, StatusHealed, s.Status)

	// start + after attempt 1 + after attempt 2 + terminal.
	require.Len(t, log.snapshots, 4)
	assert.Equal(t, StatusInProgress, log.snapshots[0].Status)
	assert.Len(t, log.snapshots[1].Attempts, 1)
	assert.Equal(t, StatusInProgress, log.snapshots[1].Status)
	assert.Equal(t, StatusHealed, log.snapshots[len(log.snapshots)-1].Status)

	// Attempts already written are never mutated by later snapshots.
	first := log.snapshots[1].Attempts[0]
	assert.Equal(t, first, log.snapshots[3].Attempts[0])
}

func TestHealAttemptNumbersAreSequential(t *testing.T) {
	fixer := &fakeFixer{outcomes: map[FixType]FixOutcome{
		FixWaitForSignal:   {Change: "wait"},
		FixIncreaseTimeout: {Change: "timeout"},
	}}
	invoker := &fakeInvoker{results: []runner.RunResult{
		{Success: false, Stderr: "Timeout 30000ms exceeded waiting for page"},
	}}

	ctrl := NewController(DefaultConfig(), fixer, invoker, nil, nil, runner.Options{})
	s, err := ctrl.Heal(context.Background(), "j-1", "t.spec.ts", "", "Timeout 30000ms exceeded waiting for page")
	require.NoError(t, err)

	for i, a := range s.Attempts {
		assert.Equal(t, i+1, a.Attempt)
	}
}
