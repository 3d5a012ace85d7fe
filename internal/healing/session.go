package healing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stepwright/internal/classify"
	"stepwright/internal/logging"
	"stepwright/internal/runner"
)

// SessionStatus is the healing session state. in_progress is the only
// non-terminal state.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusHealed     SessionStatus = "healed"
	StatusFailed     SessionStatus = "failed"
	StatusExhausted  SessionStatus = "exhausted"
)

// AttemptResult is the observed outcome of one applied fix.
type AttemptResult string

const (
	ResultPass  AttemptResult = "pass"
	ResultFail  AttemptResult = "fail"
	ResultError AttemptResult = "error"
)

// Attempt records one applied fix and its outcome. Attempts are appended in
// strict attempt-number order and never mutated after being written.
type Attempt struct {
	Attempt     int               `json:"attempt"` // 1-based
	Timestamp   time.Time         `json:"timestamp"`
	FailureType classify.Category `json:"failureType"`
	FixType     FixType           `json:"fixType"`
	File        string            `json:"file"`
	Change      string            `json:"change"`
	Evidence    string            `json:"evidence"`
	Result      AttemptResult     `json:"result"`
	DurationMs  int64             `json:"durationMs"`
}

// Session is one bounded healing run for a journey.
type Session struct {
	ID             string        `json:"id"`
	JourneyID      string        `json:"journeyId"`
	StartedAt      time.Time     `json:"startedAt"`
	EndedAt        *time.Time    `json:"endedAt,omitempty"`
	MaxAttempts    int           `json:"maxAttempts"`
	Status         SessionStatus `json:"status"`
	Attempts       []Attempt     `json:"attempts"`
	Recommendation string        `json:"recommendation,omitempty"`
}

// AttemptedFixes lists the fix types tried so far, in order.
func (s *Session) AttemptedFixes() []FixType {
	out := make([]FixType, len(s.Attempts))
	for i, a := range s.Attempts {
		out[i] = a.FixType
	}
	return out
}

// FixRequest is the context handed to a Fixer.
type FixRequest struct {
	TestFile       string
	JourneyID      string
	StepText       string // failing step text when known, for learned substitution
	Classification classify.Classification
	ErrorText      string
}

// FixOutcome describes what a Fixer changed.
type FixOutcome struct {
	File     string
	Change   string
	Evidence string
	// PatternID is set when the fix substituted a learned pattern; on heal
	// the controller records success against it.
	PatternID string
}

// Fixer applies one repair strategy to the test source.
type Fixer interface {
	Apply(ctx context.Context, fix FixType, req FixRequest) (FixOutcome, error)
}

// LearningRecorder receives success write-backs when a learned-pattern
// substitution heals a test. Satisfied by *llkb.Store.
type LearningRecorder interface {
	RecordSuccess(patternID, journeyID string) error
}

// SessionLog persists a session incrementally. Satisfied by *Log.
type SessionLog interface {
	Persist(s *Session) error
}

// Controller owns HealingSession records: the bounded retry state machine.
// Attempts execute strictly sequentially; each one mutates shared test
// source, so there is no parallel mode. Cancellation is attempt-boundary
// only: an in-flight runner invocation finishes (or times out) before the
// context is consulted again.
type Controller struct {
	cfg      Config
	fixer    Fixer
	invoker  runner.Invoker
	recorder LearningRecorder
	log      SessionLog
	runOpts  runner.Options
}

// NewController wires the collaborators. recorder and log may be nil (no
// write-back, no persistence), which the dry-run path uses.
func NewController(cfg Config, fixer Fixer, invoker runner.Invoker, recorder LearningRecorder, log SessionLog, runOpts runner.Options) *Controller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Controller{cfg: cfg, fixer: fixer, invoker: invoker, recorder: recorder, log: log, runOpts: runOpts}
}

// Heal runs one healing session for a failing journey test. failureText is
// the error content of the failed run that triggered healing. The returned
// session is always terminal; errors are reserved for persistence and
// invocation defects, and even then the session records what happened.
func (c *Controller) Heal(ctx context.Context, journeyID, testFile, stepText, failureText string) (*Session, error) {
	s := &Session{
		ID:          uuid.NewString(),
		JourneyID:   journeyID,
		StartedAt:   time.Now().UTC(),
		MaxAttempts: c.cfg.MaxAttempts,
		Status:      StatusInProgress,
	}
	logging.Healing("Session %s started for journey %s (maxAttempts=%d)", s.ID, journeyID, s.MaxAttempts)
	if err := c.persist(s); err != nil {
		return s, err
	}

	for len(s.Attempts) < s.MaxAttempts {
		cls := classify.Error(failureText, "")

		rule := NextFix(cls, s.AttemptedFixes(), c.cfg)
		if rule == nil {
			c.finish(s, cls)
			return s, c.persist(s)
		}

		req := FixRequest{
			TestFile:       testFile,
			JourneyID:      journeyID,
			StepText:       stepText,
			Classification: cls,
			ErrorText:      failureText,
		}

		attempt := Attempt{
			Attempt:     len(s.Attempts) + 1,
			Timestamp:   time.Now().UTC(),
			FailureType: cls.Category,
			FixType:     rule.FixType,
			File:        testFile,
		}

		start := time.Now()
		outcome, err := c.fixer.Apply(ctx, rule.FixType, req)
		if err != nil {
			attempt.Result = ResultError
			attempt.Evidence = fmt.Sprintf("fix not applied: %v", err)
			attempt.DurationMs = time.Since(start).Milliseconds()
			s.Attempts = append(s.Attempts, attempt)
			logging.HealingWarn("Session %s attempt %d: %s errored: %v", s.ID, attempt.Attempt, rule.FixType, err)
			if perr := c.persist(s); perr != nil {
				return s, perr
			}
			continue
		}
		attempt.File = orDefault(outcome.File, testFile)
		attempt.Change = outcome.Change
		attempt.Evidence = outcome.Evidence

		run, err := c.invoker.Run(ctx, testFile, c.runOpts)
		attempt.DurationMs = time.Since(start).Milliseconds()
		switch {
		case err != nil:
			attempt.Result = ResultError
			attempt.Evidence = joinEvidence(attempt.Evidence, fmt.Sprintf("runner invocation failed: %v", err))
		case run.Success:
			attempt.Result = ResultPass
		default:
			attempt.Result = ResultFail
			failureText = run.ErrorText()
		}

		s.Attempts = append(s.Attempts, attempt)
		logging.Healing("Session %s attempt %d: fix=%s result=%s (%dms)",
			s.ID, attempt.Attempt, attempt.FixType, attempt.Result, attempt.DurationMs)
		if perr := c.persist(s); perr != nil {
			return s, perr
		}

		if attempt.Result == ResultPass {
			c.healed(s, outcome)
			return s, c.persist(s)
		}
	}

	// Attempt budget spent.
	last := classify.Error(failureText, "")
	s.Status = StatusExhausted
	s.Recommendation = Recommendation(last.Category)
	c.end(s)
	logging.Healing("Session %s exhausted after %d attempts", s.ID, len(s.Attempts))
	return s, c.persist(s)
}

// finish handles the no-applicable-fix terminal transition: failed when
// nothing could even be tried, exhausted when earlier attempts ran out of
// candidates.
func (c *Controller) finish(s *Session, cls classify.Classification) {
	if len(s.Attempts) == 0 {
		s.Status = StatusFailed
	} else {
		s.Status = StatusExhausted
	}
	s.Recommendation = Recommendation(cls.Category)
	c.end(s)
	logging.Healing("Session %s %s with %d attempts: %s", s.ID, s.Status, len(s.Attempts), s.Recommendation)
}

func (c *Controller) healed(s *Session, winning FixOutcome) {
	s.Status = StatusHealed
	c.end(s)
	logging.Healing("Session %s healed on attempt %d", s.ID, len(s.Attempts))

	if winning.PatternID != "" && s.JourneyID != "" && c.recorder != nil {
		if err := c.recorder.RecordSuccess(winning.PatternID, s.JourneyID); err != nil {
			logging.HealingWarn("Session %s: learned-pattern write-back failed: %v", s.ID, err)
		}
	}
}

func (c *Controller) end(s *Session) {
	now := time.Now().UTC()
	s.EndedAt = &now
}

func (c *Controller) persist(s *Session) error {
	if c.log == nil {
		return nil
	}
	return c.log.Persist(s)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func joinEvidence(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
