// Package llkb implements the learned pattern store: persisted,
// confidence-scored step-text patterns with a success/failure learning loop
// and pruning. The store is the single owner of LearnedPattern records and
// the only writer of confidence.
//
// Persistence is a single JSON document per store path under a
// load-mutate-save discipline. Concurrent writers against the same path
// require external serialization; the in-process mutex only guards this
// Store instance.
package llkb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stepwright/internal/ir"
	"stepwright/internal/logging"
)

// Confidence tuning. The exact values are behavioral contract: callers and
// tests depend on the ±0.05/−0.10 walk and the [0.10, 0.95] clamp.
const (
	MinConfidence     = 0.10
	MaxConfidence     = 0.95
	InitialConfidence = 0.60
	successDelta      = 0.05
	failureDelta      = 0.10

	// PublishThreshold gates the read-only export; entries below it are
	// never exposed to external consumers.
	PublishThreshold = 0.75

	storeVersion = 1
)

// LearnedPattern is one confidence-scored mapping from normalized step text
// to a primitive.
type LearnedPattern struct {
	ID              string       `json:"id"`
	NormalizedText  string       `json:"normalizedText"`
	MappedPrimitive ir.Primitive `json:"mappedPrimitive"`
	Confidence      float64      `json:"confidence"`
	SuccessCount    int          `json:"successCount"`
	FailCount       int          `json:"failCount"`
	SourceJourneys  []string     `json:"sourceJourneys"`
	CreatedAt       time.Time    `json:"createdAt"`
	LastUsedAt      time.Time    `json:"lastUsedAt"`
	LastSuccessAt   *time.Time   `json:"lastSuccessAt,omitempty"`
}

// Applications is the total number of recorded outcomes.
func (p *LearnedPattern) Applications() int {
	return p.SuccessCount + p.FailCount
}

type document struct {
	Version  int               `json:"version"`
	Patterns []*LearnedPattern `json:"patterns"`
}

// Store owns the learned patterns for one store file. Zero value is not
// usable; construct with New and call Load before use.
type Store struct {
	mu     sync.Mutex
	path   string
	byText map[string]*LearnedPattern // normalizedText -> pattern (unique key)
	byID   map[string]*LearnedPattern
}

// New creates a store bound to a JSON document path.
func New(path string) *Store {
	return &Store{
		path:   path,
		byText: make(map[string]*LearnedPattern),
		byID:   make(map[string]*LearnedPattern),
	}
}

// Load reads the store document. A missing or corrupt file yields an empty
// store with a logged warning rather than an error: losing learned patterns
// is recoverable, crashing the pipeline is not.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byText = make(map[string]*LearnedPattern)
	s.byID = make(map[string]*LearnedPattern)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.LLKBDebug("No store file at %s, starting empty", s.path)
			return nil
		}
		logging.LLKBWarn("Could not read store %s: %v (starting empty)", s.path, err)
		return nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		logging.LLKBWarn("Corrupt store %s: %v (starting empty)", s.path, err)
		return nil
	}

	for _, p := range doc.Patterns {
		if p == nil || p.NormalizedText == "" {
			continue
		}
		p.Confidence = clamp(p.Confidence)
		s.byText[p.NormalizedText] = p
		s.byID[p.ID] = p
	}
	logging.LLKB("Loaded %d learned patterns from %s", len(s.byText), s.path)
	return nil
}

// Reset discards all in-memory patterns without touching disk.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byText = make(map[string]*LearnedPattern)
	s.byID = make(map[string]*LearnedPattern)
}

// Save writes the store document atomically (temp file + rename).
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	doc := document{Version: storeVersion, Patterns: s.allLocked()}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	logging.Store("Saved %d learned patterns to %s", len(doc.Patterns), s.path)
	return nil
}

// Match finds the pattern whose normalizedText exactly equals text and
// whose confidence meets the threshold. Ties are impossible: normalizedText
// is a unique key. Returns a copy; mutation goes through Record*.
func (s *Store) Match(text string, minConfidence float64) *LearnedPattern {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byText[text]
	if !ok {
		return nil
	}
	if p.Confidence < minConfidence {
		logging.LLKBDebug("Pattern %s below threshold (%.2f < %.2f)", p.ID, p.Confidence, minConfidence)
		return nil
	}
	cp := *p
	cp.SourceJourneys = append([]string(nil), p.SourceJourneys...)
	return &cp
}

// Learn creates an entry for normalized text on first successful
// match-and-record, or returns the existing one. journeyID provenance is
// required.
func (s *Store) Learn(normalizedText string, primitive ir.Primitive, journeyID string) (*LearnedPattern, error) {
	if normalizedText == "" {
		return nil, fmt.Errorf("normalized text required")
	}
	if journeyID == "" {
		return nil, fmt.Errorf("journey id required for provenance")
	}
	if !primitive.IsExecutable() {
		return nil, fmt.Errorf("cannot learn a blocked primitive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.byText[normalizedText]; ok {
		addJourney(p, journeyID)
		if err := s.saveLocked(); err != nil {
			return nil, err
		}
		cp := *p
		return &cp, nil
	}

	now := time.Now().UTC()
	p := &LearnedPattern{
		ID:              uuid.NewString(),
		NormalizedText:  normalizedText,
		MappedPrimitive: primitive,
		Confidence:      InitialConfidence,
		SourceJourneys:  []string{journeyID},
		CreatedAt:       now,
		LastUsedAt:      now,
	}
	s.byText[normalizedText] = p
	s.byID[p.ID] = p
	logging.LLKB("Learned new pattern %s for %q (confidence=%.2f)", p.ID, normalizedText, p.Confidence)
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	cp := *p
	return &cp, nil
}

// RecordSuccess bumps confidence by +0.05 (capped at 0.95) and records
// provenance. A success without a journey id is rejected.
func (s *Store) RecordSuccess(id, journeyID string) error {
	if journeyID == "" {
		return fmt.Errorf("journey id required to record success")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("unknown pattern id %s", id)
	}
	now := time.Now().UTC()
	prev := p.Confidence
	p.SuccessCount++
	p.Confidence = clamp(p.Confidence + successDelta)
	p.LastUsedAt = now
	p.LastSuccessAt = &now
	addJourney(p, journeyID)
	logging.LLKB("Pattern %s success (%.2f -> %.2f, successes=%d)", id, prev, p.Confidence, p.SuccessCount)
	return s.saveLocked()
}

// RecordFailure drops confidence by 0.10 (floored at 0.10).
func (s *Store) RecordFailure(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("unknown pattern id %s", id)
	}
	prev := p.Confidence
	p.FailCount++
	p.Confidence = clamp(p.Confidence - failureDelta)
	p.LastUsedAt = time.Now().UTC()
	logging.LLKB("Pattern %s failure (%.2f -> %.2f, failures=%d)", id, prev, p.Confidence, p.FailCount)
	return s.saveLocked()
}

// Prune removes entries that have been applied at least minApplications
// times and still sit below minConfidence. Entries with fewer applications
// are always retained: cold patterns get a grace period. Returns the
// removed patterns.
func (s *Store) Prune(minConfidence float64, minApplications int) ([]LearnedPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []LearnedPattern
	for text, p := range s.byText {
		if p.Applications() >= minApplications && p.Confidence < minConfidence {
			removed = append(removed, *p)
			delete(s.byText, text)
			delete(s.byID, p.ID)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	logging.LLKB("Pruned %d patterns (minConfidence=%.2f, minApplications=%d)",
		len(removed), minConfidence, minApplications)
	if err := s.saveLocked(); err != nil {
		return removed, err
	}
	return removed, nil
}

// Export returns up to topN highest-confidence entries at or above the
// publish threshold, confidence-descending. The slice holds copies; the
// export is read-only by construction.
func (s *Store) Export(topN int) []LearnedPattern {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []LearnedPattern
	for _, p := range s.byText {
		if p.Confidence >= PublishThreshold {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].NormalizedText < out[j].NormalizedText
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// Len returns the number of stored patterns.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byText)
}

// All returns copies of all patterns, sorted by normalized text for
// deterministic output.
func (s *Store) All() []LearnedPattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	ptrs := s.allLocked()
	out := make([]LearnedPattern, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

func (s *Store) allLocked() []*LearnedPattern {
	out := make([]*LearnedPattern, 0, len(s.byText))
	for _, p := range s.byText {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].NormalizedText < out[j].NormalizedText
	})
	return out
}

func addJourney(p *LearnedPattern, journeyID string) {
	for _, j := range p.SourceJourneys {
		if j == journeyID {
			return
		}
	}
	p.SourceJourneys = append(p.SourceJourneys, journeyID)
}

func clamp(c float64) float64 {
	if c < MinConfidence {
		return MinConfidence
	}
	if c > MaxConfidence {
		return MaxConfidence
	}
	return c
}
