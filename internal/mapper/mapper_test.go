package mapper

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"stepwright/internal/glossary"
	"stepwright/internal/ir"
	"stepwright/internal/llkb"
	"stepwright/internal/patterns"
)

func newTestMapper(t *testing.T) (*Mapper, *llkb.Store) {
	t.Helper()
	g := glossary.Default()
	store := llkb.New(filepath.Join(t.TempDir(), "llkb.json"))
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	return New(g, patterns.NewLibrary(g), store), store
}

func TestMapStepTextPatternTier(t *testing.T) {
	m, _ := newTestMapper(t)
	r := m.MapStepText(`User clicks the "Save" button`, Options{})
	if r.MatchSource != SourcePattern {
		t.Fatalf("source = %s, want pattern", r.MatchSource)
	}
	if r.Primitive == nil || r.Primitive.Kind != ir.KindClick {
		t.Errorf("primitive = %+v", r.Primitive)
	}
	if r.IsAssertion {
		t.Error("click is not an assertion")
	}
}

func TestMapStepTextNormalizesSynonyms(t *testing.T) {
	m, _ := newTestMapper(t)
	// "taps" and "btn" are synonyms; the pattern library only knows the
	// canonical forms.
	r := m.MapStepText(`Visitor taps the "Save" btn`, Options{})
	if r.MatchSource != SourcePattern {
		t.Fatalf("source = %s (diag %q), want pattern", r.MatchSource, r.Diagnostic)
	}
	if r.Primitive.Kind != ir.KindClick {
		t.Errorf("kind = %s", r.Primitive.Kind)
	}
}

func TestMapStepTextHintTier(t *testing.T) {
	m, _ := newTestMapper(t)
	r := m.MapStepText("User clicks (testid=submit-btn)the submit button", Options{})
	if r.MatchSource != SourceHints {
		t.Fatalf("source = %s, want hints", r.MatchSource)
	}
	loc := r.Primitive.Locator
	if loc == nil || loc.Strategy != ir.StrategyTestID || loc.Value != "submit-btn" {
		t.Errorf("locator = %+v", loc)
	}
}

func TestHintsBeatLearnedPattern(t *testing.T) {
	m, store := newTestMapper(t)

	// Learn a conflicting mapping for the same normalized text and pump its
	// confidence to the max.
	text := "user clicks (testid=right-button) go"
	normalized := glossary.Default().NormalizeStepText("user clicks go")
	wrong, err := ir.Click(ir.LocatorSpec{Strategy: ir.StrategyCSS, Value: "#wrong"})
	if err != nil {
		t.Fatal(err)
	}
	p, err := store.Learn(normalized, wrong, "j-1")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if err := store.RecordSuccess(p.ID, "j-1"); err != nil {
			t.Fatal(err)
		}
	}

	r := m.MapStepText(text, Options{JourneyID: "j-1"})
	if r.MatchSource != SourceHints {
		t.Fatalf("source = %s, want hints: authored intent must beat a 0.95-confidence learned pattern", r.MatchSource)
	}
	if r.Primitive.Locator.Value != "right-button" {
		t.Errorf("locator = %+v", r.Primitive.Locator)
	}
}

func TestRoleHeadingHintWithoutVerb(t *testing.T) {
	m, _ := newTestMapper(t)
	r := m.MapStepText("(role=heading, level=2)Welcome", Options{})
	if r.MatchSource != SourceHints {
		t.Fatalf("source = %s", r.MatchSource)
	}
	p := r.Primitive
	if p.Kind != ir.KindExpectVisible {
		t.Errorf("kind = %s, want expectVisible", p.Kind)
	}
	if p.Locator.Options == nil || p.Locator.Options.Name != "Welcome" || p.Locator.Options.Level != 2 {
		t.Errorf("locator options = %+v", p.Locator.Options)
	}
	if !r.IsAssertion {
		t.Error("heading visibility is an assertion")
	}
}

func TestModuleHint(t *testing.T) {
	m, _ := newTestMapper(t)
	r := m.MapStepText("(module=auth.login)user signs in somehow", Options{})
	if r.MatchSource != SourceHints {
		t.Fatalf("source = %s", r.MatchSource)
	}
	if r.Primitive.Kind != ir.KindCallModule || r.Primitive.Module != "auth" || r.Primitive.Method != "login" {
		t.Errorf("primitive = %+v", r.Primitive)
	}
}

func TestLearnedTier(t *testing.T) {
	m, store := newTestMapper(t)

	text := "user completes the custom wizard"
	prim, err := ir.Click(ir.LocatorSpec{Strategy: ir.StrategyTestID, Value: "wizard-done"})
	if err != nil {
		t.Fatal(err)
	}
	p, err := store.Learn(text, prim, "j-1")
	if err != nil {
		t.Fatal(err)
	}

	// Default threshold 0.7 rejects the fresh 0.60 pattern.
	r := m.MapStepText(text, Options{})
	if r.MatchSource != SourceNone {
		t.Fatalf("source = %s, want none below threshold", r.MatchSource)
	}

	// Lowered threshold accepts it.
	r = m.MapStepText(text, Options{MinConfidence: 0.5})
	if r.MatchSource != SourceLLKB {
		t.Fatalf("source = %s, want llkb", r.MatchSource)
	}
	if r.MatchedPatternID != p.ID {
		t.Errorf("pattern id = %s, want %s", r.MatchedPatternID, p.ID)
	}
	if r.Confidence != p.Confidence {
		t.Errorf("confidence = %v", r.Confidence)
	}

	// DisableLLKB cuts the tier entirely.
	r = m.MapStepText(text, Options{MinConfidence: 0.5, DisableLLKB: true})
	if r.MatchSource != SourceNone {
		t.Errorf("source = %s, want none with llkb disabled", r.MatchSource)
	}
}

func TestPatternBeatsLearned(t *testing.T) {
	m, store := newTestMapper(t)

	// A learned mapping for text the fixed library also matches.
	text := `user clicks the "Save" button`
	wrong, err := ir.Click(ir.LocatorSpec{Strategy: ir.StrategyCSS, Value: "#wrong"})
	if err != nil {
		t.Fatal(err)
	}
	p, err := store.Learn(text, wrong, "j-1")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if err := store.RecordSuccess(p.ID, "j-1"); err != nil {
			t.Fatal(err)
		}
	}

	r := m.MapStepText(text, Options{MinConfidence: 0.5})
	if r.MatchSource != SourcePattern {
		t.Fatalf("source = %s: a vetted pattern must beat a high-confidence learned entry", r.MatchSource)
	}
	if r.Primitive.Locator.Strategy == ir.StrategyCSS {
		t.Error("learned locator leaked through the pattern tier")
	}
}

func TestMissInvariant(t *testing.T) {
	m, _ := newTestMapper(t)
	r := m.MapStepText("user meditates on the nature of software", Options{})

	if r.MatchSource != SourceNone {
		t.Fatalf("source = %s", r.MatchSource)
	}
	if r.Primitive != nil {
		t.Error("primitive must be nil exactly when source is none")
	}
	if r.Diagnostic == "" {
		t.Error("miss must carry a diagnostic")
	}

	b := r.BlockedPrimitive()
	if b.Kind != ir.KindBlocked || b.IsExecutable() {
		t.Errorf("blocked = %+v", b)
	}
	if b.SourceText != r.SourceText {
		t.Errorf("blocked source text = %q", b.SourceText)
	}
}

func TestMappingIsDeterministicAndPure(t *testing.T) {
	m, _ := newTestMapper(t)
	steps := []string{
		`User clicks the "Save" button`,
		"(role=heading)Dashboard",
		"user meditates",
		`user fills "x" into the "Email" field`,
	}
	for _, s := range steps {
		first := m.MapStepText(s, Options{})
		second := m.MapStepText(s, Options{})
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("MapStepText(%q) not deterministic (-first +second):\n%s", s, diff)
		}
	}
}

func TestConfirmSuccessFeedsStore(t *testing.T) {
	m, store := newTestMapper(t)

	text := "user completes the custom wizard"
	prim, err := ir.Click(ir.LocatorSpec{Strategy: ir.StrategyTestID, Value: "wizard-done"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Learn(text, prim, "j-1"); err != nil {
		t.Fatal(err)
	}

	r := m.MapStepText(text, Options{MinConfidence: 0.5})
	if r.MatchSource != SourceLLKB {
		t.Fatalf("source = %s", r.MatchSource)
	}

	if err := m.ConfirmSuccess(r, ""); err == nil {
		t.Error("confirm without journey id must fail")
	}
	if err := m.ConfirmSuccess(r, "j-2"); err != nil {
		t.Fatalf("ConfirmSuccess: %v", err)
	}
	got := store.Match(text, 0)
	if got.SuccessCount != 1 {
		t.Errorf("success count = %d", got.SuccessCount)
	}

	// Confirming a pattern-tier result is a no-op.
	pr := m.MapStepText(`user clicks the "Save" button`, Options{})
	if err := m.ConfirmSuccess(pr, "j-2"); err != nil {
		t.Errorf("pattern-tier confirm should be a no-op, got %v", err)
	}
}

func TestMapStepsPreservesOrder(t *testing.T) {
	m, _ := newTestMapper(t)
	steps := []string{
		`user navigates to "/checkout"`,
		`user fills "alice@example.com" into the "Email" field`,
		"user meditates",
		`user sees the "Order complete" heading`,
	}
	results, err := m.MapSteps(context.Background(), steps, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(steps) {
		t.Fatalf("results = %d", len(results))
	}
	for i, r := range results {
		if r.SourceText != steps[i] {
			t.Errorf("result %d source = %q, want %q", i, r.SourceText, steps[i])
		}
	}
	wantKinds := []ir.Kind{ir.KindGoto, ir.KindFill, "", ir.KindExpectVisible}
	for i, want := range wantKinds {
		if want == "" {
			if results[i].Primitive != nil {
				t.Errorf("result %d should be a miss", i)
			}
			continue
		}
		if results[i].Primitive == nil || results[i].Primitive.Kind != want {
			t.Errorf("result %d kind = %v, want %s", i, results[i].Primitive, want)
		}
	}

	stats := m.Stats()
	if stats.Total != 4 || stats.Blocked != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
