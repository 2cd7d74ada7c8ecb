package safety

import (
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"

	"saferag/internal/domain"
	"saferag/internal/snapshot"
)

func newTestClassifier(t *testing.T, intents ...domain.UnsafeIntent) *Classifier {
	t.Helper()
	c := NewClassifier(log.New(io.Discard, "", 0))
	if err := c.Replace(intents); err != nil {
		t.Fatalf("replace: %v", err)
	}
	return c
}

func TestMatchRules_Exhaustive(t *testing.T) {
	reasons := MatchRules(DefaultRules, "Can yoga cure hypertension after surgery?")
	want := []string{
		"Matched safety rule: surgery",
		"Matched safety rule: blood_pressure",
		"Matched safety rule: medical_advice",
	}
	if len(reasons) != len(want) {
		t.Fatalf("expected %d reasons, got %v", len(want), reasons)
	}
	for i := range want {
		if reasons[i] != want[i] {
			t.Fatalf("reason %d: want %q, got %q", i, want[i], reasons[i])
		}
	}
}

func TestMatchRules_CaseInsensitive(t *testing.T) {
	if got := MatchRules(DefaultRules, "GLAUCOMA and inversions"); len(got) != 1 || got[0] != "Matched safety rule: glaucoma" {
		t.Fatalf("unexpected reasons %v", got)
	}
	if got := MatchRules(DefaultRules, "How do I do a sun salutation?"); len(got) != 0 {
		t.Fatalf("expected no reasons, got %v", got)
	}
}

func TestCheck_DiagnosisWithoutEmbedding(t *testing.T) {
	c := newTestClassifier(t, domain.UnsafeIntent{Text: "x", Embedding: []float64{1, 0}})
	v, err := c.Check("I need a diagnosis for my back", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsUnsafe {
		t.Fatalf("expected unsafe")
	}
	found := false
	for _, r := range v.Reasons {
		if strings.Contains(r, "medical_advice") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a medical_advice reason, got %v", v.Reasons)
	}
}

func TestCheck_PregnancyQuery(t *testing.T) {
	c := newTestClassifier(t)
	v, err := c.Check("Is yoga safe during pregnancy?", []float64{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsUnsafe || len(v.Reasons) != 1 || v.Reasons[0] != "Matched safety rule: pregnancy" {
		t.Fatalf("unexpected verdict %+v", v)
	}
}

func TestCheck_SemanticShortCircuit(t *testing.T) {
	c := newTestClassifier(t,
		domain.UnsafeIntent{Text: "poses for a slipped disc", Embedding: []float64{1, 0.1}},
		domain.UnsafeIntent{Text: "yoga instead of medication", Embedding: []float64{1, 0}},
	)
	v, err := c.Check("what should I do for my back", []float64{1, 0.05})
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsUnsafe {
		t.Fatalf("expected unsafe")
	}
	if len(v.Reasons) != 1 {
		t.Fatalf("expected exactly one semantic reason, got %v", v.Reasons)
	}
	if !strings.HasPrefix(v.Reasons[0], `Semantic match with unsafe intent: "poses for a slipped disc" (Score: `) {
		t.Fatalf("expected the first intent to win, got %q", v.Reasons[0])
	}
}

func TestCheck_KeywordReasonsPrecedeSemantic(t *testing.T) {
	c := newTestClassifier(t, domain.UnsafeIntent{Text: "healing a hernia", Embedding: []float64{0, 1}})
	v, err := c.Check("exercises for a hernia", []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Reasons) != 2 {
		t.Fatalf("expected keyword + semantic reasons, got %v", v.Reasons)
	}
	if v.Reasons[0] != "Matched safety rule: hernia" {
		t.Fatalf("keyword reason must come first, got %v", v.Reasons)
	}
	if v.Reasons[1] != `Semantic match with unsafe intent: "healing a hernia" (Score: 1.00)` {
		t.Fatalf("unexpected semantic reason %q", v.Reasons[1])
	}
}

func TestCheck_ThresholdIsStrict(t *testing.T) {
	c := NewClassifier(log.New(io.Discard, "", 0), WithThreshold(1))
	if err := c.Replace([]domain.UnsafeIntent{{Text: "same", Embedding: []float64{1, 0}}}); err != nil {
		t.Fatal(err)
	}
	v, err := c.Check("neutral text", []float64{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if v.IsUnsafe {
		t.Fatalf("a score equal to the threshold must not match: %+v", v)
	}
}

func TestCheck_ThresholdSweep(t *testing.T) {
	intent := domain.UnsafeIntent{Text: "intent", Embedding: []float64{1, 0}}
	// cosine([1,1],[1,0]) is about 0.707
	query := []float64{1, 1}
	for _, tc := range []struct {
		threshold float64
		unsafe    bool
	}{
		{0.5, true},
		{0.7, true},
		{0.75, false},
		{0.9, false},
	} {
		c := NewClassifier(log.New(io.Discard, "", 0), WithThreshold(tc.threshold))
		if err := c.Replace([]domain.UnsafeIntent{intent}); err != nil {
			t.Fatal(err)
		}
		v, err := c.Check("neutral", query)
		if err != nil {
			t.Fatal(err)
		}
		if v.IsUnsafe != tc.unsafe {
			t.Fatalf("threshold %.2f: expected unsafe=%v, got %v", tc.threshold, tc.unsafe, v.IsUnsafe)
		}
	}
}

func TestCheck_SafeQueryHasEmptyReasons(t *testing.T) {
	c := newTestClassifier(t)
	v, err := c.Check("What is mountain pose?", []float64{1})
	if err != nil {
		t.Fatal(err)
	}
	if v.IsUnsafe || v.Reasons == nil || len(v.Reasons) != 0 {
		t.Fatalf("expected safe verdict with empty reasons, got %+v", v)
	}
}

func TestCheck_DimensionMismatch(t *testing.T) {
	c := newTestClassifier(t, domain.UnsafeIntent{Text: "x", Embedding: []float64{1, 0, 0}})
	if _, err := c.Check("hello", []float64{1, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestLoad_MissingSnapshotDisablesSemanticLayer(t *testing.T) {
	c := newTestClassifier(t, domain.UnsafeIntent{Text: "x", Embedding: []float64{1, 0}})
	if err := c.Load(filepath.Join(t.TempDir(), "safety_index.json")); err != nil {
		t.Fatalf("missing snapshot should not fail: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected no intents, got %d", c.Len())
	}
	v, err := c.Check("neutral", []float64{1, 0})
	if err != nil || v.IsUnsafe {
		t.Fatalf("expected safe verdict, got %+v err=%v", v, err)
	}
}

func TestLoad_FromSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "safety_index.json")
	if err := snapshot.Write(path, []domain.UnsafeIntent{{Text: "stop my medication", Embedding: []float64{0, 1}}}); err != nil {
		t.Fatal(err)
	}
	c := newTestClassifier(t)
	if err := c.Load(path); err != nil {
		t.Fatal(err)
	}
	v, err := c.Check("neutral", []float64{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsUnsafe || len(v.Reasons) != 1 {
		t.Fatalf("expected one semantic reason, got %+v", v)
	}
}

func TestSemanticReason_KeepsIntentTextVerbatim(t *testing.T) {
	m := SemanticMatch{Intent: `can I do "wheel" pose after a C-section`, Score: 0.812}
	want := `Semantic match with unsafe intent: "can I do "wheel" pose after a C-section" (Score: 0.81)`
	if got := m.Reason(); got != want {
		t.Fatalf("want %s, got %s", want, got)
	}
}
