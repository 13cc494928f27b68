package behavior

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/knowledge"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/signal"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/situation"
)

func testCategoryDims() map[string]situation.Dimension {
	return map[string]situation.Dimension{
		"assessment": situation.Assessment,
		"education":  situation.Discovery,
		"analysis":   situation.Analysis,
	}
}

func testLibrary() *Library {
	return NewLibrary([]Behavior{
		{
			ID:       "acknowledge-rating",
			Category: "assessment",
			Priority: signal.High,
			Type:     Reactive,
			Affinity: map[situation.Dimension]float64{situation.Assessment: 0.9},
			Outputs:  []string{"quality-report"},
		},
		{
			ID:       "restate-rating",
			Category: "assessment",
			Priority: signal.Medium,
			Type:     Reactive,
			Affinity: map[situation.Dimension]float64{situation.Assessment: 0.5},
		},
		{
			ID:       "probe-rating-detail",
			Category: "assessment",
			Priority: signal.Medium,
			Type:     Proactive,
			Affinity: map[situation.Dimension]float64{situation.Assessment: 0.8},
			Outputs:  []string{"quality-report"},
		},
		{
			ID:       "suggest-dimension",
			Category: "assessment",
			Priority: signal.Low,
			Type:     Proactive,
			Affinity: map[situation.Dimension]float64{situation.Assessment: 0.7},
		},
		{
			ID:               "offer-context",
			Category:         "education",
			Priority:         signal.Low,
			Type:             Proactive,
			Affinity:         map[situation.Dimension]float64{situation.Discovery: 0.6},
			KnowledgeWeights: map[string]float64{"quality_rating": 1.0},
		},
		{
			ID:       "surface-trend",
			Category: "analysis",
			Priority: signal.Medium,
			Type:     Proactive,
			Affinity: map[situation.Dimension]float64{situation.Analysis: 0.9},
		},
	})
}

func TestSelectReactive_HighestAffinityWins(t *testing.T) {
	s := NewSelector(testLibrary(), testCategoryDims(), nil)

	signals := []signal.Signal{
		{ID: "rating-statement", Category: "assessment", Priority: signal.High},
	}
	scored, ok := s.SelectReactive(signals)
	if !ok {
		t.Fatal("no reactive behavior selected")
	}
	if scored.Behavior.ID != "acknowledge-rating" {
		t.Fatalf("got %s, want acknowledge-rating", scored.Behavior.ID)
	}
}

func TestSelectReactive_FallsThroughSignals(t *testing.T) {
	s := NewSelector(testLibrary(), testCategoryDims(), nil)

	// No reactive behavior exists for "validation"; the selector must
	// fall through to the next signal rather than give up.
	signals := []signal.Signal{
		{ID: "correction", Category: "validation", Priority: signal.Critical},
		{ID: "rating-statement", Category: "assessment", Priority: signal.High},
	}
	scored, ok := s.SelectReactive(signals)
	if !ok || scored.Behavior.ID != "acknowledge-rating" {
		t.Fatalf("fall-through failed: %+v ok=%v", scored, ok)
	}
}

func TestSelectReactive_NoMatch(t *testing.T) {
	s := NewSelector(testLibrary(), testCategoryDims(), nil)

	signals := []signal.Signal{
		{ID: "correction", Category: "validation", Priority: signal.Critical},
	}
	if _, ok := s.SelectReactive(signals); ok {
		t.Fatal("selected a behavior for a category with none")
	}
}

func TestSelectReactive_DeclarationOrderBreaksTies(t *testing.T) {
	lib := NewLibrary([]Behavior{
		{ID: "first", Category: "assessment", Type: Reactive,
			Affinity: map[situation.Dimension]float64{situation.Assessment: 0.5}},
		{ID: "second", Category: "assessment", Type: Reactive,
			Affinity: map[situation.Dimension]float64{situation.Assessment: 0.5}},
	})
	s := NewSelector(lib, testCategoryDims(), nil)

	scored, ok := s.SelectReactive([]signal.Signal{{Category: "assessment"}})
	if !ok || scored.Behavior.ID != "first" {
		t.Fatalf("tie not broken by declaration order: %+v", scored)
	}
}

func TestSelectProactive_ScoringFormula(t *testing.T) {
	s := NewSelector(testLibrary(), testCategoryDims(), nil)

	vec := situation.DefaultBaseline()
	know := knowledge.Map{
		"quality_rating": {Type: knowledge.Numeric, Number: 3, Scale: knowledge.ScaleFivePoint},
	}

	out := s.SelectProactive(vec, know, nil)
	if len(out) != 2 {
		t.Fatalf("got %d proactive, want 2", len(out))
	}

	for _, scored := range out {
		want := 0.7*scored.SituationScore + 0.3*scored.KnowledgeScore + scored.PriorityBonus
		if math.Abs(scored.Score-want) > 1e-9 {
			t.Fatalf("%s: score %v does not decompose to %v", scored.Behavior.ID, scored.Score, want)
		}
	}

	// Medium priority carries a +2 bonus, so probe-rating-detail and
	// surface-trend outrank the low-priority candidates.
	if out[0].Behavior.ID != "probe-rating-detail" && out[0].Behavior.ID != "surface-trend" {
		t.Fatalf("unexpected leader %s", out[0].Behavior.ID)
	}
	if out[0].Score < out[1].Score {
		t.Fatal("proactive results not in descending score order")
	}
}

func TestSelectProactive_TopicLocality(t *testing.T) {
	s := NewSelector(testLibrary(), testCategoryDims(), nil)

	reactive := Scored{Behavior: mustGet(t, testLibrary(), "acknowledge-rating")}
	out := s.SelectProactive(situation.DefaultBaseline(), nil, &reactive)

	for _, scored := range out {
		if scored.Behavior.ID == "suggest-dimension" {
			t.Fatal("same-category proactive without shared output was selected")
		}
	}
	// probe-rating-detail shares the quality-report output and stays
	// eligible despite the shared category.
	found := false
	for _, scored := range out {
		if scored.Behavior.ID == "probe-rating-detail" {
			found = true
		}
	}
	if !found {
		t.Fatalf("shared-output proactive excluded: %+v", out)
	}
}

func TestSelectProactive_NeverRepeatsReactive(t *testing.T) {
	lib := NewLibrary([]Behavior{
		{ID: "dual", Category: "analysis", Type: Proactive,
			Affinity: map[situation.Dimension]float64{situation.Analysis: 0.9}},
	})
	s := NewSelector(lib, testCategoryDims(), nil)

	reactive := Scored{Behavior: mustGet(t, lib, "dual")}
	if out := s.SelectProactive(situation.DefaultBaseline(), nil, &reactive); len(out) != 0 {
		t.Fatalf("reactive behavior repeated as proactive: %+v", out)
	}
}

func TestSelectProactive_CapsAtTwo(t *testing.T) {
	s := NewSelector(testLibrary(), testCategoryDims(), nil)

	out := s.SelectProactive(situation.DefaultBaseline(), nil, nil)
	if len(out) > 2 {
		t.Fatalf("got %d proactive, cap is 2", len(out))
	}
}

func TestKnowledgeScore_MissingEntriesContributeNothing(t *testing.T) {
	b := Behavior{KnowledgeWeights: map[string]float64{
		"quality_rating": 1.0,
		"freshness":      0.5,
	}}
	know := knowledge.Map{
		"quality_rating": {Type: knowledge.Numeric, Number: 4, Scale: knowledge.ScaleFivePoint},
	}

	// Only the present entry participates: 1.0·0.8 averaged over one.
	got := knowledgeScore(b, know)
	if math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("knowledgeScore = %v, want 0.8", got)
	}

	if got := knowledgeScore(b, nil); got != 0 {
		t.Fatalf("empty map should score 0, got %v", got)
	}
}

func mustGet(t *testing.T, lib *Library, id string) Behavior {
	t.Helper()
	b, ok := lib.Get(id)
	if !ok {
		t.Fatalf("behavior %s not in library", id)
	}
	return b
}
