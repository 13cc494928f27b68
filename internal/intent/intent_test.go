package intent

import (
	"context"
	"fmt"
	"testing"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/semindex"
)

type stubIndex struct {
	matches []semindex.Match
	err     error
	count   int
}

func (s *stubIndex) Query(context.Context, string, int) ([]semindex.Match, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.matches, nil
}

func (s *stubIndex) Len() int { return s.count }

func TestRoute_BestMatchWins(t *testing.T) {
	index := &stubIndex{
		count: 3,
		matches: []semindex.Match{
			{OwnerID: "analysis", Similarity: 0.88},
			{OwnerID: "discovery", Similarity: 0.71},
			{OwnerID: "assessment", Similarity: 0.40},
		},
	}
	r := NewRouter(index, 0, nil)

	d := r.Route(context.Background(), "why did churn spike last month")
	if !d.Matched || d.Intent != Analysis {
		t.Fatalf("got %+v, want matched analysis", d)
	}
	if d.Similarity != 0.88 {
		t.Fatalf("similarity = %v, want 0.88", d.Similarity)
	}
}

func TestRoute_BelowThresholdFallsBack(t *testing.T) {
	index := &stubIndex{
		count:   2,
		matches: []semindex.Match{{OwnerID: "discovery", Similarity: 0.60}},
	}
	r := NewRouter(index, 0, nil)

	d := r.Route(context.Background(), "asdkj qwoe")
	if d.Matched || d.Intent != Clarification {
		t.Fatalf("got %+v, want clarification fallback", d)
	}
}

func TestRoute_CustomThreshold(t *testing.T) {
	index := &stubIndex{
		count:   2,
		matches: []semindex.Match{{OwnerID: "discovery", Similarity: 0.60}},
	}
	r := NewRouter(index, 0.55, nil)

	d := r.Route(context.Background(), "show me what you have")
	if !d.Matched || d.Intent != Discovery {
		t.Fatalf("got %+v, want matched discovery at lowered threshold", d)
	}
}

func TestRoute_QueryErrorFallsBack(t *testing.T) {
	index := &stubIndex{count: 2, err: fmt.Errorf("embedding service down")}
	r := NewRouter(index, 0, nil)

	d := r.Route(context.Background(), "anything")
	if d.Matched || d.Intent != Clarification {
		t.Fatalf("got %+v, want clarification on query error", d)
	}
}

func TestRoute_EmptyIndexFallsBack(t *testing.T) {
	r := NewRouter(&stubIndex{count: 0}, 0, nil)
	if d := r.Route(context.Background(), "anything"); d.Matched {
		t.Fatalf("empty index routed: %+v", d)
	}

	r = NewRouter(nil, 0, nil)
	if d := r.Route(context.Background(), "anything"); d.Intent != Clarification {
		t.Fatalf("nil index did not fall back: %+v", d)
	}
}
