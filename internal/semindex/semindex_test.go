package semindex

import (
	"context"
	"fmt"
	"testing"
)

// stubEmbedder returns canned unit vectors keyed by exact text.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := s.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no embedding for %q", text)
	}
	return v, nil
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	emb := &stubEmbedder{vectors: map[string][]float32{
		"the rating is three stars": {1, 0, 0},
		"what does this field mean": {0, 1, 0},
		"rating query":              {1, 0, 0},
		"meaning query":             {0, 0.8, 0.6},
	}}
	index, err := New("test-examples", emb)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := index.Add(ctx, "rating-statement", "assessment", []string{"the rating is three stars"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := index.Add(ctx, "education-opportunity", "education", []string{"what does this field mean"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return index
}

func TestQuery_NearestOwnerWins(t *testing.T) {
	index := newTestIndex(t)
	if index.Len() != 2 {
		t.Fatalf("Len = %d, want 2", index.Len())
	}

	matches, err := index.Query(context.Background(), "rating query", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("no matches")
	}
	best := matches[0]
	if best.OwnerID != "rating-statement" || best.Category != "assessment" {
		t.Fatalf("unexpected best match %+v", best)
	}
	if best.Similarity < 0.99 {
		t.Fatalf("identical vector should score ~1.0, got %v", best.Similarity)
	}
}

func TestQuery_TopKClampedToCount(t *testing.T) {
	index := newTestIndex(t)

	// Asking for more results than stored must not error.
	matches, err := index.Query(context.Background(), "meaning query", 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
}

func TestQuery_EmptyIndex(t *testing.T) {
	index, err := New("empty", &stubEmbedder{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	matches, err := index.Query(context.Background(), "anything", 5)
	if err != nil || matches != nil {
		t.Fatalf("empty index should return nothing: %v %v", matches, err)
	}
}

func TestQuery_EmbedErrorSurfaces(t *testing.T) {
	index := newTestIndex(t)

	if _, err := index.Query(context.Background(), "never embedded", 2); err == nil {
		t.Fatal("embedding failure did not surface as an error")
	}
}

func TestBestPerOwner(t *testing.T) {
	matches := []Match{
		{OwnerID: "a", Similarity: 0.4},
		{OwnerID: "b", Similarity: 0.9},
		{OwnerID: "a", Similarity: 0.7},
		{OwnerID: "b", Similarity: 0.2},
	}
	best := BestPerOwner(matches)
	if len(best) != 2 {
		t.Fatalf("got %d owners, want 2", len(best))
	}
	if best["a"].Similarity != 0.7 || best["b"].Similarity != 0.9 {
		t.Fatalf("wrong best matches: %+v", best)
	}
}
