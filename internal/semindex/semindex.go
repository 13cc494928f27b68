// Package semindex holds labeled examples for semantic matching. Rule
// examples and intent examples live in separate collections of an
// in-memory chromem database; queries return cosine similarity against
// the best-matching example per owner.
package semindex

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

// #region embedder

// Embedder is the minimal embedding capability the index needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// #endregion embedder

// #region types

// Match is one query hit.
type Match struct {
	OwnerID    string // rule or intent that owns the example
	Category   string
	Content    string
	Similarity float64
}

// #endregion types

// #region index

// Index wraps one chromem collection of labeled examples.
type Index struct {
	collection *chromem.Collection
	count      int
}

// New creates an empty in-memory index named name.
func New(name string, embedder Embedder) (*Index, error) {
	db := chromem.NewDB()
	collection, err := db.GetOrCreateCollection(name, nil, chromem.EmbeddingFunc(embedder.Embed))
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	return &Index{collection: collection}, nil
}

// Add embeds and stores labeled examples for one owner. Called once at
// startup; the index is read-only afterwards.
func (x *Index) Add(ctx context.Context, ownerID, category string, examples []string) error {
	for i, example := range examples {
		err := x.collection.AddDocument(ctx, chromem.Document{
			ID:      fmt.Sprintf("%s/%d", ownerID, i),
			Content: example,
			Metadata: map[string]string{
				"owner":    ownerID,
				"category": category,
			},
		})
		if err != nil {
			return fmt.Errorf("add example %s/%d: %w", ownerID, i, err)
		}
		x.count++
	}
	return nil
}

// Len returns the number of stored examples.
func (x *Index) Len() int {
	return x.count
}

// Query embeds text and returns up to topK nearest examples. An
// embedding failure surfaces as an error; callers degrade to
// lexical-only matching.
func (x *Index) Query(ctx context.Context, text string, topK int) ([]Match, error) {
	if x.count == 0 {
		return nil, nil
	}
	if topK > x.count {
		topK = x.count
	}
	results, err := x.collection.Query(ctx, text, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			OwnerID:    r.Metadata["owner"],
			Category:   r.Metadata["category"],
			Content:    r.Content,
			Similarity: float64(r.Similarity),
		}
	}
	return matches, nil
}

// #endregion index

// #region best-per-owner

// BestPerOwner keeps only the highest-similarity match for each owner.
func BestPerOwner(matches []Match) map[string]Match {
	best := make(map[string]Match, len(matches))
	for _, m := range matches {
		if prev, ok := best[m.OwnerID]; !ok || m.Similarity > prev.Similarity {
			best[m.OwnerID] = m
		}
	}
	return best
}

// #endregion best-per-owner
