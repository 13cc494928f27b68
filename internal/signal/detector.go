package signal

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/semindex"
)

// #region example-index

// ExampleIndex abstracts the semantic example index so the detector can
// be tested without embeddings.
type ExampleIndex interface {
	Query(ctx context.Context, text string, topK int) ([]semindex.Match, error)
	Len() int
}

// #endregion example-index

// #region detector

// Detector evaluates every configured rule against an utterance.
// Rules are independent; precedence suppression runs after matching.
type Detector struct {
	rules []Rule
	index ExampleIndex
	log   *zap.Logger
}

// NewDetector creates a Detector. index may be nil (lexical-only).
func NewDetector(rules []Rule, index ExampleIndex, log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{rules: rules, index: index, log: log}
}

// #endregion detector

// #region detect

// Detect returns this turn's signals in priority order. An empty result
// is valid: the caller falls back to situation-only proactive
// selection. Embedding failures degrade to lexical-only matching.
func (d *Detector) Detect(ctx context.Context, utterance string) []Signal {
	lower := strings.ToLower(utterance)
	tokens := tokenSet(tokenize(utterance))

	fired := make(map[string]Signal, len(d.rules))

	// Lexical layer.
	for _, rule := range d.rules {
		if len(rule.Keywords) == 0 {
			continue
		}
		if lexicalMatch(rule, lower, tokens) {
			fired[rule.ID] = Signal{
				ID:         rule.ID,
				Category:   rule.Category,
				Priority:   rule.Priority,
				Confidence: 1.0,
				Source:     SourceLexical,
			}
		}
	}

	// Semantic layer. Below-threshold matches are omitted entirely.
	if d.index != nil && d.index.Len() > 0 {
		matches, err := d.index.Query(ctx, utterance, d.index.Len())
		if err != nil {
			d.log.Warn("semantic match degraded to lexical-only", zap.Error(err))
		} else {
			best := semindex.BestPerOwner(matches)
			for _, rule := range d.rules {
				if len(rule.Examples) == 0 {
					continue
				}
				if _, ok := fired[rule.ID]; ok {
					continue // lexical match already carries full confidence
				}
				m, ok := best[rule.ID]
				if !ok {
					continue
				}
				threshold := rule.Threshold
				if threshold <= 0 {
					threshold = DefaultThreshold
				}
				if m.Similarity < threshold {
					continue
				}
				fired[rule.ID] = Signal{
					ID:         rule.ID,
					Category:   rule.Category,
					Priority:   rule.Priority,
					Confidence: m.Similarity,
					Source:     SourceSemantic,
				}
			}
		}
	}

	// Precedence pass: a fired rule silences the rules it suppresses.
	suppressed := make(map[string]bool)
	for _, rule := range d.rules {
		if _, ok := fired[rule.ID]; !ok {
			continue
		}
		for _, target := range rule.Suppresses {
			if target != rule.ID {
				suppressed[target] = true
			}
		}
	}

	// Collect in declaration order, then sort by priority and confidence.
	out := make([]Signal, 0, len(fired))
	for _, rule := range d.rules {
		sig, ok := fired[rule.ID]
		if !ok || suppressed[rule.ID] {
			continue
		}
		out = append(out, sig)
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Priority != out[b].Priority {
			return out[a].Priority > out[b].Priority
		}
		return out[a].Confidence > out[b].Confidence
	})
	return out
}

// #endregion detect

// #region rule-lookup

// Rule returns the rule with the given id, if configured.
func (d *Detector) Rule(id string) (Rule, bool) {
	for _, r := range d.rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// #endregion rule-lookup
