// Package config loads and validates the declarative engine
// configuration. All validation errors are fatal at load time: the
// engine refuses to start partially configured.
package config

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/behavior"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/compose"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/embedder"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/intent"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/knowledge"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/signal"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/situation"
)

// baselineTolerance bounds how far configured baselines may drift from 1.0.
const baselineTolerance = 1e-6

// #region load

// Load reads and resolves a YAML configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse resolves a YAML document. Unknown fields are rejected.
func Parse(raw []byte) (*Config, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return resolve(doc)
}

// #endregion load

// #region resolve

func resolve(doc Document) (*Config, error) {
	sitCfg, err := resolveSituation(doc.Situation)
	if err != nil {
		return nil, err
	}

	catDims, primary, err := resolveCategories(doc.Categories)
	if err != nil {
		return nil, err
	}

	rules, err := resolveRules(doc.Rules, catDims)
	if err != nil {
		return nil, err
	}

	library, err := resolveBehaviors(doc.Behaviors, catDims)
	if err != nil {
		return nil, err
	}

	composer, err := resolveComposer(doc.Composer)
	if err != nil {
		return nil, err
	}

	if err := validateBudgets(library, composer); err != nil {
		return nil, err
	}

	intents, err := resolveIntents(doc.Intents)
	if err != nil {
		return nil, err
	}

	if doc.Fallback.BehaviorID != "" {
		if _, ok := library.Get(doc.Fallback.BehaviorID); !ok {
			return nil, fmt.Errorf("fallback behavior %q is not in the library", doc.Fallback.BehaviorID)
		}
	}

	return &Config{
		Situation:          sitCfg,
		CategoryDimensions: catDims,
		PrimaryDimension:   primary,
		Rules:              rules,
		Library:            library,
		Intents:            intents,
		IntentThreshold:    doc.Intent.Threshold,
		Composer:           composer,
		Embedding: embedder.Config{
			BaseURL:        doc.Embedding.BaseURL,
			APIKey:         os.Getenv(doc.Embedding.APIKeyEnv),
			Model:          doc.Embedding.Model,
			Timeout:        embeddingTimeout(doc.Embedding.TimeoutSeconds),
			MaxRetries:     doc.Embedding.MaxRetries,
			CacheSize:      doc.Embedding.CacheSize,
			MaxInputTokens: doc.Embedding.MaxInputTokens,
		},
		FallbackBehaviorID: doc.Fallback.BehaviorID,
	}, nil
}

// #endregion resolve

// #region situation

func resolveSituation(doc SituationDoc) (situation.Config, error) {
	cfg := situation.DefaultConfig()
	if doc.DecayRate > 0 {
		cfg.DecayRate = doc.DecayRate
	}
	if doc.BoostAmount > 0 {
		cfg.BoostAmount = doc.BoostAmount
	}
	if doc.Tolerance > 0 {
		cfg.Tolerance = doc.Tolerance
	}

	if len(doc.Baseline) > 0 {
		var base situation.Vector
		for name, weight := range doc.Baseline {
			dim, ok := situation.ParseDimension(name)
			if !ok {
				return situation.Config{}, fmt.Errorf("baseline: unknown dimension %q", name)
			}
			if weight < 0 || weight > 1 {
				return situation.Config{}, fmt.Errorf("baseline %s: weight %v outside [0,1]", name, weight)
			}
			base[dim] = weight
		}
		if math.Abs(base.Sum()-1.0) > baselineTolerance {
			return situation.Config{}, fmt.Errorf("baseline weights sum to %v, want 1.0", base.Sum())
		}
		cfg.Baseline = base
	}
	return cfg, nil
}

// #endregion situation

// #region categories

func resolveCategories(doc map[string][]string) (map[string][]situation.Dimension, map[string]situation.Dimension, error) {
	if len(doc) == 0 {
		return nil, nil, fmt.Errorf("categories: at least one category mapping is required")
	}
	catDims := make(map[string][]situation.Dimension, len(doc))
	primary := make(map[string]situation.Dimension, len(doc))
	names := sortedKeys(doc)
	for _, category := range names {
		dimNames := doc[category]
		if len(dimNames) == 0 {
			return nil, nil, fmt.Errorf("category %s: no dimensions mapped", category)
		}
		dims := make([]situation.Dimension, 0, len(dimNames))
		for _, n := range dimNames {
			dim, ok := situation.ParseDimension(n)
			if !ok {
				return nil, nil, fmt.Errorf("category %s: unknown dimension %q", category, n)
			}
			dims = append(dims, dim)
		}
		catDims[category] = dims
		primary[category] = dims[0]
	}
	return catDims, primary, nil
}

// #endregion categories

// #region rules

func resolveRules(docs []RuleDoc, catDims map[string][]situation.Dimension) ([]signal.Rule, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("rules: at least one signal rule is required")
	}
	seen := make(map[string]bool, len(docs))
	ids := make(map[string]bool, len(docs))
	for _, d := range docs {
		ids[d.ID] = true
	}

	rules := make([]signal.Rule, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("rule with empty id")
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate rule id %q", d.ID)
		}
		seen[d.ID] = true

		if _, ok := catDims[d.Category]; !ok {
			return nil, fmt.Errorf("rule %s: unknown category %q", d.ID, d.Category)
		}
		priority, ok := signal.ParsePriority(d.Priority)
		if !ok {
			return nil, fmt.Errorf("rule %s: unknown priority %q", d.ID, d.Priority)
		}
		if len(d.Keywords) == 0 && len(d.Examples) == 0 {
			return nil, fmt.Errorf("rule %s: needs keywords or examples", d.ID)
		}
		if d.Threshold < 0 || d.Threshold > 1 {
			return nil, fmt.Errorf("rule %s: threshold %v outside [0,1]", d.ID, d.Threshold)
		}
		for _, target := range d.Suppresses {
			if !ids[target] {
				return nil, fmt.Errorf("rule %s: suppresses unknown rule %q", d.ID, target)
			}
		}

		effects, err := resolveEffects(d.ID, d.Knowledge)
		if err != nil {
			return nil, err
		}

		rules = append(rules, signal.Rule{
			ID:         d.ID,
			Category:   d.Category,
			Priority:   priority,
			Keywords:   d.Keywords,
			Examples:   d.Examples,
			Threshold:  d.Threshold,
			Suppresses: d.Suppresses,
			Effects:    effects,
		})
	}
	return rules, nil
}

func resolveEffects(ruleID string, docs []EffectDoc) ([]knowledge.Effect, error) {
	effects := make([]knowledge.Effect, 0, len(docs))
	for _, d := range docs {
		if d.Key == "" {
			return nil, fmt.Errorf("rule %s: knowledge effect with empty key", ruleID)
		}
		t := knowledge.ValueType(d.Type)
		switch t {
		case knowledge.Boolean, knowledge.Numeric, knowledge.Categorical:
		default:
			return nil, fmt.Errorf("rule %s: effect %s: unknown type %q", ruleID, d.Key, d.Type)
		}
		if d.Scale != "" && d.Scale != knowledge.ScaleFivePoint && d.Scale != knowledge.ScalePercent {
			return nil, fmt.Errorf("rule %s: effect %s: unknown scale %q", ruleID, d.Key, d.Scale)
		}
		if !d.FromUtterance && d.Value == "" {
			return nil, fmt.Errorf("rule %s: effect %s: needs a value or from_utterance", ruleID, d.Key)
		}
		effects = append(effects, knowledge.Effect{
			Key:           d.Key,
			Type:          t,
			Scale:         d.Scale,
			Value:         d.Value,
			FromUtterance: d.FromUtterance,
		})
	}
	return effects, nil
}

// #endregion rules

// #region behaviors

func resolveBehaviors(docs []BehaviorDoc, catDims map[string][]situation.Dimension) (*behavior.Library, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("behaviors: at least one behavior is required")
	}
	seen := make(map[string]bool, len(docs))
	behaviors := make([]behavior.Behavior, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("behavior with empty id")
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate behavior id %q", d.ID)
		}
		seen[d.ID] = true

		if _, ok := catDims[d.Category]; !ok {
			return nil, fmt.Errorf("behavior %s: unknown category %q", d.ID, d.Category)
		}
		priority, ok := signal.ParsePriority(d.Priority)
		if !ok {
			return nil, fmt.Errorf("behavior %s: unknown priority %q", d.ID, d.Priority)
		}
		rt := behavior.ResponseType(d.Type)
		if rt != behavior.Reactive && rt != behavior.Proactive {
			return nil, fmt.Errorf("behavior %s: unknown response type %q", d.ID, d.Type)
		}
		if d.TokenBudget <= 0 {
			return nil, fmt.Errorf("behavior %s: token budget must be positive", d.ID)
		}

		affinity := make(map[situation.Dimension]float64, len(d.Affinity))
		for name, weight := range d.Affinity {
			dim, ok := situation.ParseDimension(name)
			if !ok {
				return nil, fmt.Errorf("behavior %s: unknown affinity dimension %q", d.ID, name)
			}
			if weight < 0 || weight > 1 {
				return nil, fmt.Errorf("behavior %s: affinity %s=%v outside [0,1]", d.ID, name, weight)
			}
			affinity[dim] = weight
		}

		for key, weight := range d.KnowledgeWeights {
			if weight < 0 || weight > 1 {
				return nil, fmt.Errorf("behavior %s: knowledge weight %s=%v outside [0,1]", d.ID, key, weight)
			}
		}

		behaviors = append(behaviors, behavior.Behavior{
			ID:               d.ID,
			Category:         d.Category,
			Priority:         priority,
			Affinity:         affinity,
			KnowledgeWeights: d.KnowledgeWeights,
			Type:             rt,
			TokenBudget:      d.TokenBudget,
			Outputs:          d.Outputs,
		})
	}
	return behavior.NewLibrary(behaviors), nil
}

// #endregion behaviors

// #region composer

func resolveComposer(doc ComposerDoc) (compose.Config, error) {
	cfg := compose.DefaultConfig()
	if doc.TotalBudget > 0 {
		cfg.TotalBudget = doc.TotalBudget
	}
	if doc.ReactiveBudget > 0 {
		cfg.ReactiveBudget = doc.ReactiveBudget
	}
	if len(doc.ProactiveBudgets) > 0 {
		if len(doc.ProactiveBudgets) != 2 {
			return compose.Config{}, fmt.Errorf("composer: exactly two proactive budgets expected, got %d", len(doc.ProactiveBudgets))
		}
		for i, b := range doc.ProactiveBudgets {
			if b <= 0 {
				return compose.Config{}, fmt.Errorf("composer: proactive budget %d must be positive", i)
			}
			cfg.ProactiveBudgets[i] = b
		}
	}
	if cfg.ReactiveBudget > cfg.TotalBudget {
		return compose.Config{}, fmt.Errorf("composer: reactive budget %d exceeds total %d", cfg.ReactiveBudget, cfg.TotalBudget)
	}
	return cfg, nil
}

func validateBudgets(library *behavior.Library, cfg compose.Config) error {
	for _, b := range library.All() {
		if b.Type == behavior.Reactive && b.TokenBudget > cfg.ReactiveBudget {
			return fmt.Errorf("behavior %s: budget %d exceeds reactive slot %d", b.ID, b.TokenBudget, cfg.ReactiveBudget)
		}
		if b.TokenBudget > cfg.TotalBudget {
			return fmt.Errorf("behavior %s: budget %d exceeds total %d", b.ID, b.TokenBudget, cfg.TotalBudget)
		}
	}
	return nil
}

// #endregion composer

// #region intents

func resolveIntents(doc map[string][]string) ([]intent.Example, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("intents: at least one intent is required")
	}
	names := sortedKeys(doc)
	intents := make([]intent.Example, 0, len(doc))
	for _, name := range names {
		examples := doc[name]
		if len(examples) == 0 {
			return nil, fmt.Errorf("intent %s: no labeled examples", name)
		}
		intents = append(intents, intent.Example{
			Intent:   intent.Intent(name),
			Examples: examples,
		})
	}
	return intents, nil
}

// #endregion intents

// #region helpers

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// #endregion helpers
