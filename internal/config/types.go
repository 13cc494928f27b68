package config

import (
	"time"

	"github.com/danielpatrickdp/dialog-state/go-engine/internal/behavior"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/compose"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/embedder"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/intent"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/signal"
	"github.com/danielpatrickdp/dialog-state/go-engine/internal/situation"
)

// #region document

// Document is the raw YAML shape of the engine configuration.
type Document struct {
	Situation  SituationDoc            `yaml:"situation"`
	Categories map[string][]string     `yaml:"categories"` // category → dimensions; first is primary
	Rules      []RuleDoc               `yaml:"rules"`
	Behaviors  []BehaviorDoc           `yaml:"behaviors"`
	Intents    map[string][]string     `yaml:"intents"` // intent name → labeled examples
	Composer   ComposerDoc             `yaml:"composer"`
	Embedding  EmbeddingDoc            `yaml:"embedding"`
	Fallback   FallbackDoc             `yaml:"fallback"`
	Intent     IntentDoc               `yaml:"intent"`
}

// SituationDoc configures the situation vector.
type SituationDoc struct {
	Baseline    map[string]float64 `yaml:"baseline"`
	DecayRate   float64            `yaml:"decay_rate"`
	BoostAmount float64            `yaml:"boost_amount"`
	Tolerance   float64            `yaml:"tolerance"`
}

// RuleDoc is one signal rule.
type RuleDoc struct {
	ID         string      `yaml:"id"`
	Category   string      `yaml:"category"`
	Priority   string      `yaml:"priority"`
	Keywords   []string    `yaml:"keywords"`
	Examples   []string    `yaml:"examples"`
	Threshold  float64     `yaml:"threshold"`
	Suppresses []string    `yaml:"suppresses"`
	Knowledge  []EffectDoc `yaml:"knowledge"`
}

// EffectDoc is one knowledge mutation attached to a rule.
type EffectDoc struct {
	Key           string `yaml:"key"`
	Type          string `yaml:"type"`
	Scale         string `yaml:"scale"`
	Value         string `yaml:"value"`
	FromUtterance bool   `yaml:"from_utterance"`
}

// BehaviorDoc is one behavior record.
type BehaviorDoc struct {
	ID               string             `yaml:"id"`
	Category         string             `yaml:"category"`
	Priority         string             `yaml:"priority"`
	Affinity         map[string]float64 `yaml:"situation_affinity"`
	KnowledgeWeights map[string]float64 `yaml:"knowledge_weights"`
	Type             string             `yaml:"response_type"`
	TokenBudget      int                `yaml:"token_budget"`
	Outputs          []string           `yaml:"outputs"`
}

// ComposerDoc overrides response budgets.
type ComposerDoc struct {
	TotalBudget      int   `yaml:"total_budget"`
	ReactiveBudget   int   `yaml:"reactive_budget"`
	ProactiveBudgets []int `yaml:"proactive_budgets"`
}

// EmbeddingDoc configures the embedding service adapter.
type EmbeddingDoc struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"` // env var holding the key; never the key itself
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	CacheSize      int    `yaml:"cache_size"`
	MaxInputTokens int    `yaml:"max_input_tokens"`
}

// FallbackDoc names the clarification-biased default plan.
type FallbackDoc struct {
	BehaviorID string `yaml:"behavior_id"`
}

// IntentDoc tunes intent routing.
type IntentDoc struct {
	Threshold float64 `yaml:"threshold"`
}

// #endregion document

// #region resolved

// Config is the validated, resolved engine configuration. Read-only
// after Load; shared across conversations.
type Config struct {
	Situation          situation.Config
	CategoryDimensions map[string][]situation.Dimension
	PrimaryDimension   map[string]situation.Dimension
	Rules              []signal.Rule
	Library            *behavior.Library
	Intents            []intent.Example
	IntentThreshold    float64
	Composer           compose.Config
	Embedding          embedder.Config
	FallbackBehaviorID string
}

// EmbeddingTimeout converts the document seconds to a duration.
func embeddingTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// #endregion resolved
