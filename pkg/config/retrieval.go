package config

// RetrievalConfig tunes the Retrieval Engine (C6): per-strategy weights and
// the good/bad example score boosts, per spec.md §4.4.
type RetrievalConfig struct {
	TopK int `yaml:"top_k" validate:"required,min=1"`

	// GoodExampleBoost / BadExamplePenalty multiply a candidate's merged
	// score before the [0,1] clamp.
	GoodExampleBoost  float64 `yaml:"good_example_boost" validate:"required,min=1"`
	BadExamplePenalty float64 `yaml:"bad_example_penalty" validate:"required,min=0,max=1"`

	// MinSimilarity is the score floor below which a ranked example is
	// dropped from the result, per spec.md §4.4.
	MinSimilarity float64 `yaml:"min_similarity" validate:"min=0,max=1"`

	// StrategyTimeout bounds each of the four concurrent strategies
	// (keyword/vector/schema-aware/intent-filtered); a strategy that
	// misses it contributes no candidates rather than blocking the merge.
	StrategyTimeoutSeconds int `yaml:"strategy_timeout_seconds" validate:"required,min=1"`
}

// DefaultRetrievalConfig returns the built-in retrieval defaults matching
// spec.md §4.4 (boost ×1.1, penalty ×0.7, min_similarity 0.7).
func DefaultRetrievalConfig() *RetrievalConfig {
	return &RetrievalConfig{
		TopK:                   5,
		GoodExampleBoost:       1.1,
		BadExamplePenalty:      0.7,
		MinSimilarity:          0.7,
		StrategyTimeoutSeconds: 5,
	}
}

// ConfidenceWeights are the five signal weights used by
// pkg/querybuilder/confidence.go, matching spec.md §4.6 exactly
// (0.30/0.20/0.20/0.15/0.15).
type ConfidenceWeights struct {
	SchemaCoverage    float64 `yaml:"schema_coverage"`
	ExampleSimilarity float64 `yaml:"example_similarity"`
	ComplexityMatch   float64 `yaml:"complexity_match"`
	IterationPenalty  float64 `yaml:"iteration_penalty"`
	NonAmbiguity      float64 `yaml:"non_ambiguity"`
}

// DefaultConfidenceWeights returns the spec-mandated weighting.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		SchemaCoverage:    0.30,
		ExampleSimilarity: 0.20,
		ComplexityMatch:   0.20,
		IterationPenalty:  0.15,
		NonAmbiguity:      0.15,
	}
}
