package models

// ConfidenceScore is the weighted-sum output of the 5-signal scorer in
// pkg/querybuilder/confidence.go. Value is rounded to 3 decimals; the
// per-signal breakdown is kept for explainability in the reasoning trace
// and for review-queue triage.
type ConfidenceScore struct {
	Value              float64 `json:"value"`
	SchemaCoverage     float64 `json:"schema_coverage"`
	ExampleSimilarity  float64 `json:"example_similarity"`
	ComplexityMatch    float64 `json:"complexity_match"`
	IterationPenalty   float64 `json:"iteration_penalty"`
	NonAmbiguity       float64 `json:"non_ambiguity"`
}
