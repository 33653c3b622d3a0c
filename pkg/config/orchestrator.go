package config

import "time"

// OrchestratorDefaults controls the Orchestrator's (C9) state machine: the
// iteration cap and the confidence/validation gate it enforces before
// emitting a result, per spec.md §4.7.
type OrchestratorDefaults struct {
	// MaxIterations bounds the Phase2<->Decide refinement loop.
	MaxIterations int `yaml:"max_iterations" validate:"required,min=1"`

	// MinConfidenceToEmit is the confidence threshold below which the
	// orchestrator keeps iterating (subject to MaxIterations) instead of
	// emitting a Result event.
	MinConfidenceToEmit float64 `yaml:"min_confidence_to_emit" validate:"required,min=0,max=1"`

	// ClarificationThreshold is the confidence floor below which a
	// terminated turn gets a Clarification event instead of a plain
	// Result, per spec.md §4.7.
	ClarificationThreshold float64 `yaml:"clarification_threshold" validate:"min=0,max=1"`

	// PhaseTimeout bounds each phase (schema expert / retrieval / query
	// builder / validation) within one iteration.
	PhaseTimeout time.Duration `yaml:"phase_timeout" validate:"required"`

	// TotalTimeout bounds the whole turn across all iterations.
	TotalTimeout time.Duration `yaml:"total_timeout" validate:"required"`
}

// DefaultOrchestratorDefaults returns the spec.md §4.7 defaults
// (max_iterations=5, confidence_threshold=0.85, clarification_threshold=0.6).
func DefaultOrchestratorDefaults() *OrchestratorDefaults {
	return &OrchestratorDefaults{
		MaxIterations:          5,
		MinConfidenceToEmit:    0.85,
		ClarificationThreshold: 0.6,
		PhaseTimeout:           20 * time.Second,
		TotalTimeout:           90 * time.Second,
	}
}
