package config

// MaskingConfig controls pkg/masking's redaction of sensitive sample rows
// returned by a Provider's dry-run/execute capability. Unlike the teacher's
// MCP-server-keyed MaskingConfig, this is keyed implicitly by annotation
// (Annotation.Sensitive) rather than by server ID — see DESIGN.md's
// pkg/masking entry for why the rewrite was necessary.
type MaskingConfig struct {
	Enabled bool `yaml:"enabled"`

	// CustomPatterns are applied in addition to the built-in ones (email,
	// phone, SSN, credit card) regardless of annotation status.
	CustomPatterns []MaskingPattern `yaml:"custom_patterns,omitempty"`
}

// MaskingPattern is one named regex substitution rule.
type MaskingPattern struct {
	Name        string `yaml:"name" validate:"required"`
	Pattern     string `yaml:"pattern" validate:"required"`
	Replacement string `yaml:"replacement"`
	Description string `yaml:"description,omitempty"`
}

// DefaultMaskingConfig returns masking enabled with no custom patterns.
func DefaultMaskingConfig() *MaskingConfig {
	return &MaskingConfig{Enabled: true}
}
