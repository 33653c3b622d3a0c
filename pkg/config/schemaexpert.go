package config

// SchemaExpertConfig tunes the Schema Expert's (C5) table-selection and
// foreign-key-closure step, per spec.md §4.3.
type SchemaExpertConfig struct {
	// TopKTables bounds how many tables the relevance scorer keeps before
	// foreign-key closure expansion.
	TopKTables int `yaml:"top_k_tables" validate:"required,min=1"`

	// RecencyBoost is added to a table's score when the same conversation
	// previously selected it, per spec.md §4.3 step 3(c).
	RecencyBoost float64 `yaml:"recency_boost" validate:"min=0"`
}

// DefaultSchemaExpertConfig returns the spec.md §4.3 default (top_k=8).
func DefaultSchemaExpertConfig() *SchemaExpertConfig {
	return &SchemaExpertConfig{
		TopKTables:   8,
		RecencyBoost: 0.15,
	}
}
