package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// fileSchema is the on-disk YAML shape; Load translates it into the
// in-memory Config with its thread-safe registries.
type fileSchema struct {
	Defaults     *OrchestratorDefaults         `yaml:"defaults"`
	Retrieval    *RetrievalConfig              `yaml:"retrieval"`
	Retention    *RetentionConfig              `yaml:"retention"`
	Masking      *MaskingConfig                `yaml:"masking"`
	Confidence   *ConfidenceWeights            `yaml:"confidence_weights"`
	Providers    map[string]*ProviderConfig    `yaml:"providers"`
	LLMProviders map[string]*LLMProviderConfig `yaml:"llm_providers"`
	Database     DatabaseSection               `yaml:"database"`
	Redis        RedisSection                  `yaml:"redis"`
}

var validate = validator.New()

// Load reads a YAML configuration file from path, expanding {{.VAR}}
// references against the process environment (pkg/config/envexpand.go,
// kept verbatim from the teacher), validates every section via struct
// tags, and returns the assembled Config.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, NewLoadError(path, err)
	}

	expanded := ExpandEnv(raw)

	var schema fileSchema
	if err := yaml.Unmarshal(expanded, &schema); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	if schema.Defaults == nil {
		schema.Defaults = DefaultOrchestratorDefaults()
	}
	if schema.Retrieval == nil {
		schema.Retrieval = DefaultRetrievalConfig()
	}
	if schema.Retention == nil {
		schema.Retention = DefaultRetentionConfig()
	}
	if schema.Masking == nil {
		schema.Masking = DefaultMaskingConfig()
	}
	weights := DefaultConfidenceWeights()
	if schema.Confidence != nil {
		weights = *schema.Confidence
	}

	cfg := &Config{
		Defaults:            schema.Defaults,
		Retrieval:            schema.Retrieval,
		Retention:            schema.Retention,
		Masking:               schema.Masking,
		ConfidenceWt:          weights,
		ProviderRegistry:      NewProviderRegistry(schema.Providers),
		LLMProviderRegistry:   NewLLMProviderRegistry(schema.LLMProviders),
		Database:              schema.Database,
		Redis:                 schema.Redis,
	}

	if err := cfg.validateAll(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validateAll() error {
	if err := validate.Struct(c.Defaults); err != nil {
		return NewValidationError("defaults", "", "", fmt.Errorf("%w: %v", ErrValidationFailed, err))
	}
	if err := validate.Struct(c.Retrieval); err != nil {
		return NewValidationError("retrieval", "", "", fmt.Errorf("%w: %v", ErrValidationFailed, err))
	}
	if err := validate.Struct(c.Database); err != nil {
		return NewValidationError("database", "", "", fmt.Errorf("%w: %v", ErrValidationFailed, err))
	}
	if err := validate.Struct(c.Redis); err != nil {
		return NewValidationError("redis", "", "", fmt.Errorf("%w: %v", ErrValidationFailed, err))
	}
	for id, p := range c.ProviderRegistry.GetAll() {
		if err := validate.Struct(p); err != nil {
			return NewValidationError("provider", id, "", fmt.Errorf("%w: %v", ErrValidationFailed, err))
		}
	}
	for name, p := range c.LLMProviderRegistry.GetAll() {
		if err := validate.Struct(p); err != nil {
			return NewValidationError("llm_provider", name, "", fmt.Errorf("%w: %v", ErrValidationFailed, err))
		}
	}
	return nil
}
