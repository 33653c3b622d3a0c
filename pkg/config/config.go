package config

// Config is the umbrella configuration object built by Load, mirroring the
// teacher's pkg/config/config.go grouping of registries behind one object.
type Config struct {
	configDir string

	Defaults      *OrchestratorDefaults
	Retrieval     *RetrievalConfig
	Retention     *RetentionConfig
	Masking       *MaskingConfig
	SchemaExpert  *SchemaExpertConfig
	Notify        *NotifyConfig
	ConfidenceWt  ConfidenceWeights

	ProviderRegistry    *ProviderRegistry
	LLMProviderRegistry *LLMProviderRegistry

	Database DatabaseSection `yaml:"database"`
	Redis    RedisSection    `yaml:"redis"`
}

// DatabaseSection configures the Postgres connection used by
// pkg/database/pkg/store/postgres.
type DatabaseSection struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	Database string `yaml:"database" validate:"required"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisSection configures the shared rate-limit/cache backend
// (pkg/ratelimit).
type RedisSection struct {
	Addr     string `yaml:"addr" validate:"required"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// ConfigStats summarizes a loaded Config, mirroring the teacher's
// pkg/config/config.go Stats().
type ConfigStats struct {
	Providers    int
	LLMProviders int
}

// Stats returns registry sizes for startup logging.
func (c *Config) Stats() ConfigStats {
	stats := ConfigStats{}
	if c.ProviderRegistry != nil {
		stats.Providers = len(c.ProviderRegistry.GetAll())
	}
	if c.LLMProviderRegistry != nil {
		stats.LLMProviders = c.LLMProviderRegistry.Len()
	}
	return stats
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetProvider is a convenience wrapper over ProviderRegistry.Get.
func (c *Config) GetProvider(id string) (*ProviderConfig, error) {
	return c.ProviderRegistry.Get(id)
}
