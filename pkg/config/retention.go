package config

import "time"

// RetentionConfig controls data retention and cleanup behavior.
type RetentionConfig struct {
	// ConversationRetentionDays is how many days to keep completed/abandoned
	// conversations before soft-deleting them (setting deleted_at).
	ConversationRetentionDays int `yaml:"conversation_retention_days"`

	// CleanupInterval is how often the cleanup loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		ConversationRetentionDays: 365,
		CleanupInterval:           12 * time.Hour,
	}
}
