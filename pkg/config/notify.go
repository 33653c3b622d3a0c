package config

// NotifyConfig configures the Slack review-queue notifier. A Service
// built from a Config with an empty Token or Channel is nil (a no-op),
// matching the teacher's pkg/slack.NewService gating.
type NotifyConfig struct {
	Token        string `yaml:"token"`
	Channel      string `yaml:"channel"`
	DashboardURL string `yaml:"dashboard_url"`
}

// DefaultNotifyConfig returns an empty, disabled NotifyConfig.
func DefaultNotifyConfig() *NotifyConfig {
	return &NotifyConfig{}
}
