// Package notify sends a Slack message when the Review Service enqueues a
// new ReviewQueueItem (C10/C11's human-in-the-loop surface). Grounded on
// the teacher's pkg/slack: same nil-safe Service (no-op when
// unconfigured), same thin Client wrapper over slack-go, retargeted from
// alert-session start/terminal notifications to review-queue enqueue
// notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/tarsy-labs/queryweave/pkg/config"
	"github.com/tarsy-labs/queryweave/pkg/models"
)

// postTimeout bounds a single chat.postMessage call, mirrored from the
// teacher's NotifySessionCompleted budget.
const postTimeout = 10 * time.Second

// Client is a thin wrapper around the slack-go SDK, kept from the
// teacher's pkg/slack.Client.
type Client struct {
	api       *goslack.Client
	channelID string
}

// NewClient builds a Client targeting channelID.
func NewClient(token, channelID string) *Client {
	return &Client{api: goslack.New(token), channelID: channelID}
}

// PostMessage sends blocks to the configured channel.
func (c *Client) PostMessage(ctx context.Context, blocks []goslack.Block) error {
	ctx, cancel := context.WithTimeout(ctx, postTimeout)
	defer cancel()

	_, _, err := c.api.PostMessageContext(ctx, c.channelID, goslack.MsgOptionBlocks(blocks...))
	if err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return nil
}

// Service delivers review-queue notifications to Slack. Nil-safe: every
// method is a no-op on a nil *Service, the pattern the teacher uses for
// pkg/slack.Service.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// New builds a Service from cfg. Returns nil if Token or Channel is
// empty, matching the teacher's NewService gating.
func New(cfg *config.NotifyConfig) *Service {
	if cfg == nil || cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "notify-service"),
	}
}

// NotifyReviewQueued posts a message announcing a new ReviewQueueItem.
// Fail-open: delivery errors are logged, never returned, so a Slack
// outage never blocks the feedback-routing write path.
func (s *Service) NotifyReviewQueued(ctx context.Context, item *models.ReviewQueueItem) {
	if s == nil {
		return
	}

	blocks := buildReviewQueuedMessage(item, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks); err != nil {
		s.logger.Error("failed to send review-queued notification",
			"turn_id", item.TurnID, "error", err)
	}
}

func buildReviewQueuedMessage(item *models.ReviewQueueItem, dashboardURL string) []goslack.Block {
	url := fmt.Sprintf("%s/review/%s", dashboardURL, item.ID)
	text := fmt.Sprintf(":mag: *New item awaiting review* (priority %d)\nConfidence: %.2f\n<%s|Open in review queue>",
		item.Priority, item.Confidence, url)

	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
			nil, nil,
		),
	}
}
