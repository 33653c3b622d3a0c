// Package cleanup provides data retention and cleanup services.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/tarsy-labs/queryweave/pkg/config"
)

// ConversationRetention soft-deletes stale Conversation rows. Implemented
// by *postgres.ConversationRepo.
type ConversationRetention interface {
	SoftDeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service periodically soft-deletes completed/abandoned Conversations
// past their retention window (spec.md's data model marks Conversation
// deletion as a soft operation via deleted_at). Retargeted from the
// teacher's Service, which soft-deleted AlertSession rows and purged
// orphaned Event rows via two separate ent-backed services; this domain
// has one retention concern, so the cleanup loop skeleton
// (Start/Stop/run/runAll) is kept but collapsed to a single repository.
type Service struct {
	config       *config.RetentionConfig
	conversation ConversationRetention

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service.
func NewService(cfg *config.RetentionConfig, conversation ConversationRetention) *Service {
	return &Service{config: cfg, conversation: conversation}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"conversation_retention_days", s.config.ConversationRetentionDays,
		"interval", s.config.CleanupInterval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	s.softDeleteOldConversations(ctx)
}

func (s *Service) softDeleteOldConversations(_ context.Context) {
	cutoff := time.Now().AddDate(0, 0, -s.config.ConversationRetentionDays)
	count, err := s.conversation.SoftDeleteOlderThan(context.Background(), cutoff)
	if err != nil {
		slog.Error("Retention: soft-delete conversations failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("Retention: soft-deleted old conversations", "count", count)
	}
}
