// Package conversation manages Conversation/Turn lifecycle on top of
// pkg/store/postgres: starting a conversation, appending a completed Turn
// with a monotonically increasing TurnNumber, and closing a conversation
// out when the orchestrator decides no further turns are expected.
// Grounded on pkg/services/session_service.go's background-context-with-
// timeout write idiom (teacher), generalized from ent transactions to the
// per-conversation pkg/convlock serialization this domain needs instead.
package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tarsy-labs/queryweave/pkg/convlock"
	"github.com/tarsy-labs/queryweave/pkg/models"
)

// writeTimeout bounds the background-context writes used for turn
// persistence, mirrored from the teacher's 10s session-write budget.
const writeTimeout = 10 * time.Second

// ConversationRepo is the subset of pkg/store/postgres.ConversationRepo
// this package depends on.
type ConversationRepo interface {
	Create(ctx context.Context, userID, providerID string) (*models.Conversation, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.ConversationStatus) error
}

// TurnRepo is the subset of pkg/store/postgres.TurnRepo this package
// depends on.
type TurnRepo interface {
	NextTurnNumber(ctx context.Context, conversationID uuid.UUID) (int, error)
	Create(ctx context.Context, t *models.Turn) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*models.Turn, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Turn, error)
}

// Manager coordinates Conversation/Turn persistence.
type Manager struct {
	conversations ConversationRepo
	turns         TurnRepo
	locks         *convlock.Registry
}

// New builds a Manager. locks may be shared across Managers; a nil locks
// registry is replaced with a fresh one.
func New(conversations ConversationRepo, turns TurnRepo, locks *convlock.Registry) *Manager {
	if locks == nil {
		locks = convlock.New()
	}
	return &Manager{conversations: conversations, turns: turns, locks: locks}
}

// Start begins a new Conversation for userID against providerID.
func (m *Manager) Start(ctx context.Context, userID, providerID string) (*models.Conversation, error) {
	dbCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	c, err := m.conversations.Create(dbCtx, userID, providerID)
	if err != nil {
		return nil, fmt.Errorf("conversation: start: %w", err)
	}
	return c, nil
}

// Get fetches a Conversation by ID.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c, err := m.conversations.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("conversation: get: %w", err)
	}
	return c, nil
}

// History returns every Turn recorded so far for a conversation, ordered
// oldest first — the prior-turn context the orchestrator folds into a
// follow-up question's prompt.
func (m *Manager) History(ctx context.Context, conversationID uuid.UUID) ([]*models.Turn, error) {
	turns, err := m.turns.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation: history: %w", err)
	}
	return turns, nil
}

// AppendTurn assigns the next TurnNumber for conversationID and persists
// the completed turn. Serialized per conversation via convlock so two
// concurrent turns against the same conversation can never collide on
// TurnNumber.
func (m *Manager) AppendTurn(ctx context.Context, conversationID uuid.UUID, turn *models.Turn) error {
	return m.locks.WithLock(conversationID, func() error {
		dbCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()

		next, err := m.turns.NextTurnNumber(dbCtx, conversationID)
		if err != nil {
			return fmt.Errorf("conversation: append turn: %w", err)
		}

		turn.ID = uuid.New()
		turn.ConversationID = conversationID
		turn.TurnNumber = next

		if err := m.turns.Create(dbCtx, turn); err != nil {
			return fmt.Errorf("conversation: append turn: %w", err)
		}
		return nil
	})
}

// Close marks a conversation completed or abandoned, ending its lifecycle.
func (m *Manager) Close(ctx context.Context, conversationID uuid.UUID, status models.ConversationStatus) error {
	if status != models.ConversationCompleted && status != models.ConversationAbandoned {
		return fmt.Errorf("conversation: close: invalid terminal status %q", status)
	}
	dbCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := m.conversations.SetStatus(dbCtx, conversationID, status); err != nil {
		return fmt.Errorf("conversation: close: %w", err)
	}
	return nil
}
