// Package postgres holds hand-written pgx repositories over the tables
// created by pkg/database/migrations. It replaces the teacher's ent-backed
// services (pkg/services/session_service.go et al.) since ent's generated
// client cannot be produced without running `ent generate` — see
// DESIGN.md. The background-context-with-timeout transaction idiom is
// carried over from session_service.go's CreateSession.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tarsy-labs/queryweave/pkg/models"
)

// ErrNotFound is returned by repository Get methods when no row matches.
var ErrNotFound = errors.New("not found")

// ConversationRepo persists Conversation rows.
type ConversationRepo struct {
	pool *pgxpool.Pool
}

// NewConversationRepo constructs a ConversationRepo over an open pool.
func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

// Create inserts a new active Conversation.
func (r *ConversationRepo) Create(ctx context.Context, userID, providerID string) (*models.Conversation, error) {
	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c := &models.Conversation{
		ID:         uuid.New(),
		UserID:     userID,
		ProviderID: providerID,
		Status:     models.ConversationActive,
	}

	row := r.pool.QueryRow(dbCtx,
		`INSERT INTO conversations (id, user_id, provider_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		c.ID, c.UserID, c.ProviderID, c.Status,
	)
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

// Get fetches a Conversation by ID.
func (r *ConversationRepo) Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, provider_id, status, created_at, updated_at, deleted_at
		FROM conversations WHERE id = $1`, id)

	var c models.Conversation
	if err := row.Scan(&c.ID, &c.UserID, &c.ProviderID, &c.Status, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// SetStatus updates a Conversation's status.
func (r *ConversationRepo) SetStatus(ctx context.Context, id uuid.UUID, status models.ConversationStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE conversations SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set conversation status: %w", err)
	}
	return nil
}

// SoftDeleteOlderThan marks completed or abandoned conversations whose last
// update predates cutoff as deleted, returning the count affected. Used by
// pkg/cleanup.
func (r *ConversationRepo) SoftDeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE conversations SET deleted_at = now()
		WHERE deleted_at IS NULL
		AND status IN ('completed', 'abandoned')
		AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("soft delete old conversations: %w", err)
	}
	return tag.RowsAffected(), nil
}
