package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tarsy-labs/queryweave/pkg/models"
)

// FeedbackRepo persists Feedback rows, one per Turn.
type FeedbackRepo struct {
	pool *pgxpool.Pool
}

// NewFeedbackRepo constructs a FeedbackRepo over an open pool.
func NewFeedbackRepo(pool *pgxpool.Pool) *FeedbackRepo {
	return &FeedbackRepo{pool: pool}
}

// Create inserts a user's feedback for a turn. Violates the turn_id unique
// constraint if feedback was already recorded, matching the "one feedback
// per turn" invariant of original_source's UserFeedback model.
func (r *FeedbackRepo) Create(ctx context.Context, f *models.Feedback) error {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO feedback (id, turn_id, rating, feedback_text, feedback_category, user_id)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		f.ID, f.TurnID, f.Rating, nullIfEmpty(f.Text), f.Category, f.UserID)
	if err := row.Scan(&f.CreatedAt); err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// ByTurn fetches the feedback recorded for a turn, if any.
func (r *FeedbackRepo) ByTurn(ctx context.Context, turnID uuid.UUID) (*models.Feedback, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, turn_id, rating, feedback_text, feedback_category, user_id, created_at
		FROM feedback WHERE turn_id = $1`, turnID)

	var f models.Feedback
	var text *string
	if err := row.Scan(&f.ID, &f.TurnID, &f.Rating, &text, &f.Category, &f.UserID, &f.CreatedAt); err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	if text != nil {
		f.Text = *text
	}
	return &f, nil
}
