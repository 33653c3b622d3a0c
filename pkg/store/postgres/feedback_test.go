//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/queryweave/pkg/models"
)

func TestFeedbackRepo_CreateByTurn(t *testing.T) {
	pool := newTestPool(t)
	convRepo := NewConversationRepo(pool)
	turnRepo := NewTurnRepo(pool)
	feedbackRepo := NewFeedbackRepo(pool)
	ctx := context.Background()

	conv, err := convRepo.Create(ctx, "user-1", "provider-1")
	require.NoError(t, err)
	turn := &models.Turn{
		ID: uuid.New(), ConversationID: conv.ID, TurnNumber: 1,
		UserInput: "show me all customers", GeneratedQuery: "SELECT * FROM customers",
		Confidence: models.ConfidenceScore{Value: 0.95}, Iterations: 1,
	}
	require.NoError(t, turnRepo.Create(ctx, turn))

	f := &models.Feedback{
		ID: uuid.New(), TurnID: turn.ID, Rating: models.RatingUp,
		Category: models.CategoryGreatResult, UserID: "user-1",
	}
	require.NoError(t, feedbackRepo.Create(ctx, f))
	assert.False(t, f.CreatedAt.IsZero())

	got, err := feedbackRepo.ByTurn(ctx, turn.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, models.RatingUp, got.Rating)
}

func TestFeedbackRepo_Create_RejectsSecondFeedbackForSameTurn(t *testing.T) {
	pool := newTestPool(t)
	convRepo := NewConversationRepo(pool)
	turnRepo := NewTurnRepo(pool)
	feedbackRepo := NewFeedbackRepo(pool)
	ctx := context.Background()

	conv, err := convRepo.Create(ctx, "user-1", "provider-1")
	require.NoError(t, err)
	turn := &models.Turn{
		ID: uuid.New(), ConversationID: conv.ID, TurnNumber: 1,
		UserInput: "show me all customers", GeneratedQuery: "SELECT * FROM customers",
		Confidence: models.ConfidenceScore{Value: 0.95}, Iterations: 1,
	}
	require.NoError(t, turnRepo.Create(ctx, turn))

	require.NoError(t, feedbackRepo.Create(ctx, &models.Feedback{
		ID: uuid.New(), TurnID: turn.ID, Rating: models.RatingUp,
		Category: models.CategoryGreatResult, UserID: "user-1",
	}))

	// Feedback is one-per-turn (spec.md §3's invariant); a second insert
	// against the same turn_id must violate the unique constraint.
	err = feedbackRepo.Create(ctx, &models.Feedback{
		ID: uuid.New(), TurnID: turn.ID, Rating: models.RatingDown,
		Category: models.CategorySyntaxError, UserID: "user-1",
	})
	assert.Error(t, err)
}
