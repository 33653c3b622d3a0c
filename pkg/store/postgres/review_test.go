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

func TestReviewRepo_EnqueueListQueue(t *testing.T) {
	pool := newTestPool(t)
	repo := NewReviewRepo(pool)
	ctx := context.Background()

	item := &models.ReviewQueueItem{
		ID: uuid.New(), TurnID: uuid.New(),
		Reasons: []models.ReviewReason{models.ReasonValidationFailed},
		Confidence: 0.4, Priority: 130,
	}
	require.NoError(t, repo.Enqueue(ctx, item))
	assert.False(t, item.CreatedAt.IsZero())

	got, err := repo.ListQueue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, item.ID, got[0].ID)
	assert.Equal(t, models.DecisionPending, got[0].Decision)
	assert.Equal(t, []models.ReviewReason{models.ReasonValidationFailed}, got[0].Reasons)
}

func TestReviewRepo_Decide_ClaimsTransitionOnce(t *testing.T) {
	pool := newTestPool(t)
	repo := NewReviewRepo(pool)
	ctx := context.Background()

	item := &models.ReviewQueueItem{ID: uuid.New(), TurnID: uuid.New(), Confidence: 0.5}
	require.NoError(t, repo.Enqueue(ctx, item))

	decided, err := repo.Decide(ctx, item.ID, models.DecisionApproved, "alice")
	require.NoError(t, err)
	assert.True(t, decided, "first Decide call claims the pending->decided transition")

	decided, err = repo.Decide(ctx, item.ID, models.DecisionApproved, "bob")
	require.NoError(t, err)
	assert.False(t, decided, "second Decide call on an already-decided item is a no-op")

	// ListQueue only surfaces pending items; a decided one must drop out
	// of the review-queue view regardless of how many times Decide ran.
	pending, err := repo.ListQueue(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReviewRepo_Decide_UnknownItemReturnsNotDecided(t *testing.T) {
	pool := newTestPool(t)
	repo := NewReviewRepo(pool)

	decided, err := repo.Decide(context.Background(), uuid.New(), models.DecisionRejected, "alice")
	require.NoError(t, err)
	assert.False(t, decided)
}
