//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/queryweave/pkg/models"
)

func TestConversationRepo_CreateGetSetStatus(t *testing.T) {
	pool := newTestPool(t)
	repo := NewConversationRepo(pool)
	ctx := context.Background()

	c, err := repo.Create(ctx, "user-1", "provider-1")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, models.ConversationActive, c.Status)

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Nil(t, got.DeletedAt)

	require.NoError(t, repo.SetStatus(ctx, c.ID, models.ConversationCompleted))
	got, err = repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationCompleted, got.Status)
}

func TestConversationRepo_Get_NotFound(t *testing.T) {
	pool := newTestPool(t)
	repo := NewConversationRepo(pool)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationRepo_SoftDeleteOlderThan(t *testing.T) {
	pool := newTestPool(t)
	repo := NewConversationRepo(pool)
	ctx := context.Background()

	stale, err := repo.Create(ctx, "user-1", "provider-1")
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus(ctx, stale.ID, models.ConversationCompleted))

	fresh, err := repo.Create(ctx, "user-1", "provider-1")
	require.NoError(t, err)
	require.NoError(t, repo.SetStatus(ctx, fresh.ID, models.ConversationCompleted))

	// Backdate only the stale conversation's updated_at so the cutoff
	// selects it and not the freshly-completed one.
	_, err = pool.Exec(ctx, `UPDATE conversations SET updated_at = $2 WHERE id = $1`,
		stale.ID, time.Now().Add(-48*time.Hour))
	require.NoError(t, err)

	n, err := repo.SoftDeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)

	got, err = repo.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DeletedAt)
}
