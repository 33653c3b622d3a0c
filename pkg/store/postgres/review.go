package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tarsy-labs/queryweave/pkg/models"
)

// ReviewRepo persists ReviewQueueItem rows. Priority is recomputed on
// Enqueue from pkg/review's formula and stored so ListQueue can order by a
// plain column, mirroring the teacher's pattern of deriving display state
// from stored rows in pkg/services/stage_service.go.
type ReviewRepo struct {
	pool *pgxpool.Pool
}

// NewReviewRepo constructs a ReviewRepo over an open pool.
func NewReviewRepo(pool *pgxpool.Pool) *ReviewRepo {
	return &ReviewRepo{pool: pool}
}

// Enqueue inserts a new pending review item.
func (r *ReviewRepo) Enqueue(ctx context.Context, item *models.ReviewQueueItem) error {
	reasons := make([]string, len(item.Reasons))
	for i, reason := range item.Reasons {
		reasons[i] = string(reason)
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO review_queue_items (id, turn_id, example_id, reasons, confidence, decision, priority)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		item.ID, item.TurnID, item.ExampleID, reasons, item.Confidence, models.DecisionPending, item.Priority)
	if err := row.Scan(&item.CreatedAt); err != nil {
		return fmt.Errorf("enqueue review item: %w", err)
	}
	return nil
}

// ListQueue returns pending items ordered by priority (highest first, then
// oldest first), the computed view the review dashboard reads.
func (r *ReviewRepo) ListQueue(ctx context.Context, limit int) ([]*models.ReviewQueueItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, turn_id, example_id, reasons, confidence, decision, priority, created_at
		FROM review_queue_items
		WHERE decision = 'pending'
		ORDER BY priority DESC, created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list review queue: %w", err)
	}
	defer rows.Close()

	var items []*models.ReviewQueueItem
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Decide records a reviewer's decision on a queued item. The
// `decision = 'pending'` guard makes this a true compare-and-swap:
// calling Decide twice on the same item (or racing two reviewers)
// transitions it once, and every later call affects zero rows. decided
// reports whether this call was the one that performed the transition.
func (r *ReviewRepo) Decide(ctx context.Context, id uuid.UUID, decision models.ReviewDecision, decidedBy string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE review_queue_items SET decision = $2, decided_at = now(), decided_by = $3
		WHERE id = $1 AND decision = 'pending'`,
		id, decision, decidedBy)
	if err != nil {
		return false, fmt.Errorf("decide review item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanReviewItem(row rowScanner) (*models.ReviewQueueItem, error) {
	var item models.ReviewQueueItem
	var reasons []string
	var exampleID *uuid.UUID
	if err := row.Scan(&item.ID, &item.TurnID, &exampleID, &reasons, &item.Confidence,
		&item.Decision, &item.Priority, &item.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan review item: %w", err)
	}
	item.ExampleID = exampleID
	item.Reasons = make([]models.ReviewReason, len(reasons))
	for i, reason := range reasons {
		item.Reasons[i] = models.ReviewReason(reason)
	}
	return &item, nil
}
