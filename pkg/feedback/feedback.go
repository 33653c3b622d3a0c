// Package feedback implements the Feedback Router (C10): turning a
// user's thumbs up/down rating on a Turn into an Example (or an update to
// an existing one) and, for anything short of high-confidence approval,
// a review-queue entry. Rules are exactly spec.md §4.8. Grounded on
// original_source/src/text2x/services/feedback_service.py for the
// rating/confidence decision table, and wraps pkg/review's Enqueue the
// same way pkg/slack is wrapped by the teacher's session-lifecycle
// services — a notification side effect of a write, never load-bearing.
package feedback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tarsy-labs/queryweave/pkg/embeddings"
	"github.com/tarsy-labs/queryweave/pkg/models"
	"github.com/tarsy-labs/queryweave/pkg/review"
)

// highConfidenceThreshold is the rating table's "c ≥ 0.9" cutoff for an
// immediate Approved example on a thumbs-up.
const highConfidenceThreshold = 0.9

// ExampleRepo is the subset of pkg/store/postgres.ExampleRepo this
// package depends on.
type ExampleRepo interface {
	Create(ctx context.Context, e *models.Example) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.ExampleStatus, isGoodExample bool, resetEmbeddingsGenerated bool) error
	ByQuestionAndConversation(ctx context.Context, conversationID uuid.UUID, question string) (*models.Example, error)
	SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float64) error
}

// ReviewEnqueuer is the subset of pkg/review.Service this package
// depends on.
type ReviewEnqueuer interface {
	Enqueue(ctx context.Context, turnID uuid.UUID, exampleID *uuid.UUID, reasons []models.ReviewReason, confidence float64, in review.PriorityInputs) (*models.ReviewQueueItem, error)
}

// Router applies the C10 rating/confidence decision table.
type Router struct {
	examples ExampleRepo
	queue    ReviewEnqueuer
	embedder embeddings.Embedder
}

// New builds a Router. embedder may be nil, in which case newly approved
// examples are left unindexed for a separate indexing pass to pick up.
func New(examples ExampleRepo, queue ReviewEnqueuer, embedder embeddings.Embedder) *Router {
	return &Router{examples: examples, queue: queue, embedder: embedder}
}

// Route applies feedback f recorded against turn to the Example store
// and, when warranted, the review queue.
func (r *Router) Route(ctx context.Context, turn *models.Turn, f *models.Feedback) error {
	existing, err := r.examples.ByQuestionAndConversation(ctx, turn.ConversationID, turn.UserInput)
	hasExisting := err == nil && existing != nil

	switch {
	case f.IsPositive() && turn.Confidence.Value >= highConfidenceThreshold:
		return r.approveDirectly(ctx, turn, hasExisting, existing)

	case f.IsPositive():
		return r.queueForReview(ctx, turn, f, hasExisting, existing, true,
			[]models.ReviewReason{models.ReasonLowConfidence})

	default: // thumbs down
		return r.queueForReview(ctx, turn, f, hasExisting, existing, false,
			[]models.ReviewReason{models.ReasonNegativeFeedback})
	}
}

func (r *Router) approveDirectly(ctx context.Context, turn *models.Turn, hasExisting bool, existing *models.Example) error {
	if hasExisting {
		if err := r.examples.SetStatus(ctx, existing.ID, models.ExampleApproved, true, true); err != nil {
			return fmt.Errorf("feedback: approve existing example: %w", err)
		}
		r.enqueueIndexing(existing.ID, turn.GeneratedQuery)
		return nil
	}

	example := newExampleFromTurn(turn, true, models.ExampleApproved)
	if err := r.examples.Create(ctx, example); err != nil {
		return fmt.Errorf("feedback: create approved example: %w", err)
	}
	r.enqueueIndexing(example.ID, turn.GeneratedQuery)
	return nil
}

func (r *Router) queueForReview(ctx context.Context, turn *models.Turn, f *models.Feedback, hasExisting bool, existing *models.Example, isGoodExample bool, reasons []models.ReviewReason) error {
	var exampleID uuid.UUID
	if hasExisting {
		if err := r.examples.SetStatus(ctx, existing.ID, models.ExamplePendingReview, isGoodExample, false); err != nil {
			return fmt.Errorf("feedback: update existing example: %w", err)
		}
		exampleID = existing.ID
	} else {
		example := newExampleFromTurn(turn, isGoodExample, models.ExamplePendingReview)
		if err := r.examples.Create(ctx, example); err != nil {
			return fmt.Errorf("feedback: create pending example: %w", err)
		}
		exampleID = example.ID
	}

	if r.queue == nil {
		return nil
	}
	_, err := r.queue.Enqueue(ctx, turn.ID, &exampleID, reasons, turn.Confidence.Value, review.PriorityInputs{
		Confidence: turn.Confidence.Value,
	})
	if err != nil {
		return fmt.Errorf("feedback: enqueue review: %w", err)
	}
	return nil
}

// enqueueIndexing computes and stores an example's embedding in the
// background so the write path that recorded feedback never blocks on
// an embedding-model round trip, mirrored from the teacher's
// goroutine-dispatch idiom for fire-and-forget side effects.
func (r *Router) enqueueIndexing(exampleID uuid.UUID, text string) {
	if r.embedder == nil {
		return
	}
	go func() {
		ctx := context.Background()
		vec, err := r.embedder.Embed(ctx, text)
		if err != nil {
			slog.Error("feedback: background embedding failed", "example_id", exampleID, "error", err)
			return
		}
		if err := r.examples.SetEmbedding(ctx, exampleID, vec); err != nil {
			slog.Error("feedback: failed to store embedding", "example_id", exampleID, "error", err)
		}
	}()
}

func newExampleFromTurn(turn *models.Turn, isGoodExample bool, status models.ExampleStatus) *models.Example {
	return &models.Example{
		ID:                   uuid.New(),
		NaturalLanguageQuery: turn.UserInput,
		GeneratedQuery:       turn.GeneratedQuery,
		IsGoodExample:        isGoodExample,
		Status:               status,
		SourceConversationID: &turn.ConversationID,
	}
}
