// Package review implements the Review Service (C11): the
// PendingReview → (Approved | Rejected) state machine over
// ReviewQueueItem, its priority formula, and the queue read-model.
// Grounded on the teacher's pkg/services/stage_service.go pattern of
// deriving display state from stored rows rather than persisting
// derived state, and original_source/src/text2x/api/routes/review.py
// for the approve/reject surface.
package review

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tarsy-labs/queryweave/pkg/models"
)

// PriorityInputs are the signals the priority formula reads, per
// spec.md §4.9.
type PriorityInputs struct {
	ValidationFailed      bool
	UserSubmittedCorrection bool
	Confidence            float64
}

// Priority computes the review-queue sort key: 100 for a validation
// failure, 50 for a user-submitted correction, plus up to 70 for low
// confidence (only scored below the 0.7 cutoff).
func Priority(in PriorityInputs) int {
	priority := 0
	if in.ValidationFailed {
		priority += 100
	}
	if in.UserSubmittedCorrection {
		priority += 50
	}
	if in.Confidence < 0.7 {
		priority += int(roundHalfUp((0.7 - in.Confidence) * 100))
	}
	return priority
}

func roundHalfUp(f float64) float64 {
	if f < 0 {
		return -roundHalfUp(-f)
	}
	whole := float64(int(f))
	if f-whole >= 0.5 {
		return whole + 1
	}
	return whole
}

// ExampleRepo is the subset of pkg/store/postgres.ExampleRepo this
// package depends on.
type ExampleRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Example, error)
	Create(ctx context.Context, e *models.Example) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.ExampleStatus, isGoodExample bool, resetEmbeddingsGenerated bool) error
}

// QueueRepo is the subset of pkg/store/postgres.ReviewRepo this package
// depends on. Decide's bool return reports whether this call performed
// the pending→decided transition, so the caller can tell a fresh
// decision from a replay of one already made.
type QueueRepo interface {
	Enqueue(ctx context.Context, item *models.ReviewQueueItem) error
	ListQueue(ctx context.Context, limit int) ([]*models.ReviewQueueItem, error)
	Decide(ctx context.Context, id uuid.UUID, decision models.ReviewDecision, decidedBy string) (bool, error)
}

// Notifier is notified when a new item is enqueued, satisfied by
// pkg/notify.Service (nil-safe).
type Notifier interface {
	NotifyReviewQueued(ctx context.Context, item *models.ReviewQueueItem)
}

// Service runs the review-queue state machine.
type Service struct {
	examples ExampleRepo
	queue    QueueRepo
	notifier Notifier
}

// New builds a Service. notifier may be nil.
func New(examples ExampleRepo, queue QueueRepo, notifier Notifier) *Service {
	return &Service{examples: examples, queue: queue, notifier: notifier}
}

// Enqueue computes the item's priority and adds it to the review queue,
// notifying any configured Notifier.
func (s *Service) Enqueue(ctx context.Context, turnID uuid.UUID, exampleID *uuid.UUID, reasons []models.ReviewReason, confidence float64, in PriorityInputs) (*models.ReviewQueueItem, error) {
	item := &models.ReviewQueueItem{
		ID:         uuid.New(),
		TurnID:     turnID,
		ExampleID:  exampleID,
		Reasons:    reasons,
		Confidence: confidence,
		Decision:   models.DecisionPending,
		Priority:   Priority(in),
	}
	if err := s.queue.Enqueue(ctx, item); err != nil {
		return nil, fmt.Errorf("review: enqueue: %w", err)
	}
	if s.notifier != nil {
		s.notifier.NotifyReviewQueued(ctx, item)
	}
	return item, nil
}

// ListQueue returns up to limit pending items, highest priority first —
// the computed view a review dashboard reads.
func (s *Service) ListQueue(ctx context.Context, limit int) ([]*models.ReviewQueueItem, error) {
	items, err := s.queue.ListQueue(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("review: list queue: %w", err)
	}
	return items, nil
}

// Reject terminates a queue item in the Rejected state. The decision is
// a compare-and-swap on the pending state, so a repeated Reject call
// (the same item decided twice) is a no-op rather than a second
// transition.
func (s *Service) Reject(ctx context.Context, itemID uuid.UUID, reviewer string) error {
	if _, err := s.queue.Decide(ctx, itemID, models.DecisionRejected, reviewer); err != nil {
		return fmt.Errorf("review: reject: %w", err)
	}
	return nil
}

// Approve terminates a queue item in the Approved state. When
// correctedQuery is non-empty, the original example (if any) is flipped
// to is_good_example=false and a new derived example carrying the
// corrected query is created Approved with is_good_example=true and
// EmbeddingsGenerated left false so the indexer picks it up, per
// spec.md §4.9. The queue decision is claimed first so a repeated
// Approve call on an already-decided item is a true no-op: it neither
// re-demotes the original example nor creates a second derived one,
// satisfying the approve idempotence law in spec.md §8.
func (s *Service) Approve(ctx context.Context, item *models.ReviewQueueItem, reviewer, correctedQuery string) error {
	decided, err := s.queue.Decide(ctx, item.ID, models.DecisionApproved, reviewer)
	if err != nil {
		return fmt.Errorf("review: approve: %w", err)
	}
	if !decided {
		return nil
	}

	if correctedQuery != "" && item.ExampleID != nil {
		original, err := s.examples.Get(ctx, *item.ExampleID)
		if err != nil {
			return fmt.Errorf("review: approve: load original example: %w", err)
		}
		if err := s.examples.SetStatus(ctx, original.ID, models.ExampleApproved, false, false); err != nil {
			return fmt.Errorf("review: approve: demote original example: %w", err)
		}

		derived := &models.Example{
			ID:                   uuid.New(),
			ProviderID:           original.ProviderID,
			NaturalLanguageQuery: original.NaturalLanguageQuery,
			GeneratedQuery:       correctedQuery,
			IsGoodExample:        true,
			Status:               models.ExampleApproved,
			InvolvedTables:       original.InvolvedTables,
			QueryIntent:          original.QueryIntent,
			ComplexityLevel:      original.ComplexityLevel,
			SourceConversationID: original.SourceConversationID,
			ReviewedBy:           reviewer,
		}
		if err := s.examples.Create(ctx, derived); err != nil {
			return fmt.Errorf("review: approve: create derived example: %w", err)
		}
	} else if item.ExampleID != nil {
		if err := s.examples.SetStatus(ctx, *item.ExampleID, models.ExampleApproved, true, true); err != nil {
			return fmt.Errorf("review: approve: promote example: %w", err)
		}
	}

	return nil
}
