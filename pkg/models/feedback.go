package models

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackRating is a thumbs up/down rating on a Turn's generated query.
type FeedbackRating string

const (
	RatingUp   FeedbackRating = "up"
	RatingDown FeedbackRating = "down"
)

// FeedbackCategory classifies why a user rated a query the way they did.
type FeedbackCategory string

const (
	CategoryIncorrectResult      FeedbackCategory = "incorrect_result"
	CategorySyntaxError          FeedbackCategory = "syntax_error"
	CategoryMissingContext       FeedbackCategory = "missing_context"
	CategoryPerformanceIssue     FeedbackCategory = "performance_issue"
	CategoryClarificationNeeded  FeedbackCategory = "clarification_needed"
	CategoryGreatResult          FeedbackCategory = "great_result"
	CategoryOther                FeedbackCategory = "other"
)

// Feedback is a user's rating of one Turn. One feedback per turn, grounded
// on original_source/src/text2x/models/feedback.py's UserFeedback.
type Feedback struct {
	ID           uuid.UUID        `json:"id"`
	TurnID       uuid.UUID        `json:"turn_id"`
	Rating       FeedbackRating   `json:"rating"`
	Text         string           `json:"feedback_text,omitempty"`
	Category     FeedbackCategory `json:"feedback_category"`
	UserID       string           `json:"user_id"`
	CreatedAt    time.Time        `json:"created_at"`
}

// IsPositive reports thumbs-up feedback.
func (f Feedback) IsPositive() bool {
	return f.Rating == RatingUp
}

// ReviewReason enumerates why a Turn or Example was routed to the review
// queue by the Feedback Router (C10).
type ReviewReason string

const (
	ReasonValidationFailed        ReviewReason = "validation_failed"
	ReasonUserCorrection          ReviewReason = "user_submitted_correction"
	ReasonLowConfidence           ReviewReason = "low_confidence"
	ReasonNegativeFeedback        ReviewReason = "negative_feedback"
)

// ReviewDecision is the outcome a human reviewer records for a queued item.
type ReviewDecision string

const (
	DecisionPending  ReviewDecision = "pending"
	DecisionApproved ReviewDecision = "approved"
	DecisionRejected ReviewDecision = "rejected"
)

// ReviewQueueItem is a Turn or Example awaiting expert review (C11). The
// Priority field is computed by pkg/review per spec.md's formula when the
// item is enqueued, stored in the priority column, and used by ListQueue
// to order the queue.
type ReviewQueueItem struct {
	ID             uuid.UUID      `json:"id"`
	TurnID         uuid.UUID      `json:"turn_id"`
	ExampleID      *uuid.UUID     `json:"example_id,omitempty"`
	Reasons        []ReviewReason `json:"reasons"`
	Confidence     float64        `json:"confidence"`
	Decision       ReviewDecision `json:"decision"`
	Priority       int            `json:"priority"`
	CreatedAt      time.Time      `json:"created_at"`
	DecidedAt      *time.Time     `json:"decided_at,omitempty"`
	DecidedBy      string         `json:"decided_by,omitempty"`
}
