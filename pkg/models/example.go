package models

import (
	"time"

	"github.com/google/uuid"
)

// ExampleStatus tracks an Example's position in the review pipeline.
type ExampleStatus string

const (
	ExamplePendingReview ExampleStatus = "pending_review"
	ExampleApproved      ExampleStatus = "approved"
	ExampleRejected      ExampleStatus = "rejected"
)

// QueryIntent categorizes the kind of query an Example demonstrates, used
// by the intent-filtered retrieval strategy.
type QueryIntent string

const (
	IntentAggregation   QueryIntent = "aggregation"
	IntentFilter        QueryIntent = "filter"
	IntentJoin          QueryIntent = "join"
	IntentSort          QueryIntent = "sort"
	IntentGroupBy       QueryIntent = "group_by"
	IntentSubquery      QueryIntent = "subquery"
	IntentWindowFunc    QueryIntent = "window_function"
	IntentCTE           QueryIntent = "cte"
	IntentUnion         QueryIntent = "union"
	IntentOther         QueryIntent = "other"
)

// ComplexityLevel buckets an Example (and a generated query) by structural
// complexity, used by the complexity_match confidence signal.
type ComplexityLevel string

const (
	ComplexitySimple  ComplexityLevel = "simple"
	ComplexityMedium  ComplexityLevel = "medium"
	ComplexityComplex ComplexityLevel = "complex"
)

// Example is a stored natural-language-question/generated-query pair used
// by the Retrieval Engine (C6) to ground new query generations. Good
// examples are reinforced; bad examples (IsGoodExample=false) teach the
// system what to avoid. Grounded on
// original_source/src/text2x/models/rag.py's RAGExample.
type Example struct {
	ID                    uuid.UUID       `json:"id"`
	ProviderID            string          `json:"provider_id"`
	NaturalLanguageQuery  string          `json:"natural_language_query"`
	GeneratedQuery        string          `json:"generated_query"`
	IsGoodExample         bool            `json:"is_good_example"`
	Status                ExampleStatus   `json:"status"`
	InvolvedTables        []string        `json:"involved_tables"`
	QueryIntent           QueryIntent     `json:"query_intent"`
	ComplexityLevel       ComplexityLevel `json:"complexity_level"`
	ReviewedBy            string          `json:"reviewed_by,omitempty"`
	ReviewedAt            *time.Time      `json:"reviewed_at,omitempty"`
	ExpertCorrectedQuery  string          `json:"expert_corrected_query,omitempty"`
	ReviewNotes           string          `json:"review_notes,omitempty"`
	SourceConversationID  *uuid.UUID      `json:"source_conversation_id,omitempty"`
	Embedding             []float64       `json:"-"`
	EmbeddingsGenerated   bool            `json:"embeddings_generated"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// QueryForRetrieval returns the expert-corrected query when present,
// otherwise the originally generated one, matching
// RAGExample.get_query_for_rag in original_source.
func (e Example) QueryForRetrieval() string {
	if e.ExpertCorrectedQuery != "" {
		return e.ExpertCorrectedQuery
	}
	return e.GeneratedQuery
}

// IsApproved reports whether this example has passed review.
func (e Example) IsApproved() bool {
	return e.Status == ExampleApproved
}
