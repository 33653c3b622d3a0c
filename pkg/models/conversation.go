// Package models holds the domain types shared across the orchestrator,
// retrieval, and storage packages. They are plain structs with JSON tags,
// not database-mapped entities; the storage layer translates to and from
// them explicitly in pkg/store/postgres.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversationStatus tracks the lifecycle of a Conversation.
type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationCompleted ConversationStatus = "completed"
	ConversationAbandoned ConversationStatus = "abandoned"
)

// Conversation is a session between a user and the system, made up of one
// or more Turns against a single Provider.
type Conversation struct {
	ID         uuid.UUID          `json:"id"`
	UserID     string             `json:"user_id"`
	ProviderID string             `json:"provider_id"`
	Status     ConversationStatus `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	DeletedAt  *time.Time         `json:"deleted_at,omitempty"`
}

// Turn is a single natural-language question and its generated query within
// a Conversation. TurnNumber is 1-indexed and monotonically increasing per
// conversation, enforced by pkg/conversation.
type Turn struct {
	ID                    uuid.UUID         `json:"id"`
	ConversationID        uuid.UUID         `json:"conversation_id"`
	TurnNumber            int               `json:"turn_number"`
	UserInput             string            `json:"user_input"`
	GeneratedQuery        string            `json:"generated_query"`
	Confidence            ConfidenceScore   `json:"confidence"`
	Iterations            int               `json:"iterations"`
	ClarificationNeeded   bool              `json:"clarification_needed"`
	ClarificationQuestion string            `json:"clarification_question,omitempty"`
	Validation            *ValidationResult `json:"validation,omitempty"`
	Execution             *ExecutionResult  `json:"execution,omitempty"`
	Reasoning             ReasoningTrace    `json:"reasoning_trace"`
	SchemaContext         *SchemaContext    `json:"schema_context,omitempty"`
	ExamplesUsed          []uuid.UUID       `json:"rag_examples_used,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
}

// ValidationResult is the output of the Validator (C8) for one generated
// query.
type ValidationResult struct {
	Valid           bool     `json:"is_valid"`
	SyntaxErrors    []string `json:"syntax_errors,omitempty"`
	SemanticErrors  []string `json:"semantic_errors,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	DangerousOpFlag bool     `json:"dangerous_operation,omitempty"`
}

// ExecutionResult is the outcome of running a query through a Provider's
// dry-run or execute capability.
type ExecutionResult struct {
	Success         bool             `json:"success"`
	RowCount        int              `json:"row_count,omitempty"`
	ExecutionTimeMs int64            `json:"execution_time_ms,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	SampleRows      []map[string]any `json:"result_preview,omitempty"`
}

// ReasoningTrace captures the step-by-step decision process that produced a
// Turn's query, surfaced to reviewers and kept for audit.
type ReasoningTrace struct {
	Steps              []ReasoningStep     `json:"steps"`
	SchemaAnalysis     *SchemaContext      `json:"schema_analysis,omitempty"`
	RetrievalResult    *RetrievalSummary   `json:"rag_retrieval,omitempty"`
	QueryConstruction  string              `json:"query_construction,omitempty"`
	ValidationAttempts []*ValidationResult `json:"validation_attempts,omitempty"`
}

// ReasoningStep is one named, timestamped entry in a ReasoningTrace.
type ReasoningStep struct {
	Phase   string    `json:"phase"`
	Detail  string    `json:"detail"`
	At      time.Time `json:"at"`
	Attempt int       `json:"attempt,omitempty"`
}

// RetrievalSummary records which examples were surfaced for a turn and why,
// without duplicating the full Example payload in every trace.
type RetrievalSummary struct {
	Strategy   string      `json:"strategy,omitempty"`
	ExampleIDs []uuid.UUID `json:"example_ids"`
	TopScore   float64     `json:"top_score"`
}
