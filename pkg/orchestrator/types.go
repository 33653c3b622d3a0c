package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/tarsy-labs/queryweave/pkg/models"
	"github.com/tarsy-labs/queryweave/pkg/validator"
)

// TraceLevel controls how much of the reasoning trace rides along on each
// event, per spec.md §4.7.
type TraceLevel string

const (
	TraceNone    TraceLevel = "None"
	TraceSummary TraceLevel = "Summary"
	TraceFull    TraceLevel = "Full"
)

// Stage enumerates the phase-pipeline checkpoints a Progress event may
// report, per spec.md §4.7 ("Stages at minimum: ...").
type Stage string

const (
	StageStarted            Stage = "Started"
	StageSchemaRetrieval    Stage = "SchemaRetrieval"
	StageRagSearch          Stage = "RagSearch"
	StageContextGathered    Stage = "ContextGathered"
	StageQueryGeneration    Stage = "QueryGeneration"
	StageQueryGenerated     Stage = "QueryGenerated"
	StageValidation         Stage = "Validation"
	StageValidationComplete Stage = "ValidationComplete"
	StageExecutionComplete  Stage = "ExecutionComplete"
	StageCompleted          Stage = "Completed"
)

// EventKind tags which payload an Event carries.
type EventKind string

const (
	EventProgress      EventKind = "Progress"
	EventClarification EventKind = "Clarification"
	EventResult        EventKind = "Result"
	EventError         EventKind = "Error"
)

// Event is one entry in a request's streaming trace. Exactly one of the
// payload fields matching Kind is populated. Result or a terminal Error is
// always the last event a request produces.
type Event struct {
	Kind           EventKind
	ConversationID uuid.UUID
	Iteration      int
	Progress       *ProgressPayload
	Clarification  *ClarificationPayload
	Result         *Result
	Error          *ErrorPayload
}

// ProgressPayload reports one checkpoint in the phase pipeline. Progress is
// monotonically non-decreasing across a request's whole event stream.
type ProgressPayload struct {
	Stage    Stage
	Progress float64
	Trace    *Trace
}

// ClarificationPayload carries the LLM-generated follow-up question
// emitted when a terminated turn's confidence falls below the
// clarification threshold. Non-terminal: a Result event always follows.
type ClarificationPayload struct {
	Question   string
	Confidence float64
}

// ErrorPayload is the terminal failure payload for a request.
type ErrorPayload struct {
	Kind    ErrorKind
	Message string
}

// Trace is the optional per-event reasoning detail, shaped by the
// request's TraceLevel: nil at TraceNone, a one-line Detail at
// TraceSummary, and the full accumulated Steps at TraceFull.
type Trace struct {
	Detail string
	Steps  []models.ReasoningStep
}

// Sink receives the ordered event stream for one request. Implementations
// must not block the orchestrator for long; Publish is called
// synchronously from the phase pipeline. A nil Sink is valid — Run simply
// produces no stream.
type Sink interface {
	Publish(event Event)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(event Event) { f(event) }

// Request asks the Orchestrator to answer one natural-language question
// against a provider, per spec.md §6.
type Request struct {
	ProviderID     string
	UserID         string
	Query          string
	ConversationID *uuid.UUID
	Options        Options
}

// Options tunes one request's run of the phase pipeline. Zero values are
// replaced by the Orchestrator's configured defaults.
type Options struct {
	MaxIterations       int
	ConfidenceThreshold float64
	EnableExecution     bool
	TraceLevel          TraceLevel
	Timeout             time.Duration
}

// Result is the one-shot response shape, per spec.md §6.
type Result struct {
	ConversationID        uuid.UUID
	TurnID                uuid.UUID
	GeneratedQuery        string
	Confidence            models.ConfidenceScore
	ValidationStatus      validator.Status
	Validation            *models.ValidationResult
	Execution             *models.ExecutionResult
	Reasoning             *models.ReasoningTrace
	NeedsClarification    bool
	ClarificationQuestion string
	Iterations            int
}
