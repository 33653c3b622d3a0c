package events

import (
	"time"

	"github.com/tarsy-labs/queryweave/pkg/orchestrator"
)

// EventPayload is the JSON wire/storage shape of one orchestrator.Event.
// Exactly one of the optional fields is populated, matching Kind — the
// same tagged-variant convention orchestrator.Event itself uses
// (SPEC_FULL.md §9, "Dynamic message dicts from LLMs").
type EventPayload struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	Iteration      int       `json:"iteration"`
	Timestamp      time.Time `json:"timestamp"`

	Progress      *ProgressPayload      `json:"progress,omitempty"`
	Clarification *ClarificationPayload `json:"clarification,omitempty"`
	Result        *ResultPayload        `json:"result,omitempty"`
	Error         *ErrorPayload         `json:"error,omitempty"`

	// DBEventID is populated on the NOTIFY copy only (not on the stored
	// row), so a catching-up subscriber can resume from it.
	DBEventID *int64 `json:"db_event_id,omitempty"`
}

// ProgressPayload mirrors orchestrator.ProgressPayload.
type ProgressPayload struct {
	Stage    string  `json:"stage"`
	Progress float64 `json:"progress"`
	Detail   string  `json:"detail,omitempty"`
}

// ClarificationPayload mirrors orchestrator.ClarificationPayload.
type ClarificationPayload struct {
	Question   string  `json:"question"`
	Confidence float64 `json:"confidence"`
}

// ResultPayload is a trimmed, JSON-stable projection of orchestrator.Result
// — enough for a subscriber to render the outcome without re-deriving it.
type ResultPayload struct {
	TurnID             string  `json:"turn_id"`
	GeneratedQuery     string  `json:"generated_query"`
	Confidence         float64 `json:"confidence"`
	ValidationStatus   string  `json:"validation_status"`
	NeedsClarification bool    `json:"needs_clarification"`
	Iterations         int     `json:"iterations"`
}

// ErrorPayload mirrors orchestrator.ErrorPayload.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// FromOrchestratorEvent projects an orchestrator.Event into its durable
// wire shape. now is passed in rather than taken via time.Now() so the
// same event produces an identical row under test.
func FromOrchestratorEvent(ev orchestrator.Event, now time.Time) EventPayload {
	p := EventPayload{
		ConversationID: ev.ConversationID.String(),
		Iteration:      ev.Iteration,
		Timestamp:      now,
	}

	switch ev.Kind {
	case orchestrator.EventProgress:
		p.Type = EventTypeProgress
		if ev.Progress != nil {
			prog := &ProgressPayload{Stage: string(ev.Progress.Stage), Progress: ev.Progress.Progress}
			if ev.Progress.Trace != nil {
				prog.Detail = ev.Progress.Trace.Detail
			}
			p.Progress = prog
		}
	case orchestrator.EventClarification:
		p.Type = EventTypeClarification
		if ev.Clarification != nil {
			p.Clarification = &ClarificationPayload{
				Question:   ev.Clarification.Question,
				Confidence: ev.Clarification.Confidence,
			}
		}
	case orchestrator.EventResult:
		p.Type = EventTypeResult
		if ev.Result != nil {
			p.Result = &ResultPayload{
				TurnID:             ev.Result.TurnID.String(),
				GeneratedQuery:     ev.Result.GeneratedQuery,
				Confidence:         ev.Result.Confidence.Value,
				ValidationStatus:   string(ev.Result.ValidationStatus),
				NeedsClarification: ev.Result.NeedsClarification,
				Iterations:         ev.Result.Iterations,
			}
		}
	case orchestrator.EventError:
		p.Type = EventTypeError
		if ev.Error != nil {
			p.Error = &ErrorPayload{Kind: string(ev.Error.Kind), Message: ev.Error.Message}
		}
	}

	return p
}
