package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/tarsy-labs/queryweave/pkg/models"
	"github.com/tarsy-labs/queryweave/pkg/orchestrator"
	"github.com/tarsy-labs/queryweave/pkg/validator"
)

func TestFromOrchestratorEvent_Progress(t *testing.T) {
	convID := uuid.New()
	now := time.Now()
	ev := orchestrator.Event{
		Kind:           orchestrator.EventProgress,
		ConversationID: convID,
		Iteration:      2,
		Progress: &orchestrator.ProgressPayload{
			Stage:    orchestrator.StageValidation,
			Progress: 0.6,
			Trace:    &orchestrator.Trace{Detail: "validating draft"},
		},
	}

	p := FromOrchestratorEvent(ev, now)

	assert.Equal(t, EventTypeProgress, p.Type)
	assert.Equal(t, convID.String(), p.ConversationID)
	assert.Equal(t, 2, p.Iteration)
	assert.Equal(t, now, p.Timestamp)
	assert.NotNil(t, p.Progress)
	assert.Equal(t, "Validation", p.Progress.Stage)
	assert.Equal(t, 0.6, p.Progress.Progress)
	assert.Equal(t, "validating draft", p.Progress.Detail)
	assert.Nil(t, p.Clarification)
	assert.Nil(t, p.Result)
	assert.Nil(t, p.Error)
}

func TestFromOrchestratorEvent_Clarification(t *testing.T) {
	ev := orchestrator.Event{
		Kind:           orchestrator.EventClarification,
		ConversationID: uuid.New(),
		Clarification: &orchestrator.ClarificationPayload{
			Question:   "Which date range?",
			Confidence: 0.4,
		},
	}

	p := FromOrchestratorEvent(ev, time.Now())

	assert.Equal(t, EventTypeClarification, p.Type)
	assert.Equal(t, "Which date range?", p.Clarification.Question)
	assert.Equal(t, 0.4, p.Clarification.Confidence)
}

func TestFromOrchestratorEvent_Result(t *testing.T) {
	turnID := uuid.New()
	ev := orchestrator.Event{
		Kind:           orchestrator.EventResult,
		ConversationID: uuid.New(),
		Result: &orchestrator.Result{
			TurnID:           turnID,
			GeneratedQuery:   "SELECT * FROM customers",
			Confidence:       models.ConfidenceScore{Value: 0.9},
			ValidationStatus: validator.StatusPassed,
			Iterations:       1,
		},
	}

	p := FromOrchestratorEvent(ev, time.Now())

	assert.Equal(t, EventTypeResult, p.Type)
	assert.Equal(t, turnID.String(), p.Result.TurnID)
	assert.Equal(t, "SELECT * FROM customers", p.Result.GeneratedQuery)
	assert.Equal(t, 0.9, p.Result.Confidence)
	assert.Equal(t, string(validator.StatusPassed), p.Result.ValidationStatus)
	assert.Equal(t, 1, p.Result.Iterations)
}

func TestFromOrchestratorEvent_Error(t *testing.T) {
	ev := orchestrator.Event{
		Kind:           orchestrator.EventError,
		ConversationID: uuid.New(),
		Error: &orchestrator.ErrorPayload{
			Kind:    orchestrator.KindProviderUnavailable,
			Message: "connection refused",
		},
	}

	p := FromOrchestratorEvent(ev, time.Now())

	assert.Equal(t, EventTypeError, p.Type)
	assert.Equal(t, string(orchestrator.KindProviderUnavailable), p.Error.Kind)
	assert.Equal(t, "connection refused", p.Error.Message)
}

func TestFromOrchestratorEvent_NilPayload(t *testing.T) {
	// A Progress event with a nil payload (shouldn't normally happen, but
	// the projection must not panic) yields an empty ProgressPayload field.
	ev := orchestrator.Event{Kind: orchestrator.EventProgress, ConversationID: uuid.New()}

	p := FromOrchestratorEvent(ev, time.Now())

	assert.Equal(t, EventTypeProgress, p.Type)
	assert.Nil(t, p.Progress)
}
