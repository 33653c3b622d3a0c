package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tarsy-labs/queryweave/pkg/config"
	"github.com/tarsy-labs/queryweave/pkg/llm"
	"github.com/tarsy-labs/queryweave/pkg/models"
	"github.com/tarsy-labs/queryweave/pkg/retrieval"
)

func validateRequest(req Request) error {
	if req.ProviderID == "" {
		return newError(KindInvalidRequest, "provider_id is required", nil)
	}
	if req.Query == "" {
		return newError(KindInvalidRequest, "query is required", nil)
	}
	return nil
}

// resolveOptions overlays req.Options on top of the orchestrator's
// configured defaults, replacing every zero-valued field.
func resolveOptions(opts Options, cfg *config.OrchestratorDefaults) Options {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = cfg.MaxIterations
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = cfg.MinConfidenceToEmit
	}
	if opts.TraceLevel == "" {
		opts.TraceLevel = TraceSummary
	}
	if opts.Timeout <= 0 {
		opts.Timeout = cfg.TotalTimeout
	}
	return opts
}

// resolveConversation starts a new conversation when req carries none, or
// loads the existing one and the tables its last turn selected (the
// schema-aware strategy's and the Schema Expert's recency signal).
func (o *Orchestrator) resolveConversation(ctx context.Context, req Request) (uuid.UUID, []string, error) {
	if req.ConversationID == nil {
		c, err := o.conversations.Start(ctx, req.UserID, req.ProviderID)
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("start conversation: %w", err)
		}
		return c.ID, nil, nil
	}

	id := *req.ConversationID
	if _, err := o.conversations.Get(ctx, id); err != nil {
		return uuid.Nil, nil, fmt.Errorf("load conversation: %w", err)
	}

	history, err := o.conversations.History(ctx, id)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("load conversation history: %w", err)
	}
	return id, priorTablesFrom(history), nil
}

func priorTablesFrom(history []*models.Turn) []string {
	if len(history) == 0 {
		return nil
	}
	last := history[len(history)-1]
	if last.SchemaContext == nil {
		return nil
	}
	names := make([]string, len(last.SchemaContext.Tables))
	for i, t := range last.SchemaContext.Tables {
		names[i] = t.Name
	}
	return names
}

func (o *Orchestrator) publish(sink Sink, conversationID uuid.UUID, iteration int, evt Event) {
	evt.ConversationID = conversationID
	evt.Iteration = iteration
	sink.Publish(evt)
}

func (o *Orchestrator) emitFatal(sink Sink, conversationID uuid.UUID, iteration int, err error) {
	if sink == nil {
		return
	}
	sink.Publish(Event{
		Kind:           EventError,
		ConversationID: conversationID,
		Iteration:      iteration,
		Error:          &ErrorPayload{Kind: KindOf(err), Message: err.Error()},
	})
}

// progressEvent builds a Progress event, attaching a Trace only when
// opts.TraceLevel calls for one.
func (o *Orchestrator) progressEvent(stage Stage, progress float64, opts Options, steps []models.ReasoningStep) Event {
	var trace *Trace
	switch opts.TraceLevel {
	case TraceSummary:
		trace = &Trace{Detail: string(stage)}
	case TraceFull:
		trace = &Trace{Detail: string(stage), Steps: steps}
	}
	return Event{
		Kind:     EventProgress,
		Progress: &ProgressPayload{Stage: stage, Progress: progress, Trace: trace},
	}
}

// iterationProgress places one iteration's stage fraction (0..~0.9) inside
// this iteration's own slice of the [phaseOneSpan, 1) progress axis, so
// progress keeps climbing whether the loop terminates on iteration 1 or
// MaxIterations.
func (o *Orchestrator) iterationProgress(iteration int, opts Options, fracWithinIter float64) float64 {
	remaining := 1.0 - phaseOneSpan
	span := remaining / float64(opts.MaxIterations)
	base := phaseOneSpan + span*float64(iteration-1)
	return base + span*fracWithinIter
}

// splitExamples separates a ranked retrieval result into the good/bad
// example slices the Query Builder prompt wants, alongside the ids and top
// score the reasoning trace records.
func splitExamples(ranked []retrieval.RankedExample) (good, bad []retrieval.RankedExample, ids []uuid.UUID, topScore float64) {
	for i, r := range ranked {
		if r.Example == nil {
			continue
		}
		if i == 0 {
			topScore = r.Score
		}
		ids = append(ids, r.Example.ID)
		if r.Example.IsGoodExample {
			good = append(good, r)
		} else {
			bad = append(bad, r)
		}
	}
	return good, bad, ids, topScore
}

func annotationsOf(schema *models.SchemaContext) []models.Annotation {
	if schema == nil {
		return nil
	}
	return schema.Annotations
}

// buildReasoningTrace assembles the audit trail a persisted Turn carries,
// per spec.md §4.7's Trace requirements.
func (o *Orchestrator) buildReasoningTrace(state iterState) *models.ReasoningTrace {
	steps := make([]models.ReasoningStep, 0, len(state.reasoning))
	now := time.Now()
	for _, r := range state.reasoning {
		steps = append(steps, models.ReasoningStep{Phase: "query_builder", Detail: r, At: now})
	}

	var attempts []*models.ValidationResult
	if state.validation != nil {
		attempts = append(attempts, state.validation)
	}

	return &models.ReasoningTrace{
		Steps:          steps,
		SchemaAnalysis: state.schema,
		RetrievalResult: &models.RetrievalSummary{
			Strategy:   "merged",
			ExampleIDs: state.exampleIDs,
			TopScore:   state.topScore,
		},
		QueryConstruction:  state.draft,
		ValidationAttempts: attempts,
	}
}

// generateClarificationQuestion asks the LLM Invoker for a targeted
// follow-up question when a terminated turn's confidence falls short of
// clarificationThreshold, falling back to a generic template on a nil
// invoker or an error, per spec.md §4.7.
func (o *Orchestrator) generateClarificationQuestion(ctx context.Context, question string, validation *models.ValidationResult) string {
	const fallback = "Could you clarify which fields or filters you mean, so I can generate a more precise query?"
	if o.invoker == nil {
		return fallback
	}

	feedback := "none"
	if validation != nil && !validation.Valid {
		feedback = fmt.Sprintf("%v", append(validation.SyntaxErrors, validation.SemanticErrors...))
	}

	resp, err := o.invoker.Invoke(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "The generated query for the user's question scored low confidence. Ask one short, specific clarifying question that would let you generate a better query. Respond with only the question."},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Question: %s\nValidation feedback: %s", question, feedback)},
	}, 0.2, 64)
	if err != nil || resp.Content == "" {
		return fallback
	}
	return resp.Content
}

// persistTurn appends the completed turn to the conversation and returns
// its assigned id.
func (o *Orchestrator) persistTurn(ctx context.Context, conversationID uuid.UUID, req Request, result *Result) (uuid.UUID, error) {
	turn := &models.Turn{
		UserInput:             req.Query,
		GeneratedQuery:        result.GeneratedQuery,
		Confidence:            result.Confidence,
		Iterations:            result.Iterations,
		ClarificationNeeded:   result.NeedsClarification,
		ClarificationQuestion: result.ClarificationQuestion,
		Validation:            result.Validation,
		Execution:             result.Execution,
		ExamplesUsed:          result.Reasoning.RetrievalResult.ExampleIDs,
	}
	if result.Reasoning != nil {
		turn.Reasoning = *result.Reasoning
		turn.SchemaContext = result.Reasoning.SchemaAnalysis
	}

	if err := o.conversations.AppendTurn(ctx, conversationID, turn); err != nil {
		return uuid.Nil, err
	}
	return turn.ID, nil
}
