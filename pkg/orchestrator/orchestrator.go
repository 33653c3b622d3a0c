// Package orchestrator implements the Orchestrator (C9): the state machine
// that drives one natural-language question through Schema Expert (C5) and
// Retrieval Engine (C6) in parallel, then Query Builder (C7) and Validator
// (C8) in a refine loop, until the termination rule fires, streaming
// Progress/Clarification/Result/Error events the whole way. Loop shape is
// grounded on the teacher's pkg/queue/executor.go RealSessionExecutor.Execute
// (sequential stage run, fail-fast, one progress event per stage); the
// Phase 1 fan-out is grounded on jordigilh-kubernaut's errgroup idiom
// rather than the teacher's SubAgentRunner, since this fan-out is exactly
// two fixed tasks and errgroup already carries pkg/retrieval's own
// internal concurrency the same way. State-machine shape (phases,
// termination rule, event vocabulary) is exactly
// original_source/src/text2x/services/orchestrator_service.py.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tarsy-labs/queryweave/pkg/config"
	"github.com/tarsy-labs/queryweave/pkg/conversation"
	"github.com/tarsy-labs/queryweave/pkg/embeddings"
	"github.com/tarsy-labs/queryweave/pkg/llm"
	"github.com/tarsy-labs/queryweave/pkg/models"
	"github.com/tarsy-labs/queryweave/pkg/provider"
	"github.com/tarsy-labs/queryweave/pkg/querybuilder"
	"github.com/tarsy-labs/queryweave/pkg/retrieval"
	"github.com/tarsy-labs/queryweave/pkg/schemaexpert"
	"github.com/tarsy-labs/queryweave/pkg/validator"
)

// phaseOneSpan divides the [0,1] progress axis: Phase 1 (schema +
// retrieval, iteration 1 only) gets the first slice, and iterationProgress
// divides the remaining span evenly across MaxIterations so progress stays
// monotonic whether the loop terminates on iteration 1 or MaxIterations.
const phaseOneSpan = 0.3

// Orchestrator wires C1/C2/C3/C4/C5/C6/C7/C8/C10's concrete implementations
// into the C9 phase pipeline described by spec.md §4.7.
type Orchestrator struct {
	providers     *provider.Registry
	examples      ExampleRepo
	annotations   AnnotationRepo
	embedder      embeddings.Embedder
	invoker       llm.Invoker
	conversations *conversation.Manager
	masker        validator.RowMasker

	retrieval *retrieval.Engine

	orchCfg      *config.OrchestratorDefaults
	retrievalCfg *config.RetrievalConfig
	schemaCfg    *config.SchemaExpertConfig
	weights      config.ConfidenceWeights
}

// New builds an Orchestrator. masker and embedder may be nil (execution
// sample rows go unmasked; the vector strategy reports no candidates).
func New(
	providers *provider.Registry,
	examples ExampleRepo,
	annotations AnnotationRepo,
	embedder embeddings.Embedder,
	invoker llm.Invoker,
	conversations *conversation.Manager,
	masker validator.RowMasker,
	orchCfg *config.OrchestratorDefaults,
	retrievalCfg *config.RetrievalConfig,
	schemaCfg *config.SchemaExpertConfig,
	weights config.ConfidenceWeights,
) *Orchestrator {
	if orchCfg == nil {
		orchCfg = config.DefaultOrchestratorDefaults()
	}
	if retrievalCfg == nil {
		retrievalCfg = config.DefaultRetrievalConfig()
	}
	if schemaCfg == nil {
		schemaCfg = config.DefaultSchemaExpertConfig()
	}

	return &Orchestrator{
		providers:     providers,
		examples:      examples,
		annotations:   annotations,
		embedder:      embedder,
		invoker:       invoker,
		conversations: conversations,
		masker:        masker,
		retrieval:     retrieval.New(exampleSourceAdapter{repo: examples}),
		orchCfg:       orchCfg,
		retrievalCfg:  retrievalCfg,
		schemaCfg:     schemaCfg,
		weights:       weights,
	}
}

// iterState carries what one Phase2/Phase3 pass needs from the one before
// it, and what Phase1 (run once, on iteration 1) produces for every later
// iteration to reuse.
type iterState struct {
	schema       *models.SchemaContext
	goodExamples []retrieval.RankedExample
	badExamples  []retrieval.RankedExample
	exampleIDs   []uuid.UUID
	topScore     float64

	draft      string
	reasoning  []string
	validation *models.ValidationResult
	execution  *models.ExecutionResult
}

// Run drives req through the full phase pipeline, publishing every event
// to sink (which may be nil), and returns the final Result. A non-nil
// error is always an *Error; the conversation's turn is persisted on every
// normal termination (including the clarification path) and left
// unpersisted on any fatal abort.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink Sink) (*Result, error) {
	if sink == nil {
		sink = SinkFunc(func(Event) {})
	}

	if err := validateRequest(req); err != nil {
		o.emitFatal(sink, uuid.Nil, 0, err)
		return nil, err
	}

	opts := resolveOptions(req.Options, o.orchCfg)
	totalCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	conversationID, priorTables, err := o.resolveConversation(totalCtx, req)
	if err != nil {
		oerr := newError(KindInternal, "resolve conversation", err)
		o.emitFatal(sink, uuid.Nil, 0, oerr)
		return nil, oerr
	}

	prov, err := o.providers.Get(totalCtx, req.ProviderID)
	if err != nil {
		oerr := newError(KindProviderUnavailable, fmt.Sprintf("resolve provider %q", req.ProviderID), err)
		o.emitFatal(sink, conversationID, 0, oerr)
		return nil, oerr
	}
	queryLanguage := prov.QueryLanguage()
	dialect := dialectFor(queryLanguage)

	expert := schemaexpert.New(providerSchemaSource{getSchema: prov.GetSchema}, o.annotations, o.schemaCfg)
	val := validator.New(prov, o.masker)

	o.publish(sink, conversationID, 0, o.progressEvent(StageStarted, 0, opts, nil))

	state := iterState{}
	var (
		confidence models.ConfidenceScore
		status     validator.Status
		iteration  int
	)

	for iteration = 1; iteration <= opts.MaxIterations; iteration++ {
		iterCtx, iterCancel := context.WithTimeout(totalCtx, o.orchCfg.PhaseTimeout)

		if iteration == 1 {
			if err := o.runPhaseOne(iterCtx, sink, conversationID, opts, schemaexpert.Request{
				ProviderID:  req.ProviderID,
				Question:    req.Query,
				PriorTables: priorTables,
			}, req, prov, expert, &state); err != nil {
				iterCancel()
				oerr := newError(KindProviderUnavailable, "gather schema and examples", err)
				o.emitFatal(sink, conversationID, iteration, oerr)
				return nil, oerr
			}
		}

		draftResult, err := o.runPhaseTwo(iterCtx, sink, conversationID, iteration, opts, req, queryLanguage, &state)
		if err != nil {
			iterCancel()
			oerr := newError(KindLLMFailure, "query builder generate", err)
			o.emitFatal(sink, conversationID, iteration, oerr)
			return nil, oerr
		}
		state.draft = draftResult.Query
		state.reasoning = append(state.reasoning, draftResult.ReasoningSteps...)

		validation, execution, err := o.runPhaseThree(iterCtx, sink, conversationID, iteration, opts, val, dialect, state.draft, state.schema)
		iterCancel()
		if err != nil {
			oerr := newError(KindProviderUnavailable, "validate query", err)
			o.emitFatal(sink, conversationID, iteration, oerr)
			return nil, oerr
		}
		state.validation = validation
		state.execution = execution
		status = validator.StatusOf(validation)

		confidence = querybuilder.Score(o.weights, req.Query, state.draft, state.schema, state.goodExamples, iteration)

		if iteration >= opts.MaxIterations || (confidence.Value >= opts.ConfidenceThreshold && status == validator.StatusPassed) {
			break
		}
	}

	if iteration > opts.MaxIterations {
		iteration = opts.MaxIterations
	}

	result := &Result{
		ConversationID:   conversationID,
		GeneratedQuery:   state.draft,
		Confidence:       confidence,
		ValidationStatus: status,
		Validation:       state.validation,
		Execution:        state.execution,
		Iterations:       iteration,
		Reasoning:        o.buildReasoningTrace(state),
	}

	if confidence.Value < o.orchCfg.ClarificationThreshold {
		question := o.generateClarificationQuestion(totalCtx, req.Query, state.validation)
		result.NeedsClarification = true
		result.ClarificationQuestion = question
		o.publish(sink, conversationID, iteration, Event{
			Kind:           EventClarification,
			ConversationID: conversationID,
			Iteration:      iteration,
			Clarification:  &ClarificationPayload{Question: question, Confidence: confidence.Value},
		})
	}

	turnID, err := o.persistTurn(totalCtx, conversationID, req, result)
	if err != nil {
		oerr := newError(KindInternal, "persist turn", err)
		o.emitFatal(sink, conversationID, iteration, oerr)
		return nil, oerr
	}
	result.TurnID = turnID

	o.publish(sink, conversationID, iteration, o.progressEvent(StageCompleted, 1.0, opts, nil))
	o.publish(sink, conversationID, iteration, Event{
		Kind:           EventResult,
		ConversationID: conversationID,
		Iteration:      iteration,
		Result:         result,
	})

	return result, nil
}

// runPhaseOne runs the Schema Expert and Retrieval Engine concurrently via
// errgroup, per spec.md §4.7's Phase 1 (first iteration only).
func (o *Orchestrator) runPhaseOne(ctx context.Context, sink Sink, conversationID uuid.UUID, opts Options, schemaReq schemaexpert.Request, req Request, prov provider.Provider, expert *schemaexpert.Expert, state *iterState) error {
	keywords := extractKeywords(ctx, o.invoker, req.Query)

	var schema *models.SchemaContext
	var ranked []retrieval.RankedExample

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := expert.Select(gctx, schemaReq)
		if err != nil {
			return fmt.Errorf("schema expert: %w", err)
		}
		schema = s
		return nil
	})
	g.Go(func() error {
		strategies := map[retrieval.Strategy]retrieval.StrategyFunc{
			retrieval.StrategyKeyword:     keywordStrategy(o.examples, req.ProviderID, keywords, o.retrievalCfg.TopK*4),
			retrieval.StrategyVector:      vectorStrategy(o.examples, o.embedder, req.ProviderID, req.Query),
			retrieval.StrategySchemaAware: schemaAwareStrategy(o.examples, req.ProviderID, req.Query, schemaReq.PriorTables),
			retrieval.StrategyIntent:      intentStrategy(o.examples, o.invoker, req.ProviderID, req.Query),
		}
		r, err := o.retrieval.Run(gctx, retrieval.Params{
			TopK:              o.retrievalCfg.TopK,
			MinSimilarity:     o.retrievalCfg.MinSimilarity,
			GoodExampleBoost:  o.retrievalCfg.GoodExampleBoost,
			BadExamplePenalty: o.retrievalCfg.BadExamplePenalty,
		}, strategies)
		if err != nil {
			return fmt.Errorf("retrieval engine: %w", err)
		}
		ranked = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	state.schema = schema
	state.goodExamples, state.badExamples, state.exampleIDs, state.topScore = splitExamples(ranked)

	o.publish(sink, conversationID, 1, o.progressEvent(StageSchemaRetrieval, phaseOneSpan*1/3, opts, nil))
	o.publish(sink, conversationID, 1, o.progressEvent(StageRagSearch, phaseOneSpan*2/3, opts, nil))
	o.publish(sink, conversationID, 1, o.progressEvent(StageContextGathered, phaseOneSpan, opts, nil))
	return nil
}

// runPhaseTwo drafts (iteration 1) or refines (iteration 2..N) the
// candidate query through the Query Builder.
func (o *Orchestrator) runPhaseTwo(ctx context.Context, sink Sink, conversationID uuid.UUID, iteration int, opts Options, req Request, queryLanguage string, state *iterState) (*querybuilder.Result, error) {
	builder := querybuilder.New(o.invoker)

	o.publish(sink, conversationID, iteration, o.progressEvent(StageQueryGeneration, o.iterationProgress(iteration, opts, 0.0), opts, nil))

	result, err := builder.Generate(ctx, querybuilder.Request{
		Question:      req.Query,
		QueryLanguage: queryLanguage,
		Schema:        state.schema,
		GoodExamples:  state.goodExamples,
		BadExamples:   state.badExamples,
		Iteration:     iteration,
		PriorDraft:    state.draft,
		PriorFeedback: state.validation,
	})
	if err != nil {
		return nil, err
	}

	o.publish(sink, conversationID, iteration, o.progressEvent(StageQueryGenerated, o.iterationProgress(iteration, opts, 0.25), opts, nil))
	return result, nil
}

// runPhaseThree validates (and optionally executes) the iteration's draft
// through the Validator.
func (o *Orchestrator) runPhaseThree(ctx context.Context, sink Sink, conversationID uuid.UUID, iteration int, opts Options, val *validator.Validator, dialect validator.Dialect, draft string, schema *models.SchemaContext) (*models.ValidationResult, *models.ExecutionResult, error) {
	o.publish(sink, conversationID, iteration, o.progressEvent(StageValidation, o.iterationProgress(iteration, opts, 0.5), opts, nil))

	validation, execution, err := val.Validate(ctx, validator.Request{
		Query:           draft,
		Dialect:         dialect,
		EnableExecution: opts.EnableExecution,
		RowLimit:        executionRowLimit,
	}, annotationsOf(schema))
	if err != nil {
		return nil, nil, err
	}

	o.publish(sink, conversationID, iteration, o.progressEvent(StageValidationComplete, o.iterationProgress(iteration, opts, 0.75), opts, nil))
	if execution != nil {
		o.publish(sink, conversationID, iteration, o.progressEvent(StageExecutionComplete, o.iterationProgress(iteration, opts, 0.9), opts, nil))
	}
	return validation, execution, nil
}

// executionRowLimit bounds Validator-driven execution's sample rows, per
// spec.md §4.6's bounded-execution requirement.
const executionRowLimit = 100
