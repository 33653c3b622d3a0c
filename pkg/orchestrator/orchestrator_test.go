package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/queryweave/pkg/config"
	"github.com/tarsy-labs/queryweave/pkg/conversation"
	"github.com/tarsy-labs/queryweave/pkg/convlock"
	"github.com/tarsy-labs/queryweave/pkg/llm"
	"github.com/tarsy-labs/queryweave/pkg/llm/fake"
	"github.com/tarsy-labs/queryweave/pkg/models"
	"github.com/tarsy-labs/queryweave/pkg/provider"
	"github.com/tarsy-labs/queryweave/pkg/validator"
)

// fakeProvider is a minimal SQL-dialect provider good enough to drive the
// full phase pipeline without a real backend, mirrored from
// pkg/validator's own fakeProvider.
type fakeProvider struct {
	mu             sync.Mutex
	schema         *models.SchemaContext
	validateResult *models.ValidationResult
	validateSeq    []*models.ValidationResult
	validateCalls  int
}

func (f *fakeProvider) ID() string           { return "orders-db" }
func (f *fakeProvider) QueryLanguage() string { return "SQL" }
func (f *fakeProvider) Capabilities() []provider.Capability {
	return []provider.Capability{provider.CapabilitySchemaIntrospection, provider.CapabilityQueryValidation}
}
func (f *fakeProvider) HasCapability(c provider.Capability) bool {
	return provider.HasCapability(f.Capabilities(), c)
}
func (f *fakeProvider) GetSchema(ctx context.Context) (*models.SchemaContext, error) {
	return f.schema, nil
}
func (f *fakeProvider) ValidateSyntax(ctx context.Context, query string) (*models.ValidationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.validateSeq) > 0 {
		idx := f.validateCalls
		if idx >= len(f.validateSeq) {
			idx = len(f.validateSeq) - 1
		}
		f.validateCalls++
		return f.validateSeq[idx], nil
	}
	return f.validateResult, nil
}
func (f *fakeProvider) ExecuteQuery(ctx context.Context, query string, limit int) (*models.ExecutionResult, error) {
	return &models.ExecutionResult{Success: true, RowCount: 1}, nil
}
func (f *fakeProvider) ExplainQuery(ctx context.Context, query string) (string, error) { return "", nil }
func (f *fakeProvider) EstimateCost(ctx context.Context, query string) (float64, error) {
	return 0, nil
}

type fakeExampleRepo struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*models.Example
	approved []*models.Example
}

func newFakeExampleRepo() *fakeExampleRepo {
	return &fakeExampleRepo{byID: map[uuid.UUID]*models.Example{}}
}

func (f *fakeExampleRepo) add(e *models.Example) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[e.ID] = e
	f.approved = append(f.approved, e)
}

func (f *fakeExampleRepo) ApprovedByProvider(ctx context.Context, providerID string) ([]*models.Example, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.approved, nil
}

func (f *fakeExampleRepo) KeywordSearch(ctx context.Context, providerID, query string, limit int) ([]*models.Example, []float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exs := make([]*models.Example, 0, len(f.approved))
	scores := make([]float64, 0, len(f.approved))
	for _, e := range f.approved {
		exs = append(exs, e)
		scores = append(scores, 1.0)
	}
	return exs, scores, nil
}

func (f *fakeExampleRepo) Get(ctx context.Context, id uuid.UUID) (*models.Example, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id], nil
}

type fakeAnnotations struct{}

func (fakeAnnotations) ByProvider(ctx context.Context, providerID string) ([]models.Annotation, error) {
	return nil, nil
}

type fakeConversations struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Conversation
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{byID: map[uuid.UUID]*models.Conversation{}}
}

func (f *fakeConversations) Create(ctx context.Context, userID, providerID string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &models.Conversation{ID: uuid.New(), UserID: userID, ProviderID: providerID, Status: models.ConversationActive}
	f.byID[c.ID] = c
	return c, nil
}

func (f *fakeConversations) Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id], nil
}

func (f *fakeConversations) SetStatus(ctx context.Context, id uuid.UUID, status models.ConversationStatus) error {
	return nil
}

type fakeTurns struct {
	mu    sync.Mutex
	turns map[uuid.UUID][]*models.Turn
}

func newFakeTurns() *fakeTurns {
	return &fakeTurns{turns: map[uuid.UUID][]*models.Turn{}}
}

func (f *fakeTurns) NextTurnNumber(ctx context.Context, conversationID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.turns[conversationID]) + 1, nil
}

func (f *fakeTurns) Create(ctx context.Context, t *models.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns[t.ConversationID] = append(f.turns[t.ConversationID], t)
	return nil
}

func (f *fakeTurns) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*models.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.turns[conversationID], nil
}

func (f *fakeTurns) Get(ctx context.Context, id uuid.UUID) (*models.Turn, error) { return nil, nil }

// testOrchestrator wires a complete Orchestrator over fakes, scripting a
// single high-confidence LLM generation so the happy path terminates on
// iteration 1.
func testOrchestrator(t *testing.T, invoker llm.Invoker, schema *models.SchemaContext, validation *models.ValidationResult) (*Orchestrator, *fakeExampleRepo) {
	t.Helper()

	registry := provider.NewRegistry(func(ctx context.Context, id string) (provider.Provider, error) {
		return &fakeProvider{schema: schema, validateResult: validation}, nil
	})
	examples := newFakeExampleRepo()
	convs := conversation.New(newFakeConversations(), newFakeTurns(), convlock.New())

	o := New(
		registry,
		examples,
		fakeAnnotations{},
		nil,
		invoker,
		convs,
		nil,
		config.DefaultOrchestratorDefaults(),
		config.DefaultRetrievalConfig(),
		config.DefaultSchemaExpertConfig(),
		config.DefaultConfidenceWeights(),
	)
	return o, examples
}

func schemaFixture() *models.SchemaContext {
	return &models.SchemaContext{
		Tables: []models.Table{
			{Name: "orders", Columns: []models.Column{{Name: "id", DataType: "uuid"}, {Name: "total", DataType: "numeric"}}},
		},
	}
}

func TestOrchestrator_Run_HighConfidenceTerminatesOnFirstIteration(t *testing.T) {
	invoker := fake.New(&llm.Response{Content: `{"reasoning":["selected orders table"],"query":"SELECT * FROM orders"}`})
	o, _ := testOrchestrator(t, invoker, schemaFixture(), &models.ValidationResult{Valid: true})

	var events []Event
	sink := SinkFunc(func(e Event) { events = append(events, e) })

	result, err := o.Run(context.Background(), Request{
		ProviderID: "orders-db",
		UserID:     "user-1",
		Query:      "show me all orders",
	}, sink)

	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM orders", result.GeneratedQuery)
	assert.Equal(t, 1, result.Iterations)
	assert.NotEqual(t, uuid.Nil, result.TurnID)
	assert.NotEqual(t, uuid.Nil, result.ConversationID)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventResult, last.Kind, "the final event must always be Result or Error")
}

func TestOrchestrator_Run_ProgressIsMonotonic(t *testing.T) {
	invoker := fake.New(&llm.Response{Content: `{"reasoning":[],"query":"SELECT * FROM orders"}`})
	o, _ := testOrchestrator(t, invoker, schemaFixture(), &models.ValidationResult{Valid: true})

	var progressed []float64
	sink := SinkFunc(func(e Event) {
		if e.Kind == EventProgress {
			progressed = append(progressed, e.Progress.Progress)
		}
	})

	_, err := o.Run(context.Background(), Request{ProviderID: "orders-db", Query: "show me total orders"}, sink)
	require.NoError(t, err)

	for i := 1; i < len(progressed); i++ {
		assert.GreaterOrEqual(t, progressed[i], progressed[i-1], "progress must never decrease")
	}
	assert.Equal(t, 1.0, progressed[len(progressed)-1])
}

func TestOrchestrator_Run_LowConfidenceEmitsClarificationBeforeResult(t *testing.T) {
	// A single-word question plus an unhelpful draft keeps every confidence
	// signal low, and MaxIterations=1 forces termination without passing
	// the emit threshold.
	invoker := fake.New(&llm.Response{Content: `{"reasoning":[],"query":"SELECT 1"}`})
	o, _ := testOrchestrator(t, invoker, &models.SchemaContext{}, &models.ValidationResult{Valid: true})
	o.orchCfg = &config.OrchestratorDefaults{
		MaxIterations:          1,
		MinConfidenceToEmit:    0.99,
		ClarificationThreshold: 0.99,
		PhaseTimeout:           o.orchCfg.PhaseTimeout,
		TotalTimeout:           o.orchCfg.TotalTimeout,
	}

	var events []Event
	sink := SinkFunc(func(e Event) { events = append(events, e) })

	result, err := o.Run(context.Background(), Request{ProviderID: "orders-db", Query: "x"}, sink)
	require.NoError(t, err)
	assert.True(t, result.NeedsClarification)
	assert.NotEmpty(t, result.ClarificationQuestion)

	require.Len(t, events, len(events))
	var sawClarification, clarificationBeforeResult bool
	for _, e := range events {
		if e.Kind == EventClarification {
			sawClarification = true
		}
		if e.Kind == EventResult {
			clarificationBeforeResult = sawClarification
		}
	}
	assert.True(t, sawClarification)
	assert.True(t, clarificationBeforeResult, "Clarification must precede the terminal Result event")
	assert.Equal(t, EventResult, events[len(events)-1].Kind, "Result is always the literal last event")
}

func TestOrchestrator_Run_InvalidRequestEmitsErrorAndReturnsErr(t *testing.T) {
	invoker := fake.New(&llm.Response{Content: `{}`})
	o, _ := testOrchestrator(t, invoker, schemaFixture(), &models.ValidationResult{Valid: true})

	var events []Event
	sink := SinkFunc(func(e Event) { events = append(events, e) })

	_, err := o.Run(context.Background(), Request{ProviderID: "", Query: "anything"}, sink)
	require.Error(t, err)
	assert.Equal(t, KindInvalidRequest, KindOf(err))
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Kind)
}

func TestOrchestrator_Run_UnknownProviderIsProviderUnavailable(t *testing.T) {
	registry := provider.NewRegistry(func(ctx context.Context, id string) (provider.Provider, error) {
		return nil, assertErr
	})
	convs := conversation.New(newFakeConversations(), newFakeTurns(), convlock.New())
	o := New(registry, newFakeExampleRepo(), fakeAnnotations{}, nil, fake.New(&llm.Response{Content: "{}"}), convs, nil, nil, nil, nil, config.DefaultConfidenceWeights())

	_, err := o.Run(context.Background(), Request{ProviderID: "missing", Query: "q"}, nil)
	require.Error(t, err)
	assert.Equal(t, KindProviderUnavailable, KindOf(err))
}

func TestOrchestrator_Run_IteratesUntilValidationPasses(t *testing.T) {
	invoker := fake.New(
		&llm.Response{Content: `{"reasoning":["draft 1"],"query":"SELECT * FROM orders"}`},
		&llm.Response{Content: `{"reasoning":["draft 2"],"query":"SELECT id, total FROM orders"}`},
	)
	o, _ := testOrchestrator(t, invoker, schemaFixture(), nil)
	o.orchCfg.MaxIterations = 3

	// The provider fails validation of the first draft and passes every
	// later one.
	o.providers = provider.NewRegistry(func(ctx context.Context, id string) (provider.Provider, error) {
		return &fakeProvider{schema: schemaFixture(), validateSeq: []*models.ValidationResult{
			{Valid: false, SyntaxErrors: []string{"missing column list"}},
			{Valid: true},
		}}, nil
	})

	result, err := o.Run(context.Background(), Request{ProviderID: "orders-db", Query: "show orders total"}, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Iterations, 2)
	assert.Equal(t, validator.StatusPassed, result.ValidationStatus)
}

// assertErr is a stand-in sentinel used where only error-ness matters.
var assertErr = errUnavailable{}

type errUnavailable struct{}

func (errUnavailable) Error() string { return "provider unavailable" }
