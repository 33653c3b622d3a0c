package querybuilder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/queryweave/pkg/llm"
	"github.com/tarsy-labs/queryweave/pkg/models"
)

func TestParseResponse_TaggedJSON(t *testing.T) {
	query, reasoning := ParseResponse(`{"reasoning": ["look at orders table", "add a count"], "query": "SELECT COUNT(*) FROM orders"}`, "sql")
	assert.Equal(t, "SELECT COUNT(*) FROM orders", query)
	assert.Equal(t, []string{"look at orders table", "add a count"}, reasoning)
}

func TestParseResponse_FencedJSON(t *testing.T) {
	content := "```json\n{\"reasoning\": [\"step\"], \"query\": \"SELECT 1\"}\n```"
	query, reasoning := ParseResponse(content, "sql")
	assert.Equal(t, "SELECT 1", query)
	assert.Equal(t, []string{"step"}, reasoning)
}

func TestParseResponse_FallsBackToMatchingFencedBlock(t *testing.T) {
	content := "Here is the query:\n```sql\nSELECT * FROM orders\n```\nLet me know if you need changes."
	query, _ := ParseResponse(content, "sql")
	assert.Equal(t, "SELECT * FROM orders", query)
}

func TestParseResponse_FallsBackToAnyFencedBlock(t *testing.T) {
	content := "```\nSELECT * FROM orders\n```"
	query, _ := ParseResponse(content, "mongodb")
	assert.Equal(t, "SELECT * FROM orders", query)
}

func TestParseResponse_LastResortReturnsRawText(t *testing.T) {
	query, reasoning := ParseResponse("just use select star from orders", "sql")
	assert.Equal(t, "just use select star from orders", query)
	assert.Len(t, reasoning, 1)
}

type fakeInvoker struct {
	content string
	lastMsg []llm.Message
}

func (f *fakeInvoker) Invoke(ctx context.Context, messages []llm.Message, temperature float64, maxTokens int) (*llm.Response, error) {
	f.lastMsg = messages
	return &llm.Response{Content: f.content}, nil
}

func TestBuilder_Generate_InitialIteration(t *testing.T) {
	invoker := &fakeInvoker{content: `{"reasoning": ["a"], "query": "SELECT 1"}`}
	b := New(invoker)

	result, err := b.Generate(context.Background(), Request{
		Question:      "how many orders are there",
		QueryLanguage: "SQL",
		Schema:        &models.SchemaContext{Tables: []models.Table{{Name: "orders"}}},
		Iteration:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", result.Query)
	require.Len(t, invoker.lastMsg, 2)
	assert.Contains(t, invoker.lastMsg[1].Content, "User Question: how many orders are there")
	assert.Contains(t, invoker.lastMsg[1].Content, "Table: orders")
}

func TestBuilder_Generate_RefinementIncludesPriorFeedback(t *testing.T) {
	invoker := &fakeInvoker{content: `{"reasoning": ["fix it"], "query": "SELECT 2"}`}
	b := New(invoker)

	_, err := b.Generate(context.Background(), Request{
		Question:      "how many orders",
		QueryLanguage: "SQL",
		Iteration:     2,
		PriorDraft:    "SELECT * FROM ordrs",
		PriorFeedback: &models.ValidationResult{Valid: false, SyntaxErrors: []string{"unknown table ordrs"}},
	})
	require.NoError(t, err)
	assert.Contains(t, invoker.lastMsg[1].Content, "previous query attempt (iteration 1)")
	assert.Contains(t, invoker.lastMsg[1].Content, "unknown table ordrs")
}
