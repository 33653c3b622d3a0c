package mongoprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/queryweave/pkg/provider"
)

type fakeSource struct {
	collections []CollectionInfo
	docs        map[string][]map[string]any
}

func (f *fakeSource) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	return f.collections, nil
}

func (f *fakeSource) Find(ctx context.Context, collection string, filter map[string]any, limit int) ([]map[string]any, error) {
	return f.docs[collection], nil
}

func testSource() *fakeSource {
	return &fakeSource{
		collections: []CollectionInfo{
			{Name: "orders", Fields: []FieldInfo{{Name: "amount", Type: "number"}, {Name: "status", Type: "string"}}},
		},
		docs: map[string][]map[string]any{
			"orders": {
				{"amount": 10.0, "status": "paid"},
				{"amount": 20.0, "status": "pending"},
			},
		},
	}
}

func TestProvider_Capabilities(t *testing.T) {
	p := New("orders-db", testSource())

	assert.Equal(t, "orders-db", p.ID())
	assert.Equal(t, "MongoDB Query", p.QueryLanguage())
	assert.True(t, p.HasCapability(provider.CapabilitySchemaIntrospection))
	assert.False(t, p.HasCapability(provider.CapabilityQueryExplanation))
}

func TestProvider_GetSchema(t *testing.T) {
	p := New("orders-db", testSource())

	schema, err := p.GetSchema(context.Background())
	require.NoError(t, err)
	require.Len(t, schema.Tables, 1)
	assert.Equal(t, "orders", schema.Tables[0].Name)
	assert.Len(t, schema.Tables[0].Columns, 2)
}

func TestProvider_ValidateSyntax(t *testing.T) {
	p := New("orders-db", testSource())

	result, err := p.ValidateSyntax(context.Background(), ".amount")
	require.NoError(t, err)
	assert.True(t, result.Valid)

	result, err = p.ValidateSyntax(context.Background(), "{{{not jq")
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestProvider_ExecuteQuery_ShapesResults(t *testing.T) {
	p := New("orders-db", testSource())

	result, err := p.ExecuteQuery(context.Background(), "{amount}", 10)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.SampleRows, 2)
	assert.Equal(t, 10.0, result.SampleRows[0]["amount"])
	_, hasStatus := result.SampleRows[0]["status"]
	assert.False(t, hasStatus)
}

func TestProvider_ExplainQuery_Unsupported(t *testing.T) {
	p := New("orders-db", testSource())

	_, err := p.ExplainQuery(context.Background(), ".amount")
	assert.ErrorIs(t, err, provider.ErrUnsupported)
}

func TestShapeResults_EmptyExprPassesThrough(t *testing.T) {
	docs := []map[string]any{{"a": 1}}
	shaped, err := ShapeResults("", docs)
	require.NoError(t, err)
	assert.Equal(t, docs, shaped)
}
