// Package mongoprovider implements pkg/provider.Provider over a document
// store. It does not open a real MongoDB driver connection (no MongoDB
// client appears anywhere in the example pack); instead it models the
// provider against a pluggable document source and shapes results with
// itchyny/gojq, grounded on jordigilh-kubernaut's use of gojq for
// post-processing structured tool output.
package mongoprovider

import (
	"context"
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/tarsy-labs/queryweave/pkg/models"
	"github.com/tarsy-labs/queryweave/pkg/provider"
)

// DocumentSource is the minimal surface mongoprovider needs from an
// underlying document database; production wiring implements this over
// the official mongo-driver, kept out of this module since nothing in the
// example pack imports it.
type DocumentSource interface {
	ListCollections(ctx context.Context) ([]CollectionInfo, error)
	Find(ctx context.Context, collection string, filter map[string]any, limit int) ([]map[string]any, error)
}

// CollectionInfo describes one collection's inferred shape, built by
// sampling documents.
type CollectionInfo struct {
	Name   string
	Fields []FieldInfo
}

// FieldInfo is one inferred field within a collection.
type FieldInfo struct {
	Name string
	Type string
}

// Provider queries a document store through a DocumentSource and a
// gojq-based result shaping filter applied to each returned document.
type Provider struct {
	id     string
	source DocumentSource
}

var _ provider.Provider = (*Provider)(nil)

// New builds a mongoprovider.Provider over source.
func New(id string, source DocumentSource) *Provider {
	return &Provider{id: id, source: source}
}

// ID returns the configured provider ID.
func (p *Provider) ID() string { return p.id }

// QueryLanguage reports the generated-query language for this provider.
func (p *Provider) QueryLanguage() string { return "MongoDB Query" }

// Capabilities lists what this provider supports.
func (p *Provider) Capabilities() []provider.Capability {
	return []provider.Capability{
		provider.CapabilitySchemaIntrospection,
		provider.CapabilityQueryExecution,
		provider.CapabilityDryRun,
	}
}

// HasCapability reports whether c is in Capabilities().
func (p *Provider) HasCapability(c provider.Capability) bool {
	return provider.HasCapability(p.Capabilities(), c)
}

// GetSchema samples each collection to infer a field shape, since document
// stores have no fixed schema catalog to introspect.
func (p *Provider) GetSchema(ctx context.Context) (*models.SchemaContext, error) {
	collections, err := p.source.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	schema := &models.SchemaContext{}
	for _, c := range collections {
		table := models.Table{Name: c.Name}
		for _, f := range c.Fields {
			table.Columns = append(table.Columns, models.Column{Name: f.Name, DataType: f.Type, Nullable: true})
		}
		schema.Tables = append(schema.Tables, table)
	}
	return schema, nil
}

// ValidateSyntax parses query as a gojq filter expression; MongoDB query
// documents are generated and passed as the jq-style shaping expression
// applied to Find's raw output (spec.md's "MongoDB provider" allows a
// post-processing stage distinct from the filter document itself).
func (p *Provider) ValidateSyntax(ctx context.Context, query string) (*models.ValidationResult, error) {
	if _, err := gojq.Parse(query); err != nil {
		return &models.ValidationResult{Valid: false, SyntaxErrors: []string{err.Error()}}, nil
	}
	return &models.ValidationResult{Valid: true}, nil
}

// ExecuteQuery runs the document source's Find against an empty filter
// (the generated "query" in this reference implementation is the gojq
// shaping expression, not a filter document), then shapes each returned
// document through query.
func (p *Provider) ExecuteQuery(ctx context.Context, query string, limit int) (*models.ExecutionResult, error) {
	collections, err := p.source.ListCollections(ctx)
	if err != nil || len(collections) == 0 {
		return &models.ExecutionResult{Success: false, ErrorMessage: "no collections available"}, nil
	}

	docs, err := p.source.Find(ctx, collections[0].Name, nil, limit)
	if err != nil {
		return &models.ExecutionResult{Success: false, ErrorMessage: err.Error()}, nil
	}

	shaped, err := ShapeResults(query, docs)
	if err != nil {
		return &models.ExecutionResult{Success: false, ErrorMessage: err.Error()}, nil
	}

	return &models.ExecutionResult{Success: true, RowCount: len(shaped), SampleRows: shaped}, nil
}

// ShapeResults applies a gojq filter to each document, used to project,
// rename, or aggregate fields server-side-equivalently without a real
// aggregation pipeline.
func ShapeResults(jqExpr string, docs []map[string]any) ([]map[string]any, error) {
	if jqExpr == "" {
		return docs, nil
	}
	query, err := gojq.Parse(jqExpr)
	if err != nil {
		return nil, fmt.Errorf("parse shaping expression: %w", err)
	}

	var out []map[string]any
	for _, doc := range docs {
		iter := query.Run(doc)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, ok := v.(error); ok {
				return nil, fmt.Errorf("shape document: %w", err)
			}
			if shaped, ok := v.(map[string]any); ok {
				out = append(out, shaped)
			}
		}
	}
	return out, nil
}

// ExplainQuery is unsupported; document stores in this reference
// implementation have no query planner to surface.
func (p *Provider) ExplainQuery(ctx context.Context, query string) (string, error) {
	return "", fmt.Errorf("mongoprovider: %w", provider.ErrUnsupported)
}

// EstimateCost is unsupported for the document provider.
func (p *Provider) EstimateCost(ctx context.Context, query string) (float64, error) {
	return 0, fmt.Errorf("mongoprovider: %w", provider.ErrUnsupported)
}
