package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tarsy-labs/queryweave/pkg/embeddings"
	"github.com/tarsy-labs/queryweave/pkg/llm"
	"github.com/tarsy-labs/queryweave/pkg/models"
	"github.com/tarsy-labs/queryweave/pkg/retrieval"
	"github.com/tarsy-labs/queryweave/pkg/schemaexpert"
	"github.com/tarsy-labs/queryweave/pkg/validator"
)

// ExampleRepo is the subset of pkg/store/postgres.ExampleRepo the
// orchestrator reads to drive the four retrieval strategies.
type ExampleRepo interface {
	ApprovedByProvider(ctx context.Context, providerID string) ([]*models.Example, error)
	KeywordSearch(ctx context.Context, providerID, query string, limit int) ([]*models.Example, []float64, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Example, error)
}

// AnnotationRepo matches pkg/schemaexpert.AnnotationSource exactly; named
// here so callers wiring the Orchestrator don't need to import
// pkg/schemaexpert just to spell the constructor's parameter type.
type AnnotationRepo = schemaexpert.AnnotationSource

// exampleSourceAdapter satisfies retrieval.ExampleSource, translating the
// string ids retrieval.Engine deals in back to the uuid.UUID ExampleRepo
// expects.
type exampleSourceAdapter struct {
	repo ExampleRepo
}

func (a exampleSourceAdapter) Get(ctx context.Context, id string) (*models.Example, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: malformed example id %q: %w", id, err)
	}
	return a.repo.Get(ctx, parsed)
}

// providerSchemaSource adapts one provider.Provider into
// schemaexpert.SchemaSource.
type providerSchemaSource struct {
	getSchema func(ctx context.Context) (*models.SchemaContext, error)
}

func (s providerSchemaSource) GetSchema(ctx context.Context) (*models.SchemaContext, error) {
	return s.getSchema(ctx)
}

// dialectFor maps a Provider's free-text QueryLanguage() label onto the
// validator package's closed Dialect enum. The two vocabularies diverge
// (e.g. mongoprovider reports "MongoDB Query") because QueryLanguage is a
// human-readable description and Dialect is a dangerous-operation-
// detection selector; a direct cast would silently fall through to SQL
// detection for a Mongo document query.
func dialectFor(queryLanguage string) validator.Dialect {
	lower := strings.ToLower(queryLanguage)
	switch {
	case strings.Contains(lower, "mongo"):
		return validator.DialectMongoDB
	case strings.Contains(lower, "spl") || strings.Contains(lower, "splunk"):
		return validator.DialectSPL
	default:
		return validator.DialectSQL
	}
}

// keywordStrategy runs Postgres full-text search over the extracted
// keywords, normalizing ts_rank's unbounded output into [0,1] by dividing
// through the batch's own maximum, per spec.md §4.4's Keyword row.
func keywordStrategy(examples ExampleRepo, providerID, keywords string, limit int) retrieval.StrategyFunc {
	return func(ctx context.Context) (map[string]float64, error) {
		exs, scores, err := examples.KeywordSearch(ctx, providerID, keywords, limit)
		if err != nil {
			return nil, fmt.Errorf("keyword strategy: %w", err)
		}
		var max float64
		for _, s := range scores {
			if s > max {
				max = s
			}
		}
		out := make(map[string]float64, len(exs))
		for i, e := range exs {
			if max <= 0 {
				out[e.ID.String()] = 0
				continue
			}
			out[e.ID.String()] = clamp01(scores[i] / max)
		}
		return out, nil
	}
}

// vectorStrategy embeds the question and scores it against every approved
// example carrying a stored embedding, per spec.md §4.4's Vector row.
func vectorStrategy(examples ExampleRepo, embedder embeddings.Embedder, providerID, question string) retrieval.StrategyFunc {
	return func(ctx context.Context) (map[string]float64, error) {
		if embedder == nil {
			return nil, fmt.Errorf("vector strategy: no embedder configured")
		}
		queryVec, err := embedder.Embed(ctx, question)
		if err != nil {
			return nil, fmt.Errorf("vector strategy: embed question: %w", err)
		}

		approved, err := examples.ApprovedByProvider(ctx, providerID)
		if err != nil {
			return nil, fmt.Errorf("vector strategy: %w", err)
		}
		candidates := make(map[string][]float64, len(approved))
		for _, e := range approved {
			if e.EmbeddingsGenerated && len(e.Embedding) > 0 {
				candidates[e.ID.String()] = e.Embedding
			}
		}
		return retrieval.VectorScores(queryVec, candidates), nil
	}
}

// schemaAwareStrategy restricts the keyword signal to examples whose
// involved_tables intersects the turn's SchemaContext, per spec.md §4.4's
// Schema-aware row.
func schemaAwareStrategy(examples ExampleRepo, providerID, question string, schemaTables []string) retrieval.StrategyFunc {
	tableSet := toSet(schemaTables)
	tokens := questionTokens(question)

	return func(ctx context.Context) (map[string]float64, error) {
		if len(tableSet) == 0 {
			return nil, nil
		}
		approved, err := examples.ApprovedByProvider(ctx, providerID)
		if err != nil {
			return nil, fmt.Errorf("schema-aware strategy: %w", err)
		}

		out := make(map[string]float64)
		for _, e := range approved {
			if !intersects(e.InvolvedTables, tableSet) {
				continue
			}
			if score := lexicalOverlap(tokens, strings.ToLower(e.NaturalLanguageQuery)); score > 0 {
				out[e.ID.String()] = score
			}
		}
		return out, nil
	}
}

// intentStrategy classifies the question's query intent via the LLM
// Invoker (heuristic fallback to Filter) and keeps approved examples whose
// own intent matches, per spec.md §4.4's Intent row.
func intentStrategy(examples ExampleRepo, invoker llm.Invoker, providerID, question string) retrieval.StrategyFunc {
	return func(ctx context.Context) (map[string]float64, error) {
		intent := classifyIntent(ctx, invoker, question)

		approved, err := examples.ApprovedByProvider(ctx, providerID)
		if err != nil {
			return nil, fmt.Errorf("intent strategy: %w", err)
		}
		out := make(map[string]float64)
		for _, e := range approved {
			if e.QueryIntent == intent {
				out[e.ID.String()] = 1.0
			}
		}
		return out, nil
	}
}

// classifyIntent asks the LLM Invoker for a single intent label at
// temperature 0, falling back to IntentFilter on a nil invoker, an error,
// or an unrecognized reply, per spec.md §4.4.
func classifyIntent(ctx context.Context, invoker llm.Invoker, question string) models.QueryIntent {
	if invoker == nil {
		return models.IntentFilter
	}
	resp, err := invoker.Invoke(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "Classify the query intent implied by the user's question. Respond with exactly one word: aggregation, filter, join, sort, group_by, subquery, window_function, cte, union, or other."},
		{Role: llm.RoleUser, Content: question},
	}, 0, 16)
	if err != nil {
		return models.IntentFilter
	}
	return parseIntent(resp.Content)
}

func parseIntent(raw string) models.QueryIntent {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "aggregation":
		return models.IntentAggregation
	case "join":
		return models.IntentJoin
	case "sort":
		return models.IntentSort
	case "group_by", "groupby":
		return models.IntentGroupBy
	case "subquery":
		return models.IntentSubquery
	case "window_function", "window":
		return models.IntentWindowFunc
	case "cte":
		return models.IntentCTE
	case "union":
		return models.IntentUnion
	case "other":
		return models.IntentOther
	default:
		return models.IntentFilter
	}
}

// extractKeywords asks the LLM Invoker to pull the salient search terms
// out of question, falling back to whitespace tokens of length ≥ 4 on a
// nil invoker, an error, or an empty reply, per spec.md §4.4.
func extractKeywords(ctx context.Context, invoker llm.Invoker, question string) string {
	if invoker != nil {
		resp, err := invoker.Invoke(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: "Extract the key search terms from this question as a short space-separated list of words, no punctuation, no explanation."},
			{Role: llm.RoleUser, Content: question},
		}, 0, 32)
		if err == nil && strings.TrimSpace(resp.Content) != "" {
			return strings.TrimSpace(resp.Content)
		}
	}
	return heuristicKeywords(question)
}

func heuristicKeywords(question string) string {
	fields := strings.Fields(question)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 4 {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return question
	}
	return strings.Join(kept, " ")
}

// questionTokens and lexicalOverlap mirror pkg/schemaexpert's deterministic
// lexical-match helpers; duplicated rather than exported because they are
// a few lines each and the two packages score different haystacks (table
// metadata there, example question text here).
func questionTokens(question string) []string {
	fields := strings.Fields(strings.ToLower(question))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.Trim(f, ".,?!:;\"'()"))
	}
	return out
}

func lexicalOverlap(tokens []string, haystack string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var hits float64
	for _, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		if strings.Contains(haystack, tok) {
			hits++
		}
	}
	return hits / float64(len(tokens))
}

type stringSet map[string]struct{}

func toSet(items []string) stringSet {
	s := make(stringSet, len(items))
	for _, i := range items {
		s[i] = struct{}{}
	}
	return s
}

func intersects(items []string, set stringSet) bool {
	for _, i := range items {
		if _, ok := set[i]; ok {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
