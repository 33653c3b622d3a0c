// Package schemaexpert implements the Schema Expert (C5): it restricts a
// provider's full schema down to the tables and join paths likely to answer
// one user question, annotated with the workspace's business context.
// Scoring is grounded on the teacher's pkg/agent/context formatters (plain
// functions building a prompt-ready structure from accumulated state), with
// the lexical/annotation signals themselves grounded on
// original_source/src/text2x/services/schema_service.py's relevance pass.
package schemaexpert

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tarsy-labs/queryweave/pkg/config"
	"github.com/tarsy-labs/queryweave/pkg/models"
)

// SchemaSource resolves a provider's full schema. Implementations wrap the
// external schema-caching service (out of scope here; see spec.md §4.3
// step 1) or call the Provider directly when no cache is configured.
type SchemaSource interface {
	GetSchema(ctx context.Context) (*models.SchemaContext, error)
}

// AnnotationSource resolves the workspace annotations for a provider.
type AnnotationSource interface {
	ByProvider(ctx context.Context, providerID string) ([]models.Annotation, error)
}

// Request asks the Schema Expert to restrict a schema to one question.
type Request struct {
	ProviderID   string
	Question     string
	PriorTables  []string // tables this conversation has previously selected
}

// Expert selects and annotates the SchemaContext for one question.
type Expert struct {
	schemas     SchemaSource
	annotations AnnotationSource
	cfg         *config.SchemaExpertConfig
}

// New builds an Expert over the given schema and annotation sources.
func New(schemas SchemaSource, annotations AnnotationSource, cfg *config.SchemaExpertConfig) *Expert {
	if cfg == nil {
		cfg = config.DefaultSchemaExpertConfig()
	}
	return &Expert{schemas: schemas, annotations: annotations, cfg: cfg}
}

// Select runs the spec.md §4.3 algorithm: fetch, overlay, score, keep top K,
// close over foreign keys, and emit suggested joins. Never invents a table
// or column absent from the fetched schema.
func (e *Expert) Select(ctx context.Context, req Request) (*models.SchemaContext, error) {
	full, err := e.schemas.GetSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("schemaexpert: get schema: %w", err)
	}
	if full == nil || len(full.Tables) == 0 {
		return &models.SchemaContext{}, nil
	}

	annotations, err := e.annotations.ByProvider(ctx, req.ProviderID)
	if err != nil {
		// Annotations are advisory context, not a correctness requirement;
		// degrade to an unannotated schema rather than failing the turn.
		annotations = nil
	}

	overlaid := make([]models.Table, len(full.Tables))
	copy(overlaid, full.Tables)
	priorSet := toSet(req.PriorTables)
	tokens := questionTokens(req.Question)

	scored := make([]scoredTable, 0, len(overlaid))
	for _, t := range overlaid {
		scored = append(scored, scoredTable{
			table: t,
			score: scoreTable(t, annotations, tokens, priorSet.Contains(t.Name), e.cfg.RecencyBoost),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	topK := e.cfg.TopKTables
	if topK <= 0 || topK > len(scored) {
		topK = len(scored)
	}
	kept := make(map[string]models.Table, topK)
	order := make([]string, 0, topK)
	for _, s := range scored[:topK] {
		kept[s.table.Name] = s.table
		order = append(order, s.table.Name)
	}

	joins := closeOverForeignKeys(overlaid, kept, annotations)

	tables := make([]models.Table, 0, len(kept))
	for _, name := range order {
		tables = append(tables, kept[name])
	}
	// Closure additions, appended after the ranked set so the ranked
	// order (the scorer's confidence signal) stays stable.
	for name, t := range kept {
		if !contains(order, name) {
			tables = append(tables, t)
		}
	}

	return &models.SchemaContext{
		Tables:         tables,
		Annotations:    annotations,
		SuggestedJoins: joins,
	}, nil
}

type scoredTable struct {
	table models.Table
	score float64
}

type stringSet map[string]struct{}

func toSet(items []string) stringSet {
	s := make(stringSet, len(items))
	for _, i := range items {
		s[i] = struct{}{}
	}
	return s
}

func (s stringSet) Contains(v string) bool {
	_, ok := s[v]
	return ok
}

func contains(list []string, v string) bool {
	for _, l := range list {
		if l == v {
			return true
		}
	}
	return false
}

// questionTokens lower-cases and splits the question into whitespace
// tokens, the deterministic fallback vocabulary used throughout the system
// whenever an LLM-based extraction step is unavailable or fails.
func questionTokens(question string) []string {
	fields := strings.Fields(strings.ToLower(question))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.Trim(f, ".,?!:;\"'()"))
	}
	return out
}

// scoreTable combines the three spec.md §4.3 step-3 signals: lexical match
// against the table's name/description/business_terms, is_searchable
// column hits against literals in the question, and a recency prior.
func scoreTable(t models.Table, annotations []models.Annotation, tokens []string, wasPriorTable bool, recencyBoost float64) float64 {
	var score float64

	haystack := strings.ToLower(t.Name)
	for _, a := range annotations {
		if a.TableName != t.Name {
			continue
		}
		if a.IsTableAnnotation() {
			haystack += " " + strings.ToLower(a.Description)
			for _, term := range a.BusinessTerms {
				haystack += " " + strings.ToLower(term)
			}
		}
	}
	score += lexicalOverlap(tokens, haystack)

	for _, a := range annotations {
		if a.TableName != t.Name || a.IsTableAnnotation() || !a.IsSearchable {
			continue
		}
		for _, tok := range tokens {
			if tok != "" && strings.Contains(strings.ToLower(a.ColumnName), tok) {
				score += 0.2
				break
			}
		}
	}

	if wasPriorTable {
		score += recencyBoost
	}

	return score
}

// lexicalOverlap is a BM25-free stand-in: the fraction of question tokens
// present in haystack, each hit counting equally; tokens shorter than
// three characters are skipped.
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
			hits += 1
		}
	}
	return hits / float64(len(tokens))
}

// closeOverForeignKeys adds any table reachable by exactly one join step
// from a kept table, when the edge's join hint marks it safe — i.e. not a
// many_to_many hint, which the spec calls out as the cardinality-unsafe
// case. Only tables present in the full schema may be added; nothing is
// invented.
func closeOverForeignKeys(full []models.Table, kept map[string]models.Table, annotations []models.Annotation) []string {
	byName := make(map[string]models.Table, len(full))
	for _, t := range full {
		byName[t.Name] = t
	}

	joinHints := make(map[string]*models.JoinHint) // "table.column" -> hint
	for _, a := range annotations {
		if a.JoinHint != nil && !a.IsTableAnnotation() {
			joinHints[a.TableName+"."+a.ColumnName] = a.JoinHint
		}
	}

	var joins []string
	for name, t := range kept {
		for _, fk := range t.ForeignKeys {
			hint := joinHints[name+"."+fk.Column]
			safe := hint == nil || hint.Cardinality != "many_to_many"
			if !safe {
				continue
			}
			if _, already := kept[fk.ReferencedTable]; already {
				joins = append(joins, suggestedJoin(name, fk))
				continue
			}
			if target, ok := byName[fk.ReferencedTable]; ok {
				kept[fk.ReferencedTable] = target
				joins = append(joins, suggestedJoin(name, fk))
			}
		}
	}
	return joins
}

// suggestedJoin renders a provider-native (SQL-shaped) join clause; non-SQL
// providers translate this suggestion through their own query builder step.
func suggestedJoin(table string, fk models.ForeignKey) string {
	return fmt.Sprintf("JOIN %s ON %s.%s = %s.%s", fk.ReferencedTable, table, fk.Column, fk.ReferencedTable, fk.ReferencedCol)
}
