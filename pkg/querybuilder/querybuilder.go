// Package querybuilder implements the Query Builder (C7): it drafts a
// candidate query from the schema context and retrieved examples, refines
// it against validator feedback across iterations, and scores the result's
// confidence. Iteration-state shape is grounded on the teacher's
// pkg/agent/controller/iterating.go loop (current iteration, accumulated
// state, abort check); the prompt/parsing contract is grounded on
// original_source/src/text2x/agents/query_builder.py.
package querybuilder

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tarsy-labs/queryweave/pkg/llm"
	"github.com/tarsy-labs/queryweave/pkg/models"
	"github.com/tarsy-labs/queryweave/pkg/retrieval"
)

// GenerationTemperature is the fixed low temperature used for both
// generation and refinement, per spec.md §4.5 ("temperature is fixed low,
// ≤ 0.2").
const GenerationTemperature = 0.1

// maxExamplesInPrompt bounds how many top-ranked good examples are surfaced
// per spec.md §4.5 ("up to 3 top-ranked good examples").
const maxExamplesInPrompt = 3

// Request carries everything the builder needs to draft or refine one
// iteration's query.
type Request struct {
	Question      string
	QueryLanguage string
	Schema        *models.SchemaContext
	GoodExamples  []retrieval.RankedExample
	BadExamples   []retrieval.RankedExample

	Iteration     int
	PriorDraft    string
	PriorFeedback *models.ValidationResult
}

// Result is one iteration's drafted query plus its reasoning trail.
type Result struct {
	Query          string
	ReasoningSteps []string
}

// Builder drives query generation/refinement through an LLM Invoker.
type Builder struct {
	invoker llm.Invoker
}

// New builds a Builder over invoker.
func New(invoker llm.Invoker) *Builder {
	return &Builder{invoker: invoker}
}

// Generate drafts (iteration 1) or refines (iteration 2..N) a candidate
// query, per spec.md §4.5.
func (b *Builder) Generate(ctx context.Context, req Request) (*Result, error) {
	prompt := b.buildPrompt(req)
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(req.QueryLanguage)},
		{Role: llm.RoleUser, Content: prompt},
	}

	resp, err := b.invoker.Invoke(ctx, messages, GenerationTemperature, 0)
	if err != nil {
		return nil, fmt.Errorf("querybuilder: invoke llm: %w", err)
	}

	query, reasoning := ParseResponse(resp.Content, req.QueryLanguage)
	return &Result{Query: query, ReasoningSteps: reasoning}, nil
}

func systemPrompt(queryLanguage string) string {
	return fmt.Sprintf("You are a careful %s query generator. Only reference tables and columns you are given; never invent schema elements.", queryLanguage)
}

func (b *Builder) buildPrompt(req Request) string {
	if req.Iteration <= 1 {
		return buildInitialPrompt(req)
	}
	return buildRefinementPrompt(req)
}

func buildInitialPrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate a %s query to answer the following natural language question.\n\n", req.QueryLanguage)
	fmt.Fprintf(&sb, "User Question: %s\n\n", req.Question)
	sb.WriteString("Database Schema:\n")
	sb.WriteString(formatSchema(req.Schema))
	sb.WriteString("\n\n")

	if examples := formatExamples(req.GoodExamples, req.BadExamples); examples != "" {
		sb.WriteString("Similar Examples:\n")
		sb.WriteString(examples)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Instructions:\n")
	sb.WriteString("1. Analyze the user question carefully.\n")
	sb.WriteString("2. Identify the required tables and columns from the schema.\n")
	sb.WriteString("3. Consider the similar examples if provided.\n")
	fmt.Fprintf(&sb, "4. Generate a complete, executable %s query.\n", req.QueryLanguage)
	sb.WriteString("5. Ensure the query is syntactically correct.\n\n")
	sb.WriteString(responseFormatInstructions())
	return sb.String()
}

func buildRefinementPrompt(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The previous query attempt (iteration %d) failed validation.\n\n", req.Iteration-1)
	fmt.Fprintf(&sb, "User Question: %s\n\n", req.Question)
	sb.WriteString("Database Schema:\n")
	sb.WriteString(formatSchema(req.Schema))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Previous Draft:\n%s\n\n", req.PriorDraft)
	sb.WriteString("Validation Feedback:\n")
	sb.WriteString(formatFeedback(req.PriorFeedback))
	sb.WriteString("\n\n")
	sb.WriteString("Instructions:\n")
	sb.WriteString("1. Review the validation feedback carefully.\n")
	sb.WriteString("2. Identify what went wrong in the previous attempt.\n")
	sb.WriteString("3. Generate a corrected query that addresses the issues.\n\n")
	sb.WriteString(responseFormatInstructions())
	return sb.String()
}

func responseFormatInstructions() string {
	return "Respond in JSON format:\n{\n  \"reasoning\": [\"step 1\", \"step 2\"],\n  \"query\": \"your query here\"\n}"
}

func formatSchema(schema *models.SchemaContext) string {
	if schema == nil {
		return "(no schema available)"
	}
	var sb strings.Builder
	for _, t := range schema.Tables {
		fmt.Fprintf(&sb, "\nTable: %s\n", t.Name)
		for _, c := range t.Columns {
			suffix := ""
			if !c.Nullable {
				suffix = " NOT NULL"
			}
			fmt.Fprintf(&sb, "  - %s (%s)%s\n", c.Name, c.DataType, suffix)
		}
	}
	if len(schema.SuggestedJoins) > 0 {
		sb.WriteString("\nSuggested Joins:\n")
		for _, j := range schema.SuggestedJoins {
			fmt.Fprintf(&sb, "  %s\n", j)
		}
	}
	return sb.String()
}

func formatFeedback(v *models.ValidationResult) string {
	if v == nil || v.Valid {
		return "No specific feedback provided."
	}
	var sb strings.Builder
	for _, e := range append(append([]string{}, v.SyntaxErrors...), v.SemanticErrors...) {
		fmt.Fprintf(&sb, "Error: %s\n", e)
	}
	if len(v.Warnings) > 0 {
		fmt.Fprintf(&sb, "Suggestions: %s\n", strings.Join(v.Warnings, ", "))
	}
	return sb.String()
}

// formatExamples renders up to maxExamplesInPrompt good examples plus any
// bad examples paired with their expert corrections, per spec.md §4.5.
func formatExamples(good, bad []retrieval.RankedExample) string {
	var sb strings.Builder
	n := 0
	for _, ex := range good {
		if n >= maxExamplesInPrompt {
			break
		}
		n++
		fmt.Fprintf(&sb, "\nGood Example %d:\nQuestion: %s\nQuery: %s\n", n, ex.Example.NaturalLanguageQuery, ex.Example.QueryForRetrieval())
	}
	for i, ex := range bad {
		fmt.Fprintf(&sb, "\nBad Example %d (avoid):\nQuestion: %s\nQuery: %s\n", i+1, ex.Example.NaturalLanguageQuery, ex.Example.GeneratedQuery)
		if ex.Example.ExpertCorrectedQuery != "" {
			fmt.Fprintf(&sb, "Corrected: %s\n", ex.Example.ExpertCorrectedQuery)
		}
	}
	return sb.String()
}

// taggedResponse is the JSON shape the LLM is instructed to emit.
type taggedResponse struct {
	Reasoning []string `json:"reasoning"`
	Query     string   `json:"query"`
}

// fencedBlockPattern matches a fenced code block, optionally tagged with a
// language hint; group 1 is the tag (possibly empty), group 2 the body.
var fencedBlockPattern = regexp.MustCompile("(?s)```([a-zA-Z0-9_-]*)\\s*\\n(.*?)\\n```")

// ParseResponse parses the LLM's tagged-JSON output into (query,
// reasoning); on failure it falls back to extracting the first fenced code
// block whose tag matches queryLanguage, or any fenced block if none
// matches, per spec.md §4.5.
func ParseResponse(content, queryLanguage string) (query string, reasoning []string) {
	clean := stripFence(strings.TrimSpace(content))

	var tagged taggedResponse
	if err := json.Unmarshal([]byte(clean), &tagged); err == nil && tagged.Query != "" {
		return tagged.Query, tagged.Reasoning
	}

	if q, ok := extractFencedBlock(content, queryLanguage); ok {
		return q, []string{"extracted query from fenced code block (tagged parse failed)"}
	}

	return strings.TrimSpace(content), []string{"used raw LLM response as query (no structured output found)"}
}

// stripFence removes a single leading/trailing ``` or ```json fence so a
// whole-response code block still parses as JSON.
func stripFence(s string) string {
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func extractFencedBlock(content, queryLanguage string) (string, bool) {
	matches := fencedBlockPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return "", false
	}

	lang := strings.ToLower(queryLanguage)
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if tag == lang || (lang == "sql" && tag == "sql") {
			return strings.TrimSpace(m[2]), true
		}
	}
	return strings.TrimSpace(matches[0][2]), true
}
