package querybuilder

import (
	"math"
	"regexp"
	"strings"

	"github.com/tarsy-labs/queryweave/pkg/config"
	"github.com/tarsy-labs/queryweave/pkg/models"
	"github.com/tarsy-labs/queryweave/pkg/retrieval"
)

// tableRefPattern pulls the identifier following FROM/JOIN out of a draft
// query — the one table-reference signal that reads the same across the
// SQL/Mongo/SPL dialects Providers generate, without a per-dialect parser.
var tableRefPattern = regexp.MustCompile(`(?i)\b(?:from|join)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)

// ambiguityIndicators are hedging terms whose presence in the user's
// question lowers the non_ambiguity signal, carried over from
// original_source/src/text2x/agents/query_builder.py's
// _detect_ambiguity word list.
var ambiguityIndicators = []string{
	"maybe", "possibly", "might", "could", "unclear",
	"ambiguous", "not sure", "something", "stuff", "things",
}

// complexityKeywords are question words that imply the answer needs a
// join/aggregation/subquery, carried over from the same source's
// _assess_complexity.
var complexityKeywords = []string{
	"total", "average", "count", "how many", "sum", "maximum", "minimum",
	"each", "per", "group", "compare",
}

// Score computes the spec.md §4.5 weighted confidence sum, rounded to
// three decimals.
func Score(weights config.ConfidenceWeights, question, draft string, schema *models.SchemaContext, goodExamples []retrieval.RankedExample, iteration int) models.ConfidenceScore {
	s := models.ConfidenceScore{
		SchemaCoverage:    SchemaCoverage(draft, schema),
		ExampleSimilarity: ExampleSimilarity(goodExamples),
		ComplexityMatch:   ComplexityMatch(draft, question),
		IterationPenalty:  IterationPenalty(iteration),
		NonAmbiguity:      NonAmbiguity(question),
	}
	sum := s.SchemaCoverage*weights.SchemaCoverage +
		s.ExampleSimilarity*weights.ExampleSimilarity +
		s.ComplexityMatch*weights.ComplexityMatch +
		s.IterationPenalty*weights.IterationPenalty +
		s.NonAmbiguity*weights.NonAmbiguity
	s.Value = roundTo3(sum)
	return s
}

// SchemaCoverage is the fraction of the draft's FROM/JOIN table
// identifiers that name a real SchemaContext table; 0.7 neutral when the
// draft names no identifiable table at all (e.g. a MongoDB query
// referencing its collection via a separate field). Unlike a lookup the
// other direction (schema table found somewhere in the draft), this
// catches a draft that invents a table absent from the schema — it
// references something, so this is scored, and scored low.
func SchemaCoverage(draft string, schema *models.SchemaContext) float64 {
	refs := referencedTables(draft)
	if len(refs) == 0 {
		return 0.7
	}
	if schema == nil || len(schema.Tables) == 0 {
		return 0.7
	}

	known := make(map[string]bool, len(schema.Tables))
	for _, t := range schema.Tables {
		known[strings.ToLower(t.Name)] = true
	}

	var matched int
	for ref := range refs {
		if known[ref] {
			matched++
		}
	}
	return float64(matched) / float64(len(refs))
}

func referencedTables(draft string) map[string]bool {
	refs := make(map[string]bool)
	for _, m := range tableRefPattern.FindAllStringSubmatch(draft, -1) {
		refs[strings.ToLower(m[1])] = true
	}
	return refs
}

// ExampleSimilarity is the maximum retrieval score among good examples; 0.5
// neutral when none were retrieved.
func ExampleSimilarity(examples []retrieval.RankedExample) float64 {
	var max float64
	var any bool
	for _, ex := range examples {
		if ex.Example == nil || !ex.Example.IsGoodExample {
			continue
		}
		any = true
		if ex.Score > max {
			max = ex.Score
		}
	}
	if !any {
		return 0.5
	}
	return max
}

// ComplexityMatch rewards a draft whose structural complexity (join,
// aggregation, subquery markers) matches the question's implied
// complexity; both present or both absent score 0.9, a mismatch scores 0.7.
func ComplexityMatch(draft, question string) float64 {
	draftHasComplexity := draftComplexityMarkers(draft)
	questionImpliesComplexity := containsAny(strings.ToLower(question), complexityKeywords)

	if questionImpliesComplexity == draftHasComplexity {
		return 0.9
	}
	return 0.7
}

func draftComplexityMarkers(draft string) bool {
	lower := strings.ToLower(draft)
	if strings.Contains(lower, "join") {
		return true
	}
	for _, agg := range []string{"count", "sum(", "avg(", "max(", "min(", "group by"} {
		if strings.Contains(lower, agg) {
			return true
		}
	}
	if strings.Contains(draft, "(") && strings.Contains(lower, "select") {
		return true
	}
	return false
}

// IterationPenalty decays by 0.1 per iteration past the first, floored at
// 0.5.
func IterationPenalty(iteration int) float64 {
	return math.Max(0.5, 1-float64(iteration-1)*0.1)
}

// NonAmbiguity is 1 minus the question's ambiguity score: each hedging
// word found, plus a penalty for questions under 3 whitespace tokens,
// contributes 0.3, capped at 1.
func NonAmbiguity(question string) float64 {
	lower := strings.ToLower(question)
	var count int
	for _, ind := range ambiguityIndicators {
		if strings.Contains(lower, ind) {
			count++
		}
	}
	if len(strings.Fields(question)) < 3 {
		count++
	}
	ambiguity := math.Min(1, float64(count)*0.3)
	return 1 - ambiguity
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func roundTo3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
