// Package retrieval runs the four concurrent example-retrieval strategies
// (keyword, vector, schema-aware, intent) and merges their results into a
// ranked example list, grounded on jordigilh-kubernaut's errgroup-based
// fan-out and generalized from the teacher's SubAgentRunner
// goroutine-per-task + result-collection idiom
// (pkg/agent/orchestrator/runner.go) to strategy-per-goroutine.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/tarsy-labs/queryweave/pkg/embeddings"
	"github.com/tarsy-labs/queryweave/pkg/models"
)

// Strategy identifies one retrieval strategy for logging/metrics.
type Strategy string

const (
	StrategyKeyword     Strategy = "keyword"
	StrategyVector      Strategy = "vector"
	StrategySchemaAware Strategy = "schema_aware"
	StrategyIntent      Strategy = "intent"
)

// StrategyResult is one strategy's scored hits, example id -> score in
// [0,1].
type StrategyResult struct {
	Strategy Strategy
	Scores   map[string]float64
}

// StrategyFunc runs one retrieval strategy and returns its scores.
type StrategyFunc func(ctx context.Context) (map[string]float64, error)

// ExampleSource resolves example ids to full records, used to read
// IsGoodExample/ReviewedAt for the boost and tie-break, and to hydrate
// the final ranked list.
type ExampleSource interface {
	Get(ctx context.Context, id string) (*models.Example, error)
}

// Params configures a retrieval run.
type Params struct {
	TopK              int
	MinSimilarity     float64
	GoodExampleBoost  float64
	BadExamplePenalty float64
}

// Engine runs all configured strategies concurrently and merges results.
type Engine struct {
	source ExampleSource
}

// New builds a retrieval Engine over source.
func New(source ExampleSource) *Engine {
	return &Engine{source: source}
}

// RankedExample pairs a retrieved Example with its final merged score, so
// downstream consumers (the confidence scorer's example_similarity signal,
// reasoning-trace summaries) don't need to recompute or guess it.
type RankedExample struct {
	Example *models.Example
	Score   float64
}

// Run executes each strategy concurrently via errgroup; an individual
// strategy's failure is swallowed so the engine still succeeds as long as
// at least one strategy returns results. All-strategies-failed returns an
// empty, non-error result, since examples are advisory.
func (e *Engine) Run(ctx context.Context, params Params, strategies map[Strategy]StrategyFunc) ([]RankedExample, error) {
	results := make([]StrategyResult, len(strategies))
	names := make([]Strategy, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, fn := i, strategies[name]
		name := name
		g.Go(func() error {
			scores, err := fn(gctx)
			if err != nil {
				results[i] = StrategyResult{Strategy: name}
				return nil
			}
			results[i] = StrategyResult{Strategy: name, Scores: scores}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("retrieval fan-out: %w", err)
	}

	succeeded := false
	for _, r := range results {
		if r.Scores != nil {
			succeeded = true
			break
		}
	}
	if !succeeded {
		return nil, nil
	}

	merged := mergeScores(results)

	candidates := make([]candidate, 0, len(merged))
	for id, mean := range merged.means {
		ex, err := e.source.Get(ctx, id)
		if err != nil {
			continue
		}
		boost := params.GoodExampleBoost
		penalty := params.BadExamplePenalty
		score := applyExampleBoost(mean, ex.IsGoodExample, boost, penalty)
		candidates = append(candidates, candidate{
			example:    ex,
			score:      score,
			vectorHint: merged.vectorHints[id],
		})
	}

	ranked := rankCandidates(candidates, params)

	out := make([]RankedExample, len(ranked))
	for i, c := range ranked {
		out[i] = RankedExample{Example: c.example, Score: c.score}
	}
	return out, nil
}

// mergedScores holds, per example id, the cross-strategy mean and the
// raw vector-strategy score (used only as a tie-break hint).
type mergedScores struct {
	means       map[string]float64
	vectorHints map[string]float64
}

// mergeScores groups per-strategy scores by example id and computes the
// mean across strategies that returned that id — strategies that skipped
// an id contribute nothing to its average, per spec.md §4.4.
func mergeScores(results []StrategyResult) mergedScores {
	sums := map[string]float64{}
	counts := map[string]int{}
	vectorHints := map[string]float64{}

	for _, r := range results {
		for id, score := range r.Scores {
			sums[id] += score
			counts[id]++
			if r.Strategy == StrategyVector {
				vectorHints[id] = score
			}
		}
	}

	means := make(map[string]float64, len(sums))
	for id, sum := range sums {
		means[id] = sum / float64(counts[id])
	}
	return mergedScores{means: means, vectorHints: vectorHints}
}

// candidate is one boosted, clamped example awaiting final ranking.
type candidate struct {
	example    *models.Example
	score      float64
	vectorHint float64
}

// rankCandidates drops rows below MinSimilarity, sorts descending with
// the spec's tie-break (higher vector score, then more recent
// reviewed_at), and truncates at TopK.
func rankCandidates(candidates []candidate, params Params) []candidate {
	minSim := params.MinSimilarity
	if minSim == 0 {
		minSim = 0.7
	}

	filtered := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.score >= minSim {
			filtered = append(filtered, c)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].score != filtered[j].score {
			return filtered[i].score > filtered[j].score
		}
		if filtered[i].vectorHint != filtered[j].vectorHint {
			return filtered[i].vectorHint > filtered[j].vectorHint
		}
		return reviewedAt(filtered[i].example) > reviewedAt(filtered[j].example)
	})

	if params.TopK > 0 && len(filtered) > params.TopK {
		filtered = filtered[:params.TopK]
	}
	return filtered
}

func reviewedAt(ex *models.Example) int64 {
	if ex.ReviewedAt == nil {
		return 0
	}
	return ex.ReviewedAt.Unix()
}

// applyExampleBoost multiplies score by boost (is_good_example) or
// penalty (bad example), then clamps to [0,1], per spec.md §4.4.
func applyExampleBoost(score float64, isGoodExample bool, boost, penalty float64) float64 {
	if boost == 0 {
		boost = 1.1
	}
	if penalty == 0 {
		penalty = 0.7
	}

	if isGoodExample {
		score *= boost
	} else {
		score *= penalty
	}
	return clamp01(score)
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

// VectorScores computes cosine-similarity scores of queryEmbedding
// against a set of candidate embeddings, normalized into [0,1].
func VectorScores(queryEmbedding []float64, candidates map[string][]float64) map[string]float64 {
	out := make(map[string]float64, len(candidates))
	for id, emb := range candidates {
		out[id] = embeddings.Normalize(embeddings.CosineSimilarity(queryEmbedding, emb))
	}
	return out
}
