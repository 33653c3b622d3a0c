package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/queryweave/pkg/models"
)

type fakeSource struct {
	examples map[string]*models.Example
}

func (f *fakeSource) Get(ctx context.Context, id string) (*models.Example, error) {
	ex, ok := f.examples[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return ex, nil
}

func newExample(id string, isGood bool, reviewedAt time.Time) *models.Example {
	return &models.Example{
		ID:            uuid.MustParse(id),
		IsGoodExample: isGood,
		ReviewedAt:    &reviewedAt,
	}
}

const (
	e1 = "11111111-1111-1111-1111-111111111111"
	e2 = "22222222-2222-2222-2222-222222222222"
	e3 = "33333333-3333-3333-3333-333333333333"
)

func TestEngine_Run_MergesBoostsAndRanks(t *testing.T) {
	now := time.Now()
	source := &fakeSource{examples: map[string]*models.Example{
		e1: newExample(e1, true, now),
		e2: newExample(e2, true, now),
		e3: newExample(e3, true, now),
	}}
	engine := New(source)

	strategies := map[Strategy]StrategyFunc{
		StrategyKeyword: func(ctx context.Context) (map[string]float64, error) {
			return map[string]float64{e1: 0.4}, nil
		},
		StrategyVector: func(ctx context.Context) (map[string]float64, error) {
			return map[string]float64{e1: 0.8, e2: 0.7}, nil
		},
		StrategySchemaAware: func(ctx context.Context) (map[string]float64, error) {
			return map[string]float64{e3: 0.6}, nil
		},
		StrategyIntent: func(ctx context.Context) (map[string]float64, error) {
			return map[string]float64{}, nil
		},
	}

	results, err := engine.Run(context.Background(), Params{TopK: 10, MinSimilarity: 0.5}, strategies)
	require.NoError(t, err)
	// e1: mean(0.4,0.8)=0.6 * 1.1 = 0.66; e2: 0.7*1.1=0.77; e3: 0.6*1.1=0.66 (e1 wins the e1/e3 tie on vector score)
	require.Len(t, results, 3)
	assert.Equal(t, e2, results[0].Example.ID.String())
	assert.Equal(t, e1, results[1].Example.ID.String())
	assert.Equal(t, e3, results[2].Example.ID.String())
	assert.InDelta(t, 0.77, results[0].Score, 1e-9)
}

func TestEngine_Run_AllStrategiesFailReturnsEmptyNoError(t *testing.T) {
	engine := New(&fakeSource{examples: map[string]*models.Example{}})

	strategies := map[Strategy]StrategyFunc{
		StrategyKeyword: func(ctx context.Context) (map[string]float64, error) {
			return nil, errors.New("db down")
		},
	}

	results, err := engine.Run(context.Background(), Params{TopK: 5}, strategies)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_Run_PartialFailureStillSucceeds(t *testing.T) {
	source := &fakeSource{examples: map[string]*models.Example{e1: newExample(e1, true, time.Now())}}
	engine := New(source)

	strategies := map[Strategy]StrategyFunc{
		StrategyKeyword: func(ctx context.Context) (map[string]float64, error) {
			return nil, errors.New("timeout")
		},
		StrategyVector: func(ctx context.Context) (map[string]float64, error) {
			return map[string]float64{e1: 0.9}, nil
		},
	}

	results, err := engine.Run(context.Background(), Params{TopK: 5, MinSimilarity: 0.5}, strategies)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, e1, results[0].Example.ID.String())
}

func TestApplyExampleBoost_GoodExampleBoostsAndClamps(t *testing.T) {
	assert.InDelta(t, 1.0, applyExampleBoost(0.95, true, 1.1, 0.7), 1e-9)
	assert.InDelta(t, 0.49, applyExampleBoost(0.7, false, 1.1, 0.7), 1e-9)
}

func TestVectorScores_Normalizes(t *testing.T) {
	scores := VectorScores([]float64{1, 0}, map[string][]float64{
		"a": {1, 0},
		"b": {0, 1},
	})
	assert.InDelta(t, 1.0, scores["a"], 1e-9)
	assert.InDelta(t, 0.5, scores["b"], 1e-9)
}
