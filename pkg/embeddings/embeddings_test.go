package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity_IdenticalVectors(t *testing.T) {
	a := []float64{1, 2, 3}
	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
}

func TestCosineSimilarity_OrthogonalVectors(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0, 1}
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)
}

func TestCosineSimilarity_MismatchedLengthReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 2}, []float64{1}))
}

func TestCosineSimilarity_ZeroVectorReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 2}))
}

func TestNormalize_ClampsToUnitRange(t *testing.T) {
	assert.InDelta(t, 1.0, Normalize(1.0), 1e-9)
	assert.InDelta(t, 0.0, Normalize(-1.0), 1e-9)
	assert.InDelta(t, 0.5, Normalize(0.0), 1e-9)
}

func TestMean_AveragesElementwise(t *testing.T) {
	vectors := [][]float64{{1, 1}, {3, 3}}
	assert.Equal(t, []float64{2, 2}, Mean(vectors))
}

func TestMean_EmptyReturnsNil(t *testing.T) {
	assert.Nil(t, Mean(nil))
}
