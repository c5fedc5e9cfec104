package face

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilaritySelf(t *testing.T) {
	v := []float32{0.5, 0.5, 0.5, 0.5}
	assert.InDelta(t, 1.0, Similarity(v, v), 1e-6)
}

func TestSimilarityOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, Similarity(a, b), 1e-6)
}

func TestSimilarityOpposite(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	assert.InDelta(t, -1.0, Similarity(a, b), 1e-6)
}

func TestSimilarityMismatchedDims(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0}
	assert.Equal(t, 0.0, Similarity(a, b))
}

func TestSimilarityZeroVector(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}
	assert.Equal(t, 0.0, Similarity(a, b))
	assert.Equal(t, 0.0, Similarity(b, a))
	assert.Equal(t, 0.0, Similarity(a, a))
}

func TestSimilarityUnnormalized(t *testing.T) {
	// Cosine similarity is scale-invariant.
	a := []float32{3, 4}
	b := []float32{30, 40}
	assert.InDelta(t, 1.0, Similarity(a, b), 1e-6)
}

func TestMatchThreshold(t *testing.T) {
	a := []float32{1, 0}
	angled := []float32{float32(math.Cos(0.5)), float32(math.Sin(0.5))}

	score, ok := Match(a, a, 0.75)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-6)

	score, ok = Match(a, angled, 0.95)
	assert.False(t, ok)
	assert.Less(t, score, 0.95)

	// Exactly-at-threshold counts as a match.
	score, ok = Match(a, a, 1.0)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-6)
}

func TestMatchZeroVectorScoresZero(t *testing.T) {
	zero := []float32{0, 0}
	ref := []float32{1, 0}
	score, ok := Match(zero, ref, 0.5)
	assert.False(t, ok)
	assert.Equal(t, 0.0, score)
}
