package vector

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKDTreeIndex_MatchesBrute(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	points := make([][]float64, 500)
	for i := range points {
		p := make([]float64, 6)
		for j := range p {
			p[j] = rng.NormFloat64()
		}
		points[i] = p
	}
	brute, err := NewBruteIndex(points)
	require.NoError(t, err)
	tree, err := NewKDTreeIndex(points)
	require.NoError(t, err)

	for q := 0; q < 50; q++ {
		query := make([]float64, 6)
		for j := range query {
			query[j] = rng.NormFloat64() * 1.5
		}
		want, err := brute.Search(query, 15)
		require.NoError(t, err)
		got, err := tree.Search(query, 15)
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for i := range want {
			assert.Equal(t, want[i].Index, got[i].Index, "query %d rank %d", q, i)
			assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-9)
		}
	}
}

func TestKDTreeIndex_TiesPreferLowerIndex(t *testing.T) {
	// Four points at the same distance from the origin.
	points := [][]float64{{1, 0}, {0, 1}, {-1, 0}, {0, -1}, {5, 5}}
	tree, err := NewKDTreeIndex(points)
	require.NoError(t, err)

	got, err := tree.Search([]float64{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 1, got[1].Index)
}

func TestKDTreeIndex_ExactMatch(t *testing.T) {
	tree, err := NewKDTreeIndex([][]float64{{0, 0}, {10, 10}, {20, 20}})
	require.NoError(t, err)
	got, err := tree.Search([]float64{10, 10}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, 0.0, got[0].Distance)
}

func TestKDTreeIndex_HugeQueryMatchesBrute(t *testing.T) {
	points := [][]float64{{0, 0}, {10, 10}, {20, 20}}
	brute, err := NewBruteIndex(points)
	require.NoError(t, err)
	tree, err := NewKDTreeIndex(points)
	require.NoError(t, err)

	query := []float64{1e200, 0}
	want, err := brute.Search(query, 2)
	require.NoError(t, err)
	got, err := tree.Search(query, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range want {
		assert.Equal(t, want[i].Index, got[i].Index)
		assert.False(t, math.IsInf(got[i].Distance, 0), "distance should stay finite")
		assert.Equal(t, want[i].Distance, got[i].Distance)
	}
}
