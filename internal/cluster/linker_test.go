package cluster

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sterrors "github.com/standardbeagle/strmatch/internal/errors"
	"github.com/standardbeagle/strmatch/internal/labels"
	"github.com/standardbeagle/strmatch/internal/matrix"
	"github.com/standardbeagle/strmatch/internal/similarity"
)

func buildMatrix(t *testing.T, set labels.Set) *matrix.RatioMatrix {
	t.Helper()
	scorer, err := similarity.NewScorer(similarity.RatcliffObershelp)
	require.NoError(t, err)
	m, _, err := matrix.NewBuilder(scorer, matrix.Options{Concurrency: 2}).Build(set)
	require.NoError(t, err)
	return m
}

func fruitSet() labels.Set {
	return labels.Set{
		labels.Of("apple"),
		labels.Of("appel"),
		labels.Of("banana"),
		labels.Absent(),
		labels.Of("apple"),
	}
}

// randomMatrix builds a matrix with uniformly random ratios and some absent rows
func randomMatrix(t *testing.T, rng *rand.Rand, n int) *matrix.RatioMatrix {
	t.Helper()
	rows := make([][]float64, n)
	absent := roaring.New()
	for i := range rows {
		if rng.Intn(10) == 0 {
			absent.Add(uint32(i))
		}
		rows[i] = make([]float64, i+1)
		for j := 0; j < i; j++ {
			rows[i][j] = rng.Float64()
		}
		rows[i][i] = 1
	}
	m, err := matrix.New(n, rows, absent)
	require.NoError(t, err)
	return m
}

// components is a brute-force reference: repeated relaxation of cluster labels
func components(m *matrix.RatioMatrix, threshold float64) []int {
	label := make([]int, m.Rows())
	for i := range label {
		label[i] = i
	}
	for changed := true; changed; {
		changed = false
		m.EdgesAbove(threshold, func(i, j int, _ float64) {
			lo := min(label[i], label[j])
			if label[i] != lo || label[j] != lo {
				label[i], label[j] = lo, lo
				changed = true
			}
		})
	}
	return label
}

func TestLinkFruitExample(t *testing.T) {
	m := buildMatrix(t, fruitSet())

	// "appel" scores 0.8 against "apple": linked at 0.75, not at 0.85
	p, err := Link(m, 0.75)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1, 4}, {2}, {3}}, p.Clusters())

	p, err = Link(m, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 4}, {1}, {2}, {3}}, p.Clusters())
	assert.Equal(t, 1, p.NonSingletons())
	assert.NoError(t, p.Validate())
}

func TestLinkAbsentAlwaysSingleton(t *testing.T) {
	set := labels.Set{labels.Absent(), labels.Absent(), labels.Of("x"), labels.Absent(), labels.Of("x")}
	m := buildMatrix(t, set)

	// Even a zero threshold never links undefined ratios
	p, err := Link(m, 0)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0}, {1}, {2, 4}, {3}}, p.Clusters())
}

func TestLinkIsStrictlyGreater(t *testing.T) {
	m, err := matrix.New(2, [][]float64{{1}, {0.85, 1}}, nil)
	require.NoError(t, err)

	p, err := Link(m, 0.85)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())

	p, err = Link(m, 0.8499)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Len())
}

func TestLinkTransitiveChain(t *testing.T) {
	// 0-2 and 1-3 link first, then 3-2 joins the two clusters
	rows := [][]float64{
		{1},
		{0.1, 1},
		{0.9, 0.1, 1},
		{0.1, 0.9, 0.9, 1},
		{0.1, 0.1, 0.1, 0.1, 1},
	}
	m, err := matrix.New(5, rows, nil)
	require.NoError(t, err)

	p, err := Link(m, 0.5)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1, 2, 3}, {4}}, p.Clusters())
	assert.Equal(t, p.ClusterOf(0), p.ClusterOf(3))
	assert.NotEqual(t, p.ClusterOf(0), p.ClusterOf(4))
}

func TestLinkWithoutMatrix(t *testing.T) {
	_, err := Link(nil, 0.85)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sterrors.ErrNoMatrix))

	var usage *sterrors.UsageError
	assert.True(t, errors.As(err, &usage))
}

func TestLinkRejectsBadThreshold(t *testing.T) {
	m := buildMatrix(t, fruitSet())
	for _, th := range []float64{-0.1, 1.1} {
		_, err := Link(m, th)
		assert.Error(t, err, "threshold %v", th)
	}
}

func TestLinkPrefixMatrix(t *testing.T) {
	m := buildMatrix(t, fruitSet()).Prefix(3)
	p, err := Link(m, 0.75)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Size())
	assert.Equal(t, [][]int{{0, 1}, {2}}, p.Clusters())
}

func TestLinkEmptyMatrix(t *testing.T) {
	m, err := matrix.New(0, nil, nil)
	require.NoError(t, err)
	p, err := Link(m, 0.85)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())
	assert.NoError(t, p.Validate())
}

func TestLinkMatchesConnectedComponents(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 25; trial++ {
		n := 1 + rng.Intn(60)
		m := randomMatrix(t, rng, n)
		threshold := 0.9 + rng.Float64()*0.1

		p, err := Link(m, threshold)
		require.NoError(t, err)
		require.NoError(t, p.Validate())

		ref := components(m, threshold)
		for i := 0; i < n; i++ {
			for j := 0; j < i; j++ {
				assert.Equal(t, ref[i] == ref[j], p.ClusterOf(i) == p.ClusterOf(j),
					"trial %d: indices %d and %d", trial, i, j)
			}
		}
	}
}

func TestLinkIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	m := randomMatrix(t, rng, 80)

	first, err := Link(m, 0.97)
	require.NoError(t, err)
	second, err := Link(m, 0.97)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestLinkThresholdMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	m := randomMatrix(t, rng, 80)

	var prev *Partition
	for _, th := range []float64{0.9, 0.95, 0.97, 0.98, 0.99, 0.995, 1} {
		p, err := Link(m, th)
		require.NoError(t, err)
		if prev != nil {
			assert.GreaterOrEqual(t, p.Len(), prev.Len(), "raising the threshold never merges more")
			// Every cluster at the higher threshold sits inside one cluster at the lower
			for _, members := range p.Clusters() {
				for _, i := range members[1:] {
					assert.Equal(t, prev.ClusterOf(members[0]), prev.ClusterOf(i))
				}
			}
		}
		prev = p
	}
	assert.Equal(t, 80, prev.Len(), "nothing exceeds 1.0")
}

func TestNearMisses(t *testing.T) {
	rows := [][]float64{
		{1},
		{0.9, 1},
		{0.8, 0.7, 1},
		{0.86, 0.2, 0.75, 1},
	}
	m, err := matrix.New(4, rows, nil)
	require.NoError(t, err)

	p, err := Link(m, 0.85)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 1, 3}, {2}}, p.Clusters())

	pairs, err := NearMisses(m, p, 0.85, 0.7)
	require.NoError(t, err)
	assert.Equal(t, []Pair{{I: 2, J: 0, Ratio: 0.8}, {I: 3, J: 2, Ratio: 0.75}}, pairs)

	// Without a partition, pairs inside a cluster are reported too
	pairs, err = NearMisses(m, nil, 0.9, 0.85)
	require.NoError(t, err)
	assert.Equal(t, []Pair{{I: 1, J: 0, Ratio: 0.9}, {I: 3, J: 0, Ratio: 0.86}}, pairs)

	pairs, err = NearMisses(m, p, 0.85, 0.85)
	require.NoError(t, err)
	assert.Empty(t, pairs)

	_, err = NearMisses(nil, nil, 0.85, 0.5)
	assert.True(t, errors.Is(err, sterrors.ErrNoMatrix))

	_, err = NearMisses(m.Prefix(2), p, 0.85, 0.5)
	assert.Error(t, err)
}
