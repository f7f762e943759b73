package matrix

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/strmatch/internal/labels"
	"github.com/standardbeagle/strmatch/internal/similarity"
)

func sampleSet() labels.Set {
	return labels.Set{
		labels.Of("apple"),
		labels.Of("appel"),
		labels.Of("banana"),
		labels.Absent(),
		labels.Of("apple"),
	}
}

func newScorer(t *testing.T) *similarity.Scorer {
	t.Helper()
	s, err := similarity.NewScorer(similarity.RatcliffObershelp)
	require.NoError(t, err)
	return s
}

// memoryStore is an in-memory Store that records calls
type memoryStore struct {
	mu    sync.Mutex
	set   labels.Set
	m     *RatioMatrix
	saves int
	loads int
}

func (s *memoryStore) Load(set labels.Set) (*RatioMatrix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.m == nil {
		return nil, errors.New("empty")
	}
	if !s.set.Equal(set) {
		return nil, errors.New("stale")
	}
	return s.m, nil
}

func (s *memoryStore) Save(set labels.Set, m *RatioMatrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.set = append(labels.Set(nil), set...)
	s.m = m
	return nil
}

func TestBuildFull(t *testing.T) {
	set := sampleSet()
	m, stats, err := NewBuilder(newScorer(t), Options{Concurrency: 4}).Build(set)
	require.NoError(t, err)

	assert.Equal(t, 5, m.Rows())
	assert.True(t, m.Complete())
	assert.Equal(t, int64(15), stats.Ratios)
	assert.False(t, stats.FromCache)

	for i := 0; i < m.Rows(); i++ {
		assert.Len(t, m.RawRows()[i], i+1)
	}

	r, ok := m.At(4, 0)
	require.True(t, ok)
	assert.Equal(t, 1.0, r)

	r, ok = m.At(1, 0)
	require.True(t, ok)
	assert.InDelta(t, 0.8, r, 1e-12)

	for j := 0; j < 5; j++ {
		_, ok := m.At(3, j)
		assert.False(t, ok, "absent label must have undefined ratios (j=%d)", j)
	}

	d, ok := m.At(2, 2)
	require.True(t, ok)
	assert.Equal(t, 1.0, d)
}

func TestBuildPrefix(t *testing.T) {
	set := sampleSet()
	m, stats, err := NewBuilder(newScorer(t), Options{MaxIndex: 3, Concurrency: 2}).Build(set)
	require.NoError(t, err)

	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 5, m.Size())
	assert.False(t, m.Complete())
	assert.Equal(t, int64(6), stats.Ratios)
	assert.GreaterOrEqual(t, stats.ExpectedFullDuration, stats.Duration)
}

func TestBuildRejectsBadMaxIndex(t *testing.T) {
	_, _, err := NewBuilder(newScorer(t), Options{MaxIndex: 6}).Build(sampleSet())
	assert.Error(t, err)

	_, _, err = NewBuilder(newScorer(t), Options{MaxIndex: -1}).Build(sampleSet())
	assert.Error(t, err)
}

func TestBuildEmptySet(t *testing.T) {
	m, stats, err := NewBuilder(newScorer(t), Options{}).Build(labels.Set{})
	require.NoError(t, err)
	assert.Equal(t, 0, m.Rows())
	assert.Equal(t, int64(0), stats.Ratios)
}

func TestBuildConcurrencyIndependent(t *testing.T) {
	set := make(labels.Set, 0, 120)
	for i := 0; i < 120; i++ {
		if i%17 == 0 {
			set = append(set, labels.Absent())
			continue
		}
		set = append(set, labels.Of(fmt.Sprintf("Author %d, Title of work %d (%d)", i%7, i%11, 1990+i%5)))
	}

	serial, _, err := NewBuilder(newScorer(t), Options{Concurrency: 1}).Build(set)
	require.NoError(t, err)
	parallel, _, err := NewBuilder(newScorer(t), Options{Concurrency: 8}).Build(set)
	require.NoError(t, err)

	assert.True(t, serial.Equal(parallel))
}

func TestBuildReportsProgress(t *testing.T) {
	set := make(labels.Set, 101)
	for i := range set {
		set[i] = labels.Of(fmt.Sprintf("label %d", i))
	}

	var mu sync.Mutex
	var reports []Progress
	reporter := ReporterFunc(func(p Progress) {
		mu.Lock()
		defer mu.Unlock()
		reports = append(reports, p)
	})

	b := NewBuilder(newScorer(t), Options{Concurrency: 4, Reporter: reporter, ProgressEvery: 50})
	_, stats, err := b.Build(set)
	require.NoError(t, err)

	// Rows 0, 50 and 100 fall on the cadence
	require.Len(t, reports, 3)
	rows := map[int]bool{}
	for _, p := range reports {
		rows[p.Row] = true
		assert.Equal(t, TotalRatios(101), p.Total)
		assert.Greater(t, p.Computed, int64(0))
		assert.LessOrEqual(t, p.Computed, p.Total)
		assert.True(t, p.RemainingKnown)
	}
	assert.Equal(t, map[int]bool{0: true, 50: true, 100: true}, rows)
	assert.Equal(t, TotalRatios(101), stats.Ratios)

	_, inFlight := b.Progress()
	assert.False(t, inFlight)
}

func TestBuildUsesCache(t *testing.T) {
	set := sampleSet()
	store := &memoryStore{}

	first, stats, err := NewBuilder(newScorer(t), Options{Store: store}).Build(set)
	require.NoError(t, err)
	assert.False(t, stats.FromCache)
	assert.True(t, stats.CacheSaved)
	assert.Equal(t, 1, store.saves)

	second, stats, err := NewBuilder(newScorer(t), Options{Store: store}).Build(set)
	require.NoError(t, err)
	assert.True(t, stats.FromCache)
	assert.Same(t, first, second)
	assert.Equal(t, 1, store.saves)

	// A prefix build is served from the cached full matrix
	prefix, stats, err := NewBuilder(newScorer(t), Options{Store: store, MaxIndex: 2}).Build(set)
	require.NoError(t, err)
	assert.True(t, stats.FromCache)
	assert.Equal(t, 2, prefix.Rows())
}

func TestBuildStaleCacheRecomputes(t *testing.T) {
	set := sampleSet()
	store := &memoryStore{}
	_, _, err := NewBuilder(newScorer(t), Options{Store: store}).Build(set)
	require.NoError(t, err)

	changed := append(labels.Set(nil), set...)
	changed[2] = labels.Of("bananas")

	m, stats, err := NewBuilder(newScorer(t), Options{Store: store}).Build(changed)
	require.NoError(t, err)
	assert.False(t, stats.FromCache)
	r, ok := m.At(2, 2)
	require.True(t, ok)
	assert.Equal(t, 1.0, r)
	r, ok = m.At(2, 1)
	require.True(t, ok)
	assert.InDelta(t, similarity.Ratio("bananas", "appel"), r, 1e-12)
	assert.Equal(t, 2, store.saves)
}

func TestBuildPrefixNeverSaves(t *testing.T) {
	store := &memoryStore{}
	_, stats, err := NewBuilder(newScorer(t), Options{Store: store, MaxIndex: 3}).Build(sampleSet())
	require.NoError(t, err)
	assert.False(t, stats.CacheSaved)
	assert.Equal(t, 0, store.saves)
	assert.Equal(t, 1, store.loads)
}
