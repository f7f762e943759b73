package matrix

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/strmatch/internal/debug"
	"github.com/standardbeagle/strmatch/internal/labels"
)

// DefaultConcurrency is the worker count used when none is configured
const DefaultConcurrency = 8

// Scorer computes the similarity of two labels; ok is false when undefined
type Scorer interface {
	Score(a, b labels.Label) (ratio float64, ok bool)
}

// Store persists full matrices keyed by the exact label set they were built
// from. Load returns an error for any miss or mismatch.
type Store interface {
	Load(set labels.Set) (*RatioMatrix, error)
	Save(set labels.Set, m *RatioMatrix) error
}

// Options controls a build
type Options struct {
	MaxIndex         int // rows to compute; 0 means the whole set
	Concurrency      int // worker count; values below 1 mean 1
	Store            Store
	Reporter         Reporter
	ProgressEvery    int
	ProgressInterval time.Duration
}

// BuildStats describes a finished build
type BuildStats struct {
	Rows     int
	Ratios   int64
	Duration time.Duration

	// ExpectedFullDuration extrapolates Duration to the whole set: a prefix of
	// k rows costs roughly k² of the N² total.
	ExpectedFullDuration time.Duration

	FromCache  bool
	CacheSaved bool
}

// Builder computes ratio matrices on a bounded worker pool
type Builder struct {
	scorer  Scorer
	opts    Options
	counter atomic.Pointer[Counter]
}

// NewBuilder creates a builder
func NewBuilder(scorer Scorer, opts Options) *Builder {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Builder{scorer: scorer, opts: opts}
}

// Progress returns a snapshot of the build in flight, if any
func (b *Builder) Progress() (Progress, bool) {
	c := b.counter.Load()
	if c == nil {
		return Progress{}, false
	}
	return c.Snapshot(), true
}

// Build computes the lower-triangular ratio matrix for set. A matching cache
// entry is served instead when a Store is configured; any cache problem falls
// back to recomputation. Only full builds are written to the cache.
func (b *Builder) Build(set labels.Set) (*RatioMatrix, BuildStats, error) {
	n := set.Len()
	maxIndex := b.opts.MaxIndex
	if maxIndex < 0 || maxIndex > n {
		return nil, BuildStats{}, fmt.Errorf("max index %d out of range for %d labels", maxIndex, n)
	}
	if maxIndex == 0 {
		maxIndex = n
	}

	if b.opts.Store != nil {
		cached, err := b.opts.Store.Load(set)
		if err == nil {
			m := cached.Prefix(maxIndex)
			debug.LogCache("serving %d rows from cache\n", m.Rows())
			return m, BuildStats{
				Rows:      m.Rows(),
				Ratios:    TotalRatios(m.Rows()),
				FromCache: true,
			}, nil
		}
		debug.LogCache("recomputing: %v\n", err)
	}

	if maxIndex == n {
		debug.LogMatrix("computing all %d rows with %d workers\n", n, b.opts.Concurrency)
	} else {
		debug.LogMatrix("computing the first %d of %d rows with %d workers\n", maxIndex, n, b.opts.Concurrency)
	}

	start := time.Now()
	m, ratios := b.compute(set, maxIndex)
	stats := BuildStats{
		Rows:     maxIndex,
		Ratios:   ratios,
		Duration: time.Since(start),
	}
	if maxIndex > 0 {
		scale := float64(n) * float64(n) / (float64(maxIndex) * float64(maxIndex))
		stats.ExpectedFullDuration = time.Duration(float64(stats.Duration) * scale)
	}
	debug.LogMatrix("computed %d ratios in %v\n", ratios, stats.Duration)

	if b.opts.Store != nil && maxIndex == n {
		if err := b.opts.Store.Save(set, m); err != nil {
			debug.LogCache("save failed: %v\n", err)
		} else {
			stats.CacheSaved = true
		}
	}

	return m, stats, nil
}

// compute fills rows [0,maxIndex). Rows are dispatched largest first so the
// pool stays balanced: row i costs i+1 comparisons.
func (b *Builder) compute(set labels.Set, maxIndex int) (*RatioMatrix, int64) {
	absent := roaring.New()
	for i, l := range set {
		if !l.Present {
			absent.Add(uint32(i))
		}
	}

	counter := NewCounter(TotalRatios(maxIndex), b.opts.ProgressEvery, b.opts.ProgressInterval, b.opts.Reporter)
	b.counter.Store(counter)
	defer b.counter.Store(nil)

	rows := make([][]float64, maxIndex)

	var g errgroup.Group
	g.SetLimit(b.opts.Concurrency)
	for i := maxIndex - 1; i >= 0; i-- {
		i := i
		g.Go(func() error {
			rows[i] = b.computeRow(set, i)
			counter.RowDone(i, int64(i+1))
			return nil
		})
	}
	_ = g.Wait()

	return &RatioMatrix{size: set.Len(), rows: rows, absent: absent}, counter.Computed()
}

func (b *Builder) computeRow(set labels.Set, i int) []float64 {
	row := make([]float64, i+1)
	if !set[i].Present {
		return row
	}
	for j := 0; j <= i; j++ {
		if r, ok := b.scorer.Score(set[i], set[j]); ok {
			row[j] = r
		}
	}
	return row
}
