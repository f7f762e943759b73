// Package dedupe runs the deduplication pipeline over one label set:
// compute the ratio matrix, link it into clusters, assemble the result.
package dedupe

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/standardbeagle/strmatch/internal/cache"
	"github.com/standardbeagle/strmatch/internal/cluster"
	"github.com/standardbeagle/strmatch/internal/config"
	"github.com/standardbeagle/strmatch/internal/debug"
	sterrors "github.com/standardbeagle/strmatch/internal/errors"
	"github.com/standardbeagle/strmatch/internal/labels"
	"github.com/standardbeagle/strmatch/internal/matrix"
	"github.com/standardbeagle/strmatch/internal/results"
	"github.com/standardbeagle/strmatch/internal/similarity"
)

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithReporter receives throttled progress while the matrix is computed
func WithReporter(r matrix.Reporter) Option {
	return func(p *Pipeline) {
		p.reporter = r
	}
}

// WithStore replaces the configured cache store
func WithStore(s matrix.Store) Option {
	return func(p *Pipeline) {
		p.store = s
	}
}

// WithLogger routes pipeline warnings to l instead of the standard logger
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// Pipeline owns one label set and the artifacts derived from it. Each stage
// requires the previous one; recomputing the matrix discards the later stages.
type Pipeline struct {
	cfg      config.Config
	set      labels.Set
	scorer   *similarity.Scorer
	store    matrix.Store
	reporter matrix.Reporter
	builder  *matrix.Builder
	logger   *log.Logger

	mu        sync.RWMutex
	matrix    *matrix.RatioMatrix
	stats     matrix.BuildStats
	partition *cluster.Partition
	result    *results.Result
	warnings  []string
}

// New validates cfg and prepares a pipeline over set. The set is not copied
// and must not change afterwards.
func New(cfg *config.Config, set labels.Set, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	p := &Pipeline{cfg: *cfg, set: set, logger: log.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if err := config.ValidateConfig(&p.cfg); err != nil {
		return nil, err
	}

	algo, err := similarity.ParseAlgorithm(p.cfg.Matrix.Algorithm)
	if err != nil {
		return nil, sterrors.NewConfigError("matrix.algorithm", p.cfg.Matrix.Algorithm, err)
	}
	if p.scorer, err = similarity.NewScorer(algo); err != nil {
		return nil, err
	}

	if p.cfg.Cache.Enabled && p.store == nil {
		if p.cfg.Cache.Path == "" {
			p.warn("cache enabled but no cache path configured; matrix will not be cached")
		} else {
			compression, err := cache.ParseCompression(p.cfg.Cache.Compression)
			if err != nil {
				return nil, sterrors.NewConfigError("cache.compression", p.cfg.Cache.Compression, err)
			}
			if p.store, err = cache.NewFileStore(p.cfg.Cache.Path, compression); err != nil {
				return nil, err
			}
		}
	}

	p.builder = matrix.NewBuilder(p.scorer, matrix.Options{
		MaxIndex:         p.cfg.Matrix.MaxIndex,
		Concurrency:      p.cfg.Matrix.Workers,
		Store:            p.store,
		Reporter:         p.reporter,
		ProgressEvery:    p.cfg.Matrix.ProgressEvery,
		ProgressInterval: time.Duration(p.cfg.Matrix.ProgressIntervalMs) * time.Millisecond,
	})
	return p, nil
}

func (p *Pipeline) warn(msg string) {
	p.logger.Printf("WARNING: %s", msg)
	p.warnings = append(p.warnings, msg)
}

// Config returns the validated configuration in use
func (p *Pipeline) Config() config.Config {
	return p.cfg
}

// Labels returns the label set
func (p *Pipeline) Labels() labels.Set {
	return p.set
}

// Store returns the cache store, nil when caching is off
func (p *Pipeline) Store() matrix.Store {
	return p.store
}

// Warnings returns the non-fatal diagnostics raised so far
func (p *Pipeline) Warnings() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.warnings...)
}

// Progress returns the progress of a matrix computation in flight
func (p *Pipeline) Progress() (matrix.Progress, bool) {
	return p.builder.Progress()
}

// ComputeMatrix builds the ratio matrix, serving it from the cache when the
// cached label set matches exactly.
func (p *Pipeline) ComputeMatrix() (matrix.BuildStats, error) {
	m, stats, err := p.builder.Build(p.set)
	if err != nil {
		return stats, sterrors.NewUsageError("compute matrix", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.matrix, p.stats = m, stats
	p.partition, p.result = nil, nil
	debug.Printf("matrix ready: %d of %d rows, cached=%v\n", m.Rows(), m.Size(), stats.FromCache)
	return stats, nil
}

// Link partitions the computed matrix at the configured threshold
func (p *Pipeline) Link() (*cluster.Partition, error) {
	return p.LinkAt(p.cfg.Linking.Threshold)
}

// LinkAt partitions the computed matrix at threshold
func (p *Pipeline) LinkAt(threshold float64) (*cluster.Partition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	part, err := cluster.Link(p.matrix, threshold)
	if err != nil {
		return nil, err
	}
	p.partition, p.result = part, nil
	return part, nil
}

// Assemble maps the partition back to label values
func (p *Pipeline) Assemble() (*results.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := results.Assemble(p.partition, p.set, p.cfg.Linking.SortBySize)
	if err != nil {
		return nil, err
	}
	p.result = res
	return res, nil
}

// NearMisses lists unlinked pairs inside the configured warning band. It
// returns nil when the band is disabled.
func (p *Pipeline) NearMisses() ([]cluster.Pair, error) {
	if p.cfg.Linking.Warning <= 0 {
		return nil, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.partition == nil {
		return nil, sterrors.NewUsageError("near-misses", sterrors.ErrNoPartition)
	}
	return cluster.NearMisses(p.matrix, p.partition, p.cfg.Linking.Threshold, p.cfg.Linking.Warning)
}

// Run executes every stage in order
func (p *Pipeline) Run() (*results.Result, error) {
	if _, err := p.ComputeMatrix(); err != nil {
		return nil, err
	}
	if _, err := p.Link(); err != nil {
		return nil, err
	}
	res, err := p.Assemble()
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	return res, nil
}

// Matrix returns the computed matrix, nil before ComputeMatrix
func (p *Pipeline) Matrix() *matrix.RatioMatrix {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.matrix
}

// Stats returns the statistics of the last matrix build
func (p *Pipeline) Stats() matrix.BuildStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// Partition returns the last partition, nil before Link
func (p *Pipeline) Partition() *cluster.Partition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.partition
}

// Result returns the last assembled result, nil before Assemble
func (p *Pipeline) Result() *results.Result {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result
}
