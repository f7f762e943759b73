// Package cluster turns a ratio matrix into a partition of label indices:
// the connected components of the graph whose edges are ratios above a
// threshold.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/standardbeagle/strmatch/internal/debug"
	sterrors "github.com/standardbeagle/strmatch/internal/errors"
	"github.com/standardbeagle/strmatch/internal/matrix"
)

// DefaultThreshold is the ratio a pair must exceed to be linked
const DefaultThreshold = 0.85

// Partition assigns every index in [0,n) to exactly one cluster. Clusters are
// ordered by their smallest member and members are ascending, so equal
// partitions compare equal regardless of how they were built.
type Partition struct {
	clusters  [][]int
	clusterOf []int
}

// Len returns the number of clusters
func (p *Partition) Len() int {
	return len(p.clusters)
}

// Size returns the number of partitioned indices
func (p *Partition) Size() int {
	return len(p.clusterOf)
}

// Clusters returns the member lists. Callers must not modify them.
func (p *Partition) Clusters() [][]int {
	return p.clusters
}

// Cluster returns the members of cluster id
func (p *Partition) Cluster(id int) []int {
	return p.clusters[id]
}

// ClusterOf returns the cluster id holding index i
func (p *Partition) ClusterOf(i int) int {
	return p.clusterOf[i]
}

// NonSingletons returns how many clusters hold more than one index
func (p *Partition) NonSingletons() int {
	n := 0
	for _, c := range p.clusters {
		if len(c) > 1 {
			n++
		}
	}
	return n
}

// Equal reports whether both partitions group the same indices together
func (p *Partition) Equal(other *Partition) bool {
	if p == nil || other == nil {
		return p == other
	}
	if len(p.clusters) != len(other.clusters) {
		return false
	}
	for i := range p.clusters {
		if !slices.Equal(p.clusters[i], other.clusters[i]) {
			return false
		}
	}
	return true
}

// Validate checks the partition invariant: every index appears in exactly
// one non-empty cluster.
func (p *Partition) Validate() error {
	seen := make([]bool, len(p.clusterOf))
	for id, members := range p.clusters {
		if len(members) == 0 {
			return fmt.Errorf("cluster %d is empty", id)
		}
		for _, i := range members {
			if i < 0 || i >= len(seen) {
				return fmt.Errorf("cluster %d holds index %d outside [0,%d)", id, i, len(seen))
			}
			if seen[i] {
				return fmt.Errorf("index %d appears in more than one cluster", i)
			}
			seen[i] = true
			if p.clusterOf[i] != id {
				return fmt.Errorf("index %d maps to cluster %d but is listed in %d", i, p.clusterOf[i], id)
			}
		}
	}
	for i, ok := range seen {
		if !ok {
			return fmt.Errorf("index %d is in no cluster", i)
		}
	}
	return nil
}

// FromDisjointSet freezes a union-find forest into a partition
func FromDisjointSet(ds *DisjointSet) *Partition {
	n := ds.Len()
	idOf := make([]int, n)
	for i := range idOf {
		idOf[i] = -1
	}

	p := &Partition{clusterOf: make([]int, n)}
	for i := 0; i < n; i++ {
		root := ds.Find(i)
		id := idOf[root]
		if id < 0 {
			id = len(p.clusters)
			idOf[root] = id
			p.clusters = append(p.clusters, make([]int, 0, ds.size[root]))
		}
		p.clusters[id] = append(p.clusters[id], i)
		p.clusterOf[i] = id
	}
	return p
}

func validateThreshold(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0,1], got %v", name, v)
	}
	return nil
}

// Link partitions the matrix rows: i and j share a cluster when a chain of
// ratios above threshold connects them. Undefined ratios never link, so an
// absent label always ends up alone.
func Link(m *matrix.RatioMatrix, threshold float64) (*Partition, error) {
	if m == nil {
		return nil, sterrors.NewUsageError("link", sterrors.ErrNoMatrix)
	}
	if err := validateThreshold("threshold", threshold); err != nil {
		return nil, sterrors.NewUsageError("link", err)
	}

	ds := NewDisjointSet(m.Rows())
	edges, merges := 0, 0
	m.EdgesAbove(threshold, func(i, j int, _ float64) {
		edges++
		if _, merged := ds.Union(i, j); merged {
			merges++
		}
	})

	p := FromDisjointSet(ds)
	debug.LogLink("%d edges above %.3f, %d merges, %d clusters over %d rows\n",
		edges, threshold, merges, p.Len(), m.Rows())
	return p, nil
}

// Pair is a scored pair of indices, I > J
type Pair struct {
	I, J  int
	Ratio float64
}

// NearMisses lists pairs scoring in (warning, threshold]: close enough to
// review, not close enough to link. When p is given, pairs already sharing a
// cluster are skipped. Results are sorted by descending ratio.
func NearMisses(m *matrix.RatioMatrix, p *Partition, threshold, warning float64) ([]Pair, error) {
	if m == nil {
		return nil, sterrors.NewUsageError("near-misses", sterrors.ErrNoMatrix)
	}
	if err := errors.Join(validateThreshold("threshold", threshold), validateThreshold("warning", warning)); err != nil {
		return nil, sterrors.NewUsageError("near-misses", err)
	}
	if p != nil && p.Size() != m.Rows() {
		return nil, sterrors.NewUsageError("near-misses",
			fmt.Errorf("partition covers %d indices but matrix has %d rows", p.Size(), m.Rows()))
	}
	if warning >= threshold {
		return nil, nil
	}

	var pairs []Pair
	m.EdgesBetween(warning, threshold, func(i, j int, r float64) {
		if p != nil && p.ClusterOf(i) == p.ClusterOf(j) {
			return
		}
		pairs = append(pairs, Pair{I: i, J: j, Ratio: r})
	})
	slices.SortStableFunc(pairs, func(a, b Pair) int {
		switch {
		case a.Ratio > b.Ratio:
			return -1
		case a.Ratio < b.Ratio:
			return 1
		}
		return 0
	})
	return pairs, nil
}
