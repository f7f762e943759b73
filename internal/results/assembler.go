// Package results realizes a cluster partition as groups of label values.
package results

import (
	"fmt"
	"slices"

	"github.com/standardbeagle/strmatch/internal/cluster"
	sterrors "github.com/standardbeagle/strmatch/internal/errors"
	"github.com/standardbeagle/strmatch/internal/labels"
)

// Group is one cluster with its member indices and the labels they name
type Group struct {
	Indices []int
	Members []labels.Label
}

// Len returns the number of members
func (g Group) Len() int {
	return len(g.Indices)
}

// Texts returns member values with absent labels as nil
func (g Group) Texts() []*string {
	out := make([]*string, len(g.Members))
	for i, l := range g.Members {
		if l.Present {
			text := l.Text
			out[i] = &text
		}
	}
	return out
}

// Result is an assembled partition
type Result struct {
	Groups []Group
}

// Len returns the number of groups
func (r *Result) Len() int {
	return len(r.Groups)
}

// Duplicates returns the groups holding more than one member
func (r *Result) Duplicates() []Group {
	var out []Group
	for _, g := range r.Groups {
		if g.Len() > 1 {
			out = append(out, g)
		}
	}
	return out
}

// Values returns the label values of every group, absent labels as nil
func (r *Result) Values() [][]*string {
	out := make([][]*string, len(r.Groups))
	for i, g := range r.Groups {
		out[i] = g.Texts()
	}
	return out
}

// Assemble maps each cluster of p onto the labels of set. With sortBySize the
// groups are stably ordered by descending size, so equal-sized clusters keep
// partition order.
func Assemble(p *cluster.Partition, set labels.Set, sortBySize bool) (*Result, error) {
	if p == nil {
		return nil, sterrors.NewUsageError("assemble", sterrors.ErrNoPartition)
	}

	res := &Result{Groups: make([]Group, 0, p.Len())}
	for id, members := range p.Clusters() {
		g := Group{
			Indices: slices.Clone(members),
			Members: make([]labels.Label, len(members)),
		}
		for k, i := range members {
			if i < 0 || i >= len(set) {
				return nil, sterrors.NewUsageError("assemble",
					fmt.Errorf("cluster %d references index %d outside %d labels", id, i, len(set)))
			}
			g.Members[k] = set[i]
		}
		res.Groups = append(res.Groups, g)
	}

	if sortBySize {
		slices.SortStableFunc(res.Groups, func(a, b Group) int {
			return b.Len() - a.Len()
		})
	}
	return res, nil
}
