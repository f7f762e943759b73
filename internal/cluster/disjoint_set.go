package cluster

// DisjointSet is a union-find forest over [0,n). Each tree root is the
// canonical representative of its cluster.
type DisjointSet struct {
	parent []int
	size   []int
}

// NewDisjointSet creates n singleton sets
func NewDisjointSet(n int) *DisjointSet {
	ds := &DisjointSet{
		parent: make([]int, n),
		size:   make([]int, n),
	}
	for i := range ds.parent {
		ds.parent[i] = i
		ds.size[i] = 1
	}
	return ds
}

// Len returns the number of elements
func (ds *DisjointSet) Len() int {
	return len(ds.parent)
}

// Find returns the root of x, compressing the path it walked
func (ds *DisjointSet) Find(x int) int {
	root := x
	for ds.parent[root] != root {
		root = ds.parent[root]
	}
	for ds.parent[x] != root {
		next := ds.parent[x]
		ds.parent[x] = root
		x = next
	}
	return root
}

// Union merges the sets holding a and b and returns the surviving root. The
// smaller tree is attached under the larger; on a tie the lower root wins.
// merged is false when a and b were already in the same set.
func (ds *DisjointSet) Union(a, b int) (root int, merged bool) {
	ra, rb := ds.Find(a), ds.Find(b)
	if ra == rb {
		return ra, false
	}
	if ds.size[ra] < ds.size[rb] || (ds.size[ra] == ds.size[rb] && rb < ra) {
		ra, rb = rb, ra
	}
	ds.parent[rb] = ra
	ds.size[ra] += ds.size[rb]
	return ra, true
}

// SizeOf returns the size of the set holding x
func (ds *DisjointSet) SizeOf(x int) int {
	return ds.size[ds.Find(x)]
}

// Connected reports whether a and b are in the same set
func (ds *DisjointSet) Connected(a, b int) bool {
	return ds.Find(a) == ds.Find(b)
}
