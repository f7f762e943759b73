// Package matrix computes and holds the lower-triangular table of pairwise
// similarity ratios over a label set.
package matrix

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// RatioMatrix is a lower-triangular similarity table. Row i holds ratios for
// every j <= i. A ratio is undefined when either label is absent; absent
// indices are tracked in a bitmap, so the stored value for an undefined cell
// is never consulted. The matrix is read-only once built.
type RatioMatrix struct {
	size   int
	rows   [][]float64
	absent *roaring.Bitmap
}

// New assembles a matrix over a set of size labels from precomputed rows.
// len(rows) may be smaller than size for a prefix build. Row i must hold
// exactly i+1 values.
func New(size int, rows [][]float64, absent *roaring.Bitmap) (*RatioMatrix, error) {
	if size < 0 {
		return nil, fmt.Errorf("negative matrix size %d", size)
	}
	if len(rows) > size {
		return nil, fmt.Errorf("matrix has %d rows but only %d labels", len(rows), size)
	}
	for i, row := range rows {
		if len(row) != i+1 {
			return nil, fmt.Errorf("row %d has %d ratios, want %d", i, len(row), i+1)
		}
	}
	if absent == nil {
		absent = roaring.New()
	}
	if !absent.IsEmpty() && int(absent.Maximum()) >= size {
		return nil, fmt.Errorf("absent index %d out of range for %d labels", absent.Maximum(), size)
	}
	return &RatioMatrix{size: size, rows: rows, absent: absent}, nil
}

// Size returns the number of labels the matrix was computed over
func (m *RatioMatrix) Size() int {
	return m.size
}

// Rows returns the number of materialized rows
func (m *RatioMatrix) Rows() int {
	return len(m.rows)
}

// Complete reports whether every row of the label set was computed
func (m *RatioMatrix) Complete() bool {
	return len(m.rows) == m.size
}

// IsAbsent reports whether label i is absent
func (m *RatioMatrix) IsAbsent(i int) bool {
	return m.absent.Contains(uint32(i))
}

// Absent returns a copy of the absent-index bitmap
func (m *RatioMatrix) Absent() *roaring.Bitmap {
	return m.absent.Clone()
}

// At returns ratio(i,j). The matrix is symmetric, so j > i reads the mirrored
// cell. ok is false when the ratio is undefined.
func (m *RatioMatrix) At(i, j int) (ratio float64, ok bool) {
	if j > i {
		i, j = j, i
	}
	if j < 0 || i >= len(m.rows) {
		panic(fmt.Sprintf("matrix index (%d,%d) out of range for %d rows", i, j, len(m.rows)))
	}
	if m.IsAbsent(i) || m.IsAbsent(j) {
		return 0, false
	}
	return m.rows[i][j], true
}

// RawRows exposes the stored rows for serialization. Cells involving absent
// labels hold zero. Callers must not modify the result.
func (m *RatioMatrix) RawRows() [][]float64 {
	return m.rows
}

// Prefix returns the matrix restricted to its first k rows, sharing storage
func (m *RatioMatrix) Prefix(k int) *RatioMatrix {
	if k >= len(m.rows) {
		return m
	}
	if k < 0 {
		k = 0
	}
	return &RatioMatrix{size: m.size, rows: m.rows[:k], absent: m.absent}
}

// EdgesAbove calls fn for every strictly lower-triangular cell whose defined
// ratio is greater than threshold, in row order then column order.
func (m *RatioMatrix) EdgesAbove(threshold float64, fn func(i, j int, ratio float64)) {
	m.EdgesBetween(threshold, 1, fn)
}

// EdgesBetween calls fn for every strictly lower-triangular cell whose defined
// ratio r satisfies lo < r <= hi.
func (m *RatioMatrix) EdgesBetween(lo, hi float64, fn func(i, j int, ratio float64)) {
	for i, row := range m.rows {
		if m.IsAbsent(i) {
			continue
		}
		for j := 0; j < i; j++ {
			r := row[j]
			if r > lo && r <= hi && !m.IsAbsent(j) {
				fn(i, j, r)
			}
		}
	}
}

// Equal reports whether two matrices hold the same shape, absent set and
// bit-identical ratios
func (m *RatioMatrix) Equal(other *RatioMatrix) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.size != other.size || len(m.rows) != len(other.rows) || !m.absent.Equals(other.absent) {
		return false
	}
	for i := range m.rows {
		for j := range m.rows[i] {
			if m.rows[i][j] != other.rows[i][j] {
				return false
			}
		}
	}
	return true
}
