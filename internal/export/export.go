// Package export writes ratio matrices and assembled clusters for use
// outside strmatch.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/standardbeagle/strmatch/internal/matrix"
	"github.com/standardbeagle/strmatch/internal/results"
)

// WriteRatioCSV writes the matrix as a square table: a header row of column
// indices, then one row per computed index. Only the lower triangle is
// filled; undefined ratios and the upper triangle are empty cells.
func WriteRatioCSV(w io.Writer, m *matrix.RatioMatrix) error {
	cw := csv.NewWriter(w)
	n := m.Rows()

	record := make([]string, n+1)
	record[0] = "index"
	for j := 0; j < n; j++ {
		record[j+1] = strconv.Itoa(j)
	}
	if err := cw.Write(record); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		record[0] = strconv.Itoa(i)
		for j := 0; j < n; j++ {
			record[j+1] = ""
			if j > i {
				continue
			}
			if r, ok := m.At(i, j); ok {
				record[j+1] = strconv.FormatFloat(r, 'g', -1, 64)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteClustersJSON writes the groups as a JSON array of arrays of strings,
// with null for absent labels.
func WriteClustersJSON(w io.Writer, res *results.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	values := res.Values()
	if values == nil {
		values = [][]*string{}
	}
	return enc.Encode(values)
}

// WriteFile creates path (and its directory) and hands it to write
func WriteFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
