package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/standardbeagle/strmatch/internal/cluster"
	"github.com/standardbeagle/strmatch/internal/labels"
	"github.com/standardbeagle/strmatch/internal/matrix"
	"github.com/standardbeagle/strmatch/internal/results"
)

const maxMemberWidth = 60

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progressPrinter renders matrix progress. On a terminal the line is
// rewritten in place; otherwise each report is its own line.
type progressPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	inPlace bool
	dirty   bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, inPlace: isTerminal(w)}
}

func (p *progressPrinter) ReportProgress(pr matrix.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := formatProgress(pr)
	if p.inPlace {
		fmt.Fprintf(p.w, "\r%s\x1b[K", line)
		p.dirty = true
		return
	}
	fmt.Fprintln(p.w, line)
}

// Finish ends an in-place progress line
func (p *progressPrinter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dirty {
		fmt.Fprintln(p.w)
		p.dirty = false
	}
}

func formatProgress(pr matrix.Progress) string {
	remaining := "unknown"
	if pr.RemainingKnown {
		remaining = formatDuration(pr.Remaining)
	}
	return fmt.Sprintf("%5.1f%% (%d/%d ratios) elapsed %s, remaining %s",
		pr.Percent(), pr.Computed, pr.Total, formatDuration(pr.Elapsed), remaining)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    maxMemberWidth,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func joinMembers(members []labels.Label) string {
	parts := make([]string, len(members))
	for i, l := range members {
		parts[i] = l.String()
	}
	return text.Trim(strings.Join(parts, ", "), maxMemberWidth)
}

// renderClusters lists up to limit groups that hold duplicates; limit <= 0
// lists all of them.
func renderClusters(res *results.Result, limit int) string {
	groups := res.Duplicates()
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	rows := make([][]string, 0, len(groups))
	for i, g := range groups {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(g.Len()),
			joinMembers(g.Members),
		})
	}
	return renderTable([]string{"#", "Size", "Members"}, rows,
		[]columnAlignment{alignRight, alignRight, alignLeft})
}

func renderNearMisses(pairs []cluster.Pair, set labels.Set, limit int) string {
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{
			strconv.FormatFloat(p.Ratio, 'f', 3, 64),
			fmt.Sprintf("%d, %d", p.J, p.I),
			joinMembers([]labels.Label{set[p.J], set[p.I]}),
		})
	}
	return renderTable([]string{"Ratio", "Indices", "Labels"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft})
}
