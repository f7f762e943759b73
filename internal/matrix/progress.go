package matrix

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// DefaultProgressEvery is the row cadence at which progress is reported
const DefaultProgressEvery = 50

// Progress is a snapshot of a running build
type Progress struct {
	Computed int64 // ratios computed so far
	Total    int64 // ratios the build will compute
	Row      int   // row whose completion triggered the report
	Elapsed  time.Duration

	// Remaining is elapsed * (1-f)/f. RemainingKnown is false while nothing
	// has been computed yet.
	Remaining      time.Duration
	RemainingKnown bool
}

// Fraction returns computed/total in [0,1]
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 1
	}
	return float64(p.Computed) / float64(p.Total)
}

// Percent returns the completion percentage
func (p Progress) Percent() float64 {
	return p.Fraction() * 100
}

// Reporter receives throttled progress snapshots. Reports are serialized: at
// most one call is in flight at a time.
type Reporter interface {
	ReportProgress(Progress)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(Progress)

// ReportProgress implements Reporter
func (f ReporterFunc) ReportProgress(p Progress) {
	f(p)
}

// TotalRatios returns the number of lower-triangular cells, diagonal
// included, for n rows: n(n+1)/2
func TotalRatios(n int) int64 {
	return int64(n) * int64(n+1) / 2
}

// Counter tracks computed ratios across workers. Each row task records its
// completion; a task whose row index hits the cadence triggers a report.
type Counter struct {
	computed atomic.Int64
	total    int64
	start    time.Time
	every    int
	reporter Reporter
	gate     *rate.Sometimes
	now      func() time.Time
}

// NewCounter creates a counter for total ratios. every is the row cadence
// (<= 0 uses DefaultProgressEvery); interval, when positive, additionally
// limits reports to one per interval.
func NewCounter(total int64, every int, interval time.Duration, reporter Reporter) *Counter {
	if every <= 0 {
		every = DefaultProgressEvery
	}
	gate := &rate.Sometimes{Every: 1}
	if interval > 0 {
		gate = &rate.Sometimes{Interval: interval}
	}
	return &Counter{
		total:    total,
		start:    time.Now(),
		every:    every,
		reporter: reporter,
		gate:     gate,
		now:      time.Now,
	}
}

// RowDone records that row finished with ratios new cells and reports
// progress when the row falls on the cadence.
func (c *Counter) RowDone(row int, ratios int64) {
	c.computed.Add(ratios)
	if c.reporter == nil || row%c.every != 0 {
		return
	}
	c.gate.Do(func() {
		p := c.Snapshot()
		p.Row = row
		c.reporter.ReportProgress(p)
	})
}

// Computed returns the ratios computed so far
func (c *Counter) Computed() int64 {
	return c.computed.Load()
}

// Total returns the ratios the build will compute
func (c *Counter) Total() int64 {
	return c.total
}

// Snapshot returns the current progress with an estimated remaining time
func (c *Counter) Snapshot() Progress {
	p := Progress{
		Computed: c.computed.Load(),
		Total:    c.total,
		Elapsed:  c.now().Sub(c.start),
	}
	f := p.Fraction()
	if p.Computed > 0 && f > 0 {
		p.Remaining = time.Duration(float64(p.Elapsed) * (1 - f) / f)
		p.RemainingKnown = true
	}
	return p
}
