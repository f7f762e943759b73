package matrix

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTotalRatios(t *testing.T) {
	assert.Equal(t, int64(0), TotalRatios(0))
	assert.Equal(t, int64(1), TotalRatios(1))
	assert.Equal(t, int64(15), TotalRatios(5))
	assert.Equal(t, int64(50005000), TotalRatios(10000))
}

func TestCounterSnapshot(t *testing.T) {
	c := NewCounter(100, 0, 0, nil)
	start := c.start
	c.now = func() time.Time { return start.Add(10 * time.Second) }

	p := c.Snapshot()
	assert.Equal(t, int64(0), p.Computed)
	assert.False(t, p.RemainingKnown, "nothing computed yet, remaining time unknown")

	c.RowDone(3, 25)
	p = c.Snapshot()
	assert.Equal(t, 0.25, p.Fraction())
	assert.Equal(t, 25.0, p.Percent())
	assert.True(t, p.RemainingKnown)
	assert.Equal(t, 30*time.Second, p.Remaining)
	assert.Equal(t, 10*time.Second, p.Elapsed)
}

func TestCounterCadence(t *testing.T) {
	var got []int
	c := NewCounter(1000, 10, 0, ReporterFunc(func(p Progress) { got = append(got, p.Row) }))

	for row := 0; row < 35; row++ {
		c.RowDone(row, 1)
	}
	assert.Equal(t, []int{0, 10, 20, 30}, got)
	assert.Equal(t, int64(35), c.Computed())
	assert.Equal(t, int64(1000), c.Total())
}

func TestCounterInterval(t *testing.T) {
	var got []int
	c := NewCounter(1000, 1, time.Hour, ReporterFunc(func(p Progress) { got = append(got, p.Row) }))

	for row := 0; row < 20; row++ {
		c.RowDone(row, 1)
	}
	// The first report always fires; the interval suppresses the rest
	assert.Equal(t, []int{0}, got)
}

func TestCounterConcurrentReportsSerialized(t *testing.T) {
	var active, maxActive int
	var mu sync.Mutex
	reporter := ReporterFunc(func(Progress) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	})

	c := NewCounter(10000, 1, 0, reporter)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for row := w; row < 80; row += 8 {
				c.RowDone(row, 1)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int64(80), c.Computed())
	assert.Equal(t, 1, maxActive)
}
