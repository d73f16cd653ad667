package lsm6fifo

import "github.com/runner1010/lsm6fifo/lsm6dsox"

// tSeries keeps the last len(buffer) values and their extremes.
type tSeries struct {
	buffer []float64
	idx    int
	n      int

	max float64
	min float64
}

func newTSeries(size int) *tSeries {
	return &tSeries{
		buffer: make([]float64, size),
		idx:    -1,
	}
}

func (t *tSeries) add(entries ...float64) {
	for _, e := range entries {
		t.idx++
		t.idx %= len(t.buffer)

		evicted := t.n == len(t.buffer)
		old := t.buffer[t.idx]
		t.buffer[t.idx] = e
		if !evicted {
			t.n++
		}

		switch {
		case t.n == 1:
			t.max = e
			t.min = e
		case evicted && (old == t.max || old == t.min):
			t.max = e
			t.min = e
			for _, b := range t.buffer {
				t.minmax(b)
			}
		default:
			t.minmax(e)
		}
	}
}

func (t *tSeries) minmax(v float64) {
	if v > t.max {
		t.max = v
	}
	if v < t.min {
		t.min = v
	}
}

func (t *tSeries) last() float64 {
	if t.n == 0 {
		return 0
	}
	return t.buffer[t.idx]
}

// span returns the peak-to-peak amplitude of the series.
func (t *tSeries) span() float64 {
	return t.max - t.min
}

// Stats summarizes the accelerometer samples in the rolling window.
type Stats struct {
	Count int
	Last  lsm6dsox.Vector
	// Mean is an exponential moving average of each axis.
	Mean lsm6dsox.Vector
	// Span is the peak-to-peak amplitude of each axis over the window.
	Span lsm6dsox.Vector
}

type window struct {
	x, y, z    *tSeries
	mx, my, mz movingAverage
}

func newWindow(size int) *window {
	return &window{
		x: newTSeries(size),
		y: newTSeries(size),
		z: newTSeries(size),
	}
}

func (w *window) add(v lsm6dsox.Vector) {
	w.x.add(v.X)
	w.y.add(v.Y)
	w.z.add(v.Z)
	w.mx.add(v.X)
	w.my.add(v.Y)
	w.mz.add(v.Z)
}

func (w *window) snapshot() Stats {
	return Stats{
		Count: w.x.n,
		Last:  lsm6dsox.Vector{X: w.x.last(), Y: w.y.last(), Z: w.z.last()},
		Mean:  lsm6dsox.Vector{X: w.mx.mean, Y: w.my.mean, Z: w.mz.mean},
		Span:  lsm6dsox.Vector{X: w.x.span(), Y: w.y.span(), Z: w.z.span()},
	}
}
