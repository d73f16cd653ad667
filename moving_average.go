package lsm6fifo

// movingAverage stores an estimated moving average of the last 16 values.
type movingAverage struct {
	mean   float64
	primed bool
}

func (m *movingAverage) add(n float64) {
	if !m.primed {
		m.mean = n
		m.primed = true
		return
	}
	m.mean += (n - m.mean) / 16
}
