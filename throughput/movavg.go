package throughput

// Maintains a moving average of values
type movavg struct {
	size    int
	history []float64
	idx     int
	count   int
	avg     float64
}

func newMovAvg(size int) *movavg {
	return &movavg{
		size:    size,
		history: make([]float64, size),
		idx:     -1,
	}
}

func (m *movavg) update(value float64) float64 {
	m.idx = (m.idx + 1) % m.size
	if m.count == m.size {
		old := m.history[m.idx]
		m.avg += (value - old) / float64(m.size)
	} else {
		m.count++
		m.avg += (value - m.avg) / float64(m.count)
	}
	m.history[m.idx] = value
	return m.avg
}

// last returns the most recently added value.
func (m *movavg) last() float64 {
	if m.count == 0 {
		return 0
	}
	return m.history[m.idx]
}
