package throughput

import (
	"math"
	"math/rand"
	"testing"
)

func TestMovAvg(t *testing.T) {
	count := 100
	ma := newMovAvg(count)
	for i := 0; i < count; i++ {
		avg := ma.update(1)
		if got, exp := avg, 1.0; got != exp {
			t.Fatalf("unexpected movavg: got %f, exp %f", got, exp)
		}
	}
	c := float64(count)
	for i := 0; i < count; i++ {
		avg := ma.update(2)
		f := float64(i + 1)
		if got, exp := avg, ((c-f)+2.0*f)/c; math.Abs(got-exp) > 1e-8 {
			t.Fatalf("unexpected movavg i: %d got %f, exp %f", i, got, exp)
		}
	}
	if got, exp := ma.last(), 2.0; got != exp {
		t.Fatalf("unexpected last value: got %f exp %f", got, exp)
	}
}

func TestMovAvg_Window(t *testing.T) {
	size := 50
	r := rand.New(rand.NewSource(42))
	data := make([]float64, 10*size)
	for i := range data {
		data[i] = r.Float64() * 1000
	}

	ma := newMovAvg(size)
	got := 0.0
	for _, v := range data {
		got = ma.update(v)
	}
	exp := 0.0
	for _, v := range data[len(data)-size:] {
		exp += v
	}
	exp /= float64(size)
	if math.Abs(got-exp) > 1e-6 {
		t.Errorf("unexpected moving average value: got %f exp %f", got, exp)
	}
}
