package throughput_test

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/influxdata/kflow/throughput"
)

type setter struct {
	value float64
	calls int
}

func (s *setter) Set(v float64) {
	s.value = v
	s.calls++
}

// process simulates n records that each take d to process.
func process(e *throughput.Estimator, mock *clock.Mock, n int, d time.Duration) {
	for i := 0; i < n; i++ {
		e.Start()
		mock.Add(d)
		e.Stop()
	}
}

func TestEstimator_Converges(t *testing.T) {
	for _, ms := range []int{1, 2, 5, 8, 20} {
		mock := clock.NewMock()
		e := throughput.New(throughput.WithClock(mock))
		process(e, mock, 5000, time.Duration(ms)*time.Millisecond)

		exp := 1000.0 / float64(ms)
		if got := e.Rate(); math.Abs(got-exp) > 1e-6 {
			t.Errorf("%dms: unexpected rate: got %f exp %f", ms, got, exp)
		}
		s := e.Finish()
		if s.Records != 5000 {
			t.Errorf("%dms: unexpected records: got %d exp 5000", ms, s.Records)
		}
		if s.TooFast {
			t.Errorf("%dms: unexpected too fast flag", ms)
		}
	}
}

func TestEstimator_TooFast(t *testing.T) {
	mock := clock.NewMock()
	var samples []throughput.Sample
	e := throughput.New(
		throughput.WithClock(mock),
		throughput.OnSample(func(s throughput.Sample) { samples = append(samples, s) }),
	)
	// Sub-millisecond work is not measurable.
	process(e, mock, 999, 100*time.Microsecond)
	mock.Add(2 * time.Second)
	process(e, mock, 1, 0)

	if len(samples) != 1 {
		t.Fatalf("unexpected number of samples: got %d exp 1", len(samples))
	}
	s := samples[0]
	if !s.TooFast {
		t.Error("expected sample to be flagged too fast")
	}
	wall := (2*time.Second + 999*100*time.Microsecond).Seconds()
	if exp := 1000 / wall; math.Abs(s.Rate-exp) > 1e-6 {
		t.Errorf("unexpected rate: got %f exp %f", s.Rate, exp)
	}
	if got, exp := s.String(), "Processed 1,000 records @ 476 records/sec*"; got != exp {
		t.Errorf("unexpected sample string: got %q exp %q", got, exp)
	}
}

func TestEstimator_Resolution(t *testing.T) {
	mock := clock.NewMock()
	e := throughput.New(throughput.WithClock(mock), throughput.WithResolution(time.Microsecond))
	process(e, mock, 40000, 100*time.Microsecond)
	if got, exp := e.Rate(), 10000.0; math.Abs(got-exp) > 1e-6 {
		t.Errorf("unexpected rate: got %f exp %f", got, exp)
	}
}

func TestEstimator_FinishPartialWindow(t *testing.T) {
	mock := clock.NewMock()
	e := throughput.New(throughput.WithClock(mock))
	process(e, mock, 10, 10*time.Millisecond)

	s := e.Finish()
	if got, exp := s.Rate, 100.0; math.Abs(got-exp) > 1e-6 {
		t.Errorf("unexpected rate: got %f exp %f", got, exp)
	}
	if got, exp := s.String(), "Finished - 10 records @ 100 records/sec"; got != exp {
		t.Errorf("unexpected summary: got %q exp %q", got, exp)
	}
}

func TestEstimator_FinishEmpty(t *testing.T) {
	e := throughput.New(throughput.WithClock(clock.NewMock()))
	s := e.Finish()
	if s.Records != 0 || s.Rate != 0 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestEstimator_RunningAverage(t *testing.T) {
	mock := clock.NewMock()
	v := new(setter)
	e := throughput.New(
		throughput.WithClock(mock),
		throughput.WithSamplePeriod(time.Second),
		throughput.WithRecentSize(1),
		throughput.WithRateVar(v),
	)
	// First window at 100 records/sec then a window at 50 records/sec.
	process(e, mock, 100, 10*time.Millisecond)
	process(e, mock, 50, 20*time.Millisecond)

	if got, exp := e.Rate(), 75.0; math.Abs(got-exp) > 1e-6 {
		t.Errorf("unexpected rate: got %f exp %f", got, exp)
	}
	if got, exp := e.RecentRate(), 50.0; math.Abs(got-exp) > 1e-6 {
		t.Errorf("unexpected recent rate: got %f exp %f", got, exp)
	}
	if v.calls != 2 || math.Abs(v.value-75) > 1e-6 {
		t.Errorf("unexpected rate var: %+v", v)
	}
}

func TestEstimator_StopWithoutStart(t *testing.T) {
	e := throughput.New(throughput.WithClock(clock.NewMock()))
	e.Stop()
	if e.Records() != 0 {
		t.Errorf("unexpected records: got %d exp 0", e.Records())
	}
}

func BenchmarkEstimator(b *testing.B) {
	e := throughput.New()
	for i := 0; i < b.N; i++ {
		e.Start()
		e.Stop()
	}
}
