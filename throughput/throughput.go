// Package throughput estimates the processing rate of a record stream.
//
// Processing of each record is bracketed with Start and Stop.
// At the end of every sample period the number of records in the window is divided
// by the processing time spent on them, and the result is added to a running average.
package throughput

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
)

const (
	// DefaultSamplePeriod is the wall clock length of a sample window.
	DefaultSamplePeriod = 2 * time.Second
	// DefaultResolution is the granularity processing time is measured with.
	DefaultResolution = time.Millisecond
	// DefaultRecentSize is the number of samples averaged by RecentRate.
	DefaultRecentSize = 10
)

// FloatSetter receives the running average after every sample.
type FloatSetter interface {
	Set(float64)
}

// Sample is reported at the end of every sample window.
type Sample struct {
	// Records is the total number of records processed so far.
	Records int64
	// Rate is the running average rate in records per second.
	Rate float64
	// WindowRate is the rate measured for the window that just ended.
	WindowRate float64
	// TooFast is true when per record processing time was below the measurement
	// resolution and the rate was estimated from wall clock time instead.
	TooFast bool
}

func (s Sample) String() string {
	return fmt.Sprintf("Processed %s records @ %s records/sec%s", humanize.Comma(s.Records), humanize.Comma(int64(s.Rate)), star(s.TooFast))
}

// Summary is the final report of an Estimator.
type Summary struct {
	Records int64
	Rate    float64
	TooFast bool
}

func (s Summary) String() string {
	return fmt.Sprintf("Finished - %s records @ %s records/sec%s", humanize.Comma(s.Records), humanize.Comma(int64(s.Rate)), star(s.TooFast))
}

func star(b bool) string {
	if b {
		return "*"
	}
	return ""
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithClock sets the clock used for all time measurements.
func WithClock(c clock.Clock) Option {
	return func(e *Estimator) {
		e.clk = c
	}
}

// WithSamplePeriod sets the length of a sample window.
func WithSamplePeriod(d time.Duration) Option {
	return func(e *Estimator) {
		if d > 0 {
			e.period = d
		}
	}
}

// WithResolution sets the granularity of processing time measurements.
// Per record times are truncated to a multiple of d.
func WithResolution(d time.Duration) Option {
	return func(e *Estimator) {
		if d > 0 {
			e.resolution = d
		}
	}
}

// WithRecentSize sets the number of samples averaged by RecentRate.
func WithRecentSize(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.recent = newMovAvg(n)
		}
	}
}

// OnSample registers f to be called at the end of every sample window.
func OnSample(f func(Sample)) Option {
	return func(e *Estimator) {
		e.onSample = f
	}
}

// WithRateVar sets a var that is updated with the running average after every sample.
func WithRateVar(v FloatSetter) Option {
	return func(e *Estimator) {
		e.rateVar = v
	}
}

// Estimator measures the throughput of a single stream.
// It is not safe for concurrent use.
type Estimator struct {
	clk        clock.Clock
	period     time.Duration
	resolution time.Duration

	windowStart   time.Time
	start         time.Time
	started       bool
	windowRecords int64
	cumulative    time.Duration

	records int64
	rateSum float64
	samples int
	tooFast bool

	recent   *movavg
	onSample func(Sample)
	rateVar  FloatSetter
}

// New creates an Estimator, the first sample window starts immediately.
func New(opts ...Option) *Estimator {
	e := &Estimator{
		clk:        clock.New(),
		period:     DefaultSamplePeriod,
		resolution: DefaultResolution,
	}
	for _, o := range opts {
		o(e)
	}
	if e.recent == nil {
		e.recent = newMovAvg(DefaultRecentSize)
	}
	e.windowStart = e.clk.Now()
	return e
}

// Start marks the beginning of processing a record.
func (e *Estimator) Start() {
	e.start = e.clk.Now()
	e.started = true
}

// Stop marks the end of processing a record.
// Calling Stop without a matching Start is a no-op.
func (e *Estimator) Stop() {
	if !e.started {
		return
	}
	e.started = false
	end := e.clk.Now()
	e.records++
	e.windowRecords++
	e.cumulative += end.Sub(e.start).Truncate(e.resolution)

	if end.Sub(e.windowStart) >= e.period {
		e.sample(end)
		if e.onSample != nil {
			e.onSample(Sample{
				Records:    e.records,
				Rate:       e.Rate(),
				WindowRate: e.recent.last(),
				TooFast:    e.tooFast,
			})
		}
		e.windowRecords = 0
		e.cumulative = 0
		e.windowStart = e.clk.Now()
	}
}

func (e *Estimator) sample(end time.Time) {
	var rate float64
	if e.cumulative == 0 {
		// Every record took less than the resolution,
		// the best estimate available is the wall clock rate of the window.
		// This is closer to the rate of the whole flow than of this step.
		wall := end.Sub(e.windowStart).Seconds()
		if wall > 0 {
			rate = float64(e.windowRecords) / wall
		}
		e.tooFast = true
	} else {
		rate = float64(e.windowRecords) / e.cumulative.Seconds()
		e.tooFast = false
	}
	e.samples++
	e.rateSum += rate
	e.recent.update(rate)
	if e.rateVar != nil {
		e.rateVar.Set(e.Rate())
	}
}

// Records returns the number of records processed.
func (e *Estimator) Records() int64 {
	return e.records
}

// Rate returns the running average rate in records per second.
func (e *Estimator) Rate() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.rateSum / float64(e.samples)
}

// RecentRate returns the moving average rate over the most recent samples.
func (e *Estimator) RecentRate() float64 {
	return e.recent.avg
}

// Finish returns the final summary.
// If the stream ended before a full sample window elapsed the partial window is sampled.
func (e *Estimator) Finish() Summary {
	if e.samples == 0 && e.records > 0 {
		e.sample(e.clk.Now())
	}
	return Summary{
		Records: e.records,
		Rate:    e.Rate(),
		TooFast: e.tooFast,
	}
}
