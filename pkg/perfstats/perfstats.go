// Package perfstats records the cost of the stages of the scan pipeline,
// so that it's easy to see which stage is eating the frame budget on a
// particular device.
package perfstats

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Accumulate samples of how long something took
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration
}

func (a *TimeAccumulator) Reset() {
	a.Samples = 0
	a.Total = 0
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
}

func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return time.Duration(a.Total.Nanoseconds() / a.Samples)
}

// PipelineStats are exponential moving averages, in nanoseconds.
// They are written by the scan worker, and read by the HTTP API.
type PipelineStats struct {
	QualityNanoseconds   atomic.Uint64
	RecognizeNanoseconds atomic.Uint64
	ExtractNanoseconds   atomic.Uint64
	ResolveNanoseconds   atomic.Uint64
}

// Update folds a new sample into a moving average
func Update(stat *atomic.Uint64, value time.Duration) {
	vu := uint64(value.Nanoseconds())
	// We don't bother about strict correctness here, with CompareAndSwap,
	// because this is just sampled stats, and it's OK to miss one or two samples.
	if stat.Load() == 0 {
		stat.Store(vu)
	} else {
		stat.Store((stat.Load()*63 + vu) >> 6)
	}
}

func ms(stat *atomic.Uint64) float64 {
	return float64(stat.Load()) / 1e6
}

// Snapshot returns the current averages in milliseconds
func (s *PipelineStats) Snapshot() map[string]float64 {
	return map[string]float64{
		"qualityMS":   ms(&s.QualityNanoseconds),
		"recognizeMS": ms(&s.RecognizeNanoseconds),
		"extractMS":   ms(&s.ExtractNanoseconds),
		"resolveMS":   ms(&s.ResolveNanoseconds),
	}
}

func (s *PipelineStats) String() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "quality: %0.2f ms, ", ms(&s.QualityNanoseconds))
	fmt.Fprintf(b, "recognize: %0.2f ms, ", ms(&s.RecognizeNanoseconds))
	fmt.Fprintf(b, "extract: %0.2f ms, ", ms(&s.ExtractNanoseconds))
	fmt.Fprintf(b, "resolve: %0.2f ms", ms(&s.ResolveNanoseconds))
	return b.String()
}
